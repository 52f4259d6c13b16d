// Package scalpel provides custom error types for better error handling and reporting.
package scalpel

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCorruptPackage means the container or a required part could not
	// be parsed. Fatal for the package.
	ErrCorruptPackage = errors.New("corrupt package")
	// ErrMissingRelationship means an id is absent from its part's
	// manifest. The shape is skipped.
	ErrMissingRelationship = errors.New("missing relationship")
	// ErrAmbiguousMatch means a fuzzy match produced zero or several
	// candidates. The shape is skipped.
	ErrAmbiguousMatch = errors.New("ambiguous match")
	// ErrCollidingRelationshipID means no free relationship id could be
	// allocated.
	ErrCollidingRelationshipID = errors.New("colliding relationship id")
	// ErrIOFailure means a disk or zip write failed. The save is aborted.
	ErrIOFailure = errors.New("i/o failure")
	// ErrExternalTarget is returned when resolving a relationship whose
	// target lives outside the package.
	ErrExternalTarget = errors.New("external relationship target")
	// ErrMarkersPersist is returned when watermark markers survive every
	// verification attempt.
	ErrMarkersPersist = errors.New("watermark markers persist after save")
)

// PackageError represents an error during container operations
type PackageError struct {
	Operation string
	Path      string
	Cause     error
}

func (e *PackageError) Error() string {
	if e.Path != "" && e.Cause != nil {
		return fmt.Sprintf("package error during %s of '%s': %v", e.Operation, e.Path, e.Cause)
	} else if e.Path != "" {
		return fmt.Sprintf("package error during %s of '%s'", e.Operation, e.Path)
	} else if e.Cause != nil {
		return fmt.Sprintf("package error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("package error during %s", e.Operation)
}

func (e *PackageError) Unwrap() error {
	return e.Cause
}

// NewPackageError creates a new package error. The kind sentinel is joined
// with the cause so both can be matched with errors.Is.
func NewPackageError(operation, path string, kind, cause error) error {
	switch {
	case kind == nil:
	case cause == nil:
		cause = kind
	default:
		cause = fmt.Errorf("%w: %w", kind, cause)
	}
	return &PackageError{
		Operation: operation,
		Path:      path,
		Cause:     cause,
	}
}

// ShapeError represents a failure confined to one shape of one part
type ShapeError struct {
	Part  string
	Shape string
	Cause error
}

func (e *ShapeError) Error() string {
	if e.Shape != "" {
		return fmt.Sprintf("%s: shape %s: %v", e.Part, e.Shape, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Part, e.Cause)
}

func (e *ShapeError) Unwrap() error {
	return e.Cause
}

// NewShapeError creates a new shape error
func NewShapeError(part, shape string, cause error) error {
	return &ShapeError{
		Part:  part,
		Shape: shape,
		Cause: cause,
	}
}

// MultiError collects multiple errors
type MultiError struct {
	errors []error
}

// NewMultiError creates a new multi-error collector
func NewMultiError() *MultiError {
	return &MultiError{
		errors: make([]error, 0),
	}
}

// Add adds an error to the collection (ignores nil errors)
func (m *MultiError) Add(err error) {
	if err != nil {
		m.errors = append(m.errors, err)
	}
}

// Len returns the number of errors
func (m *MultiError) Len() int {
	return len(m.errors)
}

// Err returns the multi-error or nil if empty
func (m *MultiError) Err() error {
	if len(m.errors) == 0 {
		return nil
	}
	if len(m.errors) == 1 {
		return m.errors[0]
	}
	return m
}

func (m *MultiError) Error() string {
	if len(m.errors) == 0 {
		return "no errors"
	}

	if len(m.errors) == 1 {
		return m.errors[0].Error()
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%d errors occurred:", len(m.errors)))
	for i, err := range m.errors {
		parts = append(parts, fmt.Sprintf("  [%d] %v", i+1, err))
	}
	return strings.Join(parts, "\n")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.errors
}

// RecoverError converts a panic recovery value to an error
func RecoverError(r interface{}) error {
	switch v := r.(type) {
	case error:
		return fmt.Errorf("panic recovered: %w", v)
	case string:
		return fmt.Errorf("panic recovered: %s", v)
	default:
		return fmt.Errorf("panic recovered: %v", v)
	}
}

// IsCorruptPackage checks if an error is a corrupt package error
func IsCorruptPackage(err error) bool {
	return errors.Is(err, ErrCorruptPackage)
}

// IsMissingRelationship checks if an error is a missing relationship error
func IsMissingRelationship(err error) bool {
	return errors.Is(err, ErrMissingRelationship)
}

// IsAmbiguousMatch checks if an error is an ambiguous match error
func IsAmbiguousMatch(err error) bool {
	return errors.Is(err, ErrAmbiguousMatch)
}

// IsIOFailure checks if an error is an I/O failure
func IsIOFailure(err error) bool {
	return errors.Is(err, ErrIOFailure)
}

// IsShapeError checks if an error is confined to a single shape
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}
