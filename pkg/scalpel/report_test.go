package scalpel

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	report := NewReport()
	_, err := uuid.Parse(report.RunID)
	require.NoError(t, err)

	report.Part("ppt/slides/slide10.xml").Excised = 2
	report.Part("ppt/slides/slide2.xml").Touched = 5
	report.Part("ppt/slides/slide2.xml").Warn("shape %d skipped", 7)
	report.Part("ppt/slideLayouts/slideLayout1.xml").Skipped = 1
	report.Part("ppt/slides/slide1.xml").Error = "rolled back"

	var names []string
	for _, pr := range report.Parts() {
		names = append(names, pr.Part)
	}
	assert.Equal(t, []string{
		"ppt/slideLayouts/slideLayout1.xml",
		"ppt/slides/slide1.xml",
		"ppt/slides/slide2.xml",
		"ppt/slides/slide10.xml",
	}, names)

	totals := report.Totals()
	assert.Equal(t, 5, totals.Touched)
	assert.Equal(t, 2, totals.Excised)
	assert.Equal(t, 1, totals.Skipped)
	assert.Equal(t, []string{"ppt/slides/slide2.xml: shape 7 skipped"}, totals.Warnings)

	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "ppt/slides/slide1.xml", report.Failed()[0].Part)
	assert.True(t, IsShapeError(report.Err()))
	assert.NoError(t, NewReport().Err())
}

func TestReport_Merge(t *testing.T) {
	a := NewReport()
	a.Passes = []string{"watermark"}
	a.Part("ppt/slides/slide1.xml").Excised = 1

	b := NewReport()
	b.Passes = []string{"watermark"}
	b.Part("ppt/slides/slide1.xml").Excised = 2
	b.Part("ppt/slides/slide1.xml").Warn("again")
	b.Part("ppt/slides/slide2.xml").Error = "boom"

	a.Merge(b)
	a.Merge(nil)

	assert.Equal(t, []string{"watermark", "watermark"}, a.Passes)
	assert.Equal(t, 3, a.Part("ppt/slides/slide1.xml").Excised)
	assert.Equal(t, []string{"again"}, a.Part("ppt/slides/slide1.xml").Warnings)
	assert.Equal(t, "boom", a.Part("ppt/slides/slide2.xml").Error)
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		level       string
		expected    []string
		notExpected []string
	}{
		{level: "debug", expected: []string{"debug message", "info message", "error message"}},
		{level: "info", expected: []string{"info message", "error message"}, notExpected: []string{"debug message"}},
		{level: "error", expected: []string{"error message"}, notExpected: []string{"debug message", "info message"}},
		{level: "off", notExpected: []string{"debug message", "info message", "error message"}},
		{level: "bogus", expected: []string{"info message"}, notExpected: []string{"debug message"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := new(bytes.Buffer)
			logger := NewLogger(buf, tt.level)
			logger.Debug("debug message")
			logger.Info("info message", "part", "ppt/slides/slide1.xml")
			logger.Error("error message")

			out := buf.String()
			for _, s := range tt.expected {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notExpected {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestWithFields(t *testing.T) {
	original := GetLogger()
	defer SetLogger(original)

	buf := new(bytes.Buffer)
	SetLogger(NewLogger(buf, "info"))
	WithFields("part", "ppt/slides/slide3.xml").Info("edited")

	out := buf.String()
	assert.Contains(t, out, "edited")
	assert.Contains(t, out, "part=ppt/slides/slide3.xml")
	assert.True(t, strings.Contains(out, "scalpel"))
	assert.Equal(t, log.InfoLevel, GetLogger().GetLevel())
}

func TestErrors(t *testing.T) {
	cause := errors.New("short read")
	err := NewPackageError("extract", "ppt/slides/slide1.xml", ErrCorruptPackage, cause)

	assert.True(t, IsCorruptPackage(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsIOFailure(err))
	assert.Contains(t, err.Error(), "extract")
	assert.Contains(t, err.Error(), "ppt/slides/slide1.xml")

	shapeErr := NewShapeError("ppt/slides/slide1.xml", `Picture#4 "Logo"`, fmt.Errorf("%w: rId9", ErrMissingRelationship))
	assert.True(t, IsShapeError(shapeErr))
	assert.True(t, IsMissingRelationship(shapeErr))
	assert.Contains(t, shapeErr.Error(), "Picture#4")

	multi := NewMultiError()
	assert.NoError(t, multi.Err())
	multi.Add(nil)
	multi.Add(err)
	multi.Add(shapeErr)
	assert.Equal(t, 2, multi.Len())
	assert.ErrorIs(t, multi.Err(), ErrMissingRelationship)
	assert.ErrorIs(t, multi.Err(), ErrCorruptPackage)

	assert.Contains(t, RecoverError("boom").Error(), "boom")
	assert.ErrorIs(t, RecoverError(cause), cause)
}
