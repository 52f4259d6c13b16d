// Package scalpel performs surgery on PowerPoint (PPTX) packages.
//
// A deck produced by another tool often needs cleaning before it can be
// handed on: evaluation stamps stripped, authored text swapped for filler,
// pictures replaced, invisible shapes dropped. Scalpel opens the package,
// applies a sequence of passes to its slides, layouts and masters, and
// writes it back with every untouched part byte-identical.
//
// # Quick Start
//
//	pkg, err := scalpel.Open("deck.pptx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pkg.Close()
//
//	report, err := pkg.Run(ctx,
//	    &scalpel.WatermarkPass{Workers: 4},
//	    &scalpel.TemplatizePass{Filler: "Lorem"},
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Totals().Excised)
//
//	if err := pkg.Save("clean.pptx"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Package Model
//
// Open extracts the archive into a private working tree. Slide, layout and
// master parts are parsed eagerly; other parts stay on disk and are copied
// through unchanged. Each part's relationships live in its _rels manifest
// and are reached through the package's RelationshipGraph, which resolves
// relative targets and allocates fresh ids from rId1000 upwards.
//
// # Passes
//
// Built-in passes:
//
//	WatermarkPass        - remove shapes carrying vendor markers
//	TemplatizePass       - replace text with length-matched filler
//	ImageReplacePass     - swap pictures by their alternative text
//	ScanPass             - report picture geometry and pixel sizes
//	AllowlistCleanPass   - keep only allow-listed text per page
//	HiddenShapeCleanPass - drop shapes that never render
//
// Every pass edits a part inside a transaction. A part that fails is
// rolled back and recorded in the Report; the rest of the deck is still
// processed.
//
// # Sub-packages
//
//   - shape: shape tree traversal, transforms and excision
//   - text: text bodies, logical text and proportional filler
//
// The image-generation client (pkg/imagegen) and the PostgreSQL page store
// (pkg/pagestore) sit outside the engine and are driven by the CLI.
package scalpel
