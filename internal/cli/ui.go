package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/benjaminschreck/go-scalpel/pkg/scalpel"
)

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

var (
	styleHeader  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Padding(0, 1)
	styleCell    = lipgloss.NewStyle().Padding(0, 1)
	styleNumber  = styleCell.Foreground(colorCyan).Align(lipgloss.Right)
	styleFailed  = styleCell.Foreground(colorRed)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
)

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleWarning.Render(iconWarning)+" "+styleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// renderReport prints per-part counts, then warnings and failures.
func renderReport(w io.Writer, report *scalpel.Report) {
	parts := report.Parts()
	if len(parts) == 0 {
		printInfo(w, "no parts touched")
		return
	}

	rows := make([][]string, 0, len(parts)+1)
	for _, pr := range parts {
		status := "ok"
		if pr.Error != "" {
			status = "rolled back"
		}
		rows = append(rows, []string{
			pr.Part,
			strconv.Itoa(pr.Touched),
			strconv.Itoa(pr.Excised),
			strconv.Itoa(pr.Skipped),
			status,
		})
	}
	totals := report.Totals()
	rows = append(rows, []string{
		"total",
		strconv.Itoa(totals.Touched),
		strconv.Itoa(totals.Excised),
		strconv.Itoa(totals.Skipped),
		"",
	})

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Part", "Touched", "Excised", "Skipped", "Status").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return styleHeader
			case col == 4 && row < len(parts) && parts[row].Error != "":
				return styleFailed
			case col >= 1 && col <= 3:
				return styleNumber
			default:
				return styleCell
			}
		})
	fmt.Fprintln(w, t.Render())

	for _, warning := range totals.Warnings {
		printWarning(w, "%s", warning)
	}
	for _, pr := range report.Failed() {
		printError(w, "%s: %s", pr.Part, pr.Error)
	}
	fmt.Fprintln(w, styleDim.Render("run "+report.RunID))
}

// renderImages prints one row per scanned picture.
func renderImages(w io.Writer, infos []scalpel.ImageInfo) {
	if len(infos) == 0 {
		printInfo(w, "no pictures found")
		return
	}
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		size := "unresolved"
		pixels := ""
		if info.Resolved {
			size = fmt.Sprintf("%.2f × %.2f cm", info.WidthCm, info.HeightCm)
			pixels = fmt.Sprintf("%d × %d", info.WidthPx, info.HeightPx)
		}
		media := info.Media
		if info.Error != "" {
			media = info.Error
		}
		rows = append(rows, []string{
			strconv.Itoa(info.Page),
			strconv.Itoa(info.Index),
			info.Name,
			info.Annotation,
			size,
			pixels,
			media,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Page", "#", "Name", "Annotation", "Size", "Pixels", "Media").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return styleHeader
			case row < len(infos) && col == 6 && infos[row].Error != "":
				return styleFailed
			case col <= 1:
				return styleNumber
			default:
				return styleCell
			}
		})
	fmt.Fprintln(w, t.Render())
}
