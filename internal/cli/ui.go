// Package cli renders scans and consultation output for the terminal and
// asks the user for chat input.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vbonduro/glowly/internal/domain"
	"github.com/vbonduro/glowly/internal/workflow"
)

const width = 80

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#DB2777")).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1).
			MarginBottom(1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F472B6")).
			Padding(1, 2).
			Width(width)

	stepStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#10B981")).
			Padding(0, 2).
			Width(width)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Width(20)

	barFullStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	barEmptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#374151"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F9A8D4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Underline(true)
)

var stepTitles = map[workflow.Step]string{
	workflow.StepVerification: "1/4 Photo check",
	workflow.StepAnalysis:     "2/4 Skin analysis",
	workflow.StepRatings:      "3/4 Ratings",
	workflow.StepShopping:     "4/4 Shopping",
}

func Title(text string) string {
	return titleStyle.Render(text)
}

// bar draws a 20-cell meter for a 0-100 value.
func bar(value int) string {
	const cells = 20
	filled := value * cells / 100
	if filled < 0 {
		filled = 0
	}
	if filled > cells {
		filled = cells
	}
	return barFullStyle.Render(strings.Repeat("█", filled)) + barEmptyStyle.Render(strings.Repeat("░", cells-filled))
}

// RenderScan lays out the five pixel metrics with meters and the narrative.
func RenderScan(scan *domain.Scan) string {
	var b strings.Builder
	for _, m := range scan.Metrics {
		fmt.Fprintf(&b, "%s %s %3d  %s\n", labelStyle.Render(m.Label), bar(m.Value), m.Value, mutedStyle.Render(m.Summary))
	}
	b.WriteString("\n")
	b.WriteString(scan.Summary)
	return panelStyle.Render(b.String())
}

func RenderStep(ev workflow.StepEvent) string {
	title := stepTitles[ev.Step]
	if title == "" {
		title = string(ev.Step)
	}
	return stepStyle.Render(titleStyle.Render(title) + "\n" + strings.TrimSpace(ev.Reply))
}

// RenderRatings prints the model's 1-5 scores, or a note when none parsed.
func RenderRatings(r *workflow.Ratings) string {
	if r == nil {
		return mutedStyle.Render("Ratings unavailable.")
	}
	rows := []struct {
		label string
		value float64
	}{
		{"Hydration", r.Hydration},
		{"Oil balance", r.OilBalance},
		{"Tone", r.Tone},
		{"Barrier strength", r.BarrierStrength},
		{"Sensitivity", r.Sensitivity},
	}
	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "%s %s %.1f/5\n", labelStyle.Render(row.label), bar(int(row.value*20)), row.value)
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func RenderProducts(products []workflow.Product) string {
	if len(products) == 0 {
		return mutedStyle.Render("No products found.")
	}
	var b strings.Builder
	for i, p := range products {
		fmt.Fprintf(&b, "%d. %s", i+1, p.Title)
		if p.Price != "" {
			fmt.Fprintf(&b, "  %s", p.Price)
		}
		if p.Source != "" {
			fmt.Fprintf(&b, "  %s", mutedStyle.Render(p.Source))
		}
		b.WriteString("\n")
		if p.Link != "" {
			b.WriteString("   " + linkStyle.Render(p.Link) + "\n")
		}
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func RenderReply(reply string) string {
	return assistantStyle.Render(strings.TrimSpace(reply))
}

func RenderError(err error) string {
	return errorStyle.Render("Error: " + err.Error())
}
