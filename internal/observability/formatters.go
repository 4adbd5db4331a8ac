// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonathan/content-engine/internal/db"
	"github.com/jonathan/content-engine/internal/generation"
	"github.com/jonathan/content-engine/internal/scheduler"
	"github.com/jonathan/content-engine/internal/trends"
	"github.com/jonathan/content-engine/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for CLI commands
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content. Long lines wrap
// on word boundaries.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	inner := boxWidth - 4
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title, inner))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		for _, wrapped := range wrap(line, inner) {
			fmt.Fprintf(p.out, "│ %s │\n", pad(wrapped, inner))
		}
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// pad right-pads s with spaces to width runes.
func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// wrap splits line into pieces of at most width runes, breaking on spaces
// and hard-splitting words longer than width.
func wrap(line string, width int) []string {
	if utf8.RuneCountInString(line) <= width {
		return []string{line}
	}
	var out []string
	var cur []rune
	for _, word := range strings.Fields(line) {
		w := []rune(word)
		for len(w) > width {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = nil
			}
			out = append(out, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(cur) == 0:
			cur = w
		case len(cur)+1+len(w) <= width:
			cur = append(append(cur, ' '), w...)
		default:
			out = append(out, string(cur))
			cur = w
		}
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintDraft outputs generated content with one box per platform caption.
func (p *Printer) PrintDraft(req *types.GenerateRequest, draft *generation.Draft) {
	if req == nil || draft == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Product:   %s\n", req.ProductName))
	sb.WriteString(fmt.Sprintf("Niche:     %s\n", req.Niche))
	sb.WriteString(fmt.Sprintf("Template:  %s (%s)\n", req.TemplateType, req.Tone))
	provider := fmt.Sprintf("%s / %s", draft.Provider, draft.Model)
	if draft.FallbackUsed {
		provider += " (fallback)"
	}
	sb.WriteString(fmt.Sprintf("Provider:  %s\n", provider))
	sb.WriteString(fmt.Sprintf("Latency:   %s", draft.Latency.Round(time.Millisecond)))
	p.printBox("GENERATION", sb.String())

	p.printContent(draft.Content, req.Platforms)
}

// PrintGeneration outputs a stored generation.
func (p *Printer) PrintGeneration(record *db.ContentGeneration) {
	if record == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ID:        %s\n", record.ID))
	sb.WriteString(fmt.Sprintf("Product:   %s\n", record.ProductName))
	sb.WriteString(fmt.Sprintf("Niche:     %s\n", record.Niche))
	sb.WriteString(fmt.Sprintf("Template:  %s (%s)\n", record.TemplateType, record.Tone))
	sb.WriteString(fmt.Sprintf("Provider:  %s / %s", record.Provider, record.Model))
	p.printBox("GENERATION", sb.String())

	platforms := make([]types.Platform, 0, len(record.Platforms))
	for _, pl := range record.Platforms {
		platforms = append(platforms, types.Platform(pl))
	}
	p.printContent(record.Content, platforms)
}

func (p *Printer) printContent(content types.GeneratedContent, platforms []types.Platform) {
	var sb strings.Builder
	sb.WriteString("Hook:\n")
	sb.WriteString(content.Hook)
	sb.WriteString("\n\nBody:\n")
	sb.WriteString(content.Body)
	sb.WriteString("\n\nCall to action:\n")
	sb.WriteString(content.CallToAction)
	if len(content.Hashtags) > 0 {
		sb.WriteString("\n\nHashtags: ")
		sb.WriteString(strings.Join(content.Hashtags, " "))
	}
	p.printBox("CONTENT", sb.String())

	if len(platforms) == 0 {
		for pl := range content.Captions {
			platforms = append(platforms, pl)
		}
		sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	}
	for _, pl := range platforms {
		caption, ok := content.Captions[pl]
		if !ok {
			continue
		}
		title := strings.ToUpper(string(pl))
		if spec, ok := pl.Spec(); ok {
			title = fmt.Sprintf("%s (%d/%d chars)", title, utf8.RuneCountInString(caption), spec.CaptionLimit)
		}
		p.printBox(title, caption)
	}
}

// PrintRunReport outputs the counters and failures of a job run.
func (p *Printer) PrintRunReport(report *scheduler.RunReport) {
	if report == nil || report.Run == nil {
		return
	}
	run := report.Run

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:       %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Status:    %s\n", run.Status))
	sb.WriteString(fmt.Sprintf("Tasks:     %d (%d succeeded, %d failed)\n", run.TotalTasks, run.Succeeded, run.Failed))
	if len(run.SkippedNiches) > 0 {
		sb.WriteString(fmt.Sprintf("Skipped:   %s\n", strings.Join(run.SkippedNiches, ", ")))
	}
	if run.ErrorMessage != nil {
		sb.WriteString(fmt.Sprintf("Error:     %s\n", *run.ErrorMessage))
	}
	if d := report.Delivery; d != nil {
		outcome := "delivered"
		if !d.Success {
			outcome = "failed"
		}
		sb.WriteString(fmt.Sprintf("Webhook:   %s (HTTP %d, %d attempts)\n", outcome, d.StatusCode, d.Attempts))
	}

	if len(report.Generations) > 0 {
		sb.WriteString("\nGenerated:\n")
		count := min(len(report.Generations), maxItemsToShow)
		for i := 0; i < count; i++ {
			g := report.Generations[i]
			sb.WriteString(fmt.Sprintf("  • [%s] %s (%s, %s)\n", g.Niche, truncate(g.ProductName, 30), g.TemplateType, g.Tone))
		}
		if len(report.Generations) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(report.Generations)-maxItemsToShow))
		}
	}

	if len(report.Failures) > 0 {
		sb.WriteString("\nFailures:\n")
		count := min(len(report.Failures), maxItemsToShow)
		for i := 0; i < count; i++ {
			f := report.Failures[i]
			sb.WriteString(fmt.Sprintf("  • [%s] %s: %s\n", f.Task.Niche, truncate(f.Task.Product, 25), f.Error))
		}
		if len(report.Failures) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(report.Failures)-maxItemsToShow))
		}
	}

	title := "JOB RUN"
	if report.Job != nil {
		title = "JOB RUN: " + report.Job.Name
	}
	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintTrends outputs a refresh summary and the resulting ranking.
func (p *Printer) PrintTrends(result *trends.RefreshResult, products []db.TrendingProduct) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Signals:   %d from %s\n", result.Signals, strings.Join(result.Sources, ", ")))
	sb.WriteString(fmt.Sprintf("Products:  %d\n", result.Products))
	if len(result.Failed) > 0 {
		names := make([]string, 0, len(result.Failed))
		for name := range result.Failed {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString("Failed sources:\n")
		for _, name := range names {
			sb.WriteString(fmt.Sprintf("  • %s: %s\n", name, result.Failed[name]))
		}
	}

	if len(products) > 0 {
		sb.WriteString("\n")
		count := min(len(products), maxItemsToShow)
		for i := 0; i < count; i++ {
			tp := products[i]
			sb.WriteString(fmt.Sprintf("#%-2d %-40s %6.2f  (%d mentions)\n", i+1, truncate(tp.Title, 40), tp.Score, tp.Mentions))
		}
		if len(products) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("... and %d more\n", len(products)-maxItemsToShow))
		}
	}

	p.printBox("TRENDS: "+strings.ToUpper(result.Niche), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSnapshot outputs an intelligence snapshot.
func (p *Printer) PrintSnapshot(snapshot *db.IntelligenceSnapshot) {
	if snapshot == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(snapshot.Summary)
	sb.WriteString("\n")
	if len(snapshot.Keywords) > 0 {
		sb.WriteString("\nKeywords: ")
		sb.WriteString(strings.Join(snapshot.Keywords, ", "))
		sb.WriteString("\n")
	}
	if len(snapshot.Angles) > 0 {
		sb.WriteString("\nAngles:\n")
		for _, angle := range snapshot.Angles {
			sb.WriteString(fmt.Sprintf("  • %s\n", angle))
		}
	}
	if len(snapshot.Products) > 0 {
		count := min(len(snapshot.Products), 5)
		sb.WriteString("\nTop products: ")
		sb.WriteString(strings.Join(snapshot.Products[:count], ", "))
		if len(snapshot.Products) > count {
			sb.WriteString(fmt.Sprintf(" (+%d)", len(snapshot.Products)-count))
		}
		sb.WriteString("\n")
	}

	p.printBox("INTELLIGENCE: "+strings.ToUpper(snapshot.Niche), strings.TrimSuffix(sb.String(), "\n"))
}
