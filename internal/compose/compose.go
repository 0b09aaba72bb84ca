// Package compose renders a saved report as a Markdown document with a short
// summary at the top.
package compose

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/dcarowpilot/daily-report-ai/internal/llm"
	"github.com/dcarowpilot/daily-report-ai/internal/normalize"
	"github.com/dcarowpilot/daily-report-ai/internal/report"
)

const summaryPrompt = `You are summarising a construction daily report for the project manager.

%s

Write 2-4 bullet points covering progress, manpower and anything that needs attention. Each bullet is one short sentence.

Respond with ONLY this JSON:
{
    "bullets": [
        "First point",
        "Second point"
    ]
}`

// Document is a composed report.
type Document struct {
	Title   string
	Summary string
	Body    string
}

// Markdown returns the full document.
func (d Document) Markdown() string {
	return fmt.Sprintf("# %s\n\n%s\n\n---\n\n%s\n", d.Title, d.Summary, d.Body)
}

// Composer composes report documents. provider may be nil, in which case
// the summary is built from the report fields alone.
type Composer struct {
	provider llm.Provider
}

// NewComposer creates a new report composer.
func NewComposer(provider llm.Provider) *Composer {
	return &Composer{provider: provider}
}

// Compose builds the document for r.
func (c *Composer) Compose(ctx context.Context, r *report.StructuredReport) Document {
	body := assembleBody(r)
	return Document{
		Title:   fmt.Sprintf("%s daily report, %s", r.Project, r.Date),
		Summary: c.summarize(ctx, r, body),
		Body:    body,
	}
}

func (c *Composer) summarize(ctx context.Context, r *report.StructuredReport, body string) string {
	if c.provider == nil {
		return fallbackSummary(r)
	}

	responseText, err := c.provider.Generate(ctx, fmt.Sprintf(summaryPrompt, body), 256)
	if err != nil || responseText == "" {
		if err != nil {
			log.Printf("Summary generation failed for %s: %v", r.ID, err)
		}
		return fallbackSummary(r)
	}

	var parsed struct {
		Bullets []string `json:"bullets"`
	}
	if err := llm.ParseJSONResponse(responseText, &parsed); err == nil && len(parsed.Bullets) > 0 {
		lines := make([]string, 0, len(parsed.Bullets))
		for _, b := range parsed.Bullets {
			if b = strings.TrimSpace(b); b != "" {
				lines = append(lines, "- "+b)
			}
		}
		if len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
	}

	return fallbackSummary(r)
}

// fallbackSummary states headcount, activity count and open issues.
func fallbackSummary(r *report.StructuredReport) string {
	var bullets []string

	if len(r.CrewCounts) > 0 {
		total, exact := headcount(r.CrewCounts)
		approx := ""
		if !exact {
			approx = " (some counts not numeric)"
		}
		bullets = append(bullets, fmt.Sprintf("- %s workers across %d trades%s", normalize.Number(total), len(r.CrewCounts), approx))
	}
	if len(r.Activities) > 0 {
		bullets = append(bullets, fmt.Sprintf("- %d activities recorded", len(r.Activities)))
	}
	if strings.TrimSpace(r.IssuesDelays) != "" {
		bullets = append(bullets, "- Issues or delays reported")
	}
	if len(bullets) == 0 {
		return "- No structured details recorded."
	}
	return strings.Join(bullets, "\n")
}

func headcount(items []normalize.KeyCount) (float64, bool) {
	var total float64
	exact := true
	for _, kc := range items {
		if f, ok := kc.Count.Float(); ok {
			total += f
		} else {
			exact = false
		}
	}
	return total, exact
}

func assembleBody(r *report.StructuredReport) string {
	var sections []string

	var meta []string
	if r.Author != "" {
		meta = append(meta, "**Author:** "+r.Author)
	}
	if r.Weather != "" {
		meta = append(meta, "**Weather:** "+r.Weather)
	}
	if len(meta) > 0 {
		sections = append(sections, strings.Join(meta, "  \n"))
	}

	if len(r.CrewCounts) > 0 {
		sections = append(sections, "## Crew\n\n"+keyCountList(r.CrewCounts))
	}
	if len(r.Equipment) > 0 {
		sections = append(sections, "## Equipment\n\n"+keyCountList(r.Equipment))
	}
	if len(r.Activities) > 0 {
		var lines []string
		for _, a := range r.Activities {
			if a.Location != "" {
				lines = append(lines, fmt.Sprintf("- **%s:** %s", a.Location, a.Description))
			} else {
				lines = append(lines, "- "+a.Description)
			}
		}
		sections = append(sections, "## Activities\n\n"+strings.Join(lines, "\n"))
	}
	if len(r.Quantities) > 0 {
		lines := []string{"| Item | Unit | Value |", "|---|---|---|"}
		for _, q := range r.Quantities {
			lines = append(lines, fmt.Sprintf("| %s | %s | %s |", q.Item, q.Unit, q.Value))
		}
		sections = append(sections, "## Quantities\n\n"+strings.Join(lines, "\n"))
	}
	if len(r.SubsPresent) > 0 {
		sections = append(sections, "## Subcontractors\n\n"+normalize.FormatList(r.SubsPresent))
	}
	if s := strings.TrimSpace(r.IssuesDelays); s != "" {
		sections = append(sections, "## Issues and delays\n\n"+s)
	}
	if s := strings.TrimSpace(r.Safety); s != "" {
		sections = append(sections, "## Safety\n\n"+s)
	}
	if len(r.PhotoURLs) > 0 {
		var lines []string
		for i, u := range r.PhotoURLs {
			lines = append(lines, fmt.Sprintf("- [Photo %d](%s)", i+1, u))
		}
		sections = append(sections, "## Photos\n\n"+strings.Join(lines, "\n"))
	}
	if r.AudioURL != "" {
		sections = append(sections, fmt.Sprintf("## Voice note\n\n[Recording](%s)", r.AudioURL))
	}
	if s := strings.TrimSpace(r.VoiceTranscript); s != "" {
		sections = append(sections, "## Transcript\n\n> "+strings.ReplaceAll(s, "\n", "\n> "))
	}
	if s := strings.TrimSpace(r.NotesRaw); s != "" {
		sections = append(sections, "## Notes\n\n"+s)
	}

	if len(sections) == 0 {
		return "No details recorded."
	}
	return strings.Join(sections, "\n\n")
}

func keyCountList(items []normalize.KeyCount) string {
	lines := make([]string, 0, len(items))
	for _, kc := range items {
		lines = append(lines, fmt.Sprintf("- %s: %s", kc.Key, kc.Count))
	}
	return strings.Join(lines, "\n")
}
