// Package extract infers structured report fields from free text with an LLM.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/dcarowpilot/daily-report-ai/internal/llm"
	"github.com/dcarowpilot/daily-report-ai/internal/normalize"
	"github.com/dcarowpilot/daily-report-ai/internal/report"
)

const extractPrompt = `You fill in a construction daily report from a superintendent's notes and voice transcript.

Extract only what the text states. Do not guess. Use empty lists and empty strings when nothing is mentioned.

Text:
%s

Respond with ONLY this JSON:
{
    "crewCounts": [{"trade": "Carpenters", "count": 6}],
    "equipment": [{"type": "Excavator", "count": 1}],
    "activities": [{"location": "Grid A", "description": "Formed footings"}],
    "quantities": [{"item": "Concrete", "unit": "CY", "value": 35}],
    "safety": "Safety observations, incidents or toolbox talks",
    "issuesDelays": "Issues, delays or blockers"
}

count and value are numbers when the text gives a number, otherwise the words used.`

// maxInputChars bounds the text sent to the model.
const maxInputChars = 8000

// ErrNoProvider is returned when no LLM provider is configured.
var ErrNoProvider = errors.New("no LLM provider available for extraction")

// Extractor turns notes and transcripts into report.ExtractedFields.
type Extractor struct {
	provider  llm.Provider
	maxTokens int
}

// NewExtractor creates a new extractor. provider may be nil, in which case
// every call fails with ErrNoProvider.
func NewExtractor(provider llm.Provider, maxTokens int) *Extractor {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Extractor{provider: provider, maxTokens: maxTokens}
}

// Extract asks the model for the report fields found in text. The returned
// fields always have every list present, even alongside an error.
func (e *Extractor) Extract(ctx context.Context, text string) (report.ExtractedFields, error) {
	empty := report.EmptyExtraction()
	if e.provider == nil {
		return empty, ErrNoProvider
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return empty, nil
	}
	if len(text) > maxInputChars {
		text = text[:maxInputChars] + "..."
	}

	responseText, err := e.provider.Generate(ctx, fmt.Sprintf(extractPrompt, text), e.maxTokens)
	if err != nil {
		return empty, fmt.Errorf("extracting fields: %w", err)
	}

	var fields report.ExtractedFields
	if err := llm.ParseJSONResponse(responseText, &fields); err != nil {
		return empty, fmt.Errorf("extracting fields: %w", err)
	}

	fields = clean(fields.Complete())
	log.Printf("Extracted %d crew, %d equipment, %d activities, %d quantities",
		len(fields.CrewCounts), len(fields.Equipment), len(fields.Activities), len(fields.Quantities))
	return fields, nil
}

// clean pins key-count modes to their list, trims text and drops entries the
// record cannot hold: blank keys, blank items and blank descriptions.
func clean(f report.ExtractedFields) report.ExtractedFields {
	out := report.EmptyExtraction()
	out.CrewCounts = cleanCounts(f.CrewCounts, normalize.Crew)
	out.Equipment = cleanCounts(f.Equipment, normalize.Equipment)

	for _, a := range f.Activities {
		a.Location = strings.TrimSpace(a.Location)
		a.Description = strings.TrimSpace(a.Description)
		if a.Description != "" {
			out.Activities = append(out.Activities, a)
		}
	}
	for _, q := range f.Quantities {
		q.Item = strings.TrimSpace(q.Item)
		q.Unit = strings.TrimSpace(q.Unit)
		if q.Item != "" {
			out.Quantities = append(out.Quantities, q)
		}
	}

	out.Safety = strings.TrimSpace(f.Safety)
	out.IssuesDelays = strings.TrimSpace(f.IssuesDelays)
	return out
}

func cleanCounts(items []normalize.KeyCount, mode normalize.Mode) []normalize.KeyCount {
	out := []normalize.KeyCount{}
	for _, kc := range items {
		kc.Key = strings.TrimSpace(kc.Key)
		if kc.Key == "" {
			continue
		}
		kc.Mode = mode
		out = append(out, kc)
	}
	return out
}
