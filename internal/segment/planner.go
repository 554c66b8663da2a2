// Package segment turns a generated narration script into timed segments,
// each paired with a visual description of its own.
package segment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"shorts-sync/internal/models"
)

// Script is the raw output of a script source in timestamp mode.
type Script struct {
	FullScript string          `json:"full_script"`
	Segments   json.RawMessage `json:"segments"`
}

// ScriptSource produces a narration script with a raw segment list.
type ScriptSource interface {
	GenerateScript(ctx context.Context, brief models.Brief) (*Script, error)
}

// Plan is the planner's output for one brief.
type Plan struct {
	FullScript string
	Segments   []models.Segment
}

// Planner validates and normalizes what the script source returns.
type Planner struct {
	source ScriptSource
	// DurationTolerance is the fraction the summed span may drift from the
	// requested duration before a warning is logged.
	DurationTolerance float64
}

func NewPlanner(source ScriptSource) *Planner {
	return &Planner{source: source, DurationTolerance: 0.25}
}

// Plan asks the script source for a script and turns it into segments.
func (p *Planner) Plan(ctx context.Context, brief models.Brief) (*Plan, error) {
	brief = brief.WithDefaults()
	log.Info().Str("topic", brief.Topic).Int("duration", brief.DurationSeconds).Str("style", brief.Style).Msg("Planning segments")

	script, err := p.source.GenerateScript(ctx, brief)
	if err != nil {
		var malformed *models.MalformedScriptError
		if errors.As(err, &malformed) {
			return nil, err
		}
		return nil, fmt.Errorf("script generation failed: %w", err)
	}
	if script == nil {
		return nil, &models.MalformedScriptError{Entry: -1, Reason: "script source returned nothing"}
	}

	segments, err := Parse(script.Segments)
	if err != nil {
		return nil, err
	}

	span := Span(segments)
	target := float64(brief.DurationSeconds)
	if target > 0 && math.Abs(span-target)/target > p.DurationTolerance {
		log.Warn().Float64("span", span).Float64("target", target).Msg("Planned span differs from requested duration")
	}

	log.Info().Int("segments", len(segments)).Float64("span", span).Msg("Segments planned")
	return &Plan{FullScript: script.FullScript, Segments: segments}, nil
}

// Span returns the time covered from the first planned start to the last planned end.
func Span(segments []models.Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	return segments[len(segments)-1].PlannedEnd - segments[0].PlannedStart
}
