// Package synth voices every segment independently and measures the result.
package synth

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"shorts-sync/internal/models"
)

// DefaultConcurrency bounds simultaneous synthesis calls when none is configured.
const DefaultConcurrency = 4

// VoiceSynthesizer turns narration text into audio bytes.
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// DurationProber measures an audio payload.
type DurationProber interface {
	Measure(ctx context.Context, audio []byte, wordCount int) (models.Measurement, error)
}

type Synchronizer struct {
	Voice       VoiceSynthesizer
	Prober      DurationProber
	Concurrency int
}

func New(voice VoiceSynthesizer, prober DurationProber, concurrency int) *Synchronizer {
	return &Synchronizer{Voice: voice, Prober: prober, Concurrency: concurrency}
}

// Synchronize synthesizes and measures every segment. The result has one slot
// per input segment in input order. A failed slot carries its error and never
// stops the other segments.
func (s *Synchronizer) Synchronize(ctx context.Context, segments []models.Segment, voiceID string) []models.AudioResult {
	results := make([]models.AudioResult, len(segments))

	limit := s.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	// Not errgroup.WithContext: a failed segment must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(limit)

	for i, seg := range segments {
		i, seg := i, seg
		g.Go(func() error {
			audio, err := s.one(ctx, seg, voiceID)
			results[i] = models.AudioResult{Index: seg.Index, Audio: audio, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Synchronizer) one(ctx context.Context, seg models.Segment, voiceID string) (*models.AudioSegment, error) {
	logger := log.Ctx(ctx).With().Int("segment", seg.Index).Logger()

	if err := ctx.Err(); err != nil {
		return nil, &models.SynthesisFailure{Index: seg.Index, Err: err}
	}

	data, err := s.Voice.Synthesize(ctx, seg.Text, voiceID)
	if err != nil {
		logger.Error().Err(err).Msg("Voice synthesis failed")
		return nil, &models.SynthesisFailure{Index: seg.Index, Err: err}
	}

	m, err := s.Prober.Measure(ctx, data, seg.WordCount)
	if err != nil {
		logger.Error().Err(err).Msg("Could not determine audio duration")
		return nil, &models.ProbeFailure{Index: seg.Index, Err: err}
	}

	audio := &models.AudioSegment{
		SegmentIndex:     seg.Index,
		AudioData:        data,
		DurationMeasured: m.Seconds,
		Method:           m.Method,
		PlannedStart:     seg.PlannedStart,
		PlannedEnd:       seg.PlannedEnd,
	}
	if err := audio.Validate(); err != nil {
		return nil, &models.ProbeFailure{Index: seg.Index, Err: err}
	}

	logger.Info().
		Float64("planned", seg.PlannedDuration()).
		Float64("measured", m.Seconds).
		Str("method", string(m.Method)).
		Msg("Segment voiced")
	return audio, nil
}

// Collect returns the audio segments in order, or every per-segment failure joined.
func Collect(results []models.AudioResult) ([]models.AudioSegment, error) {
	out := make([]models.AudioSegment, 0, len(results))
	var errs []error
	for _, r := range results {
		if r.Failed() {
			err := r.Err
			if err == nil {
				err = &models.SynthesisFailure{Index: r.Index, Err: errors.New("no audio produced")}
			}
			errs = append(errs, err)
			continue
		}
		out = append(out, *r.Audio)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
