// Package clipdur maps measured narration durations to the clip lengths the
// video generator can render.
package clipdur

import "shorts-sync/internal/models"

const (
	// ThresholdSeconds is exclusive: exactly 12.0s still selects ShortClass.
	ThresholdSeconds = 12.0
	ShortClass       = 10
	LongClass        = 15
)

// Select returns the clip duration class for a measured audio duration.
func Select(measured float64) int {
	if measured > ThresholdSeconds {
		return LongClass
	}
	return ShortClass
}

// Decide derives the clip decision for one audio segment.
func Decide(audio models.AudioSegment) models.ClipDecision {
	return models.ClipDecision{
		SegmentIndex: audio.SegmentIndex,
		Measured:     audio.DurationMeasured,
		Class:        Select(audio.DurationMeasured),
	}
}

// DecideAll derives decisions for an ordered audio sequence.
func DecideAll(audio []models.AudioSegment) []models.ClipDecision {
	out := make([]models.ClipDecision, len(audio))
	for i, a := range audio {
		out[i] = Decide(a)
	}
	return out
}

// Fixed requests the same class for every segment regardless of measurement.
func Fixed(audio []models.AudioSegment, class int) []models.ClipDecision {
	out := make([]models.ClipDecision, len(audio))
	for i, a := range audio {
		out[i] = models.ClipDecision{SegmentIndex: a.SegmentIndex, Measured: a.DurationMeasured, Class: class}
	}
	return out
}

// Mismatch is the rendered length minus the spoken length. Positive values are
// truncated during assembly, negative values are covered by holding the last frame.
func Mismatch(d models.ClipDecision) float64 {
	return float64(d.Class) - d.Measured
}
