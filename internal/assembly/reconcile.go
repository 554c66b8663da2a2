// Package assembly joins measured narration and generated clips into one track.
package assembly

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"shorts-sync/internal/models"
)

// Equal durations within this tolerance are treated as an exact fit.
const exactTolerance = 0.001

// Reconcile pairs audio and clips by segment index. Every index in
// 0..planned-1 must appear exactly once in both sequences, otherwise an
// IncompleteAssemblyError is returned and no track is produced.
func Reconcile(audio []models.AudioSegment, clips []models.VideoClip, planned int, transition models.Transition) (*models.AssembledTrack, error) {
	if transition == "" {
		transition = models.TransitionHold
	}

	incomplete := &models.IncompleteAssemblyError{Planned: planned}
	audioByIndex := make(map[int]models.AudioSegment, len(audio))
	for _, a := range audio {
		switch {
		case a.SegmentIndex < 0 || a.SegmentIndex >= planned:
			incomplete.Unexpected = append(incomplete.Unexpected, a.SegmentIndex)
		case hasAudio(audioByIndex, a.SegmentIndex):
			incomplete.Duplicates = append(incomplete.Duplicates, a.SegmentIndex)
		default:
			audioByIndex[a.SegmentIndex] = a
		}
	}
	clipByIndex := make(map[int]models.VideoClip, len(clips))
	for _, c := range clips {
		switch {
		case c.SegmentIndex < 0 || c.SegmentIndex >= planned:
			incomplete.Unexpected = append(incomplete.Unexpected, c.SegmentIndex)
		case hasClip(clipByIndex, c.SegmentIndex):
			incomplete.Duplicates = append(incomplete.Duplicates, c.SegmentIndex)
		default:
			clipByIndex[c.SegmentIndex] = c
		}
	}

	for i := 0; i < planned; i++ {
		if _, ok := audioByIndex[i]; !ok {
			incomplete.MissingAudio = append(incomplete.MissingAudio, i)
		}
		if _, ok := clipByIndex[i]; !ok {
			incomplete.MissingVideo = append(incomplete.MissingVideo, i)
		}
	}

	if planned <= 0 || len(incomplete.MissingAudio) > 0 || len(incomplete.MissingVideo) > 0 ||
		len(incomplete.Duplicates) > 0 || len(incomplete.Unexpected) > 0 {
		sort.Ints(incomplete.Duplicates)
		sort.Ints(incomplete.Unexpected)
		return nil, incomplete
	}

	track := &models.AssembledTrack{Transition: transition, Entries: make([]models.TrackEntry, 0, planned)}
	for i := 0; i < planned; i++ {
		entry := fit(clipByIndex[i], audioByIndex[i])
		if entry.Adjustment != models.AdjustExact {
			log.Warn().
				Int("segment", i).
				Int("clip", entry.Clip.Class).
				Float64("audio", entry.Audio.DurationMeasured).
				Str("adjustment", string(entry.Adjustment)).
				Msg("Clip and narration lengths differ")
		}
		track.Entries = append(track.Entries, entry)
	}
	return track, nil
}

func hasAudio(m map[int]models.AudioSegment, i int) bool { _, ok := m[i]; return ok }
func hasClip(m map[int]models.VideoClip, i int) bool     { _, ok := m[i]; return ok }

// fit decides how a clip covers its narration. The narration length always wins.
func fit(clip models.VideoClip, audio models.AudioSegment) models.TrackEntry {
	entry := models.TrackEntry{Clip: clip, Audio: audio, Effective: audio.DurationMeasured}
	diff := float64(clip.Class) - audio.DurationMeasured
	switch {
	case math.Abs(diff) <= exactTolerance:
		entry.Adjustment = models.AdjustExact
	case diff > 0:
		entry.Adjustment = models.AdjustTruncate
	default:
		entry.Adjustment = models.AdjustHold
		entry.Gap = -diff
	}
	return entry
}

// Encoder renders an assembled track to a media file.
type Encoder interface {
	Encode(ctx context.Context, track *models.AssembledTrack, outputPath string) error
}

// Reconciler validates and encodes a run's audio and clips.
type Reconciler struct {
	Encoder    Encoder
	Transition models.Transition
}

func NewReconciler(encoder Encoder, transition models.Transition) *Reconciler {
	return &Reconciler{Encoder: encoder, Transition: transition}
}

// Assemble reconciles the sequences and encodes the track into outputPath.
func (r *Reconciler) Assemble(ctx context.Context, audio []models.AudioSegment, clips []models.VideoClip, planned int, outputPath string) (*models.AssembledTrack, error) {
	track, err := Reconcile(audio, clips, planned, r.Transition)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Int("segments", len(track.Entries)).
		Float64("duration", track.Duration()).
		Str("transition", string(track.Transition)).
		Msg("Encoding assembled track")

	if err := r.Encoder.Encode(ctx, track, outputPath); err != nil {
		return nil, fmt.Errorf("failed to encode track: %w", err)
	}
	return track, nil
}
