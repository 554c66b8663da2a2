package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"shorts-sync/internal/brand"
	"shorts-sync/internal/models"
)

const (
	DefaultAspectRatio  = "portrait"
	DefaultPollInterval = 15 * time.Second
	DefaultMaxWait      = 300 * time.Second
	DefaultConcurrency  = 4
)

// Jobs is the part of the job API the generator needs.
type Jobs interface {
	CreateTask(ctx context.Context, prompt string, class int, aspectRatio string) (string, error)
	WaitForCompletion(ctx context.Context, taskID string, interval, maxWait time.Duration) (string, error)
	Download(ctx context.Context, videoURL string) ([]byte, error)
}

// ClipStore persists downloaded clips.
type ClipStore interface {
	SaveClip(runID string, index int, data []byte) (string, error)
}

// Generator renders one clip per segment, each from that segment's own visual.
type Generator struct {
	Jobs         Jobs
	Store        ClipStore
	Brand        brand.Character
	AspectRatio  string
	PollInterval time.Duration
	MaxWait      time.Duration
	Concurrency  int
}

func NewGenerator(jobs Jobs, store ClipStore, character brand.Character) *Generator {
	return &Generator{
		Jobs:         jobs,
		Store:        store,
		Brand:        character,
		AspectRatio:  DefaultAspectRatio,
		PollInterval: DefaultPollInterval,
		MaxWait:      DefaultMaxWait,
		Concurrency:  DefaultConcurrency,
	}
}

// Prompt builds the generation prompt for one segment.
func (g *Generator) Prompt(seg models.Segment) string {
	return g.Brand.Enhance(seg.Visual, brand.DetectCategory(seg.Text))
}

// Generate renders clips for every segment concurrently. The result is
// index-aligned with segments; a failed slot carries a typed generation error.
func (g *Generator) Generate(ctx context.Context, runID string, segments []models.Segment, decisions []models.ClipDecision) []models.ClipResult {
	byIndex := make(map[int]models.ClipDecision, len(decisions))
	for _, d := range decisions {
		byIndex[d.SegmentIndex] = d
	}

	results := make([]models.ClipResult, len(segments))
	limit := g.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var grp errgroup.Group
	grp.SetLimit(limit)
	for i, seg := range segments {
		i, seg := i, seg
		grp.Go(func() error {
			decision, ok := byIndex[seg.Index]
			if !ok {
				results[i] = models.ClipResult{Index: seg.Index, Err: &models.GenerationFailure{Index: seg.Index, Err: errors.New("no clip duration decision")}}
				return nil
			}
			clip, err := g.one(ctx, runID, seg, decision)
			results[i] = models.ClipResult{Index: seg.Index, Clip: clip, Err: err}
			return nil
		})
	}
	_ = grp.Wait()

	var cost float64
	for _, r := range results {
		if !r.Failed() {
			cost += r.Clip.CostUSD
		}
	}
	log.Ctx(ctx).Info().Int("clips", len(results)).Float64("cost_usd", cost).Msg("Clip generation finished")
	return results
}

func (g *Generator) one(ctx context.Context, runID string, seg models.Segment, decision models.ClipDecision) (*models.VideoClip, error) {
	logger := log.Ctx(ctx).With().Int("segment", seg.Index).Int("class", decision.Class).Logger()

	aspect := g.AspectRatio
	if aspect == "" {
		aspect = DefaultAspectRatio
	}

	taskID, err := g.Jobs.CreateTask(ctx, g.Prompt(seg), decision.Class, aspect)
	if err != nil {
		logger.Error().Err(err).Msg("Could not submit clip task")
		return nil, &models.GenerationFailure{Index: seg.Index, Err: err}
	}
	logger.Info().Str("task_id", taskID).Msg("Clip task submitted")

	interval, maxWait := g.PollInterval, g.MaxWait
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	videoURL, err := g.Jobs.WaitForCompletion(ctx, taskID, interval, maxWait)
	if err != nil {
		logger.Error().Err(err).Str("task_id", taskID).Msg("Clip task did not complete")
		if errors.Is(err, ErrWaitTimeout) {
			return nil, &models.GenerationTimeout{Index: seg.Index, TaskID: taskID, Waited: maxWait}
		}
		return nil, &models.GenerationFailure{Index: seg.Index, TaskID: taskID, Err: err}
	}

	clip := &models.VideoClip{
		SegmentIndex: seg.Index,
		Class:        decision.Class,
		TaskID:       taskID,
		MediaURL:     videoURL,
		CostUSD:      EstimateCost(decision.Class),
	}
	if g.Store == nil {
		return clip, nil
	}

	data, err := g.Jobs.Download(ctx, videoURL)
	if err != nil {
		return nil, &models.GenerationFailure{Index: seg.Index, TaskID: taskID, Err: err}
	}
	path, err := g.Store.SaveClip(runID, seg.Index, data)
	if err != nil {
		return nil, &models.GenerationFailure{Index: seg.Index, TaskID: taskID, Err: fmt.Errorf("store clip: %w", err)}
	}
	clip.LocalPath = path
	logger.Info().Str("path", path).Msg("Clip stored")
	return clip, nil
}

// Collect returns the clips in order, or every per-segment failure joined.
func Collect(results []models.ClipResult) ([]models.VideoClip, error) {
	out := make([]models.VideoClip, 0, len(results))
	var errs []error
	for _, r := range results {
		if r.Failed() {
			err := r.Err
			if err == nil {
				err = &models.GenerationFailure{Index: r.Index, Err: errors.New("no clip produced")}
			}
			errs = append(errs, err)
			continue
		}
		out = append(out, *r.Clip)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
