// Package pipeline runs a brief through planning, narration, clip generation
// and assembly, recording every step in the ledger.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"shorts-sync/internal/clipdur"
	"shorts-sync/internal/models"
	"shorts-sync/internal/segment"
	"shorts-sync/internal/storage"
	"shorts-sync/internal/synth"
	"shorts-sync/internal/video"
)

type Planner interface {
	Plan(ctx context.Context, brief models.Brief) (*segment.Plan, error)
}

type Synchronizer interface {
	Synchronize(ctx context.Context, segments []models.Segment, voiceID string) []models.AudioResult
}

type ClipGenerator interface {
	Generate(ctx context.Context, runID string, segments []models.Segment, decisions []models.ClipDecision) []models.ClipResult
}

type Assembler interface {
	Assemble(ctx context.Context, audio []models.AudioSegment, clips []models.VideoClip, planned int, outputPath string) (*models.AssembledTrack, error)
}

// MediaStore keeps narration files and decides where final videos go.
type MediaStore interface {
	SaveAudio(runID string, index int, data []byte) (string, error)
	VideoPath(runID string) string
}

type Config struct {
	// SyncEnabled selects clip lengths from measured narration. When false
	// every clip is requested at DefaultClass.
	SyncEnabled    bool
	DefaultClass   int
	DefaultVoiceID string
}

type Runner struct {
	planner   Planner
	synth     Synchronizer
	generator ClipGenerator
	assembler Assembler
	ledger    storage.Ledger
	media     MediaStore
	cfg       Config
}

func NewRunner(planner Planner, synchronizer Synchronizer, generator ClipGenerator, assembler Assembler, ledger storage.Ledger, media MediaStore, cfg Config) *Runner {
	if cfg.DefaultClass <= 0 {
		cfg.DefaultClass = clipdur.ShortClass
	}
	return &Runner{
		planner:   planner,
		synth:     synchronizer,
		generator: generator,
		assembler: assembler,
		ledger:    ledger,
		media:     media,
		cfg:       cfg,
	}
}

// Result is everything a run produced. RunID is always set, even on failure.
type Result struct {
	RunID      string
	FullScript string
	Segments   []models.Segment
	Audio      []models.AudioSegment
	Decisions  []models.ClipDecision
	Clips      []models.VideoClip
	Track      *models.AssembledTrack
	OutputPath string
}

// Outcome is delivered once by Start when the run ends.
type Outcome struct {
	Result *Result
	Err    error
}

// Run executes a brief synchronously.
func (r *Runner) Run(ctx context.Context, brief models.Brief) (*Result, error) {
	return r.run(ctx, uuid.NewString(), brief)
}

// Start executes a brief in the background. The channel receives exactly one
// Outcome and is then closed.
func (r *Runner) Start(ctx context.Context, brief models.Brief) (string, <-chan Outcome) {
	runID := uuid.NewString()
	done := make(chan Outcome, 1)
	go func() {
		defer close(done)
		res, err := r.run(ctx, runID, brief)
		done <- Outcome{Result: res, Err: err}
	}()
	return runID, done
}

func (r *Runner) run(ctx context.Context, runID string, brief models.Brief) (*Result, error) {
	brief = brief.WithDefaults()
	if brief.VoiceID == "" {
		brief.VoiceID = r.cfg.DefaultVoiceID
	}

	logger := log.With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx)
	res := &Result{RunID: runID}
	started := time.Now()

	if err := r.ledger.CreateRun(ctx, models.Run{ID: runID, Brief: brief, Status: models.RunPending}); err != nil {
		return res, err
	}
	logger.Info().Str("topic", brief.Topic).Msg("Run started")

	plan, err := r.planner.Plan(ctx, brief)
	if err != nil {
		return res, r.fail(ctx, runID, err)
	}
	res.FullScript, res.Segments = plan.FullScript, plan.Segments
	if err := r.ledger.SaveSegments(ctx, runID, plan.FullScript, plan.Segments); err != nil {
		return res, r.fail(ctx, runID, err)
	}

	audioResults := r.synth.Synchronize(ctx, plan.Segments, brief.VoiceID)
	for i := range audioResults {
		ar := &audioResults[i]
		if ar.Failed() {
			continue
		}
		path, err := r.media.SaveAudio(runID, ar.Index, ar.Audio.AudioData)
		if err != nil {
			logger.Warn().Err(err).Int("segment", ar.Index).Msg("Could not store narration file")
		} else {
			ar.Audio.AudioPath = path
		}
		r.record(ctx, "audio", r.ledger.SaveAudio(ctx, runID, *ar.Audio))
	}
	audio, err := synth.Collect(audioResults)
	if err != nil {
		return res, r.fail(ctx, runID, err)
	}
	res.Audio = audio

	if r.cfg.SyncEnabled {
		res.Decisions = clipdur.DecideAll(audio)
	} else {
		res.Decisions = clipdur.Fixed(audio, r.cfg.DefaultClass)
	}
	for _, d := range res.Decisions {
		if m := clipdur.Mismatch(d); m < 0 {
			logger.Warn().Int("segment", d.SegmentIndex).Float64("measured", d.Measured).Int("class", d.Class).Msg("Narration outlasts the clip, last frame will be held")
		}
		r.record(ctx, "decision", r.ledger.SaveDecision(ctx, runID, d))
	}

	clipResults := r.generator.Generate(ctx, runID, plan.Segments, res.Decisions)
	for _, cr := range clipResults {
		if !cr.Failed() {
			r.record(ctx, "clip", r.ledger.SaveClip(ctx, runID, *cr.Clip))
		}
	}
	clips, err := video.Collect(clipResults)
	if err != nil {
		return res, r.fail(ctx, runID, err)
	}
	res.Clips = clips

	output := r.media.VideoPath(runID)
	track, err := r.assembler.Assemble(ctx, audio, clips, len(plan.Segments), output)
	if err != nil {
		return res, r.fail(ctx, runID, err)
	}
	res.Track, res.OutputPath = track, output

	if err := r.ledger.FinishRun(context.WithoutCancel(ctx), runID, models.RunCompleted, output, ""); err != nil {
		logger.Warn().Err(err).Msg("Could not mark run completed")
	}
	logger.Info().
		Int("segments", len(track.Entries)).
		Float64("duration", track.Duration()).
		Dur("elapsed", time.Since(started)).
		Str("output", output).
		Msg("Run completed")
	return res, nil
}

// fail records every per-segment failure in err against its segment, marks
// the run failed and returns err unchanged.
func (r *Runner) fail(ctx context.Context, runID string, err error) error {
	logger := zerolog.Ctx(ctx)
	bg := context.WithoutCancel(ctx)

	for _, se := range segmentErrors(err) {
		r.record(ctx, "failure", r.ledger.MarkSegmentFailed(bg, runID, se.SegmentIndex(), se.Stage(), se.Error()))
	}
	var incomplete *models.IncompleteAssemblyError
	if errors.As(err, &incomplete) {
		for _, i := range incomplete.MissingAudio {
			r.record(ctx, "failure", r.ledger.MarkSegmentFailed(bg, runID, i, models.StageAssembly, "missing audio"))
		}
		for _, i := range incomplete.MissingVideo {
			r.record(ctx, "failure", r.ledger.MarkSegmentFailed(bg, runID, i, models.StageAssembly, "missing video clip"))
		}
	}

	if ferr := r.ledger.FinishRun(bg, runID, models.RunFailed, "", err.Error()); ferr != nil {
		logger.Warn().Err(ferr).Msg("Could not mark run failed")
	}
	logger.Error().Err(err).Msg("Run failed")
	return err
}

func (r *Runner) record(ctx context.Context, what string, err error) {
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("record", what).Msg("Ledger write failed")
	}
}

func segmentErrors(err error) []models.SegmentError {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []models.SegmentError
		for _, e := range joined.Unwrap() {
			out = append(out, segmentErrors(e)...)
		}
		return out
	}
	var se models.SegmentError
	if errors.As(err, &se) {
		return []models.SegmentError{se}
	}
	return nil
}
