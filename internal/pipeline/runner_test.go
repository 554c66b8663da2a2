package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"shorts-sync/internal/assembly"
	"shorts-sync/internal/brand"
	"shorts-sync/internal/media"
	"shorts-sync/internal/models"
	"shorts-sync/internal/report"
	"shorts-sync/internal/segment"
	"shorts-sync/internal/storage"
	"shorts-sync/internal/synth"
	"shorts-sync/internal/video"
)

type scriptSource struct{ segments string }

func (s scriptSource) GenerateScript(context.Context, models.Brief) (*segment.Script, error) {
	return &segment.Script{FullScript: "full narration", Segments: json.RawMessage(s.segments)}, nil
}

const threeSegments = `[
	{"start": 0, "end": 10, "text": "Saving starts with one small habit", "visual": "Piggy bank on a kitchen counter"},
	{"start": 10, "end": 20, "text": "Automate a transfer every payday", "visual": "Phone screen showing a scheduled transfer"},
	{"start": 20, "end": 30, "text": "Watch the balance grow", "visual": "Line chart climbing at sunrise"}
]`

// voice returns the narration text as the audio payload.
type voice struct {
	fail map[string]bool
}

func (v voice) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	if v.fail[text] {
		return nil, errors.New("quota exceeded")
	}
	return []byte(text), nil
}

type prober map[string]float64

func (p prober) Measure(_ context.Context, audio []byte, _ int) (models.Measurement, error) {
	return models.Measurement{Seconds: p[string(audio)], Method: models.MeasurementPrecise}, nil
}

type jobs struct {
	mu            sync.Mutex
	classes       map[string]int
	timeoutVisual string
	timedOut      map[string]bool
}

func (j *jobs) CreateTask(_ context.Context, prompt string, class int, _ string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	id := fmt.Sprintf("task-%d", len(j.classes))
	j.classes[id] = class
	if j.timeoutVisual != "" && strings.Contains(prompt, j.timeoutVisual) {
		j.timedOut[id] = true
	}
	return id, nil
}

func (j *jobs) WaitForCompletion(_ context.Context, taskID string, _, _ time.Duration) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.timedOut[taskID] {
		return "", video.ErrWaitTimeout
	}
	return "https://cdn/" + taskID + ".mp4", nil
}

func (j *jobs) Download(_ context.Context, url string) ([]byte, error) {
	return []byte(url), nil
}

type encoder struct{ track *models.AssembledTrack }

func (e *encoder) Encode(_ context.Context, track *models.AssembledTrack, _ string) error {
	e.track = track
	return nil
}

type harness struct {
	runner *Runner
	ledger *storage.SQLite
	jobs   *jobs
	enc    *encoder
}

func newHarness(t *testing.T, durations []float64, cfg Config, failText string, timeoutVisual string) *harness {
	t.Helper()

	var raw []map[string]any
	if err := json.Unmarshal([]byte(threeSegments), &raw); err != nil {
		t.Fatal(err)
	}
	p := prober{}
	for i, d := range durations {
		p[raw[i]["text"].(string)] = d
	}

	ledger, err := storage.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ledger.Close() })

	store, err := media.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	j := &jobs{classes: map[string]int{}, timeoutVisual: timeoutVisual, timedOut: map[string]bool{}}
	gen := video.NewGenerator(j, store, brand.Default())
	gen.PollInterval, gen.MaxWait = time.Millisecond, time.Second

	enc := &encoder{}
	runner := NewRunner(
		segment.NewPlanner(scriptSource{segments: threeSegments}),
		synth.New(voice{fail: map[string]bool{failText: true}}, p, 2),
		gen,
		assembly.NewReconciler(enc, models.TransitionHold),
		ledger,
		store,
		cfg,
	)
	return &harness{runner: runner, ledger: ledger, jobs: j, enc: enc}
}

func classesOf(decisions []models.ClipDecision) []int {
	out := make([]int, len(decisions))
	for i, d := range decisions {
		out[i] = d.Class
	}
	return out
}

func TestRunSynchronized(t *testing.T) {
	h := newHarness(t, []float64{9.2, 11.5, 8.7}, Config{SyncEnabled: true}, "", "")

	res, err := h.runner.Run(context.Background(), models.Brief{Topic: "saving", DurationSeconds: 30})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// 11.5 is not above the 12s threshold, so all three clips are short.
	if got := classesOf(res.Decisions); !reflect.DeepEqual(got, []int{10, 10, 10}) {
		t.Errorf("classes = %v, want [10 10 10]", got)
	}
	if got := res.Track.Indices(); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Errorf("track order = %v", got)
	}
	if h.enc.track != res.Track {
		t.Error("encoder did not receive the track")
	}
	if e := res.Track.Entries[1]; e.Adjustment != models.AdjustHold || e.Effective != 11.5 {
		t.Errorf("entry 1 = %+v, want a hold covering 11.5s", e)
	}

	run, err := h.ledger.GetRun(context.Background(), res.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != models.RunCompleted || run.OutputPath != res.OutputPath || run.FullScript != "full narration" {
		t.Errorf("ledger run = %+v", run)
	}
	recs, err := h.ledger.ListSegments(context.Background(), res.RunID)
	if err != nil {
		t.Fatal(err)
	}
	for i, rec := range recs {
		if rec.DurationMeasured == 0 || rec.ClipClass != 10 || rec.ClipPath == "" || rec.AudioPath == "" || rec.FailedStage != "" {
			t.Errorf("segment record %d = %+v", i, rec)
		}
	}
}

func TestRunSelectsLongClass(t *testing.T) {
	h := newHarness(t, []float64{9.2, 12.5, 8.7}, Config{SyncEnabled: true}, "", "")
	res, err := h.runner.Run(context.Background(), models.Brief{Topic: "saving"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := classesOf(res.Decisions); !reflect.DeepEqual(got, []int{10, 15, 10}) {
		t.Errorf("classes = %v, want [10 15 10]", got)
	}
	if e := res.Track.Entries[1]; e.Adjustment != models.AdjustTruncate || e.Effective != 12.5 {
		t.Errorf("entry 1 = %+v, want truncation to 12.5s", e)
	}
}

func TestRunSyncDisabled(t *testing.T) {
	h := newHarness(t, []float64{9.2, 12.5, 8.7}, Config{SyncEnabled: false}, "", "")
	res, err := h.runner.Run(context.Background(), models.Brief{Topic: "saving"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := classesOf(res.Decisions); !reflect.DeepEqual(got, []int{10, 10, 10}) {
		t.Errorf("classes = %v, want fixed [10 10 10]", got)
	}
	if res.Track.Entries[1].Effective != 12.5 {
		t.Error("reconciliation must still follow measured narration")
	}
}

func TestRunSynthesisFailureNamesSegment(t *testing.T) {
	h := newHarness(t, []float64{9.2, 11.5, 8.7}, Config{SyncEnabled: true}, "Automate a transfer every payday", "")

	res, err := h.runner.Run(context.Background(), models.Brief{Topic: "saving"})
	var sf *models.SynthesisFailure
	if !errors.As(err, &sf) || sf.Index != 1 {
		t.Fatalf("Run() error = %v, want SynthesisFailure for segment 1", err)
	}
	if res.Track != nil || len(h.jobs.classes) != 0 {
		t.Error("no clips may be generated after a synthesis failure")
	}

	failures := report.Failures(err)
	if len(failures) != 1 || failures[0].Index != 1 || failures[0].Stage != models.StageSynthesis {
		t.Errorf("report = %+v", failures)
	}

	run, _ := h.ledger.GetRun(context.Background(), res.RunID)
	if run.Status != models.RunFailed {
		t.Errorf("run status = %s", run.Status)
	}
	recs, _ := h.ledger.ListSegments(context.Background(), res.RunID)
	if recs[1].FailedStage != models.StageSynthesis || recs[0].FailedStage != "" {
		t.Errorf("segment records = %+v", recs)
	}
}

func TestRunGenerationTimeout(t *testing.T) {
	h := newHarness(t, []float64{9.2, 11.5, 8.7}, Config{SyncEnabled: true}, "", "Line chart climbing at sunrise")

	res, err := h.runner.Run(context.Background(), models.Brief{Topic: "saving"})
	var timeout *models.GenerationTimeout
	if !errors.As(err, &timeout) || timeout.Index != 2 {
		t.Fatalf("Run() error = %v, want GenerationTimeout for segment 2", err)
	}
	if h.enc.track != nil {
		t.Error("assembly must not run with a missing clip")
	}
	recs, _ := h.ledger.ListSegments(context.Background(), res.RunID)
	if recs[2].FailedStage != models.StageGeneration {
		t.Errorf("segment 2 record = %+v", recs[2])
	}
}

func TestStart(t *testing.T) {
	h := newHarness(t, []float64{9.2, 11.5, 8.7}, Config{SyncEnabled: true}, "", "")
	runID, done := h.runner.Start(context.Background(), models.Brief{Topic: "saving"})
	out := <-done
	if out.Err != nil {
		t.Fatalf("outcome error = %v", out.Err)
	}
	if out.Result.RunID != runID {
		t.Errorf("run id %s != %s", out.Result.RunID, runID)
	}
	if _, ok := <-done; ok {
		t.Error("channel should be closed after the outcome")
	}
}
