package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"shorts-sync/internal/i18n"
	"shorts-sync/internal/models"
)

func TestFailuresFromJoinedErrors(t *testing.T) {
	err := errors.Join(
		&models.GenerationTimeout{Index: 3, TaskID: "t3", Waited: 5 * time.Minute},
		&models.SynthesisFailure{Index: 1, Err: errors.New("quota exceeded")},
	)
	got := Failures(err)
	if len(got) != 2 {
		t.Fatalf("got %d failures, want 2", len(got))
	}
	if got[0].Index != 1 || got[0].Stage != models.StageSynthesis || got[0].Reason != "quota exceeded" {
		t.Errorf("first failure = %+v", got[0])
	}
	if got[1].Index != 3 || got[1].Stage != models.StageGeneration || !strings.Contains(got[1].Reason, "timed out") {
		t.Errorf("second failure = %+v", got[1])
	}
}

func TestFailuresRunLevel(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		index int
		stage models.Stage
	}{
		{"malformed", &models.MalformedScriptError{Entry: -1, Reason: "segment list is empty"}, -1, models.StageScript},
		{"incomplete", &models.IncompleteAssemblyError{Planned: 6, MissingVideo: []int{4}}, 4, models.StageAssembly},
		{"cancelled", context.Canceled, -1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Failures(tt.err)
			if len(got) != 1 || got[0].Index != tt.index || got[0].Stage != tt.stage {
				t.Errorf("Failures() = %+v", got)
			}
		})
	}
	if Failures(nil) != nil {
		t.Error("Failures(nil) should be nil")
	}
}

func TestRender(t *testing.T) {
	l := i18n.NewLocalizer("en")
	out := Render(l, "run-9", []Failure{
		{Index: 2, Stage: models.StageProbe, Reason: "no duration"},
		{Index: -1, Stage: models.StageScript, Reason: "empty"},
	})
	want := "Run run-9 failed.\nSegment 2 failed during duration measurement: no duration\nThe run failed during script planning: empty"
	if out != want {
		t.Errorf("Render() =\n%s\nwant\n%s", out, want)
	}
}
