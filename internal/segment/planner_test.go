package segment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"shorts-sync/internal/models"
)

type stubSource struct {
	script *Script
	err    error
	brief  models.Brief
}

func (s *stubSource) GenerateScript(_ context.Context, brief models.Brief) (*Script, error) {
	s.brief = brief
	return s.script, s.err
}

const threeSegments = `[
	{"start": 0, "end": 9.5, "text": "Most people never learn how compound interest works.", "visual": "Close up of coins stacking on a desk", "word_count": 8},
	{"start": 9.5, "end": 20, "text": "Start with a small amount and leave it alone for years.", "visual": "Calendar pages flipping in a sunny kitchen", "word_count": 12},
	{"start": 20, "end": 30, "text": "Time does the heavy lifting for you.", "visual": "Hourglass on a bookshelf at dusk"}
]`

func TestParseValid(t *testing.T) {
	segs, err := Parse([]byte(threeSegments))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	for i, s := range segs {
		if s.Index != i {
			t.Errorf("segment %d has index %d", i, s.Index)
		}
		if s.WordCount != CountWords(s.Text) {
			t.Errorf("segment %d word count = %d, want %d", i, s.WordCount, CountWords(s.Text))
		}
	}
	if segs[1].WordCount != 12 {
		t.Errorf("segment 1 word count = %d, want 12", segs[1].WordCount)
	}
	if segs[2].PlannedEnd != 30 {
		t.Errorf("last end = %v, want 30", segs[2].PlannedEnd)
	}
}

func TestParseSortsByStart(t *testing.T) {
	raw := `[
		{"start": 10, "end": 20, "text": "second", "visual": "b"},
		{"start": 0, "end": 10, "text": "first", "visual": "a"}
	]`
	segs, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if segs[0].Text != "first" || segs[0].Index != 0 || segs[1].Index != 1 {
		t.Errorf("unexpected order: %+v", segs)
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		entry int
		field string
	}{
		{"null", `null`, -1, ""},
		{"empty input", ``, -1, ""},
		{"empty list", `[]`, -1, ""},
		{"not an array", `{"start": 0}`, -1, ""},
		{"missing start", `[{"end": 5, "text": "a", "visual": "b"}]`, 0, "start"},
		{"missing end", `[{"start": 0, "text": "a", "visual": "b"}]`, 0, "end"},
		{"missing text", `[{"start": 0, "end": 5, "visual": "b"}]`, 0, "text"},
		{"missing visual", `[{"start": 0, "end": 5, "text": "a"}]`, 0, "visual"},
		{"blank visual", `[{"start": 0, "end": 5, "text": "a", "visual": "  "}]`, 0, "visual"},
		{"blank text", `[{"start": 0, "end": 5, "text": "", "visual": "b"}]`, 0, "text"},
		{"end before start", `[{"start": 5, "end": 2, "text": "a", "visual": "b"}]`, 0, "end"},
		{"negative start", `[{"start": -1, "end": 2, "text": "a", "visual": "b"}]`, 0, "start"},
		{"string start", `[{"start": "0", "end": 2, "text": "a", "visual": "b"}]`, 0, "start"},
		{"fractional word count", `[{"start": 0, "end": 2, "text": "a", "visual": "b", "word_count": 1.5}]`, 0, "word_count"},
		{"second entry bad", `[{"start": 0, "end": 5, "text": "a", "visual": "b"}, {"start": 5, "end": 9, "text": "c"}]`, 1, "visual"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			var malformed *models.MalformedScriptError
			if !errors.As(err, &malformed) {
				t.Fatalf("Parse() error = %v, want MalformedScriptError", err)
			}
			if malformed.Entry != tt.entry {
				t.Errorf("entry = %d, want %d", malformed.Entry, tt.entry)
			}
			if malformed.Field != tt.field {
				t.Errorf("field = %q, want %q", malformed.Field, tt.field)
			}
		})
	}
}

func TestCheckContiguity(t *testing.T) {
	segs := []models.Segment{
		{Index: 0, PlannedStart: 0, PlannedEnd: 10},
		{Index: 1, PlannedStart: 10.02, PlannedEnd: 20},
		{Index: 2, PlannedStart: 21, PlannedEnd: 30},
		{Index: 3, PlannedStart: 29, PlannedEnd: 40},
	}
	if got := CheckContiguity(segs); got != 2 {
		t.Errorf("CheckContiguity() = %d, want 2", got)
	}
	if segs[2].PlannedStart != 21 {
		t.Error("CheckContiguity must not modify segments")
	}
}

func TestPlannerPlan(t *testing.T) {
	src := &stubSource{script: &Script{FullScript: "full text", Segments: json.RawMessage(threeSegments)}}
	plan, err := NewPlanner(src).Plan(context.Background(), models.Brief{Topic: "compound interest", DurationSeconds: 30})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.FullScript != "full text" || len(plan.Segments) != 3 {
		t.Errorf("unexpected plan: %+v", plan)
	}
	if src.brief.Style != models.DefaultStyle {
		t.Errorf("brief passed to source was not defaulted: %+v", src.brief)
	}
	if got := Span(plan.Segments); got != 30 {
		t.Errorf("Span() = %v, want 30", got)
	}
}

func TestPlannerSourceErrors(t *testing.T) {
	upstream := errors.New("quota exceeded")
	_, err := NewPlanner(&stubSource{err: upstream}).Plan(context.Background(), models.Brief{Topic: "x"})
	if !errors.Is(err, upstream) {
		t.Errorf("Plan() error = %v, want wrapped upstream error", err)
	}

	_, err = NewPlanner(&stubSource{}).Plan(context.Background(), models.Brief{Topic: "x"})
	var malformed *models.MalformedScriptError
	if !errors.As(err, &malformed) {
		t.Errorf("Plan() with nil script error = %v, want MalformedScriptError", err)
	}

	_, err = NewPlanner(&stubSource{script: &Script{FullScript: "text only"}}).Plan(context.Background(), models.Brief{Topic: "x"})
	if !errors.As(err, &malformed) {
		t.Errorf("Plan() with no segments error = %v, want MalformedScriptError", err)
	}
}
