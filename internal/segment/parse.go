package segment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"shorts-sync/internal/models"
)

// ContiguityEpsilon is how far adjacent windows may drift before a gap or
// overlap is reported.
const ContiguityEpsilon = 0.05

const (
	MinWindowSeconds = 8.0
	MaxWindowSeconds = 12.0
)

type rawSegment struct {
	Start     *float64 `json:"start"`
	End       *float64 `json:"end"`
	Text      *string  `json:"text"`
	Visual    *string  `json:"visual"`
	WordCount *int     `json:"word_count"`
}

// Parse validates a raw segment list from the script source and normalizes it
// into ordered Segments. Anything missing or mistyped is a MalformedScriptError.
func Parse(raw []byte) ([]models.Segment, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, &models.MalformedScriptError{Entry: -1, Reason: "no segment list"}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &models.MalformedScriptError{Entry: -1, Reason: "segments is not a JSON array: " + err.Error()}
	}
	if len(entries) == 0 {
		return nil, &models.MalformedScriptError{Entry: -1, Reason: "segment list is empty"}
	}

	segments := make([]models.Segment, 0, len(entries))
	for i, entry := range entries {
		seg, err := parseEntry(i, entry)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}

	sort.SliceStable(segments, func(a, b int) bool {
		return segments[a].PlannedStart < segments[b].PlannedStart
	})
	for i := range segments {
		segments[i].Index = i
	}

	CheckContiguity(segments)
	checkVisuals(segments)
	return segments, nil
}

func parseEntry(i int, entry json.RawMessage) (models.Segment, error) {
	var rs rawSegment
	if err := json.Unmarshal(entry, &rs); err != nil {
		field := ""
		if te, ok := err.(*json.UnmarshalTypeError); ok {
			field = te.Field
		}
		return models.Segment{}, &models.MalformedScriptError{Entry: i, Field: field, Reason: err.Error()}
	}

	switch {
	case rs.Start == nil:
		return models.Segment{}, &models.MalformedScriptError{Entry: i, Field: "start", Reason: "missing"}
	case rs.End == nil:
		return models.Segment{}, &models.MalformedScriptError{Entry: i, Field: "end", Reason: "missing"}
	case rs.Text == nil:
		return models.Segment{}, &models.MalformedScriptError{Entry: i, Field: "text", Reason: "missing"}
	case rs.Visual == nil:
		return models.Segment{}, &models.MalformedScriptError{Entry: i, Field: "visual", Reason: "missing"}
	}

	start, end := *rs.Start, *rs.End
	text := strings.TrimSpace(*rs.Text)
	visual := strings.TrimSpace(*rs.Visual)

	if math.IsNaN(start) || math.IsInf(start, 0) || start < 0 {
		return models.Segment{}, &models.MalformedScriptError{Entry: i, Field: "start", Reason: fmt.Sprintf("invalid value %v", start)}
	}
	if math.IsNaN(end) || math.IsInf(end, 0) || end <= start {
		return models.Segment{}, &models.MalformedScriptError{Entry: i, Field: "end", Reason: fmt.Sprintf("end %v is not after start %v", end, start)}
	}
	if text == "" {
		return models.Segment{}, &models.MalformedScriptError{Entry: i, Field: "text", Reason: "empty"}
	}
	if visual == "" {
		return models.Segment{}, &models.MalformedScriptError{Entry: i, Field: "visual", Reason: "empty"}
	}

	words := CountWords(text)
	if rs.WordCount != nil && *rs.WordCount != words {
		log.Debug().Int("entry", i).Int("reported", *rs.WordCount).Int("counted", words).Msg("Script source word count disagrees with text, using counted value")
	}

	return models.Segment{
		PlannedStart: start,
		PlannedEnd:   end,
		Text:         text,
		Visual:       visual,
		WordCount:    words,
	}, nil
}

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// CheckContiguity logs gaps and overlaps between adjacent segments and returns
// how many boundaries were off. Nothing is corrected.
func CheckContiguity(segments []models.Segment) int {
	issues := 0
	for i := 0; i+1 < len(segments); i++ {
		cur, next := segments[i], segments[i+1]
		delta := next.PlannedStart - cur.PlannedEnd
		switch {
		case delta > ContiguityEpsilon:
			issues++
			log.Warn().Int("segment", cur.Index).Float64("gap", delta).Msg("Gap between planned segments")
		case delta < -ContiguityEpsilon:
			issues++
			log.Warn().Int("segment", cur.Index).Float64("overlap", -delta).Msg("Planned segments overlap")
		}
	}
	for _, s := range segments {
		if d := s.PlannedDuration(); d < MinWindowSeconds || d > MaxWindowSeconds {
			log.Debug().Int("segment", s.Index).Float64("window", d).Msg("Planned window outside the 8-12s target")
		}
	}
	return issues
}

func checkVisuals(segments []models.Segment) {
	seen := make(map[string]int, len(segments))
	for _, s := range segments {
		key := strings.ToLower(s.Visual)
		if prev, ok := seen[key]; ok {
			log.Warn().Int("segment", s.Index).Int("same_as", prev).Msg("Segment reuses another segment's visual description")
			continue
		}
		seen[key] = s.Index
	}
}
