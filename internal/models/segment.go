package models

// Segment is one timed slice of narration paired with the imagery it should show.
// Segments are created once by the planner and never mutated afterwards.
type Segment struct {
	Index        int     `json:"index"`
	PlannedStart float64 `json:"planned_start"`
	PlannedEnd   float64 `json:"planned_end"`
	Text         string  `json:"text"`
	Visual       string  `json:"visual"`
	WordCount    int     `json:"word_count"`
}

// PlannedDuration returns the length of the planned window in seconds.
func (s Segment) PlannedDuration() float64 {
	return s.PlannedEnd - s.PlannedStart
}

// Brief carries the topic and style parameters a run is planned from.
type Brief struct {
	Topic           string `json:"topic"`
	DurationSeconds int    `json:"duration_seconds"`
	Style           string `json:"style"`
	Niche           string `json:"niche"`
	BrandVoice      string `json:"brand_voice"`
	VoiceID         string `json:"voice_id,omitempty"`
}

const (
	DefaultStyle      = "educational"
	DefaultDuration   = 60
	DefaultNiche      = "finance"
	DefaultBrandVoice = "Professional yet conversational"
)

// WithDefaults fills the empty fields of a brief.
func (b Brief) WithDefaults() Brief {
	if b.DurationSeconds <= 0 {
		b.DurationSeconds = DefaultDuration
	}
	if b.Style == "" {
		b.Style = DefaultStyle
	}
	if b.Niche == "" {
		b.Niche = DefaultNiche
	}
	if b.BrandVoice == "" {
		b.BrandVoice = DefaultBrandVoice
	}
	return b
}
