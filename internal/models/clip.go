package models

// ClipDecision is the duration class chosen for one segment. It is derived from
// the measured audio and recomputed whenever needed.
type ClipDecision struct {
	SegmentIndex int     `json:"segment_index"`
	Measured     float64 `json:"measured"`
	Class        int     `json:"class"`
}

// VideoClip references a generated clip for one segment.
type VideoClip struct {
	SegmentIndex int    `json:"segment_index"`
	Class        int    `json:"class"`
	TaskID       string `json:"task_id,omitempty"`
	MediaURL     string `json:"media_url,omitempty"`
	LocalPath    string `json:"local_path,omitempty"`
	// CostUSD is the estimated generation price of the clip.
	CostUSD float64 `json:"cost_usd,omitempty"`
}

// ClipResult holds either the clip for one index or the reason it is missing.
type ClipResult struct {
	Index int
	Clip  *VideoClip
	Err   error
}

// Failed reports whether this slot carries a failure marker.
func (r ClipResult) Failed() bool {
	return r.Err != nil || r.Clip == nil
}

// Transition is the concatenation policy between consecutive clips.
type Transition string

const (
	TransitionHold Transition = "hold"
	TransitionFade Transition = "fade"
)

// Adjustment describes what reconciliation did to a clip.
type Adjustment string

const (
	AdjustExact    Adjustment = "exact"
	AdjustTruncate Adjustment = "truncate"
	AdjustHold     Adjustment = "hold"
)

// TrackEntry pairs a clip with its audio and the on-screen time it gets.
type TrackEntry struct {
	Clip       VideoClip
	Audio      AudioSegment
	Effective  float64
	Adjustment Adjustment
	// Gap is the time the final frame is held when the clip is shorter than the audio.
	Gap float64
}

// AssembledTrack is the reconciled, index-ordered sequence ready for encoding.
type AssembledTrack struct {
	Entries    []TrackEntry
	Transition Transition
}

// Duration returns the total on-screen duration of the track.
func (t AssembledTrack) Duration() float64 {
	var total float64
	for _, e := range t.Entries {
		total += e.Effective
	}
	return total
}

// Indices returns the segment indices in track order.
func (t AssembledTrack) Indices() []int {
	out := make([]int, len(t.Entries))
	for i, e := range t.Entries {
		out[i] = e.Clip.SegmentIndex
	}
	return out
}
