package models

import "fmt"

// MeasurementMethod records how a duration was obtained.
type MeasurementMethod string

const (
	MeasurementPrecise   MeasurementMethod = "precise"
	MeasurementEstimated MeasurementMethod = "estimated"
)

// Measurement is the result of probing one audio payload.
type Measurement struct {
	Seconds float64
	Method  MeasurementMethod
}

// AudioSegment is the synthesized voice for one segment. DurationMeasured is
// the single source of truth for every timing decision downstream.
type AudioSegment struct {
	SegmentIndex     int               `json:"segment_index"`
	AudioData        []byte            `json:"-"`
	AudioPath        string            `json:"audio_path,omitempty"`
	DurationMeasured float64           `json:"duration_measured"`
	Method           MeasurementMethod `json:"measurement_method"`
	PlannedStart     float64           `json:"planned_start"`
	PlannedEnd       float64           `json:"planned_end"`
}

// Validate rejects audio segments that cannot drive timing decisions.
func (a AudioSegment) Validate() error {
	if a.DurationMeasured <= 0 {
		return fmt.Errorf("segment %d: measured duration %.3fs is not positive", a.SegmentIndex, a.DurationMeasured)
	}
	if a.Method != MeasurementPrecise && a.Method != MeasurementEstimated {
		return fmt.Errorf("segment %d: unknown measurement method %q", a.SegmentIndex, a.Method)
	}
	return nil
}

// AudioResult holds either the audio for one index or the reason it is missing.
type AudioResult struct {
	Index int
	Audio *AudioSegment
	Err   error
}

// Failed reports whether this slot carries a failure marker.
func (r AudioResult) Failed() bool {
	return r.Err != nil || r.Audio == nil
}
