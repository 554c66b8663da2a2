package models

import "time"

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is the ledger record of one pipeline execution.
type Run struct {
	ID         string    `json:"id" bson:"_id"`
	Brief      Brief     `json:"brief" bson:"brief"`
	Status     RunStatus `json:"status" bson:"status"`
	FullScript string    `json:"full_script,omitempty" bson:"full_script,omitempty"`
	OutputPath string    `json:"output_path,omitempty" bson:"output_path,omitempty"`
	Error      string    `json:"error,omitempty" bson:"error,omitempty"`
	// CostUSD sums the estimated clip costs recorded for the run's segments.
	CostUSD   float64   `json:"cost_usd" bson:"-"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// SegmentRecord is the operator-facing status of one segment in a run.
type SegmentRecord struct {
	RunID            string            `json:"run_id" bson:"run_id"`
	Index            int               `json:"index" bson:"index"`
	PlannedStart     float64           `json:"planned_start" bson:"planned_start"`
	PlannedEnd       float64           `json:"planned_end" bson:"planned_end"`
	Text             string            `json:"text" bson:"text"`
	Visual           string            `json:"visual" bson:"visual"`
	WordCount        int               `json:"word_count" bson:"word_count"`
	AudioPath        string            `json:"audio_path,omitempty" bson:"audio_path,omitempty"`
	DurationMeasured float64           `json:"duration_measured,omitempty" bson:"duration_measured,omitempty"`
	Method           MeasurementMethod `json:"measurement_method,omitempty" bson:"measurement_method,omitempty"`
	ClipClass        int               `json:"clip_class,omitempty" bson:"clip_class,omitempty"`
	TaskID           string            `json:"task_id,omitempty" bson:"task_id,omitempty"`
	ClipURL          string            `json:"clip_url,omitempty" bson:"clip_url,omitempty"`
	ClipPath         string            `json:"clip_path,omitempty" bson:"clip_path,omitempty"`
	ClipCostUSD      float64           `json:"clip_cost_usd,omitempty" bson:"clip_cost_usd,omitempty"`
	FailedStage      Stage             `json:"failed_stage,omitempty" bson:"failed_stage,omitempty"`
	FailureReason    string            `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
}
