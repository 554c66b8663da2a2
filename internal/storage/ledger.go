// Package storage records every run and the status of each of its segments.
package storage

import (
	"context"
	"errors"
	"fmt"

	"shorts-sync/internal/models"
)

var ErrRunNotFound = errors.New("run not found")

// Ledger persists runs and per-segment progress.
type Ledger interface {
	CreateRun(ctx context.Context, run models.Run) error
	// SaveSegments stores the planned segments and moves the run to running.
	SaveSegments(ctx context.Context, runID, fullScript string, segments []models.Segment) error
	SaveAudio(ctx context.Context, runID string, audio models.AudioSegment) error
	SaveDecision(ctx context.Context, runID string, decision models.ClipDecision) error
	SaveClip(ctx context.Context, runID string, clip models.VideoClip) error
	MarkSegmentFailed(ctx context.Context, runID string, index int, stage models.Stage, reason string) error
	FinishRun(ctx context.Context, runID string, status models.RunStatus, outputPath, errMsg string) error
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	ListSegments(ctx context.Context, runID string) ([]models.SegmentRecord, error)
	Close() error
}

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

type Config struct {
	Driver        string
	DatabasePath  string
	MongoURI      string
	MongoDatabase string
}

// Open returns the ledger selected by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Ledger, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		return NewSQLite(cfg.DatabasePath)
	case DriverMongo:
		return NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
