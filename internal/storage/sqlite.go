package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"shorts-sync/internal/models"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(databasePath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", databasePath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Segments are written from many goroutines; a single connection serializes them.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *SQLite) initDB() error {
	query := `
    CREATE TABLE IF NOT EXISTS runs (
        id TEXT PRIMARY KEY,
        topic TEXT NOT NULL,
        duration_seconds INTEGER NOT NULL,
        style TEXT NOT NULL DEFAULT '',
        niche TEXT NOT NULL DEFAULT '',
        brand_voice TEXT NOT NULL DEFAULT '',
        voice_id TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL,
        full_script TEXT NOT NULL DEFAULT '',
        output_path TEXT NOT NULL DEFAULT '',
        error TEXT NOT NULL DEFAULT '',
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );
    CREATE TABLE IF NOT EXISTS segments (
        run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
        idx INTEGER NOT NULL,
        planned_start REAL NOT NULL,
        planned_end REAL NOT NULL,
        text TEXT NOT NULL,
        visual TEXT NOT NULL,
        word_count INTEGER NOT NULL,
        audio_path TEXT NOT NULL DEFAULT '',
        duration_measured REAL NOT NULL DEFAULT 0,
        method TEXT NOT NULL DEFAULT '',
        clip_class INTEGER NOT NULL DEFAULT 0,
        task_id TEXT NOT NULL DEFAULT '',
        clip_url TEXT NOT NULL DEFAULT '',
        clip_path TEXT NOT NULL DEFAULT '',
        clip_cost_usd REAL NOT NULL DEFAULT 0,
        failed_stage TEXT NOT NULL DEFAULT '',
        failure_reason TEXT NOT NULL DEFAULT '',
        PRIMARY KEY (run_id, idx)
    );`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLite) CreateRun(ctx context.Context, run models.Run) error {
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	if run.Status == "" {
		run.Status = models.RunPending
	}
	query := `
    INSERT INTO runs (id, topic, duration_seconds, style, niche, brand_voice, voice_id, status, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Brief.Topic,
		run.Brief.DurationSeconds,
		run.Brief.Style,
		run.Brief.Niche,
		run.Brief.BrandVoice,
		run.Brief.VoiceID,
		run.Status,
		run.CreatedAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	log.Debug().Str("run_id", run.ID).Msg("Run created in DB")
	return nil
}

func (s *SQLite) SaveSegments(ctx context.Context, runID, fullScript string, segments []models.Segment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE runs SET full_script = ?, status = ?, updated_at = ? WHERE id = ?`,
		fullScript, models.RunRunning, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}

	query := `
    INSERT OR REPLACE INTO segments (run_id, idx, planned_start, planned_end, text, visual, word_count)
    VALUES (?, ?, ?, ?, ?, ?, ?);`
	for _, seg := range segments {
		if _, err := tx.ExecContext(ctx, query, runID, seg.Index, seg.PlannedStart, seg.PlannedEnd, seg.Text, seg.Visual, seg.WordCount); err != nil {
			return fmt.Errorf("failed to save segment %d: %w", seg.Index, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) SaveAudio(ctx context.Context, runID string, audio models.AudioSegment) error {
	return s.updateSegment(ctx, runID, audio.SegmentIndex,
		`audio_path = ?, duration_measured = ?, method = ?`,
		audio.AudioPath, audio.DurationMeasured, audio.Method)
}

func (s *SQLite) SaveDecision(ctx context.Context, runID string, decision models.ClipDecision) error {
	return s.updateSegment(ctx, runID, decision.SegmentIndex, `clip_class = ?`, decision.Class)
}

func (s *SQLite) SaveClip(ctx context.Context, runID string, clip models.VideoClip) error {
	return s.updateSegment(ctx, runID, clip.SegmentIndex,
		`clip_class = ?, task_id = ?, clip_url = ?, clip_path = ?, clip_cost_usd = ?`,
		clip.Class, clip.TaskID, clip.MediaURL, clip.LocalPath, clip.CostUSD)
}

func (s *SQLite) MarkSegmentFailed(ctx context.Context, runID string, index int, stage models.Stage, reason string) error {
	return s.updateSegment(ctx, runID, index, `failed_stage = ?, failure_reason = ?`, stage, reason)
}

func (s *SQLite) updateSegment(ctx context.Context, runID string, index int, set string, args ...any) error {
	query := `UPDATE segments SET ` + set + ` WHERE run_id = ? AND idx = ?`
	args = append(args, runID, index)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update segment %d of run %s: %w", index, runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("segment %d of run %s: %w", index, runID, ErrRunNotFound)
	}
	return nil
}

func (s *SQLite) FinishRun(ctx context.Context, runID string, status models.RunStatus, outputPath, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ?, output_path = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, outputPath, errMsg, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	log.Debug().Str("run_id", runID).Str("status", string(status)).Msg("Run finished in DB")
	return nil
}

func (s *SQLite) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	var run models.Run
	query := `
    SELECT id, topic, duration_seconds, style, niche, brand_voice, voice_id, status, full_script, output_path, error, created_at, updated_at,
           (SELECT COALESCE(SUM(clip_cost_usd), 0) FROM segments WHERE run_id = runs.id)
    FROM runs WHERE id = ?`
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&run.ID,
		&run.Brief.Topic,
		&run.Brief.DurationSeconds,
		&run.Brief.Style,
		&run.Brief.Niche,
		&run.Brief.BrandVoice,
		&run.Brief.VoiceID,
		&run.Status,
		&run.FullScript,
		&run.OutputPath,
		&run.Error,
		&run.CreatedAt,
		&run.UpdatedAt,
		&run.CostUSD,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}
	return &run, nil
}

func (s *SQLite) ListSegments(ctx context.Context, runID string) ([]models.SegmentRecord, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	query := `
    SELECT idx, planned_start, planned_end, text, visual, word_count, audio_path, duration_measured, method,
           clip_class, task_id, clip_url, clip_path, clip_cost_usd, failed_stage, failure_reason
    FROM segments WHERE run_id = ? ORDER BY idx`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []models.SegmentRecord
	for rows.Next() {
		rec := models.SegmentRecord{RunID: runID}
		if err := rows.Scan(
			&rec.Index,
			&rec.PlannedStart,
			&rec.PlannedEnd,
			&rec.Text,
			&rec.Visual,
			&rec.WordCount,
			&rec.AudioPath,
			&rec.DurationMeasured,
			&rec.Method,
			&rec.ClipClass,
			&rec.TaskID,
			&rec.ClipURL,
			&rec.ClipPath,
			&rec.ClipCostUSD,
			&rec.FailedStage,
			&rec.FailureReason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
