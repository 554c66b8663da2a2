package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shorts-sync/internal/models"
)

const DefaultMongoDatabase = "shorts_sync"

type Mongo struct {
	client   *mongo.Client
	runs     *mongo.Collection
	segments *mongo.Collection
}

func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("mongo storage needs MONGO_URI")
	}
	if database == "" {
		database = DefaultMongoDatabase
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	m := &Mongo{client: client, runs: db.Collection("runs"), segments: db.Collection("segments")}

	_, err = m.segments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "run_id", Value: 1}, {Key: "index", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create segment index: %w", err)
	}

	log.Info().Str("database", database).Msg("Connected to MongoDB")
	return m, nil
}

func (m *Mongo) CreateRun(ctx context.Context, run models.Run) error {
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	if run.Status == "" {
		run.Status = models.RunPending
	}
	run.UpdatedAt = now
	if _, err := m.runs.InsertOne(ctx, run); err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	return nil
}

func (m *Mongo) SaveSegments(ctx context.Context, runID, fullScript string, segments []models.Segment) error {
	res, err := m.runs.UpdateOne(ctx,
		bson.M{"_id": runID},
		bson.M{"$set": bson.M{"full_script": fullScript, "status": models.RunRunning, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}
	if res.MatchedCount == 0 {
		return ErrRunNotFound
	}

	for _, seg := range segments {
		rec := models.SegmentRecord{
			RunID:        runID,
			Index:        seg.Index,
			PlannedStart: seg.PlannedStart,
			PlannedEnd:   seg.PlannedEnd,
			Text:         seg.Text,
			Visual:       seg.Visual,
			WordCount:    seg.WordCount,
		}
		_, err := m.segments.ReplaceOne(ctx,
			bson.M{"run_id": runID, "index": seg.Index},
			rec,
			options.Replace().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("failed to save segment %d: %w", seg.Index, err)
		}
	}
	return nil
}

func (m *Mongo) SaveAudio(ctx context.Context, runID string, audio models.AudioSegment) error {
	return m.updateSegment(ctx, runID, audio.SegmentIndex, bson.M{
		"audio_path":         audio.AudioPath,
		"duration_measured":  audio.DurationMeasured,
		"measurement_method": audio.Method,
	})
}

func (m *Mongo) SaveDecision(ctx context.Context, runID string, decision models.ClipDecision) error {
	return m.updateSegment(ctx, runID, decision.SegmentIndex, bson.M{"clip_class": decision.Class})
}

func (m *Mongo) SaveClip(ctx context.Context, runID string, clip models.VideoClip) error {
	return m.updateSegment(ctx, runID, clip.SegmentIndex, bson.M{
		"clip_class":    clip.Class,
		"task_id":       clip.TaskID,
		"clip_url":      clip.MediaURL,
		"clip_path":     clip.LocalPath,
		"clip_cost_usd": clip.CostUSD,
	})
}

func (m *Mongo) MarkSegmentFailed(ctx context.Context, runID string, index int, stage models.Stage, reason string) error {
	return m.updateSegment(ctx, runID, index, bson.M{"failed_stage": stage, "failure_reason": reason})
}

func (m *Mongo) updateSegment(ctx context.Context, runID string, index int, set bson.M) error {
	res, err := m.segments.UpdateOne(ctx, bson.M{"run_id": runID, "index": index}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update segment %d of run %s: %w", index, runID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("segment %d of run %s: %w", index, runID, ErrRunNotFound)
	}
	return nil
}

func (m *Mongo) FinishRun(ctx context.Context, runID string, status models.RunStatus, outputPath, errMsg string) error {
	res, err := m.runs.UpdateOne(ctx,
		bson.M{"_id": runID},
		bson.M{"$set": bson.M{
			"status":      status,
			"output_path": outputPath,
			"error":       errMsg,
			"updated_at":  time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if res.MatchedCount == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (m *Mongo) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	var run models.Run
	err := m.runs.FindOne(ctx, bson.M{"_id": runID}).Decode(&run)
	if err == mongo.ErrNoDocuments {
		return nil, ErrRunNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}

	cursor, err := m.segments.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"run_id": runID}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "cost": bson.M{"$sum": "$clip_cost_usd"}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sum costs of run %s: %w", runID, err)
	}
	defer cursor.Close(ctx)
	var totals []struct {
		Cost float64 `bson:"cost"`
	}
	if err := cursor.All(ctx, &totals); err != nil {
		return nil, fmt.Errorf("failed to decode costs of run %s: %w", runID, err)
	}
	if len(totals) > 0 {
		run.CostUSD = totals[0].Cost
	}
	return &run, nil
}

func (m *Mongo) ListSegments(ctx context.Context, runID string) ([]models.SegmentRecord, error) {
	if _, err := m.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	cursor, err := m.segments.Find(ctx, bson.M{"run_id": runID}, options.Find().SetSort(bson.D{{Key: "index", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query segments of run %s: %w", runID, err)
	}
	defer cursor.Close(ctx)

	var out []models.SegmentRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode segments: %w", err)
	}
	return out, nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
