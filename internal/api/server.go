// Package api exposes run submission and run status over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"shorts-sync/internal/models"
	"shorts-sync/internal/pipeline"
	"shorts-sync/internal/storage"
)

// Starter launches a run in the background.
type Starter interface {
	Start(ctx context.Context, brief models.Brief) (string, <-chan pipeline.Outcome)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type RunRequest struct {
	Topic           string `json:"topic" binding:"required"`
	DurationSeconds int    `json:"duration_seconds"`
	Style           string `json:"style"`
	Niche           string `json:"niche"`
	BrandVoice      string `json:"brand_voice"`
	VoiceID         string `json:"voice_id"`
}

type Server struct {
	runs   Starter
	ledger storage.Ledger
	// runs outlive the request that started them but not the process.
	baseCtx context.Context
	engine  *gin.Engine
}

func NewServer(baseCtx context.Context, runs Starter, ledger storage.Ledger) *Server {
	s := &Server{runs: runs, ledger: ledger, baseCtx: baseCtx}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/healthz", s.health)
	r.POST("/runs", s.createRun)
	r.GET("/runs/:id", s.getRun)
	r.GET("/runs/:id/segments", s.listSegments)
	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) createRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "topic must not be blank"})
		return
	}

	runID, done := s.runs.Start(s.baseCtx, models.Brief{
		Topic:           strings.TrimSpace(req.Topic),
		DurationSeconds: req.DurationSeconds,
		Style:           req.Style,
		Niche:           req.Niche,
		BrandVoice:      req.BrandVoice,
		VoiceID:         req.VoiceID,
	})
	go func() {
		out := <-done
		if out.Err != nil {
			log.Warn().Err(out.Err).Str("run_id", runID).Msg("API run failed")
			return
		}
		log.Info().Str("run_id", runID).Str("output", out.Result.OutputPath).Msg("API run completed")
	}()

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

func (s *Server) getRun(c *gin.Context) {
	run, err := s.ledger.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) listSegments(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.ledger.GetRun(c.Request.Context(), id); err != nil {
		s.ledgerError(c, err)
		return
	}
	segments, err := s.ledger.ListSegments(c.Request.Context(), id)
	if err != nil {
		s.ledgerError(c, err)
		return
	}
	if segments == nil {
		segments = []models.SegmentRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": id, "segments": segments})
}

func (s *Server) ledgerError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	log.Error().Err(err).Str("path", c.FullPath()).Msg("ledger lookup failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}
