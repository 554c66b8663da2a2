// Package probe measures how long synthesized narration actually plays.
package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"shorts-sync/internal/models"
)

// WordsPerSecond is the narration rate assumed by the fallback estimate (150 wpm).
const WordsPerSecond = 2.5

const DefaultTimeout = 10 * time.Second

var (
	ErrEmptyAudio  = errors.New("empty audio payload")
	ErrNoWordCount = errors.New("no word count available for estimate")
	ErrNonNumeric  = errors.New("probe returned a non-numeric duration")
	ErrNonPositive = errors.New("probe returned a non-positive duration")
)

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Prober measures audio duration with ffprobe and falls back to a word-count
// estimate when the measurement is unavailable.
type Prober struct {
	Path    string
	Timeout time.Duration
	Run     CommandRunner
}

// New creates a Prober for the given ffprobe binary.
func New(path string, timeout time.Duration) *Prober {
	if path == "" {
		path = "ffprobe"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{Path: path, Timeout: timeout, Run: execRunner}
}

// Estimate returns the fallback duration for a word count.
func Estimate(wordCount int) (float64, error) {
	if wordCount <= 0 {
		return 0, ErrNoWordCount
	}
	return float64(wordCount) / WordsPerSecond, nil
}

// Measure returns the playback duration of audio. The result is tagged
// precise when ffprobe produced it and estimated when the word count did.
func (p *Prober) Measure(ctx context.Context, audio []byte, wordCount int) (models.Measurement, error) {
	if len(audio) > 0 {
		seconds, err := p.precise(ctx, audio)
		if err == nil {
			return models.Measurement{Seconds: seconds, Method: models.MeasurementPrecise}, nil
		}
		log.Warn().Err(err).Int("word_count", wordCount).Msg("Precise duration probe unavailable, falling back to word-count estimate")
	}

	estimate, err := Estimate(wordCount)
	if err != nil {
		if len(audio) == 0 {
			return models.Measurement{}, fmt.Errorf("%w and %w", ErrEmptyAudio, err)
		}
		return models.Measurement{}, err
	}
	return models.Measurement{Seconds: estimate, Method: models.MeasurementEstimated}, nil
}

func (p *Prober) precise(ctx context.Context, audio []byte) (float64, error) {
	run := p.Run
	if run == nil {
		run = execRunner
	}

	tmp, err := os.CreateTemp("", "segment-*.mp3")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := run(probeCtx, p.Path,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		tmp.Name(),
	)
	if err != nil {
		if probeCtx.Err() != nil {
			return 0, fmt.Errorf("ffprobe timed out after %s: %w", timeout, probeCtx.Err())
		}
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	return ParseDuration(out)
}

// ParseDuration parses ffprobe's bare duration output.
func ParseDuration(out []byte) (float64, error) {
	text := strings.TrimSpace(string(out))
	seconds, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNonNumeric, text)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrNonPositive, seconds)
	}
	return seconds, nil
}
