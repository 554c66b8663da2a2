package assembly

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"shorts-sync/internal/models"
)

// DefaultFade is the longest fade applied at each clip edge with the fade transition.
const DefaultFade = 0.3

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FFmpegEncoder concatenates clips and narration with a single ffmpeg invocation.
type FFmpegEncoder struct {
	Path string
	// WorkDir receives narration payloads that have no file yet. A temp dir is used when empty.
	WorkDir string
	Fade    float64
	Run     CommandRunner
}

func NewFFmpegEncoder(path, workDir string) *FFmpegEncoder {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegEncoder{Path: path, WorkDir: workDir, Fade: DefaultFade, Run: execRunner}
}

func (e *FFmpegEncoder) Encode(ctx context.Context, track *models.AssembledTrack, outputPath string) error {
	if track == nil || len(track.Entries) == 0 {
		return fmt.Errorf("nothing to encode")
	}

	workDir := e.WorkDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "assembly-*")
		if err != nil {
			return fmt.Errorf("failed to create work dir: %w", err)
		}
		defer os.RemoveAll(dir)
		workDir = dir
	}

	clips := make([]string, len(track.Entries))
	audio := make([]string, len(track.Entries))
	for i, entry := range track.Entries {
		clips[i] = entry.Clip.LocalPath
		if clips[i] == "" {
			clips[i] = entry.Clip.MediaURL
		}
		if clips[i] == "" {
			return fmt.Errorf("segment %d: clip has no source", entry.Clip.SegmentIndex)
		}

		audio[i] = entry.Audio.AudioPath
		if audio[i] == "" {
			if len(entry.Audio.AudioData) == 0 {
				return fmt.Errorf("segment %d: narration has no source", entry.Audio.SegmentIndex)
			}
			path := filepath.Join(workDir, fmt.Sprintf("narration_%03d.mp3", entry.Audio.SegmentIndex))
			if err := os.WriteFile(path, entry.Audio.AudioData, 0o644); err != nil {
				return fmt.Errorf("failed to write narration: %w", err)
			}
			audio[i] = path
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	fade := e.Fade
	if fade <= 0 {
		fade = DefaultFade
	}
	args := BuildArgs(track, clips, audio, outputPath, fade)

	run := e.Run
	if run == nil {
		run = execRunner
	}
	out, err := run(ctx, e.Path, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, lastLines(string(out), 5))
	}
	log.Ctx(ctx).Info().Str("output", outputPath).Msg("Track encoded")
	return nil
}

// BuildArgs returns the ffmpeg arguments that render track. clips and audio
// are the input locations for each entry, in track order.
func BuildArgs(track *models.AssembledTrack, clips, audio []string, outputPath string, fade float64) []string {
	n := len(track.Entries)
	args := []string{"-hide_banner", "-loglevel", "error"}
	for _, c := range clips {
		args = append(args, "-i", c)
	}
	for _, a := range audio {
		args = append(args, "-i", a)
	}

	var filters []string
	var vLabels, aLabels strings.Builder
	for i, entry := range track.Entries {
		// Each stream is padded then cut to exactly Effective seconds: video
		// clones its last frame, narration is padded with silence.
		e := secs(entry.Effective)
		chain := []string{
			"setpts=PTS-STARTPTS",
			"tpad=stop_mode=clone:stop_duration=" + e,
			"trim=duration=" + e,
			"setpts=PTS-STARTPTS",
		}
		if track.Transition == models.TransitionFade {
			d := math.Min(fade, entry.Effective/4)
			chain = append(chain,
				"fade=t=in:st=0:d="+secs(d),
				"fade=t=out:st="+secs(entry.Effective-d)+":d="+secs(d),
			)
		}
		chain = append(chain, "setsar=1", "format=yuv420p")
		filters = append(filters, fmt.Sprintf("[%d:v]%s[v%d]", i, strings.Join(chain, ","), i))
		filters = append(filters, fmt.Sprintf("[%d:a]apad,atrim=duration=%s,asetpts=PTS-STARTPTS[a%d]", n+i, e, i))
		fmt.Fprintf(&vLabels, "[v%d]", i)
		fmt.Fprintf(&aLabels, "[a%d]", i)
	}
	filters = append(filters,
		fmt.Sprintf("%sconcat=n=%d:v=1:a=0[vout]", vLabels.String(), n),
		fmt.Sprintf("%sconcat=n=%d:v=0:a=1[aout]", aLabels.String(), n),
	)

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "[vout]",
		"-map", "[aout]",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		"-y", outputPath,
	)
	return args
}

func secs(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
