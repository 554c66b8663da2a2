package assembly

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shorts-sync/internal/models"
)

func argAfter(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestBuildArgsHold(t *testing.T) {
	track, err := Reconcile(audioFor(9.2, 11.5), clipsFor(10, 10), 2, models.TransitionHold)
	if err != nil {
		t.Fatal(err)
	}
	args := BuildArgs(track, []string{"c0.mp4", "c1.mp4"}, []string{"a0.mp3", "a1.mp3"}, "out.mp4", DefaultFade)

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-i c0.mp4 -i c1.mp4 -i a0.mp3 -i a1.mp3") {
		t.Errorf("inputs out of order: %s", joined)
	}

	filter := argAfter(args, "-filter_complex")
	for _, want := range []string{
		"[0:v]setpts=PTS-STARTPTS,tpad=stop_mode=clone:stop_duration=9.200,trim=duration=9.200,setpts=PTS-STARTPTS,setsar=1,format=yuv420p[v0]",
		"[1:v]setpts=PTS-STARTPTS,tpad=stop_mode=clone:stop_duration=11.500,trim=duration=11.500,setpts=PTS-STARTPTS,setsar=1,format=yuv420p[v1]",
		"[2:a]apad,atrim=duration=9.200,asetpts=PTS-STARTPTS[a0]",
		"[3:a]apad,atrim=duration=11.500,asetpts=PTS-STARTPTS[a1]",
		"[v0][v1]concat=n=2:v=1:a=0[vout]",
		"[a0][a1]concat=n=2:v=0:a=1[aout]",
	} {
		if !strings.Contains(filter, want) {
			t.Errorf("filter missing %q\n%s", want, filter)
		}
	}
	if strings.Contains(filter, "fade=") {
		t.Error("hold transition must not fade")
	}
	if args[len(args)-1] != "out.mp4" {
		t.Errorf("last arg = %s", args[len(args)-1])
	}
}

func TestBuildArgsPinsEstimatedSegments(t *testing.T) {
	audio := audioFor(12.0, 9.0)
	audio[0].Method = models.MeasurementEstimated
	track, err := Reconcile(audio, clipsFor(10, 10), 2, models.TransitionHold)
	if err != nil {
		t.Fatal(err)
	}
	filter := argAfter(BuildArgs(track, []string{"c0.mp4", "c1.mp4"}, []string{"a0.mp3", "a1.mp3"}, "out.mp4", DefaultFade), "-filter_complex")

	chains := strings.Split(filter, ";")
	tests := []struct {
		label string
		want  []string
	}{
		// an estimated 12s narration may really be shorter: pad with silence
		{"[a0]", []string{"[2:a]apad,", "atrim=duration=12.000"}},
		{"[a1]", []string{"[3:a]apad,", "atrim=duration=9.000"}},
		// a "10s" clip may render a little short: clone the last frame first
		{"[v0]", []string{"tpad=stop_mode=clone:stop_duration=12.000,trim=duration=12.000"}},
		{"[v1]", []string{"tpad=stop_mode=clone:stop_duration=9.000,trim=duration=9.000"}},
	}
	for _, tt := range tests {
		var chain string
		for _, c := range chains {
			if strings.HasSuffix(c, tt.label) {
				chain = c
			}
		}
		if chain == "" {
			t.Errorf("no chain ends in %s: %s", tt.label, filter)
			continue
		}
		for _, want := range tt.want {
			if !strings.Contains(chain, want) {
				t.Errorf("chain %s = %q, missing %q", tt.label, chain, want)
			}
		}
		pad, cut := strings.Index(chain, "pad"), strings.Index(chain, "trim=")
		if pad < 0 || cut < pad {
			t.Errorf("chain %s must pad before trimming: %q", tt.label, chain)
		}
	}
}

func TestBuildArgsFade(t *testing.T) {
	track, err := Reconcile(audioFor(9.2), clipsFor(10), 1, models.TransitionFade)
	if err != nil {
		t.Fatal(err)
	}
	filter := argAfter(BuildArgs(track, []string{"c.mp4"}, []string{"a.mp3"}, "o.mp4", 0.3), "-filter_complex")
	if !strings.Contains(filter, "fade=t=in:st=0:d=0.300,fade=t=out:st=8.900:d=0.300") {
		t.Errorf("fade chain missing: %s", filter)
	}
}

func TestFFmpegEncoderWritesNarration(t *testing.T) {
	work := t.TempDir()
	var gotName string
	var gotArgs []string
	enc := NewFFmpegEncoder("/usr/bin/ffmpeg", work)
	enc.Run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return nil, nil
	}

	audio := []models.AudioSegment{{SegmentIndex: 0, DurationMeasured: 9, Method: models.MeasurementPrecise, AudioData: []byte("mp3")}}
	clips := []models.VideoClip{{SegmentIndex: 0, Class: 10, MediaURL: "https://cdn/c.mp4"}}
	track, err := Reconcile(audio, clips, 1, models.TransitionHold)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "videos", "run.mp4")
	if err := enc.Encode(context.Background(), track, out); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if gotName != "/usr/bin/ffmpeg" {
		t.Errorf("ran %s", gotName)
	}
	narration := filepath.Join(work, "narration_000.mp3")
	if data, err := os.ReadFile(narration); err != nil || string(data) != "mp3" {
		t.Errorf("narration file = %q, %v", data, err)
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "-i https://cdn/c.mp4 -i "+narration) {
		t.Errorf("unexpected inputs: %s", joined)
	}
}

func TestFFmpegEncoderFailure(t *testing.T) {
	enc := NewFFmpegEncoder("ffmpeg", t.TempDir())
	enc.Run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Invalid data found when processing input"), errors.New("exit status 1")
	}
	track, _ := Reconcile(audioFor(9), clipsFor(10), 1, models.TransitionHold)
	err := enc.Encode(context.Background(), track, filepath.Join(t.TempDir(), "o.mp4"))
	if err == nil || !strings.Contains(err.Error(), "Invalid data") {
		t.Errorf("Encode() error = %v", err)
	}
}
