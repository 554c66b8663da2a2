package probe

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"shorts-sync/internal/models"
)

func fakeRunner(out string, err error) CommandRunner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(out), err
	}
}

func TestEstimateTwentyFiveWords(t *testing.T) {
	got, err := Estimate(25)
	if err != nil {
		t.Fatalf("Estimate(25) error: %v", err)
	}
	if got != 10.0 {
		t.Errorf("Estimate(25) = %v, want exactly 10.0", got)
	}
}

func TestEstimateRequiresWords(t *testing.T) {
	for _, n := range []int{0, -3} {
		if _, err := Estimate(n); !errors.Is(err, ErrNoWordCount) {
			t.Errorf("Estimate(%d) error = %v, want ErrNoWordCount", n, err)
		}
	}
}

func TestMeasurePrecise(t *testing.T) {
	p := &Prober{Path: "ffprobe", Timeout: time.Second, Run: fakeRunner("9.204000\n", nil)}
	m, err := p.Measure(context.Background(), []byte("audio"), 25)
	if err != nil {
		t.Fatalf("Measure error: %v", err)
	}
	if m.Method != models.MeasurementPrecise {
		t.Errorf("Method = %q, want precise", m.Method)
	}
	if math.Abs(m.Seconds-9.204) > 1e-9 {
		t.Errorf("Seconds = %v, want 9.204", m.Seconds)
	}
}

func TestMeasureFallsBackOnProbeError(t *testing.T) {
	p := &Prober{Path: "ffprobe", Timeout: time.Second, Run: fakeRunner("", errors.New("exec: not found"))}
	m, err := p.Measure(context.Background(), []byte("audio"), 25)
	if err != nil {
		t.Fatalf("Measure error: %v", err)
	}
	if m.Method != models.MeasurementEstimated || m.Seconds != 10.0 {
		t.Errorf("Measure = %+v, want 10.0 estimated", m)
	}
}

func TestMeasureFallsBackOnNonNumeric(t *testing.T) {
	p := &Prober{Path: "ffprobe", Timeout: time.Second, Run: fakeRunner("N/A\n", nil)}
	m, err := p.Measure(context.Background(), []byte("audio"), 5)
	if err != nil {
		t.Fatalf("Measure error: %v", err)
	}
	if m.Method != models.MeasurementEstimated || m.Seconds != 2.0 {
		t.Errorf("Measure = %+v, want 2.0 estimated", m)
	}
}

func TestMeasureFallsBackOnTimeout(t *testing.T) {
	slow := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	p := &Prober{Path: "ffprobe", Timeout: 10 * time.Millisecond, Run: slow}
	m, err := p.Measure(context.Background(), []byte("audio"), 10)
	if err != nil {
		t.Fatalf("Measure error: %v", err)
	}
	if m.Method != models.MeasurementEstimated || m.Seconds != 4.0 {
		t.Errorf("Measure = %+v, want 4.0 estimated", m)
	}
}

func TestMeasureFailsWhenBothPathsFail(t *testing.T) {
	p := &Prober{Path: "ffprobe", Timeout: time.Second, Run: fakeRunner("garbage", nil)}
	if _, err := p.Measure(context.Background(), []byte("corrupt"), 0); !errors.Is(err, ErrNoWordCount) {
		t.Errorf("Measure error = %v, want ErrNoWordCount", err)
	}
	if _, err := p.Measure(context.Background(), nil, 0); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("Measure error = %v, want ErrEmptyAudio", err)
	}
}

func TestMeasureIsIdempotent(t *testing.T) {
	p := &Prober{Path: "ffprobe", Timeout: time.Second, Run: fakeRunner("11.5", nil)}
	payload := []byte("same bytes")
	first, err := p.Measure(context.Background(), payload, 30)
	if err != nil {
		t.Fatalf("first Measure error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := p.Measure(context.Background(), payload, 30)
		if err != nil {
			t.Fatalf("repeat Measure error: %v", err)
		}
		if again.Method != first.Method {
			t.Fatalf("method changed from %q to %q", first.Method, again.Method)
		}
		if math.Abs(again.Seconds-first.Seconds) > 1e-9 {
			t.Fatalf("duration changed from %v to %v", first.Seconds, again.Seconds)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr error
	}{
		{"8.700000\n", 8.7, nil},
		{"  12 ", 12, nil},
		{"", 0, ErrNonNumeric},
		{"NaN", 0, ErrNonNumeric},
		{"0", 0, ErrNonPositive},
		{"-1.5", 0, ErrNonPositive},
	}
	for _, tt := range tests {
		got, err := ParseDuration([]byte(tt.in))
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseDuration(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil || math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ParseDuration(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestProbeArguments(t *testing.T) {
	var gotName string
	var gotArgs []string
	p := &Prober{Path: "/usr/bin/ffprobe", Timeout: time.Second, Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte("1.0"), nil
	}}
	if _, err := p.Measure(context.Background(), []byte("x"), 1); err != nil {
		t.Fatalf("Measure error: %v", err)
	}
	if gotName != "/usr/bin/ffprobe" {
		t.Errorf("binary = %q", gotName)
	}
	if len(gotArgs) != 7 || gotArgs[3] != "format=duration" {
		t.Errorf("unexpected args %v", gotArgs)
	}
}
