package audio

import (
	"testing"

	apperrors "github.com/awslabs/aws-lex-browser-audio-capture/internal/errors"
)

func TestDownsampleIdentity(t *testing.T) {
	in := []float32{0.1, -0.2, 0.3}
	out, err := Downsample(in, 16000, 16000)
	if err != nil {
		t.Fatalf("Downsample error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDownsampleAverages(t *testing.T) {
	in := []float32{0, 0.3, 0.6, 0.9, 0.9, 0.9}
	out, err := Downsample(in, 48000, 16000)
	if err != nil {
		t.Fatalf("Downsample error: %v", err)
	}

	want := []float32{0.3, 0.9}
	if len(out) != len(want) {
		t.Fatalf("len = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if diff := out[i] - want[i]; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestDownsampleLength(t *testing.T) {
	tests := []struct {
		name     string
		inLen    int
		from, to int
		wantLen  int
	}{
		{"48k to 16k", 4096, 48000, 16000, 1365},
		{"44.1k to 16k", 4096, 44100, 16000, 1486},
		{"tail rounds up", 5, 48000, 16000, 2},
		{"too short", 1, 48000, 16000, 0},
		{"empty", 0, 48000, 16000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Downsample(make([]float32, tt.inLen), tt.from, tt.to)
			if err != nil {
				t.Fatalf("Downsample error: %v", err)
			}
			if len(out) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(out), tt.wantLen)
			}
		})
	}
}

func TestDownsampleNonIntegralRatioStaysInRange(t *testing.T) {
	in := make([]float32, 1000)
	for i := range in {
		in[i] = 1
	}
	out, err := Downsample(in, 44100, 16000)
	if err != nil {
		t.Fatalf("Downsample error: %v", err)
	}
	for i, v := range out {
		if v != 1 {
			t.Fatalf("out[%d] = %v, want 1", i, v)
		}
	}
}

func TestDownsampleRejectsUpsampling(t *testing.T) {
	_, err := Downsample([]float32{0}, 8000, 16000)
	if !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Errorf("err = %v, want INVALID_ARGUMENT", err)
	}

	_, err = Downsample([]float32{0}, 0, 16000)
	if !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Errorf("err = %v, want INVALID_ARGUMENT for zero rate", err)
	}
}
