package audio

import (
	"math"
	"testing"
)

func TestFloatToPCM16(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32768},
		{0.5, 16383},
		{-0.5, -16384},
		{2, 32767},
		{-3, -32768},
		{float32(math.NaN()), 0},
	}

	for _, tt := range tests {
		if got := FloatToPCM16(tt.in); got != tt.want {
			t.Errorf("FloatToPCM16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPCM16ToFloat(t *testing.T) {
	if got := PCM16ToFloat(32767); got != 1 {
		t.Errorf("PCM16ToFloat(32767) = %v, want 1", got)
	}
	if got := PCM16ToFloat(-32768); got != -1 {
		t.Errorf("PCM16ToFloat(-32768) = %v, want -1", got)
	}
}

func TestTimeDomainBytes(t *testing.T) {
	got := TimeDomainBytes([]float32{0, -1, 1, 0.5, -2})
	want := []byte{128, 0, 255, 192, 0}

	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
