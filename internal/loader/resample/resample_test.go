package resample

import (
	"math"
	"testing"
)

func approxEqual(a, b, eps float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func TestRatioNoopWhenRatesMatch(t *testing.T) {
	src := []float32{1, 2, 3, 4}
	out := Ratio(src, 1, 48000, 48000)
	if len(out) != len(src) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(src))
	}
	for i, v := range src {
		if out[i] != v {
			t.Errorf("out[%d] = %v, want %v", i, out[i], v)
		}
	}
}

func TestRatioUpsampleDoublesLength(t *testing.T) {
	frames := 100
	src := make([]float32, frames)
	for i := range src {
		src[i] = float32(math.Sin(2 * math.Pi * float64(i) / 10))
	}
	out := Ratio(src, 1, 24000, 48000)
	wantFrames := int(float64(frames) / (24000.0 / 48000.0))
	if len(out) != wantFrames {
		t.Fatalf("len(out) = %d, want %d", len(out), wantFrames)
	}
}

func TestRatioDownsampleHalvesLength(t *testing.T) {
	frames := 200
	src := make([]float32, frames)
	for i := range src {
		src[i] = float32(math.Sin(2 * math.Pi * float64(i) / 20))
	}
	out := Ratio(src, 1, 48000, 24000)
	wantFrames := int(float64(frames) / (48000.0 / 24000.0))
	if len(out) != wantFrames {
		t.Fatalf("len(out) = %d, want %d", len(out), wantFrames)
	}
}

func TestRatioPreservesStereoInterleaving(t *testing.T) {
	// Left channel constant 1, right channel constant -1; resampling must
	// not bleed one channel into the other.
	frames := 50
	src := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		src[i*2] = 1
		src[i*2+1] = -1
	}
	out := Ratio(src, 2, 44100, 48000)
	for i := 0; i < len(out)/2; i++ {
		if !approxEqual(out[i*2], 1, 1e-3) {
			t.Errorf("left[%d] = %v, want ~1", i, out[i*2])
		}
		if !approxEqual(out[i*2+1], -1, 1e-3) {
			t.Errorf("right[%d] = %v, want ~-1", i, out[i*2+1])
		}
	}
}

func TestDownmixStereoToMono(t *testing.T) {
	src := []float32{1, -1, 0.5, 0.5, 1, 1}
	out := Downmix(src, 2)
	want := []float32{0, 0.5, 1}
	if len(out) != len(want) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(want))
	}
	for i, v := range want {
		if !approxEqual(out[i], v, 1e-6) {
			t.Errorf("out[%d] = %v, want %v", i, out[i], v)
		}
	}
}

func TestDownmixMonoPassthrough(t *testing.T) {
	src := []float32{1, 2, 3}
	out := Downmix(src, 1)
	for i, v := range src {
		if out[i] != v {
			t.Errorf("out[%d] = %v, want %v", i, out[i], v)
		}
	}
}
