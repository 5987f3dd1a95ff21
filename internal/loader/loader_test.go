package loader

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
)

// sineDecoder is a minimal loader.Decoder test double that returns a pure
// sine tone at a fixed rate/channel count, ignoring whatever bytes are fed
// to it — it exists only to exercise Load's post-decode pipeline.
type sineDecoder struct {
	rate     uint32
	channels int
	freq     float64
	seconds  float64
	amp      float32
}

func (d sineDecoder) Decode(io.Reader) (Decoded, error) {
	frames := int(float64(d.rate) * d.seconds)
	samples := make([]float32, frames*d.channels)
	for i := 0; i < frames; i++ {
		v := d.amp * float32(math.Sin(2*math.Pi*d.freq*float64(i)/float64(d.rate)))
		for c := 0; c < d.channels; c++ {
			samples[i*d.channels+c] = v
		}
	}
	return Decoded{Rate: d.rate, Channels: d.channels, Samples: samples}, nil
}

type errDecoder struct{ err error }

func (d errDecoder) Decode(io.Reader) (Decoded, error) { return Decoded{}, d.err }

type emptyDecoder struct{}

func (emptyDecoder) Decode(io.Reader) (Decoded, error) {
	return Decoded{Rate: 48000, Channels: 1, Samples: nil}, nil
}

func TestLoadPropagatesDecodeError(t *testing.T) {
	_, err := Load(bytes.NewReader(nil), errDecoder{err: errors.New("boom")}, Options{})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadRejectsEmptyInput(t *testing.T) {
	_, err := Load(bytes.NewReader(nil), emptyDecoder{}, Options{})
	if err == nil {
		t.Fatal("expected error for empty decoded input")
	}
}

func TestLoadForceMonoOnStereoAveragesChannels(t *testing.T) {
	dec := constStereoDecoder{rate: 48000, left: 1, right: -1, frames: 100}
	buf, err := Load(bytes.NewReader(nil), dec, Options{ConvertToMono: MonoForce})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if buf.Channels() != 1 {
		t.Fatalf("Channels() = %d, want 1", buf.Channels())
	}
	for i, s := range buf.Samples() {
		if s != 0 {
			t.Errorf("sample[%d] = %v, want 0 (average of 1 and -1)", i, s)
		}
	}
}

type constStereoDecoder struct {
	rate, frames int
	left, right  float32
}

func (d constStereoDecoder) Decode(io.Reader) (Decoded, error) {
	samples := make([]float32, d.frames*2)
	for i := 0; i < d.frames; i++ {
		samples[i*2] = d.left
		samples[i*2+1] = d.right
	}
	return Decoded{Rate: uint32(d.rate), Channels: 2, Samples: samples}, nil
}

// TestLoadRoundTripRecoversFrequency reproduces spec §8's loader round-trip
// property: loading a known tone at rate R and re-analyzing its fundamental
// after resampling to a different target rate recovers the original
// frequency within 0.1%.
func TestLoadRoundTripRecoversFrequency(t *testing.T) {
	const srcRate = 44100
	const targetRate = 48000
	const freq = 440.0

	dec := sineDecoder{rate: srcRate, channels: 1, freq: freq, seconds: 0.25, amp: 0.5}
	buf, err := Load(bytes.NewReader(nil), dec, Options{TargetRate: targetRate})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if buf.Rate() != targetRate {
		t.Fatalf("Rate() = %d, want %d", buf.Rate(), targetRate)
	}

	got := fundamentalFreq(buf.Samples(), buf.Rate())
	tolerance := freq * 0.001
	if math.Abs(got-freq) > tolerance {
		t.Errorf("recovered frequency = %.4f, want within %.4f of %.1f", got, tolerance, freq)
	}
}

func TestLoadNormalizePeaksAtMinus1dBFS(t *testing.T) {
	dec := sineDecoder{rate: 48000, channels: 1, freq: 220, seconds: 0.1, amp: 0.1}
	buf, err := Load(bytes.NewReader(nil), dec, Options{Normalize: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var peak float32
	for _, s := range buf.Samples() {
		a := s
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	if math.Abs(float64(peak)-peakTargetLinear) > 0.01 {
		t.Errorf("peak = %v, want ~%v", peak, peakTargetLinear)
	}
}

func TestLoadNormalizeNoopOnSilence(t *testing.T) {
	dec := constStereoDecoder{rate: 48000, left: 0, right: 0, frames: 10}
	buf, err := Load(bytes.NewReader(nil), dec, Options{Normalize: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, s := range buf.Samples() {
		if s != 0 {
			t.Errorf("silent input should remain silent, got %v", s)
		}
	}
}

func TestLoadDefaultsTargetRateToSourceRate(t *testing.T) {
	dec := sineDecoder{rate: 22050, channels: 1, freq: 100, seconds: 0.05, amp: 0.1}
	buf, err := Load(bytes.NewReader(nil), dec, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if buf.Rate() != 22050 {
		t.Errorf("Rate() = %d, want 22050 (no TargetRate override)", buf.Rate())
	}
}
