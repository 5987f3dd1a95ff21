package spatial

import (
	"testing"

	"github.com/tr-nc/petalsonic/internal/geom"
	"github.com/tr-nc/petalsonic/internal/raytrace"
)

// fakeOccluder reports a hit at a fixed distance with a fixed material,
// letting tests exercise SteamAudio's occlusion term without a real scene.
type fakeOccluder struct {
	hitDistance float32
	material    raytrace.AcousticMaterial
}

func (f fakeOccluder) CastRay(_, _ [3]float32, maxDistance float32) (raytrace.Hit, bool) {
	if f.hitDistance >= maxDistance {
		return raytrace.Hit{}, false
	}
	return raytrace.Hit{Distance: f.hitDistance, MaterialIdx: 0}, true
}

func (f fakeOccluder) Material(_ int) raytrace.AcousticMaterial { return f.material }

func newPreparedSteamAudio(t *testing.T) *SteamAudio {
	t.Helper()
	s := NewSteamAudio(nil, nil)
	if err := s.Prepare(48000, 16, 2); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return s
}

func TestSteamAudioRejectsUnsupportedChannels(t *testing.T) {
	s := NewSteamAudio(nil, nil)
	if err := s.Prepare(48000, 16, 4); err == nil {
		t.Fatal("expected error for quad output")
	}
}

func TestSteamAudioProcessUnknownSourceErrors(t *testing.T) {
	s := newPreparedSteamAudio(t)
	out := make([]float32, 32)
	err := s.Process([]Input{{ID: 1, Mono: make([]float32, 16), Gain: 1}}, out)
	if err == nil {
		t.Fatal("expected ErrUnknownSource")
	}
}

func TestSteamAudioSourceToTheRightFavorsRightChannel(t *testing.T) {
	s := newPreparedSteamAudio(t)
	if err := s.CreateSource(1, geom.Vec3{X: 3, Y: 0, Z: 0}); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	mono := make([]float32, 16)
	for i := range mono {
		mono[i] = 1
	}
	out := make([]float32, 32)
	if err := s.Process([]Input{{ID: 1, Mono: mono, Gain: 1}}, out); err != nil {
		t.Fatalf("Process: %v", err)
	}
	for i := 0; i < 16; i++ {
		if out[i*2+1] <= out[i*2] {
			t.Errorf("frame %d: left=%v right=%v, expected right channel louder", i, out[i*2], out[i*2+1])
		}
	}
}

func TestSteamAudioAirAbsorptionDarkensFarSource(t *testing.T) {
	s := newPreparedSteamAudio(t)
	s.CreateSource(1, geom.Vec3{X: 0, Y: 0, Z: -50})

	mono := make([]float32, 64)
	for i := range mono {
		if i%2 == 0 {
			mono[i] = 1
		} else {
			mono[i] = -1
		}
	}
	src := s.sources[1]
	filtered := s.applyAirAbsorption(src, mono, 50)

	// A high-frequency alternating signal should lose amplitude under the
	// distance-tracking low-pass.
	var inEnergy, outEnergy float64
	for i, v := range mono {
		inEnergy += float64(v * v)
		outEnergy += float64(filtered[i] * filtered[i])
	}
	if outEnergy >= inEnergy {
		t.Errorf("expected air absorption to reduce high-frequency energy: in=%v out=%v", inEnergy, outEnergy)
	}
}

func TestSteamAudioOcclusionAttenuatesBehindWall(t *testing.T) {
	occluder := fakeOccluder{
		hitDistance: 2,
		material:    raytrace.AcousticMaterial{Transmission: [raytrace.Bands]float32{0.5, 0.1, 0.5}},
	}
	withWall := NewSteamAudio(nil, occluder)
	if err := withWall.Prepare(48000, 16, 2); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	withWall.CreateSource(1, geom.Vec3{X: 5, Y: 0, Z: 0})

	withoutWall := NewSteamAudio(nil, nil)
	if err := withoutWall.Prepare(48000, 16, 2); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	withoutWall.CreateSource(1, geom.Vec3{X: 5, Y: 0, Z: 0})

	mono := make([]float32, 16)
	for i := range mono {
		mono[i] = 1
	}

	outWall := make([]float32, 32)
	if err := withWall.Process([]Input{{ID: 1, Mono: mono, Gain: 1}}, outWall); err != nil {
		t.Fatalf("Process: %v", err)
	}
	outClear := make([]float32, 32)
	if err := withoutWall.Process([]Input{{ID: 1, Mono: mono, Gain: 1}}, outClear); err != nil {
		t.Fatalf("Process: %v", err)
	}

	var wallEnergy, clearEnergy float64
	for i := range outWall {
		wallEnergy += float64(outWall[i] * outWall[i])
		clearEnergy += float64(outClear[i] * outClear[i])
	}
	if wallEnergy >= clearEnergy {
		t.Errorf("expected occlusion to reduce energy: occluded=%v clear=%v", wallEnergy, clearEnergy)
	}
}

func TestSteamAudioNoAbsorptionWithinReferenceDistance(t *testing.T) {
	s := newPreparedSteamAudio(t)
	s.CreateSource(1, geom.Vec3{X: 0, Y: 0, Z: -1})
	src := s.sources[1]
	mono := []float32{1, -1, 1, -1}
	filtered := s.applyAirAbsorption(src, mono, 1)
	for i, v := range mono {
		if filtered[i] != v {
			t.Errorf("sample %d = %v, want unchanged %v (within reference distance)", i, filtered[i], v)
		}
	}
}
