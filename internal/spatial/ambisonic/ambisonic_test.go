package ambisonic

import (
	"testing"

	"github.com/tr-nc/petalsonic/internal/geom"
)

func TestEncodeDecodeFrontIsBalanced(t *testing.T) {
	acc := NewAccumulator(4)
	mono := []float32{1, 1, 1, 1}
	acc.Encode(mono, geom.Vec3{X: 0, Y: 0, Z: -1}, 1.0)

	out := make([]float32, 8)
	DecodeStereo(acc, out)

	for i := 0; i < 4; i++ {
		l, r := out[i*2], out[i*2+1]
		d := l - r
		if d < 0 {
			d = -d
		}
		if d > 0.05 {
			t.Errorf("frame %d: left=%v right=%v, expected near-equal for a dead-ahead source", i, l, r)
		}
	}
}

func TestEncodeDecodeRightIsLouderOnRightChannel(t *testing.T) {
	acc := NewAccumulator(4)
	mono := []float32{1, 1, 1, 1}
	acc.Encode(mono, geom.Vec3{X: 1, Y: 0, Z: 0}, 1.0)

	out := make([]float32, 8)
	DecodeStereo(acc, out)

	for i := 0; i < 4; i++ {
		l, r := out[i*2], out[i*2+1]
		if r <= l {
			t.Errorf("frame %d: left=%v right=%v, expected right channel louder for a source to the right", i, l, r)
		}
	}
}

func TestResetZeroesAccumulator(t *testing.T) {
	acc := NewAccumulator(2)
	acc.Encode([]float32{1, 1}, geom.Vec3{X: 0, Y: 0, Z: -1}, 1.0)
	acc.Reset()
	for i := range acc.W {
		if acc.W[i] != 0 || acc.X[i] != 0 || acc.Y[i] != 0 || acc.Z[i] != 0 {
			t.Fatalf("Reset left nonzero state at index %d", i)
		}
	}
}
