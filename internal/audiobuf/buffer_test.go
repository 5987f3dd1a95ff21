package audiobuf

import "testing"

func TestNewValidatesInputs(t *testing.T) {
	cases := []struct {
		name     string
		rate     uint32
		channels uint8
		samples  []float32
		wantErr  bool
	}{
		{"ok mono", 48000, 1, []float32{0.1, 0.2, 0.3}, false},
		{"ok stereo", 48000, 2, []float32{0.1, 0.2, 0.3, 0.4}, false},
		{"zero rate", 0, 1, []float32{0.1}, true},
		{"zero channels", 48000, 0, []float32{0.1}, true},
		{"empty samples", 48000, 1, nil, true},
		{"misaligned", 48000, 2, []float32{0.1, 0.2, 0.3}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.rate, tc.channels, tc.samples)
			if (err != nil) != tc.wantErr {
				t.Fatalf("New(%d,%d,%v) err=%v, wantErr=%v", tc.rate, tc.channels, tc.samples, err, tc.wantErr)
			}
		})
	}
}

func TestFramesAndChannels(t *testing.T) {
	b, err := New(48000, 2, make([]float32, 20))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b.Frames() != 10 {
		t.Errorf("Frames() = %d, want 10", b.Frames())
	}
	if b.Channels() != 2 {
		t.Errorf("Channels() = %d, want 2", b.Channels())
	}
	if b.Mono() {
		t.Errorf("Mono() = true, want false")
	}
}

func TestCopyFromWithinBounds(t *testing.T) {
	samples := []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	b, err := New(48000, 1, samples)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dst := make([]float32, 4)
	n := b.CopyFrom(2, dst, 4)
	if n != 4 {
		t.Fatalf("CopyFrom returned %d, want 4", n)
	}
	want := []float32{2, 3, 4, 5}
	for i, v := range want {
		if dst[i] != v {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], v)
		}
	}
}

func TestCopyFromShortRead(t *testing.T) {
	samples := []float32{0, 1, 2, 3, 4}
	b, err := New(48000, 1, samples)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dst := make([]float32, 4)
	n := b.CopyFrom(3, dst, 4)
	if n != 2 {
		t.Fatalf("CopyFrom returned %d, want 2 (short read at end of buffer)", n)
	}
	if dst[0] != 3 || dst[1] != 4 {
		t.Errorf("dst = %v, want [3 4 ...]", dst[:2])
	}
}

func TestCopyFromPastEnd(t *testing.T) {
	b, err := New(48000, 1, []float32{0, 1, 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dst := make([]float32, 4)
	if n := b.CopyFrom(5, dst, 4); n != 0 {
		t.Errorf("CopyFrom past end returned %d, want 0", n)
	}
}
