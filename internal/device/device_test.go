package device

import "testing"

type fakeRing struct {
	data []float32
}

func (r *fakeRing) Pop(dst []float32) int {
	n := len(dst)
	if n > len(r.data) {
		n = len(r.data)
	}
	copy(dst, r.data[:n])
	r.data = r.data[n:]
	return n / 2 // pretend stereo: 2 samples per frame
}

func TestCallbackFillsFromRing(t *testing.T) {
	r := &fakeRing{data: []float32{1, 2, 3, 4}}
	s := NewSink(r, 2)
	buf := make([]float32, 4)
	s.Callback(buf)
	want := []float32{1, 2, 3, 4}
	for i, v := range want {
		if buf[i] != v {
			t.Errorf("buf[%d] = %v, want %v", i, buf[i], v)
		}
	}
	if s.Underruns() != 0 {
		t.Errorf("Underruns() = %d, want 0", s.Underruns())
	}
}

func TestCallbackZeroFillsAndCountsUnderrunOnShortfall(t *testing.T) {
	r := &fakeRing{data: []float32{1, 2}} // only 1 frame available
	s := NewSink(r, 2)
	buf := []float32{9, 9, 9, 9}
	s.Callback(buf)
	if buf[0] != 1 || buf[1] != 2 {
		t.Errorf("first frame = %v, want [1 2]", buf[:2])
	}
	if buf[2] != 0 || buf[3] != 0 {
		t.Errorf("shortfall frame = %v, want [0 0]", buf[2:])
	}
	if s.Underruns() != 1 {
		t.Errorf("Underruns() = %d, want 1", s.Underruns())
	}
}

func TestNullBackendInvokesOnDataAndClosesCleanly(t *testing.T) {
	calls := make(chan struct{}, 8)
	n := Null{}
	h, err := n.Open(48000, 2, 64, func(buf []float32) {
		select {
		case calls <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	<-calls
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
