package device

import (
	"sync"
	"time"
)

// Null is a headless Backend that drains the sink on a ticker goroutine
// instead of a real OS audio callback. It exists for tests and for running
// a World without hardware, mirroring the common audio-engine pattern of a
// loopback/test-mode output path.
type Null struct{}

type nullHandle struct {
	stop chan struct{}
	wg   sync.WaitGroup
}

// Open starts a ticker goroutine that calls onData every
// preferredBufferSizeHint frames' worth of wall-clock time at rate.
func (Null) Open(rate uint32, channels uint8, preferredBufferSizeHint int, onData func(buf []float32)) (Handle, error) {
	if preferredBufferSizeHint <= 0 {
		preferredBufferSizeHint = 512
	}
	period := time.Duration(float64(preferredBufferSizeHint) / float64(rate) * float64(time.Second))
	if period <= 0 {
		period = time.Millisecond
	}

	h := &nullHandle{stop: make(chan struct{})}
	buf := make([]float32, preferredBufferSizeHint*int(channels))

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				onData(buf)
			}
		}
	}()

	return h, nil
}

func (h *nullHandle) Close() error {
	close(h.stop)
	h.wg.Wait()
	return nil
}
