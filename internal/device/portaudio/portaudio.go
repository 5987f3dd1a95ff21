// Package portaudio adapts github.com/gordonklaus/portaudio to
// internal/device.Backend: an output-only stream driven by a blocking
// write loop, matching the pack's own AudioEngine playback-loop style.
package portaudio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/tr-nc/petalsonic/internal/device"
)

// Backend opens a real PortAudio output stream. Callers must have already
// called portaudio.Initialize() once per process (and portaudio.Terminate()
// at shutdown); this package does not manage global PortAudio state, since
// a process may host multiple Worlds sharing one PortAudio session.
type Backend struct {
	// DeviceIndex selects an output device from portaudio.Devices(), or -1
	// for the system default.
	DeviceIndex int
}

type handle struct {
	stream *portaudio.Stream
	stop   chan struct{}
	wg     sync.WaitGroup
}

// Open starts an output stream at rate/channels and begins invoking onData
// once per buffer from a dedicated goroutine.
func (b Backend) Open(rate uint32, channels uint8, preferredBufferSizeHint int, onData func(buf []float32)) (device.Handle, error) {
	outDev, err := b.resolveDevice()
	if err != nil {
		return nil, fmt.Errorf("portaudio: resolve output device: %w", err)
	}

	if preferredBufferSizeHint <= 0 {
		preferredBufferSizeHint = 512
	}
	buf := make([]float32, preferredBufferSizeHint*int(channels))

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   outDev,
			Channels: int(channels),
			Latency:  outDev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: preferredBufferSizeHint,
	}

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("portaudio: start stream: %w", err)
	}

	h := &handle{stream: stream, stop: make(chan struct{})}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-h.stop:
				return
			default:
			}
			onData(buf)
			if err := stream.Write(); err != nil {
				return
			}
		}
	}()

	return h, nil
}

func (b Backend) resolveDevice() (*portaudio.DeviceInfo, error) {
	if b.DeviceIndex < 0 {
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if b.DeviceIndex >= len(devices) {
		return nil, fmt.Errorf("device index %d out of range (%d devices)", b.DeviceIndex, len(devices))
	}
	return devices[b.DeviceIndex], nil
}

func (h *handle) Close() error {
	close(h.stop)
	h.wg.Wait()
	if err := h.stream.Stop(); err != nil {
		h.stream.Close()
		return fmt.Errorf("portaudio: stop stream: %w", err)
	}
	return h.stream.Close()
}
