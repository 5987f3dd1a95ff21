// Command petalsonicd is a reference process: it opens a World against the
// default PortAudio output device, registers a synthetic roster of sources
// (or a file loaded from -audio), and logs lifecycle events until
// interrupted.
package main

import (
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/tr-nc/petalsonic"
	"github.com/tr-nc/petalsonic/internal/audiobuf"
	"github.com/tr-nc/petalsonic/internal/loader"
	"github.com/tr-nc/petalsonic/internal/loader/wavdecode"
)

func main() {
	sampleRate := flag.Uint("rate", 48000, "world sample rate in Hz")
	blockSize := flag.Uint("block-size", 1024, "render block size in frames")
	ringBlocks := flag.Uint("ring-blocks", 8, "frame ring capacity in blocks")
	maxSources := flag.Uint("max-sources", 64, "hard cap on concurrent sources")
	audioPath := flag.String("audio", "", "WAV file to loop (48kHz mono recommended); empty generates a synthetic tone")
	telemetryAddr := flag.String("telemetry-addr", "", "address for the optional telemetry websocket (empty disables it)")
	flag.Parse()

	if err := portaudio.Initialize(); err != nil {
		log.Fatalf("[petalsonicd] portaudio init: %v", err)
	}
	defer portaudio.Terminate()

	cfg := petalsonic.WorldConfig{
		SampleRate:        uint32(*sampleRate),
		BlockSize:         uint32(*blockSize),
		Channels:          2,
		RingBlocks:        uint32(*ringBlocks),
		MaxSources:        uint32(*maxSources),
		TimingEveryNTicks: 100,
	}
	if *telemetryAddr != "" {
		cfg.Telemetry = petalsonic.TelemetryConfig{Enabled: true, Addr: *telemetryAddr}
	}

	world, err := petalsonic.New(cfg)
	if err != nil {
		log.Fatalf("[petalsonicd] world init: %v", err)
	}
	defer world.Shutdown()

	spatialBuf, nonSpatialBuf := loadRoster(*audioPath, cfg.SampleRate)

	spatialID, err := world.RegisterAudio(spatialBuf, petalsonic.Spatial(petalsonic.Vec3{X: 2, Y: 0, Z: 0}, 0.8))
	if err != nil {
		log.Fatalf("[petalsonicd] register spatial source: %v", err)
	}
	if err := world.Play(spatialID, petalsonic.Infinite()); err != nil {
		log.Fatalf("[petalsonicd] play spatial source: %v", err)
	}

	flatID, err := world.RegisterAudio(nonSpatialBuf, petalsonic.NonSpatial(0.4))
	if err != nil {
		log.Fatalf("[petalsonicd] register ambient source: %v", err)
	}
	if err := world.Play(flatID, petalsonic.Infinite()); err != nil {
		log.Fatalf("[petalsonicd] play ambient source: %v", err)
	}

	log.Printf("[petalsonicd] running at %d Hz, block=%d, ring_blocks=%d", *sampleRate, *blockSize, *ringBlocks)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-sigCh:
			log.Println("[petalsonicd] shutting down")
			return
		case <-ticker.C:
			for _, ev := range world.PollEvents() {
				log.Printf("[petalsonicd] event kind=%s source=%d", ev.Kind, ev.SourceID)
			}
		}
	}
}

// loadRoster builds the two demo buffers: a mono spatial tone, and
// a stereo non-spatial ambient bed. If path is set, the spatial source loops
// that file instead of the synthetic tone.
func loadRoster(path string, rate uint32) (spatial, nonSpatial *audiobuf.Buffer) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("[petalsonicd] open %s: %v", path, err)
		}
		defer f.Close()
		buf, err := loader.Load(f, wavdecode.Decoder{}, loader.Options{
			TargetRate:    rate,
			ConvertToMono: loader.MonoForce,
			Normalize:     true,
		})
		if err != nil {
			log.Fatalf("[petalsonicd] load %s: %v", path, err)
		}
		spatial = buf
	} else {
		spatial = synthSine(rate, 220.0, 4*time.Second, 1)
	}
	nonSpatial = synthSine(rate, 110.0, 4*time.Second, 2)
	return spatial, nonSpatial
}

func synthSine(rate uint32, freq float64, dur time.Duration, channels uint8) *audiobuf.Buffer {
	frames := int(float64(rate) * dur.Seconds())
	samples := make([]float32, frames*int(channels))
	for i := 0; i < frames; i++ {
		v := float32(0.3 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
		for c := 0; c < int(channels); c++ {
			samples[i*int(channels)+c] = v
		}
	}
	buf, err := audiobuf.New(rate, channels, samples)
	if err != nil {
		log.Fatalf("[petalsonicd] synth tone: %v", err)
	}
	return buf
}
