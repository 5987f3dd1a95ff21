// Package petalsonic is a real-time-safe spatial audio runtime: register
// audio clips against a World, place them in a 3D scene or play them flat,
// and the World drives a dedicated render thread and a hardware device
// through a lock-free pipeline.
package petalsonic

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tr-nc/petalsonic/internal/audiobuf"
	"github.com/tr-nc/petalsonic/internal/device"
	"github.com/tr-nc/petalsonic/internal/device/portaudio"
	"github.com/tr-nc/petalsonic/internal/eventbus"
	"github.com/tr-nc/petalsonic/internal/geom"
	"github.com/tr-nc/petalsonic/internal/loader/wavdecode"
	"github.com/tr-nc/petalsonic/internal/raytrace"
	"github.com/tr-nc/petalsonic/internal/render"
	"github.com/tr-nc/petalsonic/internal/ring"
	"github.com/tr-nc/petalsonic/internal/spatial"
	"github.com/tr-nc/petalsonic/internal/telemetry"
)

const commandQueueCapacity = 256
const eventQueueCapacity = 1024
const fanoutInterval = 5 * time.Millisecond

// sourceRecord is the World's own minimal mirror of a registered source,
// kept so unknown-id and spatial/non-spatial mismatches can be rejected
// synchronously without round-tripping through the render thread.
type sourceRecord struct {
	spatial bool
}

// World is the thread-safe facade over the render loop, frame ring, and
// device sink. Every exported method is safe to call concurrently from any
// control thread.
type World struct {
	id     uuid.UUID
	config WorldConfig

	nextID atomic.Uint32

	mu        sync.Mutex
	sources   map[SourceID]sourceRecord
	listener  Listener
	shutdown  bool

	cmds   chan render.Command
	events *eventbus.Bus[render.Event]

	r        *ring.Ring
	sink     *device.Sink
	devH     device.Handle
	loop     *render.Loop
	loopDone chan struct{}

	telemetry *telemetry.Server

	// telemetryEvents and fanoutStop are only set when telemetry is enabled.
	// The render loop then publishes to a private raw bus instead of events
	// directly, and fanoutEvents republishes every event to both events (for
	// PollEvents) and telemetryEvents (for the telemetry server), so the two
	// consumers each see the full stream instead of racing to drain one
	// shared queue.
	telemetryEvents *eventbus.Bus[render.Event]
	fanoutStop      chan struct{}
}

// New validates config, starts the render thread, and opens the device
// backend. On any failure, no goroutine or handle is leaked.
func New(config WorldConfig) (*World, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	w := &World{
		id:       uuid.New(),
		config:   config,
		sources:  make(map[SourceID]sourceRecord),
		listener: geom.DefaultPose,
		cmds:     make(chan render.Command, commandQueueCapacity),
		events:   eventbus.New[render.Event](eventQueueCapacity),
		loopDone: make(chan struct{}),
	}

	spat := config.Spatializer
	if spat == nil {
		rays := config.RayProvider
		if rays == nil {
			rays = raytrace.None{}
		}
		hrtf, err := loadHRTF(config.HRTFPath)
		if err != nil {
			return nil, &ConfigError{Field: "HRTFPath", Detail: err.Error()}
		}
		spat = spatial.NewSteamAudio(hrtf, rays)
	}
	if err := spat.Prepare(config.SampleRate, int(config.BlockSize), int(config.Channels)); err != nil {
		return nil, &EngineError{Detail: "spatializer prepare failed", Err: err}
	}

	w.r = ring.New(int(config.BlockSize*config.RingBlocks), int(config.Channels))
	w.sink = device.NewSink(w.r, int(config.Channels))

	backend := config.Backend
	if backend == nil {
		backend = portaudio.Backend{DeviceIndex: -1}
	}
	handle, err := backend.Open(config.SampleRate, config.Channels, int(config.BlockSize), w.sink.Callback)
	if err != nil {
		return nil, &DeviceError{Detail: "failed to open device backend", Err: err}
	}
	w.devH = handle

	renderEvents := w.events
	if config.Telemetry.Enabled {
		renderEvents = eventbus.New[render.Event](eventQueueCapacity)
		w.telemetryEvents = eventbus.New[render.Event](eventQueueCapacity)
		w.fanoutStop = make(chan struct{})
	}

	w.loop = render.NewLoop(render.Config{
		Rate:              config.SampleRate,
		BlockSize:         int(config.BlockSize),
		Channels:          int(config.Channels),
		MaxSources:        config.MaxSources,
		TimingEveryNTicks: config.TimingEveryNTicks,
		Spatializer:       spat,
		Ring:              w.r,
		Commands:          w.cmds,
		Events:            renderEvents,
		Underruns:         w.sink.Underruns,
	})

	if config.Telemetry.Enabled {
		go w.fanoutEvents(renderEvents)
		w.telemetry = telemetry.New(config.Telemetry.Addr, w.telemetryEvents.Poll)
		if err := w.telemetry.Start(); err != nil {
			close(w.fanoutStop)
			w.devH.Close()
			return nil, &DeviceError{Detail: "failed to start telemetry server", Err: err}
		}
	}

	go func() {
		defer close(w.loopDone)
		w.loop.Run()
	}()

	slog.Info("petalsonic world created", "world_id", w.id, "sample_rate", config.SampleRate, "block_size", config.BlockSize)
	return w, nil
}

// RegisterAudio validates buf against the World's rate and the source
// config's spatial/mono constraint, allocates a SourceID, and sends
// RegisterBuffer to the render loop. The returned id is valid for
// subsequent Play/Pause/Stop/Unregister/SetSourceConfig calls even before
// the render loop has applied the registration.
func (w *World) RegisterAudio(buf *audiobuf.Buffer, config SourceConfig) (SourceID, error) {
	if buf.Rate() != w.config.SampleRate {
		err := &RegistrationError{Detail: fmt.Sprintf("buffer rate %d does not match world rate %d", buf.Rate(), w.config.SampleRate)}
		slog.Warn("register_audio rejected", "world_id", w.id, "err", err)
		return 0, err
	}
	if config.Spatial && buf.Channels() != 1 {
		err := &RegistrationError{Detail: "spatial source requires a mono buffer"}
		slog.Warn("register_audio rejected", "world_id", w.id, "err", err)
		return 0, err
	}

	w.mu.Lock()
	if w.shutdown {
		w.mu.Unlock()
		return 0, &StateError{Detail: "world is shut down"}
	}
	if uint32(len(w.sources)) >= w.config.MaxSources {
		w.mu.Unlock()
		err := &RegistrationError{Detail: "max_sources exceeded"}
		slog.Warn("register_audio rejected", "world_id", w.id, "err", err)
		return 0, err
	}
	id := SourceID(w.nextID.Add(1))
	w.sources[id] = sourceRecord{spatial: config.Spatial}
	w.mu.Unlock()

	w.cmds <- render.Command{Kind: render.CmdRegisterBuffer, ID: uint32(id), Buffer: buf, Config: config}
	slog.Debug("register_audio", "world_id", w.id, "source_id", id, "spatial", config.Spatial)
	return id, nil
}

// Unregister removes a source. Safe to call on an id that is currently
// playing; the render loop stops and destroys it at the next tick boundary.
func (w *World) Unregister(id SourceID) error {
	if err := w.requireKnown(id); err != nil {
		return err
	}
	w.mu.Lock()
	delete(w.sources, id)
	w.mu.Unlock()
	w.cmds <- render.Command{Kind: render.CmdUnregister, ID: uint32(id)}
	slog.Debug("unregister", "world_id", w.id, "source_id", id)
	return nil
}

// SetSourceConfig updates a source's gain/position. Switching a source
// between Spatial and NonSpatial mid-playback is rejected as a StateError:
// this engine has no defined policy for it (see DESIGN.md).
func (w *World) SetSourceConfig(id SourceID, config SourceConfig) error {
	w.mu.Lock()
	rec, ok := w.sources[id]
	if !ok {
		w.mu.Unlock()
		return &StateError{ID: id, Detail: "unknown source id"}
	}
	if rec.spatial != config.Spatial {
		w.mu.Unlock()
		return &StateError{ID: id, Detail: "cannot switch a source between spatial and non-spatial"}
	}
	w.mu.Unlock()
	w.cmds <- render.Command{Kind: render.CmdSetConfig, ID: uint32(id), Config: config}
	return nil
}

// Play transitions id to Playing under loopMode. See the playback state
// machine for exact semantics of each starting state.
func (w *World) Play(id SourceID, loopMode LoopMode) error {
	if err := w.requireKnown(id); err != nil {
		return err
	}
	w.cmds <- render.Command{Kind: render.CmdPlay, ID: uint32(id), LoopMode: loopMode}
	return nil
}

// Pause transitions id to Paused if it is currently Playing; otherwise a no-op.
func (w *World) Pause(id SourceID) error {
	if err := w.requireKnown(id); err != nil {
		return err
	}
	w.cmds <- render.Command{Kind: render.CmdPause, ID: uint32(id)}
	return nil
}

// Stop transitions id to Stopped and resets its playhead and iteration.
func (w *World) Stop(id SourceID) error {
	if err := w.requireKnown(id); err != nil {
		return err
	}
	w.cmds <- render.Command{Kind: render.CmdStop, ID: uint32(id)}
	return nil
}

// SetListenerPose updates the single listener's position and orientation.
func (w *World) SetListenerPose(pose Listener) error {
	w.mu.Lock()
	if w.shutdown {
		w.mu.Unlock()
		return &StateError{Detail: "world is shut down"}
	}
	w.listener = pose
	w.mu.Unlock()
	w.cmds <- render.Command{Kind: render.CmdSetListenerPose, Pose: pose}
	return nil
}

// PollEvents drains and returns every event the render loop has published
// since the last call. Never blocks.
func (w *World) PollEvents() []Event {
	return w.events.Poll()
}

// fanoutEvents drains raw, the render loop's private output bus, on a
// timer and republishes every event into both w.events and
// w.telemetryEvents. Only started when telemetry is enabled; otherwise the
// render loop publishes straight into w.events and PollEvents is the sole
// drainer.
func (w *World) fanoutEvents(raw *eventbus.Bus[render.Event]) {
	ticker := time.NewTicker(fanoutInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.fanoutStop:
			w.drainFanout(raw)
			return
		case <-ticker.C:
			w.drainFanout(raw)
		}
	}
}

func (w *World) drainFanout(raw *eventbus.Bus[render.Event]) {
	for _, ev := range raw.Poll() {
		w.events.Send(ev)
		w.telemetryEvents.Send(ev)
	}
}

// Shutdown sends Shutdown, joins the render thread, closes the device, and
// stops telemetry if it was enabled. Idempotent; safe to call more than once.
func (w *World) Shutdown() error {
	w.mu.Lock()
	if w.shutdown {
		w.mu.Unlock()
		return nil
	}
	w.shutdown = true
	w.mu.Unlock()

	w.cmds <- render.Command{Kind: render.CmdShutdown}
	<-w.loopDone

	if w.fanoutStop != nil {
		// The render loop has already exited, so it will publish no more
		// events to raw; closing fanoutStop triggers one last drain that
		// catches whatever it published right before Shutdown.
		close(w.fanoutStop)
	}

	var closeErr error
	if err := w.devH.Close(); err != nil {
		closeErr = &DeviceError{Detail: "failed to close device backend", Err: err}
	}
	if w.telemetry != nil {
		w.telemetry.Stop()
	}
	slog.Info("petalsonic world shut down", "world_id", w.id)
	return closeErr
}

// loadHRTF reads a stereo WAV file at path as a left/right impulse response
// pair for true HRTF convolution. An empty path is not an error: it simply
// means no custom HRTF data was configured, and SteamAudio falls back to its
// one-pole air-absorption approximation.
func loadHRTF(path string) (*spatial.HRTFImpulse, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hrtf file: %w", err)
	}
	defer f.Close()

	dec := wavdecode.Decoder{}
	decoded, err := dec.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode hrtf file: %w", err)
	}
	if decoded.Channels != 2 {
		return nil, fmt.Errorf("hrtf file must be stereo (left/right impulse pair), got %d channels", decoded.Channels)
	}

	frames := len(decoded.Samples) / 2
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = decoded.Samples[i*2]
		right[i] = decoded.Samples[i*2+1]
	}
	return &spatial.HRTFImpulse{Left: left, Right: right}, nil
}

func (w *World) requireKnown(id SourceID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shutdown {
		return &StateError{ID: id, Detail: "world is shut down"}
	}
	if _, ok := w.sources[id]; !ok {
		return &StateError{ID: id, Detail: "unknown source id"}
	}
	return nil
}
