// Package render implements the render loop: the single dedicated thread
// that drains commands, advances every playing source, spatializes or
// directly mixes its samples, and pushes the result into the Frame ring
// every tick. It takes no lock and makes no syscall beyond a bounded sleep.
// It is not allocation-free: applying a RegisterBuffer command allocates
// the source's scratch block and table entry, and the per-tick input slices
// grow on first use until they reach their steady-state size.
package render

import (
	"time"

	"github.com/tr-nc/petalsonic/internal/audiobuf"
	"github.com/tr-nc/petalsonic/internal/eventbus"
	"github.com/tr-nc/petalsonic/internal/geom"
	"github.com/tr-nc/petalsonic/internal/playback"
	"github.com/tr-nc/petalsonic/internal/ring"
	"github.com/tr-nc/petalsonic/internal/spatial"
)

type instance struct {
	buffer  *audiobuf.Buffer
	config  SourceConfig
	pb      *playback.Instance
	scratch []float32 // pre-allocated: mono (spatial) or buffer.Channels()*blockSize (non-spatial)
}

// Config bundles everything Loop needs at construction time.
type Config struct {
	Rate              uint32
	BlockSize         int
	Channels          int
	MaxSources        uint32
	TimingEveryNTicks uint32
	Spatializer       spatial.Spatializer
	Ring              *ring.Ring
	Commands          <-chan Command
	Events            *eventbus.Bus[Event]
	// Underruns, if set, is polled once per tick. The render loop emits
	// BufferUnderrun for the delta since the last observation, surfacing
	// the device callback thread's underrun counter without that thread
	// ever touching the event bus itself.
	Underruns func() uint64
}

// Loop is the render thread's entire state. It is constructed once by the
// World facade and run via Run on a dedicated goroutine.
type Loop struct {
	rate              uint32
	blockSize         int
	channels          int
	maxSources        uint32
	timingEveryNTicks uint32

	spat          spatial.Spatializer
	ring          *ring.Ring
	cmds          <-chan Command
	events        *eventbus.Bus[Event]
	underruns     func() uint64
	lastUnderruns uint64

	instances map[uint32]*instance
	listener  geom.Pose

	outScratch       []float32
	mixScratch       []float32
	spatialInputs    []spatial.Input
	completedSpatial []uint32

	tickCount uint64
}

// NewLoop constructs a ready-to-Run Loop from cfg without validating it. The Spatializer
// must already have had Prepare called successfully with matching
// rate/blockSize/channels.
func NewLoop(cfg Config) *Loop {
	return &Loop{
		rate:              cfg.Rate,
		blockSize:         cfg.BlockSize,
		channels:          cfg.Channels,
		maxSources:        cfg.MaxSources,
		timingEveryNTicks: cfg.TimingEveryNTicks,
		spat:              cfg.Spatializer,
		ring:              cfg.Ring,
		cmds:              cfg.Commands,
		events:            cfg.Events,
		underruns:         cfg.Underruns,
		instances:         make(map[uint32]*instance),
		listener:          geom.DefaultPose,
		outScratch:        make([]float32, cfg.BlockSize*cfg.Channels),
		mixScratch:        make([]float32, cfg.BlockSize*cfg.Channels),
	}
}

// Run executes render ticks until a Shutdown command is drained. It is
// intended to run on its own goroutine for the lifetime of the World.
func (l *Loop) Run() {
	for {
		shutdown := l.drainCommands()
		if shutdown {
			return
		}
		l.tick()
	}
}

// drainCommands applies every currently queued command non-blocking and
// reports whether Shutdown was among them.
func (l *Loop) drainCommands() (shutdown bool) {
	for {
		select {
		case cmd := <-l.cmds:
			if cmd.Kind == CmdShutdown {
				shutdown = true
				continue
			}
			l.apply(cmd)
		default:
			return shutdown
		}
	}
}

func (l *Loop) apply(cmd Command) {
	switch cmd.Kind {
	case CmdRegisterBuffer:
		l.applyRegister(cmd)
	case CmdUnregister:
		if in, ok := l.instances[cmd.ID]; ok {
			if in.config.Spatial {
				l.spat.DestroySource(cmd.ID)
			}
			delete(l.instances, cmd.ID)
		}
	case CmdSetConfig:
		if in, ok := l.instances[cmd.ID]; ok {
			in.config = cmd.Config
			if in.config.Spatial {
				l.spat.SetSourcePosition(cmd.ID, cmd.Config.Position)
			}
		}
	case CmdPlay:
		if in, ok := l.instances[cmd.ID]; ok {
			if in.pb.Play(cmd.LoopMode) {
				l.events.Send(Event{Kind: EvSourceStarted, SourceID: cmd.ID})
			}
		}
	case CmdPause:
		if in, ok := l.instances[cmd.ID]; ok {
			in.pb.Pause()
		}
	case CmdStop:
		if in, ok := l.instances[cmd.ID]; ok {
			wasActive := in.pb.State() != playback.Stopped
			in.pb.Stop()
			if wasActive {
				l.events.Send(Event{Kind: EvSourceStopped, SourceID: cmd.ID})
			}
		}
	case CmdSetListenerPose:
		l.listener = cmd.Pose
		l.spat.SetListener(cmd.Pose)
	}
}

func (l *Loop) applyRegister(cmd Command) {
	if cmd.Config.Spatial && cmd.Buffer.Channels() != 1 {
		l.events.Send(Event{
			Kind:      EvEngineError,
			SourceID:  cmd.ID,
			ErrorKind: "RegistrationError",
			Detail:    "spatial source requires a mono buffer",
		})
		return
	}
	if uint32(len(l.instances)) >= l.maxSources {
		l.events.Send(Event{
			Kind:      EvEngineError,
			SourceID:  cmd.ID,
			ErrorKind: "RegistrationError",
			Detail:    "max_sources exceeded",
		})
		return
	}

	in := &instance{
		buffer: cmd.Buffer,
		config: cmd.Config,
		pb:     playback.NewInstance(),
	}
	if cmd.Config.Spatial {
		in.scratch = make([]float32, l.blockSize)
		if err := l.spat.CreateSource(cmd.ID, cmd.Config.Position); err != nil {
			l.events.Send(Event{
				Kind:      EvSpatializationError,
				SourceID:  cmd.ID,
				ErrorKind: "EngineError",
				Detail:    err.Error(),
			})
			return
		}
	} else {
		in.scratch = make([]float32, l.blockSize*int(cmd.Buffer.Channels()))
	}
	l.instances[cmd.ID] = in
}

// tick produces exactly one block_size block of output frames.
func (l *Loop) tick() {
	start := time.Now()

	l.spatialInputs = l.spatialInputs[:0]
	l.completedSpatial = l.completedSpatial[:0]
	for i := range l.mixScratch {
		l.mixScratch[i] = 0
	}

	for id, in := range l.instances {
		if in.pb.State() != playback.Playing {
			continue
		}
		if in.config.Spatial {
			l.advanceSpatial(id, in)
		} else {
			l.advanceNonSpatial(id, in)
		}
	}
	mixDone := time.Now()

	var spatialOut []float32
	if len(l.spatialInputs) > 0 {
		if err := l.spat.Process(l.spatialInputs, l.outScratch); err != nil {
			l.events.Send(Event{Kind: EvSpatializationError, ErrorKind: "EngineError", Detail: err.Error()})
			for i := range l.outScratch {
				l.outScratch[i] = 0
			}
		}
		spatialOut = l.outScratch
	}
	spatialDone := time.Now()

	// Sources that completed this tick are destroyed only now, after
	// Process has run, so a completing source's final Input is still
	// present in l.spatialInputs for Process to consume.
	for _, id := range l.completedSpatial {
		l.spat.DestroySource(id)
	}

	for i := range l.outScratch {
		if spatialOut != nil {
			l.outScratch[i] = spatialOut[i] + l.mixScratch[i]
		} else {
			l.outScratch[i] = l.mixScratch[i]
		}
	}

	written := l.ring.Push(l.outScratch)
	if written < l.blockSize {
		missing := l.blockSize - written
		l.events.Send(Event{Kind: EvBufferOverrun, MissingFrames: missing})
	}

	l.tickCount++
	if l.timingEveryNTicks > 0 && l.tickCount%uint64(l.timingEveryNTicks) == 0 {
		l.events.Send(Event{
			Kind:      EvRenderTiming,
			BlockUs:   time.Since(start).Microseconds(),
			MixUs:     mixDone.Sub(start).Microseconds(),
			SpatialUs: spatialDone.Sub(mixDone).Microseconds(),
		})
	}

	if l.events.ConsumeOverflowEdge() {
		l.events.Send(Event{Kind: EvEventOverflow, DroppedEvents: l.events.Dropped()})
	}

	if l.underruns != nil {
		total := l.underruns()
		if total > l.lastUnderruns {
			l.events.Send(Event{Kind: EvBufferUnderrun, MissingFrames: int(total - l.lastUnderruns)})
			l.lastUnderruns = total
		}
	}

	l.pace()
}

func (l *Loop) advanceSpatial(id uint32, in *instance) {
	r := in.pb.Advance(l.blockSize, in.buffer.Frames())
	if r.FramesFirst == 0 && !r.Wrapped && !r.Completed {
		return
	}
	copied := in.buffer.CopyFrom(r.PlayheadBefore, in.scratch, r.FramesFirst)
	if r.Wrapped {
		in.buffer.CopyFrom(0, in.scratch[copied:], r.FramesSecond)
	} else if r.Completed && copied < l.blockSize {
		for i := copied; i < l.blockSize; i++ {
			in.scratch[i] = 0
		}
	}

	gain := in.config.Gain
	for i := range in.scratch {
		in.scratch[i] *= gain
	}
	l.spatialInputs = append(l.spatialInputs, spatial.Input{ID: id, Mono: in.scratch, Gain: 1.0})

	l.emitPlaybackEvents(id, r)
}

func (l *Loop) advanceNonSpatial(id uint32, in *instance) {
	r := in.pb.Advance(l.blockSize, in.buffer.Frames())
	if r.FramesFirst == 0 && !r.Wrapped && !r.Completed {
		return
	}

	ch := int(in.buffer.Channels())
	frameBuf := in.scratch
	copied := in.buffer.CopyFrom(r.PlayheadBefore, frameBuf, r.FramesFirst)
	if r.Wrapped {
		in.buffer.CopyFrom(0, frameBuf[copied*ch:], r.FramesSecond)
	} else if r.Completed && copied < l.blockSize {
		for i := copied * ch; i < len(frameBuf); i++ {
			frameBuf[i] = 0
		}
	}

	gain := in.config.Gain
	for i := 0; i < l.blockSize; i++ {
		var l32, r32 float32
		if ch == 1 {
			v := frameBuf[i] * gain
			l32, r32 = v, v
		} else {
			l32 = frameBuf[i*2] * gain
			r32 = frameBuf[i*2+1] * gain
		}
		l.mixScratch[i*l.channels] += l32
		if l.channels > 1 {
			l.mixScratch[i*l.channels+1] += r32
		}
	}

	l.emitPlaybackEvents(id, r)
}

func (l *Loop) emitPlaybackEvents(id uint32, r playback.AdvanceResult) {
	if r.Looped {
		l.events.Send(Event{Kind: EvSourceLooped, SourceID: id, Iteration: r.LoopIteration})
	}
	if r.Completed {
		l.events.Send(Event{Kind: EvSourceCompleted, SourceID: id})
		if in, ok := l.instances[id]; ok && in.config.Spatial {
			l.completedSpatial = append(l.completedSpatial, id)
		}
	}
}

// pace sleeps briefly when the ring has less than one block of free space,
// so the render loop doesn't spin hot while waiting for the device to
// drain it. It never holds a lock.
func (l *Loop) pace() {
	if l.ring.AvailableWrite() < l.blockSize {
		time.Sleep(time.Millisecond)
	}
}
