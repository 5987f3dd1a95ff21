// Package playback implements the per-source playback state machine: the
// Stopped/Playing/Paused states, loop-mode bookkeeping, and the playhead
// advance logic the render loop uses every tick. None of this package
// touches sample data directly — it only computes frame spans and edge
// events; the render loop performs the actual copy via audiobuf.Buffer.
package playback

// State is one of the three playback states a source instance can be in.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// loopKind discriminates the three loop modes.
type loopKind int

const (
	loopOnce loopKind = iota
	loopInfinite
	loopCount
)

// LoopMode selects what happens when a source reaches end-of-buffer while
// Playing. Construct with Once, Infinite, or Count(n).
type LoopMode struct {
	kind  loopKind
	count int
}

// Once stops the source and emits SourceCompleted the first time it
// reaches end-of-buffer.
func Once() LoopMode { return LoopMode{kind: loopOnce} }

// Infinite loops the source indefinitely, emitting SourceLooped at every
// boundary.
func Infinite() LoopMode { return LoopMode{kind: loopInfinite} }

// Count loops n times total, emitting SourceLooped for the first n-1
// boundaries and behaving like Once on the n-th.
func Count(n int) LoopMode {
	if n < 1 {
		n = 1
	}
	return LoopMode{kind: loopCount, count: n}
}

// Instance tracks one registered source's playback state: its position in
// its buffer, its loop configuration, and its current State.
type Instance struct {
	state     State
	loopMode  LoopMode
	playhead  int
	iteration int
}

// NewInstance returns a freshly registered, Stopped instance.
func NewInstance() *Instance {
	return &Instance{state: Stopped}
}

// State returns the instance's current playback state.
func (in *Instance) State() State { return in.state }

// Playhead returns the current frame offset into the instance's buffer.
func (in *Instance) Playhead() int { return in.playhead }

// Iteration returns the current loop iteration counter.
func (in *Instance) Iteration() int { return in.iteration }

// Play transitions the instance toward Playing. Per spec: Stopped->Playing
// resets playhead/iteration to 0; Paused->Playing resumes in place;
// Playing->Playing is a no-op. Returns true if this call is a Started edge
// (non-Playing -> Playing), which the render loop uses to decide whether
// to emit SourceStarted.
func (in *Instance) Play(loopMode LoopMode) (started bool) {
	switch in.state {
	case Stopped:
		in.playhead = 0
		in.iteration = 0
		in.loopMode = loopMode
		in.state = Playing
		return true
	case Paused:
		in.loopMode = loopMode
		in.state = Playing
		return true
	case Playing:
		return false
	}
	return false
}

// Pause transitions Playing->Paused, preserving playhead/iteration. A no-op
// from any other state.
func (in *Instance) Pause() {
	if in.state == Playing {
		in.state = Paused
	}
}

// Stop transitions to Stopped and resets playhead/iteration to 0.
func (in *Instance) Stop() {
	in.state = Stopped
	in.playhead = 0
	in.iteration = 0
}

// AdvanceResult describes how the render loop should copy samples for one
// tick and which lifecycle events, if any, fire as a result.
type AdvanceResult struct {
	// FramesFirst is how many frames to copy starting at PlayheadBefore.
	FramesFirst int
	// PlayheadBefore is the playhead position before this tick's copy.
	PlayheadBefore int
	// Wrapped is true if the buffer end was reached and playback
	// continues from frame 0 within the same tick (loop/count modes).
	Wrapped bool
	// FramesSecond is how many frames to copy starting at frame 0, valid
	// only if Wrapped.
	FramesSecond int
	// Completed is true if this tick ends the instance (Once, or the
	// final iteration of Count(n)): the caller must zero-fill any frames
	// beyond FramesFirst and the instance is now Stopped.
	Completed bool
	// Looped is true if a SourceLooped edge occurred this tick.
	Looped bool
	// LoopIteration is the iteration value to attach to SourceLooped.
	LoopIteration int
}

// Advance computes the frame span for one render tick of length blockSize
// against a buffer of bufferFrames total frames, and updates the
// instance's internal playhead/iteration/state accordingly. It returns a
// zero AdvanceResult (FramesFirst == 0) if the instance is not Playing.
func (in *Instance) Advance(blockSize, bufferFrames int) AdvanceResult {
	if in.state != Playing {
		return AdvanceResult{}
	}

	playheadBefore := in.playhead
	avail := bufferFrames - in.playhead
	if avail >= blockSize {
		in.playhead += blockSize
		return AdvanceResult{
			FramesFirst:    blockSize,
			PlayheadBefore: playheadBefore,
		}
	}

	// End-of-buffer reached within this tick.
	k := avail
	result := AdvanceResult{
		FramesFirst:    k,
		PlayheadBefore: playheadBefore,
	}

	switch in.loopMode.kind {
	case loopOnce:
		result.Completed = true
		in.Stop()
		return result

	case loopInfinite:
		in.iteration++
		in.playhead = blockSize - k
		result.Wrapped = true
		result.FramesSecond = blockSize - k
		result.Looped = true
		result.LoopIteration = in.iteration
		return result

	case loopCount:
		in.iteration++
		if in.iteration >= in.loopMode.count {
			result.Completed = true
			in.Stop()
			return result
		}
		in.playhead = blockSize - k
		result.Wrapped = true
		result.FramesSecond = blockSize - k
		result.Looped = true
		result.LoopIteration = in.iteration
		return result
	}
	return result
}
