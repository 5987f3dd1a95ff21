package petalsonic

import "github.com/tr-nc/petalsonic/internal/render"

// EventKind discriminates the Event union delivered by PollEvents.
type EventKind = render.EventKind

const (
	EventSourceStarted       = render.EvSourceStarted
	EventSourceStopped       = render.EvSourceStopped
	EventSourceCompleted     = render.EvSourceCompleted
	EventSourceLooped        = render.EvSourceLooped
	EventBufferUnderrun      = render.EvBufferUnderrun
	EventBufferOverrun       = render.EvBufferOverrun
	EventEngineError         = render.EvEngineError
	EventSpatializationError = render.EvSpatializationError
	EventOverflow            = render.EvEventOverflow
	EventRenderTiming        = render.EvRenderTiming
)

// Event is one message from the render loop: SourceStarted/Stopped/
// Completed/Looped, BufferUnderrun/Overrun, EngineError/SpatializationError,
// EventOverflow, or an optional RenderTiming sample. Only the fields
// relevant to Kind are populated.
type Event = render.Event
