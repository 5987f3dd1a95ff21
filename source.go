package petalsonic

import (
	"github.com/tr-nc/petalsonic/internal/device"
	"github.com/tr-nc/petalsonic/internal/geom"
	"github.com/tr-nc/petalsonic/internal/playback"
	"github.com/tr-nc/petalsonic/internal/raytrace"
	"github.com/tr-nc/petalsonic/internal/render"
	"github.com/tr-nc/petalsonic/internal/spatial"
)

// SourceID is an opaque, dense, monotonically assigned identifier. Unique
// for the lifetime of a World; recycling is not required.
type SourceID uint32

// Vec3 is a right-handed, y-up position or direction in meters.
type Vec3 = geom.Vec3

// Quat is a unit quaternion describing listener orientation. Identity
// (facing -Z, up +Y) is IdentityQuat.
type Quat = geom.Quat

// IdentityQuat is the default listener orientation.
var IdentityQuat = geom.IdentityQuat

// Listener is the pose (position, orientation) of the single listener a
// World tracks. Default is the origin with identity orientation.
type Listener = geom.Pose

// DefaultListener is the origin with identity orientation.
var DefaultListener = geom.DefaultPose

// SourceConfig is the tagged-union source configuration: NonSpatial sources
// carry only a gain, Spatial sources additionally carry a world position.
type SourceConfig = render.SourceConfig

// NonSpatial builds a NonSpatial SourceConfig at the given linear gain.
func NonSpatial(gain float32) SourceConfig {
	return SourceConfig{Spatial: false, Gain: gain}
}

// Spatial builds a Spatial SourceConfig at the given position and gain.
func Spatial(position Vec3, gain float32) SourceConfig {
	return SourceConfig{Spatial: true, Gain: gain, Position: position}
}

// LoopMode selects one-shot, infinite, or counted looping.
type LoopMode = playback.LoopMode

// Once plays a source exactly once, emitting SourceCompleted at end-of-buffer.
func Once() LoopMode { return playback.Once() }

// Infinite loops a source forever until explicitly stopped.
func Infinite() LoopMode { return playback.Infinite() }

// Count loops a source n times (n < 1 clamps to 1), completing after the
// n-th pass exactly as Once would.
func Count(n int) LoopMode { return playback.Count(n) }

// PlayState is a source's current lifecycle state.
type PlayState = playback.State

const (
	Stopped = playback.Stopped
	Playing = playback.Playing
	Paused  = playback.Paused
)

// SpatialEngine is the pluggable spatial-rendering backend a World drives.
// spatial.Panner and spatial.SteamAudio both satisfy it.
type SpatialEngine = spatial.Spatializer

// RayProvider optionally supplies scene-occlusion data to a SpatialEngine.
// raytrace.None is the default no-op implementation.
type RayProvider = raytrace.Provider

// DeviceBackend abstracts the OS/driver audio output a World writes to.
type DeviceBackend = device.Backend

// DeviceHandle represents an open output stream.
type DeviceHandle = device.Handle
