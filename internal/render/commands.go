package render

import (
	"github.com/tr-nc/petalsonic/internal/audiobuf"
	"github.com/tr-nc/petalsonic/internal/geom"
	"github.com/tr-nc/petalsonic/internal/playback"
)

// SourceConfig is the tagged-union source configuration from the data
// model: NonSpatial sources carry only a gain, Spatial sources additionally
// carry a world position. Both are plain value types, copyable and safe to
// send over the command channel.
type SourceConfig struct {
	Spatial  bool
	Gain     float32
	Position geom.Vec3
}

// CommandKind discriminates the Command union.
type CommandKind int

const (
	CmdRegisterBuffer CommandKind = iota
	CmdUnregister
	CmdSetConfig
	CmdPlay
	CmdPause
	CmdStop
	CmdSetListenerPose
	CmdShutdown
)

// Command is every message the World facade can send the render loop. Only
// the fields relevant to Kind are populated.
type Command struct {
	Kind     CommandKind
	ID       uint32
	Buffer   *audiobuf.Buffer
	Config   SourceConfig
	LoopMode playback.LoopMode
	Pose     geom.Pose
}
