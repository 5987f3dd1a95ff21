package petalsonic

// WorldConfig configures a World at construction time. Sample rate, block
// size, and channel count are fixed for the World's lifetime.
type WorldConfig struct {
	// SampleRate is the engine's output rate in Hz (typical 48000). Every
	// registered buffer must already be at this rate; RegisterAudio rejects
	// any other rate.
	SampleRate uint32
	// BlockSize is the number of frames produced per render tick (typical
	// 512-1024).
	BlockSize uint32
	// Channels is the output channel count. Only stereo (2) is supported.
	Channels uint8
	// RingBlocks sets the Frame ring's capacity as BlockSize * RingBlocks.
	RingBlocks uint32
	// MaxSources hard-caps concurrent registered playback instances.
	MaxSources uint32
	// HRTFPath optionally points to a WAV file containing a pair of
	// impulse responses used by the Steam Audio adapter for true HRTF
	// convolution. Empty uses the built-in one-pole approximation.
	HRTFPath string
	// TimingEveryNTicks enables a RenderTiming event every N render ticks.
	// 0 disables it.
	TimingEveryNTicks uint32
	// Telemetry optionally exposes PollEvents output over a websocket for
	// external dashboards. Disabled by default.
	Telemetry TelemetryConfig
	// Backend selects the device backend. Nil defaults to a real PortAudio
	// output stream; tests and headless hosts can supply device.Null.
	Backend DeviceBackend
	// Spatializer selects the spatial engine. Nil defaults to
	// spatial.NewSteamAudio with the HRTF loaded from HRTFPath and with
	// RayProvider.
	Spatializer SpatialEngine
	// RayProvider optionally supplies occlusion data to the Spatializer.
	// Nil defaults to raytrace.None.
	RayProvider RayProvider
}

// TelemetryConfig configures the optional observability HTTP+websocket
// surface in internal/telemetry.
type TelemetryConfig struct {
	Enabled bool
	// Addr is the listen address, e.g. ":8089". Ignored when Enabled is
	// false.
	Addr string
}

func (c WorldConfig) validate() error {
	if c.SampleRate == 0 {
		return &ConfigError{Field: "SampleRate", Detail: "must be > 0"}
	}
	if c.BlockSize == 0 {
		return &ConfigError{Field: "BlockSize", Detail: "must be > 0"}
	}
	if c.Channels != 2 {
		return &ConfigError{Field: "Channels", Detail: "only stereo (2) output is supported"}
	}
	if c.RingBlocks == 0 {
		return &ConfigError{Field: "RingBlocks", Detail: "must be > 0"}
	}
	if c.MaxSources == 0 {
		return &ConfigError{Field: "MaxSources", Detail: "must be > 0"}
	}
	if c.Telemetry.Enabled && c.Telemetry.Addr == "" {
		return &ConfigError{Field: "Telemetry.Addr", Detail: "required when Telemetry.Enabled is true"}
	}
	return nil
}
