package loader

import "io"

// Decoded is the raw result of decoding an encoded audio stream: interleaved
// f32 PCM at the container's native rate and channel count.
type Decoded struct {
	Rate     uint32
	Channels int
	Samples  []float32
}

// Decoder turns an encoded byte stream into raw interleaved PCM. The Loader
// is format-agnostic: it accepts any Decoder, so new container formats are
// added by writing a new adapter package, never by modifying the Loader.
type Decoder interface {
	Decode(r io.Reader) (Decoded, error)
}
