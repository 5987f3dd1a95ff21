// Package wavdecode adapts github.com/go-audio/wav to the loader.Decoder
// interface, decoding PCM WAV containers (the format used by the project's
// own test-tone fixtures).
package wavdecode

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"

	"github.com/tr-nc/petalsonic/internal/loader"
)

// Decoder decodes PCM WAV files into interleaved f32 samples.
type Decoder struct{}

// New returns a ready-to-use WAV decoder.
func New() Decoder { return Decoder{} }

// Decode implements loader.Decoder.
func (Decoder) Decode(r io.Reader) (loader.Decoded, error) {
	ra, ok := r.(io.ReadSeeker)
	if !ok {
		return loader.Decoded{}, fmt.Errorf("wavdecode: reader must support Seek")
	}

	dec := wav.NewDecoder(ra)
	if !dec.IsValidFile() {
		return loader.Decoded{}, fmt.Errorf("wavdecode: not a valid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return loader.Decoded{}, fmt.Errorf("wavdecode: read PCM buffer: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return loader.Decoded{}, fmt.Errorf("wavdecode: missing format chunk")
	}

	scale := float32(int(1) << uint(buf.SourceBitDepth-1))
	if buf.SourceBitDepth <= 0 {
		scale = float32(1 << 15) // fall back to the common 16-bit case
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}

	return loader.Decoded{
		Rate:     uint32(buf.Format.SampleRate),
		Channels: buf.Format.NumChannels,
		Samples:  samples,
	}, nil
}
