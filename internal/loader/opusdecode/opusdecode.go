// Package opusdecode adapts gopkg.in/hraban/opus.v2 to the loader.Decoder
// interface. It decodes a simple self-describing container: a 10-byte
// header (magic, sample rate, channel count) followed by a sequence of
// length-prefixed raw Opus packets. Real streaming Opus-in-Ogg demuxing is
// out of scope — see the loader's decoder boundary.
package opusdecode

import (
	"encoding/binary"
	"fmt"
	"io"

	"gopkg.in/hraban/opus.v2"

	"github.com/tr-nc/petalsonic/internal/loader"
)

// magic identifies the container format.
var magic = [4]byte{'P', 'S', 'O', 'P'}

// maxFrameSamples bounds a single decoded Opus frame (120ms at 48kHz stereo
// is the library's documented worst case).
const maxFrameSamples = 5760 * 2

// Decoder decodes the petalsonic Opus container into interleaved f32
// samples.
type Decoder struct{}

// New returns a ready-to-use Opus decoder.
func New() Decoder { return Decoder{} }

// Decode implements loader.Decoder.
func (Decoder) Decode(r io.Reader) (loader.Decoded, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return loader.Decoded{}, fmt.Errorf("opusdecode: read header: %w", err)
	}
	if hdr != magic {
		return loader.Decoded{}, fmt.Errorf("opusdecode: bad magic")
	}

	var rate uint32
	if err := binary.Read(r, binary.LittleEndian, &rate); err != nil {
		return loader.Decoded{}, fmt.Errorf("opusdecode: read rate: %w", err)
	}
	var channels uint16
	if err := binary.Read(r, binary.LittleEndian, &channels); err != nil {
		return loader.Decoded{}, fmt.Errorf("opusdecode: read channels: %w", err)
	}
	if rate == 0 || channels == 0 {
		return loader.Decoded{}, fmt.Errorf("opusdecode: invalid header (rate=%d channels=%d)", rate, channels)
	}

	dec, err := opus.NewDecoder(int(rate), int(channels))
	if err != nil {
		return loader.Decoded{}, fmt.Errorf("opusdecode: init decoder: %w", err)
	}

	pcm := make([]int16, maxFrameSamples)
	var samples []float32

	for {
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			if err == io.EOF {
				break
			}
			return loader.Decoded{}, fmt.Errorf("opusdecode: read packet length: %w", err)
		}
		packet := make([]byte, length)
		if _, err := io.ReadFull(r, packet); err != nil {
			return loader.Decoded{}, fmt.Errorf("opusdecode: read packet: %w", err)
		}

		n, err := dec.Decode(packet, pcm)
		if err != nil {
			return loader.Decoded{}, fmt.Errorf("opusdecode: decode packet: %w", err)
		}
		frameSamples := n * int(channels)
		for i := 0; i < frameSamples; i++ {
			samples = append(samples, float32(pcm[i])/32768.0)
		}
	}

	return loader.Decoded{
		Rate:     rate,
		Channels: int(channels),
		Samples:  samples,
	}, nil
}
