// Package compressor wraps klauspost/compress/zstd as the container's
// compression filter: a streaming byte-for-byte codec sitting inside the
// authenticated layer, so the sealed bytes carry compressed plaintext
// rather than the reverse (encrypted bytes are incompressible).
package compressor

import (
	"errors"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/warchs/rstf/internal/rerr"
)

// LevelFromEffort maps the CLI's numeric --level (0-9, default 5) onto a
// zstd.EncoderLevel, matching zstd's own speed/ratio tiers.
func LevelFromEffort(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 5:
		return zstd.SpeedDefault
	case level <= 8:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

// Encoder wraps a zstd.Encoder, translating codec errors into
// rerr.Compression. An error that already carries a Kind (such as an
// IoError surfacing from the sealer beneath it) passes through unchanged.
type Encoder struct {
	enc *zstd.Encoder
}

// NewEncoder constructs a streaming zstd encoder writing compressed bytes
// to dst at the given effort level, using up to the host's CPU count for
// parallel compression. That concurrency is internal to the codec and
// opaque to the sealer wrapped around it.
func NewEncoder(dst io.Writer, level zstd.EncoderLevel) (*Encoder, error) {
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, rerr.Wrap(rerr.Compression, "construct zstd encoder", err)
	}
	return &Encoder{enc: enc}, nil
}

func (e *Encoder) Write(p []byte) (int, error) {
	n, err := e.enc.Write(p)
	if err != nil {
		return n, wrapCodecErr("zstd write", err)
	}
	return n, nil
}

// Close flushes the encoder's trailing bytes into the wrapped sealer. It
// does not close the underlying writer.
func (e *Encoder) Close() error {
	if err := e.enc.Close(); err != nil {
		return wrapCodecErr("zstd close", err)
	}
	return nil
}

// Decoder wraps a zstd.Decoder, translating codec errors into
// rerr.Compression. An error that already carries a Kind (an AuthError or
// TruncationError surfacing from the opener beneath it) passes through
// unchanged.
type Decoder struct {
	dec *zstd.Decoder
}

// NewDecoder constructs a streaming zstd decoder reading compressed bytes
// from src.
func NewDecoder(src io.Reader) (*Decoder, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, rerr.Wrap(rerr.Compression, "construct zstd decoder", err)
	}
	return &Decoder{dec: dec}, nil
}

func (d *Decoder) Read(p []byte) (int, error) {
	n, err := d.dec.Read(p)
	if err != nil && err != io.EOF {
		return n, wrapCodecErr("zstd read", err)
	}
	return n, err
}

// Close releases the decoder's background goroutines.
func (d *Decoder) Close() {
	d.dec.Close()
}

// wrapCodecErr passes an error already carrying a Kind (typically an
// AuthError or TruncationError surfacing from the sealed stream beneath the
// codec) through unchanged, instead of reclassifying it as CompressionError.
// Only errors genuinely originating in the zstd codec itself are wrapped.
func wrapCodecErr(message string, err error) error {
	var re *rerr.Error
	if errors.As(err, &re) {
		return re
	}
	return rerr.Wrap(rerr.Compression, message, err)
}
