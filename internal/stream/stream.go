// Package stream implements the chunked AEAD framing that binds a
// plaintext byte stream into an ordered sequence of sealed frames: the
// container's core cryptographic layer. A base nonce plus a monotonically
// increasing per-frame counter and an explicit terminal-frame flag give
// every frame a unique nonce and make reordering, truncation, duplication,
// or splicing of frames detectable by AEAD tag verification alone.
package stream

import (
	"crypto/cipher"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/warchs/rstf/internal/rerr"
)

// Chunk is the fixed plaintext size of every frame but the last.
const Chunk = 64 * 1024

// BaseNonceSize is the length of the per-container random nonce prefix.
const BaseNonceSize = 7

const (
	counterSize = 4 // big-endian frame counter
	flagSize    = 1 // terminal-frame flag
)

// frameNonceSize is the AEAD's full nonce size: base nonce, counter, flag.
const frameNonceSize = BaseNonceSize + counterSize + flagSize

func init() {
	if frameNonceSize != chacha20poly1305.NonceSize {
		panic("stream: frame nonce size does not match chacha20poly1305.NonceSize")
	}
}

const lastFrameFlag = 1

// frameNonce derives the 12-byte per-frame nonce from a base nonce and a
// frame counter, setting the terminal flag when last is true.
func frameNonce(base [BaseNonceSize]byte, counter uint32, last bool) [frameNonceSize]byte {
	var n [frameNonceSize]byte
	copy(n[:BaseNonceSize], base[:])
	n[BaseNonceSize] = byte(counter >> 24)
	n[BaseNonceSize+1] = byte(counter >> 16)
	n[BaseNonceSize+2] = byte(counter >> 8)
	n[BaseNonceSize+3] = byte(counter)
	if last {
		n[frameNonceSize-1] = lastFrameFlag
	}
	return n
}

// EncryptedWriter accumulates plaintext into CHUNK-sized buffers and seals
// exactly one AEAD frame per full buffer, emitting ciphertext‖tag to an
// inner io.Writer. Close seals the terminal frame over whatever remains in
// the buffer, even if empty.
type EncryptedWriter struct {
	dst     io.Writer
	aead    cipher.AEAD
	base    [BaseNonceSize]byte
	counter uint32
	buf     []byte
	closed  bool
	err     error
}

// NewEncryptedWriter constructs a sealer writing sealed frames to dst.
// baseNonce must be BaseNonceSize bytes of fresh randomness, unique per
// container for a given key.
func NewEncryptedWriter(dst io.Writer, key []byte, baseNonce [BaseNonceSize]byte) (*EncryptedWriter, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, rerr.Wrap(rerr.Credential, "construct AEAD", err)
	}
	return &EncryptedWriter{
		dst:  dst,
		aead: aead,
		base: baseNonce,
		buf:  make([]byte, 0, Chunk),
	}, nil
}

// Write implements io.Writer. Every byte passed to Write is eventually
// sealed, in order, possibly spread across several frames; a Write call
// never itself emits the terminal frame.
func (w *EncryptedWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	total := len(p)
	for len(p) > 0 {
		room := Chunk - len(w.buf)
		n := room
		if n > len(p) {
			n = len(p)
		}
		w.buf = append(w.buf, p[:n]...)
		p = p[n:]
		if len(w.buf) == Chunk {
			if err := w.sealFrame(false); err != nil {
				w.err = err
				return 0, err
			}
		}
	}
	return total, nil
}

// sealFrame seals exactly one frame over the current buffer and writes it
// to the inner sink, then resets the buffer and advances the counter.
func (w *EncryptedWriter) sealFrame(last bool) error {
	nonce := frameNonce(w.base, w.counter, last)
	sealed := w.aead.Seal(nil, nonce[:], w.buf, nil)
	if _, err := w.dst.Write(sealed); err != nil {
		return rerr.Wrap(rerr.IO, "write sealed frame", err)
	}
	w.buf = w.buf[:0]
	if w.counter == ^uint32(0) {
		return rerr.New(rerr.Credential, "frame counter exhausted")
	}
	w.counter++
	return nil
}

// Close seals the terminal frame over any remaining buffered bytes (which
// may be zero-length) and marks the sealer closed. Calling Close more than
// once is a no-op; it does not emit a second terminal frame.
func (w *EncryptedWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.err != nil {
		return w.err
	}
	if err := w.sealFrame(true); err != nil {
		w.err = err
		return err
	}
	return nil
}

// DecryptedReader reads whole encrypted frames from an inner io.Reader,
// opens them, and serves plaintext on demand. It treats the AEAD
// construction's own terminal-frame flag — never a short read on the
// inner source — as the sole signal that the stream has ended.
type DecryptedReader struct {
	src     io.Reader
	aead    cipher.AEAD
	base    [BaseNonceSize]byte
	counter uint32

	plain      []byte
	offset     int
	terminated bool
}

// NewDecryptedReader constructs an opener reading sealed frames from src.
func NewDecryptedReader(src io.Reader, key []byte, baseNonce [BaseNonceSize]byte) (*DecryptedReader, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, rerr.Wrap(rerr.Credential, "construct AEAD", err)
	}
	return &DecryptedReader{src: src, aead: aead, base: baseNonce}, nil
}

// Read implements io.Reader.
func (r *DecryptedReader) Read(p []byte) (int, error) {
	for r.offset >= len(r.plain) {
		if r.terminated {
			return 0, io.EOF
		}
		if err := r.readFrame(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.plain[r.offset:])
	r.offset += n
	return n, nil
}

// readFrame reads one encrypted frame (up to Chunk+Overhead bytes, retrying
// across short reads), opens it, and stores the resulting plaintext.
func (r *DecryptedReader) readFrame() error {
	wire := make([]byte, Chunk+chacha20poly1305.Overhead)
	n, err := readFull(r.src, wire)
	if err != nil {
		return err
	}
	if n == 0 {
		if r.terminated {
			return io.EOF
		}
		return rerr.New(rerr.Truncation, "sealed stream ended without a terminal frame")
	}
	wire = wire[:n]

	nonceLast := frameNonce(r.base, r.counter, true)
	nonceNotLast := frameNonce(r.base, r.counter, false)

	// The wire does not tell us in advance whether this is the terminal
	// frame, so we try the non-terminal nonce first — it is only valid if
	// more data follows — and fall back to the terminal nonce. Both use
	// the same key and counter; only the flag bit differs, so trying both
	// costs one extra AEAD open at the true terminal frame and nowhere
	// else, and never serves plaintext whose tag did not verify.
	plain, openErr := r.aead.Open(nil, nonceNotLast[:], wire, nil)
	last := false
	if openErr != nil {
		plain, openErr = r.aead.Open(nil, nonceLast[:], wire, nil)
		last = true
	}
	if openErr != nil {
		return rerr.Wrap(rerr.Auth, "frame authentication failed", openErr)
	}

	r.plain = plain
	r.offset = 0
	if last {
		r.terminated = true
	}
	if r.counter == ^uint32(0) {
		return rerr.New(rerr.Format, "frame counter exhausted")
	}
	r.counter++
	return nil
}

// readFull reads until buf is full, the source is exhausted, or an error
// occurs, continuing across short reads. Any error other than io.EOF is
// returned as an IoError without retrying. It returns (0, nil) only at a
// clean end of stream before any byte of a new frame was read.
func readFull(src io.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := src.Read(buf[total:])
		total += n
		if err != nil {
			if err == io.EOF {
				break
			}
			return total, rerr.Wrap(rerr.IO, "read sealed frame", err)
		}
	}
	return total, nil
}
