// Package container implements the three top-level pipeline orchestrators:
// Pack produces a container from a source path, Unpack reconstructs the
// source from a container, and List reports the container's header
// without extracting payload.
package container

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/warchs/rstf/internal/archive"
	"github.com/warchs/rstf/internal/compressor"
	"github.com/warchs/rstf/internal/credential"
	"github.com/warchs/rstf/internal/header"
	"github.com/warchs/rstf/internal/pathsafe"
	"github.com/warchs/rstf/internal/rerr"
	"github.com/warchs/rstf/internal/stream"
)

// Extension is appended to a source's file name to derive the output
// container name.
const Extension = ".rstf"

const saltSize = 16

// maxHeaderLen bounds header_len so a corrupt prefix cannot force an
// unbounded allocation before the AEAD tag over it has been checked.
const maxHeaderLen = 1 << 20

// PackOptions configures Pack.
type PackOptions struct {
	InputPath   string
	Password    string
	KeyfilePath string
	Level       int
}

// Pack reads InputPath (a file or directory), and writes a container named
// by OutputPath() next to it. It returns the output path on success.
func Pack(opts PackOptions) (string, error) {
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		return "", rerr.Wrap(rerr.IO, "stat input path", err)
	}
	isDir := info.IsDir()

	var salt [saltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return "", rerr.Wrap(rerr.Credential, "generate salt", err)
	}
	var baseNonce [stream.BaseNonceSize]byte
	if _, err := rand.Read(baseNonce[:]); err != nil {
		return "", rerr.Wrap(rerr.Credential, "generate base nonce", err)
	}

	key, err := credential.Derive(opts.Password, opts.KeyfilePath, salt[:])
	if err != nil {
		return "", err
	}
	defer credential.Wipe(&key)

	outputPath := OutputPath(opts.InputPath)
	outFile, err := os.Create(outputPath)
	if err != nil {
		return "", rerr.Wrap(rerr.IO, "create container file", err)
	}
	defer outFile.Close()

	bufWriter := bufio.NewWriterSize(outFile, stream.Chunk)

	if _, err := bufWriter.Write(salt[:]); err != nil {
		return "", rerr.Wrap(rerr.IO, "write salt", err)
	}
	if _, err := bufWriter.Write(baseNonce[:]); err != nil {
		return "", rerr.Wrap(rerr.IO, "write base nonce", err)
	}

	sealer, err := stream.NewEncryptedWriter(bufWriter, key[:], baseNonce)
	if err != nil {
		return "", err
	}

	originalSize := uint64(0)
	if !isDir {
		originalSize = uint64(info.Size())
	}
	h := header.Header{
		IsDir:        isDir,
		OriginalName: filepath.Base(opts.InputPath),
		OriginalSize: originalSize,
	}
	headerBytes, err := header.Encode(h)
	if err != nil {
		_ = sealer.Close()
		return "", err
	}

	var headerLen [4]byte
	binary.LittleEndian.PutUint32(headerLen[:], uint32(len(headerBytes)))
	if _, err := sealer.Write(headerLen[:]); err != nil {
		_ = sealer.Close()
		return "", err
	}
	if _, err := sealer.Write(headerBytes); err != nil {
		_ = sealer.Close()
		return "", err
	}

	enc, err := compressor.NewEncoder(sealer, compressor.LevelFromEffort(opts.Level))
	if err != nil {
		_ = sealer.Close()
		return "", err
	}

	if isDir {
		err = archive.WriteDir(enc, opts.InputPath, h.OriginalName)
	} else {
		err = copyFileInto(enc, opts.InputPath)
	}
	if err != nil {
		_ = enc.Close()
		_ = sealer.Close()
		return "", err
	}

	// Scoped release order matters: the compressor's trailing bytes must
	// reach the sealer, and the sealer's terminal frame must reach the
	// buffered writer, before the underlying file is closed.
	if err := enc.Close(); err != nil {
		_ = sealer.Close()
		return "", err
	}
	if err := sealer.Close(); err != nil {
		return "", err
	}
	if err := bufWriter.Flush(); err != nil {
		return "", rerr.Wrap(rerr.IO, "flush container file", err)
	}
	if err := outFile.Close(); err != nil {
		return "", rerr.Wrap(rerr.IO, "close container file", err)
	}
	return outputPath, nil
}

func copyFileInto(dst io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return rerr.Wrap(rerr.IO, "open source file", err)
	}
	defer f.Close()
	if _, err := io.Copy(dst, f); err != nil {
		return rerr.Wrap(rerr.IO, "copy source file", err)
	}
	return nil
}

// OutputPath derives the container's output filename by appending
// Extension to the source's file name, or setting it as the extension if
// the source has no file name component.
func OutputPath(inputPath string) string {
	dir := filepath.Dir(inputPath)
	base := filepath.Base(inputPath)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return inputPath + Extension
	}
	return filepath.Join(dir, base+Extension)
}

// openHeader opens containerPath, reads salt and base nonce, derives the
// key, constructs the opener, and reads and decodes the header. It is
// shared by Unpack and List.
func openHeader(containerPath, password, keyfilePath string) (*os.File, *stream.DecryptedReader, header.Header, error) {
	f, err := os.Open(containerPath)
	if err != nil {
		return nil, nil, header.Header{}, rerr.Wrap(rerr.IO, "open container", err)
	}

	var salt [saltSize]byte
	var baseNonce [stream.BaseNonceSize]byte
	if _, err := io.ReadFull(f, salt[:]); err != nil {
		f.Close()
		return nil, nil, header.Header{}, rerr.Wrap(rerr.Format, "container shorter than salt prefix", err)
	}
	if _, err := io.ReadFull(f, baseNonce[:]); err != nil {
		f.Close()
		return nil, nil, header.Header{}, rerr.Wrap(rerr.Format, "container shorter than nonce prefix", err)
	}

	key, err := credential.Derive(password, keyfilePath, salt[:])
	if err != nil {
		f.Close()
		return nil, nil, header.Header{}, err
	}
	defer credential.Wipe(&key)

	opener, err := stream.NewDecryptedReader(f, key[:], baseNonce)
	if err != nil {
		f.Close()
		return nil, nil, header.Header{}, err
	}

	var headerLen [4]byte
	if _, err := io.ReadFull(opener, headerLen[:]); err != nil {
		f.Close()
		return nil, nil, header.Header{}, rerr.Wrap(rerr.Auth, "decrypt header length (wrong password or keyfile?)", err)
	}
	n := binary.LittleEndian.Uint32(headerLen[:])
	if n > maxHeaderLen {
		f.Close()
		return nil, nil, header.Header{}, rerr.New(rerr.Format, "header length absurdly large")
	}

	headerBytes := make([]byte, n)
	if _, err := io.ReadFull(opener, headerBytes); err != nil {
		f.Close()
		return nil, nil, header.Header{}, rerr.Wrap(rerr.Auth, "decrypt header body (wrong password or keyfile?)", err)
	}

	h, err := header.Decode(headerBytes)
	if err != nil {
		f.Close()
		return nil, nil, header.Header{}, err
	}
	if err := pathsafe.Check(h.OriginalName); err != nil {
		f.Close()
		return nil, nil, header.Header{}, err
	}

	return f, opener, h, nil
}

// UnpackOptions configures Unpack.
type UnpackOptions struct {
	ContainerPath string
	Password      string
	KeyfilePath   string
}

// Unpack reconstructs the original file or directory tree into the current
// working directory.
func Unpack(opts UnpackOptions) (header.Header, error) {
	f, opener, h, err := openHeader(opts.ContainerPath, opts.Password, opts.KeyfilePath)
	if err != nil {
		return header.Header{}, err
	}
	defer f.Close()

	dec, err := compressor.NewDecoder(opener)
	if err != nil {
		return header.Header{}, err
	}
	defer dec.Close()

	if h.IsDir {
		if err := archive.ExtractDir(dec, "."); err != nil {
			return header.Header{}, err
		}
		return h, nil
	}

	out, err := os.Create(h.OriginalName)
	if err != nil {
		return header.Header{}, rerr.Wrap(rerr.IO, "create output file", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, dec); err != nil {
		out.Close()
		_ = os.Remove(h.OriginalName)
		return header.Header{}, err
	}
	return h, nil
}

// List reports the container's header fields without decoding or writing
// any payload bytes.
func List(containerPath, password, keyfilePath string) (header.Header, error) {
	f, _, h, err := openHeader(containerPath, password, keyfilePath)
	if err != nil {
		return header.Header{}, err
	}
	defer f.Close()
	return h, nil
}
