// Package header implements the compact, non-self-describing binary record
// that precedes the compressed payload inside the sealed stream: whether
// the source was a directory, its original name, and its original size.
package header

import (
	"encoding/binary"

	"github.com/warchs/rstf/internal/rerr"
)

// Version is the current header schema version, stored in the first byte
// of the encoded record so a future schema change can be detected instead
// of silently misparsed.
const Version = 1

// maxNameLen is the longest original_name the 16-bit name_len field can
// describe; Encode rejects longer names instead of truncating the length.
const maxNameLen = 1<<16 - 1

// Header describes the payload wrapped inside a container.
type Header struct {
	IsDir        bool
	OriginalName string
	OriginalSize uint64
}

// Encode serializes h as: version[1] ‖ is_dir[1] ‖ name_len_be16[2] ‖
// name[name_len] ‖ original_size_be64[8].
func Encode(h Header) ([]byte, error) {
	name := []byte(h.OriginalName)
	if len(name) > maxNameLen {
		return nil, rerr.New(rerr.Format, "original name too long to encode")
	}

	buf := make([]byte, 0, 1+1+2+len(name)+8)
	buf = append(buf, Version)
	if h.IsDir {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(name)))
	buf = append(buf, name...)
	buf = binary.BigEndian.AppendUint64(buf, h.OriginalSize)
	return buf, nil
}

// Decode parses a header record previously produced by Encode.
func Decode(b []byte) (Header, error) {
	if len(b) < 1+1+2 {
		return Header{}, rerr.New(rerr.Format, "header too short")
	}
	version := b[0]
	if version != Version {
		return Header{}, rerr.New(rerr.Format, "unsupported header version")
	}
	isDir := b[1] != 0
	nameLen := int(binary.BigEndian.Uint16(b[2:4]))
	rest := b[4:]
	if nameLen > maxNameLen || len(rest) < nameLen+8 {
		return Header{}, rerr.New(rerr.Format, "header length fields inconsistent")
	}
	name := string(rest[:nameLen])
	size := binary.BigEndian.Uint64(rest[nameLen : nameLen+8])
	return Header{IsDir: isDir, OriginalName: name, OriginalSize: size}, nil
}
