// Package credential derives the container's 256-bit symmetric key from a
// password (optionally strengthened by a keyfile digest) and the
// container's per-container salt, and guarantees the intermediate
// credential buffers are wiped on every return path.
package credential

import (
	"crypto/sha256"
	"io"
	"os"

	"golang.org/x/crypto/argon2"

	"github.com/warchs/rstf/internal/rerr"
)

// KeySize is the derived key length in bytes.
const KeySize = 32

// Argon2id parameters. Fixed rather than user-tunable: every container
// produced by this build must be decryptable by the same build, so the
// parameters cannot silently drift between pack and unpack. The values
// are Argon2id's interactive baseline, scaled down from a long-running
// service's recommended defaults to suit a one-shot CLI invocation.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB, i.e. 64 MiB
	argonThreads = 4
)

// Derive combines password with the SHA-256 digest of keyfilePath's
// contents (when keyfilePath is non-empty) and runs Argon2id against salt
// to produce a KeySize-byte key. The password bytes, the keyfile digest and
// the intermediate combined-credential buffer are zeroed before Derive
// returns, on every path including error paths.
func Derive(password string, keyfilePath string, salt []byte) (key [KeySize]byte, err error) {
	passwordBytes := []byte(password)
	defer wipe(passwordBytes)

	combined := make([]byte, 0, len(passwordBytes)+sha256.Size)
	combined = append(combined, passwordBytes...)
	defer func() { wipe(combined) }()

	if keyfilePath != "" {
		digest, ferr := digestFile(keyfilePath)
		if ferr != nil {
			return key, rerr.Wrap(rerr.Credential, "read keyfile", ferr)
		}
		combined = append(combined, digest[:]...)
		wipe(digest[:])
	}

	derived := argon2.IDKey(combined, salt, argonTime, argonMemory, argonThreads, KeySize)
	defer wipe(derived)

	if isZero(derived) {
		return key, rerr.New(rerr.Credential, "key derivation produced a zero key")
	}
	copy(key[:], derived)
	return key, nil
}

// Wipe zeroes the derived key once the caller is done with it.
func Wipe(key *[KeySize]byte) {
	for i := range key {
		key[i] = 0
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func digestFile(path string) ([sha256.Size]byte, error) {
	var out [sha256.Size]byte
	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return out, err
	}
	copy(out[:], h.Sum(nil))
	return out, nil
}
