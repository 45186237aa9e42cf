package container

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warchs/rstf/internal/pathsafe"
	"github.com/warchs/rstf/internal/rerr"
)

// withWorkDir chdirs into a fresh temp directory for the duration of the
// test, since Unpack/List write relative to the current working directory.
func withWorkDir(t *testing.T) string {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(cwd)) })
	return dir
}

func TestRoundTripFile(t *testing.T) {
	dir := withWorkDir(t)
	src := filepath.Join(dir, "source", "report.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o700))
	contents := []byte("hello, world\n")
	require.NoError(t, os.WriteFile(src, contents, 0o600))

	out, err := Pack(PackOptions{InputPath: src, Password: "correct horse", Level: 5})
	require.NoError(t, err)
	assert.Equal(t, src+Extension, out)

	extractDir := filepath.Join(dir, "extract")
	require.NoError(t, os.MkdirAll(extractDir, 0o700))
	require.NoError(t, os.Chdir(extractDir))

	h, err := Unpack(UnpackOptions{ContainerPath: out, Password: "correct horse"})
	require.NoError(t, err)
	assert.False(t, h.IsDir)
	assert.Equal(t, "report.txt", h.OriginalName)

	got, err := os.ReadFile(filepath.Join(extractDir, "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, contents, got)
}

func TestRoundTripEmptyFile(t *testing.T) {
	dir := withWorkDir(t)
	src := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(src, nil, 0o600))

	out, err := Pack(PackOptions{InputPath: src, Password: "pw", Level: 5})
	require.NoError(t, err)

	extractDir := filepath.Join(dir, "extract")
	require.NoError(t, os.MkdirAll(extractDir, 0o700))
	require.NoError(t, os.Chdir(extractDir))

	_, err = Unpack(UnpackOptions{ContainerPath: out, Password: "pw"})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(extractDir, "empty.bin"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestRoundTripDirectory(t *testing.T) {
	dir := withWorkDir(t)
	srcDir := filepath.Join(dir, "d")
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "sub"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a"), []byte("hello\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "sub", "b"), []byte("world\n"), 0o600))

	out, err := Pack(PackOptions{InputPath: srcDir, Password: "pw", Level: 5})
	require.NoError(t, err)

	extractDir := filepath.Join(dir, "extract")
	require.NoError(t, os.MkdirAll(extractDir, 0o700))
	require.NoError(t, os.Chdir(extractDir))

	h, err := Unpack(UnpackOptions{ContainerPath: out, Password: "pw"})
	require.NoError(t, err)
	assert.True(t, h.IsDir)

	gotA, err := os.ReadFile(filepath.Join(extractDir, "d", "a"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(gotA))

	gotB, err := os.ReadFile(filepath.Join(extractDir, "d", "sub", "b"))
	require.NoError(t, err)
	assert.Equal(t, "world\n", string(gotB))
}

func TestWrongPasswordRejected(t *testing.T) {
	dir := withWorkDir(t)
	src := filepath.Join(dir, "secret.txt")
	require.NoError(t, os.WriteFile(src, []byte("top secret"), 0o600))

	out, err := Pack(PackOptions{InputPath: src, Password: "right password", Level: 5})
	require.NoError(t, err)

	extractDir := filepath.Join(dir, "extract")
	require.NoError(t, os.MkdirAll(extractDir, 0o700))
	require.NoError(t, os.Chdir(extractDir))

	_, err = Unpack(UnpackOptions{ContainerPath: out, Password: "wrong password"})
	require.Error(t, err)
	assert.True(t, rerr.IsKind(err, rerr.Auth))

	_, statErr := os.Stat(filepath.Join(extractDir, "secret.txt"))
	assert.True(t, os.IsNotExist(statErr), "no payload bytes should be written on auth failure")
}

func TestKeyfileRequiredToUnpack(t *testing.T) {
	dir := withWorkDir(t)
	src := filepath.Join(dir, "secret.txt")
	require.NoError(t, os.WriteFile(src, []byte("top secret"), 0o600))
	keyfile := filepath.Join(dir, "keyfile.bin")
	require.NoError(t, os.WriteFile(keyfile, []byte("extra entropy"), 0o600))

	out, err := Pack(PackOptions{InputPath: src, Password: "pw", KeyfilePath: keyfile, Level: 5})
	require.NoError(t, err)

	extractDir := filepath.Join(dir, "extract")
	require.NoError(t, os.MkdirAll(extractDir, 0o700))
	require.NoError(t, os.Chdir(extractDir))

	_, err = Unpack(UnpackOptions{ContainerPath: out, Password: "pw"})
	require.Error(t, err)

	_, err = Unpack(UnpackOptions{ContainerPath: out, Password: "pw", KeyfilePath: keyfile})
	require.NoError(t, err)
}

func TestTamperedContainerRejected(t *testing.T) {
	dir := withWorkDir(t)
	src := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(src, []byte("some data that spans more than one byte"), 0o600))

	out, err := Pack(PackOptions{InputPath: src, Password: "pw", Level: 5})
	require.NoError(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(out, raw, 0o600))

	extractDir := filepath.Join(dir, "extract")
	require.NoError(t, os.MkdirAll(extractDir, 0o700))
	require.NoError(t, os.Chdir(extractDir))

	_, err = Unpack(UnpackOptions{ContainerPath: out, Password: "pw"})
	require.Error(t, err)
	assert.True(t, rerr.IsKind(err, rerr.Auth))

	_, statErr := os.Stat(filepath.Join(extractDir, "file.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

// TestTamperedPostHeaderFrameRejected uses a payload large enough that its
// compressed, sealed bytes span more than one 64KB frame past the header
// frame, so the flipped bit is caught by the stream opener while the
// container package is reading payload through the zstd/tar filters rather
// than while container.openHeader is still decoding the header itself. It
// must still surface as AuthError, not a filter-specific IoError or
// CompressionError.
func TestTamperedPostHeaderFrameRejected(t *testing.T) {
	dir := withWorkDir(t)
	src := filepath.Join(dir, "big.bin")
	payload := make([]byte, 256*1024)
	_, err := rand.Read(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(src, payload, 0o600))

	out, err := Pack(PackOptions{InputPath: src, Password: "pw", Level: 5})
	require.NoError(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(out, raw, 0o600))

	extractDir := filepath.Join(dir, "extract")
	require.NoError(t, os.MkdirAll(extractDir, 0o700))
	require.NoError(t, os.Chdir(extractDir))

	_, err = Unpack(UnpackOptions{ContainerPath: out, Password: "pw"})
	require.Error(t, err)
	assert.True(t, rerr.IsKind(err, rerr.Auth), "expected AuthError, got %v", err)

	_, statErr := os.Stat(filepath.Join(extractDir, "big.bin"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPackTwiceProducesDifferentPrefixes(t *testing.T) {
	dir := withWorkDir(t)
	src := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(src, []byte("same contents"), 0o600))

	out1, err := Pack(PackOptions{InputPath: src, Password: "pw", Level: 5})
	require.NoError(t, err)
	raw1, err := os.ReadFile(out1)
	require.NoError(t, err)

	require.NoError(t, os.Remove(out1))
	out2, err := Pack(PackOptions{InputPath: src, Password: "pw", Level: 5})
	require.NoError(t, err)
	raw2, err := os.ReadFile(out2)
	require.NoError(t, err)

	assert.NotEqual(t, raw1[:23], raw2[:23])
}

func TestListDoesNotWritePayload(t *testing.T) {
	dir := withWorkDir(t)
	src := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))

	out, err := Pack(PackOptions{InputPath: src, Password: "pw", Level: 5})
	require.NoError(t, err)

	extractDir := filepath.Join(dir, "extract")
	require.NoError(t, os.MkdirAll(extractDir, 0o700))
	require.NoError(t, os.Chdir(extractDir))

	h, err := List(out, "pw", "")
	require.NoError(t, err)
	assert.Equal(t, "file.txt", h.OriginalName)
	assert.False(t, h.IsDir)
	assert.EqualValues(t, len("payload"), h.OriginalSize)

	entries, err := os.ReadDir(extractDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPathTraversalHeaderRejected(t *testing.T) {
	// A header with a ".." name can only arise from a tampered or hostile
	// container (original_name is controlled by Pack), so this exercises
	// the check openHeader applies directly rather than forging ciphertext.
	require.Error(t, pathsafe.Check("../escape.txt"))
	require.NoError(t, pathsafe.Check("safe.txt"))
}
