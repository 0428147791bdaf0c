package loader

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestSampledHashStableForIdenticalContent(t *testing.T) {
	data := bytes.Repeat([]byte{0xAA}, 512*1024)
	pathA := writeTempFile(t, data)
	pathB := writeTempFile(t, data)

	hashA, err := SampledHash(pathA)
	require.NoError(t, err)
	hashB, err := SampledHash(pathB)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB)
}

func TestSampledHashSensitiveToMiddleByteFlip(t *testing.T) {
	size := 512 * 1024
	data := bytes.Repeat([]byte{0xAA}, size)
	original := writeTempFile(t, data)

	flipped := make([]byte, size)
	copy(flipped, data)
	flipped[size/2] = 0xAB
	modified := writeTempFile(t, flipped)

	hashOriginal, err := SampledHash(original)
	require.NoError(t, err)
	hashModified, err := SampledHash(modified)
	require.NoError(t, err)

	assert.NotEqual(t, hashOriginal, hashModified)
}

func TestSampledHashSmallFileReadsWholeFile(t *testing.T) {
	data := []byte("a tiny file well under 128 KiB")
	path := writeTempFile(t, data)

	hash, err := SampledHash(path)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}

func TestSampledHashDiffersBySize(t *testing.T) {
	pathSmall := writeTempFile(t, bytes.Repeat([]byte{0x01}, 100))
	pathLarge := writeTempFile(t, bytes.Repeat([]byte{0x01}, 200))

	hashSmall, err := SampledHash(pathSmall)
	require.NoError(t, err)
	hashLarge, err := SampledHash(pathLarge)
	require.NoError(t, err)

	assert.NotEqual(t, hashSmall, hashLarge)
}
