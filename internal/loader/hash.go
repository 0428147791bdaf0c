package loader

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// sampleBlock is the window size absorbed from each sampled region (spec
// §4.6: "let B = 128 KiB").
const sampleBlock = 128 * 1024

// SampledHash computes the deterministic sampled-content digest for the
// file at path: the 8-byte file size, then up to three 128 KiB windows
// (head, tail, middle) depending on how large the file is, Base64 encoded.
// This bounds hashing to at most 3*sampleBlock bytes read regardless of
// file size.
func SampledHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("loader: stat %s: %w", path, err)
	}
	size := info.Size()

	h := sha256.New()

	var sizeBuf [8]byte
	binary.BigEndian.PutUint64(sizeBuf[:], uint64(size))
	h.Write(sizeBuf[:])

	const b = sampleBlock
	switch {
	case size < b:
		if err := absorbRange(h, f, 0, size); err != nil {
			return "", err
		}
	default:
		if err := absorbRange(h, f, 0, b); err != nil {
			return "", err
		}
		if size >= 2*b {
			if err := absorbRange(h, f, size-b, b); err != nil {
				return "", err
			}
		}
		if size >= 4*b {
			mid := size/2 - b/2
			if err := absorbRange(h, f, mid, b); err != nil {
				return "", err
			}
		}
	}

	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

func absorbRange(h io.Writer, f *os.File, offset, length int64) error {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("loader: seek: %w", err)
	}
	if _, err := io.CopyN(h, f, length); err != nil {
		return fmt.Errorf("loader: read sample window: %w", err)
	}
	return nil
}
