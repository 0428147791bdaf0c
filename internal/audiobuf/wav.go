package audiobuf

import (
	"encoding/binary"
	"fmt"
	"os"
)

// WavExport resamples the payload to sampleRate and writes it to path as a
// canonical 16-bit integer PCM WAV file with the payload's channel count.
// No ecosystem WAV encoder appears anywhere in the retrieval pack, so this
// writes the (small, fixed) RIFF/fmt/data structure directly with
// encoding/binary.
func (p *Payload) WavExport(path string, sampleRate float64) error {
	resampled, err := p.Resample(sampleRate)
	if err != nil {
		return fmt.Errorf("audiobuf: resample before wav export: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audiobuf: create %s: %w", path, err)
	}
	defer f.Close()

	const bitsPerSample = 16
	channels := uint16(resampled.Channels)
	rate := uint32(sampleRate)
	blockAlign := channels * bitsPerSample / 8
	byteRate := rate * uint32(blockAlign)
	dataSize := uint32(len(resampled.Samples)) * uint32(bitsPerSample/8)

	hdr := make([]byte, 44)
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], 36+dataSize)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(hdr[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], channels)
	binary.LittleEndian.PutUint32(hdr[24:28], rate)
	binary.LittleEndian.PutUint32(hdr[28:32], byteRate)
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], bitsPerSample)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataSize)

	if _, err := f.Write(hdr); err != nil {
		return fmt.Errorf("audiobuf: write wav header: %w", err)
	}

	buf := make([]byte, 2)
	for _, s := range resampled.Samples {
		v := saturateS16(s)
		binary.LittleEndian.PutUint16(buf, uint16(v))
		if _, err := f.Write(buf); err != nil {
			return fmt.Errorf("audiobuf: write wav samples: %w", err)
		}
	}
	return nil
}
