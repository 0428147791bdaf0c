package fake

import (
	"context"
	"io"

	"github.com/selectia/selectia-core/internal/ports"
)

// Decoder is a scripted ports.Decoder: it ignores the actual bytes read from
// the source and instead replays the blocks it was constructed with. It
// stands in for the real encoded-audio probe/decoder (Symphonia-shaped; an
// external collaborator per spec §6) in tests.
type Decoder struct {
	Info   ports.TrackInfo
	Blocks []ports.DecodedBlock
	// ProbeErr, if set, is returned by Probe instead of Info.
	ProbeErr error
}

func (d *Decoder) Probe(_ context.Context, r io.Reader, _ string) (ports.TrackInfo, error) {
	if d.ProbeErr != nil {
		return ports.TrackInfo{}, d.ProbeErr
	}
	// Drain the source the way a real probe would consume its header bytes.
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64))
	return d.Info, nil
}

func (d *Decoder) ReadBlocks(_ context.Context, yield func(ports.DecodedBlock) bool) error {
	for _, b := range d.Blocks {
		if !yield(b) {
			return nil
		}
	}
	return nil
}
