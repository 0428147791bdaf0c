package decoder

import (
	"bytes"
	"context"
	"testing"

	"github.com/selectia/selectia-core/internal/ports"
	"github.com/selectia/selectia-core/internal/ports/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSourceNoDefaultTrack(t *testing.T) {
	dec := &fake.Decoder{Info: ports.TrackInfo{HasDefaultTrack: false}}
	_, err := FromSource(context.Background(), dec, bytes.NewReader(nil), "clip.mp3")
	assert.ErrorIs(t, err, ErrNoDefaultTrack)
}

func TestReadIntoPayloadConcatenatesBlocks(t *testing.T) {
	dec := &fake.Decoder{
		Info: ports.TrackInfo{HasDefaultTrack: true, Spec: ports.AudioSpec{Rate: 44100, Channels: 1}},
		Blocks: []ports.DecodedBlock{
			{Spec: ports.AudioSpec{Rate: 44100, Channels: 1}, Samples: []float32{0, 1, 2}},
			{Spec: ports.AudioSpec{Rate: 44100, Channels: 1}, Samples: []float32{3, 4}},
		},
	}
	r, err := FromSource(context.Background(), dec, bytes.NewReader(make([]byte, 100)), "clip.wav")
	require.NoError(t, err)

	p, err := r.ReadIntoPayload(context.Background(), "clip")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 2, 3, 4}, p.Samples)
	assert.Equal(t, 44100.0, p.SampleRate)
}

func TestDecodedIteratorStopsEarly(t *testing.T) {
	dec := &fake.Decoder{
		Info: ports.TrackInfo{HasDefaultTrack: true},
		Blocks: []ports.DecodedBlock{
			{Samples: []float32{1}},
			{Samples: []float32{2}},
			{Samples: []float32{3}},
		},
	}
	r, err := FromSource(context.Background(), dec, bytes.NewReader(nil), "clip.wav")
	require.NoError(t, err)

	var seen int
	_ = r.DecodedIterator(context.Background(), func(ports.DecodedBlock) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen)
}
