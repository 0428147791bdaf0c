package fake

import (
	"context"
	"sync"
	"time"

	"github.com/selectia/selectia-core/internal/ports"
)

// AudioHost stands in for the platform audio device layer (CPAL/PortAudio
// shaped per spec §6). Its stream drives the write callback on a ticker
// instead of a real hardware clock, at the block size/rate it was
// configured with.
type AudioHost struct {
	Config    ports.OutputStreamConfig
	BlockSize int
}

func NewAudioHost(cfg ports.OutputStreamConfig, blockSize int) *AudioHost {
	if blockSize <= 0 {
		blockSize = 1024
	}
	return &AudioHost{Config: cfg, BlockSize: blockSize}
}

func (h *AudioHost) DefaultOutputConfig(_ context.Context) (ports.OutputStreamConfig, error) {
	return h.Config, nil
}

func (h *AudioHost) BuildOutputStream(_ context.Context, cfg ports.OutputStreamConfig, write ports.WriteFunc, onError func(error)) (ports.Stream, error) {
	return &stream{cfg: cfg, blockSize: h.BlockSize, write: write, onError: onError}, nil
}

type stream struct {
	cfg       ports.OutputStreamConfig
	blockSize int
	write     ports.WriteFunc
	onError   func(error)

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

func (s *stream) Start() error {
	s.mu.Lock()
	s.done = make(chan struct{})
	s.mu.Unlock()

	bytesPerSample := 4 // f32/i32 width; good enough for a fake clock source
	bufSize := s.blockSize * s.cfg.Channels * bytesPerSample
	period := time.Duration(float64(s.blockSize) / s.cfg.SampleRate * float64(time.Second))
	if period <= 0 {
		period = time.Millisecond
	}

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		buf := make([]byte, bufSize)
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.write(buf, s.cfg.Channels, s.cfg.SampleRate)
			}
		}
	}()
	return nil
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)
	return nil
}
