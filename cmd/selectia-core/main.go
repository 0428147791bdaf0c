// Command selectia-core boots the audio engine and task-coordination core:
// the actor context, the demuxer proxy, the task scheduler, the loader, two
// playback decks, the mixer backend, and the read-only hostapi surface.
// Wiring style mirrors the teacher's main.go (structured logging, signal-
// driven graceful shutdown); the external collaborators this module treats
// as opaque (catalog, decoder, splitter, onset detector, audio host) are
// satisfied here by internal/ports/fake's demo implementations until a real
// application wires production ones in.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/selectia/selectia-core/internal/actor"
	"github.com/selectia/selectia-core/internal/analysis"
	"github.com/selectia/selectia-core/internal/deck"
	"github.com/selectia/selectia-core/internal/demuxer"
	"github.com/selectia/selectia-core/internal/hostapi"
	"github.com/selectia/selectia-core/internal/loader"
	"github.com/selectia/selectia-core/internal/mixer"
	"github.com/selectia/selectia-core/internal/ports"
	"github.com/selectia/selectia-core/internal/ports/fake"
	"github.com/selectia/selectia-core/internal/scheduler"
	"github.com/selectia/selectia-core/internal/settings"
)

const deckCount = 2

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	dataDir := getEnv("SELECTIA_DATA_DIR", filepath.Join(os.TempDir(), "selectia-core"))
	cfg, err := settings.Load(dataDir)
	if err != nil {
		slog.Error("failed to load settings", "error", err)
		os.Exit(1)
	}
	slog.Info("starting selectia-core",
		"database_path", cfg.DatabasePath,
		"demuxer_data_path", cfg.DemuxerDataPath,
		"worker_threads", cfg.WorkerThreads,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	actorCtx := actor.NewContext()
	catalog := fake.NewCatalog()

	deckEvents := actor.NewDispatcher[deck.Event](actor.DefaultInboxSize, actor.DefaultInboxSize)
	go deckEvents.Run(ctx)

	schedulerEvents := actor.NewDispatcher[scheduler.Event](actor.DefaultInboxSize, actor.DefaultInboxSize)
	go schedulerEvents.Run(ctx)

	demuxerEvents := actor.NewDispatcher[demuxer.Event](actor.DefaultInboxSize, actor.DefaultInboxSize)
	go demuxerEvents.Run(ctx)

	_, demuxerHandle := demuxer.NewProxy(actorCtx, filepath.Join(cfg.DemuxerDataPath, "demuxer"), demuxerEvents)

	decks := make([]*deck.Deck, deckCount)
	for i := range decks {
		decks[i] = deck.New(i+1, deckEvents)
	}

	outputConfig := ports.OutputStreamConfig{SampleFormat: "f32", SampleRate: 48000, Channels: 2}
	mixerBackend, mixerSender, err := mixer.NewBackend(actorCtx, outputConfig.SampleFormat, outputConfig.Channels, deckEvents)
	if err != nil {
		slog.Error("failed to start mixer backend", "error", err)
		os.Exit(1)
	}

	loaderSender := loader.Spawn(actorCtx, catalog)

	runners := map[scheduler.TaskKind]scheduler.Runner{
		scheduler.TaskFileAnalysis: &analysis.FileAnalysisRunner{
			Catalog:  catalog,
			Decoder:  &fake.Decoder{},
			Splitter: fake.NewSplitter(),
			Onsets:   fake.NewOnsetDetectorFactory(0),
		},
		scheduler.TaskStemExtraction: &analysis.StemExtractionRunner{
			Catalog: catalog,
			Demuxer: demuxerHandle,
		},
	}
	schedulerSender := scheduler.Spawn(actorCtx, catalog, scheduler.Options{
		PoolSize: cfg.WorkerThreads,
		Runners:  runners,
		Events:   schedulerEvents,
	})

	actorCtx.Ready()

	audioHost := fake.NewAudioHost(outputConfig, 1024)
	stream, err := audioHost.BuildOutputStream(ctx, outputConfig, func(out []byte, channels int, sampleRate float64) {
		if err := mixerBackend.Write(out, sampleRate); err != nil {
			slog.Error("mixer write failed", "error", err)
		}
	}, func(err error) {
		slog.Error("audio host stream error", "error", err)
	})
	if err != nil {
		slog.Error("failed to build output stream", "error", err)
		os.Exit(1)
	}
	if err := stream.Start(); err != nil {
		slog.Error("failed to start output stream", "error", err)
		os.Exit(1)
	}
	defer stream.Close()

	router := hostapi.NewRouter(hostapi.Options{
		Decks:   decks,
		Catalog: catalog,
		Demuxer: demuxerHandle,
		Mixer:   mixerBackend,
	})
	httpServer := &http.Server{Addr: ":8090", Handler: router}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("hostapi listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutdown signal received")
		cancel()
	}()

	select {
	case err := <-errChan:
		slog.Error("hostapi server error", "error", err)
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("hostapi graceful shutdown failed", "error", err)
		}
	}

	_ = loaderSender
	_ = schedulerSender
	_ = mixerSender
	slog.Info("selectia-core stopped")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
