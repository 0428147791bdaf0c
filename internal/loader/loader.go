// Package loader ingests files into the catalog: sampled-content hashing,
// content-addressed upsert, and embedded-tag extraction, all bounded to a
// fixed amount of concurrent in-flight work (spec §4.6).
package loader

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/selectia/selectia-core/internal/actor"
	"github.com/selectia/selectia-core/internal/ports"
	"golang.org/x/sync/semaphore"
)

// maxConcurrentLoads bounds how many files are hashed/tagged at once (spec
// §4.6: "bounded concurrency (4)").
const maxConcurrentLoads = 4

// LoadResult is what a LoadFile request resolves with.
type LoadResult struct {
	MetadataID int64
	Err        error
}

type loadFileMsg struct {
	path     string
	callback *actor.CallbackSender[LoadResult]
}

// Loader is the file-ingest actor.
type Loader struct {
	catalog ports.Catalog
	sem     *semaphore.Weighted
}

// Spawn starts the loader actor against catalog.
func Spawn(ctx *actor.Context, catalog ports.Catalog) *actor.Sender[any] {
	l := &Loader{catalog: catalog, sem: semaphore.NewWeighted(maxConcurrentLoads)}
	return actor.Spawn(ctx, l.run, actor.SpawnOptions{Name: "loader.Loader"})
}

// LoadFile submits path for ingest and returns a receiver that resolves with
// the upserted metadata id once hashing, catalog upsert, and tag extraction
// complete.
func LoadFile(sender *actor.Sender[any], path string) (*actor.CallbackReceiver[LoadResult], error) {
	s, r := actor.NewCallback[LoadResult]()
	if err := sender.Send(loadFileMsg{path: path, callback: s}); err != nil {
		return nil, err
	}
	return r, nil
}

func (l *Loader) run(sc *actor.ServiceContext, rx *actor.ServiceReceiver[any]) {
	for {
		msg, ok := rx.Recv()
		if !ok {
			return
		}
		m, ok := msg.(loadFileMsg)
		if !ok {
			slog.Warn("loader: unexpected message type")
			continue
		}
		go l.process(m)
	}
}

func (l *Loader) process(m loadFileMsg) {
	ctx := context.Background()
	if err := l.sem.Acquire(ctx, 1); err != nil {
		m.callback.Resolve(LoadResult{Err: err})
		return
	}
	defer l.sem.Release(1)

	result := l.ingest(ctx, m.path)
	if result.Err != nil {
		slog.Warn("loader: ingest failed", "path", m.path, "error", result.Err)
	}
	m.callback.Resolve(result)
}

func (l *Loader) ingest(ctx context.Context, path string) LoadResult {
	hash, err := SampledHash(path)
	if err != nil {
		return LoadResult{Err: err}
	}

	metaRow, created, err := l.catalog.GetOrCreateMetadata(ctx, hash)
	if err != nil {
		return LoadResult{Err: err}
	}

	if _, err := l.catalog.CreateOrReplaceFile(ctx, path, metaRow.ID); err != nil {
		return LoadResult{Err: err}
	}

	if created {
		l.extractTags(ctx, metaRow.ID, path)
	}

	return LoadResult{MetadataID: metaRow.ID}
}

// extractTags probes embedded ID3/Vorbis/FLAC tags and seeds the catalog's
// TITLE/ARTIST/ALBUM values, falling back to a filename-derived title when
// the file carries no readable tags.
func (l *Loader) extractTags(ctx context.Context, metadataID int64, path string) {
	title := filenameTitle(path)

	f, err := os.Open(path)
	if err != nil {
		slog.Debug("loader: could not open file for tags", "path", path, "error", err)
		l.setTag(ctx, metadataID, ports.TagTitle, title)
		return
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		slog.Debug("loader: could not read tags", "path", path, "error", err)
		l.setTag(ctx, metadataID, ports.TagTitle, title)
		return
	}

	if m.Title() != "" {
		title = m.Title()
	}
	l.setTag(ctx, metadataID, ports.TagTitle, title)
	if m.Artist() != "" {
		l.setTag(ctx, metadataID, ports.TagArtist, m.Artist())
	}
	if m.Album() != "" {
		l.setTag(ctx, metadataID, ports.TagAlbum, m.Album())
	}
}

func (l *Loader) setTag(ctx context.Context, metadataID int64, tagNameID int, value string) {
	if err := l.catalog.SetMetadataTag(ctx, metadataID, tagNameID, value); err != nil {
		slog.Warn("loader: set metadata tag failed", "metadata_id", metadataID, "tag", tagNameID, "error", err)
	}
}

func filenameTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
