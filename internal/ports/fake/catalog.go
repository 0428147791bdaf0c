// Package fake provides in-memory stand-ins for the external collaborators
// declared in internal/ports, grounded on the teacher's own in-memory
// TrackLibrary/Store pattern (mutex-guarded maps, a monotonic id counter, a
// secondary index by id).
package fake

import (
	"context"
	"sync"

	"github.com/selectia/selectia-core/internal/ports"
)

// Catalog is an in-memory ports.Catalog, safe for concurrent use. It is
// meant for tests and for the cmd/selectia-core demo wiring, not production
// use — the real catalog is the application's persistent metadata/tag/file
// database (spec §6, explicitly out of scope for this module).
type Catalog struct {
	mu sync.RWMutex

	metadataByHash map[string]int64
	metadata       map[int64]ports.MetadataRow
	nextMetadataID int64

	filesByMetadata map[int64]ports.FileRow
	nextFileID      int64

	variations       map[int64][]ports.FileVariation
	nextVariationID  int64

	tags map[int64]map[int]string // metadataID -> tagNameID -> value

	tasks      map[int64]ports.TaskRow
	taskOrder  []int64 // insertion order, oldest first
	nextTaskID int64
}

// NewCatalog creates an empty in-memory catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		metadataByHash:  make(map[string]int64),
		metadata:        make(map[int64]ports.MetadataRow),
		filesByMetadata: make(map[int64]ports.FileRow),
		variations:      make(map[int64][]ports.FileVariation),
		tags:            make(map[int64]map[int]string),
		tasks:           make(map[int64]ports.TaskRow),
	}
}

func (c *Catalog) GetOrCreateMetadata(_ context.Context, hash string) (ports.MetadataRow, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.metadataByHash[hash]; ok {
		return c.metadata[id], false, nil
	}

	c.nextMetadataID++
	row := ports.MetadataRow{ID: c.nextMetadataID, Hash: hash}
	c.metadataByHash[hash] = row.ID
	c.metadata[row.ID] = row
	return row, true, nil
}

func (c *Catalog) CreateOrReplaceFile(_ context.Context, path string, metadataID int64) (ports.FileRow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.filesByMetadata[metadataID]
	if ok {
		existing.Path = path
		c.filesByMetadata[metadataID] = existing
		return existing, nil
	}

	c.nextFileID++
	row := ports.FileRow{ID: c.nextFileID, MetadataID: metadataID, Path: path}
	c.filesByMetadata[metadataID] = row
	return row, nil
}

func (c *Catalog) SetMetadataTag(_ context.Context, metadataID int64, tagNameID int, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.tags[metadataID]
	if !ok {
		m = make(map[int]string)
		c.tags[metadataID] = m
	}
	m[tagNameID] = value
	return nil
}

// MetadataTag returns a previously set tag value for tests that need to
// assert on it directly, since ports.Catalog has no read accessor for tags.
func (c *Catalog) MetadataTag(metadataID int64, tagNameID int) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.tags[metadataID][tagNameID]
	return v, ok
}

func (c *Catalog) GetFileFromMetadataID(_ context.Context, metadataID int64) (ports.FileRow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	row, ok := c.filesByMetadata[metadataID]
	if !ok {
		return ports.FileRow{}, errNotFound
	}
	return row, nil
}

func (c *Catalog) GetFileVariations(_ context.Context, fileID int64) ([]ports.FileVariation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ports.FileVariation, len(c.variations[fileID]))
	copy(out, c.variations[fileID])
	return out, nil
}

func (c *Catalog) CreateFileVariation(_ context.Context, fileID int64, path string, metadata map[string]string) (ports.FileVariation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextVariationID++
	v := ports.FileVariation{ID: c.nextVariationID, FileID: fileID, Path: path, Metadata: metadata}
	c.variations[fileID] = append(c.variations[fileID], v)
	return v, nil
}
