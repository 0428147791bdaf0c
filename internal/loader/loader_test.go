package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/selectia/selectia-core/internal/actor"
	"github.com/selectia/selectia-core/internal/ports"
	"github.com/selectia/selectia-core/internal/ports/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyContext() *actor.Context {
	ctx := actor.NewContext()
	ctx.Ready()
	return ctx
}

func TestLoadFileUpsertsMetadataAndResolvesID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.txt")
	require.NoError(t, os.WriteFile(path, []byte("not really audio, just bytes"), 0o644))

	catalog := fake.NewCatalog()
	sender := Spawn(readyContext(), catalog)

	receiver, err := LoadFile(sender, path)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := receiver.Wait(ctx)
	require.NoError(t, err)
	require.NoError(t, result.Err)
	assert.Greater(t, result.MetadataID, int64(0))

	fileRow, err := catalog.GetFileFromMetadataID(context.Background(), result.MetadataID)
	require.NoError(t, err)
	assert.Equal(t, path, fileRow.Path)
}

func TestLoadFileFallsBackToFilenameTitleWhenNoTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "My Track Name.txt")
	require.NoError(t, os.WriteFile(path, []byte("no embedded tags here"), 0o644))

	catalog := fake.NewCatalog()
	sender := Spawn(readyContext(), catalog)

	receiver, err := LoadFile(sender, path)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := receiver.Wait(ctx)
	require.NoError(t, err)
	require.NoError(t, result.Err)

	// The same hash must map back to the row the load created.
	hash, err := SampledHash(path)
	require.NoError(t, err)
	row, created, err := catalog.GetOrCreateMetadata(context.Background(), hash)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, result.MetadataID, row.ID)

	// The file carries no readable tags, so the title comes from its name.
	title, ok := catalog.MetadataTag(result.MetadataID, ports.TagTitle)
	require.True(t, ok)
	assert.Equal(t, "My Track Name", title)
}

func TestLoadFileNonexistentPathResolvesWithError(t *testing.T) {
	catalog := fake.NewCatalog()
	sender := Spawn(readyContext(), catalog)

	receiver, err := LoadFile(sender, filepath.Join(t.TempDir(), "missing.mp3"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := receiver.Wait(ctx)
	require.NoError(t, err)
	assert.Error(t, result.Err)
}

func TestLoadFileResolvesEveryQueuedRequest(t *testing.T) {
	catalog := fake.NewCatalog()
	sender := Spawn(readyContext(), catalog)

	paths := make([]string, 10)
	for i := range paths {
		p := filepath.Join(t.TempDir(), "f.bin")
		require.NoError(t, os.WriteFile(p, []byte{byte(i)}, 0o644))
		paths[i] = p
	}

	receivers := make([]*actor.CallbackReceiver[LoadResult], len(paths))
	for i, p := range paths {
		r, err := LoadFile(sender, p)
		require.NoError(t, err)
		receivers[i] = r
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, r := range receivers {
		result, err := r.Wait(ctx)
		require.NoError(t, err)
		require.NoError(t, result.Err)
	}

	tasks, _ := catalog.GetTasks(context.Background())
	assert.Empty(t, tasks) // loader never touches the task table
}
