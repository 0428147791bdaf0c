package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultsOnFirstRun(t *testing.T) {
	dir := t.TempDir()

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "catalog.db"), s.DatabasePath)
	assert.Equal(t, filepath.Join(dir, "demuxer"), s.DemuxerDataPath)
	assert.Equal(t, 4, s.WorkerThreads)
}

func TestLoadReturnsPreviouslySavedSettings(t *testing.T) {
	dir := t.TempDir()

	custom := Settings{DatabasePath: "/data/custom.db", DemuxerDataPath: "/data/demux", WorkerThreads: 8}
	require.NoError(t, Save(dir, custom))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, custom, loaded)
}

func TestSaveOverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, Settings{WorkerThreads: 1}))
	require.NoError(t, Save(dir, Settings{WorkerThreads: 2}))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.WorkerThreads)
}
