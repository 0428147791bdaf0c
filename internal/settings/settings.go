// Package settings loads and saves the core's JSON settings file from a
// platform-dependent data directory, creating it with defaults on first run
// (spec §5: "Settings"). The write path mirrors the teacher's playlist
// Store: marshal, write to a sibling temp file, rename into place.
package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const fileName = "settings.json"

// Settings is the persisted configuration blob.
type Settings struct {
	DatabasePath    string `json:"database_path"`
	DemuxerDataPath string `json:"demuxer_data_path"`
	WorkerThreads   int    `json:"worker_threads"`
}

func defaults(dataDir string) Settings {
	return Settings{
		DatabasePath:    filepath.Join(dataDir, "catalog.db"),
		DemuxerDataPath: filepath.Join(dataDir, "demuxer"),
		WorkerThreads:   4,
	}
}

// Load reads the settings file under dataDir, creating it with defaults if
// it doesn't exist yet.
func Load(dataDir string) (Settings, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return Settings{}, fmt.Errorf("settings: create data dir %q: %w", dataDir, err)
	}

	path := filepath.Join(dataDir, fileName)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s := defaults(dataDir)
		if err := Save(dataDir, s); err != nil {
			return Settings{}, err
		}
		slog.Info("settings: created defaults", "path", path)
		return s, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("settings: read %q: %w", path, err)
	}

	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("settings: parse %q: %w", path, err)
	}
	return s, nil
}

// Save serializes s to dataDir/settings.json, writing to a temp file in the
// same directory and renaming into place so a crash mid-write never leaves
// a truncated settings file behind.
func Save(dataDir string, s Settings) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}

	path := filepath.Join(dataDir, fileName)
	tmp, err := os.CreateTemp(dataDir, "settings-*.json.tmp")
	if err != nil {
		return fmt.Errorf("settings: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("settings: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("settings: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("settings: rename temp file to %q: %w", path, err)
	}
	return nil
}
