package catalog

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	appLog "evcal/internal/log"
	"evcal/internal/model"
)

// SnapshotFile is the file name used inside the cache directory.
const SnapshotFile = "events_cache.json"

type snapshot struct {
	Timestamp time.Time     `json:"timestamp"`
	Data      []model.Event `json:"data"`
}

// loadSnapshot returns nil, nil when no snapshot exists. A snapshot that
// cannot be decoded is deleted and treated as missing.
func loadSnapshot(path string) (*snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.Timestamp.IsZero() {
		appLog.Warn("catalog snapshot corrupt, removing", "path", path)
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return nil, rmErr
		}
		return nil, nil
	}
	return &snap, nil
}

// saveSnapshot writes the list atomically via temp file + rename.
func saveSnapshot(path string, events []model.Event, at time.Time) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := json.Marshal(snapshot{Timestamp: at.UTC(), Data: events})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".events-cache-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
