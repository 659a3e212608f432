package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"PlaySync/logger"

	"github.com/fsnotify/fsnotify"
)

// LoadKeysFile reads a JSON array of system secrets.
func LoadKeysFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secret keys file: %w", err)
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parse secret keys file %s: %w", path, err)
	}
	return keys, nil
}

// WatchFile loads path into s and reloads it whenever it changes, until ctx is done.
// A file that fails to parse leaves the previous keys in place.
func (s *SystemKeys) WatchFile(ctx context.Context, path string) error {
	keys, err := LoadKeysFile(path)
	if err != nil {
		return err
	}
	s.Replace(keys)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	// watch the directory so editors that replace the file are still seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", path, err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				keys, err := LoadKeysFile(path)
				if err != nil {
					logger.Warn("secret keys reload failed, keeping previous keys", logger.ErrorField(err))
					continue
				}
				s.Replace(keys)
				logger.Info("secret keys reloaded", logger.Int("count", s.Len()))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("secret keys watcher error", logger.ErrorField(err))
			}
		}
	}()
	return nil
}
