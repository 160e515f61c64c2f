// Copyright 2024-2026 Aiku AI

package helpbot

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// HelpText holds the help reply text loaded from a file. Watch keeps it in
// sync with the file so the reply can be edited without restarting the bot.
type HelpText struct {
	path string
	log  zerolog.Logger

	mu   sync.RWMutex
	text string

	watcher  *fsnotify.Watcher
	stopOnce sync.Once
	stopChan chan struct{}
}

// LoadHelpText reads the help file. A missing or unreadable file is an
// error; the bot cannot answer the help command without it.
func LoadHelpText(path string, log zerolog.Logger) (*HelpText, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read help file %q: %w", path, err)
	}
	return &HelpText{
		path:     path,
		log:      log.With().Str("component", "helptext").Logger(),
		text:     string(data),
		stopChan: make(chan struct{}),
	}, nil
}

// Text returns the current help text.
func (h *HelpText) Text() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.text
}

// Watch reloads the help text whenever the file changes. The parent
// directory is watched rather than the file itself so editors that replace
// the file (write to temp, rename over) keep working.
func (h *HelpText) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create help file watcher: %w", err)
	}
	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}
	h.watcher = watcher

	go h.watchLoop()
	h.log.Info().Str("path", h.path).Msg("Watching help file for changes")
	return nil
}

func (h *HelpText) watchLoop() {
	target, _ := filepath.Abs(h.path)
	for {
		select {
		case <-h.stopChan:
			return
		case evt, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			name, _ := filepath.Abs(evt.Name)
			if name != target {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			h.reload()
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.log.Warn().Err(err).Msg("Help file watcher error")
		}
	}
}

func (h *HelpText) reload() {
	data, err := os.ReadFile(h.path)
	if err != nil {
		// Keep serving the last good text.
		h.log.Warn().Err(err).Str("path", h.path).Msg("Failed to reload help file")
		return
	}
	h.mu.Lock()
	h.text = string(data)
	h.mu.Unlock()
	h.log.Info().Str("path", h.path).Int("bytes", len(data)).Msg("Reloaded help file")
}

// Close stops the file watcher.
func (h *HelpText) Close() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
	if h.watcher != nil {
		h.watcher.Close()
	}
}
