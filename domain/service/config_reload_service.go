package service

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ajkula/GoNotify/domain/model"
	"github.com/ajkula/GoNotify/domain/port/inbound"
	"github.com/ajkula/GoNotify/domain/port/outbound"
)

// ReloadFunc applies the configuration file at path.
type ReloadFunc func(ctx context.Context, path string) error

const (
	defaultReloadInterval = time.Second
	reloadTimeout         = 30 * time.Second
)

// ConfigReloadService re-applies configuration files when they change on
// disk. Files are watched through their parent directory so that editors
// replacing the file atomically are still seen.
type ConfigReloadService struct {
	watcher     inbound.Watcher
	reload      ReloadFunc
	logger      outbound.Logger
	minInterval time.Duration

	files map[string]bool
	dirs  map[string]bool
	mu    sync.RWMutex

	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	done    chan struct{}
}

func NewConfigReloadService(watcher inbound.Watcher, reload ReloadFunc, logger outbound.Logger) *ConfigReloadService {
	if logger == nil {
		logger = outbound.NopLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &ConfigReloadService{
		watcher:     watcher,
		reload:      reload,
		logger:      logger,
		minInterval: defaultReloadInterval,
		files:       make(map[string]bool),
		dirs:        make(map[string]bool),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetMinInterval changes how often the same file may be reloaded
func (s *ConfigReloadService) SetMinInterval(d time.Duration) {
	s.mu.Lock()
	s.minInterval = d
	s.mu.Unlock()
}

// Start begins processing watcher events
func (s *ConfigReloadService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("Config reload service already running")
		return nil
	}

	s.done = make(chan struct{})
	go s.processEvents(s.done)

	s.running = true
	s.logger.Info("Config reload service started")
	return nil
}

// Stop stops event processing and closes the watcher
func (s *ConfigReloadService) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	done := s.done
	s.mu.Unlock()

	s.cancel()
	<-done

	if err := s.watcher.Close(); err != nil {
		s.logger.Error("Error closing config watcher", "error", err)
		return err
	}

	s.logger.Info("Config reload service stopped")
	return nil
}

// WatchFile starts watching filePath for changes
func (s *ConfigReloadService) WatchFile(filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		s.logger.Error("Failed to get absolute path", "path", filePath, "error", err)
		return err
	}

	if s.files[absPath] {
		s.logger.Debug("Already watching file", "path", absPath)
		return nil
	}

	dir := filepath.Dir(absPath)
	if !s.dirs[dir] {
		if err := s.watcher.Watch(dir, model.NonRecursive); err != nil {
			s.logger.Error("Failed to watch directory", "path", dir, "error", err)
			return err
		}
		s.dirs[dir] = true
	}

	s.files[absPath] = true
	s.logger.Info("Watching config file", "path", absPath)
	return nil
}

// IsWatching reports whether events are being processed
func (s *ConfigReloadService) IsWatching() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// WatchedFiles lists the files being watched
func (s *ConfigReloadService) WatchedFiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]string, 0, len(s.files))
	for file := range s.files {
		files = append(files, file)
	}
	sort.Strings(files)
	return files
}

func (s *ConfigReloadService) processEvents(done chan struct{}) {
	defer close(done)

	lastReload := make(map[string]time.Time)

	for {
		select {
		case <-s.ctx.Done():
			return

		case result, ok := <-s.watcher.Events():
			if !ok {
				s.logger.Warn("Config watcher closed")
				return
			}
			if result.Err != nil {
				s.logger.Error("Config watcher error", "error", result.Err)
				continue
			}
			s.handleEvent(result.Event, lastReload)
		}
	}
}

func (s *ConfigReloadService) handleEvent(event model.Event, lastReload map[string]time.Time) {
	kind := event.Kind
	// a paired rename lands on its second path
	paths := event.Paths
	if kind.IsRename() && len(paths) == 2 {
		paths = paths[1:]
	}

	for _, path := range paths {
		if !s.isWatchedFile(path) {
			continue
		}

		switch {
		case kind.IsRemove() || (kind.IsRename() && kind.Modify.Rename == model.RenameFrom):
			s.logger.Warn("Config file was removed", "path", path)
		case kind.IsAccess():
		default:
			s.reloadFile(path, lastReload)
		}
	}
}

func (s *ConfigReloadService) reloadFile(path string, lastReload map[string]time.Time) {
	now := time.Now()

	s.mu.RLock()
	minInterval := s.minInterval
	s.mu.RUnlock()

	if last, ok := lastReload[path]; ok && now.Sub(last) < minInterval {
		s.logger.Debug("Skipping config reload due to rate limiting", "path", path)
		return
	}
	lastReload[path] = now

	ctx, cancel := context.WithTimeout(s.ctx, reloadTimeout)
	defer cancel()

	if err := s.reload(ctx, path); err != nil {
		s.logger.Error("Failed to reload config", "path", path, "error", err)
		return
	}
	s.logger.Info("Config reloaded", "path", path)
}

func (s *ConfigReloadService) isWatchedFile(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.files[filepath.Clean(path)]
}

func (s *ConfigReloadService) Cleanup() {
	s.logger.Info("Cleaning up config reload service")
	if err := s.Stop(); err != nil {
		s.logger.Error("Error during cleanup", "error", err)
	}
}
