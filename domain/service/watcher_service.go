package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ajkula/GoNotify/domain/model"
	"github.com/ajkula/GoNotify/domain/port/inbound"
	"github.com/ajkula/GoNotify/domain/port/outbound"
)

const defaultBufferSize = 1024

type watcherOptions struct {
	debounce   time.Duration
	immediate  bool
	precise    bool
	notice     bool
	sink       chan<- model.Result
	bufferSize int
	logger     outbound.Logger
	metrics    outbound.Metrics
	filter     outbound.PathFilter
}

// WatcherOption customizes a WatcherService.
type WatcherOption func(*watcherOptions)

// WithDebounce sets the initial debounce interval.
func WithDebounce(interval time.Duration) WatcherOption {
	return func(o *watcherOptions) { o.debounce = interval }
}

// WithImmediate disables debouncing: raw events are classified and
// forwarded one by one.
func WithImmediate() WatcherOption {
	return func(o *watcherOptions) { o.immediate = true }
}

// WithPreciseEvents sets the initial PreciseEvents value.
func WithPreciseEvents(precise bool) WatcherOption {
	return func(o *watcherOptions) { o.precise = precise }
}

// WithNoticeEvents sets the initial NoticeEvents value.
func WithNoticeEvents(notice bool) WatcherOption {
	return func(o *watcherOptions) { o.notice = notice }
}

// WithSink makes the watcher deliver into a caller-owned channel, which
// may be shared by several watchers. The watcher never closes it.
func WithSink(sink chan<- model.Result) WatcherOption {
	return func(o *watcherOptions) { o.sink = sink }
}

func WithBufferSize(size int) WatcherOption {
	return func(o *watcherOptions) { o.bufferSize = size }
}

func WithLogger(logger outbound.Logger) WatcherOption {
	return func(o *watcherOptions) { o.logger = logger }
}

func WithMetrics(metrics outbound.Metrics) WatcherOption {
	return func(o *watcherOptions) { o.metrics = metrics }
}

// WithFilter drops raw events whose path the filter ignores.
func WithFilter(filter outbound.PathFilter) WatcherOption {
	return func(o *watcherOptions) { o.filter = filter }
}

// WatcherService composes a backend with the debounce engine.
type WatcherService struct {
	backend   outbound.Backend
	debouncer *Debouncer

	raw    chan model.RawEvent
	out    chan<- model.Result
	events <-chan model.Result
	owned  bool

	precise atomic.Bool
	logger  outbound.Logger
	metrics outbound.Metrics
	filter  outbound.PathFilter

	mu      sync.Mutex
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
	done    chan struct{}
}

var _ inbound.Watcher = (*WatcherService)(nil)

// NewWatcherService creates the backend through factory and starts the
// event pipeline.
func NewWatcherService(factory outbound.BackendFactory, opts ...WatcherOption) (*WatcherService, error) {
	options := watcherOptions{
		debounce:   DefaultDebounceInterval,
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = outbound.NopLogger{}
	}
	if options.metrics == nil {
		options.metrics = outbound.NopMetrics{}
	}
	if options.bufferSize <= 0 {
		options.bufferSize = defaultBufferSize
	}

	raw := make(chan model.RawEvent, options.bufferSize)
	backend, err := factory(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &WatcherService{
		backend: backend,
		raw:     raw,
		logger:  options.logger,
		metrics: options.metrics,
		filter:  options.filter,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.precise.Store(options.precise)

	if options.sink != nil {
		s.out = options.sink
	} else {
		ch := make(chan model.Result, options.bufferSize)
		s.out = ch
		s.events = ch
		s.owned = true
	}

	if options.immediate {
		s.workers.Add(1)
		go s.pumpImmediate()
	} else {
		s.debouncer = NewDebouncer(DebouncerConfig{
			Interval: options.debounce,
			Precise:  options.precise,
			Notice:   options.notice,
			Source:   backend.Name(),
			Logger:   options.logger,
			Metrics:  options.metrics,
		})
		filtered := make(chan model.RawEvent, options.bufferSize)
		s.workers.Add(2)
		go s.pump(filtered)
		go func() {
			defer s.workers.Done()
			s.debouncer.Run(ctx, filtered, s.out)
		}()
	}

	go s.finish()

	s.logger.Info("Watcher started",
		"backend", backend.Name(),
		"immediate", options.immediate,
		"debounce", options.debounce)
	return s, nil
}

// Watch begins monitoring path.
func (s *WatcherService) Watch(path string, mode model.RecursiveMode) error {
	if s.isClosed() {
		return model.ErrChannelClosed
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		s.logger.Error("Failed to get absolute path", "path", path, "error", err)
		return model.NewWatchError("watch", path, model.ErrPathNotFound)
	}

	if err := s.backend.Watch(absPath, mode); err != nil {
		s.logger.Error("Failed to watch path", "path", absPath, "mode", mode.String(), "error", err)
		return err
	}

	s.logger.Info("Watching path", "path", absPath, "mode", mode.String())
	return nil
}

// Unwatch stops monitoring path.
func (s *WatcherService) Unwatch(path string) error {
	if s.isClosed() {
		return model.ErrChannelClosed
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return model.NewWatchError("unwatch", path, model.ErrWatchNotFound)
	}

	if err := s.backend.Unwatch(absPath); err != nil {
		s.logger.Warn("Failed to unwatch path", "path", absPath, "error", err)
		return err
	}

	s.logger.Info("Stopped watching path", "path", absPath)
	return nil
}

// Configure applies option to the engine and offers it to the backend. A
// rejection by both is reported as false, never as an error.
func (s *WatcherService) Configure(option model.Config) (bool, error) {
	if s.isClosed() {
		return false, model.ErrChannelClosed
	}

	// a backend failure must leave the engine untouched
	backendAccepted, err := s.backend.Configure(option)
	if err != nil {
		s.logger.Error("Backend failed to apply option", "option", option.String(), "error", err)
		return false, fmt.Errorf("configure %s: %w", option, err)
	}

	accepted := false
	if s.debouncer != nil {
		ok, err := s.debouncer.Apply(s.ctx, option)
		if err != nil {
			return false, err
		}
		accepted = ok
	} else if precise, ok := option.(model.PreciseEvents); ok {
		s.precise.Store(bool(precise))
		accepted = true
	}

	accepted = accepted || backendAccepted
	s.logger.Debug("Configuration applied", "option", option.String(), "accepted", accepted)
	return accepted, nil
}

// Events returns the outbound stream, or nil when a sink was supplied.
func (s *WatcherService) Events() <-chan model.Result {
	return s.events
}

func (s *WatcherService) WatchedPaths() []string {
	return s.backend.WatchedPaths()
}

// Backend exposes the underlying backend name.
func (s *WatcherService) Backend() string {
	return s.backend.Name()
}

// Close stops the backend and the pipeline. An owned event channel is closed
// once every worker has returned.
func (s *WatcherService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Info("Stopping watcher", "backend", s.backend.Name())

	s.cancel()
	err := s.backend.Close()
	<-s.done

	if err != nil {
		return fmt.Errorf("failed to close backend: %w", err)
	}
	return nil
}

// Done is closed when the pipeline has fully stopped.
func (s *WatcherService) Done() <-chan struct{} {
	return s.done
}

func (s *WatcherService) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *WatcherService) finish() {
	s.workers.Wait()
	if s.owned {
		close(s.out)
	}
	close(s.done)
}

func (s *WatcherService) ignored(raw model.RawEvent) bool {
	if s.filter == nil || raw.IsError() || raw.Path == "" {
		return false
	}
	return s.filter.Ignore(raw.Path)
}

// pump forwards backend events to the debouncer, dropping ignored paths.
func (s *WatcherService) pump(filtered chan<- model.RawEvent) {
	defer s.workers.Done()
	defer close(filtered)

	for {
		select {
		case raw, ok := <-s.raw:
			if !ok {
				return
			}
			if s.ignored(raw) {
				continue
			}
			select {
			case filtered <- raw:
			case <-s.ctx.Done():
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// pumpImmediate converts every raw event into an event as it arrives.
func (s *WatcherService) pumpImmediate() {
	defer s.workers.Done()

	source := s.backend.Name()
	sawTerminal := false

	for {
		select {
		case raw, ok := <-s.raw:
			if !ok {
				if s.ctx.Err() == nil && !sawTerminal {
					s.send(model.Result{Err: model.ErrChannelClosed})
				}
				return
			}
			if s.ignored(raw) {
				continue
			}

			var result model.Result
			switch {
			case raw.IsTerminal():
				sawTerminal = true
				s.metrics.BackendError(true)
				result.Err = model.BackendFailure(raw.Path, raw.Err)
			case raw.IsError():
				s.metrics.BackendError(false)
				result.Err = raw.Err
			default:
				s.metrics.RawEventReceived(source)
				result.Event = model.ImmediateEvent(raw, s.precise.Load(), source)
				s.metrics.EventEmitted(result.Event.Kind.String())
			}
			if !s.send(result) {
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *WatcherService) send(result model.Result) bool {
	select {
	case s.out <- result:
		return true
	case <-s.ctx.Done():
		return false
	}
}
