package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ajkula/GoNotify/config"
	"github.com/ajkula/GoNotify/domain/model"
	"github.com/ajkula/GoNotify/domain/port/outbound"
)

type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// represents a single log entry to be processed asynchronously
type LogMessage struct {
	Level LogLevel
	Msg   string
	Args  []any
	Time  time.Time
}

// implements the Logger interface using Go's structured logging (slog)
// with asynchronous processing to avoid blocking hot paths
type SlogAdapter struct {
	logger    *slog.Logger
	config    *config.Config
	configMu  sync.Mutex
	logChan   chan LogMessage
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	slogLevel *slog.LevelVar
	level     atomic.Int32
	dropped   atomic.Uint64
	closer    io.Closer
}

var (
	_ outbound.Logger = (*SlogAdapter)(nil)
	_ model.Logger    = (*SlogAdapter)(nil)
)

// NewSlogAdapter builds the logger described by the logging section. An
// unusable output falls back to stdout.
func NewSlogAdapter(config *config.Config) *SlogAdapter {
	return newSlogAdapter(config, nil)
}

// NewSlogAdapterWriter is NewSlogAdapter with an explicit destination.
func NewSlogAdapterWriter(config *config.Config, w io.Writer) *SlogAdapter {
	return newSlogAdapter(config, w)
}

func newSlogAdapter(config *config.Config, w io.Writer) *SlogAdapter {
	ctx, cancel := context.WithCancel(context.Background())

	var closer io.Closer
	if w == nil {
		w, closer = openOutput(config)
	}

	// Create a LevelVar for dynamic level changes
	levelVar := &slog.LevelVar{}
	levelVar.Set(parseSlogLevel(config.General.LogLevel))

	// Create handler with dynamic level
	handlerOpts := &slog.HandlerOptions{
		Level: levelVar,
	}

	var handler slog.Handler
	if strings.EqualFold(config.Logging.Format, "text") {
		handler = slog.NewTextHandler(w, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}

	channelSize := config.Logging.ChannelSize
	if channelSize <= 0 {
		channelSize = 1
	}

	adapter := &SlogAdapter{
		logger:    slog.New(handler),
		config:    config,
		logChan:   make(chan LogMessage, channelSize),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		slogLevel: levelVar,
		closer:    closer,
	}
	adapter.level.Store(int32(parseLogLevel(config.General.LogLevel)))

	go adapter.processLogs()

	return adapter
}

func openOutput(config *config.Config) (io.Writer, io.Closer) {
	switch strings.ToLower(config.Logging.Output) {
	case "stderr":
		return os.Stderr, nil
	case "file":
		f, err := os.OpenFile(config.Logging.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot open log file %s, using stdout: %v\n", config.Logging.FilePath, err)
			return os.Stdout, nil
		}
		return f, f
	default:
		return os.Stdout, nil
	}
}

// updates both config and slog level dynamically
func (s *SlogAdapter) UpdateLevel(logLvl string) {
	normalizedLevel := strings.ToLower(logLvl)

	s.configMu.Lock()
	s.config.General.LogLevel = normalizedLevel
	s.config.Logging.Level = strings.ToUpper(normalizedLevel)
	s.configMu.Unlock()

	s.level.Store(int32(parseLogLevel(normalizedLevel)))
	s.slogLevel.Set(parseSlogLevel(normalizedLevel))

	s.Info("Logger level updated dynamically", "new_level", normalizedLevel)
}

// Dropped returns how many messages were discarded because the queue was full.
func (s *SlogAdapter) Dropped() uint64 {
	return s.dropped.Load()
}

// hadles messages asynchronously
func (s *SlogAdapter) processLogs() {
	defer close(s.done)

	for {
		select {
		case msg := <-s.logChan:
			s.writeLog(msg)
		case <-s.ctx.Done():
			for len(s.logChan) > 0 {
				msg := <-s.logChan
				s.writeLog(msg)
			}
			return
		}
	}
}

// converts string level to slog.Level
func parseSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// unknown levels only let errors through
func parseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "WARN":
		return LevelWarn
	case "INFO":
		return LevelInfo
	case "DEBUG":
		return LevelDebug
	default:
		return LevelError
	}
}

// performs the logging operation
func (s *SlogAdapter) writeLog(msg LogMessage) {
	var level slog.Level
	switch msg.Level {
	case LevelError:
		level = slog.LevelError
	case LevelWarn:
		level = slog.LevelWarn
	case LevelInfo:
		level = slog.LevelInfo
	default:
		level = slog.LevelDebug
	}

	if !s.logger.Enabled(context.Background(), level) {
		return
	}
	record := slog.NewRecord(msg.Time, level, msg.Msg, 0)
	record.Add(msg.Args...)
	_ = s.logger.Handler().Handle(context.Background(), record)
}

func (s *SlogAdapter) sendLog(level LogLevel, msg string, args ...any) {
	if s.ctx.Err() != nil {
		return
	}
	select {
	case s.logChan <- LogMessage{
		Level: level,
		Msg:   msg,
		Args:  args,
		Time:  time.Now(),
	}:
	default:
		// chan full
		s.dropped.Add(1)
	}
}

func (s *SlogAdapter) shouldLog(level LogLevel) bool {
	return level <= LogLevel(s.level.Load())
}

func (s *SlogAdapter) Error(msg string, args ...any) {
	if !s.shouldLog(LevelError) {
		return
	}
	s.sendLog(LevelError, msg, args...)
}

func (s *SlogAdapter) Warn(msg string, args ...any) {
	if !s.shouldLog(LevelWarn) {
		return
	}
	s.sendLog(LevelWarn, msg, args...)
}

func (s *SlogAdapter) Info(msg string, args ...any) {
	if !s.shouldLog(LevelInfo) {
		return
	}
	s.sendLog(LevelInfo, msg, args...)
}

func (s *SlogAdapter) Debug(msg string, args ...any) {
	if !s.shouldLog(LevelDebug) {
		return
	}
	s.sendLog(LevelDebug, msg, args...)
}

// Shutdown flushes queued messages and releases the output.
func (s *SlogAdapter) Shutdown() {
	s.cancel()
	<-s.done
	if s.closer != nil {
		s.closer.Close()
	}
}
