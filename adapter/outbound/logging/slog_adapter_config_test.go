package logging

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogger_DynamicLevelChange(t *testing.T) {
	cfg := createTestConfig("DEBUG")
	adapter := NewSlogAdapterWriter(cfg, &bytes.Buffer{})
	defer adapter.Shutdown()

	t.Run("Initial level - DEBUG allows all messages", func(t *testing.T) {
		assert.True(t, adapter.shouldLog(LevelError))
		assert.True(t, adapter.shouldLog(LevelDebug))
	})

	steps := []struct {
		input     string
		wantLower string
		wantUpper string
		allowed   []LogLevel
		filtered  []LogLevel
	}{
		{"ERROR", "error", "ERROR", []LogLevel{LevelError}, []LogLevel{LevelWarn, LevelInfo, LevelDebug}},
		{"WARN", "warn", "WARN", []LogLevel{LevelError, LevelWarn}, []LogLevel{LevelInfo, LevelDebug}},
		{"Info", "info", "INFO", []LogLevel{LevelError, LevelWarn, LevelInfo}, []LogLevel{LevelDebug}},
		{"debug", "debug", "DEBUG", []LogLevel{LevelError, LevelWarn, LevelInfo, LevelDebug}, nil},
	}

	for _, step := range steps {
		t.Run("Change to "+step.input, func(t *testing.T) {
			adapter.UpdateLevel(step.input)

			// Check that config was updated
			assert.Equal(t, step.wantLower, cfg.General.LogLevel)
			assert.Equal(t, step.wantUpper, cfg.Logging.Level)

			for _, lvl := range step.allowed {
				assert.True(t, adapter.shouldLog(lvl), "level %d", lvl)
			}
			for _, lvl := range step.filtered {
				assert.False(t, adapter.shouldLog(lvl), "level %d", lvl)
			}
		})
	}
}

func TestLogger_DynamicLevelChange_MessageFiltering(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapterWriter(createTestConfig("DEBUG"), &buf)

	adapter.UpdateLevel("ERROR")
	adapter.Info("info message - should be filtered")
	adapter.Error("error message - should pass")
	adapter.Shutdown()

	lines := decodeLines(t, &buf)
	msgs := make([]string, 0, len(lines))
	for _, l := range lines {
		msgs = append(msgs, l["msg"].(string))
	}
	assert.Contains(t, msgs, "error message - should pass")
	assert.NotContains(t, msgs, "info message - should be filtered")
}

func TestLogger_DynamicLevelChange_Concurrency(t *testing.T) {
	adapter := NewSlogAdapterWriter(createTestConfig("INFO"), &bytes.Buffer{})
	defer adapter.Shutdown()

	var wg sync.WaitGroup
	wg.Add(3)

	// change levels repeatedly
	go func() {
		defer wg.Done()
		levels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
		for i := 0; i < 20; i++ {
			adapter.UpdateLevel(levels[i%len(levels)])
		}
	}()

	// log continuously
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			adapter.Info("concurrent message", "iteration", i)
		}
	}()

	// check shouldLog continuously
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = adapter.shouldLog(LevelInfo)
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Test timed out - possible deadlock")
	}
}

func TestLogger_DynamicLevelChange_InvalidLevels(t *testing.T) {
	adapter := NewSlogAdapterWriter(createTestConfig("INFO"), &bytes.Buffer{})
	defer adapter.Shutdown()

	for _, invalidLevel := range []string{"INVALID", "TRACE", "", "123"} {
		t.Run("Invalid level: "+invalidLevel, func(t *testing.T) {
			adapter.UpdateLevel("WARN")
			adapter.UpdateLevel(invalidLevel)

			// unknown levels fall back to errors only
			assert.True(t, adapter.shouldLog(LevelError))
			assert.False(t, adapter.shouldLog(LevelWarn))
			assert.NotPanics(t, func() { adapter.Info("test message after invalid level") })
		})
	}
}
