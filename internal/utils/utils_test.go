// internal/utils/utils_test.go
package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"escpos-service/internal/config"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewLoggerWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "service.log")
	logger, err := NewLogger(&config.LoggingConfig{Level: "info", Format: "json", Output: path, MaxSize: 1})
	require.NoError(t, err)

	logger.Info("hello", zap.String("printer_id", "p1"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "p1", entry["printer_id"])
	assert.Equal(t, "info", entry["level"])
}

func TestNewLoggerRejectsLevel(t *testing.T) {
	_, err := NewLogger(&config.LoggingConfig{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

func TestPrinterLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	pl := NewPrinterLogger(zap.New(core), "kitchen", "TCP", "")

	pl.LogJob("job-1", 42, time.Millisecond, nil)
	pl.LogJob("job-2", 0, time.Millisecond, errors.New("offline"))

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0]
	assert.Equal(t, "Print job completed", first.Message)
	assert.Equal(t, "generic", first.ContextMap()["model"])
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[1].Level)
}

func TestResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(RequestIDKey, "req-1")
	ErrorResponse(c, http.StatusTooManyRequests, "Queue is full", errors.New("10 jobs waiting"))

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "QUEUE_FULL", resp.Error.Code)
	assert.Equal(t, "10 jobs waiting", resp.Error.Details)
	assert.Equal(t, "req-1", resp.RequestID)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	ListResponse(c, "ok", []string{"a", "b"}, 2)

	var list APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.True(t, list.Success)
	require.NotNil(t, list.Count)
	assert.Equal(t, 2, *list.Count)
	assert.Empty(t, list.RequestID)
}
