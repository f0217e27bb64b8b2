// internal/handler/discovery_handler_test.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"escpos-service/internal/config"
	"escpos-service/internal/discovery"
	"escpos-service/internal/model"
	"escpos-service/internal/service"
)

type staticScanner struct{}

func (staticScanner) Scan(ctx context.Context) ([]*discovery.DiscoveredPrinter, error) {
	return []*discovery.DiscoveredPrinter{{
		ConnectionType: model.ConnectionTypeTCP,
		Connection:     map[string]interface{}{"host": "10.0.0.5", "port": 9100},
		Model:          "generic",
		Confidence:     0.9,
	}}, nil
}
func (staticScanner) GetScannerType() string { return "tcp" }
func (staticScanner) IsAvailable() bool      { return true }

func TestDiscoveryRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	manager := discovery.NewScannerManager(nil)
	manager.RegisterScanner(staticScanner{})
	ds := service.NewDiscoveryServiceWithManager(&config.Config{}, manager, zap.NewNop())

	router := gin.New()
	NewDiscoveryHandler(ds, zap.NewNop()).RegisterRoutes(router.Group("/api/v1"))

	get := func(path string) (int, *apiResponse) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		var resp apiResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return w.Code, &resp
	}

	code, resp := get("/api/v1/discovery/tcp")
	require.Equal(t, http.StatusOK, code)
	var result service.ScanResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 1, result.PrintersFound)
	assert.Equal(t, "10.0.0.5", result.Printers[0].Connection["host"])

	code, _ = get("/api/v1/discovery/bluetooth")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = get("/api/v1/discovery/usb")
	assert.Equal(t, http.StatusInternalServerError, code)

	code, resp = get("/api/v1/discovery")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"available":["tcp"]`)
}
