// internal/handler/handler_test.go
package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"escpos-service/internal/config"
	"escpos-service/internal/model"
	"escpos-service/internal/protocol"
	"escpos-service/internal/repository"
	"escpos-service/internal/service"
	"escpos-service/internal/utils"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
	Error   *utils.APIError `json:"error"`
}

type testEnv struct {
	router       *gin.Engine
	printService *service.PrintService
	eventBus     *EventBus
	websocket    *WebSocketHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		App:  config.AppConfig{Name: "escpos-service", Version: "test"},
		Jobs: config.JobsConfig{QueueSize: 8, Timeout: 2 * time.Second, MaxCopies: 3},
		Printers: []config.PrinterConfig{
			{ID: "kitchen", Name: "Kitchen", Encoding: "UTF-8", PaperWidth: 58, ConnectionType: "CONSOLE"},
			{ID: "bar", Name: "Bar", Model: "qsprinter", Encoding: "CP437", PaperWidth: 80, ConnectionType: "CONSOLE"},
		},
	}

	bus := NewEventBus(zap.NewNop())
	go bus.Start()

	ps, err := service.NewPrintService(cfg, repository.NewJobRepository(nil), zap.NewNop(),
		service.WithEventPublisher(bus),
		service.WithTransportFactory(func(pc *config.PrinterConfig, logger *zap.Logger) (protocol.Transport, error) {
			return protocol.NewConsoleConnection(&protocol.ConsoleConfig{}, io.Discard, logger), nil
		}),
	)
	require.NoError(t, err)
	require.NoError(t, ps.Start(context.Background()))

	ws := NewWebSocketHandler(ps, bus, []string{"*"}, zap.NewNop())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(utils.RequestIDKey, "req-test")
		c.Next()
	})
	NewHealthHandler(ps, ws, cfg, zap.NewNop()).RegisterRoutes(router.Group(""))
	api := router.Group("/api/v1")
	NewPrinterHandler(ps, zap.NewNop()).RegisterRoutes(api)
	NewJobHandler(ps, zap.NewNop()).RegisterRoutes(api)
	ws.RegisterRoutes(router.Group("/ws"))

	t.Cleanup(func() {
		ws.Stop()
		ps.Stop()
		bus.Stop()
	})

	return &testEnv{router: router, printService: ps, eventBus: bus, websocket: ws}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (int, *apiResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, &resp
}

func (e *testEnv) waitJob(t *testing.T, id string) *model.PrintJob {
	t.Helper()
	var job model.PrintJob
	require.Eventually(t, func() bool {
		code, resp := e.do(t, http.MethodGet, "/api/v1/jobs/"+id, nil)
		if code != http.StatusOK {
			return false
		}
		require.NoError(t, json.Unmarshal(resp.Data, &job))
		return job.IsCompleted()
	}, 2*time.Second, 10*time.Millisecond)
	return &job
}

func TestPrinterRoutes(t *testing.T) {
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodGet, "/api/v1/printers", nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Count)
	assert.Equal(t, 2, *resp.Count)

	code, resp = env.do(t, http.MethodGet, "/api/v1/printers/bar", nil)
	require.Equal(t, http.StatusOK, code)
	var printer model.Printer
	require.NoError(t, json.Unmarshal(resp.Data, &printer))
	assert.Equal(t, "qsprinter", printer.Model)
	assert.Equal(t, model.PrinterStatusIdle, printer.Status)

	code, resp = env.do(t, http.MethodGet, "/api/v1/printers/office", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, resp.Success)
}

func TestPrintDocument(t *testing.T) {
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPost, "/api/v1/printers/kitchen/print", gin.H{
		"document": gin.H{"header": "Table 4", "footer": "Thanks", "cut": true},
		"copies":   2,
	})
	require.Equal(t, http.StatusAccepted, code, string(resp.Data))

	var queued model.PrintJob
	require.NoError(t, json.Unmarshal(resp.Data, &queued))
	assert.Equal(t, model.JobStatusQueued, queued.Status)
	assert.Equal(t, "req-test", queued.CorrelationID)

	job := env.waitJob(t, queued.ID.String())
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Positive(t, job.BytesWritten)

	code, resp = env.do(t, http.MethodGet, "/api/v1/printers/kitchen/jobs?status=completed", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, *resp.Count)

	code, resp = env.do(t, http.MethodGet, "/api/v1/printers/kitchen/stats", nil)
	require.Equal(t, http.StatusOK, code)
	var stats repository.JobStats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, int64(1), stats.CompletedJobs)
}

func TestPrintRejections(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodPost, "/api/v1/printers/kitchen/print", gin.H{"copies": 1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/printers/kitchen/print", gin.H{"document": gin.H{"cut": true}})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/printers/kitchen/print", gin.H{
		"document": gin.H{"header": "x"},
		"copies":   9,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/printers/office/print", gin.H{"document": gin.H{"header": "x"}})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/printers/kitchen/raw", gin.H{"data": "not base64!"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPrintRaw(t *testing.T) {
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPost, "/api/v1/printers/bar/raw", gin.H{
		"data":           base64.StdEncoding.EncodeToString([]byte{0x1B, 0x40, 'h', 'i', 0x0A}),
		"correlation_id": "order-17",
	})
	require.Equal(t, http.StatusAccepted, code)

	var queued model.PrintJob
	require.NoError(t, json.Unmarshal(resp.Data, &queued))
	assert.Equal(t, "order-17", queued.CorrelationID)

	job := env.waitJob(t, queued.ID.String())
	assert.Equal(t, 5, job.BytesWritten)
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t)

	code, resp := env.do(t, http.MethodPost, "/api/v1/printers/kitchen/preview", gin.H{
		"document": gin.H{"header": "AB"},
	})
	require.Equal(t, http.StatusOK, code)

	var preview service.Preview
	require.NoError(t, json.Unmarshal(resp.Data, &preview))
	assert.Equal(t, "kitchen", preview.PrinterID)
	assert.Positive(t, preview.Bytes)
	assert.True(t, strings.HasPrefix(preview.Hex, "1B 40"))
}

func TestJobRoutes(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodGet, "/api/v1/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodGet, "/api/v1/jobs/6f1c7a52-5d0e-4a43-9a6f-0f7d1c0e2b11", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, http.MethodGet, "/api/v1/jobs?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodGet, "/api/v1/jobs?per_page=0", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodGet, "/api/v1/jobs?printer_id=office", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, resp := env.do(t, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, *resp.Count)

	code, _ = env.do(t, http.MethodGet, "/api/v1/jobs/stats", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Contains(t, health.Checks, "printer:kitchen")
	assert.Contains(t, health.Checks, "websocket")

	env.printService.Stop()

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEventBusDelivery(t *testing.T) {
	bus := NewEventBus(nil)
	go bus.Start()

	all := bus.Subscribe(AllEvents)
	failed := bus.Subscribe(model.EventJobFailed)

	bus.Publish(model.PrinterEvent{EventType: model.EventJobQueued, PrinterID: "kitchen"})
	bus.Publish(model.PrinterEvent{EventType: model.EventJobFailed, PrinterID: "kitchen"})

	for _, want := range []model.EventType{model.EventJobQueued, model.EventJobFailed} {
		select {
		case ev := <-all:
			assert.Equal(t, want, ev.EventType)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	select {
	case ev := <-failed:
		assert.Equal(t, model.EventJobFailed, ev.EventType)
	case <-time.After(time.Second):
		t.Fatal("typed event not delivered")
	}

	bus.Unsubscribe(model.EventJobFailed, failed)
	_, open := <-failed
	assert.False(t, open)

	bus.Stop()
	_, open = <-all
	assert.False(t, open)

	// publishing after stop is a no-op
	bus.Publish(model.PrinterEvent{EventType: model.EventJobQueued})
}

func readMessage(t *testing.T, conn *websocket.Conn, match func(*WebSocketMessage) bool) *WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg WebSocketMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(&msg) {
			return &msg
		}
	}
}

func TestWebSocketEvents(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"/ws/printers/office", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	printerConn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws/printers/bar", nil)
	require.NoError(t, err)
	defer printerConn.Close()

	initial := readMessage(t, printerConn, func(m *WebSocketMessage) bool { return true })
	assert.Equal(t, "initial_status", initial.Type)

	eventsConn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws/events", nil)
	require.NoError(t, err)
	defer eventsConn.Close()

	require.NoError(t, eventsConn.WriteJSON(&WebSocketMessage{
		Type: "subscribe",
		Data: map[string]interface{}{"topic": string(model.EventJobCompleted)},
	}))
	confirmed := readMessage(t, eventsConn, func(m *WebSocketMessage) bool { return true })
	assert.Equal(t, "subscription_confirmed", confirmed.Type)

	require.NoError(t, eventsConn.WriteJSON(&WebSocketMessage{Type: "ping", RequestID: "p1"}))
	pong := readMessage(t, eventsConn, func(m *WebSocketMessage) bool { return true })
	assert.Equal(t, "pong", pong.Type)
	assert.Equal(t, "p1", pong.RequestID)

	_, err = env.printService.SubmitRaw(context.Background(), "bar", []byte("hi\n"), 1, "")
	require.NoError(t, err)

	isEvent := func(eventType model.EventType) func(*WebSocketMessage) bool {
		return func(m *WebSocketMessage) bool {
			if m.Type != "printer_event" {
				return false
			}
			data, ok := m.Data.(map[string]interface{})
			return ok && data["event_type"] == string(eventType)
		}
	}

	// filtered connection only sees the subscribed topic
	completed := readMessage(t, eventsConn, isEvent(model.EventJobCompleted))
	assert.Equal(t, "bar", completed.Data.(map[string]interface{})["printer_id"])

	// printer connection without filters sees every event of its printer
	readMessage(t, printerConn, isEvent(model.EventJobQueued))
	readMessage(t, printerConn, isEvent(model.EventJobCompleted))

	require.Eventually(t, func() bool {
		return env.websocket.GetConnectionStats().TotalConnections == 2
	}, time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://pos.local"})

	req := httptest.NewRequest(http.MethodGet, "/ws/events", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://pos.local")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
