// internal/handler/websocket_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"escpos-service/internal/model"
	"escpos-service/internal/service"
	"escpos-service/internal/utils"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHandler pushes printer and job events to connected clients
type WebSocketHandler struct {
	upgrader     websocket.Upgrader
	connections  *ConnectionManager
	printService *service.PrintService
	eventBus     *EventBus
	logger       *utils.ServiceLogger

	events   <-chan model.PrinterEvent
	stopOnce sync.Once
	done     chan struct{}
}

// NewWebSocketHandler creates a new WebSocket handler fed by eventBus
func NewWebSocketHandler(
	printService *service.PrintService,
	eventBus *EventBus,
	allowedOrigins []string,
	logger *zap.Logger,
) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	handler := &WebSocketHandler{
		upgrader:     upgrader,
		connections:  NewConnectionManager(),
		printService: printService,
		eventBus:     eventBus,
		logger:       utils.NewServiceLogger(logger, "websocket-handler"),
		events:       eventBus.Subscribe(AllEvents),
		done:         make(chan struct{}),
	}

	go handler.forwardEvents()

	return handler
}

// originChecker allows requests without an Origin header and those whose
// origin is listed; "*" allows any origin
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	// All printer and job events
	router.GET("/events", h.HandleEventConnection)

	// Events of one printer
	router.GET("/printers/:printer_id", h.HandlePrinterConnection)
}

// Stop detaches from the event bus and disconnects every client
func (h *WebSocketHandler) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.eventBus.Unsubscribe(AllEvents, h.events)
		h.connections.CloseAll()
	})
}

// HandleEventConnection handles general event WebSocket connections
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := h.newClient(c, conn, clientTypeEvents, nil)
	h.connections.Register(client)
	h.logger.Info("Event WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// HandlePrinterConnection handles printer-specific WebSocket connections
func (h *WebSocketHandler) HandlePrinterConnection(c *gin.Context) {
	printerID := c.Param("printer_id")
	printer, err := h.printService.GetPrinter(printerID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Printer not found", err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := h.newClient(c, conn, clientTypePrinter, &printerID)
	h.connections.Register(client)
	h.logger.Info("Printer WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("printer_id", printerID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	h.sendMessage(client, &WebSocketMessage{
		Type:      "initial_status",
		Data:      map[string]interface{}{"printer": printer},
		Timestamp: time.Now(),
	})

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

func (h *WebSocketHandler) newClient(c *gin.Context, conn *websocket.Conn, clientType string, printerID *string) *Client {
	return &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Type:        clientType,
		PrinterID:   printerID,
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}
}

// forwardEvents relays bus events to interested clients
func (h *WebSocketHandler) forwardEvents() {
	for {
		select {
		case <-h.done:
			return
		case event, ok := <-h.events:
			if !ok {
				return
			}
			h.BroadcastPrinterEvent(event)
		}
	}
}

// BroadcastPrinterEvent sends event to event clients subscribed to its type
// and to clients watching its printer
func (h *WebSocketHandler) BroadcastPrinterEvent(event model.PrinterEvent) {
	messageBytes, err := json.Marshal(&WebSocketMessage{
		Type:      "printer_event",
		Data:      event,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	topic := string(event.EventType)
	dropped := h.connections.Broadcast(messageBytes, func(client *Client) bool {
		if client.PrinterID != nil && *client.PrinterID != event.PrinterID {
			return false
		}
		return client.Wants(topic)
	})
	if dropped > 0 {
		h.logger.Warn("Client send channel full during broadcast",
			zap.String("event_type", topic),
			zap.Int("dropped", dropped),
		)
	}
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
	}()

	client.Connection.SetReadDeadline(time.Now().Add(pongWait))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.sendError(client, "invalid message")
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "subscribe":
		if topic, ok := messageTopic(message); ok {
			client.Subscribe(topic)
			h.sendMessage(client, &WebSocketMessage{
				Type:      "subscription_confirmed",
				Data:      map[string]interface{}{"topic": topic},
				Timestamp: time.Now(),
				RequestID: message.RequestID,
			})
		} else {
			h.sendError(client, "topic is required")
		}
	case "unsubscribe":
		if topic, ok := messageTopic(message); ok {
			client.Unsubscribe(topic)
		}
	case "status":
		h.sendStatus(client, message)
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	default:
		h.logger.Warn("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
		h.sendError(client, "unknown message type: "+message.Type)
	}
}

func messageTopic(message *WebSocketMessage) (string, bool) {
	data, ok := message.Data.(map[string]interface{})
	if !ok {
		return "", false
	}
	topic, ok := data["topic"].(string)
	return topic, ok && topic != ""
}

// sendStatus replies with the watched printer, or every printer on event
// connections
func (h *WebSocketHandler) sendStatus(client *Client, message *WebSocketMessage) {
	reply := &WebSocketMessage{
		Type:      "status",
		Timestamp: time.Now(),
		RequestID: message.RequestID,
	}

	if client.PrinterID != nil {
		printer, err := h.printService.GetPrinter(*client.PrinterID)
		if err != nil {
			h.sendError(client, err.Error())
			return
		}
		reply.Data = map[string]interface{}{"printer": printer}
	} else {
		reply.Data = map[string]interface{}{"printers": h.printService.ListPrinters()}
	}

	h.sendMessage(client, reply)
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	if !h.connections.Send(client, messageBytes) {
		h.logger.Warn("Client send channel unavailable, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, errorMsg string) {
	h.sendMessage(client, &WebSocketMessage{
		Type:      "error",
		Data:      map[string]interface{}{"error": errorMsg},
		Timestamp: time.Now(),
	})
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}
