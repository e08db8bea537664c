// Package websocket streams breach lifecycle events to connected clients.
package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/platformbuilds/mirador-sla/internal/events"
	"github.com/platformbuilds/mirador-sla/internal/models"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

const (
	writeTimeout        = 10 * time.Second
	defaultPingInterval = 30 * time.Second
)

// Message is the wire envelope for streamed events.
type Message struct {
	Type      string       `json:"type"`
	Data      models.Event `json:"data"`
	Timestamp time.Time    `json:"timestamp"`
}

// EventStreamHandler upgrades HTTP connections and forwards every bus event
// to the client. Each connection gets its own bus subscription; a slow client
// only loses its own events.
type EventStreamHandler struct {
	bus          *events.Bus
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	logger       logger.Logger
}

func NewEventStreamHandler(bus *events.Bus, readBuf, writeBuf int, pingInterval time.Duration, log logger.Logger) *EventStreamHandler {
	if readBuf <= 0 {
		readBuf = 1024
	}
	if writeBuf <= 0 {
		writeBuf = 1024
	}
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &EventStreamHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			// origin policy is enforced by the CORS middleware upstream
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pingInterval: pingInterval,
		logger:       log,
	}
}

// HandleEventStream serves GET /api/v1/ws/events.
func (h *EventStreamHandler) HandleEventStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch, cancel := h.bus.Subscribe()
	defer cancel()

	h.logger.Info("websocket event stream connected", "client", c.ClientIP())

	// drain client frames so pings/pongs and close frames are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			msg := Message{Type: string(ev.Kind()), Data: ev, Timestamp: time.Now()}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("websocket write failed, dropping client", "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
