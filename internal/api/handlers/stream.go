package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/screener/internal/results"
	"github.com/wonny/screener/pkg/logger"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// StreamHandler pushes result rows to websocket clients as they are consumed
type StreamHandler struct {
	collector *results.Collector
	upgrader  websocket.Upgrader
	logger    *logger.Logger
}

// NewStreamHandler creates a stream handler
func NewStreamHandler(col *results.Collector, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		collector: col,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Stream upgrades the connection and forwards rows until the client leaves
// GET /ws/results
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	rows, cancel := h.collector.Subscribe(256)
	defer cancel()

	// reader: only pongs and the close frame are expected
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	h.logger.WithField("remote", r.RemoteAddr).Debug("Result stream opened")
	for {
		select {
		case <-closed:
			h.logger.WithField("remote", r.RemoteAddr).Debug("Result stream closed")
			return
		case <-r.Context().Done():
			return
		case row, ok := <-rows:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(row); err != nil {
				h.logger.WithError(err).Debug("Result stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
