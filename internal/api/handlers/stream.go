package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 4 << 10
)

// EstimateFrame is one websocket reply. Exactly one of Estimate and Error is set.
type EstimateFrame struct {
	Estimate interface{} `json:"estimate,omitempty"`
	Error    string      `json:"error,omitempty"`
	Status   int         `json:"status"`
}

// StreamHandler serves live, non-binding estimates over a websocket
type StreamHandler struct {
	match    *MatchHandler
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a websocket estimate handler.
// allowedOrigins empty accepts any origin.
func NewStreamHandler(match *MatchHandler, allowedOrigins []string) *StreamHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &StreamHandler{
		match: match,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin] || allowed["*"]
			},
		},
	}
}

// Estimates answers each {amount, side} frame with an estimate frame
// GET /ws/estimate
func (h *StreamHandler) Estimates(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.match.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.match.metrics.AddWSClients(1)
	defer h.match.metrics.AddWSClients(-1)

	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(wsPongWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.ping(conn, done)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.match.logger.WithError(err).Debug("Websocket read failed")
			}
			return
		}

		frame := h.answer(message)

		conn.SetWriteDeadline(time.Now().Add(wsWriteWait)) //nolint:errcheck
		if err := conn.WriteJSON(frame); err != nil {
			h.match.logger.WithError(err).Debug("Websocket write failed")
			return
		}
	}
}

func (h *StreamHandler) answer(message []byte) EstimateFrame {
	var req EstimateRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return EstimateFrame{Error: "invalid JSON frame", Status: http.StatusBadRequest}
	}
	if err := h.match.validator.Struct(&req); err != nil {
		return EstimateFrame{Error: err.Error(), Status: http.StatusBadRequest}
	}

	estimate, status, err := h.match.estimate(req)
	if err != nil {
		return EstimateFrame{Error: err.Error(), Status: status}
	}
	return EstimateFrame{Estimate: estimate, Status: http.StatusOK}
}

// ping keeps the connection alive; WriteControl is safe alongside WriteJSON
func (h *StreamHandler) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
