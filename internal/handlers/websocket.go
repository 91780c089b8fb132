package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// tailInterval is how often a run tail re-reads its run row. Run logs are
// committed per append, so polling the row is the streaming mechanism.
const tailInterval = time.Second

// wsMessage is the wire format for both run-log lines and bus events.
type wsMessage struct {
	Type    string                 `json:"type"` // run_log, run_status, event
	RunID   string                 `json:"run_id,omitempty"`
	Level   string                 `json:"level,omitempty"`
	Message string                 `json:"message,omitempty"`
	Status  string                 `json:"status,omitempty"`
	Event   string                 `json:"event,omitempty"`
	Payload interface{}            `json:"payload,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	TS      time.Time              `json:"ts"`
}

// WebSocketHandler streams run logs and pipeline events to operator clients.
// A connection with ?run_id= tails that run until it finishes; without it the
// connection receives bus events (run and scheduled-job lifecycle).
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	runs     interfaces.RunStorage
	cfg      *common.WebSocketConfig
	logger   arbor.ILogger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan wsMessage
	closed  bool
}

func NewWebSocketHandler(runs interfaces.RunStorage, events interfaces.EventService, cfg *common.WebSocketConfig, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Operator UI may be served from another origin in development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		runs:    runs,
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*websocket.Conn]chan wsMessage),
	}

	if events != nil {
		for _, eventType := range []interfaces.EventType{
			interfaces.EventPipelineRunStarted,
			interfaces.EventPipelineRunFinished,
			interfaces.EventScheduledJobStarted,
			interfaces.EventScheduledJobFinished,
		} {
			if err := events.Subscribe(eventType, h.onEvent); err != nil {
				logger.Warn().Str("event", string(eventType)).Err(err).Msg("Failed to subscribe websocket broadcaster")
			}
		}
	}
	return h
}

// HandleWebSocket upgrades the connection and serves either a run tail or the
// event broadcast.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	if runID := r.URL.Query().Get("run_id"); runID != "" {
		go h.tailRun(conn, runID)
		return
	}
	h.addClient(conn)
}

// GetRecentLogsHandler handles GET /api/logs/recent?run_id=&limit=, returning
// the tail of a run's persisted log.
func (h *WebSocketHandler) GetRecentLogsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		WriteError(w, http.StatusBadRequest, "run_id is required")
		return
	}

	logs, status, err := h.runLogs(runID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Run not found")
		return
	}

	limit := QueryInt(r, "limit", 100)
	if limit > 0 && len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"status": status,
		"logs":   logs,
	})
}

// tailRun streams a run's log entries to one client until the run leaves the
// running state or the client goes away.
func (h *WebSocketHandler) tailRun(conn *websocket.Conn, runID string) {
	defer conn.Close()

	sent := 0
	for {
		logs, status, err := h.runLogs(runID)
		if err != nil {
			h.writeMessage(conn, wsMessage{Type: "run_status", RunID: runID, Status: "not_found", TS: time.Now().UTC()})
			return
		}

		for ; sent < len(logs); sent++ {
			entry := logs[sent]
			if !h.shouldSend(entry) {
				continue
			}
			msg := wsMessage{
				Type:    "run_log",
				RunID:   runID,
				Level:   entry.Level,
				Message: entry.Message,
				Data:    entry.Data,
				TS:      entry.Timestamp,
			}
			if err := h.writeMessage(conn, msg); err != nil {
				return
			}
		}

		if status != models.RunStatusRunning {
			h.writeMessage(conn, wsMessage{Type: "run_status", RunID: runID, Status: string(status), TS: time.Now().UTC()})
			return
		}
		time.Sleep(tailInterval)
	}
}

// runLogs reads a run row of any type by id.
func (h *WebSocketHandler) runLogs(runID string) ([]models.RunLogEntry, models.RunStatus, error) {
	if run, err := h.runs.GetPipelineRun(runID); err == nil {
		return run.Logs, run.Status, nil
	}
	if run, err := h.runs.GetDiscoveryRun(runID); err == nil {
		return run.Logs, run.Status, nil
	}
	if run, err := h.runs.GetMaintenanceRun(runID); err == nil {
		return run.Logs, run.Status, nil
	}
	run, err := h.runs.GetVerificationRun(runID)
	if err != nil {
		return nil, "", err
	}
	return run.Logs, run.Status, nil
}

// shouldSend applies the configured level floor and exclusion patterns.
func (h *WebSocketHandler) shouldSend(entry models.RunLogEntry) bool {
	if h.cfg != nil {
		if levelRank(entry.Level) < levelRank(h.cfg.MinLevel) {
			return false
		}
		for _, pattern := range h.cfg.ExcludePatterns {
			if pattern != "" && strings.Contains(entry.Message, pattern) {
				return false
			}
		}
	}
	return true
}

func levelRank(level string) int {
	switch strings.ToLower(level) {
	case "trace":
		return 0
	case "debug":
		return 1
	case "", "info":
		return 2
	case "warn", "warning":
		return 3
	case "error":
		return 4
	default:
		return 2
	}
}

// onEvent broadcasts one bus event to all connected clients.
func (h *WebSocketHandler) onEvent(_ context.Context, event interfaces.Event) error {
	msg := wsMessage{
		Type:    "event",
		Event:   string(event.Type),
		Payload: event.Payload,
		TS:      time.Now().UTC(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// Slow consumer: drop the connection rather than the pipeline.
			h.logger.Warn().Msg("Dropping slow websocket client")
			delete(h.clients, conn)
			close(ch)
			conn.Close()
		}
	}
	return nil
}

// addClient registers a broadcast client and pumps its send channel until the
// connection drops.
func (h *WebSocketHandler) addClient(conn *websocket.Conn) {
	ch := make(chan wsMessage, 64)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = ch
	h.mu.Unlock()

	// Writer pump.
	go func() {
		for msg := range ch {
			if err := h.writeMessage(conn, msg); err != nil {
				break
			}
		}
		h.removeClient(conn)
	}()

	// Reader loop exists only to observe the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.removeClient(conn)
				return
			}
		}
	}()
}

func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(ch)
	}
	h.mu.Unlock()
	conn.Close()
}

func (h *WebSocketHandler) writeMessage(conn *websocket.Conn, msg wsMessage) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(msg)
}

// Close drops all broadcast clients.
func (h *WebSocketHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn, ch := range h.clients {
		delete(h.clients, conn)
		close(ch)
		conn.Close()
	}
	return nil
}
