package handlers

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"battery_dashboard/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000 // 10s in ms
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type   string      `json:"type"`
	Data   interface{} `json:"data,omitempty"`
	Topics []string    `json:"topics,omitempty"` // what changed since the previous frame
	Error  string      `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConnect streams dashboard snapshots. An open connection counts as a
// viewer, so polling runs while at least one stream is connected. Changes
// are coalesced and pushed at most once per interval.
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorw("ws_upgrade_failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	release := h.services.Lifecycle.Acquire()
	defer release()

	var changes <-chan repository.Topic
	if n := h.services.Notifier; n != nil {
		sub := n.Subscribe()
		defer sub.Close()
		changes = sub.C()
	}

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.startReader(conn, done)

	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	h.log.Infow("ws_connected", "client_ip", c.ClientIP(), "interval", interval)
	defer h.log.Infow("ws_disconnected", "client_ip", c.ClientIP())

	if err := h.sendDashboard(conn, nil); err != nil {
		h.log.Infow("ws_write_failed_initial", "err", err)
		return
	}

	// without a notifier every tick pushes a snapshot
	pending := map[repository.Topic]struct{}{}
	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case t, ok := <-changes:
			if !ok {
				return
			}
			pending[t] = struct{}{}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Infow("ws_ping_failed", "err", err)
				return
			}
		case <-ticker.C:
			if changes != nil && len(pending) == 0 {
				continue
			}
			if err := h.sendDashboard(conn, pending); err != nil {
				h.log.Infow("ws_write_failed", "err", err)
				return
			}
			clear(pending)
		}
	}
}

// parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultInterval
}

// startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.log.Debugw("ws_read_closed", "err", err)
			return
		}
	}
}

func (h *Handler) sendDashboard(conn *websocket.Conn, changed map[repository.Topic]struct{}) error {
	topics := make([]string, 0, len(changed))
	for t := range changed {
		topics = append(topics, string(t))
	}
	sort.Strings(topics)

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{
		Type:   "dashboard",
		Data:   h.services.Monitoring.Dashboard(),
		Topics: topics,
	})
}
