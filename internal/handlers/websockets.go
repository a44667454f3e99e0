package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	te "thermal_envelope"
	"thermal_envelope/internal/service"

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
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// eventCursor remembers what a client has already been sent. Events are
// ordered by OccurredAt; ids at the cursor instant resolve ties.
type eventCursor struct {
	at   time.Time
	seen map[string]struct{}
}

func newEventCursor(since time.Time) *eventCursor {
	return &eventCursor{at: since, seen: map[string]struct{}{}}
}

// advance returns the events not yet delivered and moves the cursor past them.
func (c *eventCursor) advance(events []te.FitEvent) []te.FitEvent {
	out := make([]te.FitEvent, 0, len(events))
	for _, e := range events {
		if e.OccurredAt.Before(c.at) {
			continue
		}
		if _, dup := c.seen[e.EventID]; dup {
			continue
		}
		if e.OccurredAt.After(c.at) {
			c.at = e.OccurredAt
			clear(c.seen)
		}
		c.seen[e.EventID] = struct{}{}
		out = append(out, e)
	}
	return out
}

// @Summary      Event stream
// @Description  Websocket that pushes new fit events as {"type":"events","data":[...]}. The first message carries events since 'since' (default: connect time).
// @Tags         events
// @Security     BearerAuth
// @Param        access_token query  string  false  "Bearer token when the client cannot set the Authorization header"
// @Param        since        query  string  false  "RFC3339 start of the stream"
// @Param        interval     query  string  false  "Poll interval, e.g. 2s (max 10s)"
// @Param        interval_ms  query  int     false  "Poll interval in milliseconds"
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)
	since := time.Now().UTC()
	if qs := c.Query("since"); qs != "" {
		t, err := parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'since' time; use RFC3339 or YYYY-MM-DD"})
			return
		}
		since = t
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

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

	cursor := newEventCursor(since)
	ctx := c.Request.Context()

	if err := h.sendEvents(ctx, conn, cursor, true); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case <-ticker.C:
			if err := h.sendEvents(ctx, conn, cursor, false); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	interval := h.pollInterval
	if interval <= 0 {
		interval = defaultInterval
	}

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

	return interval
}

// startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}

// sendEvents writes the events past cursor. Empty batches are only written
// when force is set, so idle streams carry pings only. A failed lookup is
// reported to the client and keeps the stream open.
func (h *Handler) sendEvents(ctx context.Context, conn *websocket.Conn, cursor *eventCursor, force bool) error {
	events, err := h.services.EventLog.List(ctx, service.LogFilter{From: cursor.at})
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_list_events_failed", "err", err)
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(wsEnvelope{Type: "error", Error: "failed to load events"})
	}
	fresh := cursor.advance(events)
	if len(fresh) == 0 && !force {
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{Type: "events", Data: fresh})
}
