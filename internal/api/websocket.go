package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mr1hm/go-accident-alerts/internal/apperr"
	"github.com/mr1hm/go-accident-alerts/internal/models"
	"github.com/mr1hm/go-accident-alerts/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamAlerts pushes broadcast notifications to a nearby client.
// Query: lat, lng (optional pair), min_severity.
func (h *Handler) streamAlerts(c *gin.Context) {
	filter, err := parseAlertFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id, ch := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(id)

	slog.Info("websocket client subscribed", "subscriber_id", id, "remote", conn.RemoteAddr().String())

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			slog.Info("websocket client disconnected", "subscriber_id", id)
			return
		case n, ok := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if !filter.Match(n) {
				continue
			}
			if err := conn.WriteJSON(n); err != nil {
				slog.Warn("websocket write failed", "subscriber_id", id, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles control frames and closes done when the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

func parseAlertFilter(c *gin.Context) (models.AlertFilter, error) {
	var filter models.AlertFilter

	var lat, lng *float64
	for key, dst := range map[string]**float64{"lat": &lat, "lng": &lng} {
		s := c.Query(key)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return filter, apperr.Validation(key, "must be a number")
		}
		*dst = &v
	}
	if err := store.ValidateLocation(lat, lng); err != nil {
		return filter, err
	}
	if lat != nil {
		filter.Position = &models.Coordinates{Latitude: *lat, Longitude: *lng}
	}

	if s := c.Query("min_severity"); s != "" {
		sev, ok := models.ParseSeverity(s)
		if !ok {
			return filter, apperr.Validation("min_severity", "unknown severity "+s)
		}
		filter.MinSeverity = sev
	}
	return filter, nil
}
