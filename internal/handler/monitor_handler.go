package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/oscelab/osce-backend/internal/competition"
	"github.com/oscelab/osce-backend/internal/config"
	"github.com/oscelab/osce-backend/internal/middleware"
	"github.com/oscelab/osce-backend/internal/response"
	"github.com/oscelab/osce-backend/internal/ws"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const monitorPingInterval = 30 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// MonitorHandler streams live competition events to admin dashboards over
// WebSocket. Events arrive via the per-session Redis PubSub channel, so
// monitors work across server instances.
type MonitorHandler struct {
	rdb      *redis.Client
	engine   *competition.Engine
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(rdb *redis.Client, engine *competition.Engine, log zerolog.Logger, allowedOrigins []string) *MonitorHandler {
	return &MonitorHandler{
		rdb:      rdb,
		engine:   engine,
		log:      log.With().Str("component", "monitor_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// MonitorSession godoc
// WS /ws/v1/admin/sessions/:id/monitor
//
// Sends an initial participant snapshot, then forwards every committed state
// transition as it happens.
func (h *MonitorHandler) MonitorSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	// Validate the session before upgrading; a 404 beats a dead socket.
	if _, err := h.engine.GetSession(c.Request.Context(), id); err != nil {
		failFromError(c, err, h.log)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	reqCtx := c.Request.Context()

	// Initial snapshot so the dashboard renders before the first event.
	overview, err := h.engine.Overview(reqCtx, id)
	if err != nil {
		_ = ws.WriteError(conn, "failed to build snapshot")
		return
	}
	if err := ws.WriteTyped(conn, ws.SnapshotResponse{Event: ws.EventSnapshot, Data: overview}); err != nil {
		return
	}

	channel := config.CacheKey.SessionMonitorChannel(id.String())
	pubsub := h.rdb.Subscribe(reqCtx, channel)
	defer pubsub.Close()
	events := pubsub.Channel()

	h.log.Info().Str("session_id", id.String()).Int("admin_id", claims.UserID).Msg("Admin attached to session monitor")

	// Reader goroutine: consume pings and detect client close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var envelope ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &envelope); err != nil {
				return
			}
			if envelope.Action == ws.ActionPing {
				_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			}
		}
	}()

	pingTicker := time.NewTicker(monitorPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-reqCtx.Done():
			return
		case <-done:
			return
		case msg, open := <-events:
			if !open {
				return
			}
			payload := ws.MonitorResponse{Event: ws.EventMonitor, Data: json.RawMessage(msg.Payload)}
			if err := ws.WriteTyped(conn, payload); err != nil {
				return
			}
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
