package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/yieldopt/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const wsWriteTimeout = 5 * time.Second

// EventsWSHandler streams bus events over a websocket.
type EventsWSHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsWSHandler creates a new websocket events handler.
func NewEventsWSHandler(eventBus *events.Bus, log zerolog.Logger) *EventsWSHandler {
	return &EventsWSHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_ws").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws requests.
// Accepts the same ?types= filter as the SSE stream.
func (h *EventsWSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket handshake failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	allowedTypes := parseTypesFilter(r.URL.Query().Get("types"))

	eventChan, unsubscribe := h.eventBus.Subscribe()
	defer unsubscribe()

	// Clients only listen; CloseRead handles control frames and cancels ctx on close.
	ctx := conn.CloseRead(r.Context())

	h.log.Info().Msg("Client connected to websocket event stream")

	if err := h.write(ctx, conn, map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from websocket event stream")
			return

		case event, ok := <-eventChan:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "event bus closed")
				return
			}
			if allowedTypes != nil && !allowedTypes[event.Type] {
				continue
			}
			if err := h.write(ctx, conn, eventPayload(event)); err != nil {
				return
			}

		case <-heartbeat.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Websocket ping failed")
				return
			}
		}
	}
}

func (h *EventsWSHandler) write(ctx context.Context, conn *websocket.Conn, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.log.Debug().Err(err).Msg("Websocket write failed")
		return err
	}
	return nil
}
