package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/stockselect/internal/events"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	streamBuffer       = 100
	streamWriteTimeout = 5 * time.Second
)

// HandleStream handles GET /api/runs/stream. Events are pushed as JSON text
// messages; ?run_id= limits the stream to one run and ?types= to a comma
// separated list of event types.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	runID := r.URL.Query().Get("run_id")
	var allowed map[events.EventType]bool
	if types := r.URL.Query().Get("types"); types != "" {
		allowed = make(map[events.EventType]bool)
		for _, t := range strings.Split(types, ",") {
			allowed[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	eventChan := make(chan *events.Event, streamBuffer)
	handler := func(event *events.Event) {
		if allowed != nil && !allowed[event.Type] {
			return
		}
		if runID != "" && event.Data["run_id"] != runID {
			return
		}
		select {
		case eventChan <- event:
		default:
			h.log.Warn().Str("event_type", string(event.Type)).Msg("Stream client too slow, dropping event")
		}
	}
	for _, t := range events.AllTypes {
		unsubscribe := h.bus.Subscribe(t, handler)
		defer unsubscribe()
	}

	// The client never sends; CloseRead cancels ctx once it disconnects.
	ctx := conn.CloseRead(r.Context())
	h.log.Debug().Str("run_id", runID).Msg("Stream client connected")

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event := <-eventChan:
			if err := h.write(ctx, conn, event); err != nil {
				h.log.Debug().Err(err).Msg("Stream client gone")
				return
			}
		}
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, event *events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, event)
}
