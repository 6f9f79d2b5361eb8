package server

import (
	"context"
	"log/slog"
	"net/http"

	"veriscan/internal/bootstrap/logging"
	"veriscan/internal/errs"
	"veriscan/internal/ports"
)

// handleEvents streams change events for the caller's owner over a
// websocket. The transport feed is system-wide; the owner filter is applied
// here, on the consumer side. Slow readers get events dropped rather than
// stalling the bus.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get(ownerHeader)
	if ownerID == "" {
		ownerID = r.URL.Query().Get("owner")
	}
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "owner is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote its response.
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := make(chan ports.ChangeEvent, 64)
	unsubscribe, err := s.bus.Subscribe(ctx, func(event ports.ChangeEvent) {
		if event.Record.OwnerID != ownerID {
			return
		}
		select {
		case events <- event:
		default:
		}
	})
	if err != nil {
		logging.Error(ctx, "event subscription failed", slog.Any("err", errs.Loggable(err)))
		return
	}
	defer unsubscribe()

	// The read loop only exists to notice the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logging.Info(ctx, "event stream opened", slog.String("owner_id", ownerID))

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			if err := conn.WriteJSON(eventJSON{
				Type:   string(event.Type),
				Record: toJSON(event.Record),
			}); err != nil {
				return
			}
		}
	}
}

// eventJSON is the websocket wire form; it shares the record shape with the
// REST endpoints.
type eventJSON struct {
	Type   string     `json:"type"`
	Record recordJSON `json:"record"`
}
