package events

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// ServeWS upgrades the request to a websocket and streams every event until
// the client disconnects. Client messages are ignored.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	ctx := conn.CloseRead(r.Context())

	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	h.log.Info().Str("remote", r.RemoteAddr).Msg("Websocket client connected")

	err = h.stream(ctx, conn, ch)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		conn.Close(websocket.StatusNormalClosure, "")
	case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
	default:
		h.log.Warn().Err(err).Msg("Websocket stream failed")
	}

	h.log.Info().Str("remote", r.RemoteAddr).Msg("Websocket client disconnected")
}

func (h *Hub) stream(ctx context.Context, conn *websocket.Conn, ch <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, evt)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
