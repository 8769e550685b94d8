package notify

import (
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const heartbeatInterval = 30 * time.Second

// ServeWS upgrades r to a full-duplex websocket connection and streams
// userID's live notifications to it until the client disconnects or the
// request context is cancelled. The connection is push-only from the
// server's side; CloseRead drains and acks any client frames (including
// pings) in the background, which is what a websocket.Conn needs even
// when the application protocol never expects the client to send data.
func (s *Service) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())

	ch, unsubscribe := s.Subscribe(userID)
	defer unsubscribe()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-ch:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, n); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return err
			}
		}
	}
}
