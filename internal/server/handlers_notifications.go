package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListNotifications implements GET /notifications?limit=&offset=.
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	notifications, err := s.container.Notify.List(r.Context(), uid, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	unread, err := s.container.Notify.CountUnread(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"unread_count":  unread,
	})
}

// handleNotificationStream implements GET /notifications/stream, upgrading
// the connection to a websocket that pushes live notifications (C9).
func (s *Server) handleNotificationStream(w http.ResponseWriter, r *http.Request) {
	if err := s.container.Notify.ServeWS(w, r, userID(r)); err != nil {
		s.log.Warn().Err(err).Msg("notification stream closed with error")
	}
}

// handleMarkNotificationRead implements POST /notifications/{id}/read.
func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.container.Notify.MarkRead(r.Context(), userID(r), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "read"})
}

// handleMarkAllNotificationsRead implements POST /notifications/read-all.
func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.container.Notify.MarkAllRead(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"marked_read": n})
}
