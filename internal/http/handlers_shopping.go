package http

import (
	"fmt"
	"net/http"
	"strconv"
)

// handleDownloadShoppingCart serves the aggregated shopping list of the
// caller as a text attachment.
func (s *Server) handleDownloadShoppingCart(w http.ResponseWriter, r *http.Request) {
	userID := principal(r).User.ID
	file, err := s.shoppingLists.Build(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", file.ContentType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Content); err != nil {
		s.logger.WarnContext(r.Context(), "Failed to write shopping list", "user_id", userID, "error", err)
	}
}

// handleExportShoppingCart queues an export of the shopping list.
func (s *Server) handleExportShoppingCart(w http.ResponseWriter, r *http.Request) {
	if err := s.shoppingLists.RequestExport(r.Context(), principal(r).User.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeDetail(w, http.StatusAccepted, "Shopping list export queued.")
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	items, err := s.notifications.List(r.Context(), principal(r).User.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notificationsJSON(items))
}

func (s *Server) handleMarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := s.notifications.MarkRead(r.Context(), principal(r).User.ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
