package handler

import (
	"net/http"

	"github.com/civicdesk/civicdesk/internal/auth"
	"github.com/civicdesk/civicdesk/internal/model"
	"github.com/civicdesk/civicdesk/internal/store"
)

type NotificationHandler struct {
	notifications *store.NotificationStore
}

func NewNotificationHandler(ns *store.NotificationStore) *NotificationHandler {
	return &NotificationHandler{notifications: ns}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.notifications.ListByUser(auth.UserID(r.Context()), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if rows == nil {
		rows = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	ok, err := h.notifications.MarkRead(id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update notification")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}
