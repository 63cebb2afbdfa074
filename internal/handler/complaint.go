package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/civicdesk/civicdesk/internal/auth"
	"github.com/civicdesk/civicdesk/internal/media"
	"github.com/civicdesk/civicdesk/internal/model"
	"github.com/civicdesk/civicdesk/internal/store"
	"github.com/civicdesk/civicdesk/internal/websocket"
)

type ComplaintHandler struct {
	complaints *store.ComplaintStore
	users      *store.UserStore
	uploader   *media.Uploader
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewComplaintHandler(cs *store.ComplaintStore, us *store.UserStore, uploader *media.Uploader, hub *websocket.Hub, logger *slog.Logger) *ComplaintHandler {
	return &ComplaintHandler{complaints: cs, users: us, uploader: uploader, hub: hub, logger: logger}
}

func (h *ComplaintHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

type complaintRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Location    string   `json:"location"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	// Image is an optional base64 data URI captured on the client.
	Image         string `json:"image"`
	AICategorized bool   `json:"ai_categorized"`
}

func (h *ComplaintHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req complaintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if strings.TrimSpace(req.Location) == "" {
		writeError(w, http.StatusBadRequest, "location is required")
		return
	}

	imageURI := ""
	if req.Image != "" {
		if h.uploader == nil || !h.uploader.Enabled() {
			writeError(w, http.StatusBadRequest, "image uploads are not enabled")
			return
		}
		uri, err := h.uploader.UploadDataURI(r.Context(), req.Image)
		if err != nil {
			h.logger.Error("upload complaint image", "error", err)
			writeError(w, http.StatusBadRequest, "could not store image")
			return
		}
		imageURI = uri
	}

	complaint, err := h.complaints.Create(store.CreateParams{
		UserID:        auth.UserID(r.Context()),
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Location:      req.Location,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		ImageURI:      imageURI,
		AICategorized: req.AICategorized,
	})
	if err != nil {
		h.logger.Error("create complaint", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create complaint")
		return
	}

	h.broadcast(websocket.ComplaintEvent("created", complaint.ID, complaint.Status))

	writeJSON(w, http.StatusCreated, complaint)
}

// ListMine returns the authenticated user's complaints, newest first.
func (h *ComplaintHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	complaints, err := h.complaints.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list complaints")
		return
	}
	if complaints == nil {
		complaints = []model.Complaint{}
	}
	writeJSON(w, http.StatusOK, complaints)
}

func (h *ComplaintHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	complaint, err := h.complaints.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get complaint")
		return
	}
	if complaint == nil {
		writeError(w, http.StatusNotFound, "complaint not found")
		return
	}
	if !h.canView(r, complaint) {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	writeJSON(w, http.StatusOK, complaint)
}

// History returns the complaint's status ledger in chronological order.
func (h *ComplaintHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	complaint, err := h.complaints.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get complaint")
		return
	}
	if complaint == nil {
		writeError(w, http.StatusNotFound, "complaint not found")
		return
	}
	if !h.canView(r, complaint) {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	history, err := h.complaints.History(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if history == nil {
		history = []model.StatusHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, history)
}

// canView allows the complaint's owner, admins, and the handling department.
func (h *ComplaintHandler) canView(r *http.Request, c *model.Complaint) bool {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		return false
	}
	if ac.IsAdmin || ac.UserID == c.UserID {
		return true
	}
	return ac.IsDepartmentUser && c.Department != nil && *c.Department == ac.Department
}

// Leaderboard returns the citizen point rankings. Admin and department
// accounts are excluded from the table itself.
func (h *ComplaintHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	rankings, err := h.users.Leaderboard(50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	if rankings == nil {
		rankings = []model.UserRanking{}
	}
	writeJSON(w, http.StatusOK, rankings)
}
