package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/civicdesk/civicdesk/internal/auth"
	"github.com/civicdesk/civicdesk/internal/model"
	"github.com/civicdesk/civicdesk/internal/points"
	"github.com/civicdesk/civicdesk/internal/store"
	"github.com/civicdesk/civicdesk/internal/websocket"
)

// AdminHandler serves complaint management: triage, status transitions,
// the department leaderboard, dashboard stats, and the award backfill.
// Status transitions are also reachable by department users; the engine
// enforces who may touch which complaint.
type AdminHandler struct {
	complaints *store.ComplaintStore
	users      *store.UserStore
	engine     *points.Engine
	reconciler *points.Reconciler
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewAdminHandler(cs *store.ComplaintStore, us *store.UserStore, engine *points.Engine, reconciler *points.Reconciler, hub *websocket.Hub, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		complaints: cs,
		users:      us,
		engine:     engine,
		reconciler: reconciler,
		hub:        hub,
		logger:     logger,
	}
}

func (h *AdminHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

// List returns complaints filtered by status and department, paginated.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if !ac.IsAdmin && !ac.IsDepartmentUser {
		writeError(w, http.StatusForbidden, "not allowed")
		return
	}

	q := r.URL.Query()

	filter := store.Filter{
		Status:     q.Get("status"),
		Department: q.Get("department"),
		Limit:      50,
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 && v <= 200 {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		filter.Offset = v
	}

	// Department users see only their own queue.
	if !ac.IsAdmin {
		filter.Department = ac.Department
	}

	complaints, err := h.complaints.ListFiltered(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list complaints")
		return
	}
	if complaints == nil {
		complaints = []model.Complaint{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"complaints": complaints,
		"limit":      filter.Limit,
		"offset":     filter.Offset,
	})
}

type departmentUserRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Department  string `json:"department"`
}

// CreateDepartmentUser provisions a staff account scoped to one department.
// Department accounts never appear on the citizen leaderboard.
func (h *AdminHandler) CreateDepartmentUser(w http.ResponseWriter, r *http.Request) {
	var req departmentUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Department = strings.TrimSpace(req.Department)

	if req.Username == "" || req.Email == "" || req.Department == "" {
		writeError(w, http.StatusBadRequest, "username, email, and department are required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	if existing, err := h.users.GetByEmail(req.Email); err == nil && existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	if existing, err := h.users.GetByUsername(req.Username); err == nil && existing != nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create department user")
		return
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = req.Department
	}

	user, err := h.users.CreateDepartmentUser(req.Username, displayName, req.Email, hash, req.Department)
	if err != nil {
		h.logger.Error("create department user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create department user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type assignRequest struct {
	Department string `json:"department"`
}

func (h *AdminHandler) AssignDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	result, err := h.engine.AssignDepartment(r.Context(), ac, id, strings.TrimSpace(req.Department))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.broadcast(websocket.ComplaintEvent("updated", id, points.StatusAssigned))

	writeJSON(w, http.StatusOK, result)
}

type statusRequest struct {
	Status     string `json:"status"`
	Department string `json:"department"`
}

func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	result, err := h.engine.Transition(r.Context(), ac, id, strings.TrimSpace(req.Status), strings.TrimSpace(req.Department))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.broadcast(websocket.ComplaintEvent("updated", id, req.Status))

	writeJSON(w, http.StatusOK, result)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	result, err := h.engine.Reject(r.Context(), ac, id, strings.TrimSpace(req.Reason))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.broadcast(websocket.ComplaintEvent("updated", id, points.StatusRejected))

	writeJSON(w, http.StatusOK, result)
}

// DepartmentLeaderboard serves both admins (full table) and department
// users (their own standing).
func (h *AdminHandler) DepartmentLeaderboard(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	view, err := h.engine.DepartmentLeaderboard(ac)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if view.Standings == nil {
		view.Standings = []model.DepartmentStanding{}
	}
	writeJSON(w, http.StatusOK, view)
}

// Dashboard returns aggregate counts for the admin overview.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	total, err := h.complaints.Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	open, err := h.complaints.CountByStatuses(points.StatusSubmitted, points.StatusAssigned, points.StatusInProgress)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	byStatus, err := h.complaints.CountsByStatus()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	byDepartment, err := h.complaints.CountsByDepartment()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	userCount, err := h.users.Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	recent, err := h.complaints.Recent(10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	if recent == nil {
		recent = []model.Complaint{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_complaints": total,
		"open_complaints":  open,
		"by_status":        byStatus,
		"by_department":    byDepartment,
		"total_users":      userCount,
		"recent":           recent,
	})
}

// Backfill replays status history into the department award ledger. Safe to
// run repeatedly.
func (h *AdminHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.Run(r.Context())
	if err != nil {
		h.logger.Error("backfill", "error", err)
		writeError(w, http.StatusInternalServerError, "backfill failed")
		return
	}
	if report.Leaderboard == nil {
		report.Leaderboard = []model.DepartmentStanding{}
	}
	writeJSON(w, http.StatusOK, report)
}
