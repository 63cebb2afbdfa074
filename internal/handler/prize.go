package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/civicdesk/civicdesk/internal/auth"
	"github.com/civicdesk/civicdesk/internal/model"
	"github.com/civicdesk/civicdesk/internal/store"
)

type PrizeHandler struct {
	prizes *store.PrizeStore
	logger *slog.Logger
}

func NewPrizeHandler(ps *store.PrizeStore, logger *slog.Logger) *PrizeHandler {
	return &PrizeHandler{prizes: ps, logger: logger}
}

func (h *PrizeHandler) List(w http.ResponseWriter, r *http.Request) {
	prizes, err := h.prizes.ListAvailable()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list prizes")
		return
	}
	if prizes == nil {
		prizes = []model.Prize{}
	}
	writeJSON(w, http.StatusOK, prizes)
}

// Redeem spends points on a prize. The cumulative points total is never
// reduced; spending is tracked in its own ledger and the balance is the
// difference.
func (h *PrizeHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	prize, err := h.prizes.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get prize")
		return
	}
	if prize == nil || !prize.Available {
		writeError(w, http.StatusNotFound, "prize not found")
		return
	}

	userID := auth.UserID(r.Context())
	redemption, err := h.prizes.Redeem(prize.ID, userID, prize.PointCost)
	if errors.Is(err, store.ErrInsufficientBalance) {
		writeError(w, http.StatusBadRequest, "not enough points")
		return
	}
	if err != nil {
		h.logger.Error("redeem prize", "prize_id", prize.ID, "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to redeem prize")
		return
	}

	writeJSON(w, http.StatusCreated, redemption)
}

func (h *PrizeHandler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.prizes.Balance(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load balance")
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

type prizeRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURI    string `json:"image_uri"`
	PointCost   int    `json:"point_cost"`
	Category    string `json:"category"`
	Available   bool   `json:"available"`
}

// CreatePrize adds a prize to the catalog. Admin-only (enforced by routing).
func (h *PrizeHandler) CreatePrize(w http.ResponseWriter, r *http.Request) {
	var req prizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.PointCost <= 0 {
		writeError(w, http.StatusBadRequest, "point_cost must be positive")
		return
	}

	prize, err := h.prizes.Create(req.Title, req.Description, req.ImageURI, req.PointCost, req.Category, req.Available)
	if err != nil {
		h.logger.Error("create prize", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create prize")
		return
	}
	writeJSON(w, http.StatusCreated, prize)
}
