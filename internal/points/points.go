// Package points implements the status-progression and points-award engine:
// user points tied to a complaint's status tier, department points with a
// timeliness bonus recorded exactly once per (complaint, status), and the
// backfill reconciler that rebuilds award history from the status ledger.
package points

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/civicdesk/civicdesk/internal/auth"
	"github.com/civicdesk/civicdesk/internal/model"
	"github.com/civicdesk/civicdesk/internal/store"
)

const (
	StatusSubmitted  = "submitted"
	StatusAssigned   = "assigned"
	StatusInProgress = "in-progress"
	StatusResolved   = "resolved"
	StatusCompleted  = "completed"
	StatusRejected   = "rejected"
)

// userStatusPoints is the cumulative user-point tier per status. The delta
// applied on a transition is the increase over the complaint's previously
// recorded tier, never negative. Rejection carries no user value.
var userStatusPoints = map[string]int{
	StatusSubmitted:  0,
	StatusAssigned:   10,
	StatusInProgress: 25,
	StatusResolved:   50,
	StatusCompleted:  100,
}

// departmentBasePoints is the per-event department credit. Rejected actions
// still earn a small credit: the department spent time processing them.
var departmentBasePoints = map[string]int{
	StatusAssigned:   5,
	StatusInProgress: 10,
	StatusResolved:   20,
	StatusCompleted:  30,
	StatusRejected:   2,
}

// starterBonus applies to a complaint's first-ever department award,
// independent of elapsed time.
const starterBonus = 2

// pointsAssignFlat is the user award for the assign-department transition.
const pointsAssignFlat = 10

var statusMessages = map[string]string{
	StatusAssigned:   "Your complaint has been assigned and is being reviewed",
	StatusInProgress: "Work has started on your complaint",
	StatusResolved:   "Your complaint has been resolved",
	StatusCompleted:  "Your complaint has been completed",
}

func knownStatus(status string) bool {
	if status == StatusRejected {
		return true
	}
	_, ok := userStatusPoints[status]
	return ok
}

// TimelinessBonus computes the turnaround bonus for a department award given
// the previous award instant and the instant of the award being scored. Both
// instants are explicit so the live path and the backfill path share exactly
// one rule. A nil previous instant means the complaint's first award and
// earns the flat starter bonus.
func TimelinessBonus(prev *time.Time, at time.Time) int {
	if prev == nil {
		return starterBonus
	}

	elapsed := at.Sub(*prev)
	if elapsed < 0 {
		// Clock skew between recorded rows; treat as instantaneous.
		elapsed = 0
	}

	switch {
	case elapsed < time.Hour:
		return 10
	case elapsed < 6*time.Hour:
		return 6
	case elapsed < 24*time.Hour:
		return 4
	case elapsed < 48*time.Hour:
		return 2
	default:
		return 0
	}
}

// scoreAward returns base + bonus for a department award, or 0 when the
// status carries no department value.
func scoreAward(status string, prev *time.Time, at time.Time) int {
	base, ok := departmentBasePoints[status]
	if !ok {
		return 0
	}
	return base + TimelinessBonus(prev, at)
}

// Notification describes a user-facing message emitted after a transition.
type Notification struct {
	UserID      int64
	ComplaintID int64
	Title       string
	Message     string
	Type        string
}

// Notifier is the fire-and-forget notification sink. Implementations log
// delivery failures themselves; the engine never blocks on them.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Result reports the points credited by a single transition.
type Result struct {
	UserPointsAwarded       int `json:"points_awarded"`
	DepartmentPointsAwarded int `json:"department_points_awarded"`
}

// Engine executes status transitions and department point awards against
// the shared store.
type Engine struct {
	complaints *store.ComplaintStore
	awards     *store.AwardStore
	notifier   Notifier
	logger     *slog.Logger

	now func() time.Time
}

func NewEngine(cs *store.ComplaintStore, as *store.AwardStore, notifier Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		complaints: cs,
		awards:     as,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// authorize enforces department scope. Admins act on any complaint. A
// department actor may only touch complaints currently routed to their own
// department and may not move the department field away from it.
func authorize(actor auth.Context, complaint *model.Complaint, requestedDept string) error {
	if actor.IsAdmin {
		return nil
	}
	if !actor.IsDepartmentUser || actor.Department == "" {
		return ErrPermission
	}
	if complaint.Department == nil || *complaint.Department != actor.Department {
		return ErrPermission
	}
	if requestedDept != "" && requestedDept != actor.Department {
		return ErrPermission
	}
	return nil
}

// Transition moves a complaint to the target status, applies the user-point
// delta, appends the status ledger entry, and credits the handling
// department. Validation, permission, and not-found failures mutate nothing.
func (e *Engine) Transition(ctx context.Context, actor auth.Context, complaintID int64, status, department string) (Result, error) {
	if status == "" {
		return Result{}, validationErr("status", "status is required")
	}
	if !knownStatus(status) {
		return Result{}, validationErr("status", fmt.Sprintf("unknown status %q", status))
	}

	complaint, err := e.complaints.GetByID(complaintID)
	if err != nil {
		return Result{}, fmt.Errorf("load complaint: %w", err)
	}
	if complaint == nil {
		return Result{}, ErrNotFound
	}

	if err := authorize(actor, complaint, department); err != nil {
		return Result{}, err
	}

	now := e.now()

	// Rejection through the generic path behaves like Reject without a reason.
	newPoints := complaint.Points
	delta := 0
	if tier, ok := userStatusPoints[status]; ok {
		newPoints = tier
		if d := tier - complaint.Points; d > 0 {
			delta = d
		}
	}

	var dept *string
	if department != "" {
		dept = &department
	}

	if err := e.complaints.ApplyTransition(store.TransitionUpdate{
		ComplaintID:     complaintID,
		Status:          status,
		Points:          newPoints,
		Department:      dept,
		UserID:          complaint.UserID,
		UserPointsDelta: delta,
		Date:            now,
	}); err != nil {
		return Result{}, fmt.Errorf("apply transition: %w", err)
	}

	effectiveDept := department
	if effectiveDept == "" && complaint.Department != nil {
		effectiveDept = *complaint.Department
	}

	deptPoints, err := e.awardDepartmentPoints(complaintID, effectiveDept, status, now)
	if err != nil {
		return Result{}, fmt.Errorf("award department points: %w", err)
	}

	e.notifyTransition(ctx, complaint, status, delta)

	return Result{UserPointsAwarded: delta, DepartmentPointsAwarded: deptPoints}, nil
}

// AssignDepartment routes a complaint to a department as its first triage
// step. Admin-only. The user award is the flat assignment value; this is the
// complaint's first point award, so flat and delta coincide.
func (e *Engine) AssignDepartment(ctx context.Context, actor auth.Context, complaintID int64, department string) (Result, error) {
	if department == "" {
		return Result{}, validationErr("department", "department is required")
	}
	if !actor.IsAdmin {
		return Result{}, ErrPermission
	}

	complaint, err := e.complaints.GetByID(complaintID)
	if err != nil {
		return Result{}, fmt.Errorf("load complaint: %w", err)
	}
	if complaint == nil {
		return Result{}, ErrNotFound
	}

	now := e.now()

	if err := e.complaints.ApplyTransition(store.TransitionUpdate{
		ComplaintID:     complaintID,
		Status:          StatusAssigned,
		Points:          pointsAssignFlat,
		Department:      &department,
		UserID:          complaint.UserID,
		UserPointsDelta: pointsAssignFlat,
		Date:            now,
	}); err != nil {
		return Result{}, fmt.Errorf("apply assignment: %w", err)
	}

	deptPoints, err := e.awardDepartmentPoints(complaintID, department, StatusAssigned, now)
	if err != nil {
		return Result{}, fmt.Errorf("award department points: %w", err)
	}

	if e.notifier != nil {
		e.notifier.Notify(ctx, Notification{
			UserID:      complaint.UserID,
			ComplaintID: complaintID,
			Title:       "Complaint Assigned",
			Message:     fmt.Sprintf("Your complaint has been assigned to %s. You earned %d points!", department, pointsAssignFlat),
			Type:        "info",
		})
	}

	return Result{UserPointsAwarded: pointsAssignFlat, DepartmentPointsAwarded: deptPoints}, nil
}

// Reject terminates a complaint. No user points; the handling department
// still earns its processing credit, and the ledger still records the event.
func (e *Engine) Reject(ctx context.Context, actor auth.Context, complaintID int64, reason string) (Result, error) {
	complaint, err := e.complaints.GetByID(complaintID)
	if err != nil {
		return Result{}, fmt.Errorf("load complaint: %w", err)
	}
	if complaint == nil {
		return Result{}, ErrNotFound
	}

	if err := authorize(actor, complaint, ""); err != nil {
		return Result{}, err
	}

	now := e.now()

	update := store.TransitionUpdate{
		ComplaintID: complaintID,
		Status:      StatusRejected,
		Points:      complaint.Points,
		UserID:      complaint.UserID,
		Date:        now,
	}
	if reason != "" {
		update.RejectionReason = &reason
	}

	if err := e.complaints.ApplyTransition(update); err != nil {
		return Result{}, fmt.Errorf("apply rejection: %w", err)
	}

	effectiveDept := ""
	if complaint.Department != nil {
		effectiveDept = *complaint.Department
	}

	deptPoints, err := e.awardDepartmentPoints(complaintID, effectiveDept, StatusRejected, now)
	if err != nil {
		return Result{}, fmt.Errorf("award department points: %w", err)
	}

	if e.notifier != nil {
		e.notifier.Notify(ctx, Notification{
			UserID:      complaint.UserID,
			ComplaintID: complaintID,
			Title:       "Complaint Rejected",
			Message:     "Your complaint has been reviewed and rejected. No points awarded.",
			Type:        "warning",
		})
	}

	return Result{DepartmentPointsAwarded: deptPoints}, nil
}

// awardDepartmentPoints records the department credit for a (complaint,
// status) event exactly once. Returns the points awarded, or 0 when the
// event is ineligible or already awarded. Losing the insert race to a
// concurrent award is treated as already-awarded, never as an error.
func (e *Engine) awardDepartmentPoints(complaintID int64, department, status string, at time.Time) (int, error) {
	if department == "" {
		return 0, nil
	}
	if _, ok := departmentBasePoints[status]; !ok {
		return 0, nil
	}

	exists, err := e.awards.Exists(complaintID, status)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, nil
	}

	latest, err := e.awards.Latest(complaintID)
	if err != nil {
		return 0, err
	}
	var prev *time.Time
	if latest != nil {
		prev = &latest.Date
	}

	total := scoreAward(status, prev, at)

	if _, err := e.awards.Create(complaintID, department, status, total, at); err != nil {
		if errors.Is(err, store.ErrDuplicateAward) {
			return 0, nil
		}
		return 0, err
	}
	return total, nil
}

func (e *Engine) notifyTransition(ctx context.Context, complaint *model.Complaint, status string, delta int) {
	if e.notifier == nil {
		return
	}

	message, ok := statusMessages[status]
	if !ok {
		message = fmt.Sprintf("Your complaint status has been updated to %s", status)
	}
	notifType := "info"
	if delta > 0 {
		notifType = "success"
	}

	e.notifier.Notify(ctx, Notification{
		UserID:      complaint.UserID,
		ComplaintID: complaint.ID,
		Title:       fmt.Sprintf("Status Updated: %s", status),
		Message:     message,
		Type:        notifType,
	})
}

// LeaderboardView is the department leaderboard with the visibility policy
// already applied.
type LeaderboardView struct {
	Standings        []model.DepartmentStanding `json:"leaderboard"`
	TotalDepartments int                        `json:"total_departments"`
}

// DepartmentLeaderboard returns ranked department standings. Admins see the
// whole table; a department actor sees only their own entry (possibly none)
// alongside the total department count.
func (e *Engine) DepartmentLeaderboard(actor auth.Context) (LeaderboardView, error) {
	if !actor.IsAdmin && !actor.IsDepartmentUser {
		return LeaderboardView{}, ErrPermission
	}

	standings, err := e.awards.Leaderboard()
	if err != nil {
		return LeaderboardView{}, fmt.Errorf("load leaderboard: %w", err)
	}
	total, err := e.awards.DepartmentCount()
	if err != nil {
		return LeaderboardView{}, fmt.Errorf("count departments: %w", err)
	}

	view := LeaderboardView{TotalDepartments: total}
	if actor.IsAdmin {
		view.Standings = standings
		return view, nil
	}

	for _, st := range standings {
		if st.Department == actor.Department {
			view.Standings = []model.DepartmentStanding{st}
			break
		}
	}
	return view, nil
}
