package store

import (
	"testing"
	"time"

	"github.com/civicdesk/civicdesk/internal/database"
	"github.com/civicdesk/civicdesk/internal/model"
)

func setupComplaintTestDB(t *testing.T) (*ComplaintStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewComplaintStore(db), NewUserStore(db)
}

func createTestComplaint(t *testing.T, cs *ComplaintStore, userID int64) *model.Complaint {
	t.Helper()
	c, err := cs.Create(CreateParams{
		UserID:      userID,
		Title:       "Pothole",
		Description: "Deep pothole",
		Category:    "roads",
		Location:    "Main St",
	})
	if err != nil {
		t.Fatalf("create complaint: %v", err)
	}
	return c
}

func TestComplaintCreate(t *testing.T) {
	cs, us := setupComplaintTestDB(t)
	u, _ := us.Create("reporter", "r", "r@example.com", "hash")

	lat, lon := 47.6, -122.3
	c, err := cs.Create(CreateParams{
		UserID:    u.ID,
		Title:     "Pothole",
		Location:  "Main St",
		Latitude:  &lat,
		Longitude: &lon,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != "submitted" {
		t.Errorf("status = %q, want submitted", c.Status)
	}
	if c.Points != 0 {
		t.Errorf("points = %d, want 0", c.Points)
	}
	if c.Latitude == nil || *c.Latitude != lat {
		t.Errorf("latitude = %v, want %v", c.Latitude, lat)
	}

	// The submitter's counter moves in the same transaction.
	user, _ := us.GetByID(u.ID)
	if user.SubmissionsCount != 1 {
		t.Errorf("submissions = %d, want 1", user.SubmissionsCount)
	}

	// Creation seeds the ledger with the submitted entry.
	history, err := cs.History(c.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Status != "submitted" {
		t.Fatalf("history = %+v, want one submitted entry", history)
	}
}

func TestApplyTransition(t *testing.T) {
	cs, us := setupComplaintTestDB(t)
	u, _ := us.Create("reporter", "r", "r@example.com", "hash")
	c := createTestComplaint(t, cs, u.ID)

	dept := "Sanitation"
	at := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	err := cs.ApplyTransition(TransitionUpdate{
		ComplaintID:     c.ID,
		Status:          "assigned",
		Points:          10,
		Department:      &dept,
		UserID:          u.ID,
		UserPointsDelta: 10,
		Date:            at,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, _ := cs.GetByID(c.ID)
	if got.Status != "assigned" || got.Points != 10 {
		t.Errorf("complaint = %q/%d, want assigned/10", got.Status, got.Points)
	}
	if got.Department == nil || *got.Department != dept {
		t.Errorf("department = %v", got.Department)
	}

	user, _ := us.GetByID(u.ID)
	if user.Points != 10 {
		t.Errorf("user points = %d, want 10", user.Points)
	}

	history, _ := cs.History(c.ID)
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history))
	}
	last := history[1]
	if last.Status != "assigned" {
		t.Errorf("last status = %q", last.Status)
	}
	if last.Department == nil || *last.Department != dept {
		t.Errorf("history department = %v, want snapshot %q", last.Department, dept)
	}
	if !last.Date.Equal(at) {
		t.Errorf("history date = %v, want %v", last.Date, at)
	}
}

func TestApplyTransitionRetainsDepartment(t *testing.T) {
	cs, us := setupComplaintTestDB(t)
	u, _ := us.Create("reporter", "r", "r@example.com", "hash")
	c := createTestComplaint(t, cs, u.ID)

	dept := "Parks"
	if err := cs.ApplyTransition(TransitionUpdate{
		ComplaintID: c.ID, Status: "assigned", Points: 10,
		Department: &dept, UserID: u.ID, UserPointsDelta: 10, Date: time.Now(),
	}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	// A later transition with a nil department keeps Parks and snapshots it.
	if err := cs.ApplyTransition(TransitionUpdate{
		ComplaintID: c.ID, Status: "in-progress", Points: 25,
		UserID: u.ID, UserPointsDelta: 15, Date: time.Now(),
	}); err != nil {
		t.Fatalf("progress: %v", err)
	}

	got, _ := cs.GetByID(c.ID)
	if got.Department == nil || *got.Department != "Parks" {
		t.Errorf("department = %v, want retained Parks", got.Department)
	}

	history, _ := cs.History(c.ID)
	last := history[len(history)-1]
	if last.Department == nil || *last.Department != "Parks" {
		t.Errorf("history department = %v, want Parks", last.Department)
	}
}

func TestApplyTransitionRejection(t *testing.T) {
	cs, us := setupComplaintTestDB(t)
	u, _ := us.Create("reporter", "r", "r@example.com", "hash")
	c := createTestComplaint(t, cs, u.ID)

	reason := "duplicate"
	if err := cs.ApplyTransition(TransitionUpdate{
		ComplaintID: c.ID, Status: "rejected", Points: 0,
		RejectionReason: &reason, UserID: u.ID, Date: time.Now(),
	}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	got, _ := cs.GetByID(c.ID)
	if got.Status != "rejected" {
		t.Errorf("status = %q", got.Status)
	}
	if got.RejectionReason == nil || *got.RejectionReason != "duplicate" {
		t.Errorf("rejection_reason = %v", got.RejectionReason)
	}

	user, _ := us.GetByID(u.ID)
	if user.Points != 0 {
		t.Errorf("user points = %d, want 0", user.Points)
	}
}

func TestListFiltered(t *testing.T) {
	cs, us := setupComplaintTestDB(t)
	u, _ := us.Create("reporter", "r", "r@example.com", "hash")

	c1 := createTestComplaint(t, cs, u.ID)
	c2 := createTestComplaint(t, cs, u.ID)
	createTestComplaint(t, cs, u.ID)

	sanitation := "Sanitation"
	cs.ApplyTransition(TransitionUpdate{ComplaintID: c1.ID, Status: "assigned", Points: 10, Department: &sanitation, UserID: u.ID, Date: time.Now()})
	parks := "Parks"
	cs.ApplyTransition(TransitionUpdate{ComplaintID: c2.ID, Status: "assigned", Points: 10, Department: &parks, UserID: u.ID, Date: time.Now()})

	byStatus, err := cs.ListFiltered(Filter{Status: "assigned"})
	if err != nil {
		t.Fatalf("filter by status: %v", err)
	}
	if len(byStatus) != 2 {
		t.Errorf("assigned complaints = %d, want 2", len(byStatus))
	}

	byDept, err := cs.ListFiltered(Filter{Department: "Parks"})
	if err != nil {
		t.Fatalf("filter by department: %v", err)
	}
	if len(byDept) != 1 || byDept[0].ID != c2.ID {
		t.Errorf("Parks complaints = %+v", byDept)
	}

	paged, err := cs.ListFiltered(Filter{Limit: 2})
	if err != nil {
		t.Fatalf("paged: %v", err)
	}
	if len(paged) != 2 {
		t.Errorf("paged complaints = %d, want 2", len(paged))
	}
}

func TestListWithDepartment(t *testing.T) {
	cs, us := setupComplaintTestDB(t)
	u, _ := us.Create("reporter", "r", "r@example.com", "hash")

	c1 := createTestComplaint(t, cs, u.ID)
	createTestComplaint(t, cs, u.ID) // never routed

	dept := "Sanitation"
	cs.ApplyTransition(TransitionUpdate{ComplaintID: c1.ID, Status: "assigned", Points: 10, Department: &dept, UserID: u.ID, Date: time.Now()})

	routed, err := cs.ListWithDepartment()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(routed) != 1 || routed[0].ID != c1.ID {
		t.Errorf("routed = %+v, want only the assigned complaint", routed)
	}
}

func TestDashboardCounts(t *testing.T) {
	cs, us := setupComplaintTestDB(t)
	u, _ := us.Create("reporter", "r", "r@example.com", "hash")

	c1 := createTestComplaint(t, cs, u.ID)
	createTestComplaint(t, cs, u.ID)

	dept := "Parks"
	cs.ApplyTransition(TransitionUpdate{ComplaintID: c1.ID, Status: "resolved", Points: 50, Department: &dept, UserID: u.ID, Date: time.Now()})

	total, _ := cs.Count()
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}

	open, _ := cs.CountByStatuses("submitted", "assigned", "in-progress")
	if open != 1 {
		t.Errorf("open = %d, want 1", open)
	}

	resolved, _ := cs.CountByStatus("resolved")
	if resolved != 1 {
		t.Errorf("resolved = %d, want 1", resolved)
	}

	byStatus, _ := cs.CountsByStatus()
	if len(byStatus) != 2 {
		t.Errorf("status groups = %d, want 2", len(byStatus))
	}

	byDept, _ := cs.CountsByDepartment()
	if len(byDept) != 1 || byDept[0].Key != "Parks" || byDept[0].Count != 1 {
		t.Errorf("department groups = %+v", byDept)
	}
}
