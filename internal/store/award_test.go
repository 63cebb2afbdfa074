package store

import (
	"errors"
	"testing"
	"time"

	"github.com/civicdesk/civicdesk/internal/database"
)

func setupAwardTestDB(t *testing.T) (*AwardStore, *ComplaintStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAwardStore(db), NewComplaintStore(db), NewUserStore(db)
}

func seedComplaint(t *testing.T, cs *ComplaintStore, us *UserStore) int64 {
	t.Helper()
	u, err := us.Create("reporter", "r", "r@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	c := createTestComplaint(t, cs, u.ID)
	return c.ID
}

func TestAwardCreateAndDuplicate(t *testing.T) {
	as, cs, us := setupAwardTestDB(t)
	complaintID := seedComplaint(t, cs, us)

	at := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	a, err := as.Create(complaintID, "Sanitation", "assigned", 7, at)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.PointsAwarded != 7 {
		t.Errorf("points = %d, want 7", a.PointsAwarded)
	}
	if !a.Date.Equal(at) {
		t.Errorf("date = %v, want %v", a.Date, at)
	}

	// Same (complaint, status) pair is rejected by the unique constraint.
	_, err = as.Create(complaintID, "Sanitation", "assigned", 99, at.Add(time.Hour))
	if !errors.Is(err, ErrDuplicateAward) {
		t.Fatalf("err = %v, want ErrDuplicateAward", err)
	}

	// A different status for the same complaint is fine.
	if _, err := as.Create(complaintID, "Sanitation", "resolved", 26, at.Add(2*time.Hour)); err != nil {
		t.Fatalf("create second status: %v", err)
	}

	awards, _ := as.ListByComplaint(complaintID)
	if len(awards) != 2 {
		t.Errorf("awards = %d, want 2", len(awards))
	}
}

func TestAwardExistsAndLatest(t *testing.T) {
	as, cs, us := setupAwardTestDB(t)
	complaintID := seedComplaint(t, cs, us)

	exists, err := as.Exists(complaintID, "assigned")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("exists = true before any award")
	}

	latest, err := as.Latest(complaintID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest != nil {
		t.Errorf("latest = %+v, want nil", latest)
	}

	t0 := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	as.Create(complaintID, "Sanitation", "assigned", 7, t0)
	as.Create(complaintID, "Sanitation", "in-progress", 20, t0.Add(time.Hour))

	exists, _ = as.Exists(complaintID, "assigned")
	if !exists {
		t.Error("exists = false after award")
	}

	latest, _ = as.Latest(complaintID)
	if latest == nil || latest.Status != "in-progress" {
		t.Errorf("latest = %+v, want in-progress", latest)
	}
}

func TestAwardLeaderboard(t *testing.T) {
	as, cs, us := setupAwardTestDB(t)

	u, _ := us.Create("reporter", "r", "r@example.com", "hash")
	c1 := createTestComplaint(t, cs, u.ID)
	c2 := createTestComplaint(t, cs, u.ID)
	c3 := createTestComplaint(t, cs, u.ID)

	t0 := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	as.Create(c1.ID, "Sanitation", "assigned", 7, t0)
	as.Create(c1.ID, "Sanitation", "resolved", 30, t0.Add(time.Hour))
	as.Create(c2.ID, "Parks", "assigned", 7, t0)
	as.Create(c3.ID, "Parks", "assigned", 7, t0)

	standings, err := as.Leaderboard()
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(standings) != 2 {
		t.Fatalf("standings = %d, want 2", len(standings))
	}

	if standings[0].Department != "Sanitation" || standings[0].TotalPoints != 37 || standings[0].ActionsCount != 2 {
		t.Errorf("first = %+v, want Sanitation 37/2", standings[0])
	}
	if standings[1].Department != "Parks" || standings[1].TotalPoints != 14 || standings[1].ActionsCount != 2 {
		t.Errorf("second = %+v, want Parks 14/2", standings[1])
	}
	if standings[0].Rank != 1 || standings[1].Rank != 2 {
		t.Errorf("ranks = %d/%d, want 1/2", standings[0].Rank, standings[1].Rank)
	}

	count, _ := as.DepartmentCount()
	if count != 2 {
		t.Errorf("department count = %d, want 2", count)
	}
}
