package store

import (
	"errors"
	"testing"

	"github.com/civicdesk/civicdesk/internal/database"
)

func setupPrizeTestDB(t *testing.T) (*PrizeStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPrizeStore(db), NewUserStore(db)
}

func TestPrizeCreateAndList(t *testing.T) {
	ps, _ := setupPrizeTestDB(t)

	p, err := ps.Create("Transit Pass", "One month", "", 200, "transport", true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.PointCost != 200 || !p.Available {
		t.Errorf("prize = %+v", p)
	}

	ps.Create("Tote Bag", "Canvas", "", 50, "merch", true)
	ps.Create("Retired Mug", "", "", 30, "merch", false)

	prizes, err := ps.ListAvailable()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(prizes) != 2 {
		t.Fatalf("available prizes = %d, want 2", len(prizes))
	}
	// Cheapest first.
	if prizes[0].Title != "Tote Bag" {
		t.Errorf("first = %q, want Tote Bag", prizes[0].Title)
	}
}

func TestRedeemAndBalance(t *testing.T) {
	ps, us := setupPrizeTestDB(t)

	u, _ := us.Create("reporter", "r", "r@example.com", "hash")
	us.AddPoints(u.ID, 100)

	prize, _ := ps.Create("Tote Bag", "Canvas", "", 60, "merch", true)

	if _, err := ps.Redeem(prize.ID, u.ID, prize.PointCost); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	balance, err := ps.Balance(u.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.TotalEarned != 100 {
		t.Errorf("earned = %d, want 100", balance.TotalEarned)
	}
	if balance.TotalSpent != 60 {
		t.Errorf("spent = %d, want 60", balance.TotalSpent)
	}
	if balance.Balance != 40 {
		t.Errorf("balance = %d, want 40", balance.Balance)
	}

	// Redeeming never touches the cumulative earned total.
	user, _ := us.GetByID(u.ID)
	if user.Points != 100 {
		t.Errorf("user points = %d after redemption, want 100", user.Points)
	}
}

func TestRedeemInsufficientBalance(t *testing.T) {
	ps, us := setupPrizeTestDB(t)

	u, _ := us.Create("reporter", "r", "r@example.com", "hash")
	us.AddPoints(u.ID, 100)

	prize, _ := ps.Create("Bike Voucher", "", "", 60, "transport", true)

	if _, err := ps.Redeem(prize.ID, u.ID, prize.PointCost); err != nil {
		t.Fatalf("first redeem: %v", err)
	}

	// 40 points left; the store itself must refuse a second 60-point spend
	// so racing callers cannot overdraw between check and insert.
	_, err := ps.Redeem(prize.ID, u.ID, prize.PointCost)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("second redeem err = %v, want ErrInsufficientBalance", err)
	}

	balance, err := ps.Balance(u.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.TotalSpent != 60 {
		t.Errorf("spent = %d after refused redemption, want 60", balance.TotalSpent)
	}
}

func TestBalanceMissingUser(t *testing.T) {
	ps, _ := setupPrizeTestDB(t)

	balance, err := ps.Balance(12345)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != nil {
		t.Errorf("balance = %+v, want nil", balance)
	}
}
