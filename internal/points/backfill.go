package points

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/civicdesk/civicdesk/internal/model"
	"github.com/civicdesk/civicdesk/internal/store"
)

// BackfillReport summarizes one reconciler run.
type BackfillReport struct {
	ComplaintsProcessed int                        `json:"complaints_processed"`
	RowsInserted        int                        `json:"rows_inserted"`
	Leaderboard         []model.DepartmentStanding `json:"leaderboard"`
}

// Reconciler replays each complaint's status ledger and inserts any
// department awards the live path missed. Awards already present are left
// untouched, so running it repeatedly inserts nothing new. Inserted rows
// carry the historical transition instant, not the run time, so timeliness
// bonuses come out the same as if the live path had recorded them.
type Reconciler struct {
	complaints *store.ComplaintStore
	awards     *store.AwardStore
	logger     *slog.Logger
}

func NewReconciler(cs *store.ComplaintStore, as *store.AwardStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{complaints: cs, awards: as, logger: logger}
}

// Run reconciles every complaint that has a department. A failure on one
// complaint is logged and skipped; the rest of the batch still completes.
func (r *Reconciler) Run(ctx context.Context) (BackfillReport, error) {
	complaints, err := r.complaints.ListWithDepartment()
	if err != nil {
		return BackfillReport{}, fmt.Errorf("list complaints: %w", err)
	}

	var report BackfillReport
	for _, c := range complaints {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		inserted, err := r.reconcileComplaint(c)
		if err != nil {
			r.logger.Error("backfill failed for complaint", "complaint_id", c.ID, "error", err)
			continue
		}
		report.ComplaintsProcessed++
		report.RowsInserted += inserted
	}

	standings, err := r.awards.Leaderboard()
	if err != nil {
		return report, fmt.Errorf("load leaderboard: %w", err)
	}
	report.Leaderboard = standings

	r.logger.Info("backfill complete",
		"complaints_processed", report.ComplaintsProcessed,
		"rows_inserted", report.RowsInserted)

	return report, nil
}

// reconcileComplaint walks one complaint's ledger in date order, scoring
// each eligible entry against the instant of the previous award exactly as
// the live path would have.
func (r *Reconciler) reconcileComplaint(c model.Complaint) (int, error) {
	history, err := r.complaints.History(c.ID)
	if err != nil {
		return 0, fmt.Errorf("load history: %w", err)
	}

	existing, err := r.awards.ListByComplaint(c.ID)
	if err != nil {
		return 0, fmt.Errorf("load awards: %w", err)
	}

	awarded := make(map[string]time.Time, len(existing))
	for i := range existing {
		awarded[existing[i].Status] = existing[i].Date
	}

	// prev tracks the instant of the most recent award as the ledger is
	// replayed in date order, so a gap between two existing awards is
	// scored against the earlier one.
	var prev *time.Time
	inserted := 0
	for _, entry := range history {
		if _, ok := departmentBasePoints[entry.Status]; !ok {
			continue
		}
		if date, ok := awarded[entry.Status]; ok {
			prev = &date
			continue
		}

		dept := ""
		if entry.Department != nil {
			dept = *entry.Department
		} else if c.Department != nil {
			dept = *c.Department
		}
		if dept == "" {
			continue
		}

		total := scoreAward(entry.Status, prev, entry.Date)

		if _, err := r.awards.Create(c.ID, dept, entry.Status, total, entry.Date); err != nil {
			if errors.Is(err, store.ErrDuplicateAward) {
				awarded[entry.Status] = entry.Date
				continue
			}
			return inserted, fmt.Errorf("insert award for status %s: %w", entry.Status, err)
		}

		awarded[entry.Status] = entry.Date
		date := entry.Date
		prev = &date
		inserted++
	}

	return inserted, nil
}
