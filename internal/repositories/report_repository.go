package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reicrm/internal/authz"
	"reicrm/internal/models"
)

// LeadTotals are the scalar lead aggregates shown on the dashboard.
type LeadTotals struct {
	Total         int
	Won           int
	Lost          int
	PipelineValue float64
	NewSince      int
}

type ReportRepository interface {
	LeadTotals(ctx context.Context, visibleTo *int64, since time.Time) (LeadTotals, error)
	UpcomingAuctions(ctx context.Context, from, to time.Time) (int, error)
	AgentPerformance(ctx context.Context) ([]models.AgentPerformance, error)
}

type reportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) LeadTotals(ctx context.Context, visibleTo *int64, since time.Time) (LeadTotals, error) {
	var w where
	if visibleTo != nil {
		w.add("(created_by = $%d OR assigned_to = $%d)", *visibleTo)
	}
	n := w.next()
	q := fmt.Sprintf(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'closed_won'),
		       COUNT(*) FILTER (WHERE status = 'closed_lost'),
		       COALESCE(SUM(estimated_value) FILTER (WHERE status NOT IN ('closed_won','closed_lost')), 0),
		       COUNT(*) FILTER (WHERE created_at >= $%d)
		FROM leads`, n) + w.sql()

	var t LeadTotals
	err := r.db.QueryRowContext(ctx, q, append(w.args, since)...).
		Scan(&t.Total, &t.Won, &t.Lost, &t.PipelineValue, &t.NewSince)
	if err != nil {
		return LeadTotals{}, fmt.Errorf("lead totals: %w", err)
	}
	return t, nil
}

func (r *reportRepository) UpcomingAuctions(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM properties WHERE auction_date >= $1 AND auction_date < $2`, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("upcoming auctions: %w", err)
	}
	return n, nil
}

// AgentPerformance aggregates leads by assignee for every agent and manager.
func (r *reportRepository) AgentPerformance(ctx context.Context) ([]models.AgentPerformance, error) {
	const q = `
		SELECT u.id, TRIM(u.first_name || ' ' || u.last_name), u.email,
		       COUNT(l.id),
		       COUNT(l.id) FILTER (WHERE l.status NOT IN ('closed_won','closed_lost')),
		       COUNT(l.id) FILTER (WHERE l.status = 'closed_won'),
		       COUNT(l.id) FILTER (WHERE l.status = 'closed_lost')
		FROM users u
		LEFT JOIN leads l ON l.assigned_to = u.id
		WHERE u.role IN ($1, $2)
		GROUP BY u.id
		ORDER BY COUNT(l.id) DESC, u.id
	`
	rows, err := r.db.QueryContext(ctx, q, authz.RoleAgent, authz.RoleManager)
	if err != nil {
		return nil, fmt.Errorf("agent performance: %w", err)
	}
	defer rows.Close()

	out := []models.AgentPerformance{}
	for rows.Next() {
		var a models.AgentPerformance
		if err := rows.Scan(&a.UserID, &a.Name, &a.Email, &a.TotalLeads, &a.OpenLeads, &a.Won, &a.Lost); err != nil {
			return nil, err
		}
		a.ConversionRate = models.ConversionRate(a.Won, a.Lost)
		out = append(out, a)
	}
	return out, rows.Err()
}
