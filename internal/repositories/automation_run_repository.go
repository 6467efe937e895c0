package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"reicrm/internal/models"
)

type AutomationRunRepository interface {
	Start(ctx context.Context, job models.JobName, trigger models.RunTrigger) (*models.AutomationRun, error)
	Finish(ctx context.Context, id int64, status models.RunStatus, stats map[string]any, errMsg string) error
	RecordSkipped(ctx context.Context, job models.JobName, trigger models.RunTrigger, reason string) error
	Latest(ctx context.Context, job models.JobName) (*models.AutomationRun, error)
	List(ctx context.Context, job *models.JobName, limit int) ([]*models.AutomationRun, error)
}

type automationRunRepository struct {
	db *sql.DB
}

func NewAutomationRunRepository(db *sql.DB) AutomationRunRepository {
	return &automationRunRepository{db: db}
}

const runColumns = `id, job, trigger, status, stats, error, started_at, finished_at`

func scanRun(row rowScanner) (*models.AutomationRun, error) {
	run := &models.AutomationRun{}
	var stats []byte
	err := row.Scan(&run.ID, &run.Job, &run.Trigger, &run.Status, &stats, &run.Error, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return nil, mapError(err)
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &run.Stats); err != nil {
			return nil, fmt.Errorf("decode run stats: %w", err)
		}
	}
	return run, nil
}

func (r *automationRunRepository) Start(ctx context.Context, job models.JobName, trigger models.RunTrigger) (*models.AutomationRun, error) {
	run := &models.AutomationRun{Job: job, Trigger: trigger, Status: models.RunRunning}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO automation_runs (job, trigger, status) VALUES ($1, $2, $3) RETURNING id, started_at`,
		job, trigger, models.RunRunning,
	).Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return run, nil
}

func (r *automationRunRepository) Finish(ctx context.Context, id int64, status models.RunStatus, stats map[string]any, errMsg string) error {
	var payload any
	if stats != nil {
		b, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		payload = string(b)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE automation_runs SET status=$1, stats=$2, error=$3, finished_at=$4 WHERE id=$5`,
		status, payload, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return expectOne(res)
}

func (r *automationRunRepository) RecordSkipped(ctx context.Context, job models.JobName, trigger models.RunTrigger, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO automation_runs (job, trigger, status, error, finished_at) VALUES ($1, $2, $3, $4, NOW())`,
		job, trigger, models.RunSkipped, reason)
	if err != nil {
		return fmt.Errorf("record skipped run: %w", err)
	}
	return nil
}

func (r *automationRunRepository) Latest(ctx context.Context, job models.JobName) (*models.AutomationRun, error) {
	return scanRun(r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM automation_runs WHERE job = $1 ORDER BY started_at DESC, id DESC LIMIT 1`, job))
}

func (r *automationRunRepository) List(ctx context.Context, job *models.JobName, limit int) ([]*models.AutomationRun, error) {
	var w where
	if job != nil {
		w.add("job = $%d", *job)
	}
	q := `SELECT ` + runColumns + ` FROM automation_runs` + w.sql() +
		fmt.Sprintf(" ORDER BY started_at DESC, id DESC LIMIT $%d", w.next())
	rows, err := r.db.QueryContext(ctx, q, append(w.args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := []*models.AutomationRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
