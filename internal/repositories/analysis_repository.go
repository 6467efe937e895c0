package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"reicrm/internal/models"
)

type AnalysisRepository interface {
	Create(ctx context.Context, a *models.Analysis) error
	GetByID(ctx context.Context, id int64) (*models.Analysis, error)
	Update(ctx context.Context, a *models.Analysis) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter models.AnalysisFilter, page models.Page) ([]*models.Analysis, int, error)
	Count(ctx context.Context, createdBy *int64) (int, error)
}

type analysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

const analysisColumns = `id, property_id, created_by, name, type, inputs, results, notes, created_at, updated_at`

func scanAnalysis(row rowScanner) (*models.Analysis, error) {
	a := &models.Analysis{}
	var inputs, results []byte
	err := row.Scan(&a.ID, &a.PropertyID, &a.CreatedBy, &a.Name, &a.Type, &inputs, &results, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	if err := json.Unmarshal(inputs, &a.Inputs); err != nil {
		return nil, fmt.Errorf("decode analysis inputs: %w", err)
	}
	if err := json.Unmarshal(results, &a.Results); err != nil {
		return nil, fmt.Errorf("decode analysis results: %w", err)
	}
	return a, nil
}

func encodeAnalysis(a *models.Analysis) (string, string, error) {
	in, err := json.Marshal(a.Inputs)
	if err != nil {
		return "", "", err
	}
	res, err := json.Marshal(a.Results)
	if err != nil {
		return "", "", err
	}
	return string(in), string(res), nil
}

func (r *analysisRepository) Create(ctx context.Context, a *models.Analysis) error {
	in, res, err := encodeAnalysis(a)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO analyses (property_id, created_by, name, type, inputs, results, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, q, a.PropertyID, a.CreatedBy, a.Name, a.Type, in, res, a.Notes).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create analysis: %w", mapError(err))
	}
	return nil
}

func (r *analysisRepository) GetByID(ctx context.Context, id int64) (*models.Analysis, error) {
	return scanAnalysis(r.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = $1`, id))
}

func (r *analysisRepository) Update(ctx context.Context, a *models.Analysis) error {
	in, res, err := encodeAnalysis(a)
	if err != nil {
		return err
	}
	const q = `
		UPDATE analyses
		SET name=$1, type=$2, inputs=$3, results=$4, notes=$5, updated_at=NOW()
		WHERE id=$6
		RETURNING updated_at
	`
	if err := r.db.QueryRowContext(ctx, q, a.Name, a.Type, in, res, a.Notes, a.ID).Scan(&a.UpdatedAt); err != nil {
		return fmt.Errorf("update analysis: %w", mapError(err))
	}
	return nil
}

func (r *analysisRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	return expectOne(res)
}

func (r *analysisRepository) List(ctx context.Context, filter models.AnalysisFilter, page models.Page) ([]*models.Analysis, int, error) {
	var w where
	if filter.PropertyID != nil {
		w.add("property_id = $%d", *filter.PropertyID)
	}
	if filter.Type != nil {
		w.add("type = $%d", *filter.Type)
	}
	if filter.CreatedBy != nil {
		w.add("created_by = $%d", *filter.CreatedBy)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count analyses: %w", err)
	}

	n := w.next()
	q := `SELECT ` + analysisColumns + ` FROM analyses` + w.sql() +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", n, n+1)
	rows, err := r.db.QueryContext(ctx, q, append(w.args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	out := []*models.Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *analysisRepository) Count(ctx context.Context, createdBy *int64) (int, error) {
	var n int
	var err error
	if createdBy != nil {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses WHERE created_by = $1`, *createdBy).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses`).Scan(&n)
	}
	return n, err
}
