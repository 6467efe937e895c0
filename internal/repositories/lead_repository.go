package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"reicrm/internal/models"
)

type LeadRepository interface {
	Create(ctx context.Context, lead *models.Lead) error
	GetByID(ctx context.Context, id int64) (*models.Lead, error)
	Update(ctx context.Context, lead *models.Lead) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter models.LeadFilter, page models.Page, sort models.Sort) ([]*models.Lead, int, error)
	UpdateStatus(ctx context.Context, id int64, status models.LeadStatus, contactedAt *time.Time) error
	UpdateAssignee(ctx context.Context, id int64, assignedTo *int64) error
	AppendNote(ctx context.Context, id int64, note models.LeadNote) error
	UpdatePriority(ctx context.Context, id int64, priority models.LeadPriority) error
	CountCreatedBy(ctx context.Context, userID int64) (int, error)
	ListByProperty(ctx context.Context, propertyID int64) ([]*models.Lead, error)
	ListDueFollowUps(ctx context.Context, before time.Time) ([]*models.Lead, error)
	CountByStatus(ctx context.Context, filter models.LeadFilter) (map[models.LeadStatus]int, error)
	CountBySource(ctx context.Context, filter models.LeadFilter) (map[models.LeadSource]int, error)
}

type leadRepository struct {
	db *sql.DB
}

func NewLeadRepository(db *sql.DB) LeadRepository {
	return &leadRepository{db: db}
}

const leadColumns = `
	id, lead_id, first_name, last_name, email, phone, property_id,
	source, status, priority, assigned_to, notes, tags,
	follow_up_date, last_contacted_at, estimated_value, COALESCE(created_by, 0),
	created_at, updated_at`

var leadSortColumns = map[string]string{
	"created_at":     "created_at",
	"follow_up_date": "follow_up_date",
	"status":         "status",
	"priority":       "CASE priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END",
}

func scanLead(row rowScanner) (*models.Lead, error) {
	l := &models.Lead{}
	var notes []byte
	err := row.Scan(
		&l.ID, &l.LeadID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.PropertyID,
		&l.Source, &l.Status, &l.Priority, &l.AssignedTo, &notes, pq.Array(&l.Tags),
		&l.FollowUpDate, &l.LastContactedAt, &l.EstimatedValue, &l.CreatedBy,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	if len(notes) > 0 {
		if err := json.Unmarshal(notes, &l.Notes); err != nil {
			return nil, fmt.Errorf("decode lead notes: %w", err)
		}
	}
	if l.Notes == nil {
		l.Notes = []models.LeadNote{}
	}
	if l.Tags == nil {
		l.Tags = []string{}
	}
	return l, nil
}

func encodeNotes(notes []models.LeadNote) ([]byte, error) {
	if notes == nil {
		notes = []models.LeadNote{}
	}
	return json.Marshal(notes)
}

func (r *leadRepository) Create(ctx context.Context, lead *models.Lead) error {
	notes, err := encodeNotes(lead.Notes)
	if err != nil {
		return err
	}
	if lead.Tags == nil {
		lead.Tags = []string{}
	}
	const q = `
		INSERT INTO leads (
			lead_id, first_name, last_name, email, phone, property_id,
			source, status, priority, assigned_to, notes, tags,
			follow_up_date, last_contacted_at, estimated_value, created_by
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, q,
		lead.LeadID, lead.FirstName, lead.LastName, lead.Email, lead.Phone, lead.PropertyID,
		lead.Source, lead.Status, lead.Priority, lead.AssignedTo, string(notes), pq.Array(lead.Tags),
		lead.FollowUpDate, lead.LastContactedAt, lead.EstimatedValue, nullableID(lead.CreatedBy),
	).Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create lead: %w", mapError(err))
	}
	return nil
}

func (r *leadRepository) GetByID(ctx context.Context, id int64) (*models.Lead, error) {
	return scanLead(r.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
}

// Update writes the editable fields; status, notes and assignment have dedicated calls.
func (r *leadRepository) Update(ctx context.Context, lead *models.Lead) error {
	if lead.Tags == nil {
		lead.Tags = []string{}
	}
	const q = `
		UPDATE leads SET
			first_name=$1, last_name=$2, email=$3, phone=$4, property_id=$5,
			source=$6, priority=$7, tags=$8, follow_up_date=$9, estimated_value=$10,
			updated_at=NOW()
		WHERE id=$11
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, q,
		lead.FirstName, lead.LastName, lead.Email, lead.Phone, lead.PropertyID,
		lead.Source, lead.Priority, pq.Array(lead.Tags), lead.FollowUpDate, lead.EstimatedValue,
		lead.ID,
	).Scan(&lead.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update lead: %w", mapError(err))
	}
	return nil
}

func (r *leadRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	return expectOne(res)
}

func leadWhere(f models.LeadFilter) where {
	var w where
	if f.Status != nil {
		w.add("status = $%d", *f.Status)
	}
	if f.Source != nil {
		w.add("source = $%d", *f.Source)
	}
	if f.Priority != nil {
		w.add("priority = $%d", *f.Priority)
	}
	if f.AssignedTo != nil {
		w.add("assigned_to = $%d", *f.AssignedTo)
	}
	if f.PropertyID != nil {
		w.add("property_id = $%d", *f.PropertyID)
	}
	if f.Tag != "" {
		w.add("$%d = ANY(tags)", f.Tag)
	}
	if f.FollowUpBefore != nil {
		w.add("follow_up_date <= $%d", *f.FollowUpBefore)
	}
	if f.OpenOnly {
		w.addRaw("status NOT IN ('closed_won','closed_lost')")
	}
	if f.Search != "" {
		w.add("(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d OR lead_id ILIKE $%d)",
			likePattern(f.Search))
	}
	if f.VisibleTo != nil {
		w.add("(created_by = $%d OR assigned_to = $%d)", *f.VisibleTo)
	}
	return w
}

func (r *leadRepository) List(ctx context.Context, filter models.LeadFilter, page models.Page, sort models.Sort) ([]*models.Lead, int, error) {
	w := leadWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	n := w.next()
	q := `SELECT ` + leadColumns + ` FROM leads` + w.sql() +
		orderBy(sort.Column, sort.Desc, leadSortColumns, "created_at") +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", n, n+1)
	args := append(w.args, page.Limit, page.Offset())

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	out := []*models.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

func (r *leadRepository) UpdateStatus(ctx context.Context, id int64, status models.LeadStatus, contactedAt *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE leads
		 SET status=$1, last_contacted_at=COALESCE($2, last_contacted_at), updated_at=NOW()
		 WHERE id=$3`,
		status, contactedAt, id)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	return expectOne(res)
}

func (r *leadRepository) UpdateAssignee(ctx context.Context, id int64, assignedTo *int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE leads SET assigned_to=$1, updated_at=NOW() WHERE id=$2`, assignedTo, id)
	if err != nil {
		return fmt.Errorf("assign lead: %w", mapError(err))
	}
	return expectOne(res)
}

func (r *leadRepository) AppendNote(ctx context.Context, id int64, note models.LeadNote) error {
	payload, err := json.Marshal([]models.LeadNote{note})
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE leads SET notes = notes || $1::jsonb, updated_at=NOW() WHERE id=$2`, string(payload), id)
	if err != nil {
		return fmt.Errorf("append lead note: %w", err)
	}
	return expectOne(res)
}

func (r *leadRepository) UpdatePriority(ctx context.Context, id int64, priority models.LeadPriority) error {
	res, err := r.db.ExecContext(ctx, `UPDATE leads SET priority=$1, updated_at=NOW() WHERE id=$2`, priority, id)
	if err != nil {
		return fmt.Errorf("update lead priority: %w", err)
	}
	return expectOne(res)
}

func (r *leadRepository) CountCreatedBy(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads WHERE created_by = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}
	return n, nil
}

func (r *leadRepository) listWhere(ctx context.Context, cond string, args ...any) ([]*models.Lead, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE `+cond, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *leadRepository) ListByProperty(ctx context.Context, propertyID int64) ([]*models.Lead, error) {
	out, err := r.listWhere(ctx, `property_id = $1 ORDER BY id`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("list leads by property: %w", err)
	}
	return out, nil
}

// ListDueFollowUps returns open leads with a follow-up date up to before, for every user.
func (r *leadRepository) ListDueFollowUps(ctx context.Context, before time.Time) ([]*models.Lead, error) {
	out, err := r.listWhere(ctx,
		`follow_up_date IS NOT NULL AND follow_up_date <= $1
		 AND status NOT IN ('closed_won','closed_lost')
		 ORDER BY follow_up_date, id`, before)
	if err != nil {
		return nil, fmt.Errorf("list due follow-ups: %w", err)
	}
	return out, nil
}

func (r *leadRepository) CountByStatus(ctx context.Context, filter models.LeadFilter) (map[models.LeadStatus]int, error) {
	w := leadWhere(filter)
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM leads`+w.sql()+` GROUP BY status`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("leads by status: %w", err)
	}
	defer rows.Close()

	out := map[models.LeadStatus]int{}
	for rows.Next() {
		var s models.LeadStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

func (r *leadRepository) CountBySource(ctx context.Context, filter models.LeadFilter) (map[models.LeadSource]int, error) {
	w := leadWhere(filter)
	rows, err := r.db.QueryContext(ctx, `SELECT source, COUNT(*) FROM leads`+w.sql()+` GROUP BY source`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("leads by source: %w", err)
	}
	defer rows.Close()

	out := map[models.LeadSource]int{}
	for rows.Next() {
		var s models.LeadSource
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}
