package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"reicrm/internal/authz"
	"reicrm/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	UpdateSubscription(ctx context.Context, id int64, sub models.Subscription) error
	TouchLogin(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter models.UserFilter, page models.Page) ([]*models.User, int, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*models.User, error)
	ListExpiredSubscriptions(ctx context.Context, now time.Time) ([]*models.User, error)

	// refresh helpers
	UpdateRefresh(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	RotateRefresh(ctx context.Context, oldToken, newToken string, newExpiresAt time.Time) (*models.User, error)
	ClearRefresh(ctx context.Context, userID int64) error
	GetByRefreshToken(ctx context.Context, token string) (*models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `
	id, first_name, last_name, email, password_hash,
	COALESCE(phone, ''), COALESCE(company, ''), role,
	plan, subscription_status, subscription_expires_at,
	is_active, last_login_at, COALESCE(telegram_chat_id, 0),
	refresh_token, refresh_expires_at, refresh_revoked,
	created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var (
		rt  sql.NullString
		rte sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash,
		&u.Phone, &u.Company, &u.Role,
		&u.Subscription.Plan, &u.Subscription.Status, &u.Subscription.ExpiresAt,
		&u.IsActive, &u.LastLoginAt, &u.TelegramChatID,
		&rt, &rte, &u.RefreshRevoked,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	if rt.Valid {
		s := rt.String
		u.RefreshToken = &s
	}
	if rte.Valid {
		t := rte.Time
		u.RefreshExpiresAt = &t
	}
	return u, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	const q = `
		INSERT INTO users (
			first_name, last_name, email, password_hash, phone, company, role,
			plan, subscription_status, subscription_expires_at, is_active, telegram_chat_id
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, q,
		user.FirstName, user.LastName, strings.ToLower(user.Email), user.PasswordHash,
		user.Phone, user.Company, user.Role,
		user.Subscription.Plan, user.Subscription.Status, user.Subscription.ExpiresAt,
		user.IsActive, nullableID(user.TelegramChatID),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", mapError(err))
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	const q = `
		UPDATE users
		SET first_name=$1, last_name=$2, email=$3, phone=$4, company=$5, role=$6,
		    plan=$7, subscription_status=$8, subscription_expires_at=$9,
		    is_active=$10, telegram_chat_id=$11, updated_at=NOW()
		WHERE id=$12
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, q,
		user.FirstName, user.LastName, strings.ToLower(user.Email), user.Phone, user.Company, user.Role,
		user.Subscription.Plan, user.Subscription.Status, user.Subscription.ExpiresAt,
		user.IsActive, nullableID(user.TelegramChatID), user.ID,
	).Scan(&user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: %w", mapError(err))
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash=$1, refresh_token=NULL, refresh_expires_at=NULL, updated_at=NOW() WHERE id=$2`,
		hash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectOne(res)
}

func (r *userRepository) UpdateSubscription(ctx context.Context, id int64, sub models.Subscription) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET plan=$1, subscription_status=$2, subscription_expires_at=$3, updated_at=NOW() WHERE id=$4`,
		sub.Plan, sub.Status, sub.ExpiresAt, id)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return expectOne(res)
}

func (r *userRepository) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at=$1 WHERE id=$2`, at, id)
	return err
}

func (r *userRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", mapError(err))
	}
	return expectOne(res)
}

func (r *userRepository) List(ctx context.Context, filter models.UserFilter, page models.Page) ([]*models.User, int, error) {
	var w where
	if filter.Role != nil {
		w.add("role = $%d", *filter.Role)
	}
	if filter.Plan != nil {
		w.add("plan = $%d", *filter.Plan)
	}
	if filter.IsActive != nil {
		w.add("is_active = $%d", *filter.IsActive)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		w.add("(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d)", likePattern(s))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	n := w.next()
	q := `SELECT ` + userColumns + ` FROM users` + w.sql() +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", n, n+1)
	args := append(w.args, page.Limit, page.Offset())

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []int64) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list users by id: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *userRepository) ListExpiredSubscriptions(ctx context.Context, now time.Time) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE plan <> $1 AND subscription_expires_at IS NOT NULL AND subscription_expires_at < $2`,
		authz.PlanFree, now)
	if err != nil {
		return nil, fmt.Errorf("list expired subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *userRepository) UpdateRefresh(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token=$1, refresh_expires_at=$2, refresh_revoked=FALSE WHERE id=$3`,
		token, expiresAt, userID)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// RotateRefresh swaps the token atomically; a token that was already rotated matches no row.
func (r *userRepository) RotateRefresh(ctx context.Context, oldToken, newToken string, newExpiresAt time.Time) (*models.User, error) {
	const q = `
		UPDATE users
		SET refresh_token=$1, refresh_expires_at=$2, refresh_revoked=FALSE
		WHERE refresh_token=$3 AND refresh_revoked=FALSE
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, q, newToken, newExpiresAt, oldToken))
}

func (r *userRepository) ClearRefresh(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token=NULL, refresh_expires_at=NULL, refresh_revoked=FALSE WHERE id=$1`, userID)
	return err
}

func (r *userRepository) GetByRefreshToken(ctx context.Context, token string) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE refresh_token=$1`, token))
}
