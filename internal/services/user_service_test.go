package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reicrm/internal/authz"
	"reicrm/internal/logging"
	"reicrm/internal/models"
	"reicrm/internal/repositories"
)

func newUsers(t *testing.T, repo *memUsers) *userService {
	auth, _ := newAuth(t, repo, newRecordingEmails())
	return NewUserService(repo, auth, logging.Discard()).(*userService)
}

func TestCreateUserValidation(t *testing.T) {
	svc := newUsers(t, newMemUsers())

	_, err := svc.Create(context.Background(), CreateUserInput{FirstName: "A", Email: "a@x.io", Password: "long-enough", Role: "root"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(context.Background(), CreateUserInput{FirstName: "A", Email: "a@x.io", Password: "long-enough", Plan: "gold"})
	require.ErrorIs(t, err, ErrValidation)

	u, err := svc.Create(context.Background(), CreateUserInput{FirstName: "A", Email: "A@X.io", Password: "long-enough"})
	require.NoError(t, err)
	require.Equal(t, authz.RoleAgent, u.Role)
	require.Equal(t, authz.PlanFree, u.Subscription.Plan)
	require.Equal(t, "a@x.io", u.Email)

	_, err = svc.Create(context.Background(), CreateUserInput{FirstName: "B", Email: "a@x.io", Password: "long-enough"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestUpdateUserPermissions(t *testing.T) {
	svc := newUsers(t, seededUsers())

	_, err := svc.Update(context.Background(), agent, 3, UpdateUserInput{FirstName: ptr("X")})
	require.ErrorIs(t, err, ErrForbidden)

	u, err := svc.Update(context.Background(), agent, 2, UpdateUserInput{
		FirstName: ptr("Agent"), Role: ptr(authz.RoleAdmin), IsActive: ptr(false),
	})
	require.NoError(t, err)
	require.Equal(t, "Agent", u.FirstName)
	require.Equal(t, authz.RoleAgent, u.Role)
	require.True(t, u.IsActive)

	u, err = svc.Update(context.Background(), admin, 2, UpdateUserInput{Role: ptr(authz.RoleManager), IsActive: ptr(false)})
	require.NoError(t, err)
	require.Equal(t, authz.RoleManager, u.Role)
	require.False(t, u.IsActive)

	_, err = svc.Update(context.Background(), admin, 2, UpdateUserInput{FirstName: ptr("  ")})
	require.ErrorIs(t, err, ErrValidation)
}

func TestGetAndDeleteUser(t *testing.T) {
	svc := newUsers(t, seededUsers())

	_, err := svc.Get(context.Background(), agent, 3)
	require.ErrorIs(t, err, ErrForbidden)
	u, err := svc.Get(context.Background(), agent, 2)
	require.NoError(t, err)
	require.Equal(t, "agent@x.io", u.Email)

	err = svc.Delete(context.Background(), admin, 1)
	require.ErrorIs(t, err, ErrValidation)
	require.NoError(t, svc.Delete(context.Background(), admin, 3))
	_, err = svc.Get(context.Background(), admin, 3)
	require.ErrorIs(t, err, ErrNotFound)
}

type ownedAnalysesUsers struct{ *memUsers }

func (ownedAnalysesUsers) Delete(context.Context, int64) error {
	return fmt.Errorf("delete user: %w: analyses_created_by_fkey", repositories.ErrReferenced)
}

func TestDeleteUserWithAnalysesConflicts(t *testing.T) {
	users := seededUsers()
	auth, _ := newAuth(t, users, newRecordingEmails())
	svc := NewUserService(ownedAnalysesUsers{users}, auth, logging.Discard())

	err := svc.Delete(context.Background(), admin, 2)
	require.ErrorIs(t, err, ErrConflict)
	require.Contains(t, err.Error(), "deactivate the account")
}

func TestUpdateSubscription(t *testing.T) {
	svc := newUsers(t, seededUsers())
	exp := time.Now().Add(30 * 24 * time.Hour)

	_, err := svc.UpdateSubscription(context.Background(), 2, SubscriptionInput{Plan: "gold"})
	require.ErrorIs(t, err, ErrValidation)

	u, err := svc.UpdateSubscription(context.Background(), 2, SubscriptionInput{Plan: authz.PlanProfessional, ExpiresAt: &exp})
	require.NoError(t, err)
	require.Equal(t, authz.PlanProfessional, u.Subscription.Plan)
	require.Equal(t, models.SubscriptionActive, u.Subscription.Status)
}

func TestSweepExpiredSubscriptions(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	repo := newMemUsers(
		&models.User{Email: "a@x.io", Subscription: models.Subscription{Plan: authz.PlanBasic, Status: models.SubscriptionActive, ExpiresAt: &past}},
		&models.User{Email: "b@x.io", Subscription: models.Subscription{Plan: authz.PlanEnterprise, Status: models.SubscriptionActive, ExpiresAt: &future}},
		&models.User{Email: "c@x.io", Subscription: models.Subscription{Plan: authz.PlanFree, Status: models.SubscriptionActive, ExpiresAt: &past}},
	)
	svc := newUsers(t, repo)
	svc.now = fixedNow(now)

	stats, err := svc.SweepExpiredSubscriptions(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]any{"expired": 1, "downgraded": 1, "failed": 0}, stats)

	a, _ := repo.GetByID(context.Background(), 1)
	require.Equal(t, authz.PlanFree, a.Subscription.Plan)
	require.Equal(t, models.SubscriptionCanceled, a.Subscription.Status)
	b, _ := repo.GetByID(context.Background(), 2)
	require.Equal(t, authz.PlanEnterprise, b.Subscription.Plan)
}

type memResets struct {
	items map[string]*models.PasswordReset
}

func (m *memResets) Create(_ context.Context, userID int64, token string, exp time.Time) (*models.PasswordReset, error) {
	pr := &models.PasswordReset{ID: int64(len(m.items) + 1), UserID: userID, Token: token, ExpiresAt: exp}
	m.items[token] = pr
	return pr, nil
}

func (m *memResets) GetByToken(_ context.Context, token string) (*models.PasswordReset, error) {
	if pr, ok := m.items[token]; ok {
		cp := *pr
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *memResets) MarkUsed(_ context.Context, id int64) error {
	for _, pr := range m.items {
		if pr.ID == id && pr.UsedAt == nil {
			now := time.Now()
			pr.UsedAt = &now
			return nil
		}
	}
	return ErrNotFound
}

func TestPasswordResetFlow(t *testing.T) {
	users, emails := seededUsers(), newRecordingEmails()
	auth, _ := newAuth(t, users, emails)
	resets := &memResets{items: map[string]*models.PasswordReset{}}
	svc := NewPasswordResetService(users, resets, emails, auth, logging.Discard())

	require.NoError(t, svc.RequestReset(context.Background(), "nobody@x.io"))
	require.Empty(t, emails.resets)

	require.NoError(t, svc.RequestReset(context.Background(), " Agent@X.io "))
	token := emails.resets["agent@x.io"]
	require.NotEmpty(t, token)

	require.ErrorIs(t, svc.ResetPassword(context.Background(), token, "short"), ErrValidation)
	require.NoError(t, svc.ResetPassword(context.Background(), token, "brand-new-pass"))

	err := svc.ResetPassword(context.Background(), token, "another-pass")
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "invalid or expired token", ValidationMessage(err))

	_, err = auth.Login(context.Background(), "agent@x.io", "brand-new-pass")
	require.NoError(t, err)
}

// staleResets serves the token as unused even after it was claimed,
// like two requests that both read it before either marks it.
type staleResets struct{ *memResets }

func (m staleResets) GetByToken(ctx context.Context, token string) (*models.PasswordReset, error) {
	pr, err := m.memResets.GetByToken(ctx, token)
	if err == nil {
		pr.UsedAt = nil
	}
	return pr, err
}

func TestPasswordResetClaimsTokenFirst(t *testing.T) {
	users, emails := seededUsers(), newRecordingEmails()
	auth, _ := newAuth(t, users, emails)
	resets := &memResets{items: map[string]*models.PasswordReset{}}
	svc := NewPasswordResetService(users, staleResets{resets}, emails, auth, logging.Discard())

	require.NoError(t, svc.RequestReset(context.Background(), "agent@x.io"))
	token := emails.resets["agent@x.io"]
	require.NoError(t, users.with(2, func(u *models.User) { u.RefreshToken = ptr("live-session") }))

	require.NoError(t, svc.ResetPassword(context.Background(), token, "first-pass-123"))
	err := svc.ResetPassword(context.Background(), token, "second-pass-123")
	require.ErrorIs(t, err, ErrValidation)

	_, err = auth.Login(context.Background(), "agent@x.io", "second-pass-123")
	require.ErrorIs(t, err, ErrUnauthorized)
	u, _ := users.GetByID(context.Background(), 2)
	require.Nil(t, u.RefreshToken)
	require.True(t, u.RefreshRevoked)
}

func TestPasswordResetEmailFailureIsSwallowed(t *testing.T) {
	emails := newRecordingEmails()
	emails.err = errors.New("smtp down")
	users := seededUsers()
	auth, _ := newAuth(t, users, emails)
	resets := &memResets{items: map[string]*models.PasswordReset{}}
	svc := NewPasswordResetService(users, resets, emails, auth, logging.Discard())

	require.NoError(t, svc.RequestReset(context.Background(), "agent@x.io"))
	require.Len(t, resets.items, 1)
}
