package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reicrm/internal/authz"
	"reicrm/internal/logging"
	"reicrm/internal/models"
	"reicrm/internal/utils"
)

func newAuth(t *testing.T, users *memUsers, emails *recordingEmails) (*authService, *utils.JWTManager) {
	t.Helper()
	jwtm := utils.NewJWTManager("test-secret", 15*time.Minute)
	svc := NewAuthService(users, jwtm, time.Hour, emails, logging.Discard()).(*authService)
	return svc, jwtm
}

func TestRegisterDefaultsAndWelcomeEmail(t *testing.T) {
	users, emails := newMemUsers(), newRecordingEmails()
	svc, _ := newAuth(t, users, emails)

	u, err := svc.Register(context.Background(), RegisterInput{
		FirstName: "Dana", LastName: "Lee", Email: " Dana@Example.com ", Password: "s3cretpass",
	})
	require.NoError(t, err)
	require.Equal(t, "dana@example.com", u.Email)
	require.Equal(t, authz.RoleAgent, u.Role)
	require.Equal(t, authz.PlanFree, u.Subscription.Plan)
	require.True(t, u.IsActive)
	require.NotEqual(t, "s3cretpass", u.PasswordHash)
	require.Equal(t, []string{"dana@example.com"}, emails.welcome)

	_, err = svc.Register(context.Background(), RegisterInput{FirstName: "D", Email: "dana@example.com", Password: "s3cretpass"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _ := newAuth(t, newMemUsers(), newRecordingEmails())
	_, err := svc.Register(context.Background(), RegisterInput{FirstName: "A", Email: "a@b.co", Password: "short"})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "password must be at least 8 characters", ValidationMessage(err))
}

func TestLoginIssuesTokens(t *testing.T) {
	users := newMemUsers()
	svc, jwtm := newAuth(t, users, newRecordingEmails())
	hash, err := svc.HashPassword("correct-horse")
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), &models.User{
		FirstName: "Ana", Email: "ana@example.com", PasswordHash: hash, Role: authz.RoleManager, IsActive: true,
		Subscription: models.Subscription{Plan: authz.PlanProfessional, Status: models.SubscriptionActive},
	}))

	res, err := svc.Login(context.Background(), "ana@example.com", "correct-horse")
	require.NoError(t, err)
	require.NotEmpty(t, res.Tokens.RefreshToken)
	require.NotNil(t, res.User.LastLoginAt)

	claims, err := jwtm.Parse(res.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, res.User.ID, claims.UserID)
	require.Equal(t, authz.RoleManager, claims.Role)
	require.Equal(t, authz.PlanProfessional, claims.Plan)

	stored, _ := users.GetByID(context.Background(), res.User.ID)
	require.Equal(t, res.Tokens.RefreshToken, *stored.RefreshToken)
}

func TestLoginFailures(t *testing.T) {
	users := newMemUsers()
	svc, _ := newAuth(t, users, newRecordingEmails())
	hash, _ := svc.HashPassword("correct-horse")
	_ = users.Create(context.Background(), &models.User{Email: "off@example.com", PasswordHash: hash, IsActive: false})
	_ = users.Create(context.Background(), &models.User{Email: "on@example.com", PasswordHash: hash, IsActive: true})

	_, err := svc.Login(context.Background(), "missing@example.com", "correct-horse")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Login(context.Background(), "off@example.com", "correct-horse")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Login(context.Background(), "on@example.com", "wrong-horse")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshRotatesToken(t *testing.T) {
	users := newMemUsers()
	svc, _ := newAuth(t, users, newRecordingEmails())
	hash, _ := svc.HashPassword("correct-horse")
	_ = users.Create(context.Background(), &models.User{Email: "r@example.com", PasswordHash: hash, IsActive: true, Role: authz.RoleAgent})

	first, err := svc.Login(context.Background(), "r@example.com", "correct-horse")
	require.NoError(t, err)

	second, err := svc.Refresh(context.Background(), first.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)

	_, err = svc.Refresh(context.Background(), first.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshExpiredAndRevoked(t *testing.T) {
	users := newMemUsers()
	svc, _ := newAuth(t, users, newRecordingEmails())
	hash, _ := svc.HashPassword("correct-horse")
	_ = users.Create(context.Background(), &models.User{Email: "x@example.com", PasswordHash: hash, IsActive: true})

	res, err := svc.Login(context.Background(), "x@example.com", "correct-horse")
	require.NoError(t, err)

	svc.now = fixedNow(time.Now().Add(2 * time.Hour))
	_, err = svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)

	svc.now = time.Now
	res, err = svc.Login(context.Background(), "x@example.com", "correct-horse")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(context.Background(), res.User.ID))
	_, err = svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestChangePassword(t *testing.T) {
	users := newMemUsers()
	svc, _ := newAuth(t, users, newRecordingEmails())
	hash, _ := svc.HashPassword("correct-horse")
	_ = users.Create(context.Background(), &models.User{Email: "p@example.com", PasswordHash: hash, IsActive: true})

	require.ErrorIs(t, svc.ChangePassword(context.Background(), 1, "nope-nope", "new-password"), ErrUnauthorized)
	require.ErrorIs(t, svc.ChangePassword(context.Background(), 1, "correct-horse", "short"), ErrValidation)
	require.NoError(t, svc.ChangePassword(context.Background(), 1, "correct-horse", "new-password"))

	_, err := svc.Login(context.Background(), "p@example.com", "new-password")
	require.NoError(t, err)
}
