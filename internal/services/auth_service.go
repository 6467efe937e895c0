package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"reicrm/internal/authz"
	"reicrm/internal/models"
	"reicrm/internal/repositories"
	"reicrm/internal/utils"
)

const minPasswordLen = 8

type RegisterInput struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	Phone     string `json:"phone"`
	Company   string `json:"company"`
}

type Tokens struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type AuthResult struct {
	User   *models.User `json:"user"`
	Tokens Tokens       `json:"tokens"`
}

type AuthService interface {
	HashPassword(password string) (string, error)
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	Logout(ctx context.Context, userID int64) error
	ChangePassword(ctx context.Context, userID int64, current, next string) error
}

type authService struct {
	users      repositories.UserRepository
	jwt        *utils.JWTManager
	refreshTTL time.Duration
	emails     EmailService
	log        *slog.Logger
	now        func() time.Time
}

func NewAuthService(users repositories.UserRepository, jwt *utils.JWTManager, refreshTTL time.Duration, emails EmailService, logger *slog.Logger) AuthService {
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &authService{
		users:      users,
		jwt:        jwt,
		refreshTTL: refreshTTL,
		emails:     emails,
		log:        logger.With("component", "auth"),
		now:        time.Now,
	}
}

func (s *authService) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func validatePassword(pw string) error {
	if len(strings.TrimSpace(pw)) < minPasswordLen {
		return invalidf("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if strings.TrimSpace(in.FirstName) == "" {
		return nil, invalidf("firstName is required")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Phone:        in.Phone,
		Company:      in.Company,
		Role:         authz.RoleAgent,
		Subscription: models.Subscription{Plan: authz.PlanFree, Status: models.SubscriptionActive},
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, errEmailTaken
		}
		return nil, err
	}
	s.log.Info("user registered", "user_id", u.ID)

	if err := s.emails.SendWelcomeEmail(u.Email, u.FullName()); err != nil {
		s.log.Warn("welcome email failed", "user_id", u.ID, "error", err)
	}
	return u, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !u.IsActive {
		s.log.Info("login refused for inactive user", "user_id", u.ID)
		return nil, ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.log.Info("login password mismatch", "user_id", u.ID)
		return nil, ErrUnauthorized
	}

	now := s.now()
	res, err := s.issue(ctx, u, now)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateRefresh(ctx, u.ID, res.Tokens.RefreshToken, now.Add(s.refreshTTL)); err != nil {
		return nil, err
	}
	if err := s.users.TouchLogin(ctx, u.ID, now); err != nil {
		s.log.Warn("stamp last login failed", "user_id", u.ID, "error", err)
	}
	u.LastLoginAt = &now
	return res, nil
}

// Refresh rotates the opaque refresh token and returns a new pair.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	old := strings.TrimSpace(refreshToken)
	if old == "" {
		return nil, ErrUnauthorized
	}
	now := s.now()
	u, err := s.users.GetByRefreshToken(ctx, old)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !u.IsActive || u.RefreshRevoked || u.RefreshExpiresAt == nil || now.After(*u.RefreshExpiresAt) {
		return nil, ErrUnauthorized
	}

	next, err := utils.NewRefreshToken(32)
	if err != nil {
		return nil, err
	}
	u, err = s.users.RotateRefresh(ctx, old, next, now.Add(s.refreshTTL))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	access, exp, err := s.jwt.Issue(u.ID, u.Role, u.Subscription.EffectivePlan(now), now)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: u, Tokens: Tokens{AccessToken: access, RefreshToken: next, ExpiresAt: exp}}, nil
}

func (s *authService) issue(_ context.Context, u *models.User, now time.Time) (*AuthResult, error) {
	access, exp, err := s.jwt.Issue(u.ID, u.Role, u.Subscription.EffectivePlan(now), now)
	if err != nil {
		return nil, err
	}
	rt, err := utils.NewRefreshToken(32)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: u, Tokens: Tokens{AccessToken: access, RefreshToken: rt, ExpiresAt: exp}}, nil
}

func (s *authService) Logout(ctx context.Context, userID int64) error {
	return s.users.ClearRefresh(ctx, userID)
}

func (s *authService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrUnauthorized
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	hash, err := s.HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}
