package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"reicrm/internal/repositories"
	"reicrm/internal/utils"
)

const resetTokenTTL = time.Hour

type PasswordResetService interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type passwordResetService struct {
	userRepo repositories.UserRepository
	repo     repositories.PasswordResetRepository
	emails   EmailService
	auth     AuthService
	log      *slog.Logger
	now      func() time.Time
}

func NewPasswordResetService(userRepo repositories.UserRepository, repo repositories.PasswordResetRepository, emails EmailService, auth AuthService, logger *slog.Logger) PasswordResetService {
	return &passwordResetService{
		userRepo: userRepo,
		repo:     repo,
		emails:   emails,
		auth:     auth,
		log:      logger.With("component", "password_reset"),
		now:      time.Now,
	}
}

// RequestReset never reveals whether the address is registered.
func (s *passwordResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return invalidf("email is required")
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.log.Info("reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := utils.NewRefreshToken(32)
	if err != nil {
		return err
	}
	if _, err := s.repo.Create(ctx, user.ID, token, s.now().Add(resetTokenTTL)); err != nil {
		return err
	}
	if err := s.emails.SendPasswordResetEmail(user.Email, token); err != nil {
		s.log.Warn("reset email failed", "user_id", user.ID, "error", err)
	}
	return nil
}

func (s *passwordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return invalidf("token is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	pr, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return invalidf("invalid or expired token")
		}
		return err
	}
	if !pr.Usable(s.now()) {
		return invalidf("invalid or expired token")
	}

	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	// Claim the token before touching the password so a concurrent reset loses.
	if err := s.repo.MarkUsed(ctx, pr.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return invalidf("invalid or expired token")
		}
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, pr.UserID, hash); err != nil {
		return err
	}
	if err := s.userRepo.ClearRefresh(ctx, pr.UserID); err != nil {
		s.log.Warn("revoke sessions after reset failed", "user_id", pr.UserID, "error", err)
	}
	return nil
}
