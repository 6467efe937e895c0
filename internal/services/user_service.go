package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reicrm/internal/authz"
	"reicrm/internal/models"
	"reicrm/internal/repositories"
)

type CreateUserInput struct {
	FirstName    string                    `json:"firstName" binding:"required"`
	LastName     string                    `json:"lastName"`
	Email        string                    `json:"email" binding:"required,email"`
	Password     string                    `json:"password" binding:"required"`
	Phone        string                    `json:"phone"`
	Company      string                    `json:"company"`
	Role         authz.Role                `json:"role"`
	Plan         authz.Plan                `json:"plan"`
	Status       models.SubscriptionStatus `json:"subscriptionStatus"`
	ExpiresAt    *time.Time                `json:"subscriptionExpiresAt"`
	TelegramChat int64                     `json:"telegramChatId"`
}

// UpdateUserInput is a partial update; nil fields are left untouched.
type UpdateUserInput struct {
	FirstName    *string     `json:"firstName"`
	LastName     *string     `json:"lastName"`
	Email        *string     `json:"email"`
	Phone        *string     `json:"phone"`
	Company      *string     `json:"company"`
	TelegramChat *int64      `json:"telegramChatId"`
	Role         *authz.Role `json:"role"`
	IsActive     *bool       `json:"isActive"`
}

type SubscriptionInput struct {
	Plan      authz.Plan                `json:"plan" binding:"required"`
	Status    models.SubscriptionStatus `json:"status"`
	ExpiresAt *time.Time                `json:"expiresAt"`
}

type UserService interface {
	List(ctx context.Context, filter models.UserFilter, page models.Page) (models.ListResult[*models.User], error)
	Get(ctx context.Context, actor Actor, id int64) (*models.User, error)
	Create(ctx context.Context, in CreateUserInput) (*models.User, error)
	Update(ctx context.Context, actor Actor, id int64, in UpdateUserInput) (*models.User, error)
	Delete(ctx context.Context, actor Actor, id int64) error
	UpdateSubscription(ctx context.Context, id int64, in SubscriptionInput) (*models.User, error)
	SweepExpiredSubscriptions(ctx context.Context) (map[string]any, error)
}

type userService struct {
	repo repositories.UserRepository
	auth AuthService
	log  *slog.Logger
	now  func() time.Time
}

func NewUserService(repo repositories.UserRepository, auth AuthService, logger *slog.Logger) UserService {
	return &userService{
		repo: repo,
		auth: auth,
		log:  logger.With("component", "users"),
		now:  time.Now,
	}
}

func (s *userService) List(ctx context.Context, filter models.UserFilter, page models.Page) (models.ListResult[*models.User], error) {
	users, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return models.ListResult[*models.User]{}, err
	}
	return models.ListResult[*models.User]{Data: users, Pagination: models.NewPagination(page, total)}, nil
}

func (s *userService) Get(ctx context.Context, actor Actor, id int64) (*models.User, error) {
	if !actor.Elevated() && actor.UserID != id {
		return nil, ErrForbidden
	}
	return s.repo.GetByID(ctx, id)
}

func (s *userService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if in.Role == "" {
		in.Role = authz.RoleAgent
	}
	if !in.Role.Valid() {
		return nil, invalidf("unknown role %q", in.Role)
	}
	if in.Plan == "" {
		in.Plan = authz.PlanFree
	}
	if !in.Plan.Valid() {
		return nil, invalidf("unknown plan %q", in.Plan)
	}
	if in.Status == "" {
		in.Status = models.SubscriptionActive
	}
	if !in.Status.Valid() {
		return nil, invalidf("unknown subscription status %q", in.Status)
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := s.auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Email:          strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash:   hash,
		Phone:          in.Phone,
		Company:        in.Company,
		Role:           in.Role,
		Subscription:   models.Subscription{Plan: in.Plan, Status: in.Status, ExpiresAt: in.ExpiresAt},
		IsActive:       true,
		TelegramChatID: in.TelegramChat,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, errEmailTaken
		}
		return nil, err
	}
	s.log.Info("user created", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Update lets admins change anything; everyone else may only edit their own profile fields.
func (s *userService) Update(ctx context.Context, actor Actor, id int64, in UpdateUserInput) (*models.User, error) {
	isAdmin := actor.Role == authz.RoleAdmin
	if !isAdmin && actor.UserID != id {
		return nil, ErrForbidden
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		if strings.TrimSpace(*in.FirstName) == "" {
			return nil, invalidf("firstName cannot be empty")
		}
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	if in.Company != nil {
		u.Company = *in.Company
	}
	if in.TelegramChat != nil {
		u.TelegramChatID = *in.TelegramChat
	}
	if isAdmin {
		if in.Role != nil {
			if !in.Role.Valid() {
				return nil, invalidf("unknown role %q", *in.Role)
			}
			u.Role = *in.Role
		}
		if in.IsActive != nil {
			u.IsActive = *in.IsActive
		}
	}

	if err := s.repo.Update(ctx, u); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, errEmailTaken
		}
		return nil, err
	}
	return u, nil
}

func (s *userService) Delete(ctx context.Context, actor Actor, id int64) error {
	if actor.UserID == id {
		return invalidf("you cannot delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrReferenced) {
			return fmt.Errorf("%w: user still owns saved analyses, deactivate the account instead", ErrConflict)
		}
		return err
	}
	s.log.Info("user deleted", "user_id", id, "by", actor.UserID)
	return nil
}

func (s *userService) UpdateSubscription(ctx context.Context, id int64, in SubscriptionInput) (*models.User, error) {
	if !in.Plan.Valid() {
		return nil, invalidf("unknown plan %q", in.Plan)
	}
	if in.Status == "" {
		in.Status = models.SubscriptionActive
	}
	if !in.Status.Valid() {
		return nil, invalidf("unknown subscription status %q", in.Status)
	}
	sub := models.Subscription{Plan: in.Plan, Status: in.Status, ExpiresAt: in.ExpiresAt}
	if err := s.repo.UpdateSubscription(ctx, id, sub); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// SweepExpiredSubscriptions downgrades lapsed paid plans to free/canceled.
func (s *userService) SweepExpiredSubscriptions(ctx context.Context) (map[string]any, error) {
	expired, err := s.repo.ListExpiredSubscriptions(ctx, s.now())
	if err != nil {
		return nil, err
	}
	downgraded, failed := 0, 0
	for _, u := range expired {
		sub := models.Subscription{Plan: authz.PlanFree, Status: models.SubscriptionCanceled}
		if err := s.repo.UpdateSubscription(ctx, u.ID, sub); err != nil {
			failed++
			s.log.Error("downgrade failed", "user_id", u.ID, "error", err)
			continue
		}
		downgraded++
		s.log.Info("subscription expired", "user_id", u.ID, "previous_plan", u.Subscription.Plan)
	}
	return map[string]any{"expired": len(expired), "downgraded": downgraded, "failed": failed}, nil
}
