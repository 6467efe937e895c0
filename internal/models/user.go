package models

import (
	"strings"
	"time"

	"reicrm/internal/authz"
)

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionTrialing, SubscriptionPastDue, SubscriptionCanceled:
		return true
	}
	return false
}

type Subscription struct {
	Plan      authz.Plan         `json:"plan"`
	Status    SubscriptionStatus `json:"status"`
	ExpiresAt *time.Time         `json:"expiresAt,omitempty"`
}

// EffectivePlan is the plan the account is entitled to at now:
// canceled or expired subscriptions fall back to free.
func (s Subscription) EffectivePlan(now time.Time) authz.Plan {
	if !s.Plan.Valid() || s.Status == SubscriptionCanceled {
		return authz.PlanFree
	}
	if s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
		return authz.PlanFree
	}
	return s.Plan
}

type User struct {
	ID             int64        `json:"id"`
	FirstName      string       `json:"firstName"`
	LastName       string       `json:"lastName"`
	Email          string       `json:"email"`
	PasswordHash   string       `json:"-"`
	Phone          string       `json:"phone,omitempty"`
	Company        string       `json:"company,omitempty"`
	Role           authz.Role   `json:"role"`
	Subscription   Subscription `json:"subscription"`
	IsActive       bool         `json:"isActive"`
	LastLoginAt    *time.Time   `json:"lastLoginAt,omitempty"`
	TelegramChatID int64        `json:"telegramChatId,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`

	RefreshToken     *string    `json:"-"`
	RefreshExpiresAt *time.Time `json:"-"`
	RefreshRevoked   bool       `json:"-"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UserFilter struct {
	Role     *authz.Role
	Plan     *authz.Plan
	IsActive *bool
	Search   string
}
