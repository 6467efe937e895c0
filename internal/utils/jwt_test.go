package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reicrm/internal/authz"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	tok, exp, err := m.Issue(42, authz.RoleAgent, authz.PlanProfessional, time.Now())
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	claims, err := m.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.UserID)
	require.Equal(t, authz.RoleAgent, claims.Role)
	require.Equal(t, authz.PlanProfessional, claims.Plan)
}

func TestJWTRejectsExpiredAndForeign(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	tok, _, err := m.Issue(1, authz.RoleAdmin, authz.PlanFree, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = m.Parse(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	other := NewJWTManager("other", time.Minute)
	tok, _, err = other.Issue(1, authz.RoleAdmin, authz.PlanFree, time.Now())
	require.NoError(t, err)
	_, err = m.Parse(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}
