package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reicrm/internal/authz"
	"reicrm/internal/logging"
	"reicrm/internal/models"
)

var (
	admin  = Actor{UserID: 1, Role: authz.RoleAdmin, Plan: authz.PlanEnterprise}
	agent  = Actor{UserID: 2, Role: authz.RoleAgent, Plan: authz.PlanFree}
	other  = Actor{UserID: 3, Role: authz.RoleAgent, Plan: authz.PlanBasic}
	viewer = Actor{UserID: 4, Role: authz.RoleViewer, Plan: authz.PlanFree}
)

func seededUsers() *memUsers {
	return newMemUsers(
		&models.User{ID: 1, Email: "admin@x.io", Role: authz.RoleAdmin, IsActive: true},
		&models.User{ID: 2, Email: "agent@x.io", Role: authz.RoleAgent, IsActive: true},
		&models.User{ID: 3, Email: "other@x.io", Role: authz.RoleAgent, IsActive: true},
		&models.User{ID: 4, Email: "viewer@x.io", Role: authz.RoleViewer, IsActive: true},
	)
}

func newLeads(leads *memLeads, props *memProperties) *leadService {
	return NewLeadService(leads, props, seededUsers(), logging.Discard()).(*leadService)
}

func TestCreateLeadDefaults(t *testing.T) {
	leads := newMemLeads()
	svc := newLeads(leads, newMemProperties())

	l, err := svc.Create(context.Background(), agent, LeadInput{
		FirstName: ptr("Sam"), Tags: []string{" Probate ", "probate", ""}, Note: "called once",
	})
	require.NoError(t, err)
	require.NotEmpty(t, l.LeadID)
	require.Equal(t, models.LeadNew, l.Status)
	require.Equal(t, int64(2), l.CreatedBy)
	require.Equal(t, int64(2), *l.AssignedTo)
	require.Equal(t, []string{"probate"}, l.Tags)
	require.Len(t, l.Notes, 1)
	require.Equal(t, int64(2), l.Notes[0].AuthorID)
}

func TestCreateLeadQuota(t *testing.T) {
	existing := []*models.Lead{}
	for i := 0; i < authz.LeadQuota(authz.PlanFree); i++ {
		existing = append(existing, &models.Lead{CreatedBy: agent.UserID, Status: models.LeadNew})
	}
	svc := newLeads(newMemLeads(existing...), newMemProperties())

	_, err := svc.Create(context.Background(), agent, LeadInput{FirstName: ptr("One")})
	require.ErrorIs(t, err, ErrPlanLimit)

	upgraded := agent
	upgraded.Plan = authz.PlanBasic
	_, err = svc.Create(context.Background(), upgraded, LeadInput{FirstName: ptr("One")})
	require.NoError(t, err)
}

func TestCreateLeadChecksReferences(t *testing.T) {
	svc := newLeads(newMemLeads(), newMemProperties())

	_, err := svc.Create(context.Background(), agent, LeadInput{FirstName: ptr("A"), PropertyID: ptr(int64(99))})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(context.Background(), agent, LeadInput{FirstName: ptr("A"), AssignedTo: ptr(int64(3))})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(context.Background(), admin, LeadInput{FirstName: ptr("A"), AssignedTo: ptr(int64(42))})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(context.Background(), viewer, LeadInput{FirstName: ptr("A")})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestLeadVisibility(t *testing.T) {
	leads := newMemLeads(
		&models.Lead{CreatedBy: 2, Status: models.LeadNew},
		&models.Lead{CreatedBy: 3, AssignedTo: ptr(int64(2)), Status: models.LeadNew},
		&models.Lead{CreatedBy: 3, Status: models.LeadNew},
	)
	svc := newLeads(leads, newMemProperties())

	res, err := svc.List(context.Background(), agent, models.LeadFilter{}, models.Page{Page: 1, Limit: 20}, models.Sort{})
	require.NoError(t, err)
	require.Len(t, res.Data, 2)

	res, err = svc.List(context.Background(), viewer, models.LeadFilter{}, models.Page{Page: 1, Limit: 20}, models.Sort{})
	require.NoError(t, err)
	require.Len(t, res.Data, 3)

	_, err = svc.Get(context.Background(), agent, 3)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Get(context.Background(), agent, 2)
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), agent, 404)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestChangeStatusTransitions(t *testing.T) {
	leads := newMemLeads(&models.Lead{CreatedBy: 2, Status: models.LeadNew})
	svc := newLeads(leads, newMemProperties())
	svc.now = fixedNow(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	l, err := svc.ChangeStatus(context.Background(), agent, 1, models.LeadContacted)
	require.NoError(t, err)
	require.Equal(t, models.LeadContacted, l.Status)
	require.NotNil(t, l.LastContactedAt)

	_, err = svc.ChangeStatus(context.Background(), agent, 1, models.LeadClosedWon)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.ChangeStatus(context.Background(), agent, 1, models.LeadStatus("bogus"))
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.ChangeStatus(context.Background(), other, 1, models.LeadQualified)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestCanTransition(t *testing.T) {
	require.True(t, canTransition(models.LeadNew, models.LeadContacted))
	require.True(t, canTransition(models.LeadUnderContract, models.LeadClosedWon))
	require.True(t, canTransition(models.LeadClosedLost, models.LeadNew))
	require.False(t, canTransition(models.LeadClosedWon, models.LeadNew))
	require.False(t, canTransition(models.LeadNew, models.LeadUnderContract))
	require.False(t, canTransition(models.LeadStatus("x"), models.LeadNew))
}

func TestAddNoteAndAssign(t *testing.T) {
	leads := newMemLeads(&models.Lead{CreatedBy: 2, Status: models.LeadNew, Notes: []models.LeadNote{}})
	svc := newLeads(leads, newMemProperties())

	_, err := svc.AddNote(context.Background(), agent, 1, "   ")
	require.ErrorIs(t, err, ErrValidation)

	l, err := svc.AddNote(context.Background(), agent, 1, "left voicemail")
	require.NoError(t, err)
	require.Len(t, l.Notes, 1)
	require.Equal(t, "left voicemail", l.Notes[0].Text)

	l, err = svc.Assign(context.Background(), 1, ptr(int64(3)))
	require.NoError(t, err)
	require.Equal(t, int64(3), *l.AssignedTo)

	_, err = svc.Assign(context.Background(), 1, ptr(int64(77)))
	require.ErrorIs(t, err, ErrValidation)
}

func TestDeleteLeadOwnership(t *testing.T) {
	leads := newMemLeads(&models.Lead{CreatedBy: 3, AssignedTo: ptr(int64(2)), Status: models.LeadNew})
	svc := newLeads(leads, newMemProperties())

	require.ErrorIs(t, svc.Delete(context.Background(), agent, 1), ErrForbidden)
	require.NoError(t, svc.Delete(context.Background(), other, 1))
}

func TestFollowUps(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	leads := newMemLeads(
		&models.Lead{CreatedBy: 2, Status: models.LeadNew, FollowUpDate: ptr(now.Add(3 * time.Hour))},
		&models.Lead{CreatedBy: 2, Status: models.LeadNew, FollowUpDate: ptr(now.Add(48 * time.Hour))},
		&models.Lead{CreatedBy: 2, Status: models.LeadClosedLost, FollowUpDate: ptr(now.Add(-time.Hour))},
		&models.Lead{CreatedBy: 3, Status: models.LeadNew, FollowUpDate: ptr(now)},
	)
	svc := newLeads(leads, newMemProperties())
	svc.now = fixedNow(now)

	due, err := svc.FollowUps(context.Background(), agent)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, int64(1), due[0].ID)
}
