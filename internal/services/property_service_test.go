package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"reicrm/internal/logging"
	"reicrm/internal/models"
)

func TestCreatePropertyDefaults(t *testing.T) {
	repo := newMemProperties()
	svc := NewPropertyService(repo, seededUsers(), logging.Discard())

	p, err := svc.Create(context.Background(), agent, PropertyInput{
		Address:   &AddressInput{Street: ptr(" 10 Palm Ave "), City: ptr("Orlando"), State: ptr("FL")},
		ListPrice: ptr(320000.0),
	})
	require.NoError(t, err)
	require.Equal(t, "10 Palm Ave", p.Address.Street)
	require.Equal(t, models.PropertySingleFamily, p.PropertyType)
	require.Equal(t, models.PropertyActive, p.Status)
	require.Equal(t, models.SourceManual, p.Source)
	require.Equal(t, agent.UserID, *p.CreatedBy)
}

func TestCreatePropertyValidation(t *testing.T) {
	svc := NewPropertyService(newMemProperties(), seededUsers(), logging.Discard())
	ctx := context.Background()

	_, err := svc.Create(ctx, agent, PropertyInput{})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "address.street is required", ValidationMessage(err))

	street := &AddressInput{Street: ptr("1 A St")}
	_, err = svc.Create(ctx, agent, PropertyInput{Address: street, OpeningBid: ptr(-1.0)})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, agent, PropertyInput{Address: street, PropertyType: ptr(models.PropertyType("castle"))})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, viewer, PropertyInput{Address: street})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestPropertyEditOwnership(t *testing.T) {
	owner := agent.UserID
	repo := newMemProperties(&models.Property{Address: models.Address{Street: "1 A St"}, CreatedBy: &owner})
	svc := NewPropertyService(repo, seededUsers(), logging.Discard())
	ctx := context.Background()

	_, err := svc.Update(ctx, other, 1, PropertyInput{Description: ptr("x")})
	require.ErrorIs(t, err, ErrForbidden)

	p, err := svc.Update(ctx, agent, 1, PropertyInput{Bedrooms: ptr(4)})
	require.NoError(t, err)
	require.Equal(t, 4, *p.Bedrooms)
	require.Equal(t, "1 A St", p.Address.Street)

	require.ErrorIs(t, svc.Delete(ctx, other, 1), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, admin, 1))
	_, err = svc.Get(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAssignProperty(t *testing.T) {
	repo := newMemProperties(&models.Property{Address: models.Address{Street: "1 A St"}})
	svc := NewPropertyService(repo, seededUsers(), logging.Discard())
	ctx := context.Background()

	p, err := svc.Assign(ctx, 1, ptr(int64(2)), models.PriorityHigh)
	require.NoError(t, err)
	require.Equal(t, int64(2), *p.LeadInfo.AssignedTo)
	require.Equal(t, models.PriorityHigh, p.LeadInfo.Priority)

	_, err = svc.Assign(ctx, 1, ptr(int64(99)), "")
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Assign(ctx, 1, nil, models.LeadPriority("asap"))
	require.ErrorIs(t, err, ErrValidation)
}
