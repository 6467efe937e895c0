package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"reicrm/internal/finance"
	"reicrm/internal/logging"
	"reicrm/internal/models"
	"reicrm/internal/pdf"
)

type memAnalyses struct {
	byID map[int64]*models.Analysis
}

func (m *memAnalyses) Create(_ context.Context, a *models.Analysis) error {
	a.ID = int64(len(m.byID) + 1)
	cp := *a
	m.byID[a.ID] = &cp
	return nil
}

func (m *memAnalyses) GetByID(_ context.Context, id int64) (*models.Analysis, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAnalyses) Update(_ context.Context, a *models.Analysis) error {
	cp := *a
	m.byID[a.ID] = &cp
	return nil
}

func (m *memAnalyses) Delete(_ context.Context, id int64) error {
	delete(m.byID, id)
	return nil
}

func (m *memAnalyses) List(_ context.Context, filter models.AnalysisFilter, _ models.Page) ([]*models.Analysis, int, error) {
	out := []*models.Analysis{}
	for _, a := range m.byID {
		if filter.CreatedBy != nil && a.CreatedBy != *filter.CreatedBy {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *memAnalyses) Count(_ context.Context, createdBy *int64) (int, error) {
	n := 0
	for _, a := range m.byID {
		if createdBy == nil || a.CreatedBy == *createdBy {
			n++
		}
	}
	return n, nil
}

type capturePDF struct{ data pdf.ReportData }

func (c *capturePDF) AnalysisReport(data pdf.ReportData) ([]byte, error) {
	c.data = data
	return []byte("%PDF-1.3"), nil
}

var rentalInputs = finance.Inputs{
	PurchasePrice: 200000, DownPaymentPercent: 20, InterestRate: 6, LoanTermYears: 30, MonthlyRent: 2000,
}

func newAnalyses() (*analysisService, *memAnalyses, *capturePDF) {
	repo := &memAnalyses{byID: map[int64]*models.Analysis{}}
	props := newMemProperties(&models.Property{Address: models.Address{Street: "1 A St"}})
	gen := &capturePDF{}
	return NewAnalysisService(repo, props, gen, logging.Discard()).(*analysisService), repo, gen
}

func TestCalculateMapsInputErrors(t *testing.T) {
	svc, _, _ := newAnalyses()

	_, err := svc.Calculate(finance.TypeRental, finance.Inputs{})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "purchasePrice must be positive", ValidationMessage(err))

	res, err := svc.Calculate(finance.TypeRental, rentalInputs)
	require.NoError(t, err)
	require.Equal(t, 160000.0, res.LoanAmount)
}

func TestAnalysisLifecycle(t *testing.T) {
	svc, _, gen := newAnalyses()
	ctx := context.Background()

	_, err := svc.Create(ctx, agent, AnalysisInput{PropertyID: 42, Type: finance.TypeRental, Inputs: rentalInputs})
	require.ErrorIs(t, err, ErrValidation)

	a, err := svc.Create(ctx, agent, AnalysisInput{PropertyID: 1, Name: " Base case ", Type: finance.TypeRental, Inputs: rentalInputs})
	require.NoError(t, err)
	require.Equal(t, "Base case", a.Name)
	require.Equal(t, agent.UserID, a.CreatedBy)

	_, err = svc.Get(ctx, other, a.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Get(ctx, viewer, a.ID)
	require.NoError(t, err)

	in := rentalInputs
	in.PurchasePrice = 100000
	a, err = svc.Update(ctx, agent, a.ID, AnalysisInput{Inputs: in})
	require.NoError(t, err)
	require.Equal(t, finance.TypeRental, a.Type)
	require.Equal(t, 80000.0, a.Results.LoanAmount)
	require.Equal(t, "Base case", a.Name)

	sched, err := svc.Amortization(ctx, agent, a.ID)
	require.NoError(t, err)
	require.Len(t, sched.Months, 360)

	out, err := svc.Report(ctx, agent, a.ID)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.3", string(out))
	require.Equal(t, "1 A St", gen.data.Property.Address.Street)

	list, err := svc.List(ctx, other, models.AnalysisFilter{}, models.Page{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Empty(t, list.Data)

	require.ErrorIs(t, svc.Delete(ctx, viewer, a.ID), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, agent, a.ID))
}
