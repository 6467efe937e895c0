package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reicrm/internal/models"
	"reicrm/internal/repositories"
)

type stubReports struct {
	totals    repositories.LeadTotals
	agents    []models.AgentPerformance
	auctions  int
	visibleTo *int64
	since     time.Time
}

func (r *stubReports) LeadTotals(_ context.Context, visibleTo *int64, since time.Time) (repositories.LeadTotals, error) {
	r.visibleTo, r.since = visibleTo, since
	return r.totals, nil
}

func (r *stubReports) UpcomingAuctions(context.Context, time.Time, time.Time) (int, error) {
	return r.auctions, nil
}

func (r *stubReports) AgentPerformance(context.Context) ([]models.AgentPerformance, error) {
	return r.agents, nil
}

func newDashboard(reports *stubReports) *reportService {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	leads := newMemLeads(
		&models.Lead{CreatedBy: 2, Status: models.LeadNew, Source: models.LeadSourceReferral},
		&models.Lead{CreatedBy: 3, AssignedTo: ptr(int64(2)), Status: models.LeadClosedWon, Source: models.LeadSourceWebsite},
		&models.Lead{CreatedBy: 3, Status: models.LeadClosedLost, Source: models.LeadSourceWebsite},
	)
	props := newMemProperties(&models.Property{}, &models.Property{}, &models.Property{})
	analyses := &memAnalyses{byID: map[int64]*models.Analysis{
		1: {ID: 1, CreatedBy: 2},
		2: {ID: 2, CreatedBy: 3},
	}}
	svc := NewReportService(reports, leads, props, analyses).(*reportService)
	svc.now = fixedNow(now)
	return svc
}

func TestDashboardAgentScope(t *testing.T) {
	reports := &stubReports{
		totals:   repositories.LeadTotals{Total: 2, Won: 1, Lost: 2, PipelineValue: 1234.567, NewSince: 1},
		auctions: 4,
	}
	svc := newDashboard(reports)

	rep, err := svc.Dashboard(context.Background(), agent)
	require.NoError(t, err)
	require.Equal(t, ptr(int64(2)), reports.visibleTo)
	require.Equal(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), reports.since)

	require.Equal(t, 2, rep.TotalLeads)
	require.Equal(t, 33.33, rep.ConversionRate)
	require.Equal(t, 1234.57, rep.PipelineValue)
	require.Equal(t, 1, rep.NewLeadsLast30)
	require.Equal(t, 1, rep.TotalAnalyses)
	require.Equal(t, map[models.LeadStatus]int{models.LeadNew: 1, models.LeadClosedWon: 1}, rep.LeadsByStatus)
	require.Equal(t, map[models.LeadSource]int{models.LeadSourceReferral: 1, models.LeadSourceWebsite: 1}, rep.LeadsBySource)

	// property figures are not scoped per agent
	require.Equal(t, 3, rep.TotalProperties)
	require.Equal(t, 4, rep.UpcomingAuctions)
}

func TestDashboardAdminSeesEverything(t *testing.T) {
	reports := &stubReports{totals: repositories.LeadTotals{Total: 3}}
	svc := newDashboard(reports)

	rep, err := svc.Dashboard(context.Background(), admin)
	require.NoError(t, err)
	require.Nil(t, reports.visibleTo)
	require.Equal(t, 3, rep.TotalLeads)
	require.Equal(t, 2, rep.TotalAnalyses)
	require.Equal(t, 3, rep.TotalProperties)
	require.Zero(t, rep.ConversionRate)
	require.Len(t, rep.LeadsByStatus, 3)
}

func TestAgentsReportRoundsConversion(t *testing.T) {
	reports := &stubReports{agents: []models.AgentPerformance{
		{UserID: 2, Won: 2, Lost: 1, ConversionRate: models.ConversionRate(2, 1)},
		{UserID: 3},
	}}
	out, err := NewReportService(reports, nil, nil, nil).Agents(context.Background())
	require.NoError(t, err)
	require.Equal(t, 66.67, out[0].ConversionRate)
	require.Zero(t, out[1].ConversionRate)
}

func TestExportLeadsCSV(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	follow := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	leads := newMemLeads(
		&models.Lead{LeadID: "L-1", FirstName: "Ann", LastName: "Oak", CreatedBy: 2, Status: models.LeadNew,
			Priority: models.PriorityHigh, Source: models.LeadSourceReferral, PropertyID: ptr(int64(7)),
			EstimatedValue: ptr(125000.5), FollowUpDate: &follow, Tags: []string{"vip", "probate"}, CreatedAt: created},
		&models.Lead{LeadID: "L-2", CreatedBy: 3, Status: models.LeadNew},
	)
	svc := NewReportService(nil, leads, newMemProperties(), nil)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportLeads(context.Background(), agent, models.LeadFilter{}, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, leadCSVHeader, rows[0])
	require.Equal(t, []string{
		"L-1", "Ann", "Oak", "", "", "new", "high", "referral",
		"7", "", "125000.5", "2026-01-09", "vip;probate", "2026-01-02T03:04:05Z",
	}, rows[1])
}

func TestExportPropertiesCSV(t *testing.T) {
	props := newMemProperties(
		&models.Property{Address: models.Address{Street: "1 Main St", City: "Miami", State: "FL"},
			PropertyType: models.PropertyCondo, Status: models.PropertyActive, Bedrooms: ptr(3),
			ListPrice: ptr(250000.0), Source: models.SourceManual},
	)
	svc := NewReportService(nil, newMemLeads(), props, nil)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportProperties(context.Background(), models.PropertyFilter{}, &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, propertyCSVHeader, rows[0])
	require.Equal(t, "1", rows[1][0])
	require.Equal(t, "condo", rows[1][6])
	require.Equal(t, "3", rows[1][8])
	require.Equal(t, "250000", rows[1][11])
	require.Equal(t, "manual", rows[1][16])
}
