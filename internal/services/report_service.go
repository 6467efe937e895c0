package services

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"reicrm/internal/finance"
	"reicrm/internal/models"
	"reicrm/internal/repositories"
)

// exportPageSize bounds each page fetched while streaming a CSV export.
const exportPageSize = 500

type ReportService interface {
	Dashboard(ctx context.Context, actor Actor) (*models.DashboardReport, error)
	Leads(ctx context.Context, actor Actor, filter models.LeadFilter, page models.Page, sort models.Sort) (*models.LeadReport, error)
	Agents(ctx context.Context) ([]models.AgentPerformance, error)
	ExportLeads(ctx context.Context, actor Actor, filter models.LeadFilter, w io.Writer) error
	ExportProperties(ctx context.Context, filter models.PropertyFilter, w io.Writer) error
}

type reportService struct {
	reports    repositories.ReportRepository
	leads      repositories.LeadRepository
	properties repositories.PropertyRepository
	analyses   repositories.AnalysisRepository
	now        func() time.Time
}

func NewReportService(reports repositories.ReportRepository, leads repositories.LeadRepository, properties repositories.PropertyRepository, analyses repositories.AnalysisRepository) ReportService {
	return &reportService{reports: reports, leads: leads, properties: properties, analyses: analyses, now: time.Now}
}

func (s *reportService) Dashboard(ctx context.Context, actor Actor) (*models.DashboardReport, error) {
	now := s.now()
	scope := actor.scope()

	totals, err := s.reports.LeadTotals(ctx, scope, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}
	filter := models.LeadFilter{VisibleTo: scope}
	byStatus, err := s.leads.CountByStatus(ctx, filter)
	if err != nil {
		return nil, err
	}
	bySource, err := s.leads.CountBySource(ctx, filter)
	if err != nil {
		return nil, err
	}
	props, err := s.properties.Count(ctx)
	if err != nil {
		return nil, err
	}
	analyses, err := s.analyses.Count(ctx, scope)
	if err != nil {
		return nil, err
	}
	auctions, err := s.reports.UpcomingAuctions(ctx, now, now.AddDate(0, 0, 30))
	if err != nil {
		return nil, err
	}

	return &models.DashboardReport{
		TotalProperties:  props,
		TotalLeads:       totals.Total,
		TotalAnalyses:    analyses,
		LeadsByStatus:    byStatus,
		LeadsBySource:    bySource,
		ConversionRate:   finance.Round2(models.ConversionRate(totals.Won, totals.Lost)),
		PipelineValue:    finance.Round2(totals.PipelineValue),
		NewLeadsLast30:   totals.NewSince,
		UpcomingAuctions: auctions,
	}, nil
}

func (s *reportService) Leads(ctx context.Context, actor Actor, filter models.LeadFilter, page models.Page, sort models.Sort) (*models.LeadReport, error) {
	filter.VisibleTo = actor.scope()
	items, total, err := s.leads.List(ctx, filter, page, sort)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.leads.CountByStatus(ctx, filter)
	if err != nil {
		return nil, err
	}
	bySource, err := s.leads.CountBySource(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &models.LeadReport{
		Leads:      items,
		Pagination: models.NewPagination(page, total),
		ByStatus:   byStatus,
		BySource:   bySource,
	}, nil
}

func (s *reportService) Agents(ctx context.Context) ([]models.AgentPerformance, error) {
	out, err := s.reports.AgentPerformance(ctx)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].ConversionRate = finance.Round2(out[i].ConversionRate)
	}
	return out, nil
}

var leadCSVHeader = []string{
	"lead_id", "first_name", "last_name", "email", "phone", "status", "priority", "source",
	"property_id", "assigned_to", "estimated_value", "follow_up_date", "tags", "created_at",
}

func (s *reportService) ExportLeads(ctx context.Context, actor Actor, filter models.LeadFilter, w io.Writer) error {
	filter.VisibleTo = actor.scope()
	cw := csv.NewWriter(w)
	if err := cw.Write(leadCSVHeader); err != nil {
		return err
	}
	for page := 1; ; page++ {
		items, total, err := s.leads.List(ctx, filter, models.Page{Page: page, Limit: exportPageSize}, models.Sort{Column: "created_at"})
		if err != nil {
			return err
		}
		for _, l := range items {
			rec := []string{
				l.LeadID, l.FirstName, l.LastName, l.Email, l.Phone,
				string(l.Status), string(l.Priority), string(l.Source),
				optInt(l.PropertyID), optInt(l.AssignedTo), optFloat(l.EstimatedValue),
				optDate(l.FollowUpDate), strings.Join(l.Tags, ";"), l.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		if page*exportPageSize >= total || len(items) == 0 {
			break
		}
	}
	cw.Flush()
	return cw.Error()
}

var propertyCSVHeader = []string{
	"id", "street", "city", "state", "zip_code", "county", "property_type", "status",
	"bedrooms", "bathrooms", "square_feet", "list_price", "estimated_value", "opening_bid",
	"auction_date", "case_number", "source", "created_at",
}

func (s *reportService) ExportProperties(ctx context.Context, filter models.PropertyFilter, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(propertyCSVHeader); err != nil {
		return err
	}
	for page := 1; ; page++ {
		items, total, err := s.properties.List(ctx, filter, models.Page{Page: page, Limit: exportPageSize}, models.Sort{Column: "created_at"})
		if err != nil {
			return err
		}
		for _, p := range items {
			rec := []string{
				strconv.FormatInt(p.ID, 10), p.Address.Street, p.Address.City, p.Address.State, p.Address.ZipCode, p.Address.County,
				string(p.PropertyType), string(p.Status),
				optIntVal(p.Bedrooms), optFloat(p.Bathrooms), optIntVal(p.SquareFeet),
				optFloat(p.ListPrice), optFloat(p.EstimatedValue), optFloat(p.OpeningBid),
				optDate(p.AuctionDate), p.CaseNumber, string(p.Source), p.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		if page*exportPageSize >= total || len(items) == 0 {
			break
		}
	}
	cw.Flush()
	return cw.Error()
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optIntVal(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func optDate(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format(time.DateOnly)
}
