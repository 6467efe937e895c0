package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"reicrm/internal/config"
	"reicrm/internal/models"
	"reicrm/internal/repositories"
	"reicrm/internal/scraper"
	"reicrm/internal/utils"
)

// ListingCollector is the scraping side of a run; *scraper.Collector implements it.
type ListingCollector interface {
	Sources() []config.ScraperSource
	Scrape(ctx context.Context, src config.ScraperSource) (scraper.Result, error)
}

type ScrapeStats struct {
	Sources      int      `json:"sources"`
	Pages        int      `json:"pages"`
	Found        int      `json:"found"`
	Created      int      `json:"created"`
	Updated      int      `json:"updated"`
	LeadsCreated int      `json:"leadsCreated"`
	Errors       []string `json:"errors"`
}

func (s ScrapeStats) Map() map[string]any {
	return map[string]any{
		"sources":      s.Sources,
		"pages":        s.Pages,
		"found":        s.Found,
		"created":      s.Created,
		"updated":      s.Updated,
		"leadsCreated": s.LeadsCreated,
		"errors":       s.Errors,
	}
}

type ScrapeService interface {
	Run(ctx context.Context) (ScrapeStats, error)
	Sources() []config.ScraperSource
}

type scrapeService struct {
	collector   ListingCollector
	properties  repositories.PropertyRepository
	leads       repositories.LeadRepository
	notifier    Notifier
	adminChatID int64
	log         *slog.Logger
	now         func() time.Time
}

func NewScrapeService(collector ListingCollector, properties repositories.PropertyRepository, leads repositories.LeadRepository, notifier Notifier, adminChatID int64, logger *slog.Logger) ScrapeService {
	return &scrapeService{
		collector:   collector,
		properties:  properties,
		leads:       leads,
		notifier:    notifier,
		adminChatID: adminChatID,
		log:         logger.With("component", "scrape"),
		now:         time.Now,
	}
}

func (s *scrapeService) Sources() []config.ScraperSource {
	return s.collector.Sources()
}

// Run processes every enabled source in order; a failing source is recorded and skipped.
func (s *scrapeService) Run(ctx context.Context) (ScrapeStats, error) {
	stats := ScrapeStats{Errors: []string{}}
	for _, src := range s.collector.Sources() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Sources++

		res, err := s.collector.Scrape(ctx, src)
		stats.Pages += res.Pages
		stats.Found += len(res.Listings)
		if err != nil {
			s.log.Error("source failed", "source", src.Name, "error", err)
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", src.Name, err))
		}

		for _, l := range res.Listings {
			created, leadCreated, err := s.ingest(ctx, l)
			if err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				s.log.Warn("listing not saved", "source", src.Name, "case_number", l.CaseNumber, "error", err)
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s %s: %v", src.Name, listingKey(l), err))
				continue
			}
			if created {
				stats.Created++
			} else {
				stats.Updated++
			}
			if leadCreated {
				stats.LeadsCreated++
			}
		}
		s.log.Info("source scraped", "source", src.Name, "pages", res.Pages, "listings", len(res.Listings))
	}

	s.notifySummary(stats)
	return stats, nil
}

func listingKey(l scraper.Listing) string {
	if l.CaseNumber != "" {
		return l.CaseNumber
	}
	if l.URL != "" {
		return l.URL
	}
	return l.Street
}

func (s *scrapeService) ingest(ctx context.Context, l scraper.Listing) (created, leadCreated bool, err error) {
	now := s.now()
	existing, err := s.properties.FindBySourceKey(ctx, l.CaseNumber, l.URL)
	switch {
	case err == nil:
		applyListing(existing, l)
		existing.LeadInfo.Priority = LeadPriorityFor(existing, now)
		return false, false, s.properties.Update(ctx, existing)
	case !errors.Is(err, repositories.ErrNotFound):
		return false, false, err
	}

	p := &models.Property{
		PropertyType: models.PropertySingleFamily,
		Status:       models.PropertyForeclosure,
		Source:       models.SourceScraper,
	}
	applyListing(p, l)
	priority := LeadPriorityFor(p, now)
	p.LeadInfo = models.LeadInfo{Priority: priority, Status: models.LeadNew}
	if err := s.properties.Create(ctx, p); err != nil {
		return false, false, err
	}

	lead := &models.Lead{
		LeadID:         utils.NewLeadID(),
		PropertyID:     &p.ID,
		Source:         models.LeadSourceForeclosure,
		Status:         models.LeadNew,
		Priority:       priority,
		Notes:          []models.LeadNote{},
		Tags:           []string{"foreclosure", strings.ToLower(l.Source)},
		EstimatedValue: p.TaxAssessedValue,
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		return true, false, fmt.Errorf("create lead for property %d: %w", p.ID, err)
	}
	return true, true, nil
}

// applyListing copies scraped fields over the property, keeping values the listing lacks.
func applyListing(p *models.Property, l scraper.Listing) {
	p.Address.Street = l.Street
	if l.City != "" {
		p.Address.City = l.City
	}
	if l.State != "" {
		p.Address.State = l.State
	}
	if l.ZipCode != "" {
		p.Address.ZipCode = l.ZipCode
	}
	if l.County != "" {
		p.Address.County = l.County
	}
	if l.CaseNumber != "" {
		p.CaseNumber = l.CaseNumber
	}
	if l.ParcelID != "" {
		p.ParcelID = l.ParcelID
	}
	if l.URL != "" {
		p.SourceURL = l.URL
	}
	if l.OpeningBid != nil {
		p.OpeningBid = l.OpeningBid
	}
	if l.AssessedValue != nil {
		p.TaxAssessedValue = l.AssessedValue
	}
	if l.PropertyType != "" {
		if t := models.PropertyType(l.PropertyType); t.Valid() {
			p.PropertyType = t
		}
	}
	if l.AuctionDate != nil {
		p.AuctionDate = l.AuctionDate
		if p.Status == models.PropertyForeclosure {
			p.Status = models.PropertyAuction
		}
	}
}

func (s *scrapeService) notifySummary(stats ScrapeStats) {
	if s.adminChatID == 0 {
		return
	}
	text := fmt.Sprintf(
		"<b>Foreclosure scrape finished</b>\nSources: %d, pages: %d\nFound: %d (new %d, updated %d)\nNew leads: %d",
		stats.Sources, stats.Pages, stats.Found, stats.Created, stats.Updated, stats.LeadsCreated,
	)
	if n := len(stats.Errors); n > 0 {
		text += fmt.Sprintf("\nErrors: %d\n%s", n, html.EscapeString(stats.Errors[0]))
	}
	if err := s.notifier.Notify(s.adminChatID, text); err != nil {
		s.log.Warn("scrape summary not delivered", "error", err)
	}
}
