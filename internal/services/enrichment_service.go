package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"reicrm/internal/config"
	"reicrm/internal/finance"
	"reicrm/internal/models"
	"reicrm/internal/repositories"
)

type EnrichStats struct {
	Selected      int `json:"selected"`
	Geocoded      int `json:"geocoded"`
	Valued        int `json:"valued"`
	LeadsRescored int `json:"leadsRescored"`
	GeocodeFailed int `json:"geocodeFailed"`
	Failed        int `json:"failed"`
}

func (s EnrichStats) Map() map[string]any {
	return map[string]any{
		"selected":      s.Selected,
		"geocoded":      s.Geocoded,
		"valued":        s.Valued,
		"leadsRescored": s.LeadsRescored,
		"geocodeFailed": s.GeocodeFailed,
		"failed":        s.Failed,
	}
}

type EnrichmentService interface {
	Run(ctx context.Context) (EnrichStats, error)
}

type enrichmentService struct {
	properties repositories.PropertyRepository
	leads      repositories.LeadRepository
	geocoder   Geocoder
	cfg        config.EnrichmentConfig
	log        *slog.Logger
	now        func() time.Time
}

func NewEnrichmentService(properties repositories.PropertyRepository, leads repositories.LeadRepository, geocoder Geocoder, cfg config.EnrichmentConfig, logger *slog.Logger) EnrichmentService {
	return &enrichmentService{
		properties: properties,
		leads:      leads,
		geocoder:   geocoder,
		cfg:        cfg,
		log:        logger.With("component", "enrichment"),
		now:        time.Now,
	}
}

// Run enriches one batch of stale properties. Per-property failures are counted, not returned.
func (s *enrichmentService) Run(ctx context.Context) (EnrichStats, error) {
	var stats EnrichStats
	now := s.now()
	batch, err := s.properties.ListForEnrichment(ctx, now.Add(-s.cfg.StaleAfter), s.cfg.BatchSize)
	if err != nil {
		return stats, err
	}
	stats.Selected = len(batch)

	for _, p := range batch {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := s.enrich(ctx, p, now, &stats); err != nil {
			stats.Failed++
			s.log.Warn("property enrichment failed", "property_id", p.ID, "error", err)
		}
	}
	s.log.Info("enrichment finished", "selected", stats.Selected, "geocoded", stats.Geocoded,
		"valued", stats.Valued, "leads", stats.LeadsRescored, "geocode_failed", stats.GeocodeFailed, "failed", stats.Failed)
	return stats, nil
}

func (s *enrichmentService) enrich(ctx context.Context, p *models.Property, now time.Time, stats *EnrichStats) error {
	if p.Latitude == nil || p.Longitude == nil {
		if addr := p.Address.OneLine(); addr != "" {
			// A failed lookup still stamps last_enriched_at so the property
			// leaves the front of the queue until it goes stale again.
			c, found, err := s.geocoder.Geocode(ctx, addr)
			if err != nil {
				stats.GeocodeFailed++
				s.log.Warn("geocode failed", "property_id", p.ID, "error", err)
			} else if found {
				p.Latitude, p.Longitude = &c.Latitude, &c.Longitude
				stats.Geocoded++
			}
		}
	}

	if p.SquareFeet != nil && *p.SquareFeet > 0 {
		comps, err := s.properties.Comparables(ctx, p)
		if err != nil {
			return err
		}
		if v, ok := EstimateValue(comps, *p.SquareFeet, s.cfg.MinComparables); ok {
			p.EstimatedValue = &v
			stats.Valued++
		}
	}

	p.LeadInfo.Priority = LeadPriorityFor(p, now)
	stamp := now.UTC()
	p.LastEnrichedAt = &stamp
	if err := s.properties.UpdateEnrichment(ctx, p); err != nil {
		return err
	}

	leads, err := s.leads.ListByProperty(ctx, p.ID)
	if err != nil {
		return err
	}
	for _, l := range leads {
		if l.Status != models.LeadNew && l.Status != models.LeadContacted {
			continue
		}
		if l.Priority == p.LeadInfo.Priority {
			continue
		}
		if err := s.leads.UpdatePriority(ctx, l.ID, p.LeadInfo.Priority); err != nil {
			return err
		}
		stats.LeadsRescored++
	}
	return nil
}

// EstimateValue is the median price per square foot of the comparables times sqft.
func EstimateValue(comps []repositories.Comparable, sqft, minComps int) (float64, bool) {
	perSqft := make([]float64, 0, len(comps))
	for _, c := range comps {
		if c.SquareFeet > 0 && c.ListPrice > 0 {
			perSqft = append(perSqft, c.ListPrice/float64(c.SquareFeet))
		}
	}
	if minComps < 1 {
		minComps = 1
	}
	if len(perSqft) < minComps || sqft <= 0 {
		return 0, false
	}
	sort.Float64s(perSqft)
	n := len(perSqft)
	median := perSqft[n/2]
	if n%2 == 0 {
		median = (perSqft[n/2-1] + perSqft[n/2]) / 2
	}
	return finance.Round2(median * float64(sqft)), true
}
