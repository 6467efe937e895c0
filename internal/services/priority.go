package services

import (
	"time"

	"reicrm/internal/models"
)

const (
	urgentWindow    = 7 * 24 * time.Hour
	highWindow      = 30 * 24 * time.Hour
	highEquityRatio = 30.0
)

// LeadPriorityFor scores a property by auction proximity and equity.
// Auctions already in the past do not count as upcoming.
func LeadPriorityFor(p *models.Property, now time.Time) models.LeadPriority {
	upcoming := p.AuctionDate != nil && !p.AuctionDate.Before(now)
	if upcoming {
		until := p.AuctionDate.Sub(now)
		if until <= urgentWindow {
			return models.PriorityUrgent
		}
		if until <= highWindow {
			return models.PriorityHigh
		}
	}
	if equity, ok := p.EquityPercent(); ok && equity >= highEquityRatio {
		return models.PriorityHigh
	}
	if !upcoming && p.EstimatedValue == nil && p.TaxAssessedValue == nil && p.ListPrice == nil {
		return models.PriorityLow
	}
	return models.PriorityMedium
}
