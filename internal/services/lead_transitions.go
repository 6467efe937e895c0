package services

import "reicrm/internal/models"

// LeadTransitions lists the allowed next statuses for each lead status.
var LeadTransitions = map[models.LeadStatus]map[models.LeadStatus]bool{
	models.LeadNew:           {models.LeadContacted: true, models.LeadQualified: true, models.LeadClosedLost: true},
	models.LeadContacted:     {models.LeadQualified: true, models.LeadNegotiating: true, models.LeadClosedLost: true},
	models.LeadQualified:     {models.LeadNegotiating: true, models.LeadClosedLost: true},
	models.LeadNegotiating:   {models.LeadUnderContract: true, models.LeadClosedLost: true},
	models.LeadUnderContract: {models.LeadClosedWon: true, models.LeadClosedLost: true},
	models.LeadClosedLost:    {models.LeadNew: true}, // reopen
	models.LeadClosedWon:     {},
}

func canTransition(current, to models.LeadStatus) bool {
	if current == "" {
		return true
	}
	nexts, ok := LeadTransitions[current]
	if !ok {
		return false
	}
	return nexts[to]
}
