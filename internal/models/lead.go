package models

import (
	"strings"
	"time"
)

type LeadStatus string

const (
	LeadNew           LeadStatus = "new"
	LeadContacted     LeadStatus = "contacted"
	LeadQualified     LeadStatus = "qualified"
	LeadNegotiating   LeadStatus = "negotiating"
	LeadUnderContract LeadStatus = "under_contract"
	LeadClosedWon     LeadStatus = "closed_won"
	LeadClosedLost    LeadStatus = "closed_lost"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadNew, LeadContacted, LeadQualified, LeadNegotiating, LeadUnderContract, LeadClosedWon, LeadClosedLost:
		return true
	}
	return false
}

func (s LeadStatus) Closed() bool {
	return s == LeadClosedWon || s == LeadClosedLost
}

type LeadSource string

const (
	LeadSourceWebsite     LeadSource = "website"
	LeadSourceReferral    LeadSource = "referral"
	LeadSourceColdCall    LeadSource = "cold_call"
	LeadSourceDirectMail  LeadSource = "direct_mail"
	LeadSourceForeclosure LeadSource = "foreclosure_scraper"
	LeadSourceManual      LeadSource = "manual"
)

func (s LeadSource) Valid() bool {
	switch s {
	case LeadSourceWebsite, LeadSourceReferral, LeadSourceColdCall, LeadSourceDirectMail, LeadSourceForeclosure, LeadSourceManual:
		return true
	}
	return false
}

type LeadPriority string

const (
	PriorityLow    LeadPriority = "low"
	PriorityMedium LeadPriority = "medium"
	PriorityHigh   LeadPriority = "high"
	PriorityUrgent LeadPriority = "urgent"
)

func (p LeadPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type LeadNote struct {
	Text      string    `json:"text"`
	AuthorID  int64     `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Lead struct {
	ID              int64        `json:"id"`
	LeadID          string       `json:"leadId"`
	FirstName       string       `json:"firstName"`
	LastName        string       `json:"lastName"`
	Email           string       `json:"email,omitempty"`
	Phone           string       `json:"phone,omitempty"`
	PropertyID      *int64       `json:"propertyId,omitempty"`
	Source          LeadSource   `json:"source"`
	Status          LeadStatus   `json:"status"`
	Priority        LeadPriority `json:"priority"`
	AssignedTo      *int64       `json:"assignedTo,omitempty"`
	Notes           []LeadNote   `json:"notes"`
	Tags            []string     `json:"tags"`
	FollowUpDate    *time.Time   `json:"followUpDate,omitempty"`
	LastContactedAt *time.Time   `json:"lastContactedAt,omitempty"`
	EstimatedValue  *float64     `json:"estimatedValue,omitempty"`
	CreatedBy       int64        `json:"createdBy"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

func (l *Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// VisibleTo reports whether a non-elevated user may see the lead.
func (l *Lead) VisibleTo(userID int64) bool {
	if l.CreatedBy == userID {
		return true
	}
	return l.AssignedTo != nil && *l.AssignedTo == userID
}

type LeadFilter struct {
	Status         *LeadStatus
	Source         *LeadSource
	Priority       *LeadPriority
	AssignedTo     *int64
	PropertyID     *int64
	Tag            string
	FollowUpBefore *time.Time
	OpenOnly       bool
	Search         string
	// VisibleTo limits results to leads created by or assigned to the user.
	VisibleTo *int64
}
