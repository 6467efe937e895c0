package models

import (
	"fmt"
	"strings"
	"time"
)

type PropertyType string

const (
	PropertySingleFamily PropertyType = "single_family"
	PropertyMultiFamily  PropertyType = "multi_family"
	PropertyCondo        PropertyType = "condo"
	PropertyTownhouse    PropertyType = "townhouse"
	PropertyLand         PropertyType = "land"
	PropertyCommercial   PropertyType = "commercial"
)

func (t PropertyType) Valid() bool {
	switch t {
	case PropertySingleFamily, PropertyMultiFamily, PropertyCondo, PropertyTownhouse, PropertyLand, PropertyCommercial:
		return true
	}
	return false
}

type PropertyStatus string

const (
	PropertyActive      PropertyStatus = "active"
	PropertyPending     PropertyStatus = "pending"
	PropertySold        PropertyStatus = "sold"
	PropertyOffMarket   PropertyStatus = "off_market"
	PropertyForeclosure PropertyStatus = "foreclosure"
	PropertyAuction     PropertyStatus = "auction"
)

func (s PropertyStatus) Valid() bool {
	switch s {
	case PropertyActive, PropertyPending, PropertySold, PropertyOffMarket, PropertyForeclosure, PropertyAuction:
		return true
	}
	return false
}

type PropertySource string

const (
	SourceManual  PropertySource = "manual"
	SourceScraper PropertySource = "scraper"
	SourceImport  PropertySource = "import"
)

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	County  string `json:"county,omitempty"`
}

// OneLine renders "street, city, ST zip", skipping empty parts.
func (a Address) OneLine() string {
	parts := []string{}
	if s := strings.TrimSpace(a.Street); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(a.City); s != "" {
		parts = append(parts, s)
	}
	tail := strings.TrimSpace(fmt.Sprintf("%s %s", a.State, a.ZipCode))
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ", ")
}

// LeadInfo is the lead-tracking block embedded in a property.
type LeadInfo struct {
	AssignedTo *int64       `json:"assignedTo,omitempty"`
	Priority   LeadPriority `json:"priority,omitempty"`
	Status     LeadStatus   `json:"status,omitempty"`
}

type Property struct {
	ID               int64          `json:"id"`
	Address          Address        `json:"address"`
	Latitude         *float64       `json:"latitude,omitempty"`
	Longitude        *float64       `json:"longitude,omitempty"`
	PropertyType     PropertyType   `json:"propertyType"`
	Status           PropertyStatus `json:"status"`
	Bedrooms         *int           `json:"bedrooms,omitempty"`
	Bathrooms        *float64       `json:"bathrooms,omitempty"`
	SquareFeet       *int           `json:"squareFeet,omitempty"`
	LotSize          *float64       `json:"lotSize,omitempty"`
	YearBuilt        *int           `json:"yearBuilt,omitempty"`
	ListPrice        *float64       `json:"listPrice,omitempty"`
	EstimatedValue   *float64       `json:"estimatedValue,omitempty"`
	TaxAssessedValue *float64       `json:"taxAssessedValue,omitempty"`
	OpeningBid       *float64       `json:"openingBid,omitempty"`
	AuctionDate      *time.Time     `json:"auctionDate,omitempty"`
	CaseNumber       string         `json:"caseNumber,omitempty"`
	ParcelID         string         `json:"parcelId,omitempty"`
	Source           PropertySource `json:"source"`
	SourceURL        string         `json:"sourceUrl,omitempty"`
	LeadInfo         LeadInfo       `json:"leadInfo"`
	Description      string         `json:"description,omitempty"`
	CreatedBy        *int64         `json:"createdBy,omitempty"`
	LastEnrichedAt   *time.Time     `json:"lastEnrichedAt,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// EquityPercent is (estimated - opening bid) / estimated, or false when unknown.
func (p *Property) EquityPercent() (float64, bool) {
	if p.EstimatedValue == nil || *p.EstimatedValue <= 0 || p.OpeningBid == nil {
		return 0, false
	}
	return (*p.EstimatedValue - *p.OpeningBid) / *p.EstimatedValue * 100, true
}

type PropertyFilter struct {
	Status       *PropertyStatus
	PropertyType *PropertyType
	City         string
	State        string
	ZipCode      string
	County       string
	Source       *PropertySource
	AssignedTo   *int64
	MinPrice     *float64
	MaxPrice     *float64
	MinBeds      *int
	MinBaths     *float64
	AuctionFrom  *time.Time
	AuctionTo    *time.Time
	Search       string
}

type PropertyStats struct {
	Total            int                    `json:"total"`
	ByStatus         map[PropertyStatus]int `json:"byStatus"`
	ByType           map[PropertyType]int   `json:"byType"`
	AverageListPrice float64                `json:"averageListPrice"`
	UpcomingAuctions int                    `json:"upcomingAuctions"`
}
