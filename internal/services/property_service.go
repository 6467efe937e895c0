package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reicrm/internal/models"
	"reicrm/internal/repositories"
)

type AddressInput struct {
	Street  *string `json:"street"`
	City    *string `json:"city"`
	State   *string `json:"state"`
	ZipCode *string `json:"zipCode"`
	County  *string `json:"county"`
}

// PropertyInput is used for create and partial update; nil fields are left untouched.
type PropertyInput struct {
	Address          *AddressInput          `json:"address"`
	Latitude         *float64               `json:"latitude"`
	Longitude        *float64               `json:"longitude"`
	PropertyType     *models.PropertyType   `json:"propertyType"`
	Status           *models.PropertyStatus `json:"status"`
	Bedrooms         *int                   `json:"bedrooms"`
	Bathrooms        *float64               `json:"bathrooms"`
	SquareFeet       *int                   `json:"squareFeet"`
	LotSize          *float64               `json:"lotSize"`
	YearBuilt        *int                   `json:"yearBuilt"`
	ListPrice        *float64               `json:"listPrice"`
	EstimatedValue   *float64               `json:"estimatedValue"`
	TaxAssessedValue *float64               `json:"taxAssessedValue"`
	OpeningBid       *float64               `json:"openingBid"`
	AuctionDate      *time.Time             `json:"auctionDate"`
	CaseNumber       *string                `json:"caseNumber"`
	ParcelID         *string                `json:"parcelId"`
	SourceURL        *string                `json:"sourceUrl"`
	Description      *string                `json:"description"`
}

func setTrimmed(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func nonNegative(name string, v *float64) error {
	if v != nil && *v < 0 {
		return invalidf("%s cannot be negative", name)
	}
	return nil
}

func (in PropertyInput) apply(p *models.Property) error {
	if a := in.Address; a != nil {
		setTrimmed(&p.Address.Street, a.Street)
		setTrimmed(&p.Address.City, a.City)
		setTrimmed(&p.Address.State, a.State)
		setTrimmed(&p.Address.ZipCode, a.ZipCode)
		setTrimmed(&p.Address.County, a.County)
	}
	if in.PropertyType != nil {
		if !in.PropertyType.Valid() {
			return invalidf("unknown propertyType %q", *in.PropertyType)
		}
		p.PropertyType = *in.PropertyType
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return invalidf("unknown status %q", *in.Status)
		}
		p.Status = *in.Status
	}
	for name, v := range map[string]*float64{
		"listPrice":        in.ListPrice,
		"estimatedValue":   in.EstimatedValue,
		"taxAssessedValue": in.TaxAssessedValue,
		"openingBid":       in.OpeningBid,
		"bathrooms":        in.Bathrooms,
		"lotSize":          in.LotSize,
	} {
		if err := nonNegative(name, v); err != nil {
			return err
		}
	}
	if in.Bedrooms != nil && *in.Bedrooms < 0 {
		return invalidf("bedrooms cannot be negative")
	}
	if in.SquareFeet != nil && *in.SquareFeet < 0 {
		return invalidf("squareFeet cannot be negative")
	}

	if in.Latitude != nil {
		p.Latitude = in.Latitude
	}
	if in.Longitude != nil {
		p.Longitude = in.Longitude
	}
	if in.Bedrooms != nil {
		p.Bedrooms = in.Bedrooms
	}
	if in.Bathrooms != nil {
		p.Bathrooms = in.Bathrooms
	}
	if in.SquareFeet != nil {
		p.SquareFeet = in.SquareFeet
	}
	if in.LotSize != nil {
		p.LotSize = in.LotSize
	}
	if in.YearBuilt != nil {
		p.YearBuilt = in.YearBuilt
	}
	if in.ListPrice != nil {
		p.ListPrice = in.ListPrice
	}
	if in.EstimatedValue != nil {
		p.EstimatedValue = in.EstimatedValue
	}
	if in.TaxAssessedValue != nil {
		p.TaxAssessedValue = in.TaxAssessedValue
	}
	if in.OpeningBid != nil {
		p.OpeningBid = in.OpeningBid
	}
	if in.AuctionDate != nil {
		p.AuctionDate = in.AuctionDate
	}
	setTrimmed(&p.CaseNumber, in.CaseNumber)
	setTrimmed(&p.ParcelID, in.ParcelID)
	setTrimmed(&p.SourceURL, in.SourceURL)
	if in.Description != nil {
		p.Description = *in.Description
	}

	if p.Address.Street == "" {
		return invalidf("address.street is required")
	}
	return nil
}

type PropertyService interface {
	List(ctx context.Context, filter models.PropertyFilter, page models.Page, sort models.Sort) (models.ListResult[*models.Property], error)
	Stats(ctx context.Context) (*models.PropertyStats, error)
	Get(ctx context.Context, id int64) (*models.Property, error)
	Create(ctx context.Context, actor Actor, in PropertyInput) (*models.Property, error)
	Update(ctx context.Context, actor Actor, id int64, in PropertyInput) (*models.Property, error)
	Delete(ctx context.Context, actor Actor, id int64) error
	Assign(ctx context.Context, id int64, assignedTo *int64, priority models.LeadPriority) (*models.Property, error)
}

type propertyService struct {
	repo  repositories.PropertyRepository
	users repositories.UserRepository
	log   *slog.Logger
	now   func() time.Time
}

func NewPropertyService(repo repositories.PropertyRepository, users repositories.UserRepository, logger *slog.Logger) PropertyService {
	return &propertyService{repo: repo, users: users, log: logger.With("component", "properties"), now: time.Now}
}

func (s *propertyService) List(ctx context.Context, filter models.PropertyFilter, page models.Page, sort models.Sort) (models.ListResult[*models.Property], error) {
	items, total, err := s.repo.List(ctx, filter, page, sort)
	if err != nil {
		return models.ListResult[*models.Property]{}, err
	}
	return models.ListResult[*models.Property]{Data: items, Pagination: models.NewPagination(page, total)}, nil
}

func (s *propertyService) Stats(ctx context.Context) (*models.PropertyStats, error) {
	return s.repo.Stats(ctx, s.now())
}

func (s *propertyService) Get(ctx context.Context, id int64) (*models.Property, error) {
	return s.repo.GetByID(ctx, id)
}

func canEditProperty(actor Actor, p *models.Property) bool {
	if actor.ReadOnly() {
		return false
	}
	if actor.Elevated() {
		return true
	}
	return p.CreatedBy != nil && *p.CreatedBy == actor.UserID
}

func (s *propertyService) Create(ctx context.Context, actor Actor, in PropertyInput) (*models.Property, error) {
	if actor.ReadOnly() {
		return nil, ErrForbidden
	}
	creator := actor.UserID
	p := &models.Property{
		PropertyType: models.PropertySingleFamily,
		Status:       models.PropertyActive,
		Source:       models.SourceManual,
		CreatedBy:    &creator,
	}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: property with this case number already exists", ErrConflict)
		}
		return nil, err
	}
	s.log.Info("property created", "property_id", p.ID, "by", actor.UserID)
	return p, nil
}

func (s *propertyService) Update(ctx context.Context, actor Actor, id int64, in PropertyInput) (*models.Property, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canEditProperty(actor, p) {
		return nil, ErrForbidden
	}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: property with this case number already exists", ErrConflict)
		}
		return nil, err
	}
	return p, nil
}

func (s *propertyService) Delete(ctx context.Context, actor Actor, id int64) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !canEditProperty(actor, p) {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("property deleted", "property_id", id, "by", actor.UserID)
	return nil
}

func (s *propertyService) Assign(ctx context.Context, id int64, assignedTo *int64, priority models.LeadPriority) (*models.Property, error) {
	if priority != "" && !priority.Valid() {
		return nil, invalidf("unknown priority %q", priority)
	}
	if assignedTo != nil {
		if _, err := s.users.GetByID(ctx, *assignedTo); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, invalidf("assignee %d does not exist", *assignedTo)
			}
			return nil, err
		}
	}
	if err := s.repo.Assign(ctx, id, assignedTo, priority); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}
