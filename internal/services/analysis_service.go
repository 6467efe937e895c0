package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"reicrm/internal/finance"
	"reicrm/internal/models"
	"reicrm/internal/pdf"
	"reicrm/internal/repositories"
)

type AnalysisInput struct {
	PropertyID int64                `json:"propertyId"`
	Name       string               `json:"name"`
	Type       finance.AnalysisType `json:"type" binding:"required"`
	Inputs     finance.Inputs       `json:"inputs"`
	Notes      string               `json:"notes"`
}

type AnalysisService interface {
	Calculate(t finance.AnalysisType, in finance.Inputs) (finance.Results, error)
	List(ctx context.Context, actor Actor, filter models.AnalysisFilter, page models.Page) (models.ListResult[*models.Analysis], error)
	Get(ctx context.Context, actor Actor, id int64) (*models.Analysis, error)
	Create(ctx context.Context, actor Actor, in AnalysisInput) (*models.Analysis, error)
	Update(ctx context.Context, actor Actor, id int64, in AnalysisInput) (*models.Analysis, error)
	Delete(ctx context.Context, actor Actor, id int64) error
	Amortization(ctx context.Context, actor Actor, id int64) (finance.AmortizationSchedule, error)
	Report(ctx context.Context, actor Actor, id int64) ([]byte, error)
}

type analysisService struct {
	repo       repositories.AnalysisRepository
	properties repositories.PropertyRepository
	pdf        pdf.Generator
	log        *slog.Logger
	now        func() time.Time
}

func NewAnalysisService(repo repositories.AnalysisRepository, properties repositories.PropertyRepository, gen pdf.Generator, logger *slog.Logger) AnalysisService {
	return &analysisService{
		repo:       repo,
		properties: properties,
		pdf:        gen,
		log:        logger.With("component", "analysis"),
		now:        time.Now,
	}
}

func calculate(t finance.AnalysisType, in finance.Inputs) (finance.Results, error) {
	res, err := finance.Calculate(t, in)
	if errors.Is(err, finance.ErrInvalidInputs) {
		return finance.Results{}, invalidf("%s", strings.TrimPrefix(err.Error(), finance.ErrInvalidInputs.Error()+": "))
	}
	return res, err
}

func (s *analysisService) Calculate(t finance.AnalysisType, in finance.Inputs) (finance.Results, error) {
	return calculate(t, in)
}

func (s *analysisService) List(ctx context.Context, actor Actor, filter models.AnalysisFilter, page models.Page) (models.ListResult[*models.Analysis], error) {
	filter.CreatedBy = actor.scope()
	items, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return models.ListResult[*models.Analysis]{}, err
	}
	return models.ListResult[*models.Analysis]{Data: items, Pagination: models.NewPagination(page, total)}, nil
}

func (s *analysisService) Get(ctx context.Context, actor Actor, id int64) (*models.Analysis, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if scope := actor.scope(); scope != nil && a.CreatedBy != *scope {
		return nil, ErrForbidden
	}
	return a, nil
}

func (s *analysisService) Create(ctx context.Context, actor Actor, in AnalysisInput) (*models.Analysis, error) {
	if actor.ReadOnly() {
		return nil, ErrForbidden
	}
	if in.PropertyID <= 0 {
		return nil, invalidf("propertyId is required")
	}
	if _, err := s.properties.GetByID(ctx, in.PropertyID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, invalidf("property %d does not exist", in.PropertyID)
		}
		return nil, err
	}
	res, err := calculate(in.Type, in.Inputs)
	if err != nil {
		return nil, err
	}
	a := &models.Analysis{
		PropertyID: in.PropertyID,
		CreatedBy:  actor.UserID,
		Name:       strings.TrimSpace(in.Name),
		Type:       in.Type,
		Inputs:     in.Inputs,
		Results:    res,
		Notes:      in.Notes,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info("analysis saved", "analysis_id", a.ID, "property_id", a.PropertyID, "type", a.Type)
	return a, nil
}

// Update recomputes results from the new inputs; the property link is fixed.
func (s *analysisService) Update(ctx context.Context, actor Actor, id int64, in AnalysisInput) (*models.Analysis, error) {
	if actor.ReadOnly() {
		return nil, ErrForbidden
	}
	a, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = a.Type
	}
	res, err := calculate(in.Type, in.Inputs)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		a.Name = name
	}
	a.Type = in.Type
	a.Inputs = in.Inputs
	a.Results = res
	a.Notes = in.Notes
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *analysisService) Delete(ctx context.Context, actor Actor, id int64) error {
	if actor.ReadOnly() {
		return ErrForbidden
	}
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func scheduleFor(a *models.Analysis) finance.AmortizationSchedule {
	return finance.Schedule(a.Results.LoanAmount, a.Inputs.InterestRate, a.Inputs.LoanTermYears*12)
}

func (s *analysisService) Amortization(ctx context.Context, actor Actor, id int64) (finance.AmortizationSchedule, error) {
	a, err := s.Get(ctx, actor, id)
	if err != nil {
		return finance.AmortizationSchedule{}, err
	}
	return scheduleFor(a), nil
}

func (s *analysisService) Report(ctx context.Context, actor Actor, id int64) ([]byte, error) {
	a, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	p, err := s.properties.GetByID(ctx, a.PropertyID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}
	return s.pdf.AnalysisReport(pdf.ReportData{
		Analysis:    a,
		Property:    p,
		Schedule:    scheduleFor(a),
		GeneratedAt: s.now(),
	})
}
