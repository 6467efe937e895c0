package services

import (
	"context"
	"errors"
	"fmt"

	"reicrm/internal/config"
	"reicrm/internal/models"
	"reicrm/internal/repositories"
	"reicrm/internal/scheduler"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// JobRunner is the part of the scheduler the API drives.
type JobRunner interface {
	Trigger(ctx context.Context, name models.JobName, trigger models.RunTrigger) (int64, error)
	Status(ctx context.Context) ([]scheduler.JobStatus, error)
}

type AutomationService interface {
	Status(ctx context.Context) ([]scheduler.JobStatus, error)
	Trigger(ctx context.Context, job models.JobName) (int64, error)
	Runs(ctx context.Context, job *models.JobName, limit int) ([]*models.AutomationRun, error)
	Sources() []config.ScraperSource
}

type automationService struct {
	runner  JobRunner
	runs    repositories.AutomationRunRepository
	sources func() []config.ScraperSource
}

func NewAutomationService(runner JobRunner, runs repositories.AutomationRunRepository, sources func() []config.ScraperSource) AutomationService {
	return &automationService{runner: runner, runs: runs, sources: sources}
}

func (s *automationService) Status(ctx context.Context) ([]scheduler.JobStatus, error) {
	return s.runner.Status(ctx)
}

func (s *automationService) Trigger(ctx context.Context, job models.JobName) (int64, error) {
	if job != models.JobScrape && job != models.JobEnrich {
		return 0, invalidf("job %q cannot be triggered", job)
	}
	id, err := s.runner.Trigger(ctx, job, models.TriggerManual)
	switch {
	case errors.Is(err, scheduler.ErrRunning):
		return 0, fmt.Errorf("%w: %s run already in progress", ErrConflict, job)
	case errors.Is(err, scheduler.ErrUnknownJob):
		return 0, invalidf("job %q is not registered", job)
	}
	return id, err
}

func (s *automationService) Runs(ctx context.Context, job *models.JobName, limit int) ([]*models.AutomationRun, error) {
	if job != nil && !job.Valid() {
		return nil, invalidf("unknown job %q", *job)
	}
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}
	return s.runs.List(ctx, job, limit)
}

func (s *automationService) Sources() []config.ScraperSource {
	if s.sources == nil {
		return []config.ScraperSource{}
	}
	return s.sources()
}
