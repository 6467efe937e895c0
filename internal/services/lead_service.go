package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reicrm/internal/authz"
	"reicrm/internal/models"
	"reicrm/internal/repositories"
	"reicrm/internal/utils"
)

// LeadInput is used for create and partial update; nil fields are left untouched.
type LeadInput struct {
	FirstName      *string              `json:"firstName"`
	LastName       *string              `json:"lastName"`
	Email          *string              `json:"email"`
	Phone          *string              `json:"phone"`
	PropertyID     *int64               `json:"propertyId"`
	Source         *models.LeadSource   `json:"source"`
	Priority       *models.LeadPriority `json:"priority"`
	AssignedTo     *int64               `json:"assignedTo"`
	Tags           []string             `json:"tags"`
	FollowUpDate   *time.Time           `json:"followUpDate"`
	EstimatedValue *float64             `json:"estimatedValue"`
	Note           string               `json:"note"`
}

func normalizeTags(tags []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (in LeadInput) apply(l *models.Lead) error {
	setTrimmed(&l.FirstName, in.FirstName)
	setTrimmed(&l.LastName, in.LastName)
	setTrimmed(&l.Email, in.Email)
	setTrimmed(&l.Phone, in.Phone)
	if in.PropertyID != nil {
		l.PropertyID = in.PropertyID
	}
	if in.Source != nil {
		if !in.Source.Valid() {
			return invalidf("unknown source %q", *in.Source)
		}
		l.Source = *in.Source
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return invalidf("unknown priority %q", *in.Priority)
		}
		l.Priority = *in.Priority
	}
	if in.Tags != nil {
		l.Tags = normalizeTags(in.Tags)
	}
	if in.FollowUpDate != nil {
		l.FollowUpDate = in.FollowUpDate
	}
	if in.EstimatedValue != nil {
		if *in.EstimatedValue < 0 {
			return invalidf("estimatedValue cannot be negative")
		}
		l.EstimatedValue = in.EstimatedValue
	}
	if l.FirstName == "" && l.LastName == "" && l.Email == "" && l.Phone == "" && l.PropertyID == nil {
		return invalidf("a lead needs a name, contact or property")
	}
	return nil
}

type LeadService interface {
	List(ctx context.Context, actor Actor, filter models.LeadFilter, page models.Page, sort models.Sort) (models.ListResult[*models.Lead], error)
	FollowUps(ctx context.Context, actor Actor) ([]*models.Lead, error)
	Get(ctx context.Context, actor Actor, id int64) (*models.Lead, error)
	Create(ctx context.Context, actor Actor, in LeadInput) (*models.Lead, error)
	Update(ctx context.Context, actor Actor, id int64, in LeadInput) (*models.Lead, error)
	Delete(ctx context.Context, actor Actor, id int64) error
	ChangeStatus(ctx context.Context, actor Actor, id int64, to models.LeadStatus) (*models.Lead, error)
	Assign(ctx context.Context, id int64, assignedTo *int64) (*models.Lead, error)
	AddNote(ctx context.Context, actor Actor, id int64, text string) (*models.Lead, error)
}

type leadService struct {
	repo       repositories.LeadRepository
	properties repositories.PropertyRepository
	users      repositories.UserRepository
	log        *slog.Logger
	now        func() time.Time
}

func NewLeadService(repo repositories.LeadRepository, properties repositories.PropertyRepository, users repositories.UserRepository, logger *slog.Logger) LeadService {
	return &leadService{
		repo:       repo,
		properties: properties,
		users:      users,
		log:        logger.With("component", "leads"),
		now:        time.Now,
	}
}

func (s *leadService) List(ctx context.Context, actor Actor, filter models.LeadFilter, page models.Page, sort models.Sort) (models.ListResult[*models.Lead], error) {
	filter.VisibleTo = actor.scope()
	items, total, err := s.repo.List(ctx, filter, page, sort)
	if err != nil {
		return models.ListResult[*models.Lead]{}, err
	}
	return models.ListResult[*models.Lead]{Data: items, Pagination: models.NewPagination(page, total)}, nil
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// FollowUps returns the caller's open leads due by the end of today.
func (s *leadService) FollowUps(ctx context.Context, actor Actor) ([]*models.Lead, error) {
	due := endOfDay(s.now())
	me := actor.UserID
	filter := models.LeadFilter{FollowUpBefore: &due, OpenOnly: true, VisibleTo: &me}
	items, _, err := s.repo.List(ctx, filter, models.Page{Page: 1, Limit: 100}, models.Sort{Column: "follow_up_date"})
	return items, err
}

func (s *leadService) load(ctx context.Context, actor Actor, id int64) (*models.Lead, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanSeeAll(actor.Role) && !l.VisibleTo(actor.UserID) {
		return nil, ErrForbidden
	}
	return l, nil
}

func (s *leadService) Get(ctx context.Context, actor Actor, id int64) (*models.Lead, error) {
	return s.load(ctx, actor, id)
}

func (s *leadService) checkProperty(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	if _, err := s.properties.GetByID(ctx, *id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return invalidf("property %d does not exist", *id)
		}
		return err
	}
	return nil
}

func (s *leadService) checkAssignee(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	if _, err := s.users.GetByID(ctx, *id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return invalidf("assignee %d does not exist", *id)
		}
		return err
	}
	return nil
}

func (s *leadService) Create(ctx context.Context, actor Actor, in LeadInput) (*models.Lead, error) {
	if actor.ReadOnly() {
		return nil, ErrForbidden
	}
	if quota := authz.LeadQuota(actor.Plan); quota > 0 {
		n, err := s.repo.CountCreatedBy(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if n >= quota {
			return nil, ErrPlanLimit
		}
	}

	me := actor.UserID
	l := &models.Lead{
		LeadID:     utils.NewLeadID(),
		Source:     models.LeadSourceManual,
		Status:     models.LeadNew,
		Priority:   models.PriorityMedium,
		AssignedTo: &me,
		Notes:      []models.LeadNote{},
		Tags:       []string{},
		CreatedBy:  me,
	}
	if in.AssignedTo != nil {
		if !actor.Elevated() && *in.AssignedTo != me {
			return nil, ErrForbidden
		}
		l.AssignedTo = in.AssignedTo
	}
	if err := in.apply(l); err != nil {
		return nil, err
	}
	if err := s.checkProperty(ctx, l.PropertyID); err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, l.AssignedTo); err != nil {
		return nil, err
	}
	if text := strings.TrimSpace(in.Note); text != "" {
		l.Notes = append(l.Notes, models.LeadNote{Text: text, AuthorID: me, CreatedAt: s.now().UTC()})
	}

	if err := s.repo.Create(ctx, l); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: lead id already exists", ErrConflict)
		}
		return nil, err
	}
	s.log.Info("lead created", "lead_id", l.LeadID, "id", l.ID, "by", me)
	return l, nil
}

func (s *leadService) Update(ctx context.Context, actor Actor, id int64, in LeadInput) (*models.Lead, error) {
	if actor.ReadOnly() {
		return nil, ErrForbidden
	}
	if in.AssignedTo != nil && !actor.Elevated() {
		return nil, ErrForbidden
	}
	l, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	prevProperty := l.PropertyID
	if err := in.apply(l); err != nil {
		return nil, err
	}
	if in.PropertyID != nil && (prevProperty == nil || *prevProperty != *in.PropertyID) {
		if err := s.checkProperty(ctx, l.PropertyID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, l); err != nil {
		return nil, err
	}
	if in.AssignedTo != nil {
		return s.Assign(ctx, id, in.AssignedTo)
	}
	return l, nil
}

func (s *leadService) Delete(ctx context.Context, actor Actor, id int64) error {
	if actor.ReadOnly() {
		return ErrForbidden
	}
	l, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if !actor.Elevated() && l.CreatedBy != actor.UserID {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

func (s *leadService) ChangeStatus(ctx context.Context, actor Actor, id int64, to models.LeadStatus) (*models.Lead, error) {
	if !to.Valid() {
		return nil, invalidf("unknown status %q", to)
	}
	if actor.ReadOnly() {
		return nil, ErrForbidden
	}
	l, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(l.Status, to) {
		return nil, ErrInvalidTransition
	}

	var contacted *time.Time
	if to == models.LeadContacted {
		now := s.now().UTC()
		contacted = &now
	}
	if err := s.repo.UpdateStatus(ctx, id, to, contacted); err != nil {
		return nil, err
	}
	s.log.Info("lead status changed", "id", id, "from", l.Status, "to", to, "by", actor.UserID)
	return s.repo.GetByID(ctx, id)
}

func (s *leadService) Assign(ctx context.Context, id int64, assignedTo *int64) (*models.Lead, error) {
	if err := s.checkAssignee(ctx, assignedTo); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAssignee(ctx, id, assignedTo); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *leadService) AddNote(ctx context.Context, actor Actor, id int64, text string) (*models.Lead, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalidf("note text is required")
	}
	if actor.ReadOnly() {
		return nil, ErrForbidden
	}
	if _, err := s.load(ctx, actor, id); err != nil {
		return nil, err
	}
	note := models.LeadNote{Text: text, AuthorID: actor.UserID, CreatedAt: s.now().UTC()}
	if err := s.repo.AppendNote(ctx, id, note); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}
