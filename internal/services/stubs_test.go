package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"reicrm/internal/config"
	"reicrm/internal/models"
	"reicrm/internal/repositories"
	"reicrm/internal/scraper"
)

type memUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.User
}

func newMemUsers(users ...*models.User) *memUsers {
	m := &memUsers{byID: map[int64]*models.User{}}
	for _, u := range users {
		if u.ID == 0 {
			m.nextID++
			u.ID = m.nextID
		} else if u.ID > m.nextID {
			m.nextID = u.ID
		}
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Email == u.Email {
			return repositories.ErrDuplicate
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memUsers) Update(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) with(id int64, fn func(u *models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(u)
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	return m.with(id, func(u *models.User) { u.PasswordHash = hash })
}

func (m *memUsers) UpdateSubscription(_ context.Context, id int64, sub models.Subscription) error {
	return m.with(id, func(u *models.User) { u.Subscription = sub })
}

func (m *memUsers) TouchLogin(_ context.Context, id int64, at time.Time) error {
	return m.with(id, func(u *models.User) { u.LastLoginAt = &at })
}

func (m *memUsers) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memUsers) sorted() []*models.User {
	out := make([]*models.User, 0, len(m.byID))
	for _, u := range m.byID {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memUsers) List(_ context.Context, filter models.UserFilter, _ models.Page) ([]*models.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.User{}
	for _, u := range m.sorted() {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func (m *memUsers) ListByIDs(_ context.Context, ids []int64) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := []*models.User{}
	for _, u := range m.sorted() {
		if want[u.ID] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUsers) ListExpiredSubscriptions(_ context.Context, now time.Time) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.User{}
	for _, u := range m.sorted() {
		s := u.Subscription
		if s.Plan != "free" && s.Status != models.SubscriptionCanceled && s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUsers) UpdateRefresh(_ context.Context, id int64, token string, exp time.Time) error {
	return m.with(id, func(u *models.User) {
		u.RefreshToken, u.RefreshExpiresAt, u.RefreshRevoked = &token, &exp, false
	})
}

func (m *memUsers) RotateRefresh(_ context.Context, oldToken, newToken string, exp time.Time) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.RefreshToken != nil && *u.RefreshToken == oldToken && !u.RefreshRevoked {
			u.RefreshToken, u.RefreshExpiresAt = &newToken, &exp
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memUsers) ClearRefresh(_ context.Context, id int64) error {
	return m.with(id, func(u *models.User) { u.RefreshToken, u.RefreshRevoked = nil, true })
}

func (m *memUsers) GetByRefreshToken(_ context.Context, token string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.RefreshToken != nil && *u.RefreshToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

type memProperties struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.Property
	comps  []repositories.Comparable
	failOn map[int64]error
}

func newMemProperties(props ...*models.Property) *memProperties {
	m := &memProperties{byID: map[int64]*models.Property{}, failOn: map[int64]error{}}
	for _, p := range props {
		m.nextID++
		if p.ID == 0 {
			p.ID = m.nextID
		}
		m.byID[p.ID] = p
	}
	return m
}

func (m *memProperties) Create(_ context.Context, p *models.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memProperties) GetByID(_ context.Context, id int64) (*models.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProperties) Update(_ context.Context, p *models.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memProperties) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func (m *memProperties) List(context.Context, models.PropertyFilter, models.Page, models.Sort) ([]*models.Property, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Property{}
	for _, p := range m.byID {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memProperties) Assign(_ context.Context, id int64, assignedTo *int64, priority models.LeadPriority) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.LeadInfo.AssignedTo = assignedTo
	if priority != "" {
		p.LeadInfo.Priority = priority
	}
	return nil
}

func (m *memProperties) FindBySourceKey(_ context.Context, caseNumber, sourceURL string) (*models.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.Source != models.SourceScraper {
			continue
		}
		if (caseNumber != "" && p.CaseNumber == caseNumber) || (sourceURL != "" && p.SourceURL == sourceURL) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memProperties) ListForEnrichment(_ context.Context, staleBefore time.Time, limit int) ([]*models.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Property{}
	for _, p := range m.byID {
		if p.LastEnrichedAt == nil || p.LastEnrichedAt.Before(staleBefore) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memProperties) Comparables(_ context.Context, p *models.Property) ([]repositories.Comparable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn[p.ID]; err != nil {
		return nil, err
	}
	return m.comps, nil
}

func (m *memProperties) UpdateEnrichment(ctx context.Context, p *models.Property) error {
	return m.Update(ctx, p)
}

func (m *memProperties) Stats(context.Context, time.Time) (*models.PropertyStats, error) {
	return &models.PropertyStats{}, nil
}

func (m *memProperties) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID), nil
}

type memLeads struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.Lead
}

func newMemLeads(leads ...*models.Lead) *memLeads {
	m := &memLeads{byID: map[int64]*models.Lead{}}
	for _, l := range leads {
		m.nextID++
		if l.ID == 0 {
			l.ID = m.nextID
		}
		m.byID[l.ID] = l
	}
	return m
}

func (m *memLeads) all() []*models.Lead {
	out := make([]*models.Lead, 0, len(m.byID))
	for _, l := range m.byID {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memLeads) Create(_ context.Context, l *models.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	l.ID = m.nextID
	cp := *l
	m.byID[l.ID] = &cp
	return nil
}

func (m *memLeads) GetByID(_ context.Context, id int64) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memLeads) Update(_ context.Context, l *models.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[l.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *l
	m.byID[l.ID] = &cp
	return nil
}

func (m *memLeads) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memLeads) List(_ context.Context, filter models.LeadFilter, _ models.Page, _ models.Sort) ([]*models.Lead, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Lead{}
	for _, l := range m.all() {
		if filter.VisibleTo != nil && !l.VisibleTo(*filter.VisibleTo) {
			continue
		}
		if filter.Status != nil && l.Status != *filter.Status {
			continue
		}
		if filter.OpenOnly && l.Status.Closed() {
			continue
		}
		if filter.FollowUpBefore != nil && (l.FollowUpDate == nil || l.FollowUpDate.After(*filter.FollowUpBefore)) {
			continue
		}
		out = append(out, l)
	}
	return out, len(out), nil
}

func (m *memLeads) with(id int64, fn func(l *models.Lead)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(l)
	return nil
}

func (m *memLeads) UpdateStatus(_ context.Context, id int64, status models.LeadStatus, contactedAt *time.Time) error {
	return m.with(id, func(l *models.Lead) {
		l.Status = status
		if contactedAt != nil {
			l.LastContactedAt = contactedAt
		}
	})
}

func (m *memLeads) UpdateAssignee(_ context.Context, id int64, assignedTo *int64) error {
	return m.with(id, func(l *models.Lead) { l.AssignedTo = assignedTo })
}

func (m *memLeads) AppendNote(_ context.Context, id int64, note models.LeadNote) error {
	return m.with(id, func(l *models.Lead) { l.Notes = append(l.Notes, note) })
}

func (m *memLeads) UpdatePriority(_ context.Context, id int64, priority models.LeadPriority) error {
	return m.with(id, func(l *models.Lead) { l.Priority = priority })
}

func (m *memLeads) CountCreatedBy(_ context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.byID {
		if l.CreatedBy == userID {
			n++
		}
	}
	return n, nil
}

func (m *memLeads) ListByProperty(_ context.Context, propertyID int64) ([]*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Lead{}
	for _, l := range m.all() {
		if l.PropertyID != nil && *l.PropertyID == propertyID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memLeads) ListDueFollowUps(ctx context.Context, before time.Time) ([]*models.Lead, error) {
	out, _, err := m.List(ctx, models.LeadFilter{FollowUpBefore: &before, OpenOnly: true}, models.Page{}, models.Sort{})
	return out, err
}

func (m *memLeads) CountByStatus(ctx context.Context, filter models.LeadFilter) (map[models.LeadStatus]int, error) {
	items, _, _ := m.List(ctx, filter, models.Page{}, models.Sort{})
	out := map[models.LeadStatus]int{}
	for _, l := range items {
		out[l.Status]++
	}
	return out, nil
}

func (m *memLeads) CountBySource(ctx context.Context, filter models.LeadFilter) (map[models.LeadSource]int, error) {
	items, _, _ := m.List(ctx, filter, models.Page{}, models.Sort{})
	out := map[models.LeadSource]int{}
	for _, l := range items {
		out[l.Source]++
	}
	return out, nil
}

type recordingEmails struct {
	mu        sync.Mutex
	welcome   []string
	resets    map[string]string
	reminders map[string]int
	err       error
}

func newRecordingEmails() *recordingEmails {
	return &recordingEmails{resets: map[string]string{}, reminders: map[string]int{}}
}

func (r *recordingEmails) SendWelcomeEmail(email, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.welcome = append(r.welcome, email)
	return r.err
}

func (r *recordingEmails) SendPasswordResetEmail(email, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets[email] = token
	return r.err
}

func (r *recordingEmails) SendFollowUpReminder(email, _ string, leads []*models.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reminders[email] = len(leads)
	return r.err
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages map[int64][]string
}

func (r *recordingNotifier) Notify(chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.messages == nil {
		r.messages = map[int64][]string{}
	}
	r.messages[chatID] = append(r.messages[chatID], text)
	return nil
}

type fakeCollector struct {
	sources []config.ScraperSource
	results map[string]scraper.Result
	errs    map[string]error
}

func (f *fakeCollector) Sources() []config.ScraperSource { return f.sources }

func (f *fakeCollector) Scrape(_ context.Context, src config.ScraperSource) (scraper.Result, error) {
	return f.results[src.Name], f.errs[src.Name]
}

func ptr[T any](v T) *T { return &v }

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
