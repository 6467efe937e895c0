package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"
	"time"

	"reicrm/internal/models"
	"reicrm/internal/repositories"
)

type ReminderService interface {
	SendDue(ctx context.Context) (map[string]any, error)
}

type reminderService struct {
	leads    repositories.LeadRepository
	users    repositories.UserRepository
	emails   EmailService
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

func NewReminderService(leads repositories.LeadRepository, users repositories.UserRepository, emails EmailService, notifier Notifier, logger *slog.Logger) ReminderService {
	return &reminderService{
		leads:    leads,
		users:    users,
		emails:   emails,
		notifier: notifier,
		log:      logger.With("component", "reminders"),
		now:      time.Now,
	}
}

// SendDue mails each owner the open leads due by the end of today.
// A lead belongs to its assignee, or to its creator when unassigned.
func (s *reminderService) SendDue(ctx context.Context) (map[string]any, error) {
	due, err := s.leads.ListDueFollowUps(ctx, endOfDay(s.now()))
	if err != nil {
		return nil, err
	}

	byOwner := map[int64][]*models.Lead{}
	orphaned := 0
	for _, l := range due {
		owner := l.CreatedBy
		if l.AssignedTo != nil {
			owner = *l.AssignedTo
		}
		if owner == 0 {
			orphaned++
			continue
		}
		byOwner[owner] = append(byOwner[owner], l)
	}

	ids := make([]int64, 0, len(byOwner))
	for id := range byOwner {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var users []*models.User
	if len(ids) > 0 {
		if users, err = s.users.ListByIDs(ctx, ids); err != nil {
			return nil, err
		}
	}

	emailed, messaged, failed := 0, 0, 0
	for _, u := range users {
		if !u.IsActive {
			continue
		}
		leads := byOwner[u.ID]
		if err := s.emails.SendFollowUpReminder(u.Email, u.FullName(), leads); err != nil {
			failed++
			s.log.Warn("reminder email failed", "user_id", u.ID, "error", err)
		} else {
			emailed++
		}
		if u.TelegramChatID != 0 && s.notifier != nil {
			if err := s.notifier.Notify(u.TelegramChatID, reminderMessage(leads)); err != nil {
				s.log.Warn("reminder telegram failed", "user_id", u.ID, "error", err)
			} else {
				messaged++
			}
		}
	}

	s.log.Info("follow-up reminders sent", "leads", len(due), "users", emailed, "telegram", messaged, "failed", failed)
	return map[string]any{
		"leads":    len(due),
		"users":    len(ids),
		"emailed":  emailed,
		"messaged": messaged,
		"failed":   failed,
		"orphaned": orphaned,
	}, nil
}

func reminderMessage(leads []*models.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%d follow-up(s) due today</b>\n", len(leads))
	for _, l := range leads {
		b.WriteString(html.EscapeString(reminderLine(l)))
		b.WriteByte('\n')
	}
	return b.String()
}
