package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reicrm/internal/authz"
	"reicrm/internal/logging"
	"reicrm/internal/models"
)

func TestSendDueGroupsByOwner(t *testing.T) {
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	today, later := now.Add(2*time.Hour), now.Add(72*time.Hour)
	users := newMemUsers(
		&models.User{ID: 1, FirstName: "Ada", Email: "ada@x.io", Role: authz.RoleAgent, IsActive: true, TelegramChatID: 555},
		&models.User{ID: 2, FirstName: "Bo", Email: "bo@x.io", Role: authz.RoleAgent, IsActive: true},
		&models.User{ID: 3, FirstName: "Cy", Email: "cy@x.io", Role: authz.RoleAgent, IsActive: false},
	)
	leads := newMemLeads(
		&models.Lead{LeadID: "L-1", FirstName: "<Jo>", CreatedBy: 2, AssignedTo: ptr(int64(1)), Status: models.LeadNew, FollowUpDate: &today},
		&models.Lead{LeadID: "L-2", CreatedBy: 1, Status: models.LeadContacted, FollowUpDate: &today},
		&models.Lead{LeadID: "L-3", CreatedBy: 2, Status: models.LeadNew, FollowUpDate: &today},
		&models.Lead{LeadID: "L-4", CreatedBy: 3, Status: models.LeadNew, FollowUpDate: &today},
		&models.Lead{LeadID: "L-5", Status: models.LeadNew, FollowUpDate: &today},
		&models.Lead{LeadID: "L-6", CreatedBy: 2, Status: models.LeadNew, FollowUpDate: &later},
		&models.Lead{LeadID: "L-7", CreatedBy: 2, Status: models.LeadClosedWon, FollowUpDate: &today},
	)
	emails, notifier := newRecordingEmails(), &recordingNotifier{}
	svc := NewReminderService(leads, users, emails, notifier, logging.Discard()).(*reminderService)
	svc.now = fixedNow(now)

	stats, err := svc.SendDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"leads": 5, "users": 3, "emailed": 2, "messaged": 1, "failed": 0, "orphaned": 1,
	}, stats)
	require.Equal(t, map[string]int{"ada@x.io": 2, "bo@x.io": 1}, emails.reminders)

	msg := notifier.messages[555][0]
	require.Contains(t, msg, "2 follow-up(s) due today")
	require.Contains(t, msg, "&lt;Jo&gt;")
}

func TestSendDueNothingDue(t *testing.T) {
	svc := NewReminderService(newMemLeads(), newMemUsers(), newRecordingEmails(), nil, logging.Discard())
	stats, err := svc.SendDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, stats["leads"])
	require.Equal(t, 0, stats["emailed"])
}
