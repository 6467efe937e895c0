package services

import (
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"reicrm/internal/config"
	"reicrm/internal/models"
)

type EmailService interface {
	SendWelcomeEmail(email, name string) error
	SendPasswordResetEmail(email, token string) error
	SendFollowUpReminder(email, name string, leads []*models.Lead) error
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
	appURL string
}

// NewEmailService returns an SMTP sender, or a log-only one when SMTP is not configured.
func NewEmailService(cfg config.EmailConfig, logger *slog.Logger) EmailService {
	if !cfg.Enabled() {
		return &logEmailService{log: logger.With("component", "email")}
	}
	return &emailService{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.FromEmail,
		appURL: strings.TrimRight(cfg.AppURL, "/"),
	}
}

func (s *emailService) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return s.dialer.DialAndSend(m)
}

func (s *emailService) SendWelcomeEmail(email, name string) error {
	body := fmt.Sprintf(`
		<h2>Welcome, %s!</h2>
		<p>Your account has been created. You can sign in and start tracking properties and leads.</p>
	`, html.EscapeString(name))
	if err := s.send(email, "Welcome aboard", body); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}
	return nil
}

func (s *emailService) SendPasswordResetEmail(email, token string) error {
	link := token
	if s.appURL != "" {
		link = fmt.Sprintf(`<a href="%s/reset-password?token=%s">reset your password</a>`, s.appURL, token)
	}
	body := fmt.Sprintf(`
		<h3>Password reset requested</h3>
		<p>We received a request to reset the password for your account.</p>
		<p>Use this link or token within one hour: <strong>%s</strong></p>
		<p>If you did not request this change, you can ignore this email.</p>
	`, link)
	if err := s.send(email, "Password reset request", body); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}

func (s *emailService) SendFollowUpReminder(email, name string, leads []*models.Lead) error {
	var b strings.Builder
	fmt.Fprintf(&b, "<h3>Hi %s, you have %d follow-up(s) due</h3><ul>", html.EscapeString(name), len(leads))
	for _, l := range leads {
		fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(reminderLine(l)))
	}
	b.WriteString("</ul>")
	if err := s.send(email, "Follow-ups due today", b.String()); err != nil {
		return fmt.Errorf("failed to send reminder email: %w", err)
	}
	return nil
}

func reminderLine(l *models.Lead) string {
	due := ""
	if l.FollowUpDate != nil {
		due = l.FollowUpDate.Format(time.DateOnly)
	}
	name := l.FullName()
	if name == "" {
		name = "(no name)"
	}
	return fmt.Sprintf("%s %s [%s, %s] due %s", l.LeadID, name, l.Status, l.Priority, due)
}

type logEmailService struct {
	log *slog.Logger
}

func (s *logEmailService) SendWelcomeEmail(email, name string) error {
	s.log.Info("smtp disabled, welcome email not sent", "to", email)
	return nil
}

func (s *logEmailService) SendPasswordResetEmail(email, token string) error {
	s.log.Info("smtp disabled, password reset email not sent", "to", email)
	return nil
}

func (s *logEmailService) SendFollowUpReminder(email, name string, leads []*models.Lead) error {
	s.log.Info("smtp disabled, reminder email not sent", "to", email, "leads", len(leads))
	return nil
}
