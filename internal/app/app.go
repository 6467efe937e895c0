package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	_ "reicrm/docs"
	"reicrm/internal/authz"
	"reicrm/internal/config"
	"reicrm/internal/handlers"
	"reicrm/internal/middleware"
	"reicrm/internal/models"
	"reicrm/internal/pdf"
	"reicrm/internal/repositories"
	"reicrm/internal/routes"
	"reicrm/internal/scheduler"
	"reicrm/internal/scraper"
	"reicrm/internal/services"
	"reicrm/internal/telemetry"
	"reicrm/internal/utils"
)

type Repositories struct {
	Users      repositories.UserRepository
	Resets     repositories.PasswordResetRepository
	Properties repositories.PropertyRepository
	Leads      repositories.LeadRepository
	Analyses   repositories.AnalysisRepository
	Runs       repositories.AutomationRunRepository
	Reports    repositories.ReportRepository
}

type Services struct {
	Auth       services.AuthService
	Resets     services.PasswordResetService
	Users      services.UserService
	Properties services.PropertyService
	Leads      services.LeadService
	Analysis   services.AnalysisService
	Reports    services.ReportService
	Scrape     services.ScrapeService
	Enrichment services.EnrichmentService
	Reminders  services.ReminderService
	Automation services.AutomationService
}

// App owns every long-lived dependency of the process.
type App struct {
	Config    *config.Config
	Log       *slog.Logger
	DB        *sql.DB
	Tokens    *utils.JWTManager
	Repos     Repositories
	Services  Services
	Scheduler *scheduler.Scheduler
	telemetry telemetry.Telemetry
}

func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// New connects to the database and builds repositories, services and the scheduler.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	tel, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	db, err := OpenDB(ctx, cfg.Database)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Log:       logger,
		DB:        db,
		Tokens:    utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTTL),
		telemetry: tel,
	}
	a.Repos = Repositories{
		Users:      repositories.NewUserRepository(db),
		Resets:     repositories.NewPasswordResetRepository(db),
		Properties: repositories.NewPropertyRepository(db),
		Leads:      repositories.NewLeadRepository(db),
		Analyses:   repositories.NewAnalysisRepository(db),
		Runs:       repositories.NewAutomationRunRepository(db),
		Reports:    repositories.NewReportRepository(db),
	}
	if err := a.buildServices(); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) buildServices() error {
	cfg, log, r := a.Config, a.Log, a.Repos

	emails := services.NewEmailService(cfg.Email, log)
	notifier, err := services.NewTelegramNotifier(cfg.Telegram.BotToken, log)
	if err != nil {
		// fall back to log-only notifications
		log.Error("telegram disabled", "error", err)
		notifier, _ = services.NewTelegramNotifier("", log)
	}

	auth := services.NewAuthService(r.Users, a.Tokens, cfg.JWT.RefreshTTL, emails, log)
	collector := scraper.New(cfg.Scraper, log)
	geocoder := services.NewCensusGeocoder(cfg.Enrichment, cfg.Scraper.UserAgent)

	s := Services{
		Auth:       auth,
		Resets:     services.NewPasswordResetService(r.Users, r.Resets, emails, auth, log),
		Users:      services.NewUserService(r.Users, auth, log),
		Properties: services.NewPropertyService(r.Properties, r.Users, log),
		Leads:      services.NewLeadService(r.Leads, r.Properties, r.Users, log),
		Analysis:   services.NewAnalysisService(r.Analyses, r.Properties, pdf.NewDocumentGenerator(cfg.PDF.FontPath), log),
		Reports:    services.NewReportService(r.Reports, r.Leads, r.Properties, r.Analyses),
		Scrape:     services.NewScrapeService(collector, r.Properties, r.Leads, notifier, cfg.Telegram.AdminChatID, log),
		Enrichment: services.NewEnrichmentService(r.Properties, r.Leads, geocoder, cfg.Enrichment, log),
		Reminders:  services.NewReminderService(r.Leads, r.Users, emails, notifier, log),
	}

	sched, err := scheduler.New(cfg.Scheduler, r.Runs, log)
	if err != nil {
		return err
	}
	jobs := []struct {
		name models.JobName
		spec string
		fn   scheduler.JobFunc
	}{
		{models.JobScrape, cfg.Scheduler.ScrapeSpec, func(ctx context.Context) (map[string]any, error) {
			stats, err := s.Scrape.Run(ctx)
			return stats.Map(), err
		}},
		{models.JobEnrich, cfg.Scheduler.EnrichSpec, func(ctx context.Context) (map[string]any, error) {
			stats, err := s.Enrichment.Run(ctx)
			return stats.Map(), err
		}},
		{models.JobFollowUpReminders, cfg.Scheduler.FollowUpSpec, s.Reminders.SendDue},
		{models.JobSubscriptionSweep, cfg.Scheduler.SubscriptionSpec, s.Users.SweepExpiredSubscriptions},
	}
	for _, j := range jobs {
		spec := j.spec
		if !cfg.Scheduler.Enabled {
			spec = ""
		}
		if err := sched.Register(j.name, spec, j.fn); err != nil {
			return err
		}
	}
	s.Automation = services.NewAutomationService(sched, r.Runs, s.Scrape.Sources)

	a.Services = s
	a.Scheduler = sched
	return nil
}

func (a *App) Router() *gin.Engine {
	gin.SetMode(a.Config.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(a.Log))
	r.Use(middleware.CORS(a.Config.Server.AllowedOrigins))

	s := a.Services
	return routes.SetupRoutes(r, a.Tokens, routes.Handlers{
		Auth:       handlers.NewAuthHandler(s.Auth, s.Resets, s.Users),
		Users:      handlers.NewUserHandler(s.Users),
		Properties: handlers.NewPropertyHandler(s.Properties),
		Leads:      handlers.NewLeadHandler(s.Leads),
		Analysis:   handlers.NewAnalysisHandler(s.Analysis),
		Reports:    handlers.NewReportHandler(s.Reports),
		Automation: handlers.NewAutomationHandler(s.Automation),
		Health:     handlers.NewHealthHandler(a.DB),
	})
}

// Serve runs the HTTP server and the scheduler until ctx is cancelled, then drains both.
func (a *App) Serve(ctx context.Context) error {
	srvCfg := a.Config.Server
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", srvCfg.Host, srvCfg.Port),
		Handler:           a.Router(),
		ReadTimeout:       srvCfg.ReadTimeout,
		WriteTimeout:      srvCfg.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.Scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("starting http server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
	defer cancel()
	a.Log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Log.Error("http shutdown failed", "error", err)
	}
	if err := a.Scheduler.Stop(shutdownCtx); err != nil {
		a.Log.Error("scheduler stop failed", "error", err)
	}
	return serveErr
}

// RunJob runs one job synchronously; used by the CLI.
func (a *App) RunJob(ctx context.Context, job models.JobName) (*models.AutomationRun, error) {
	return a.Scheduler.RunNow(ctx, job, models.TriggerCLI)
}

// CreateAdmin creates an enterprise admin account, or promotes an existing one.
func (a *App) CreateAdmin(ctx context.Context, in services.CreateUserInput) (*models.User, error) {
	in.Role = authz.RoleAdmin
	in.Plan = authz.PlanEnterprise
	in.Status = models.SubscriptionActive
	u, err := a.Services.Users.Create(ctx, in)
	if !errors.Is(err, services.ErrConflict) {
		return u, err
	}

	existing, err := a.Repos.Users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	admin := services.Actor{UserID: existing.ID, Role: authz.RoleAdmin, Plan: authz.PlanEnterprise}
	role, active := authz.RoleAdmin, true
	if _, err := a.Services.Users.Update(ctx, admin, existing.ID, services.UpdateUserInput{Role: &role, IsActive: &active}); err != nil {
		return nil, err
	}
	return a.Services.Users.UpdateSubscription(ctx, existing.ID, services.SubscriptionInput{
		Plan:   authz.PlanEnterprise,
		Status: models.SubscriptionActive,
	})
}

func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.DB.Close(), a.telemetry.Shutdown(ctx))
}
