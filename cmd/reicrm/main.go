package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"reicrm/internal/app"
	"reicrm/internal/config"
	"reicrm/internal/logging"
	"reicrm/internal/models"
	"reicrm/internal/repositories"
	"reicrm/internal/services"
)

// @title                       Real Estate Investor CRM API
// @version                     1.0
// @description                 Properties, leads, deal analysis, reports and foreclosure automation.
// @BasePath                    /api
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	_ = godotenv.Load()

	var configPath string
	rootCmd := &cobra.Command{
		Use:           "reicrm",
		Short:         "Real estate investor CRM backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default "+config.DefaultPath+")")

	load := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	rootCmd.AddCommand(
		serveCmd(load),
		migrateCmd(load),
		jobCmd(load, "scrape", "Run the foreclosure scraper once", models.JobScrape),
		jobCmd(load, "enrich", "Run one enrichment batch", models.JobEnrich),
		createAdminCmd(load),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type loader func() (*config.Config, error)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withApp builds the application, runs fn and closes it.
func withApp(load loader, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging)

	ctx, stop := signalContext()
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Error("close failed", "error", err)
		}
	}()
	return fn(ctx, a)
}

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the job scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(ctx context.Context, a *app.App) error {
				return a.Serve(ctx)
			})
		},
	}
}

func migrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Logging)
			ctx, stop := signalContext()
			defer stop()

			db, err := app.OpenDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := repositories.Migrate(ctx, db); err != nil {
				return err
			}
			logger.Info("schema applied")
			return nil
		},
	}
}

func jobCmd(load loader, use, short string, job models.JobName) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(ctx context.Context, a *app.App) error {
				run, err := a.RunJob(ctx, job)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(run); err != nil {
					return err
				}
				if run.Status == models.RunFailed {
					return fmt.Errorf("%s failed: %s", job, run.Error)
				}
				return nil
			})
		},
	}
}

func createAdminCmd(load loader) *cobra.Command {
	var in services.CreateUserInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account or promote an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(ctx context.Context, a *app.App) error {
				u, err := a.CreateAdmin(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "admin ready: id=%d email=%s\n", u.ID, u.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "admin e-mail")
	cmd.Flags().StringVar(&in.Password, "password", "", "admin password (min 8 characters)")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "Admin", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
