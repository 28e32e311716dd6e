package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aegisops/rosterd/internal/config"
	"github.com/aegisops/rosterd/pkg/bus"
	"github.com/aegisops/rosterd/pkg/clients/mailclient"
	"github.com/aegisops/rosterd/pkg/core/schedule"
	"github.com/aegisops/rosterd/pkg/core/services"
	"github.com/aegisops/rosterd/pkg/postgres"
	"github.com/aegisops/rosterd/pkg/utils"
	"github.com/aegisops/rosterd/pkg/utils/logging"
)

// App holds the application dependencies
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	database  *postgres.DB
	busClient *bus.Client
	gateway   *bus.Gateway
	publisher *bus.Publisher
	ctx       context.Context
}

var (
	env string
	app *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rosterd",
		Short: "Rosterd - security guard shift scheduling service",
		Long:  `Scheduling service for security guard shifts: directory mirroring, conflict-checked shift creation, and schedule-driven auto-generation.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				if app.busClient != nil {
					app.busClient.Close()
				}
				if app.database != nil {
					app.database.Close()
				}
				if app.logger != nil {
					app.logger.Sync()
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createShiftCmd())
	rootCmd.AddCommand(cancelShiftCmd())
	rootCmd.AddCommand(assignGuardCmd())
	rootCmd.AddCommand(authCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up the logger and configuration. Store and transport
// connections are opened by the commands that need them.
func initApp() error {
	var err error
	app = &App{
		ctx: context.Background(),
	}

	app.logger, err = logging.InitLogger(env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.logger.Info("Starting rosterd", zap.String("environment", env))

	app.cfg, err = config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.logger.Debug("Configuration loaded successfully")

	return nil
}

// connectDB opens the Postgres store.
func (a *App) connectDB() error {
	var err error
	a.logger.Info("Connecting to database")
	a.database, err = postgres.NewDB(a.ctx, a.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return nil
}

// connectBus opens the Redis transport and builds the gateway and
// publisher on top of it.
func (a *App) connectBus() error {
	var err error
	a.busClient, err = bus.NewClient(bus.ClientConfig{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to message transport: %w", err)
	}

	a.gateway = bus.NewGateway(a.busClient, a.logger, a.cfg.QueryTimeout())
	a.publisher = bus.NewPublisher(a.busClient, a.logger)
	return nil
}

// newNotifier builds the Gmail shift notifier when the config carries a
// gmail block; otherwise notifications are disabled.
func (a *App) newNotifier() (services.Notifier, error) {
	if a.cfg.Gmail == nil {
		a.logger.Info("No gmail config, shift notifications disabled")
		return nil, nil
	}

	oauthCfg, err := config.LoadOAuthClient(env)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, err
	}

	token, err := utils.GetToken(a.ctx, oauthConfig, env)
	if err != nil {
		return nil, fmt.Errorf("failed to get mail token: %w", err)
	}

	client, err := mailclient.NewClient(a.ctx, oauthCfg, token, a.cfg.Gmail.Sender)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return mailclient.NewShiftNotifier(client, a.cfg.Gmail.Recipients), nil
}

func (a *App) newGenerator() *services.Generator {
	return services.NewGenerator(a.database, a.database, a.gateway, a.publisher, a.logger, a.cfg.LookAheadDays)
}

// Command definitions

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the event consumer and the periodic reconciliation job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.connectDB(); err != nil {
				return err
			}
			if err := app.connectBus(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(app.ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			consumer := bus.NewConsumer(app.busClient, app.logger)
			sync := services.NewDirectorySync(app.database, app.logger)
			sync.Register(consumer)

			generator := app.newGenerator()

			consumerDone := make(chan error, 1)
			go func() {
				consumerDone <- consumer.Run(ctx)
			}()

			interval := app.cfg.ReconcileInterval()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			app.logger.Info("rosterd serving",
				zap.Duration("reconcile_interval", interval))

			for {
				select {
				case <-ctx.Done():
					app.logger.Info("Shutting down")
					return <-consumerDone
				case err := <-consumerDone:
					if err != nil {
						return fmt.Errorf("event consumer failed: %w", err)
					}
					return nil
				case <-ticker.C:
					if _, err := generator.Run(ctx); err != nil {
						if errors.Is(err, services.ErrGenerationInProgress) {
							continue
						}
						app.logger.Error("Reconciliation run failed", zap.Error(err))
					}
				}
			}
		},
	}
}

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one shift generation pass immediately",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.connectDB(); err != nil {
				return err
			}
			if err := app.connectBus(); err != nil {
				return err
			}

			contractID, _ := cmd.Flags().GetString("contract")
			generator := app.newGenerator()

			var reports []services.GenerationReport
			if contractID != "" {
				report, err := generator.RunContract(app.ctx, contractID)
				if err != nil {
					return err
				}
				if report == nil {
					fmt.Printf("Contract %s is not flagged for auto-generation.\n", contractID)
					return nil
				}
				reports = []services.GenerationReport{*report}
			} else {
				var err error
				reports, err = generator.Run(app.ctx)
				if err != nil {
					return err
				}
			}

			fmt.Printf("\nReconciliation finished: %d contract(s) processed\n\n", len(reports))
			for _, r := range reports {
				fmt.Printf("Contract %s: %s\n", r.ContractID, r.Status)
				fmt.Printf("  created: %d  skipped: %d  errors: %d  duration: %s\n",
					r.CreatedCount, r.SkippedCount, len(r.Errors), r.Duration.Round(time.Millisecond))
				for _, reason := range r.SkipReasons {
					fmt.Printf("  skip %s\n", reason)
				}
				for _, e := range r.Errors {
					fmt.Printf("  error %s\n", e)
				}
			}

			return nil
		},
	}

	cmd.Flags().String("contract", "", "Reconcile a single contract")

	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.connectDB(); err != nil {
				return err
			}

			if err := app.database.RunMigrations(app.ctx); err != nil {
				return fmt.Errorf("migrations failed: %w", err)
			}

			fmt.Println("Migrations applied.")
			return nil
		},
	}
}

func createShiftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "createShift <location_id> <date> <start> <end> <required_guards>",
		Short: "Create a shift (date YYYY-MM-DD, times HH:MM)",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.connectDB(); err != nil {
				return err
			}
			if err := app.connectBus(); err != nil {
				return err
			}

			date, err := time.Parse("2006-01-02", args[1])
			if err != nil {
				return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
			}
			guards, err := strconv.Atoi(args[4])
			if err != nil {
				return fmt.Errorf("required_guards must be a number: %w", err)
			}

			contractID, _ := cmd.Flags().GetString("contract")

			notifier, err := app.newNotifier()
			if err != nil {
				return err
			}

			result, err := services.CreateShift(app.ctx, app.database, app.gateway, notifier, app.logger, services.CreateShiftInput{
				LocationID:     args[0],
				Date:           date,
				StartTime:      args[2],
				EndTime:        args[3],
				RequiredGuards: guards,
				ContractID:     contractID,
			})
			if err != nil {
				var verr *schedule.ValidationError
				if errors.As(err, &verr) {
					fmt.Printf("\nShift rejected [%s]: %s\n", verr.Code, verr.Message)
					for _, c := range verr.Conflicts {
						fmt.Printf("  conflicts with %s (%s - %s)\n",
							c.ID, c.Start.Format("15:04"), c.End.Format("15:04"))
					}
					return nil
				}
				return err
			}

			shift := result.Shift
			fmt.Printf("\nShift created: %s\n\n", shift.ID)
			fmt.Printf("Location: %s\n", shift.LocationID)
			fmt.Printf("Date:     %s\n", shift.Date.Format("2006-01-02"))
			fmt.Printf("Window:   %s - %s\n", shift.Start.Format("15:04"), shift.End.Format("15:04"))
			fmt.Printf("Guards:   %d required, %d available (%d busy, %d on leave)\n",
				shift.RequiredGuards,
				result.Availability.Available,
				result.Availability.Busy,
				result.Availability.OnLeave)
			if result.Shortfall {
				fmt.Println("Warning: fewer guards available than required.")
			}
			if shift.Night {
				fmt.Println("Night shift.")
			}
			if shift.Holiday {
				fmt.Println("Falls on a public holiday.")
			}

			return nil
		},
	}

	cmd.Flags().String("contract", "", "Contract the shift belongs to")

	return cmd
}

func cancelShiftCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancelShift <shift_id>",
		Short: "Cancel a shift, freeing its window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.connectDB(); err != nil {
				return err
			}

			if err := services.CancelShift(app.ctx, app.database, app.logger, args[0]); err != nil {
				return err
			}

			fmt.Printf("Shift %s cancelled.\n", args[0])
			return nil
		},
	}
}

func assignGuardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assignGuard <shift_id> <guard_code>",
		Short: "Assign a guard to a shift",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.connectDB(); err != nil {
				return err
			}

			assignment, err := services.AssignGuard(app.ctx, app.database, app.logger, args[0], args[1])
			if err != nil {
				var verr *schedule.ValidationError
				if errors.As(err, &verr) {
					fmt.Printf("\nAssignment rejected [%s]: %s\n", verr.Code, verr.Message)
					return nil
				}
				return err
			}

			fmt.Printf("Guard %s assigned to shift %s (assignment %s).\n",
				assignment.GuardCode, assignment.ShiftID, assignment.ID)
			return nil
		},
	}
}

func authCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize the Gmail notifier via the browser OAuth flow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			oauthCfg, err := config.LoadOAuthClient(env)
			if err != nil {
				return fmt.Errorf("failed to load OAuth client config: %w", err)
			}

			oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
			if err != nil {
				return err
			}

			if _, err := utils.GetTokenWithFlow(app.ctx, oauthConfig, env); err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			fmt.Println("Authorization complete; token stored.")
			return nil
		},
	}
}
