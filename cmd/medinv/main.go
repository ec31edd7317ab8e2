package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"medinv/m/internal/api"
	"medinv/m/internal/auth"
	"medinv/m/internal/config"
	"medinv/m/internal/database"
	"medinv/m/internal/dispense"
	"medinv/m/internal/logging"
	"medinv/m/internal/metrics"
	"medinv/m/internal/migrations"
	"medinv/m/internal/repository"
	"medinv/m/internal/seed"
	"medinv/m/internal/server"
)

var (
	verbose   bool
	seedUsers bool

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "medinv",
	Short:         "Hospital warehouse medication inventory backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err = logging.New(cfg.LogLevel, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the dispensing feed",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the schema and load the seed inventory into an empty database",
	RunE:  runMigrate,
}

var seedUsersCmd = &cobra.Command{
	Use:   "seed-users",
	Short: "Create the admin, farmacia and asistente test accounts",
	RunE:  runSeedUsers,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	serveCmd.Flags().BoolVar(&seedUsers, "seed-users", false, "create the test accounts before serving")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedUsersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openDB connects and applies the schema.
func openDB() (*sqlx.DB, error) {
	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	logger.Info("database ready", zap.String("driver", database.DriverFor(cfg.DatabaseDSN)))
	return db, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if seedUsers {
		if _, err := seed.SeedUsers(ctx, db, logger); err != nil {
			return err
		}
	}

	collector := metrics.New()

	var authn auth.Authenticator
	switch cfg.AuthMode {
	case config.AuthStatic:
		authn = auth.NewStaticAuthenticator()
	default:
		authn = auth.NewDatabaseAuthenticator(repository.NewUserRepository(db))
	}
	logger.Info("authentication configured", zap.String("mode", cfg.AuthMode))

	var feed *dispense.Feed
	if cfg.FeedEnabled {
		feed = dispense.New(dispense.Config{Interval: cfg.FeedInterval, Capacity: cfg.FeedCapacity}, logger.Named("dispense"), collector)
	}

	handler := api.New(api.Options{
		DB:                db,
		Logger:            logger,
		Metrics:           collector,
		Authenticator:     authn,
		Tokens:            auth.NewTokens(cfg.Secret, cfg.TokenTTL),
		Feed:              feed,
		LowStockThreshold: cfg.LowStockThreshold,
		CORSOrigins:       cfg.CORSOrigins,
		RateLimit:         cfg.RateLimit,
		RequestTimeout:    cfg.WriteTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, cfg, handler.Router(), logger)
	})
	if feed != nil {
		g.Go(func() error {
			return feed.Run(gctx)
		})
	}
	return g.Wait()
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := seed.NewMigrator(db, logger, nil).Run(cmd.Context(), nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	if !res.Success {
		logger.Warn("migration skipped", zap.String("reason", res.Message))
	}
	return nil
}

func runSeedUsers(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := seed.SeedUsers(cmd.Context(), db, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d test accounts created\n", n)
	return nil
}
