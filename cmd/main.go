package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"qawafel-crm/internal/ai"
	"qawafel-crm/internal/events"
	"qawafel-crm/internal/model"
	"qawafel-crm/internal/seed"
	"qawafel-crm/internal/server"
	"qawafel-crm/pkg/config"
	"qawafel-crm/pkg/database"
	"qawafel-crm/pkg/logger"
)

const serviceName = "qawafel-crm"

var (
	cfg      *config.Config
	seedDemo bool
)

var rootCmd = &cobra.Command{
	Use:   "qawafel-crm",
	Short: "Qawafel marketplace CRM service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(serviceName); err != nil {
			return err
		}
		return logger.InitLogger(&logger.LogConfig{
			Level:       cfg.Log.Level,
			Environment: cfg.Server.Env,
			ServiceName: serviceName,
		})
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the database and start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openDatabase(); err != nil {
			return err
		}
		defer database.Close()
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load lookup tables and the admin account",
	Long: `Load lead statuses, lead sources, deal stages and the admin account.

The admin password is read from SEED_ADMIN_PASSWORD. Pass --demo to also
load demo customers, merchants, leads, deals and proposals.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&seedDemo, "demo", false, "also load demo records")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDatabase connects and migrates every model
func openDatabase() error {
	log := logger.GetLogger()

	if _, err := database.InitDB(&cfg.DB); err != nil {
		log.Error("Failed to initialize database", zap.Error(err))
		return err
	}
	log.Info("Database connection established")

	if err := database.MigrateModels(model.All()...); err != nil {
		log.Error("Failed to migrate database", zap.Error(err))
		return err
	}
	log.Info("Database migrated")
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	if err := openDatabase(); err != nil {
		return err
	}
	defer database.Close()

	data, err := seed.Default()
	if err != nil {
		return err
	}
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = "admin"
	}
	return seed.Run(cmd.Context(), database.GetDB(), data, seed.Options{
		AdminPassword: password,
		Demo:          seedDemo,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting CRM service...", cfg.LogFields()...)

	if err := openDatabase(); err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher := newPublisher()
	defer publisher.Close()

	messages, closeMessages := newMessageService(ctx)
	defer closeMessages()

	e := server.New(server.Options{
		Config:    cfg,
		Publisher: publisher,
		Messages:  messages,
	})

	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// newPublisher connects to the event broker, or drops events when none is configured
func newPublisher() events.Publisher {
	log := logger.GetLogger()
	if cfg.AMQP.URL == "" {
		log.Info("AMQP not configured, activity events are not published")
		return events.NopPublisher{}
	}

	publisher, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		log.Error("Failed to connect to AMQP, activity events are not published", zap.Error(err))
		return events.NopPublisher{}
	}
	log.Info("Publishing activity events", zap.String("exchange", cfg.AMQP.Exchange))
	return publisher
}

// newMessageService creates the AI message drafter. Without an API key the
// service answers with a "not configured" message.
func newMessageService(ctx context.Context) (*ai.MessageService, func()) {
	log := logger.GetLogger()
	if cfg.Gemini.APIKey == "" {
		log.Warn("GEMINI_API_KEY is not set, message generation is disabled")
		return ai.NewMessageService(nil), func() {}
	}

	gen, err := ai.NewGeminiGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		log.Error("Failed to create Gemini client", zap.Error(err))
		return ai.NewMessageService(nil), func() {}
	}
	return ai.NewMessageService(gen), func() { gen.Close() }
}
