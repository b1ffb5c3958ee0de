package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/translogix/tms/internal/config"
	"github.com/translogix/tms/internal/http_api"
	"github.com/translogix/tms/internal/lockmanager"
	"github.com/translogix/tms/internal/notificator"
	"github.com/translogix/tms/internal/obs"
	"github.com/translogix/tms/internal/repository"
	"github.com/translogix/tms/internal/tms"
	"github.com/translogix/tms/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "tms",
		Usage: "Transportation management backend with edit-claim coordination",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "HTTP API port"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
			&cli.DurationFlag{Name: "claim-ttl", Usage: "Edit-claim time to live"},
			&cli.IntFlag{Name: "lock-retries", Usage: "Retries on row-lock contention"},
			&cli.DurationFlag{Name: "lock-retry-delay", Usage: "Delay between contention retries"},
			&cli.BoolFlag{Name: "allow-lock-takeover", Usage: "Let the latest opener take over a live edit claim"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if c.IsSet("claim-ttl") {
		cfg.ClaimTTL = c.Duration("claim-ttl")
	}
	if c.IsSet("lock-retries") {
		cfg.LockRetries = c.Int("lock-retries")
	}
	if c.IsSet("lock-retry-delay") {
		cfg.LockRetryDelay = c.Duration("lock-retry-delay")
	}
	if c.IsSet("allow-lock-takeover") {
		cfg.AllowLockTakeover = c.Bool("allow-lock-takeover")
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize the edit-claim coordinator
	lockOpts := []lockmanager.Option{
		lockmanager.WithTTL(cfg.ClaimTTL),
		lockmanager.WithRetries(cfg.LockRetries),
		lockmanager.WithRetryDelay(cfg.LockRetryDelay),
		lockmanager.WithMetrics(obs.NewMetrics()),
	}
	if cfg.AllowLockTakeover {
		lockOpts = append(lockOpts, lockmanager.WithTakeover())
	}
	locks := lockmanager.New(db.Conn, log, lockOpts...)

	// Initialize notificator
	var telNotif *notificator.TelegramNotificator
	if cfg.TelegramBotToken != "" {
		telNotif, err = notificator.NewTelegramNotificator(log, cfg.TelegramBotToken)
		if err != nil {
			return fmt.Errorf("failed to initialize telegram notificator: %v", err)
		}
	}
	emailNotif := notificator.NewEmailNotificator(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender)
	notif := notificator.NewNotificator(log, telNotif, emailNotif)

	// Create TMS instance
	tmsApp := tms.NewTMS(db, locks, notif, log, cfg)

	// Initialize API server
	apiServer := http_api.NewHTTPServer(tmsApp, cfg.APIPort, log)
	go apiServer.Start()

	// Wait for a termination signal, then shut down gracefully
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Received signal, shutting down", "signal", sig.String())

	if err := apiServer.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}
	// Give in-flight notifications a moment to drain
	time.Sleep(100 * time.Millisecond)

	return nil
}
