package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"recurry/pkg/config"
	"recurry/pkg/curry"
	"recurry/pkg/dispatch"
	"recurry/pkg/host/telegram"
	"recurry/pkg/logger"
	"recurry/pkg/session"
	"recurry/pkg/status"
	"recurry/pkg/wait"

	"github.com/spf13/cobra"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram demo bot",
	Long:  "Loads configuration, connects the callback router to Telegram, and serves updates until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.bot")

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := sessionStore(runCtx, cfg.Session)
		if err != nil {
			log.Error("Failed to open session store", "backend", cfg.Session.Backend, "error", err)
			return
		}
		sessions := session.NewManager(store, appLogger)
		defer func() {
			if err := sessions.Close(context.Background()); err != nil {
				log.Error("Failed to close session store", "error", err)
			}
		}()

		registry := curry.NewRegistry(appLogger)
		waiter := wait.NewWaiter(registry, appLogger)
		router := dispatch.NewRouter(registry, waiter, appLogger)

		demo, err := newDemo(registry, waiter)
		if err != nil {
			log.Error("Failed to register demo handlers", "error", err)
			return
		}

		allowFrom, err := cfg.Telegram.AllowFromIDs()
		if err != nil {
			log.Error("Bot configuration invalid", "error", err)
			return
		}

		binding, err := telegram.New(telegram.Config{
			Token:     cfg.Telegram.Token,
			AllowFrom: allowFrom,
		}, router, sessions, appLogger)
		if err != nil {
			log.Error("Failed to initialize telegram binding", "error", err)
			return
		}
		binding.OnUnhandled(demo.welcome)

		statusSrv := status.NewServer(cfg.Status, cfg.Session.Backend, appLogger)
		if cfg.Status.Enabled {
			go func() {
				if err := statusSrv.Run(runCtx); err != nil {
					log.Error("Status server failed", "error", err)
				}
			}()
		}

		log.Info("Bot started", "session_backend", cfg.Session.Backend)
		statusSrv.MarkRunning("telegram")
		err = binding.Run(runCtx)
		statusSrv.MarkStopped("telegram", err)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Bot runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
}

// sessionStore opens the configured session backend.
func sessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return session.NewSQLiteStore(cfg.Path)
	case config.BackendMongo:
		return session.NewMongoStore(ctx, cfg.URI, cfg.Database)
	default:
		return session.NewMemoryStore(), nil
	}
}
