package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blog-lab/auth"
	"blog-lab/bus"
	"blog-lab/hub"
	api "blog-lab/infrastructure/http"
	"blog-lab/internal"
	"blog-lab/logs"
	"blog-lab/moderation"
	"blog-lab/observability"
	"blog-lab/repositories"
	"blog-lab/runtime/workers"
	"blog-lab/services"
	"blog-lab/workflow"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for HTTP and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	censoredRune, err := config.CensoredRune()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	// Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if log.Enabled(context.Background(), slog.LevelDebug) {
		log.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
		internal.StartDebugServer(db, config.DebugPort, "/inspect", internal.DefaultMapper, nil)
	}

	// 3. Repositories & Moderation
	users := repositories.NewUserRepository(db)
	posts := repositories.NewPostRepository(db, log)
	comments := repositories.NewCommentRepository(db, log, config.LimitComments)
	features := repositories.NewFeatureRequestRepository(db)
	blacklist := repositories.NewBlacklistRepository(db, log)

	words, err := blacklist.LoadWords(context.Background())
	if err != nil {
		return fmt.Errorf("loading blacklist failed: %w", err)
	}
	moderator, err := moderation.NewModerator(words, censoredRune, log)
	if err != nil {
		return fmt.Errorf("moderator setup failed: %w", err)
	}

	// 4. Event Bus, Hubs & Monitoring
	eventBus := bus.New(log, config.BusBufferSize)
	notifications := hub.NewNotificationHub(log, posts, config.ConnectionBufferSize)
	rooms := hub.NewRoomRegistry(log, comments, eventBus, moderator,
		config.ConnectionBufferSize, config.ReplayWindow)
	monitoring := observability.NewMonitoringManager(log)

	// 5. Services
	tokens := auth.NewTokenManager(config.JWTSecret, config.TokenDuration)
	engine := workflow.NewEngine(posts, eventBus, log)

	// 6. Supervised Workers
	sup := workers.NewSupervisor(log).Add(
		workers.NewNotificationPump(log, eventBus, notifications, monitoring),
		workers.NewCommentPump(log, eventBus, comments, monitoring),
		workers.NewHeartbeatWorker(log, config.HeartbeatInterval, notifications, rooms),
		workers.NewSweepWorker(log, config.SweepInterval, config.IdleTimeout,
			config.RoomGracePeriod, notifications, rooms),
		workers.NewHealthWorker(log, config.HealthInterval, notifications, rooms,
			eventBus, monitoring),
	)

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	// 8. HTTP Server Setup
	router := api.NewRouter(api.Deps{
		Log:           log,
		Tokens:        tokens,
		Auth:          services.NewAuthService(users, tokens),
		Blogs:         services.NewBlogService(posts),
		Features:      services.NewFeatureRequestService(features),
		Engine:        engine,
		Comments:      comments,
		Notifications: notifications,
		Rooms:         rooms,
		Monitoring:    monitoring,
	})

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: router}

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 9. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 10. Final Cleanup
	// Stop accepting requests first, then flush the live streams so every
	// connection sees a server_closing frame before the sockets die.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}

	notifications.Shutdown(config.FlushDeadline)
	rooms.Shutdown(config.FlushDeadline)

	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}
