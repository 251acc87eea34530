package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/content-hub/app/api"
	"github.com/lysyi3m/content-hub/app/auth"
	"github.com/lysyi3m/content-hub/app/cache"
	"github.com/lysyi3m/content-hub/app/cfg"
	"github.com/lysyi3m/content-hub/app/database"
	"github.com/lysyi3m/content-hub/app/feed"
	"github.com/lysyi3m/content-hub/app/importer"
	"github.com/lysyi3m/content-hub/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting Content Hub", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	authService, err := setupAuth(context.Background(), db, appCfg)
	if err != nil {
		slog.Error("Failed to set up authentication", "error", err)
		os.Exit(1)
	}

	// Redis is optional; the database limiter is used without it
	var (
		limiter      database.ImportLimiter
		redisLimiter *cache.ImportLimiter
	)
	if appCfg.RedisAddr != "" {
		redisLimiter, err = cache.NewImportLimiter(appCfg.RedisAddr, appCfg.ImportCooldown)
		if err != nil {
			slog.Warn("Redis unavailable, falling back to database rate limiting", "addr", appCfg.RedisAddr, "error", err)
		} else {
			defer redisLimiter.Close()
			limiter = redisLimiter
		}
	}
	store := database.NewStore(db, limiter, appCfg.ImportCooldown)

	var parseClient feed.ParseClient
	if appCfg.ParseFunctionURL != "" {
		parseClient = feed.NewRemoteClient(
			&http.Client{Timeout: appCfg.ParseTimeout + 5*time.Second},
			appCfg.ParseFunctionURL,
			appCfg.FunctionKey,
		)
		slog.Info("Using remote parse function", "url", appCfg.ParseFunctionURL)
	} else {
		fetcher := feed.NewFetcher(feed.NewHTTPClient(), appCfg.UserAgent,
			appCfg.ParseTimeout, appCfg.MaxFeedSize, appCfg.FetchRetries)
		parseClient = feed.NewService(fetcher, feed.NewParser(appCfg.MaxItems))
	}

	presets := feed.NewPresetCache(appCfg.FeedsDir)
	if err := presets.Run(); err != nil {
		slog.Error("Failed to load feed presets", "dir", appCfg.FeedsDir, "error", err)
		os.Exit(1)
	}

	notifications := importer.NewRecorder(50, importer.LogNotifier{})

	var importers []*importer.Importer
	for _, kind := range []feed.Kind{feed.KindWordPress, feed.KindPodcast} {
		im := importer.NewImporter(kind, store, parseClient, notifications,
			appCfg.ResetDelay, appCfg.ImportCooldown)
		if entries := presets.GetPreset(kind); len(entries) > 0 {
			im.SetFeeds(entries)
		}
		im.OnChange(func(s importer.State) {
			slog.Debug("Import state changed", "kind", kind, "phase", s.Phase, "progress", s.Progress, "status", s.Status)
		})
		importers = append(importers, im)
	}

	scheduler := tasks.NewScheduler(appCfg.WorkerCount, appCfg.PurgeInterval, authService)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(store, authService, parseClient, importers, presets,
		notifications, scheduler, appCfg.Version, appCfg.BaseUrl)
	if redisLimiter != nil {
		handler.AddHealthCheck("redis", redisLimiter)
	}
	server := api.NewServer(handler, appCfg.FunctionKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "base_url", appCfg.BaseUrl)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Content Hub shutdown complete")
}

// setupAuth builds the auth service and, when configured, creates or
// refreshes the bootstrap admin account.
func setupAuth(ctx context.Context, db *database.DB, appCfg *cfg.Cfg) (*auth.Service, error) {
	authService := auth.NewService(
		database.NewUserRepository(db),
		database.NewSessionRepository(db),
		appCfg.SessionTTL,
	)
	if appCfg.AdminEmail == "" {
		return authService, nil
	}

	admin, err := authService.EnsureAdmin(ctx, appCfg.AdminEmail, appCfg.AdminPass)
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap admin account %s: %w", appCfg.AdminEmail, err)
	}
	slog.Info("Admin account ready", "email", admin.Email, "id", admin.ID)

	return authService, nil
}
