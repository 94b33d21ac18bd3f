// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/olegiv/chapel-cms/internal/auth"
	"github.com/olegiv/chapel-cms/internal/config"
	"github.com/olegiv/chapel-cms/internal/content"
	"github.com/olegiv/chapel-cms/internal/editor"
	"github.com/olegiv/chapel-cms/internal/geoip"
	"github.com/olegiv/chapel-cms/internal/handler"
	"github.com/olegiv/chapel-cms/internal/handler/api"
	"github.com/olegiv/chapel-cms/internal/media"
	"github.com/olegiv/chapel-cms/internal/metrics"
	"github.com/olegiv/chapel-cms/internal/middleware"
	"github.com/olegiv/chapel-cms/internal/ratelimit"
	"github.com/olegiv/chapel-cms/internal/render"
	"github.com/olegiv/chapel-cms/internal/scheduler"
	"github.com/olegiv/chapel-cms/internal/service"
	"github.com/olegiv/chapel-cms/internal/session"
	"github.com/olegiv/chapel-cms/internal/sitepatch"
	"github.com/olegiv/chapel-cms/internal/version"
	"github.com/olegiv/chapel-cms/web"
)

// Per-IP token buckets in front of login and upload.
const (
	loginRPS    = 0.5
	loginBurst  = 10
	uploadRPS   = 1
	uploadBurst = 20
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	newLogger(cfg)
	slog.Info("starting chapel", "version", version.Get().String(), "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close(context.Background())

	logger := withEventLog(cfg, b.queries)
	slog.Info("event log integration enabled", "min_level", "warn")

	res, err := b.seed(ctx, cfg)
	if err != nil {
		return err
	}
	if res.SuperAdminCreated {
		printSeedResult(cmd.OutOrStdout(), cfg, res)
	}

	m := metrics.New()
	m.RegisterDB(b.db)

	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		slog.Warn("geoip disabled", "path", cfg.GeoIPDBPath, "error", err)
	}
	defer func() { _ = geo.Close() }()

	probes := map[string]handler.Probe{}

	var (
		limiter  ratelimit.Limiter
		attempts scheduler.AttemptPruner
	)
	if cfg.UseRedis() {
		rl, err := ratelimit.NewRedis(cfg.RedisURL, cfg.RedisPrefix, cfg.LoginMaxAttempts, cfg.LoginWindow)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() { _ = rl.Close() }()
		limiter = rl
		probes["redis"] = rl.Ping
		slog.Info("login limiter", "backend", "redis")
	} else {
		mem := ratelimit.NewMemory(cfg.LoginMaxAttempts, cfg.LoginWindow)
		limiter = mem
		attempts = mem
		slog.Info("login limiter", "backend", "memory")
	}
	if b.mongo != nil {
		probes["mongodb"] = b.mongo.Ping
	}

	var storage media.Storage
	if cfg.UseS3() {
		s3, err := media.NewS3(ctx, media.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return err
		}
		storage = s3
		slog.Info("media storage", "backend", "s3", "bucket", cfg.S3Bucket)
	} else {
		local, err := media.NewLocal(cfg.UploadsDir)
		if err != nil {
			return err
		}
		storage = local
		slog.Info("media storage", "backend", "local", "dir", cfg.UploadsDir)
	}

	var schema *content.Schema
	if cfg.SchemaFile != "" {
		if schema, err = content.LoadSchema(cfg.SchemaFile); err != nil {
			return err
		}
	}
	table, err := sitepatch.LoadTable(cfg.SelectorsFile)
	if err != nil {
		return err
	}

	events := service.NewEventService(b.queries)
	sanitizer := content.NewSanitizer()
	users := service.NewUserService(service.UserServiceConfig{
		Users:           b.users,
		Limiter:         limiter,
		Tokens:          auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL),
		Events:          events,
		GeoIP:           geo,
		SuperAdminEmail: cfg.SuperAdminEmail,
		Logger:          logger,
	})
	contents := service.NewContentService(b.contents, sanitizer, events)
	mediaSvc := service.NewMediaService(storage, cfg.MaxUploadBytes(), logger)

	sm := session.New(b.db, cfg.IsDevelopment())
	templates, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return fmt.Errorf("getting templates fs: %w", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS:     templates,
		SessionManager:  sm,
		SuperAdminEmail: cfg.SuperAdminEmail,
		IsDev:           cfg.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}
	ed, err := editor.New(sanitizer, cfg.MediaBaseURL)
	if err != nil {
		return err
	}
	guide, err := handler.NewGuideHandler(web.Guide, renderer)
	if err != nil {
		return err
	}

	loginRL := middleware.NewRateLimiter("login", loginRPS, loginBurst)
	uploadRL := middleware.NewRateLimiter("upload", uploadRPS, uploadBurst)
	loginRL.OnReject = m.IncRateLimitRejection
	uploadRL.OnReject = m.IncRateLimitRejection

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(m.Middleware)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment(), mediaOrigin(cfg.MediaBaseURL))))

	static, err := fs.Sub(web.Static, "static/dist")
	if err != nil {
		return fmt.Errorf("getting static fs: %w", err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	mediaHandler := handler.NewMediaHandler(mediaSvc, renderer, m)
	handler.AdminRoutes{
		Sessions:     sm,
		Users:        users,
		Events:       events,
		CSRF:         middleware.CSRF(middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment(), cfg.ServerAddr())),
		LoginLimiter: loginRL,
		Auth:         handler.NewAuthHandler(users, renderer, sm, m),
		Dashboard:    handler.NewAdminHandler(contents, renderer, m),
		Pages:        handler.NewPagesHandler(contents, mediaSvc, content.NewClassifier(schema), ed, renderer, m),
		Accounts:     handler.NewUsersHandler(users, renderer),
		Media:        mediaHandler,
		EventLog:     handler.NewEventsHandler(events, geo, renderer),
		Guide:        guide,
	}.Register(r)

	r.Mount("/api", api.NewHandler(api.Config{
		Contents:      contents,
		Users:         users,
		Media:         mediaSvc,
		Events:        events,
		Metrics:       m,
		LoginLimiter:  loginRL,
		UploadLimiter: uploadRL,
		Logger:        logger,
	}).Routes())
	r.Get(service.UploadURLPrefix+"*", mediaHandler.Serve)

	health := handler.NewHealthHandler(handler.HealthConfig{
		DB:         b.db,
		Sessions:   sm,
		Users:      users,
		UploadsDir: cfg.UploadsDir,
		Probes:     probes,
	})
	r.Group(func(r chi.Router) {
		r.Use(sm.LoadAndSave)
		r.Get("/health", health.Health)
	})
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.MetricsToken != "" {
		r.With(requireToken(cfg.MetricsToken)).Handle("/metrics", m.Handler())
	}

	site := sitepatch.NewHandler(os.DirFS(cfg.SiteDir),
		b.contents, sitepatch.NewPatcher(table, sanitizer, cfg.MediaBaseURL, logger), logger)
	site.OnPatched = func(string) { m.IncPagePatched() }
	r.Handle("/*", site)

	sched := scheduler.New(logger)
	jobs := []scheduler.Job{
		scheduler.PruneLimitersJob(attempts, []scheduler.ClientPruner{loginRL, uploadRL}, logger),
		scheduler.PruneEventsJob(events, time.Duration(cfg.EventRetentionDays)*24*time.Hour, logger),
	}
	if cfg.GeoIPEnabled() {
		jobs = append(jobs, scheduler.ReloadGeoIPJob(geo))
	}
	for _, job := range jobs {
		if err := sched.Add(job); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.ServerAddr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// requireToken guards an endpoint with a static bearer token.
func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// mediaOrigin returns the scheme and host of a media base URL, or "".
func mediaOrigin(base string) string {
	scheme, rest, ok := strings.Cut(base, "://")
	if !ok {
		return ""
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host
}
