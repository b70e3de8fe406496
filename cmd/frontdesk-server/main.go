package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/frontdesk/frontdesk/internal/config"
	"github.com/frontdesk/frontdesk/internal/domain/booking"
	"github.com/frontdesk/frontdesk/internal/domain/catalog"
	"github.com/frontdesk/frontdesk/internal/domain/customer"
	"github.com/frontdesk/frontdesk/internal/domain/staff"
	"github.com/frontdesk/frontdesk/internal/domain/voice"
	"github.com/frontdesk/frontdesk/internal/platform/auth"
	"github.com/frontdesk/frontdesk/internal/platform/cache"
	"github.com/frontdesk/frontdesk/internal/platform/calendar"
	"github.com/frontdesk/frontdesk/internal/platform/db"
	"github.com/frontdesk/frontdesk/internal/platform/middleware"
	"github.com/frontdesk/frontdesk/internal/platform/outbox"
	"github.com/frontdesk/frontdesk/internal/platform/webhook"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "frontdesk-server",
		Short: "Appointment booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant schema and run migrations against it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: tenant_%s\n", name)
			if err := db.CreateTenantSchema(ctx, pool, name, cfg.MigrationsDir); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

// skipPublic wraps a middleware so it bypasses health checks and the inbound
// voice webhook, which carry no bearer token.
func skipPublic(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		wrapped := mw(next)
		return func(c echo.Context) error {
			if auth.AuthSkipper(c) {
				return next(c)
			}
			return wrapped(c)
		}
	}
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Redis is optional. A nil client falls back to in-memory rate limiting
	// and an in-process availability response cache.
	var rdb = cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(echomw.BodyLimit(cfg.MaxBodySize))
	e.Use(middleware.RequestTimeout(time.Duration(cfg.RequestTimeout) * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID", "Idempotency-Key"},
	}))

	if cfg.IsDev() {
		e.Use(skipPublic(auth.DevAuthMiddleware()))
	} else {
		e.Use(skipPublic(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.JWTSecret),
		})))
	}

	e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	if rl := middleware.RedisRateLimit(rdb, rateLimitCfg); rl != nil {
		apiV1.Use(rl)
	} else {
		apiV1.Use(middleware.RateLimit(rateLimitCfg))
	}

	// Repositories
	typeRepo := catalog.NewTypeRepoPG(pool)
	settingsRepo := catalog.NewSettingsRepoPG(pool)
	staffRepo := staff.NewRepoPG(pool)
	availRepo := staff.NewAvailabilityRepoPG(pool)
	hoursRepo := staff.NewOfficeHoursRepoPG(pool)
	customerRepo := customer.NewRepoPG(pool)
	bookingRepo := booking.NewRepoPG(pool)
	outboxRepo := outbox.NewRepository(pool)

	// Services
	catalogSvc := catalog.NewService(typeRepo, settingsRepo)
	staffSvc := staff.NewService(staffRepo, availRepo, hoursRepo)
	customerSvc := customer.NewService(customerRepo)
	bookingSvc := booking.NewService(bookingRepo, typeRepo, settingsRepo, staffRepo, availRepo, hoursRepo, logger)

	// Handlers
	catalog.NewHandler(catalogSvc).RegisterRoutes(apiV1)
	staff.NewHandler(staffSvc).RegisterRoutes(apiV1)
	customer.NewHandler(customerSvc).RegisterRoutes(apiV1)

	var slotCache []echo.MiddlewareFunc
	if cfg.SlotCacheTTL > 0 {
		ttl := time.Duration(cfg.SlotCacheTTL) * time.Second
		var store middleware.CacheStore
		if rdb != nil {
			store = middleware.NewRedisCacheStore(rdb, "slots")
		} else {
			mem := middleware.NewMemoryCacheStore()
			mem.Janitor(ctx, ttl)
			store = mem
		}
		slotCache = append(slotCache, middleware.ResponseCacheMiddleware(store, ttl))
	}
	booking.NewHandler(bookingSvc).RegisterRoutes(apiV1, slotCache...)

	voice.NewHandler(cfg.VoiceWebhookSecret, customerSvc, outboxRepo, logger).RegisterRoutes(apiV1)

	// Outbound webhooks
	webhookStore := webhook.NewPGStore(pool)
	webhookMgr := webhook.NewManager(webhookStore, logger)
	webhook.NewHandler(webhookMgr).RegisterRoutes(apiV1.Group("/webhook-endpoints", auth.RequireRole("admin", "owner")))

	// Calendar sync
	var cal calendar.Client = calendar.Noop{}
	if cfg.CalendarBaseURL != "" {
		cal = calendar.NewHTTPClient(cfg.CalendarBaseURL, cfg.CalendarToken)
	}

	// Outbox dispatcher: post-commit side effects of booking writes.
	dispatcher := outbox.NewDispatcher(outboxRepo, logger,
		time.Duration(cfg.OutboxPollInterval)*time.Second, cfg.OutboxBatchSize)
	registerOutboxHandlers(dispatcher, pool, bookingRepo, customerRepo, staffRepo, cal, webhookMgr, logger)

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	go dispatcher.Run(dispatchCtx)
	defer stopDispatch()

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": "0.1.0"})
	})
	e.GET("/readyz", db.HealthHandler(pool))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// registerOutboxHandlers wires the post-commit consumers: appointment history
// rows, denormalized customer stats, calendar pushes, and outbound webhooks.
// Each handler runs under the event's tenant schema.
func registerOutboxHandlers(d *outbox.Dispatcher, pool *pgxpool.Pool, bookingRepo booking.Repository,
	customerRepo customer.Repository, staffRepo staff.Repository, cal calendar.Client,
	webhookMgr *webhook.Manager, logger zerolog.Logger) {

	historyAction := map[string]string{
		outbox.EventAppointmentCreated:   "created",
		outbox.EventAppointmentUpdated:   "updated",
		outbox.EventAppointmentCancelled: "cancelled",
		outbox.EventAppointmentDeleted:   "deleted",
	}

	appointmentEvents := []string{
		outbox.EventAppointmentCreated,
		outbox.EventAppointmentUpdated,
		outbox.EventAppointmentCancelled,
		outbox.EventAppointmentDeleted,
	}

	// History trail.
	for _, eventType := range appointmentEvents {
		eventType := eventType
		if eventType == outbox.EventAppointmentDeleted {
			// The row is gone; there is nothing to attach history to.
			continue
		}
		d.On(eventType, func(ctx context.Context, ev outbox.Event) error {
			var appt booking.Appointment
			if err := json.Unmarshal(ev.Payload, &appt); err != nil {
				return err
			}
			return db.WithTenant(ctx, pool, ev.Tenant, func(ctx context.Context) error {
				return bookingRepo.AddHistory(ctx, &booking.History{
					AppointmentID: appt.ID,
					Action:        historyAction[eventType],
					Actor:         "system",
					Details:       ev.Payload,
				})
			})
		})
	}

	// Denormalized customer counters.
	d.On(outbox.EventAppointmentCreated, func(ctx context.Context, ev outbox.Event) error {
		var appt booking.Appointment
		if err := json.Unmarshal(ev.Payload, &appt); err != nil {
			return err
		}
		return db.WithTenant(ctx, pool, ev.Tenant, func(ctx context.Context) error {
			return customerRepo.BumpStats(ctx, appt.CustomerID, 1, 0, 0, 0, &appt.StartAt)
		})
	})
	d.On(outbox.EventAppointmentCancelled, func(ctx context.Context, ev outbox.Event) error {
		var appt booking.Appointment
		if err := json.Unmarshal(ev.Payload, &appt); err != nil {
			return err
		}
		return db.WithTenant(ctx, pool, ev.Tenant, func(ctx context.Context) error {
			return customerRepo.BumpStats(ctx, appt.CustomerID, 0, 0, 1, 0, nil)
		})
	})
	d.On(outbox.EventAppointmentUpdated, func(ctx context.Context, ev outbox.Event) error {
		var appt booking.Appointment
		if err := json.Unmarshal(ev.Payload, &appt); err != nil {
			return err
		}
		var completed, noShow int
		switch appt.Status {
		case booking.StatusCompleted:
			completed = 1
		case booking.StatusNoShow:
			noShow = 1
		default:
			return nil
		}
		return db.WithTenant(ctx, pool, ev.Tenant, func(ctx context.Context) error {
			return customerRepo.BumpStats(ctx, appt.CustomerID, 0, completed, 0, noShow, nil)
		})
	})

	// Calendar pushes.
	calendarHandler := func(ctx context.Context, ev outbox.Event) error {
		var appt booking.Appointment
		if err := json.Unmarshal(ev.Payload, &appt); err != nil {
			return err
		}
		event := calendar.Event{
			AppointmentID: appt.ID.String(),
			Start:         appt.StartAt,
			End:           appt.EndAt,
			Cancelled:     appt.Status == booking.StatusCancelled,
		}
		if appt.StaffID != nil {
			_ = db.WithTenant(ctx, pool, ev.Tenant, func(ctx context.Context) error {
				if m, err := staffRepo.GetByID(ctx, *appt.StaffID); err == nil && m.Email != nil {
					event.StaffEmail = *m.Email
				}
				return nil
			})
		}
		return cal.Push(ctx, ev.Tenant, event)
	}
	d.On(outbox.EventAppointmentCreated, calendarHandler)
	d.On(outbox.EventAppointmentUpdated, calendarHandler)
	d.On(outbox.EventAppointmentCancelled, calendarHandler)

	// Outbound webhooks fan out every appointment event plus recorded calls.
	webhookHandler := func(ctx context.Context, ev outbox.Event) error {
		return db.WithTenant(ctx, pool, ev.Tenant, func(ctx context.Context) error {
			results := webhookMgr.Notify(ctx, webhook.Event{
				ID:         uuid.New().String(),
				Type:       ev.Type,
				TenantID:   ev.Tenant,
				Subject:    ev.ID.String(),
				Payload:    ev.Payload,
				OccurredAt: ev.CreatedAt,
			})
			for _, r := range results {
				if !r.Delivered {
					logger.Warn().Str("endpoint_id", r.EndpointID).
						Str("event", ev.Type).Msg("webhook delivery failed")
				}
			}
			return nil
		})
	}
	for _, eventType := range appointmentEvents {
		d.On(eventType, webhookHandler)
	}
	d.On(outbox.EventCallRecorded, webhookHandler)
}
