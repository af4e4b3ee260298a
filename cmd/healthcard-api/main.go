package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/healthcard/healthcard-api/internal/auth"
	"github.com/healthcard/healthcard-api/internal/doctor"
	"github.com/healthcard/healthcard-api/internal/emergency"
	"github.com/healthcard/healthcard-api/internal/memstore"
	"github.com/healthcard/healthcard-api/internal/notify"
	"github.com/healthcard/healthcard-api/internal/patient"
	"github.com/healthcard/healthcard-api/internal/visit"
	"github.com/healthcard/healthcard-api/pkg/config"
	"github.com/healthcard/healthcard-api/pkg/database"
	"github.com/healthcard/healthcard-api/pkg/interfaces"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/monitoring"
	"github.com/healthcard/healthcard-api/pkg/ratelimit"
)

const serviceVersion = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.WithFields(map[string]interface{}{
		"version": serviceVersion,
		"backend": cfg.Storage.Backend,
	}).Info("Starting HealthCard API")

	store, db, err := buildStore(cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize storage")
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	// Legacy rows predate QR code IDs; align them at startup.
	// Best-effort, a failure is logged and never blocks startup.
	if n, err := store.Patients.BackfillQRCodeIDs(context.Background()); err != nil {
		log.WithError(err).Warn("QR code ID backfill failed")
	} else if n > 0 {
		log.WithFields(map[string]interface{}{"rows": n}).Info("Backfilled QR code IDs")
	}

	notifier := notify.NewWebhookNotifier(&cfg.Email, log)
	if !notifier.Configured() {
		log.Warn("Email webhook is not configured; code-gated flows will be unavailable")
	}

	tokens := auth.NewTokenManager(&cfg.JWT)
	authService := auth.NewService(store, notifier, tokens, log, cfg.Email.AppName)
	patientService := patient.NewService(store, log)
	doctorService := doctor.NewService(store, log)
	visitService := visit.NewService(store, notifier, log, cfg.Email.AppName)
	emergencyService := emergency.NewService(store, log)

	health := monitoring.NewHealthManager("healthcard-api", serviceVersion)
	if db != nil {
		health.RegisterChecker("database", func(ctx context.Context) error {
			return db.Health()
		})
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))

	if cfg.RateLimit.Enabled {
		router.Use(ratelimit.New(&cfg.RateLimit).Middleware())
	}
	if cfg.Monitoring.Enabled {
		router.Use(monitoring.Middleware())
		router.GET(cfg.Monitoring.MetricsPath, monitoring.Handler())
	}

	router.GET(cfg.Monitoring.HealthPath, func(c *gin.Context) {
		report := health.CheckHealth(c.Request.Context())
		status := http.StatusOK
		if report.Status != monitoring.HealthStatusHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	})

	auth.NewHandlers(authService, tokens, log).RegisterRoutes(router)
	patient.NewHandlers(patientService, tokens, log).RegisterRoutes(router)
	doctor.NewHandlers(doctorService, tokens, log).RegisterRoutes(router)
	visit.NewHandlers(visitService, tokens, log).RegisterRoutes(router)
	emergency.NewHandlers(emergencyService, log).RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.WithFields(map[string]interface{}{"addr": server.Addr}).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Forced shutdown")
	}
	log.Info("Server stopped")
}

// buildStore selects the storage backend. The returned *database.DB is
// nil for the in-memory backend.
func buildStore(cfg *config.Config, log *logger.Logger) (*interfaces.Store, *database.DB, error) {
	switch cfg.Storage.Backend {
	case "memory":
		log.Info("Using in-memory storage backend")
		return memstore.New().Repositories(), nil, nil

	default:
		db, err := database.NewConnection(&cfg.Database, log)
		if err != nil {
			return nil, nil, err
		}
		if err := db.CreateSchema(context.Background()); err != nil {
			db.Close()
			return nil, nil, err
		}
		store := &interfaces.Store{
			Users:    auth.NewUserRepository(db, log),
			Patients: patient.NewRepository(db, log),
			Doctors:  doctor.NewRepository(db, log),
			Records:  visit.NewRepository(db, log),
		}
		return store, db, nil
	}
}

// requestLogger emits one structured line per request
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.HTTPRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.ClientIP(),
			c.Writer.Status(),
			time.Since(start).Milliseconds(),
		)
	}
}
