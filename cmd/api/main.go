package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Santi4567/Akima-sub001/internal/api"
	"github.com/Santi4567/Akima-sub001/internal/auth"
	"github.com/Santi4567/Akima-sub001/internal/config"
	"github.com/Santi4567/Akima-sub001/internal/database"
	"github.com/Santi4567/Akima-sub001/internal/idempotency"
	"github.com/Santi4567/Akima-sub001/internal/logging"
	"github.com/Santi4567/Akima-sub001/internal/metrics"
	"github.com/Santi4567/Akima-sub001/internal/models"
	"github.com/Santi4567/Akima-sub001/internal/store"
	"github.com/Santi4567/Akima-sub001/migrations"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Load config: %v", err)
	}

	log := logging.New(cfg.Log)
	gin.SetMode(gin.ReleaseMode)

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	log.Info("Connected to database successfully")

	ctx := context.Background()

	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(ctx, db, migrations.Files, database.Up)
		if err != nil {
			log.Fatalf("Run migrations: %v", err)
		}
		log.WithField("files", applied).Info("Migrations applied")
	}

	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		if err := seedAdmin(ctx, cfg.Admin, db, log); err != nil {
			log.Fatalf("Seed admin: %v", err)
		}
	}

	perms, err := auth.LoadPermissions(cfg.Auth.PermissionsFile)
	if err != nil {
		log.Fatalf("Load permissions: %v", err)
	}

	var idem idempotency.Store
	if cfg.Redis.URL != "" {
		rdb, err := idempotency.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Connect to redis: %v", err)
		}
		defer rdb.Close()
		idem = idempotency.NewRedisStore(rdb, cfg.Redis.IdempotencyTTL, cfg.Redis.PendingTTL)
		log.Info("Idempotency keys enabled")
	}

	server := api.NewServer(api.Options{
		DB:          db,
		Tokens:      auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Permissions: perms,
		Logger:      log,
		Idempotency: idem,
		Metrics:     metrics.NewServerMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer),
		UploadsDir:  cfg.Uploads.Dir,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.Router(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("Server starting on port %s", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Shutdown: %v", err)
	}
}

// seedAdmin creates the first administrator. An existing account with the same
// email is left untouched.
func seedAdmin(ctx context.Context, admin config.AdminConfig, db *sql.DB, log *logrus.Logger) error {
	hash, err := auth.HashPassword(admin.Password)
	if err != nil {
		return err
	}

	created, err := store.EnsureUser(ctx, db, store.UserInput{
		Name:         admin.Name,
		Email:        admin.Email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return err
	}
	if created {
		log.WithField("email", admin.Email).Info("Admin account created")
	}
	return nil
}
