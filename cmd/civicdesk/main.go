package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/civicdesk/civicdesk/internal/auth"
	"github.com/civicdesk/civicdesk/internal/database"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/media"
	"github.com/civicdesk/civicdesk/internal/server"
	"github.com/civicdesk/civicdesk/internal/store"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logging.Setup(env("CIVICDESK_LOG_LEVEL", "info"), env("CIVICDESK_LOG_FORMAT", "text"))

	port := env("CIVICDESK_PORT", "8080")
	dbPath := env("CIVICDESK_DB_PATH", "civicdesk.db")

	jwtSecret := os.Getenv("CIVICDESK_JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("CIVICDESK_JWT_SECRET is required")
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := bootstrapAdmin(db); err != nil {
		log.Fatalf("failed to bootstrap admin: %v", err)
	}

	cfg := server.Config{
		JWTSecret:       jwtSecret,
		VAPIDPublicKey:  os.Getenv("CIVICDESK_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("CIVICDESK_VAPID_PRIVATE_KEY"),
		PushSubscriber:  env("CIVICDESK_PUSH_SUBSCRIBER", "mailto:ops@civicdesk.local"),
		Media: media.Config{
			Endpoint:      os.Getenv("CIVICDESK_S3_ENDPOINT"),
			Bucket:        os.Getenv("CIVICDESK_S3_BUCKET"),
			Region:        env("CIVICDESK_S3_REGION", "auto"),
			AccessKey:     os.Getenv("CIVICDESK_S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("CIVICDESK_S3_SECRET_KEY"),
			PublicBaseURL: os.Getenv("CIVICDESK_S3_PUBLIC_URL"),
		},
	}

	srv := server.New(db, cfg, logger)

	// Expired rate-limit entries accumulate slowly; sweep them hourly.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			srv.RateLimiter().Cleanup()
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("civicdesk listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

// bootstrapAdmin creates the first admin account from the environment when
// it does not exist yet. Without the env vars set this is a no-op.
func bootstrapAdmin(db *sql.DB) error {
	email := os.Getenv("CIVICDESK_ADMIN_EMAIL")
	password := os.Getenv("CIVICDESK_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	users := store.NewUserStore(db)
	existing, err := users.GetByEmail(email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	admin, err := users.Create(env("CIVICDESK_ADMIN_USERNAME", "admin"), "Administrator", email, hash)
	if err != nil {
		return err
	}
	return users.SetAdmin(admin.ID, true)
}
