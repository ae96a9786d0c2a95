package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"order-backend/handlers"
	"order-backend/internal/auth"
	"order-backend/internal/consul"
	"order-backend/internal/orders"
	"order-backend/internal/stores/kafka"
	"order-backend/internal/stores/postgres"
	"order-backend/pkg/logkey"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := startApp(); err != nil {
		slog.Error("failed to start service", slog.String(logkey.ERROR, err.Error()))
		os.Exit(1)
	}
}

func startApp() error {
	// Values already in the environment win over .env.
	_ = godotenv.Load()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		return fmt.Errorf("POSTGRES_DSN is not set")
	}

	if err := postgres.RunMigrations(dsn); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	o, err := orders.NewConf(pool)
	if err != nil {
		return err
	}

	pemBytes, err := os.ReadFile(getenv("AUTH_PUBLIC_KEY_FILE", "pubkey.pem"))
	if err != nil {
		return fmt.Errorf("failed to read auth public key: %w", err)
	}
	keys, err := auth.NewKeysFromPEM(pemBytes)
	if err != nil {
		return err
	}

	k, err := kafka.NewConf(splitCSV(getenv("KAFKA_BROKERS", "localhost:9092")))
	if err != nil {
		return err
	}
	defer k.Close()

	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if webhookSecret == "" {
		slog.Warn("STRIPE_WEBHOOK_SECRET is not set, payment webhooks will be rejected")
	}

	port, err := strconv.Atoi(getenv("APP_PORT", "8085"))
	if err != nil {
		return fmt.Errorf("invalid APP_PORT: %w", err)
	}

	serviceID := "order-backend-" + uuid.NewString()
	consulClient, err := consul.NewClient(os.Getenv("CONSUL_HTTP_ADDR"))
	if err != nil {
		slog.Error("failed to create consul client", slog.String(logkey.ERROR, err.Error()))
	} else if err := consul.RegisterService(consulClient, serviceID, "orders", getenv("APP_HOST", "localhost"), port); err != nil {
		slog.Error("failed to register with consul", slog.String(logkey.ERROR, err.Error()))
	} else {
		defer func() {
			if err := consul.DeregisterService(consulClient, serviceID); err != nil {
				slog.Error("failed to deregister from consul", slog.String(logkey.ERROR, err.Error()))
			}
		}()
	}

	api := handlers.API(getenv("SERVICE_ENDPOINT_PREFIX", "/orders-service"), keys, o, k, webhookSecret)
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      api,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("starting server", slog.String("Addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		slog.Info("shutdown initiated", slog.String("Signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
