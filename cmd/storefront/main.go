package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chanjin5212/myfarm-sub001/internal/auth"
	"github.com/chanjin5212/myfarm-sub001/internal/carrier"
	"github.com/chanjin5212/myfarm-sub001/internal/cart"
	"github.com/chanjin5212/myfarm-sub001/internal/gateway"
	"github.com/chanjin5212/myfarm-sub001/internal/httpapi"
	"github.com/chanjin5212/myfarm-sub001/internal/publisher"
	"github.com/chanjin5212/myfarm-sub001/internal/repository"
	"github.com/chanjin5212/myfarm-sub001/internal/service"
	"github.com/chanjin5212/myfarm-sub001/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Config struct {
	Env             string
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	DBHost        string
	DBPort        int
	DBUser        string
	DBPassword    string
	DBName        string
	MigrationsDir string

	RedisAddr string

	KafkaBrokers string

	JWTSecret string

	PaymentGatewayURL string
	PaymentSecretKey  string

	CarrierAPIURL    string
	CarrierAPIKey    string
	TrackingCallback string
}

func loadConfig() *Config {
	return &Config{
		Env:             getEnv("ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,

		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnvInt("DB_PORT", 5432),
		DBUser:        getEnv("DB_USER", "storefront"),
		DBPassword:    getEnv("DB_PASSWORD", "storefront"),
		DBName:        getEnv("DB_NAME", "storefront"),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		KafkaBrokers: getEnv("KAFKA_BROKERS", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		PaymentGatewayURL: getEnv("PAYMENT_GATEWAY_URL", "https://api.tosspayments.com"),
		PaymentSecretKey:  getEnv("PAYMENT_SECRET_KEY", ""),

		CarrierAPIURL:    getEnv("CARRIER_API_URL", "https://apis.tracker.delivery"),
		CarrierAPIKey:    getEnv("CARRIER_API_KEY", ""),
		TrackingCallback: getEnv("TRACKING_CALLBACK_URL", "http://localhost:8080/api/v1/webhooks/tracking"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	log := logger.MustNew("storefront", cfg.Env)
	defer func() { _ = log.Sync() }()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	repo, err := repository.NewRepository(&repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsDir,
	})
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer repo.Close()

	if err := repo.RunMigrations(&repository.Credentials{MigrationsDirPath: cfg.MigrationsDir}); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	cartStore := cart.NewRedisStore(redisClient)

	var events publisher.EventPublisher = publisher.Noop{}
	if cfg.KafkaBrokers != "" {
		kp := publisher.NewKafkaPublisher(strings.Split(cfg.KafkaBrokers, ",")...)
		defer kp.Close()
		events = kp
	}

	paymentClient := gateway.NewClient(cfg.PaymentGatewayURL, cfg.PaymentSecretKey)
	trackingClient := carrier.NewClient(cfg.CarrierAPIURL, cfg.CarrierAPIKey)

	intake := service.NewOrderIntakeService(repo, repo, events, log)
	payments := service.NewPaymentReconciliationService(repo, cartStore, paymentClient, events, log)
	tracking := service.NewShipmentTrackingService(repo, trackingClient, events, cfg.TrackingCallback, log)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	ordersHandler := httpapi.NewOrdersHandler(intake, payments, repo, cfg.RequestTimeout)
	shipmentsHandler := httpapi.NewShipmentsHandler(tracking, cfg.RequestTimeout)

	handler := httpapi.NewRouter(ordersHandler, shipmentsHandler, verifier, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront api starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
