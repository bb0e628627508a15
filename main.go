package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"kyc_link_gateway/internal/callback"
	"kyc_link_gateway/internal/config"
	"kyc_link_gateway/internal/handler"
	"kyc_link_gateway/internal/logger"
	"kyc_link_gateway/internal/messaging"
	"kyc_link_gateway/internal/metrics"
	"kyc_link_gateway/internal/provider"
	"kyc_link_gateway/internal/redirect"
	"kyc_link_gateway/internal/repository"
	"kyc_link_gateway/internal/service"
	"kyc_link_gateway/internal/signature"
	"kyc_link_gateway/internal/webhook"
)

const (
	migrationsDir   = "migrations"
	purgeInterval   = 10 * time.Minute
	shutdownTimeout = 30 * time.Second
)

func runMigrations(ctx context.Context, db *pgxpool.Pool, log *zap.Logger) error {
	log.Info("Running database migrations")

	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		if _, err := db.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}

		log.Info("Migration completed", zap.String("file", filename))
	}

	return nil
}

// openIssuanceStore возвращает хранилище времени выдачи и функцию его закрытия.
func openIssuanceStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.IssuanceRepository, func(), error) {
	switch cfg.Issuance.Store {
	case "redis":
		client, err := repository.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

		repo := repository.NewRedisIssuanceRepository(client, log)
		return repo, func() { _ = repo.Close() }, nil

	case "postgres":
		db, err := pgxpool.New(ctx, cfg.DatabaseDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info("Connected to database")

		if err := runMigrations(ctx, db, log); err != nil {
			db.Close()
			return nil, nil, err
		}

		repo := repository.NewPostgresIssuanceRepository(db, log)
		go purgeExpired(ctx, repo, log)
		return repo, db.Close, nil

	default:
		repo, err := repository.NewMemoryIssuanceRepository(cfg.Issuance.Retention, log)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	}
}

// В postgres записи не истекают сами: чтение их отфильтрует, но таблицу нужно чистить.
func purgeExpired(ctx context.Context, repo repository.PurgingIssuanceRepository, log *zap.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := repo.PurgeExpired(ctx)
			if err != nil {
				log.Warn("Failed to purge expired issuances", zap.Error(err))
				continue
			}
			if removed > 0 {
				log.Info("Purged expired issuances", zap.Int64("removed", removed))
			}
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting KYC link gateway")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	engine, err := signature.NewEngine(cfg.Provider.PartnerID, cfg.Provider.APIKey)
	if err != nil {
		log.Fatal("Failed to create signature engine", zap.Error(err))
	}

	issuances, closeStore, err := openIssuanceStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open issuance store", zap.Error(err), zap.String("store", cfg.Issuance.Store))
	}
	defer closeStore()

	natsClient, err := messaging.NewNATSClient(cfg.NATS.URL, log)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsClient.Close()

	// Подписываемся на пересланные вебхуки для трассировки
	err = natsClient.SubscribeToWebhookEvents(ctx, func(event *messaging.WebhookEventMessage) {
		log.Info("Webhook event delivered",
			zap.String("correlation_id", event.CorrelationID),
			zap.Bool("verified", event.Verified))
	})
	if err != nil {
		log.Error("Failed to subscribe to webhook events", zap.Error(err))
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	builder := provider.NewBuilder(engine, provider.PartnerProfile{
		LinkName:         cfg.Partner.LinkName,
		MultiUseLinkName: cfg.Partner.MultiUseLinkName,
		CompanyName:      cfg.Partner.CompanyName,
		CallbackURL:      cfg.Partner.CallbackURL,
		PrivacyPolicyURL: cfg.Partner.PrivacyPolicyURL,
	})

	verificationService := service.NewVerificationService(service.Options{
		Sanitizer: redirect.NewSanitizer(cfg.Callback.DefaultRedirectURL),
		Builder:   builder,
		Client:    provider.NewClient(cfg.Provider.BaseURL, cfg.Provider.Timeout, log),
		Issuances: issuances,
		NATS:      natsClient,
		IDConfig: provider.IDConfig{
			Country:            cfg.IDConfig.Country,
			IDType:             cfg.IDConfig.IDType,
			VerificationMethod: cfg.IDConfig.VerificationMethod,
		},
		Retention: cfg.Issuance.Retention,
		Metrics:   m,
	}, log)

	reconciler := callback.NewReconciler(issuances, cfg.Callback.ExpiryThreshold, cfg.Callback.RequireIssuance, m, log)
	ingestor := webhook.NewIngestor(engine, natsClient, cfg.Webhook.VerifySignature, m, log)

	gin.SetMode(gin.ReleaseMode)
	h := handler.NewHandler(verificationService, reconciler, ingestor, log)
	router := handler.NewRouter(h, cfg.Callback.Path, m, prometheus.DefaultGatherer, log)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
