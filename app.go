package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wardtrack-server/internal/config"
	"wardtrack-server/internal/events"
	"wardtrack-server/internal/handlers"
	"wardtrack-server/internal/middleware"
	"wardtrack-server/internal/models"
	"wardtrack-server/internal/mqtt"
	"wardtrack-server/internal/notify"
	"wardtrack-server/internal/routes"
	"wardtrack-server/internal/scan"
	"wardtrack-server/internal/store"
	"wardtrack-server/internal/utils"
)

// rules wires the notification engine on top of the store.
func rules(cfg *config.Config, st *store.Store, logger *zap.Logger) (*notify.Engine, *notify.Router) {
	emitter := notify.NewStoreEmitter(st, notify.NewForwarder(cfg.Notify.ForwardURL), logger)
	engine := notify.NewEngine(emitter, st, cfg.Notify.EarlyDischargeWindow, logger)
	return engine, notify.NewRouter(engine, logger)
}

func newRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// newPublisher selects the event bus. The returned close function drains
// in-flight deliveries.
func newPublisher(cfg *config.Config, router *notify.Router, logger *zap.Logger) (events.Publisher, func(), error) {
	switch cfg.Events.Bus {
	case config.EventBusRedis:
		client := newRedisClient(cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("error connecting to redis: %w", err)
		}
		return events.NewRedisPublisher(client, cfg.Redis.Stream), func() { client.Close() }, nil
	case config.EventBusHTTP:
		token := func() (string, error) {
			return utils.GenerateWebhookToken(cfg.Webhook.Secret, cfg.Webhook.Issuer, serviceName, cfg.Webhook.TokenTTL)
		}
		pub := events.NewAsyncPublisher(events.NewHTTPPublisher(cfg.Events.WebhookBaseURL, token), config.EventBusHTTP, logger)
		return pub, pub.Close, nil
	default:
		pub := events.NewInlinePublisher(router, logger)
		return pub, pub.Close, nil
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN}, logger)
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	st := store.New(db)

	engine, router := rules(cfg, st, logger)
	publisher, closePublisher, err := newPublisher(cfg, router, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	detector := scan.NewDetector(st, st, engine, scan.DetectorConfig{
		Window:           cfg.Scan.ConflictWindow,
		MatchByPatientID: cfg.Scan.MatchByPatientID,
	}, logger)
	defer detector.Wait()
	recorder := scan.NewRecorder(st, scan.NewIsolation(st, logger), scan.RecorderConfig{
		WristbandWindow: cfg.Scan.WristbandWindow,
		IsolationWard:   cfg.Scan.IsolationWard,
	}, logger)
	scans := scan.NewService(detector, recorder, publisher, cfg.Scan.Cooldown, logger)

	if cfg.MQTT.Broker != "" {
		sub := mqtt.NewSubscriber(cfg.MQTT, scans, logger)
		if err := sub.Start(ctx); err != nil {
			return err
		}
		defer sub.Stop()
	}

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	r.Use(cors.New(corsConfig))

	routes.SetupRoutes(r, routes.Handlers{
		Scans:           handlers.NewScanHandler(scans, st, logger),
		Patients:        handlers.NewPatientHandler(st, publisher, logger),
		LabResults:      handlers.NewLabResultHandler(st, logger),
		Inconsistencies: handlers.NewInconsistencyHandler(st, logger),
		Notifications:   handlers.NewNotificationHandler(st, logger),
		Webhooks:        handlers.NewWebhookHandler(router, logger),
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server running", zap.String("port", cfg.Port), zap.String("event_bus", cfg.Events.Bus))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func runWorker(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := models.Open(models.DatabaseConfig{DSN: cfg.Database.DSN})
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	_, router := rules(cfg, store.New(db), logger)

	client := newRedisClient(cfg.Redis)
	defer client.Close()

	consumer := events.NewStreamConsumer(client, events.StreamConsumerConfig{
		Stream:   cfg.Redis.Stream,
		Group:    cfg.Redis.Group,
		Consumer: cfg.Redis.Consumer,
		Batch:    cfg.Redis.BatchSize,
		Block:    5 * time.Second,
	}, router, logger)
	return consumer.Run(ctx)
}
