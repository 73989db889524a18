package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisefido-threshold/common/database"
	commonlogger "wisefido-threshold/common/logger"
	mqttcommon "wisefido-threshold/common/mqtt"
	rediscommon "wisefido-threshold/common/redis"
	"wisefido-threshold/internal/channel"
	"wisefido-threshold/internal/config"
	"wisefido-threshold/internal/consumer"
	"wisefido-threshold/internal/effective"
	httpapi "wisefido-threshold/internal/http"
	"wisefido-threshold/internal/matrix"
	"wisefido-threshold/internal/metrics"
	"wisefido-threshold/internal/notifier"
	"wisefido-threshold/internal/override"
	"wisefido-threshold/internal/repository"
	"wisefido-threshold/internal/service"
	"wisefido-threshold/internal/store"
	"wisefido-threshold/internal/tagdelta"
	"wisefido-threshold/internal/tagstate"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := commonlogger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-threshold")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting wisefido-threshold service",
		zap.String("http_addr", cfg.HTTP.Addr),
		zap.Strings("notify_channels", cfg.Notify.Channels),
		zap.Duration("cache_ttl", cfg.Threshold.CacheTTL),
		zap.Duration("dedup_window", cfg.Threshold.DedupWindow),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := rediscommon.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	kv := store.NewRedisKV(redisClient)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mx := metrics.New(reg)

	// 病历存储：数据库不可用时回落到内存实现
	var db *sql.DB
	var contexts service.ContextRepository
	var audit override.AuditRecorder
	var events httpapi.OverrideEventLister
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(ctx, &cfg.Database); err == nil {
			db = d
			logger.Info("DB enabled for wisefido-threshold")
		} else {
			logger.Warn("DB enabled but connection failed, falling back to memory", zap.Error(err))
		}
	}
	if db != nil {
		if err := repository.EnsureSchema(ctx, db); err != nil {
			logger.Fatal("Failed to prepare schema", zap.Error(err))
		}
		contexts = repository.NewPatientContextRepository(db, logger)
		auditRepo := repository.NewOverrideAuditRepository(db, logger)
		audit = auditRepo
		events = auditRepo
	} else {
		contexts = repository.NewMemoryContextRepo()
	}

	var mqttClient *mqttcommon.Client
	if cfg.NeedsMQTT() {
		if c, err := mqttcommon.NewClient(&cfg.MQTT, logger); err == nil {
			mqttClient = c
		} else {
			logger.Warn("MQTT connection failed, MQTT notifications and commands disabled", zap.Error(err))
		}
	}

	channels := channel.NewMultiChannel(logger)
	if cfg.ChannelEnabled(config.ChannelMQTT) && mqttClient != nil {
		channels.Add(config.ChannelMQTT, channel.NewMQTTChannel(mqttClient, cfg.Notify.MQTTTopicPrefix, cfg.MQTT.QoS, logger))
	}
	if cfg.ChannelEnabled(config.ChannelStream) {
		channels.Add(config.ChannelStream, channel.NewStreamChannel(redisClient, cfg.Notify.Stream, cfg.Notify.StreamMaxLen, logger))
	}
	if cfg.ChannelEnabled(config.ChannelWebhook) && cfg.Notify.WebhookURL != "" {
		channels.Add(config.ChannelWebhook, channel.NewWebhookChannel(cfg.Notify.WebhookURL, cfg.Notify.WebhookTimeout, cfg.Notify.WebhookRetries, logger))
	}
	if channels.Len() == 0 {
		logger.Warn("No notification channel configured, threshold changes will not be published")
	}

	n, err := notifier.New(channels, cfg.Threshold.DedupWindow, cfg.Threshold.DedupCapacity, mx, logger)
	if err != nil {
		logger.Fatal("Failed to create notifier", zap.Error(err))
	}

	ruleMatrix := matrix.NewMatrix(logger)
	engine := tagdelta.NewEngine()
	tagStore := store.NewTagStore(kv, cfg.Threshold.TagKeyPrefix, logger)
	overrideStore := store.NewOverrideStore(kv, cfg.Threshold.OverrideKeyPrefix, logger)
	snapshots := store.NewSnapshotStore(kv, cfg.Threshold.SnapshotPrefix, cfg.Threshold.SnapshotSuffix, cfg.Threshold.SnapshotTTL, logger)

	pipeline := effective.NewPipeline(contexts, tagStore, overrideStore, ruleMatrix, engine, logger)
	cache := effective.NewCache(pipeline, cfg.Threshold.CacheTTL, mx, logger)
	layer := override.NewLayer(overrideStore, cache, audit, mx, logger)
	machine := tagstate.NewMachine(tagStore, mx, logger)

	svc := service.NewThresholdService(contexts, machine, layer, cache, snapshots, n, logger)

	var commands *consumer.CommandConsumer
	if mqttClient != nil && cfg.CommandTopic != "" {
		commands = consumer.NewCommandConsumer(mqttClient, cfg.CommandTopic, cfg.MQTT.QoS, svc, logger)
		go func() {
			if err := commands.Start(ctx); err != nil {
				logger.Error("Command consumer failed", zap.Error(err))
			}
		}()
	}

	router := httpapi.NewRouter(logger)
	router.RegisterHealthRoutes()
	router.RegisterThresholdRoutes(httpapi.NewThresholdHandler(svc, events, ruleMatrix, engine, logger))
	router.HandleHandler("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := httpapi.NewServer(cfg.HTTP.Addr, router, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if commands != nil {
		commands.Stop()
	}
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	_ = redisClient.Close()
	if db != nil {
		_ = db.Close()
	}

	logger.Info("Service stopped")
}
