package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"vital-monitor/common/database"
	mqttcommon "vital-monitor/common/mqtt"
	rediscommon "vital-monitor/common/redis"
	"vital-monitor/internal/aggregator"
	"vital-monitor/internal/config"
	"vital-monitor/internal/consumer"
	httpapi "vital-monitor/internal/http"
	"vital-monitor/internal/ingest"
	"vital-monitor/internal/metrics"
	"vital-monitor/internal/notify"
	"vital-monitor/internal/pipeline"
	"vital-monitor/internal/repository"
	"vital-monitor/internal/service"
	"vital-monitor/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	streamBlock     = 2 * time.Second
	shutdownTimeout = 10 * time.Second
)

// App 生命体征监测服务（整合各层）
type App struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client // MQTT 未启用时为 nil
	logger      *zap.Logger

	streamConsumer *consumer.StreamConsumer
	mqttConsumer   *consumer.MQTTConsumer
	httpServer     *http.Server
}

// NewApp 连接 PostgreSQL、Redis（和 MQTT），创建各层组件
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	// 1. 连接数据库并初始化表结构
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := repository.InitSchema(ctx, db); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	// 2. 连接 Redis
	redisClient, err := rediscommon.Connect(ctx, &cfg.Redis)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}

	metrics.Init()

	// 3. Repository 层
	stores := service.Stores{
		Patients:     repository.NewPatientsRepository(db, logger),
		Thresholds:   repository.NewThresholdsRepository(db, logger),
		Observations: repository.NewObservationsRepository(db, logger),
		Alerts:       repository.NewAlertsRepository(db, logger),
		Results:      repository.NewResultsRepository(db, logger),
	}

	// 4. 缓存、加载器、通知
	kv := store.NewRedisKV(redisClient)
	opts := pipeline.Options{
		Window:   cfg.Analysis.AnomalyWindow,
		Location: cfg.Analysis.Location,
	}
	loader := ingest.NewLoader(ingest.NewDatasetCache(kv, cfg.Cache.DatasetTTL), opts, logger)
	summaryCache := aggregator.NewCacheManager(kv, cfg.Cache.SummaryTTL, logger)
	notifier := notify.NewMultiNotifier(
		notify.NewLogNotifier(logger),
		notify.NewStreamNotifier(redisClient, cfg.Notify.Stream),
	)

	// 5. Service 层
	monitor := service.NewMonitorService(stores, loader, summaryCache, notifier, opts, cfg.Notify.To, logger)

	// 6. Consumer 层
	streamConsumer := consumer.NewStreamConsumer(consumer.StreamConfig{
		Stream:        cfg.Ingest.ReadingsStream,
		ConsumerGroup: cfg.Ingest.ConsumerGroup,
		ConsumerName:  cfg.Ingest.ConsumerName,
		BatchSize:     int64(cfg.Ingest.BatchSize),
		Workers:       cfg.Ingest.Workers,
		Block:         streamBlock,
	}, redisClient, monitor, logger)

	a := &App{
		config:         cfg,
		db:             db,
		redisClient:    redisClient,
		logger:         logger,
		streamConsumer: streamConsumer,
	}

	if cfg.MQTT.Enabled {
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			a.closeResources()
			return nil, err
		}
		a.mqttClient = mqttClient
		a.mqttConsumer = consumer.NewMQTTConsumer(
			mqttClient,
			redisClient,
			cfg.Ingest.Topic,
			cfg.Ingest.ReadingsStream,
			cfg.MQTT.QoS,
			logger,
		)
	}

	// 7. HTTP
	router := httpapi.NewRouter(logger)
	router.RegisterMonitorRoutes(httpapi.NewMonitorHandler(monitor, logger))
	router.RegisterOpsRoutes()
	a.httpServer = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Start 启动消费者和 HTTP 服务，阻塞到 ctx 取消或任一组件失败
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("Starting vital monitor",
		zap.String("http_addr", a.config.HTTP.Addr),
		zap.String("readings_stream", a.config.Ingest.ReadingsStream),
		zap.Bool("mqtt_enabled", a.mqttConsumer != nil),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.streamConsumer.Start(gctx); err != nil {
			return fmt.Errorf("stream consumer: %w", err)
		}
		return nil
	})

	if a.mqttConsumer != nil {
		g.Go(func() error {
			if err := a.mqttConsumer.Start(gctx); err != nil {
				return fmt.Errorf("mqtt consumer: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Stop 停止服务并释放连接
func (a *App) Stop() error {
	a.logger.Info("Stopping vital monitor")

	if a.mqttConsumer != nil {
		a.mqttConsumer.Stop()
	}
	a.closeResources()
	return nil
}

func (a *App) closeResources() {
	if a.mqttClient != nil {
		a.mqttClient.Disconnect()
	}

	if err := database.Close(a.db); err != nil {
		a.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := rediscommon.Close(a.redisClient); err != nil {
		a.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}
}
