package dependency

import (
	"context"
	"log/slog"

	"github.com/itsDrac/e-auc-bidding/internal/cache"
	"github.com/itsDrac/e-auc-bidding/internal/db"
	"github.com/itsDrac/e-auc-bidding/internal/events"
	"github.com/itsDrac/e-auc-bidding/internal/handlers"
	"github.com/itsDrac/e-auc-bidding/internal/realtime"
	"github.com/itsDrac/e-auc-bidding/internal/repository"
	"github.com/itsDrac/e-auc-bidding/internal/service"
	"github.com/itsDrac/e-auc-bidding/internal/storage"
	"github.com/itsDrac/e-auc-bidding/pkg/config"
	"github.com/itsDrac/e-auc-bidding/pkg/jwt"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
)

const wsSendBuffer = 64

// Dependencies holds all the intialized instances required by the application.
type Dependencies struct {
	Config   config.Config
	Log      *logger.Logger
	DB       *db.DB
	Cache    cache.Cacher
	Services *service.Services

	Bus      *events.Bus
	Hub      *realtime.Hub
	Bridge   *realtime.Bridge
	Backbone realtime.Backbone

	Jwt        *jwt.JwtManager
	BidHandler *handlers.BidHandler
	LotHandler *handlers.LotHandler
	OpsHandler *handlers.OpsHandler
	WSHandler  *realtime.WSHandler
}

// NewDependencies connects to the DB, Redis and MinIO, and wires up all services.
func NewDependencies(ctx context.Context, cfg config.Config, log *logger.Logger) (*Dependencies, error) {
	if err := db.Migrate(cfg.DBDsn); err != nil {
		slog.Error("[DB] migration failed -> ", "error", err.Error())
		return nil, err
	}

	database, err := db.NewDB(ctx, cfg.DBDsn)
	if err != nil {
		slog.Error("[DB] connection failed -> ", "error", err.Error())
		return nil, err
	}

	redisCache, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Error("[Cache] failed to initialized ->", "error", err.Error())
		database.Close(ctx)
		return nil, err
	}
	if err := redisCache.Ping(ctx); err != nil {
		slog.Error("[Cache] Unable to ping ->", "error", err.Error())
	} else {
		slog.Info("[Cache] connected")
	}

	minioStorage, err := storage.NewMinioStorage(cfg.Minio)
	if err != nil {
		slog.Error("[Storage] failed to initialize -> ", "error", err.Error())
		redisCache.Close()
		database.Close(ctx)
		return nil, err
	}

	ledger := storage.NewLedgerArchive(minioStorage, cfg.Minio.LedgerBucket)

	bus := events.NewBus(cfg.Events.Shards, cfg.Events.Buffer, log)
	services := service.NewServices(
		cfg,
		repository.NewPostgresStore(database),
		bus,
		cache.NewLotCache(redisCache, cfg.LotCacheTTL),
		ledger,
		log,
	)

	backbone := newBackbone(cfg, redisCache, log)
	hub := realtime.NewHub(wsSendBuffer, log)
	bridge := realtime.NewBridge(cfg.InstanceID, hub, backbone, log)
	bus.Subscribe(bridge.HandleEvent)

	jm, err := jwt.NewJwtManager(cfg.AccessTokenSecret)
	if err != nil {
		slog.Error("[JWT] failed to initialized -> ", "error", err.Error())
		return nil, err
	}

	bidHandler, err := handlers.NewBidHandler(services.Bidding, cfg.BidTimeout)
	if err != nil {
		slog.Error("[Bid Handler] failed to initialized -> ", "error", err.Error())
		return nil, err
	}

	lotHandler, err := handlers.NewLotHandler(services.Bidding, services.Lifecycle, ledger)
	if err != nil {
		slog.Error("[Lot Handler] failed to initialized -> ", "error", err.Error())
		return nil, err
	}

	opsHandler, err := handlers.NewOpsHandler(services.SelfTest)
	if err != nil {
		slog.Error("[Ops Handler] failed to initialized -> ", "error", err.Error())
		return nil, err
	}

	return &Dependencies{
		Config:     cfg,
		Log:        log,
		DB:         database,
		Cache:      redisCache,
		Services:   services,
		Bus:        bus,
		Hub:        hub,
		Bridge:     bridge,
		Backbone:   backbone,
		Jwt:        jm,
		BidHandler: bidHandler,
		LotHandler: lotHandler,
		OpsHandler: opsHandler,
		WSHandler:  realtime.NewWSHandler(hub, log),
	}, nil
}

func newBackbone(cfg config.Config, redisCache *cache.RedisCache, log *logger.Logger) realtime.Backbone {
	switch cfg.Events.Backbone {
	case config.BackboneKafka:
		slog.Info("[Events] kafka backbone", "brokers", cfg.Events.KafkaBrokers, "topic", cfg.Events.KafkaTopic)
		return realtime.NewKafkaBackbone(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, cfg.InstanceID, log)
	case config.BackboneLocal:
		slog.Warn("[Events] local backbone, viewers on other instances will not see events")
		return realtime.NewLocalBackbone(cfg.Events.Buffer)
	default:
		slog.Info("[Events] redis backbone", "channel", cfg.Events.RedisChannel)
		return realtime.NewRedisBackbone(redisCache.Client(), cfg.Events.RedisChannel, log)
	}
}
