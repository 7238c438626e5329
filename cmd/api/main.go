package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cart-service/internal/catalog"
	"cart-service/internal/config"
	"cart-service/internal/consumer"
	"cart-service/internal/handler"
	"cart-service/internal/infra/db"
	infraRepo "cart-service/internal/infra/repository"
	"cart-service/internal/logging"
	"cart-service/internal/server"
	"cart-service/internal/usecase"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() uuid.UUID {
	return uuid.New()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	if err := run(); err != nil {
		slog.Error("startup_failed", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	//.envは無くてもよい
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(cfg)
	slog.SetDefault(logger)

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//Repository（GORM実装）生成
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	eventRepo := infraRepo.NewSyncEventGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//商品サービス
	catalogClient := catalog.NewClient(catalog.Config{
		BaseURL:         cfg.CatalogBaseURL,
		ConnectTimeout:  cfg.CatalogConnectTimeout,
		ReadTimeout:     cfg.CatalogReadTimeout,
		BreakerFailures: cfg.CatalogBreakerFailures,
		BreakerTimeout:  cfg.CatalogBreakerTimeout,
	}, logger)

	//Usecase生成
	cartUC := usecase.NewCartUsecase(cartRepo, txm, catalogClient, &uuidGenerator{}, &realClock{}, logger)
	syncUC := usecase.NewSyncUsecase(txm, eventRepo, logger)

	//Handler生成
	e := server.New(cfg, logger)
	server.RegisterRoutes(e, cfg, server.Handlers{
		Cart:         handler.NewCartHandler(cartUC),
		InternalCart: handler.NewInternalCartHandler(cartUC),
		Sync:         handler.NewSyncHandler(syncUC),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//Kafkaはブローカー指定があるときだけ
	var wg sync.WaitGroup
	if len(cfg.KafkaBrokers) > 0 {
		c := consumer.NewCatalogConsumer(consumer.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaCatalogTopic,
			GroupID: cfg.KafkaGroupID,
		}, syncUC, logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer c.Close()
			logger.Info("catalog_consumer_started", "topic", cfg.KafkaCatalogTopic, "group_id", cfg.KafkaGroupID)
			c.Run(ctx)
		}()
	}

	//Server起動
	err = server.Start(ctx, e, cfg.Addr(), cfg.ShutdownTimeout, logger)
	stop()
	wg.Wait()

	if sqlDB, dbErr := gormDB.DB(); dbErr == nil {
		_ = sqlDB.Close()
	}
	return err
}
