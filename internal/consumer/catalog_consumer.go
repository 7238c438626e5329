package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cart-service/internal/domain/model"
	"cart-service/internal/usecase"

	"github.com/segmentio/kafka-go"
)

// 商品サービスが流すイベント種別
const (
	EventProductUpdated     = "product.updated"
	EventProductOutOfStock  = "product.out_of_stock"
	EventProductBackInStock = "product.back_in_stock"
	EventProductDeleted     = "product.deleted"
)

// catalog-events トピックのメッセージ
type CatalogEvent struct {
	Type      string  `json:"type"`
	ProductID int64   `json:"product_id"`
	Title     string  `json:"title,omitempty"`
	Price     *int64  `json:"price,omitempty"`
	ImageURL  *string `json:"image_url,omitempty"`
	Version   int64   `json:"version,omitempty"`
}

// SyncApplier は *usecase.SyncUsecase が満たす。
type SyncApplier interface {
	ApplyPriceUpdate(ctx context.Context, n usecase.Notification, in usecase.ProductUpdate) (int64, error)
	ApplyOutOfStock(ctx context.Context, n usecase.Notification, outOfStock bool) (int64, error)
	ApplyDeleted(ctx context.Context, n usecase.Notification) (int64, error)
}

// MessageReader は *kafka.Reader が満たす。
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// 読めない・意味のないメッセージ。再送しても直らないのでcommitして捨てる。
var ErrMalformed = errors.New("malformed catalog event")

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

type CatalogConsumer struct {
	reader MessageReader
	sync   SyncApplier
	log    *slog.Logger

	retryMin time.Duration
	retryMax time.Duration
}

// DI
func NewCatalogConsumer(cfg Config, sync SyncApplier, logger *slog.Logger) *CatalogConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return NewCatalogConsumerWithReader(reader, sync, logger)
}

func NewCatalogConsumerWithReader(reader MessageReader, sync SyncApplier, logger *slog.Logger) *CatalogConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogConsumer{
		reader:   reader,
		sync:     sync,
		log:      logger,
		retryMin: 500 * time.Millisecond,
		retryMax: 30 * time.Second,
	}
}

// Run はctxが終わるまでメッセージを順に処理する。
func (c *CatalogConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *CatalogConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("kafka_reader_close_failed", "error", err.Error())
	}
}

func (c *CatalogConsumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.log.ErrorContext(ctx, "kafka_fetch_failed", "error", err.Error())
		c.sleep(ctx, c.retryMin)
		return
	}

	//DBの失敗はcommitせずに同じメッセージをやり直す
	wait := c.retryMin
	for {
		err = c.handleMessage(ctx, m.Value)
		if err == nil || errors.Is(err, ErrMalformed) {
			break
		}
		c.log.ErrorContext(ctx, "catalog_event_failed",
			"error", err.Error(),
			"partition", m.Partition,
			"offset", m.Offset,
			"retry_in_ms", wait.Milliseconds(),
		)
		if !c.sleep(ctx, wait) {
			return
		}
		wait *= 2
		if wait > c.retryMax {
			wait = c.retryMax
		}
	}

	if err != nil {
		c.log.WarnContext(ctx, "catalog_event_skipped",
			"error", err.Error(),
			"partition", m.Partition,
			"offset", m.Offset,
		)
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.log.ErrorContext(ctx, "kafka_commit_failed", "error", err.Error(), "offset", m.Offset)
	}
}

// handleMessage は1件を解釈して同期処理へ渡す。
func (c *CatalogConsumer) handleMessage(ctx context.Context, value []byte) error {
	var ev CatalogEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.ProductID <= 0 {
		return fmt.Errorf("%w: invalid product_id %d", ErrMalformed, ev.ProductID)
	}

	n := usecase.Notification{ProductID: ev.ProductID, Version: ev.Version, Source: model.SyncSourceKafka}

	var err error
	switch ev.Type {
	case EventProductUpdated:
		if ev.Price == nil {
			return fmt.Errorf("%w: price is required", ErrMalformed)
		}
		_, err = c.sync.ApplyPriceUpdate(ctx, n, usecase.ProductUpdate{
			Title:    ev.Title,
			Price:    *ev.Price,
			ImageURL: ev.ImageURL,
		})
	case EventProductOutOfStock:
		_, err = c.sync.ApplyOutOfStock(ctx, n, true)
	case EventProductBackInStock:
		_, err = c.sync.ApplyOutOfStock(ctx, n, false)
	case EventProductDeleted:
		_, err = c.sync.ApplyDeleted(ctx, n)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, ev.Type)
	}

	//入力エラーは再送しても同じ
	if he, ok := usecase.AsHTTPError(err); ok && he.Status == http.StatusBadRequest {
		return fmt.Errorf("%w: %s", ErrMalformed, he.Message)
	}
	return err
}

func (c *CatalogConsumer) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
