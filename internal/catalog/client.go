// Package catalog は商品サービス（カタログ）への同期問い合わせ。
// 明細を新規作成するときだけ呼ばれる。キャッシュもリトライもしない。
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"cart-service/internal/domain/model"

	"github.com/sony/gobreaker/v2"
)

// 応答ボディの上限
const maxBodyBytes = 1 << 20

type Config struct {
	BaseURL        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// 連続でUnavailableになった回数がこれに達したらブレーカーを開く
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// GET /internal/products/{id} の応答
type productResponse struct {
	ID      int64    `json:"id"`
	Title   string   `json:"title"`
	Price   int64    `json:"price"`
	Images  []string `json:"images"`
	Version int64    `json:"version"`
}

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[model.CatalogProduct]
	log     *slog.Logger
}

// DI
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "catalog_client")

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Transport: transport},
		timeout: cfg.ConnectTimeout + cfg.ReadTimeout,
		log:     logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[model.CatalogProduct](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// 404は商品サービスが正常に答えた結果
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrProductNotFound)
		},
		// 呼び出し側が切断した場合は成功にも失敗にも数えない
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("catalog_breaker_state_changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return c
}

// Fetch は商品の現在値を取得する。
// 404は ErrProductNotFound、それ以外の失敗はすべて *UnavailableError。
func (c *Client) Fetch(ctx context.Context, productID int64) (model.CatalogProduct, error) {
	p, err := c.breaker.Execute(func() (model.CatalogProduct, error) {
		return c.fetch(ctx, productID)
	})

	//ブレーカーが開いている間は問い合わせずに失敗させる
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.log.Warn("product_service_unavailable",
			"product_id", productID,
			"error", err.Error(),
		)
		return model.CatalogProduct{}, &UnavailableError{ProductID: productID, Err: err}
	}
	if err != nil {
		return model.CatalogProduct{}, err
	}
	return p, nil
}

func (c *Client) fetch(ctx context.Context, productID int64) (model.CatalogProduct, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/internal/products/%d", c.baseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.CatalogProduct{}, &UnavailableError{ProductID: productID, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		//接続失敗・タイムアウト
		c.log.Error("product_service_unavailable",
			"product_id", productID,
			"error", err.Error(),
		)
		return model.CatalogProduct{}, &UnavailableError{ProductID: productID, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return model.CatalogProduct{}, fmt.Errorf("product id=%d: %w", productID, ErrProductNotFound)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error("product_service_error",
			"product_id", productID,
			"status_code", resp.StatusCode,
		)
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return model.CatalogProduct{}, &UnavailableError{ProductID: productID, StatusCode: resp.StatusCode}
	}

	var body productResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		c.log.Error("product_service_error",
			"product_id", productID,
			"status_code", resp.StatusCode,
			"error", err.Error(),
		)
		return model.CatalogProduct{}, &UnavailableError{ProductID: productID, Err: fmt.Errorf("decode response: %w", err)}
	}

	if err := validateProduct(body); err != nil {
		c.log.Error("product_service_error",
			"product_id", productID,
			"status_code", resp.StatusCode,
			"error", err.Error(),
		)
		return model.CatalogProduct{}, &UnavailableError{ProductID: productID, StatusCode: resp.StatusCode, Err: err}
	}

	return toCatalogProduct(productID, body), nil
}

// スナップショットに凍結できない応答は商品サービス側の不具合として扱う
func validateProduct(body productResponse) error {
	if strings.TrimSpace(body.Title) == "" {
		return errors.New("invalid response: empty title")
	}
	if body.Price < 0 || body.Price > model.MaxUnitPrice {
		return fmt.Errorf("invalid response: price %d out of range", body.Price)
	}
	return nil
}

func toCatalogProduct(productID int64, body productResponse) model.CatalogProduct {
	p := model.CatalogProduct{
		ID:      body.ID,
		Name:    body.Title,
		Price:   body.Price,
		Version: body.Version,
	}
	if p.ID == 0 {
		p.ID = productID
	}
	//画像は先頭の1枚だけ
	if len(body.Images) > 0 && body.Images[0] != "" {
		img := body.Images[0]
		p.Image = &img
	}
	return p
}
