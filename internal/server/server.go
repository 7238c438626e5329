package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"cart-service/internal/config"
	"cart-service/internal/handler"
	"cart-service/internal/middleware"
	"cart-service/internal/validator"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// New はechoを組み立てる（共通middleware + validator + エラーハンドラ）。
func New(cfg config.Config, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Debug

	e.Validator = validator.New()
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(logger)

	e.Use(echomw.Recover())

	//X-Request-IDがあればそれを使う
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogLatency:   true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"path", v.URI,
				"status", v.Status,
				"duration_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			}
			if userID, ok := middleware.UserIDFromContext(c); ok {
				attrs = append(attrs, "user_id", userID.String())
			}
			logger.InfoContext(c.Request().Context(), "request_finished", attrs...)
			return nil
		},
	}))

	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderContentType,
			echo.HeaderAuthorization,
			echo.HeaderXRequestID,
			middleware.HeaderUserID,
		},
		AllowCredentials: true,
	}))

	return e
}

type Handlers struct {
	Cart         *handler.CartHandler
	InternalCart *handler.InternalCartHandler
	Sync         *handler.SyncHandler
}

// ルート登録
func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	e.GET("/health", handler.Health)

	//利用者向け
	h.Cart.RegisterRoutes(e, middleware.AuthUser(cfg))

	//内部API（商品サービス・注文サービス）
	internal := e.Group("/internal/cart", middleware.InternalToken(cfg.InternalAPIToken))
	h.Sync.RegisterRoutes(internal)
	h.InternalCart.RegisterRoutes(internal)
}

// Start はctxがキャンセルされるまで待ち受け、その後graceful shutdownする。
func Start(ctx context.Context, e *echo.Echo, addr string, shutdownTimeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_started", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
