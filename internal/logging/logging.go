package logging

import (
	"io"
	"log/slog"
	"os"

	"cart-service/internal/config"
)

// New は設定からロガーを作る。DEBUGならテキスト、それ以外はJSON。
func New(cfg config.Config) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

func NewWithWriter(cfg config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: Level(cfg.LogLevel)}

	var h slog.Handler
	if cfg.Debug {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	return slog.New(h).With("service", "cart-service")
}

// LOG_LEVELの文字列をslogのレベルへ
func Level(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
