package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	Debug    bool   // trueならテキストログ
	LogLevel string // debug/info/warn/error
	DBEcho   bool   // SQLをログに出す

	DatabaseURL      string // あれば最優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string

	CatalogBaseURL         string        // 商品サービスのURL
	CatalogConnectTimeout  time.Duration // 接続タイムアウト（5s）
	CatalogReadTimeout     time.Duration // 読み取りタイムアウト（10s）
	CatalogBreakerFailures uint32        // 連続失敗でブレーカーを開く回数
	CatalogBreakerTimeout  time.Duration // 開いている時間

	CORSOrigins []string

	JWTSecret        string // 空ならX-User-IDヘッダで識別
	InternalAPIToken string // 空なら内部APIのトークン確認をしない

	KafkaBrokers      []string // 空ならconsumerを起動しない
	KafkaCatalogTopic string
	KafkaGroupID      string

	ShutdownTimeout time.Duration
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port:     getenv("PORT", "8080"),
		LogLevel: strings.ToLower(getenv("LOG_LEVEL", "info")),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "cart"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		CatalogBaseURL: strings.TrimRight(os.Getenv("CATALOG_BASE_URL"), "/"),

		CORSOrigins: splitList(getenv("CORS_ORIGINS", "http://localhost:3000")),

		JWTSecret:        os.Getenv("JWT_SECRET"),
		InternalAPIToken: os.Getenv("INTERNAL_API_TOKEN"),

		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaCatalogTopic: getenv("KAFKA_CATALOG_TOPIC", "catalog-events"),
		KafkaGroupID:      getenv("KAFKA_GROUP_ID", "cart-service"),
	}

	var err error
	if cfg.Debug, err = parseBool("DEBUG", false); err != nil {
		return Config{}, err
	}
	if cfg.DBEcho, err = parseBool("DB_ECHO", false); err != nil {
		return Config{}, err
	}
	if cfg.PostgresPort, err = parseInt("POSTGRES_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.CatalogConnectTimeout, err = parseDuration("CATALOG_CONNECT_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.CatalogReadTimeout, err = parseDuration("CATALOG_READ_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.CatalogBreakerTimeout, err = parseDuration("CATALOG_BREAKER_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	failures, err := parseInt("CATALOG_BREAKER_FAILURES", 5)
	if err != nil {
		return Config{}, err
	}
	if failures < 1 {
		return Config{}, fmt.Errorf("CATALOG_BREAKER_FAILURES must be >= 1")
	}
	cfg.CatalogBreakerFailures = uint32(failures)

	//必須チェック
	if cfg.CatalogBaseURL == "" {
		return Config{}, fmt.Errorf("CATALOG_BASE_URL is required")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("LOG_LEVEL must be one of debug/info/warn/error")
	}

	return cfg, nil
}

// DSN は gorm に渡す接続文字列
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

// サーバーのlistenアドレス
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func parseInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func parseBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be bool: %w", key, err)
	}
	return b, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return d, nil
}

// カンマ区切りを分割（空要素は捨てる）
func splitList(v string) []string {
	out := []string{}
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
