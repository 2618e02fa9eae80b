package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
// アプリケーション設定を保持
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	API      APIConfig      `yaml:"api"`
	Pharmacy PharmacyConfig `yaml:"pharmacy"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds database configuration
// データベース設定を保持
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds Redis cache configuration
// Redisキャッシュ設定を保持
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// APIConfig holds API server configuration
// APIサーバー設定を保持
type APIConfig struct {
	Port          int           `yaml:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	EnableCORS    bool          `yaml:"enable_cors"`
	EnableMetrics bool          `yaml:"enable_metrics"`
}

// PharmacyConfig holds stock availability configuration
// 在庫状況固有の設定を保持
type PharmacyConfig struct {
	StorageBackend       string        `yaml:"storage_backend"`        // postgres, memory
	CacheBackend         string        `yaml:"cache_backend"`          // memory, redis, none
	ReportCacheTTL       time.Duration `yaml:"report_cache_ttl"`       // レポートキャッシュTTL
	LowBandMultiplier    float64       `yaml:"low_band_multiplier"`    // 低在庫バンド倍率
	MediumBandMultiplier float64       `yaml:"medium_band_multiplier"` // 普通在庫バンド倍率
	RestockMinDelayDays  int           `yaml:"restock_min_delay_days"` // 補充最短日数
	RestockMaxDelayDays  int           `yaml:"restock_max_delay_days"` // 補充最長日数
	RestockMinQuantity   int64         `yaml:"restock_min_quantity"`   // 補充最小数量
	RestockMaxQuantity   int64         `yaml:"restock_max_quantity"`   // 補充最大数量
	AlertSweepInterval   time.Duration `yaml:"alert_sweep_interval"`   // アラート巡回間隔
}

// LoggingConfig holds logging configuration
// ログ設定を保持
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, file
}

// Load loads configuration from environment variables, then applies an
// optional YAML overlay named by CONFIG_FILE.
// 環境変数から設定を読み込み、CONFIG_FILEで指定されたYAMLを上書き適用
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "pharmacy"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "pharmacy_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		API: APIConfig{
			Port:          getEnvAsInt("API_PORT", 8080),
			ReadTimeout:   getEnvAsDuration("API_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:  getEnvAsDuration("API_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:   getEnvAsDuration("API_IDLE_TIMEOUT", 60*time.Second),
			EnableCORS:    getEnvAsBool("API_ENABLE_CORS", true),
			EnableMetrics: getEnvAsBool("API_ENABLE_METRICS", true),
		},
		Pharmacy: PharmacyConfig{
			StorageBackend:       getEnv("PHARMACY_STORAGE_BACKEND", "postgres"),
			CacheBackend:         getEnv("PHARMACY_CACHE_BACKEND", "memory"),
			ReportCacheTTL:       getEnvAsDuration("PHARMACY_REPORT_CACHE_TTL", 5*time.Minute),
			LowBandMultiplier:    getEnvAsFloat("PHARMACY_LOW_BAND_MULTIPLIER", 2.0),
			MediumBandMultiplier: getEnvAsFloat("PHARMACY_MEDIUM_BAND_MULTIPLIER", 4.0),
			RestockMinDelayDays:  getEnvAsInt("PHARMACY_RESTOCK_MIN_DELAY_DAYS", 2),
			RestockMaxDelayDays:  getEnvAsInt("PHARMACY_RESTOCK_MAX_DELAY_DAYS", 7),
			RestockMinQuantity:   getEnvAsInt64("PHARMACY_RESTOCK_MIN_QUANTITY", 50),
			RestockMaxQuantity:   getEnvAsInt64("PHARMACY_RESTOCK_MAX_QUANTITY", 200),
			AlertSweepInterval:   getEnvAsDuration("PHARMACY_ALERT_SWEEP_INTERVAL", 10*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
	}

	// YAMLファイルによる上書き（任意）
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルのパースに失敗しました: %w", err)
		}
	}

	// バリデーション
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定バリデーションに失敗しました: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
// 設定をバリデーション
func (c *Config) Validate() error {
	// データベース設定チェック
	if c.Pharmacy.StorageBackend == "postgres" {
		if c.Database.Host == "" {
			return fmt.Errorf("データベースホストが指定されていません")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("無効なデータベースポート: %d", c.Database.Port)
		}
		if c.Database.User == "" {
			return fmt.Errorf("データベースユーザーが指定されていません")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("データベース名が指定されていません")
		}
	}

	// API設定チェック
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("無効なAPIポート: %d", c.API.Port)
	}

	// 在庫設定チェック
	switch c.Pharmacy.StorageBackend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("無効なストレージバックエンド: %s", c.Pharmacy.StorageBackend)
	}
	switch c.Pharmacy.CacheBackend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("無効なキャッシュバックエンド: %s", c.Pharmacy.CacheBackend)
	}
	if c.Pharmacy.CacheBackend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("Redisアドレスが指定されていません")
	}
	if c.Pharmacy.LowBandMultiplier < 1 {
		return fmt.Errorf("低在庫バンド倍率は1以上である必要があります")
	}
	if c.Pharmacy.MediumBandMultiplier < c.Pharmacy.LowBandMultiplier {
		return fmt.Errorf("普通在庫バンド倍率は低在庫バンド倍率以上である必要があります")
	}
	if c.Pharmacy.RestockMinDelayDays < 1 || c.Pharmacy.RestockMaxDelayDays < c.Pharmacy.RestockMinDelayDays {
		return fmt.Errorf("無効な補充日数範囲: %d〜%d", c.Pharmacy.RestockMinDelayDays, c.Pharmacy.RestockMaxDelayDays)
	}
	if c.Pharmacy.RestockMinQuantity < 1 || c.Pharmacy.RestockMaxQuantity < c.Pharmacy.RestockMinQuantity {
		return fmt.Errorf("無効な補充数量範囲: %d〜%d", c.Pharmacy.RestockMinQuantity, c.Pharmacy.RestockMaxQuantity)
	}
	if c.Pharmacy.AlertSweepInterval <= 0 {
		return fmt.Errorf("アラート巡回間隔は正の値である必要があります")
	}

	// ログ設定チェック
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("無効なログレベル: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "console": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("無効なログフォーマット: %s", c.Logging.Format)
	}

	return nil
}

// DSN generates PostgreSQL Data Source Name
// PostgreSQLデータソース名を生成
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// ヘルパー関数

// getEnv gets environment variable with default value
// デフォルト値付きで環境変数を取得
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer with default value
// デフォルト値付きで環境変数を整数として取得
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsInt64 gets environment variable as int64 with default value
// デフォルト値付きで環境変数をint64として取得
func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if int64Value, err := strconv.ParseInt(value, 10, 64); err == nil {
			return int64Value
		}
	}
	return defaultValue
}

// getEnvAsFloat gets environment variable as float64 with default value
// デフォルト値付きで環境変数をfloat64として取得
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets environment variable as boolean with default value
// デフォルト値付きで環境変数をbooleanとして取得
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration gets environment variable as duration with default value
// デフォルト値付きで環境変数をdurationとして取得
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
