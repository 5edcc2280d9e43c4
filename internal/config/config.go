package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"articlewave/internal/models"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Источники статей.
const (
	SourceNewsAPI  = "newsapi"
	SourceRSS      = "rss"
	SourcePostgres = "postgres"
	SourceMock     = "mock"
)

// Режимы тестового источника.
const (
	MockModeStub  = ""
	MockModeDelay = "delay"
	MockModeError = "error"
)

const defaultNewsAPIBaseURL = "https://newsapi.org/v2"

// NewsAPIConfig описывает доступ к NewsAPI.
type NewsAPIConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	APIKey  string `json:"api_key" yaml:"api_key"`
}

// ImageCacheConfig ограничивает кеш миниатюр. Нули означают отсутствие ограничения.
type ImageCacheConfig struct {
	MaxEntries int   `json:"max_entries" yaml:"max_entries"`
	MaxBytes   int64 `json:"max_bytes" yaml:"max_bytes"`
	// MaxPixels ограничивает площадь декодируемой картинки; 0 означает imagecache.DefaultMaxPixels.
	MaxPixels int `json:"max_pixels" yaml:"max_pixels"`
}

// MockConfig настраивает тестовый источник статей.
type MockConfig struct {
	Mode    string `json:"mode" yaml:"mode"`
	DelayMS int    `json:"delay_ms" yaml:"delay_ms"`
}

// Config хранит настройки клиента: источник статей, регионы, кеш и HTTP-адрес.
type Config struct {
	Source         string            `json:"source" yaml:"source"`
	NewsAPI        NewsAPIConfig     `json:"newsapi" yaml:"newsapi"`
	RSSFeeds       map[string]string `json:"rss_feeds" yaml:"rss_feeds"`
	DatabaseURL    string            `json:"database_url" yaml:"database_url"`
	DefaultCountry string            `json:"default_country" yaml:"default_country"`
	Countries      []string          `json:"countries" yaml:"countries"`
	HTTPTimeout    int               `json:"http_timeout" yaml:"http_timeout"`
	ImageCache     ImageCacheConfig  `json:"image_cache" yaml:"image_cache"`
	// RefreshInterval в секундах, 0 отключает автообновление.
	RefreshInterval       int        `json:"refresh_interval" yaml:"refresh_interval"`
	DiscardStaleResponses bool       `json:"discard_stale_responses" yaml:"discard_stale_responses"`
	Mock                  MockConfig `json:"mock" yaml:"mock"`
	Addr                  string     `json:"addr" yaml:"addr"`
	LogLevel              string     `json:"log_level" yaml:"log_level"`
}

// Default возвращает конфигурацию, с которой клиент работает без файла.
func Default() *Config {
	return &Config{
		Source:         SourceNewsAPI,
		NewsAPI:        NewsAPIConfig{BaseURL: defaultNewsAPIBaseURL},
		DefaultCountry: models.DefaultCountry,
		Countries:      models.CountryCodes(),
		HTTPTimeout:    10,
		Addr:           ":8080",
		LogLevel:       "info",
	}
}

// Validate проверяет согласованность источника, регионов и числовых ограничений.
func (cfg *Config) Validate() error {
	if cfg.HTTPTimeout < 1 {
		return errors.New("http timeout must be ≥ 1 second")
	}
	if cfg.RefreshInterval != 0 && cfg.RefreshInterval < 5 {
		return errors.New("refresh interval must be 0 or ≥ 5 seconds")
	}
	if cfg.ImageCache.MaxEntries < 0 || cfg.ImageCache.MaxBytes < 0 || cfg.ImageCache.MaxPixels < 0 {
		return errors.New("image cache limits must not be negative")
	}
	if len(cfg.Countries) == 0 {
		return errors.New("at least one country is required")
	}
	for _, code := range cfg.Countries {
		if _, ok := models.LookupCountry(code); !ok {
			return fmt.Errorf("unsupported country: %s", code)
		}
	}
	if !cfg.Supports(cfg.DefaultCountry) {
		return fmt.Errorf("default country %q is not in countries", cfg.DefaultCountry)
	}

	switch cfg.Source {
	case SourceNewsAPI:
		if _, err := url.ParseRequestURI(cfg.NewsAPI.BaseURL); err != nil {
			return fmt.Errorf("invalid NewsAPI URL: %s", cfg.NewsAPI.BaseURL)
		}
		if cfg.NewsAPI.APIKey == "" {
			return errors.New("newsapi source requires an api key")
		}
	case SourceRSS:
		if len(cfg.RSSFeeds) == 0 {
			return errors.New("rss source requires rss_feeds")
		}
		for country, u := range cfg.RSSFeeds {
			if _, err := url.ParseRequestURI(u); err != nil {
				return fmt.Errorf("invalid RSS URL for %s: %s", country, u)
			}
		}
	case SourcePostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("postgres source requires database_url")
		}
	case SourceMock:
		switch cfg.Mock.Mode {
		case MockModeStub, MockModeDelay, MockModeError:
		default:
			return fmt.Errorf("unknown mock mode: %s", cfg.Mock.Mode)
		}
	default:
		return fmt.Errorf("unknown source: %s", cfg.Source)
	}
	return nil
}

// Supports сообщает, входит ли регион в список настроенных.
func (cfg *Config) Supports(code string) bool {
	code = strings.ToLower(code)
	for _, c := range cfg.Countries {
		if strings.ToLower(c) == code {
			return true
		}
	}
	return false
}

// Timeout возвращает таймаут HTTP-клиентов.
func (cfg *Config) Timeout() time.Duration {
	return time.Duration(cfg.HTTPTimeout) * time.Second
}

// Refresh возвращает период автообновления или 0.
func (cfg *Config) Refresh() time.Duration {
	return time.Duration(cfg.RefreshInterval) * time.Second
}

// MockDelay возвращает задержку тестового источника.
func (cfg *Config) MockDelay() time.Duration {
	return time.Duration(cfg.Mock.DelayMS) * time.Millisecond
}

// LoadConfig читает файл по пути path поверх значений по умолчанию.
// Файлы .yaml/.yml разбираются как YAML, остальные как JSON.
// Переменные окружения вида ${VAR} в файле подставляются до разбора.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := []byte(os.ExpandEnv(string(raw)))

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(expanded, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config json: %w", err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadEnv подгружает переменные из .env-файлов. Отсутствующие файлы пропускаются.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv переопределяет секреты и адрес значениями окружения.
func (cfg *Config) ApplyEnv() {
	if v := os.Getenv("NEWSAPI_KEY"); v != "" {
		cfg.NewsAPI.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("READER_ADDR"); v != "" {
		cfg.Addr = v
	}
}

// DefaultPath: путь к конфигурации в XDG-каталоге пользователя.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "articlewave", "config.json")
}

// Resolve загружает конфигурацию по path, а при пустом path из DefaultPath,
// если такой файл есть. Без файла возвращаются значения по умолчанию.
func Resolve(path string) (*Config, error) {
	if path != "" {
		return LoadConfig(path)
	}
	path = DefaultPath()
	if _, err := os.Stat(path); err == nil {
		return LoadConfig(path)
	}
	cfg := Default()
	cfg.ApplyEnv()
	return cfg, nil
}
