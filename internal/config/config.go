// Package config собирает настройки клиента из YAML-файла и переменных окружения.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"eventhub/internal/logging"
)

const (
	defaultAPIBaseURL     = "http://localhost:5000/api"
	defaultStorageName    = "session.db"
	defaultConsoleAddr    = "127.0.0.1:8090"
	defaultRequestTimeout = 15 * time.Second
	defaultSearchDebounce = 300 * time.Millisecond
	defaultLoginRate      = 10
)

// log пишет предупреждения загрузки до того, как настроен логгер клиента
var log = logging.Component(logrus.StandardLogger(), "config")

// Config верхнеуровневая конфигурация клиента
type Config struct {
	// APIBaseURL базовый адрес REST API, задаётся один раз при старте.
	APIBaseURL string `yaml:"api_base_url"`

	// StoragePath путь к файлу долговременного хранилища сессии.
	StoragePath string `yaml:"storage_path"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// ConsoleAddr адрес локальной веб-консоли.
	ConsoleAddr string `yaml:"console_addr"`

	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ApplicationsRoles роли, которым доступен экран заявок.
	ApplicationsRoles []string `yaml:"applications_roles"`

	// SearchDebounce задержка поиска "по мере ввода".
	SearchDebounce time.Duration `yaml:"search_debounce"`

	// LoginRatePerMinute ограничение попыток входа через консоль.
	LoginRatePerMinute int `yaml:"login_rate_per_minute"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:         defaultAPIBaseURL,
		StoragePath:        defaultStoragePath(),
		LogLevel:           "info",
		LogFormat:          "text",
		ConsoleAddr:        defaultConsoleAddr,
		RequestTimeout:     defaultRequestTimeout,
		ApplicationsRoles:  []string{"administrator"},
		SearchDebounce:     defaultSearchDebounce,
		LoginRatePerMinute: defaultLoginRate,
	}
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".", defaultStorageName)
	}
	return filepath.Join(dir, "eventhub", defaultStorageName)
}

// Normalize заполняет пустые значения значениями по умолчанию
func (c *Config) Normalize() {
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	if c.StoragePath == "" {
		c.StoragePath = defaultStoragePath()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.ConsoleAddr == "" {
		c.ConsoleAddr = defaultConsoleAddr
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.ApplicationsRoles == nil {
		c.ApplicationsRoles = []string{"administrator"}
	}
	if c.SearchDebounce < 0 {
		c.SearchDebounce = defaultSearchDebounce
	}
	if c.LoginRatePerMinute <= 0 {
		c.LoginRatePerMinute = defaultLoginRate
	}
}

// Validate проверяет, что базовый адрес API пригоден для запросов
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("api_base_url должен начинаться с http:// или https://: %q", c.APIBaseURL)
	}
	return nil
}

// LoadEnvFiles загружает первый найденный .env файл
func LoadEnvFiles() {
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err == nil {
			break
		}
	}
}

// Load читает конфигурацию: значения по умолчанию, затем YAML-файл (если path
// не пустой и файл существует), затем переменные окружения.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("ошибка разбора %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
			log.Warnf("файл конфигурации %s не найден, используются значения по умолчанию", path)
		default:
			return nil, fmt.Errorf("ошибка чтения %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.APIBaseURL = getEnvOrDefault("EVENTHUB_API_URL", cfg.APIBaseURL)
	cfg.StoragePath = getEnvOrDefault("EVENTHUB_STORAGE_PATH", cfg.StoragePath)
	cfg.LogLevel = getEnvOrDefault("EVENTHUB_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("EVENTHUB_LOG_FORMAT", cfg.LogFormat)
	cfg.ConsoleAddr = getEnvOrDefault("EVENTHUB_CONSOLE_ADDR", cfg.ConsoleAddr)

	if raw := os.Getenv("EVENTHUB_REQUEST_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("некорректный EVENTHUB_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if raw := os.Getenv("EVENTHUB_SEARCH_DEBOUNCE"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("некорректный EVENTHUB_SEARCH_DEBOUNCE: %w", err)
		}
		cfg.SearchDebounce = d
	}
	if raw := os.Getenv("EVENTHUB_LOGIN_RATE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("некорректный EVENTHUB_LOGIN_RATE: %w", err)
		}
		cfg.LoginRatePerMinute = n
	}
	if raw, ok := os.LookupEnv("EVENTHUB_APPLICATIONS_ROLES"); ok {
		cfg.ApplicationsRoles = splitList(raw)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
