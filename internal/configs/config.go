package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
)

type RESTconfig struct {
	PORT           string
	AllowedOrigins []string
	AdminKey       string
}

// CatalogConfig points at the PHP catalog API. Paths are relative to BaseURL.
type CatalogConfig struct {
	BaseURL        string
	BuyPath        string
	RentPath       string
	SellPath       string
	FavoritesPath  string
	LookupPath     string
	RequestTimeout time.Duration
	APIKey         string
}

type FavoritesConfig struct {
	StoreDriver string
	Dir         string
	Namespace   string
	// SessionIdleTimeout is how long an unused device session stays in memory.
	SessionIdleTimeout time.Duration
}

type DBconfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
}

type RabbitMQConfig struct {
	Enabled  bool
	URL      string
	Exchange string
}

type StdoutLogConfig struct {
	Level  string
	JSON   bool
	Color  bool
	Source bool
}

type FluentBitConfig struct {
	Host    string
	Port    int
	Enabled bool
	Level   string
	Async   bool
}

// AppConfig holds the whole application configuration.
type AppConfig struct {
	AppName      string
	Rest         RESTconfig
	Catalog      CatalogConfig
	Favorites    FavoritesConfig
	Database     DBconfig
	RabbitMQ     RabbitMQConfig
	FluentBit    FluentBitConfig
	StdoutLogger StdoutLogConfig
}

// LoadConfig reads the configuration from the environment. A .env file is
// loaded first when present; values already in the environment win.
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath[0])
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		if len(envPath) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("could not load .env file (path: %v): %w", envPath, err)
		}
		log.Printf("Info: no .env file found, using the process environment only.\n")
	}

	cfg := &AppConfig{}

	cfg.AppName = getEnvAsString("APP_NAME", "property-catalog")

	cfg.Rest.PORT = getEnvAsString("PORT", "8080")
	cfg.Rest.AllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"})
	cfg.Rest.AdminKey = os.Getenv("ADMIN_API_KEY")
	if cfg.Rest.AdminKey == "" {
		log.Println("WARNING: ADMIN_API_KEY is not set. The admin API is disabled.")
	}

	cfg.Catalog.BaseURL = os.Getenv("CATALOG_BASE_URL")
	if cfg.Catalog.BaseURL == "" {
		return nil, fmt.Errorf("CATALOG_BASE_URL environment variable is required")
	}
	if u, err := url.Parse(cfg.Catalog.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("CATALOG_BASE_URL must be an absolute URL, got %q", cfg.Catalog.BaseURL)
	}
	cfg.Catalog.BuyPath = getEnvAsString("CATALOG_BUY_PATH", "admin_api.php")
	cfg.Catalog.RentPath = getEnvAsString("CATALOG_RENT_PATH", "admin_properties.php")
	cfg.Catalog.SellPath = getEnvAsString("CATALOG_SELL_PATH", "sell_api.php")
	cfg.Catalog.FavoritesPath = getEnvAsString("CATALOG_FAVORITES_PATH", "cards.php")
	cfg.Catalog.LookupPath = getEnvAsString("CATALOG_LOOKUP_PATH", "properties_by_ids.php")
	cfg.Catalog.RequestTimeout = getEnvAsDuration("CATALOG_REQUEST_TIMEOUT", 10*time.Second)
	cfg.Catalog.APIKey = os.Getenv("CATALOG_API_KEY")

	cfg.Favorites.StoreDriver = strings.ToLower(getEnvAsString("FAVORITES_STORE_DRIVER", StoreDriverFile))
	cfg.Favorites.Dir = getEnvAsString("FAVORITES_DIR", "./data/favorites")
	cfg.Favorites.Namespace = getEnvAsString("FAVORITES_NAMESPACE", "cart")
	cfg.Favorites.SessionIdleTimeout = getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute)

	switch cfg.Favorites.StoreDriver {
	case StoreDriverFile:
	case StoreDriverPostgres:
		cfg.Database.URL = os.Getenv("DATABASE_URL")
		if cfg.Database.URL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required when FAVORITES_STORE_DRIVER=postgres")
		}
		cfg.Database.MaxConns = int32(getEnvAsInt("DB_MAX_CONNS", 10))
		cfg.Database.MinConns = int32(getEnvAsInt("DB_MIN_CONNS", 0))
		cfg.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", time.Hour)
		cfg.Database.ConnectTimeout = getEnvAsDuration("DB_CONNECT_TIMEOUT", 5*time.Second)
	default:
		return nil, fmt.Errorf("unknown FAVORITES_STORE_DRIVER %q (want %s or %s)", cfg.Favorites.StoreDriver, StoreDriverFile, StoreDriverPostgres)
	}

	cfg.RabbitMQ.Enabled = getEnvAsBool("RABBITMQ_ENABLED", false)
	if cfg.RabbitMQ.Enabled {
		cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
		if cfg.RabbitMQ.URL == "" {
			return nil, fmt.Errorf("RABBITMQ_URL environment variable is required when RABBITMQ_ENABLED is true")
		}
		cfg.RabbitMQ.Exchange = getEnvAsString("RABBITMQ_EXCHANGE", "catalog.events")
	}

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
		cfg.FluentBit.Async = getEnvAsBool("FLUENTBIT_ASYNC", true)
	}

	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "debug")
	cfg.StdoutLogger.JSON = getEnvAsBool("STDOUT_LOG_JSON", false)
	cfg.StdoutLogger.Color = getEnvAsBool("STDOUT_LOG_COLOR", true)
	cfg.StdoutLogger.Source = getEnvAsBool("STDOUT_LOG_SOURCE", false)

	return cfg, nil
}

func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(strings.TrimSpace(valStr))
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}

// getEnvAsDuration accepts Go durations ("1m30s") and bare seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valStr = strings.TrimSpace(valStr)
	if secs, err := strconv.Atoi(valStr); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(valStr)
	if err != nil || d < 0 {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as duration. Using default value: %s\n", key, valStr, defaultValue)
		return defaultValue
	}
	return d
}

// getEnvAsList splits a comma separated value and drops empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
