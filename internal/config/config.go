package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type DatabaseConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL"`
}

type ImportConfig struct {
	StorageDir     string        `yaml:"storage_dir" env:"IMPORT_STORAGE_DIR" env-default:"./storage/imports"`
	MaxRows        int           `yaml:"max_rows" env:"IMPORT_MAX_ROWS" env-default:"10000"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" env:"IMPORT_MAX_UPLOAD_BYTES" env-default:"10485760"`
	StrictFileType bool          `yaml:"strict_file_type" env:"IMPORT_STRICT_FILE_TYPE" env-default:"true"`
	ParseTimeout   time.Duration `yaml:"parse_timeout" env:"IMPORT_PARSE_TIMEOUT" env-default:"60s"`
	// Locker is "postgres" (advisory locks, safe across replicas) or "memory" (single process).
	Locker string `yaml:"locker" env:"IMPORT_LOCKER" env-default:"postgres" env-description:"postgres or memory"`
	// LockWait bounds the wait for a batch another request is working on.
	LockWait time.Duration `yaml:"lock_wait" env:"IMPORT_LOCK_WAIT" env-default:"30s"`
	// LockPoolSize caps the connections reserved for held advisory locks.
	LockPoolSize int32 `yaml:"lock_pool_size" env:"IMPORT_LOCK_POOL_SIZE" env-default:"8"`
}

type AccountConfig struct {
	BcryptCost int `yaml:"bcrypt_cost" env:"ACCOUNT_BCRYPT_COST" env-default:"10"`
}

type Config struct {
	Debug    bool           `yaml:"debug" env:"DEBUG" env-default:"false"`
	LogLevel string         `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Import   ImportConfig   `yaml:"import"`
	Account  AccountConfig  `yaml:"account"`
}

// Load reads .env (when present), then the YAML file at path (when non-empty),
// then the environment. Environment variables win over file values.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Import.MaxRows <= 0 {
		return fmt.Errorf("IMPORT_MAX_ROWS must be positive, got %d", c.Import.MaxRows)
	}
	if c.Import.MaxUploadBytes <= 0 {
		return fmt.Errorf("IMPORT_MAX_UPLOAD_BYTES must be positive, got %d", c.Import.MaxUploadBytes)
	}
	if c.Import.ParseTimeout <= 0 {
		return fmt.Errorf("IMPORT_PARSE_TIMEOUT must be positive, got %s", c.Import.ParseTimeout)
	}
	if c.Import.Locker != "postgres" && c.Import.Locker != "memory" {
		return fmt.Errorf("IMPORT_LOCKER must be postgres or memory, got %q", c.Import.Locker)
	}
	if c.Import.LockWait <= 0 {
		return fmt.Errorf("IMPORT_LOCK_WAIT must be positive, got %s", c.Import.LockWait)
	}
	if c.Import.LockPoolSize <= 0 {
		return fmt.Errorf("IMPORT_LOCK_POOL_SIZE must be positive, got %d", c.Import.LockPoolSize)
	}
	if c.Account.BcryptCost < 4 || c.Account.BcryptCost > 31 {
		return fmt.Errorf("ACCOUNT_BCRYPT_COST must be between 4 and 31, got %d", c.Account.BcryptCost)
	}
	return nil
}

// Description renders the supported environment variables.
func Description() string {
	help, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return err.Error()
	}
	return help
}
