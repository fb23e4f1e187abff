package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const DefaultPath = "config/config.toml"

type Config struct {
	Server struct {
		Port         string `toml:"port"`
		Mode         string `toml:"mode"`
		ReadTimeout  int    `toml:"read_timeout"`  // seconds
		WriteTimeout int    `toml:"write_timeout"` // seconds
	} `toml:"server"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
	Upload struct {
		MaxBytes int64 `toml:"max_bytes"`
		Archive  bool  `toml:"archive"`
	} `toml:"upload"`
	DB struct {
		Driver string `toml:"driver"`
		DSN    string `toml:"dsn"`
	} `toml:"db"`
	Redis struct {
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		TTL      int    `toml:"ttl"` // seconds
	} `toml:"redis"`
	Storage struct {
		Driver string `toml:"driver"`
		Dir    string `toml:"dir"`
		Minio  struct {
			Endpoint  string `toml:"endpoint"`
			AccessKey string `toml:"access_key"`
			SecretKey string `toml:"secret_key"`
			Bucket    string `toml:"bucket"`
			Secure    bool   `toml:"secure"`
		} `toml:"minio"`
	} `toml:"storage"`
	LLM struct {
		Enabled           bool   `toml:"enabled"`
		BaseURL           string `toml:"base_url"`
		APIKey            string `toml:"api_key"`
		Model             string `toml:"model"`
		Timeout           int    `toml:"timeout"` // seconds
		RequestsPerMinute int    `toml:"requests_per_minute"`
	} `toml:"llm"`
}

func Default() Config {
	var cfg Config
	cfg.Server.Port = "8000"
	cfg.Server.Mode = "release"
	cfg.Server.ReadTimeout = 30
	cfg.Server.WriteTimeout = 60
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Upload.MaxBytes = 5 * 1024 * 1024
	cfg.DB.Driver = "sqlite"
	cfg.DB.DSN = "pharmaguard.db"
	cfg.Redis.TTL = 3600
	cfg.Storage.Driver = "local"
	cfg.Storage.Dir = "uploads"
	cfg.Storage.Minio.Bucket = "vcf-uploads"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.Timeout = 30
	cfg.LLM.RequestsPerMinute = 30
	return cfg
}

// Load reads the TOML file at path on top of the defaults. A missing file
// yields the defaults together with an error wrapping os.ErrNotExist, so the
// caller can warn and carry on.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnvironment loads .env (if any), the config file and the environment
// overrides, then validates the result.
func FromEnvironment() (Config, []string, error) {
	var warnings []string
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		warnings = append(warnings, fmt.Sprintf(".env load failed: %v", err))
	}

	path := getenv("PHARMAGUARD_CONFIG", DefaultPath)
	cfg, err := Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return cfg, warnings, err
		}
		warnings = append(warnings, fmt.Sprintf("config %s not found, using env/defaults", path))
	}

	ApplyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, warnings, err
	}
	return cfg, warnings, nil
}

func ApplyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Mode, "GIN_MODE")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.DB.Driver, "DB_DRIVER")
	setString(&cfg.DB.DSN, "DB_DSN")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Storage.Driver, "STORAGE_DRIVER")
	setString(&cfg.Storage.Dir, "STORAGE_DIR")
	setString(&cfg.Storage.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.Storage.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.Storage.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.Storage.Minio.Bucket, "MINIO_BUCKET")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setBool(&cfg.Upload.Archive, "UPLOAD_ARCHIVE")
	setBool(&cfg.Storage.Minio.Secure, "MINIO_SECURE")
	setBool(&cfg.LLM.Enabled, "LLM_ENABLED")
}

func (c Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("db.driver %q: want sqlite, postgres or memory", c.DB.Driver)
	}
	switch c.Storage.Driver {
	case "local", "minio":
	default:
		return fmt.Errorf("storage.driver %q: want local or minio", c.Storage.Driver)
	}
	if c.Storage.Driver == "minio" && c.Storage.Minio.Endpoint == "" {
		return errors.New("storage.minio.endpoint is required for the minio driver")
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	if c.Redis.Addr != "" && c.Redis.TTL <= 0 {
		return errors.New("redis.ttl must be positive")
	}
	if c.LLM.Enabled {
		if c.LLM.BaseURL == "" || c.LLM.Model == "" {
			return errors.New("llm.base_url and llm.model are required when llm is enabled")
		}
		if c.LLM.RequestsPerMinute <= 0 {
			return errors.New("llm.requests_per_minute must be positive")
		}
	}
	return nil
}

func (c Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Server.Port, ":")
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
