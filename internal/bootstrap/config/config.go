package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Auth     AuthConfig     `mapstructure:"auth"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Events   EventsConfig   `mapstructure:"events"`
	Table    TableConfig    `mapstructure:"table"`
}

type AppConfig struct {
	Name      string `mapstructure:"name"`
	Env       string `mapstructure:"env"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// StorageConfig selects the object storage backend. PublicBaseURL is the
// origin used to build "<base>/storage/v1/object/public/<bucket>/<key>".
type StorageConfig struct {
	Driver            string    `mapstructure:"driver"`
	PublicBaseURL     string    `mapstructure:"public_base_url"`
	ObservationBucket string    `mapstructure:"observation_bucket"`
	ActionPlanBucket  string    `mapstructure:"action_plan_bucket"`
	FSRoot            string    `mapstructure:"fs_root"`
	S3                S3Config  `mapstructure:"s3"`
	GCS               GCSConfig `mapstructure:"gcs"`
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

type GCSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type CacheConfig struct {
	Driver    string        `mapstructure:"driver"`
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisDB   int           `mapstructure:"redis_db"`
	ImageTTL  time.Duration `mapstructure:"image_ttl"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type HTTPConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxUploadMB    int64    `mapstructure:"max_upload_mb"`
}

type EventsConfig struct {
	Driver        string `mapstructure:"driver"`
	NATSURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type TableConfig struct {
	PageSize int `mapstructure:"page_size"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("cache_driver", cfg.Cache.Driver),
		slog.String("events_driver", cfg.Events.Driver),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Storage.ObservationBucket == "" || c.Storage.ActionPlanBucket == "" {
		return errors.New("storage.observation_bucket and storage.action_plan_bucket are required")
	}
	if c.Storage.ObservationBucket == c.Storage.ActionPlanBucket {
		return fmt.Errorf("storage buckets must differ, both are %q", c.Storage.ObservationBucket)
	}
	if c.Table.PageSize <= 0 {
		return fmt.Errorf("table.page_size must be positive, got %d", c.Table.PageSize)
	}
	if c.Cache.ImageTTL <= 0 {
		return fmt.Errorf("cache.image_ttl must be positive, got %s", c.Cache.ImageTTL)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "safetyportal")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "text")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".data/safetyportal.sqlite")

	v.SetDefault("storage.driver", "fs")
	v.SetDefault("storage.public_base_url", "http://localhost:8080")
	v.SetDefault("storage.observation_bucket", "observation-images")
	v.SetDefault("storage.action_plan_bucket", "action-plan-images")
	v.SetDefault("storage.fs_root", ".data/objects")
	v.SetDefault("storage.s3.region", "us-east-1")

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.image_ttl", 5*time.Minute)

	v.SetDefault("auth.issuer", "safetyportal")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("http.max_upload_mb", 10)

	v.SetDefault("events.driver", "noop")
	v.SetDefault("events.nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("events.subject_prefix", "safetyportal")

	v.SetDefault("table.page_size", 10)
}
