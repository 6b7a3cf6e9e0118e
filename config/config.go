package config

import (
	"audio-service/constant"
	"audio-service/validator"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	App      App              `yaml:"app"`
	DB       *sql.DB          `yaml:"db"`
	Database Database         `yaml:"database"`
	Queue    *RabbitMQ        `yaml:"rabbitmq"`
	Storage  Storage          `yaml:"storage"`
	Minio    *minio.Client    `yaml:"minio"`
	Upload   validator.Policy `yaml:"upload"`
	Auth     Auth             `yaml:"auth"`
	Server   Server           `yaml:"server"`
}

type App struct {
	Environment string `yaml:"environment"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type Database struct {
	AutoMigrate bool `yaml:"auto_migrate"`
}

type Storage struct {
	Driver      constant.StorageDriver `yaml:"driver"`
	Root        string                 `yaml:"root"`
	MinioBucket string                 `yaml:"minio_bucket"`
}

type Auth struct {
	Mode        constant.AuthMode `yaml:"mode"`
	DefaultUser string            `yaml:"default_user"`
	Header      string            `yaml:"header"`
}

type RabbitMQ struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	User          string `json:"user"`
	Pass          string `json:"pass"`
	ExchangeName  string `json:"exchange_name"`
	Kind          string `json:"kind"`
	AnalysisQueue string `json:"analysis_queue"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", constant.EnvironmentDevelop.String())
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.workers", 4)
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("storage.driver", string(constant.StorageDriverLocal))
	v.SetDefault("storage.root", "uploads")
	v.SetDefault("minio.secure", false)
	v.SetDefault("upload.max_size", humanize.IBytes(uint64(validator.DefaultMaxSize)))
	v.SetDefault("upload.content_types", validator.DefaultContentTypes)
	v.SetDefault("upload.extensions", validator.DefaultExtensions)
	v.SetDefault("auth.mode", string(constant.AuthModeStatic))
	v.SetDefault("auth.default_user", "default")
	v.SetDefault("auth.header", "X-User")
	v.SetDefault("rabbitmq_port", 5672)
	v.SetDefault("rabbitmq_kind", "topic")
	v.SetDefault("rabbitmq.exchange", "audio_exchange")
	v.SetDefault("rabbitmq.analysis_queue", "audio_analyzed_queue")
}

// Load reads config.yaml from path. A missing file leaves every key at its
// default; environment variables such as STORAGE_ROOT override either.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	maxSize, err := humanize.ParseBytes(v.GetString("upload.max_size"))
	if err != nil {
		return nil, fmt.Errorf("upload.max_size: %w", err)
	}
	if maxSize == 0 {
		return nil, errors.New("upload.max_size must be positive")
	}

	cfg := &Config{
		App: App{
			Environment: v.GetString("app.environment"),
		},
		Server: Server{
			HttpPort: v.GetString("server.port"),
			Workers:  v.GetInt("server.workers"),
		},
		Database: Database{
			AutoMigrate: v.GetBool("database.auto_migrate"),
		},
		Storage: Storage{
			Driver:      constant.StorageDriver(v.GetString("storage.driver")),
			Root:        v.GetString("storage.root"),
			MinioBucket: v.GetString("minio.bucket"),
		},
		Upload: validator.Policy{
			MaxSize:      int64(maxSize),
			ContentTypes: v.GetStringSlice("upload.content_types"),
			Extensions:   v.GetStringSlice("upload.extensions"),
		},
		Auth: Auth{
			Mode:        constant.AuthMode(v.GetString("auth.mode")),
			DefaultUser: v.GetString("auth.default_user"),
			Header:      v.GetString("auth.header"),
		},
	}

	switch cfg.Storage.Driver {
	case constant.StorageDriverLocal:
	case constant.StorageDriverMinio:
		if cfg.Storage.MinioBucket == "" {
			return nil, errors.New("minio.bucket is required for the minio storage driver")
		}
		cfg.Minio, err = minio.New(v.GetString("minio.url"), &minio.Options{
			Creds:  credentials.NewStaticV4(v.GetString("minio.access_id"), v.GetString("minio.secret_access_key"), ""),
			Secure: v.GetBool("minio.secure"),
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown storage.driver %q", cfg.Storage.Driver)
	}

	switch cfg.Auth.Mode {
	case constant.AuthModeStatic, constant.AuthModeHeader:
	default:
		return nil, fmt.Errorf("unknown auth.mode %q", cfg.Auth.Mode)
	}

	if host := v.GetString("rabbitmq_host"); host != "" {
		cfg.Queue = &RabbitMQ{
			Host:          host,
			Port:          v.GetInt("rabbitmq_port"),
			User:          v.GetString("rabbitmq_user"),
			Pass:          v.GetString("rabbitmq_pass"),
			Kind:          v.GetString("rabbitmq_kind"),
			ExchangeName:  v.GetString("rabbitmq.exchange"),
			AnalysisQueue: v.GetString("rabbitmq.analysis_queue"),
		}
	}

	cfg.DB, err = sql.Open("postgres", v.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
