package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	envPrefix = "ARCHIVER"

	defaultMaxArchiveSize = 5 << 30
)

type WorkerConfig struct {
	Workers   int           `yaml:"workers" envconfig:"WORKERS"`
	PollDelay time.Duration `yaml:"poll_delay" envconfig:"POLL_DELAY"`
}

type CopyServiceConfig struct {
	URL     string        `yaml:"url" envconfig:"COPY_URL"`
	Timeout time.Duration `yaml:"timeout" envconfig:"COPY_TIMEOUT"`
}

type MailConfig struct {
	SupportAddr string `yaml:"support_addr" envconfig:"SUPPORT_ADDR"`
	FromAddr    string `yaml:"from_addr" envconfig:"FROM_ADDR"`
}

type Config struct {
	Listen            string            `yaml:"listen" envconfig:"LISTEN"`
	SiteURL           string            `yaml:"site_url" envconfig:"SITE_URL"`
	LogLevel          string            `yaml:"log_level" envconfig:"LOG_LEVEL"`
	RedisURL          string            `yaml:"redis_url" envconfig:"REDIS_URL"`
	ArchiveProvider   string            `yaml:"archive_provider" envconfig:"ARCHIVE_PROVIDER"`
	MaxArchiveSize    int64             `yaml:"max_archive_size" envconfig:"MAX_ARCHIVE_SIZE"`
	NoArchiveLimitTag string            `yaml:"no_archive_limit_tag" envconfig:"NO_ARCHIVE_LIMIT_TAG"`
	WorkerConfig      WorkerConfig      `yaml:"worker"`
	CopyServiceConfig CopyServiceConfig `yaml:"copy_service"`
	MailConfig        MailConfig        `yaml:"mail"`
}

func defaultConfig() Config {
	return Config{
		Listen:            ":8080",
		SiteURL:           "http://localhost:8080",
		LogLevel:          LogLevelInfo,
		RedisURL:          "redis://localhost:6379/0",
		ArchiveProvider:   "osfstorage",
		MaxArchiveSize:    defaultMaxArchiveSize,
		NoArchiveLimitTag: "no_archive_limit",
		WorkerConfig: WorkerConfig{
			Workers:   4,
			PollDelay: time.Second,
		},
		CopyServiceConfig: CopyServiceConfig{
			Timeout: 30 * time.Second,
		},
		MailConfig: MailConfig{
			SupportAddr: "support@localhost",
			FromAddr:    "archiver@localhost",
		},
	}
}

// Load starts from built-in defaults, merges the YAML config file when the
// path is not empty, then applies ARCHIVER_* environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file: %w", err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("cannot process environment: %w", err)
	}

	return &cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}
