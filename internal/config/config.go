package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/basel-ax/leonardo-publisher/internal/domain"
)

// Publish targets
const (
	TargetGitHub = "github"
	TargetMinio  = "minio"
)

// LeonardoConfig holds generation service configuration
type LeonardoConfig struct {
	APIKey       string   `env:"API_KEY" validate:"required"`
	ModelID      string   `env:"MODEL_ID" validate:"required"`
	BaseURL      string   `env:"BASE_URL" envDefault:"https://cloud.leonardo.ai/api/rest/v1" validate:"required,url"`
	AspectRatios []string `env:"ASPECT_RATIOS" envSeparator:"," envDefault:"512x512,1224x512" validate:"min=1"`
}

// GitHubConfig holds the contents API target
type GitHubConfig struct {
	Token         string `env:"TOKEN"`
	APIURL        string `env:"API_URL" envDefault:"https://api.github.com" validate:"required,url"`
	Repository    string `env:"TARGET_REPOSITORY" envDefault:"modelearth/requests" validate:"required"`
	Path          string `env:"UPLOAD_PATH" envDefault:"images/leonardo"`
	Branch        string `env:"BRANCH" envDefault:"main" validate:"required"`
	CommitMessage string `env:"COMMIT_MESSAGE" envDefault:"Upload generated image" validate:"required"`
}

// MinioConfig holds the S3-compatible publish target
type MinioConfig struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET"`
	Prefix    string `env:"PREFIX" envDefault:"images/leonardo"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"true"`
}

// PollConfig bounds the status polling loop
type PollConfig struct {
	Interval    time.Duration `env:"POLL_INTERVAL" envDefault:"10s" validate:"gt=0"`
	MaxAttempts int           `env:"MAX_POLL_ATTEMPTS" envDefault:"60" validate:"min=1"`
	Timeout     time.Duration `env:"POLL_TIMEOUT" envDefault:"15m" validate:"gt=0"`
}

// WebConfig holds the browser UI settings
type WebConfig struct {
	Addr string `env:"ADDR" envDefault:":8080"`
}

// DiscordConfig holds the chat UI settings
type DiscordConfig struct {
	Token   string `env:"TOKEN"`
	GuildID string `env:"GUILD_ID"`
	Command string `env:"COMMAND" envDefault:"imagine"`
}

// AMQPConfig holds the result queue settings. An empty URL disables it.
type AMQPConfig struct {
	URL   string `env:"URL"`
	Queue string `env:"QUEUE" envDefault:"leonardo_results"`
}

// MailConfig holds the summary email settings. An empty API key disables it.
type MailConfig struct {
	APIKey   string `env:"API_KEY"`
	FromName string `env:"FROM_NAME" envDefault:"leonardo-publisher"`
	From     string `env:"FROM"`
	To       string `env:"TO"`
}

// ScheduleConfig holds the cron mode settings
type ScheduleConfig struct {
	Spec   string `env:"SPEC" envDefault:"0 0 * * * *"`
	Prompt string `env:"PROMPT"`
}

// Config holds all configuration for the application
type Config struct {
	Leonardo      LeonardoConfig `envPrefix:"LEONARDO_"`
	GitHub        GitHubConfig   `envPrefix:"GITHUB_"`
	Minio         MinioConfig    `envPrefix:"MINIO_"`
	Poll          PollConfig
	Web           WebConfig      `envPrefix:"WEB_"`
	Discord       DiscordConfig  `envPrefix:"DISCORD_"`
	AMQP          AMQPConfig     `envPrefix:"AMQP_"`
	Mail          MailConfig     `envPrefix:"MAILERSEND_"`
	Schedule      ScheduleConfig `envPrefix:"SCHEDULE_"`
	PublishTarget string         `env:"PUBLISH_TARGET" envDefault:"github" validate:"oneof=github minio"`
	HTTPTimeout   time.Duration  `env:"HTTP_TIMEOUT" envDefault:"30s" validate:"gt=0"`

	dimensions []domain.Dimensions
}

// Load loads the configuration from the environment, reading a .env file in
// the working directory first when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	return FromEnv()
}

// FromEnv parses and validates the configuration from the process environment.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field constraints and the requirements of the selected
// publish target, and parses the aspect ratios.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.PublishTarget {
	case TargetGitHub:
		if c.GitHub.Token == "" {
			return fmt.Errorf("GITHUB_TOKEN is required")
		}
	case TargetMinio:
		if c.Minio.Endpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required")
		}
		if c.Minio.AccessKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY is required")
		}
		if c.Minio.SecretKey == "" {
			return fmt.Errorf("MINIO_SECRET_KEY is required")
		}
		if c.Minio.Bucket == "" {
			return fmt.Errorf("MINIO_BUCKET is required")
		}
	}

	if c.Mail.APIKey != "" && (c.Mail.From == "" || c.Mail.To == "") {
		return fmt.Errorf("MAILERSEND_FROM and MAILERSEND_TO are required when MAILERSEND_API_KEY is set")
	}

	dims := make([]domain.Dimensions, 0, len(c.Leonardo.AspectRatios))
	for _, ratio := range c.Leonardo.AspectRatios {
		if strings.TrimSpace(ratio) == "" {
			continue
		}
		d, err := domain.ParseDimensions(ratio)
		if err != nil {
			return fmt.Errorf("LEONARDO_ASPECT_RATIOS: %w", err)
		}
		dims = append(dims, d)
	}
	if len(dims) == 0 {
		return fmt.Errorf("LEONARDO_ASPECT_RATIOS is required")
	}
	c.dimensions = dims

	return nil
}

// Dimensions returns the parsed aspect ratios in configured order.
func (c *Config) Dimensions() []domain.Dimensions {
	return c.dimensions
}

// RequireDiscord checks the settings needed by the Discord UI.
func (c *Config) RequireDiscord() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	if c.Discord.Command == "" {
		return fmt.Errorf("DISCORD_COMMAND is required")
	}
	return nil
}
