package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Preview storage modes
const (
	PreviewStorageInline = "inline" // data URLs embedded in the order
	PreviewStorageDisk   = "disk"   // files under UploadDir served by the API
	PreviewStorageS3     = "s3"     // objects in AWS S3
)

// DefaultPlaceholderImageURL is used when a photo preview cannot be made durable
const DefaultPlaceholderImageURL = "https://images.unsplash.com/photo-1579546929518-9e396f3cc809?w=200&q=80"

// Config holds all application configuration
type Config struct {
	DatabaseURL string
	Port        string
	GoEnv       string
	LogLevel    string

	// Local cache
	LocalCachePath    string
	LocalHistoryLimit int

	// Remote store
	RemoteTimeout time.Duration

	// Notifications
	NotifyRecipient string
	NotifyTimeout   time.Duration
	RabbitMQURL     string
	NotifyQueue     string

	// Insert push channel
	RedisAddr     string
	InsertChannel string

	// Admin gate
	AdminSecret   string
	Auth0Domain   string
	Auth0Audience string

	// Photo previews
	PreviewStorage      string
	UploadDir           string
	PlaceholderImageURL string
	AWSRegion           string
	AWSS3Bucket         string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string

	// Tracing
	JaegerEndpoint string
}

var appConfig *Config

// Load loads the configuration from environment variables.
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		if err := godotenv.Load(); err != nil {
			// Hosted environments set variables directly
			log.Debug().Msg("No .env file found, using system environment variables")
		}
	} else {
		log.Info().Str("file", envFile).Msg("Loaded configuration")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	config := &Config{
		DatabaseURL:         v.GetString("DATABASE_URL"),
		Port:                v.GetString("PORT"),
		GoEnv:               v.GetString("GO_ENV"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		LocalCachePath:      v.GetString("LOCAL_CACHE_PATH"),
		LocalHistoryLimit:   v.GetInt("LOCAL_HISTORY_LIMIT"),
		RemoteTimeout:       v.GetDuration("REMOTE_TIMEOUT"),
		NotifyRecipient:     v.GetString("NOTIFY_RECIPIENT"),
		NotifyTimeout:       v.GetDuration("NOTIFY_TIMEOUT"),
		RabbitMQURL:         v.GetString("RABBITMQ_URL"),
		NotifyQueue:         v.GetString("NOTIFY_QUEUE"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		InsertChannel:       v.GetString("INSERT_CHANNEL"),
		AdminSecret:         v.GetString("ADMIN_SECRET"),
		Auth0Domain:         v.GetString("AUTH0_DOMAIN"),
		Auth0Audience:       v.GetString("AUTH0_AUDIENCE"),
		PreviewStorage:      strings.ToLower(v.GetString("PREVIEW_STORAGE")),
		UploadDir:           v.GetString("UPLOAD_DIR"),
		PlaceholderImageURL: v.GetString("PLACEHOLDER_IMAGE_URL"),
		AWSRegion:           v.GetString("AWS_REGION"),
		AWSS3Bucket:         v.GetString("AWS_S3_BUCKET"),
		AWSAccessKeyID:      v.GetString("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey:  v.GetString("AWS_SECRET_ACCESS_KEY"),
		JaegerEndpoint:      v.GetString("JAEGER_ENDPOINT"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	appConfig = config
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GO_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOCAL_CACHE_PATH", "./data/local-cache.db")
	v.SetDefault("LOCAL_HISTORY_LIMIT", 200)
	v.SetDefault("REMOTE_TIMEOUT", 15*time.Second)
	v.SetDefault("NOTIFY_TIMEOUT", 10*time.Second)
	v.SetDefault("NOTIFY_QUEUE", "photo-orders.notifications")
	v.SetDefault("INSERT_CHANNEL", "photo-orders.inserted")
	v.SetDefault("PREVIEW_STORAGE", PreviewStorageInline)
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("PLACEHOLDER_IMAGE_URL", DefaultPlaceholderImageURL)
	v.SetDefault("AWS_REGION", "us-east-1")
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.AdminSecret == "" && (c.Auth0Domain == "" || c.Auth0Audience == "") {
		return fmt.Errorf("ADMIN_SECRET or AUTH0_DOMAIN and AUTH0_AUDIENCE are required")
	}
	switch c.PreviewStorage {
	case PreviewStorageInline, PreviewStorageDisk:
	case PreviewStorageS3:
		if c.AWSS3Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required when PREVIEW_STORAGE is s3")
		}
	default:
		return fmt.Errorf("unsupported PREVIEW_STORAGE %q", c.PreviewStorage)
	}
	if c.LocalHistoryLimit <= 0 {
		return fmt.Errorf("LOCAL_HISTORY_LIMIT must be positive")
	}
	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("REMOTE_TIMEOUT must be positive")
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive")
	}
	return nil
}

// UsesAuth0 reports whether the admin surface is gated by Auth0 JWTs
func (c *Config) UsesAuth0() bool {
	return c.Auth0Domain != "" && c.Auth0Audience != ""
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// GetConfig returns the most recently loaded configuration
func GetConfig() *Config {
	return appConfig
}
