package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the photo onboarding client and server
type Config struct {
	Server  ServerConfig
	Client  ClientConfig
	Upload  UploadConfig
	Crop    CropConfig
	Preload PreloadConfig
	Storage StorageConfig
	CSRF    CSRFConfig
	Kafka   KafkaConfig
	Logging LoggingConfig
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RateLimit    RateLimitConfig
}

// RateLimitConfig bounds photo endpoint requests per client
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int `validate:"gte=0"`
	Burst             int `validate:"gte=0"`
}

// ClientConfig holds the remote endpoints used by the widget
type ClientConfig struct {
	BaseURL         string        `validate:"required,url"`
	UploadPath      string        `validate:"required,startswith=/"`
	PreviewPath     string        `validate:"required,startswith=/"`
	CSRFToken       string
	RequestTimeout  time.Duration `validate:"gte=0"`
	ShutdownTimeout time.Duration
}

// UploadConfig holds the client side upload constraints
type UploadConfig struct {
	MinWidth     int   `validate:"gt=0"`
	MinHeight    int   `validate:"gt=0"`
	MaxFileSize  int64 `validate:"gt=0"`
	SilentReject bool
}

// CropConfig holds crop box geometry
type CropConfig struct {
	AspectWidth        int `validate:"gt=0"`
	AspectHeight       int `validate:"gt=0"`
	MinThumbWidth      int `validate:"gt=0"`
	MinThumbHeight     int `validate:"gt=0"`
	Padding            int `validate:"gte=0"`
	MinContainerWidth  int `validate:"gte=0"`
	MinContainerHeight int `validate:"gte=0"`
}

// PreloadConfig holds external resources loaded before activation
type PreloadConfig struct {
	Resources  []string
	MaxRetries uint64
}

// StorageConfig holds local storage configuration for the server
type StorageConfig struct {
	BasePath    string
	BaseURL     string
	Permissions string
}

// CSRFConfig holds anti-forgery token configuration
type CSRFConfig struct {
	Enabled    bool
	Secret     string
	CookieName string
	HeaderName string
	TTL        time.Duration
}

// KafkaConfig holds Kafka specific configuration
type KafkaConfig struct {
	Enabled  bool
	Brokers  []string
	ClientID string
	Topic    string
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads the configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration built from defaults only
func Default() *Config {
	cfg, err := LoadConfig("")
	if err != nil {
		panic(fmt.Sprintf("invalid default config: %v", err))
	}
	return cfg
}

// Validate checks struct constraints of the loaded configuration
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Crop.MinThumbWidth > c.Upload.MinWidth || c.Crop.MinThumbHeight > c.Upload.MinHeight {
		return fmt.Errorf("invalid config: minimum thumbnail %dx%d exceeds minimum upload %dx%d",
			c.Crop.MinThumbWidth, c.Crop.MinThumbHeight, c.Upload.MinWidth, c.Upload.MinHeight)
	}
	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.idleTimeout", "120s")
	v.SetDefault("server.rateLimit.enabled", true)
	v.SetDefault("server.rateLimit.requestsPerMinute", 30)
	v.SetDefault("server.rateLimit.burst", 10)

	// Client defaults
	v.SetDefault("client.baseURL", "http://localhost:8080")
	v.SetDefault("client.uploadPath", "/profile-update-image/")
	v.SetDefault("client.previewPath", "/tools/markdown/preview/")
	v.SetDefault("client.requestTimeout", "30s")
	v.SetDefault("client.shutdownTimeout", "10s")

	// Upload defaults
	v.SetDefault("upload.minWidth", 250)
	v.SetDefault("upload.minHeight", 350)
	v.SetDefault("upload.maxFileSize", 5*1024*1024) // 5MB
	v.SetDefault("upload.silentReject", false)

	// Crop defaults
	v.SetDefault("crop.aspectWidth", 5)
	v.SetDefault("crop.aspectHeight", 7)
	v.SetDefault("crop.minThumbWidth", 170)
	v.SetDefault("crop.minThumbHeight", 238)
	v.SetDefault("crop.padding", 40)
	v.SetDefault("crop.minContainerWidth", 250)
	v.SetDefault("crop.minContainerHeight", 250)

	// Preload defaults
	v.SetDefault("preload.resources", []string{})
	v.SetDefault("preload.maxRetries", 0)

	// Storage defaults
	v.SetDefault("storage.basePath", "/data/photos")
	v.SetDefault("storage.baseURL", "http://localhost:8080/media")
	v.SetDefault("storage.permissions", "0644")

	// CSRF defaults
	v.SetDefault("csrf.enabled", true)
	v.SetDefault("csrf.secret", "photo-onboarding-dev-secret")
	v.SetDefault("csrf.cookieName", "csrftoken")
	v.SetDefault("csrf.headerName", "X-CSRFToken")
	v.SetDefault("csrf.ttl", "12h")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.clientID", "photo-onboarding")
	v.SetDefault("kafka.topic", "photo-events")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
