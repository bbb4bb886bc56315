package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config holds all application configuration
type Config struct {
	Environment Environment `yaml:"environment"`
	LogLevel    string      `yaml:"logLevel"`

	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Store         StoreConfig         `yaml:"store"`
	Blob          BlobConfig          `yaml:"blob"`
	Realtime      RealtimeConfig      `yaml:"realtime"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Events        EventsConfig        `yaml:"events"`
	Observability ObservabilityConfig `yaml:"observability"`

	// File is the YAML file the configuration was read from, if any
	File string `yaml:"-"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

// AuthConfig holds token verification settings
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

// StoreConfig selects and configures the project store
type StoreConfig struct {
	Provider   string `yaml:"provider"` // memory, dynamodb or badger
	Region     string `yaml:"region"`
	TableName  string `yaml:"tableName"`
	Endpoint   string `yaml:"endpoint"`
	BadgerPath string `yaml:"badgerPath"`
	InMemory   bool   `yaml:"inMemory"`
}

// BlobConfig selects and configures artifact storage
type BlobConfig struct {
	Provider        string `yaml:"provider"` // memory or gcs
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	InlineThreshold int64  `yaml:"inlineThreshold"`
}

// RealtimeConfig tunes the websocket layer
type RealtimeConfig struct {
	SendBuffer         int           `yaml:"sendBuffer"`
	MaxMessageSize     int64         `yaml:"maxMessageSize"`
	PingInterval       time.Duration `yaml:"pingInterval"`
	PongWait           time.Duration `yaml:"pongWait"`
	WriteWait          time.Duration `yaml:"writeWait"`
	InboundRate        float64       `yaml:"inboundRate"`
	InboundBurst       int           `yaml:"inboundBurst"`
	MaxSessionsPerUser int           `yaml:"maxSessionsPerUser"`
}

// RetrievalConfig configures the external retrieval service client
type RetrievalConfig struct {
	BaseURL          string        `yaml:"baseURL"`
	RequestTimeout   time.Duration `yaml:"requestTimeout"`
	PollInterval     time.Duration `yaml:"pollInterval"`
	Timeout          time.Duration `yaml:"timeout"`
	BreakerFailures  uint32        `yaml:"breakerFailures"`
	BreakerOpenDelay time.Duration `yaml:"breakerOpenDelay"`
}

// EventsConfig configures lifecycle event publishing
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	BusName string `yaml:"busName"`
	Source  string `yaml:"source"`
}

// ObservabilityConfig toggles metrics and tracing
type ObservabilityConfig struct {
	MetricsEnabled bool    `yaml:"metricsEnabled"`
	TracingEnabled bool    `yaml:"tracingEnabled"`
	OTLPEndpoint   string  `yaml:"otlpEndpoint"`
	SampleRate     float64 `yaml:"sampleRate"`
}

// Default returns the configuration used before any file or environment
// overrides are applied
func Default() *Config {
	return &Config{
		Environment: Development,
		LogLevel:    "info",
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000"},
		},
		Auth: AuthConfig{
			Issuer: "qdesign",
		},
		Store: StoreConfig{
			Provider:   "memory",
			Region:     "us-west-2",
			TableName:  "qdesign-projects",
			BadgerPath: "./data/badger",
		},
		Blob: BlobConfig{
			Provider:        "memory",
			Prefix:          "qdesign",
			InlineThreshold: 10 << 20,
		},
		Realtime: RealtimeConfig{
			SendBuffer:         256,
			MaxMessageSize:     512 << 10,
			PingInterval:       54 * time.Second,
			PongWait:           60 * time.Second,
			WriteWait:          10 * time.Second,
			InboundRate:        30,
			InboundBurst:       60,
			MaxSessionsPerUser: 8,
		},
		Retrieval: RetrievalConfig{
			RequestTimeout:   10 * time.Second,
			PollInterval:     2 * time.Second,
			Timeout:          5 * time.Minute,
			BreakerFailures:  5,
			BreakerOpenDelay: 30 * time.Second,
		},
		Events: EventsConfig{
			BusName: "qdesign-events",
			Source:  "qdesign.backend",
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: true,
			SampleRate:     0.1,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by CONFIG_FILE and environment variables, in that order
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

// Load is LoadConfig with an explicit YAML path; an empty path skips the file
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.File = path
	}

	cfg.loadEnvironmentVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnvironmentVariables() {
	c.Environment = Environment(getEnv("ENVIRONMENT", string(c.Environment)))
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	// Server
	c.Server.Address = getEnv("SERVER_ADDRESS", c.Server.Address)
	c.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	// Auth
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.Issuer = getEnv("JWT_ISSUER", c.Auth.Issuer)
	c.Auth.Audience = getEnv("JWT_AUDIENCE", c.Auth.Audience)

	// Store
	c.Store.Provider = getEnv("STORE_PROVIDER", c.Store.Provider)
	c.Store.Region = getEnv("AWS_REGION", c.Store.Region)
	c.Store.TableName = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.Store.TableName))
	c.Store.Endpoint = getEnv("DYNAMODB_ENDPOINT", c.Store.Endpoint)
	c.Store.BadgerPath = getEnv("BADGER_PATH", c.Store.BadgerPath)
	c.Store.InMemory = getEnvBool("BADGER_IN_MEMORY", c.Store.InMemory)

	// Blob
	c.Blob.Provider = getEnv("BLOB_PROVIDER", c.Blob.Provider)
	c.Blob.Bucket = getEnv("GCS_BUCKET", c.Blob.Bucket)
	c.Blob.Prefix = getEnv("BLOB_PREFIX", c.Blob.Prefix)
	c.Blob.InlineThreshold = int64(getEnvInt("BLOB_INLINE_THRESHOLD", int(c.Blob.InlineThreshold)))

	// Realtime
	c.Realtime.SendBuffer = getEnvInt("WS_SEND_BUFFER", c.Realtime.SendBuffer)
	c.Realtime.MaxMessageSize = int64(getEnvInt("WS_MAX_MESSAGE_SIZE", int(c.Realtime.MaxMessageSize)))
	c.Realtime.InboundRate = getEnvFloat("WS_INBOUND_RATE", c.Realtime.InboundRate)
	c.Realtime.InboundBurst = getEnvInt("WS_INBOUND_BURST", c.Realtime.InboundBurst)
	c.Realtime.MaxSessionsPerUser = getEnvInt("WS_MAX_SESSIONS_PER_USER", c.Realtime.MaxSessionsPerUser)

	// Retrieval
	c.Retrieval.BaseURL = getEnv("RETRIEVAL_BASE_URL", c.Retrieval.BaseURL)
	c.Retrieval.PollInterval = getEnvDuration("RETRIEVAL_POLL_INTERVAL", c.Retrieval.PollInterval)
	c.Retrieval.Timeout = getEnvDuration("RETRIEVAL_TIMEOUT", c.Retrieval.Timeout)

	// Events
	c.Events.Enabled = getEnvBool("ENABLE_EVENTS", c.Events.Enabled)
	c.Events.BusName = getEnv("EVENT_BUS_NAME", c.Events.BusName)

	// Observability
	c.Observability.MetricsEnabled = getEnvBool("ENABLE_METRICS", c.Observability.MetricsEnabled)
	c.Observability.TracingEnabled = getEnvBool("ENABLE_TRACING", c.Observability.TracingEnabled)
	c.Observability.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Observability.OTLPEndpoint)
	c.Observability.SampleRate = getEnvFloat("TRACE_SAMPLE_RATE", c.Observability.SampleRate)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.Environment {
	case Development, Staging, Production:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}

	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}

	switch c.Store.Provider {
	case "memory":
	case "dynamodb":
		if c.Store.TableName == "" {
			return fmt.Errorf("TABLE_NAME is required for the dynamodb store")
		}
	case "badger":
		if c.Store.BadgerPath == "" && !c.Store.InMemory {
			return fmt.Errorf("BADGER_PATH is required for the badger store")
		}
	default:
		return fmt.Errorf("unknown store provider %q", c.Store.Provider)
	}

	switch c.Blob.Provider {
	case "memory":
	case "gcs":
		if c.Blob.Bucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for the gcs blob store")
		}
	default:
		return fmt.Errorf("unknown blob provider %q", c.Blob.Provider)
	}
	if c.Blob.InlineThreshold <= 0 {
		return fmt.Errorf("blob inline threshold must be positive")
	}

	if c.Realtime.SendBuffer <= 0 || c.Realtime.MaxMessageSize <= 0 {
		return fmt.Errorf("realtime send buffer and max message size must be positive")
	}
	if c.Realtime.PingInterval >= c.Realtime.PongWait {
		return fmt.Errorf("realtime ping interval must be shorter than pong wait")
	}
	if c.Realtime.InboundRate <= 0 || c.Realtime.InboundBurst <= 0 {
		return fmt.Errorf("realtime inbound rate and burst must be positive")
	}

	if c.Events.Enabled && c.Events.BusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required when events are enabled")
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		return fmt.Errorf("trace sample rate must be between 0 and 1")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
