package config

import (
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret            string
	JWTExpireHours       string
	JWTRefreshExpireDays string

	// Super Admin
	SuperAdminEmail    string
	SuperAdminPassword string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       string

	// Rate Limiting
	RateLimitMaxRequests          string
	RateLimitTimeWindowSeconds    string
	RateLimitBlockDurationMinutes string

	// Login Rate Limiting
	LoginRateLimitMaxAttempts   string
	LoginRateLimitWindowSeconds string
	LoginRateLimitBlockMinutes  string

	// Frontend URL
	FrontendURL string

	// Service URLs
	APIGatewayURL   string
	AuthServiceURL  string
	CoreServiceURL  string
	AgentServiceURL string
	ChatServiceURL  string

	// Chat webhook
	ChatWebhookURL            string
	ChatWebhookSecret         string
	ChatWebhookTimeoutSeconds string
	ChatWebhookRetryCount     string
	ChatHistoryLimit          string

	// Agents
	AgentCacheTTLSeconds    string
	AgentAvatarMaxSize      string
	AgentAvatarAllowedTypes string

	// MinIO Configuration
	MinIOServerURL    string
	MinIORootUser     string
	MinIORootPassword string
	MinIOUseSSL       bool
	MinIOBucketName   string

	// Kafka
	KafkaBrokers   string
	KafkaChatTopic string

	// Logging
	LogLevel  string
	LogFormat string
}

var cfg *Config

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	envPaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	envLoaded := false
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			log.Printf("Environment loaded from: %s", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg = fromEnv()
}

func fromEnv() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "agentdesk"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:            getEnv("JWT_SECRET", "your-secret-key-change-this"),
		JWTExpireHours:       getEnv("JWT_EXPIRE_HOURS", "3"),
		JWTRefreshExpireDays: getEnv("JWT_REFRESH_EXPIRE_DAYS", "1"),

		SuperAdminEmail:    getEnv("SUPER_ADMIN_EMAIL", "admin@agentdesk.local"),
		SuperAdminPassword: getEnv("SUPER_ADMIN_PASSWORD", "admin123"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),

		RateLimitMaxRequests:          getEnv("RATE_LIMIT_MAX_REQUESTS", "100"),
		RateLimitTimeWindowSeconds:    getEnv("RATE_LIMIT_TIME_WINDOW_SECONDS", "60"),
		RateLimitBlockDurationMinutes: getEnv("RATE_LIMIT_BLOCK_DURATION_MINUTES", "15"),

		LoginRateLimitMaxAttempts:   getEnv("LOGIN_RATE_LIMIT_MAX_ATTEMPTS", "5"),
		LoginRateLimitWindowSeconds: getEnv("LOGIN_RATE_LIMIT_WINDOW_SECONDS", "300"),
		LoginRateLimitBlockMinutes:  getEnv("LOGIN_RATE_LIMIT_BLOCK_MINUTES", "30"),

		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		APIGatewayURL:   getEnv("API_GATEWAY_URL", "http://localhost:8000"),
		AuthServiceURL:  getEnv("AUTH_SERVICE_URL", "http://localhost:8001"),
		CoreServiceURL:  getEnv("CORE_SERVICE_URL", "http://localhost:8002"),
		AgentServiceURL: getEnv("AGENT_SERVICE_URL", "http://localhost:8003"),
		ChatServiceURL:  getEnv("CHAT_SERVICE_URL", "http://localhost:8004"),

		ChatWebhookURL:            getEnv("CHAT_WEBHOOK_URL", "http://localhost:5678/webhook/chat"),
		ChatWebhookSecret:         getEnv("CHAT_WEBHOOK_SECRET", ""),
		ChatWebhookTimeoutSeconds: getEnv("CHAT_WEBHOOK_TIMEOUT_SECONDS", "60"),
		ChatWebhookRetryCount:     getEnv("CHAT_WEBHOOK_RETRY_COUNT", "1"),
		ChatHistoryLimit:          getEnv("CHAT_HISTORY_LIMIT", "20"),

		AgentCacheTTLSeconds:    getEnv("AGENT_CACHE_TTL_SECONDS", "300"),
		AgentAvatarMaxSize:      getEnv("AGENT_AVATAR_MAX_SIZE", "2MB"),
		AgentAvatarAllowedTypes: getEnv("AGENT_AVATAR_ALLOWED_TYPES", ".png,.jpg,.jpeg,.webp"),

		MinIOServerURL:    getEnv("MINIO_SERVER_URL", "http://localhost:9000"),
		MinIORootUser:     getEnv("MINIO_ROOT_USER", "minioadmin"),
		MinIORootPassword: getEnv("MINIO_ROOT_PASSWORD", "minioadmin"),
		MinIOUseSSL:       getEnvAsBool("MINIO_USE_SSL", false),
		MinIOBucketName:   getEnv("MINIO_BUCKET_NAME", "agentdesk-assets"),

		KafkaBrokers:   getEnv("KAFKA_BROKERS", ""),
		KafkaChatTopic: getEnv("KAFKA_CHAT_TOPIC", "agentdesk.chat"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	if cfg == nil {
		LoadConfig()
	}
	return cfg
}

// SetConfig replaces the global configuration. Tests use it to avoid touching .env files.
func SetConfig(c *Config) {
	cfg = c
}

// Default returns a configuration built from defaults and the process environment only.
func Default() *Config {
	return fromEnv()
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func atoiOr(value string, fallback int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n >= 0 {
		return n
	}
	return fallback
}

// GetRateLimitMaxRequests returns the rate limit max requests as integer
func (c *Config) GetRateLimitMaxRequests() int {
	return atoiOr(c.RateLimitMaxRequests, 100)
}

// GetRateLimitTimeWindow returns the global rate limit window
func (c *Config) GetRateLimitTimeWindow() time.Duration {
	return time.Duration(atoiOr(c.RateLimitTimeWindowSeconds, 60)) * time.Second
}

// GetRateLimitBlockDuration returns how long an offending client stays blocked
func (c *Config) GetRateLimitBlockDuration() time.Duration {
	return time.Duration(atoiOr(c.RateLimitBlockDurationMinutes, 15)) * time.Minute
}

func (c *Config) GetLoginRateLimitMaxAttempts() int {
	return atoiOr(c.LoginRateLimitMaxAttempts, 5)
}

func (c *Config) GetLoginRateLimitWindow() time.Duration {
	return time.Duration(atoiOr(c.LoginRateLimitWindowSeconds, 300)) * time.Second
}

func (c *Config) GetLoginRateLimitBlockDuration() time.Duration {
	return time.Duration(atoiOr(c.LoginRateLimitBlockMinutes, 30)) * time.Minute
}

// WebhookTimeout returns the outbound chat webhook timeout
func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(atoiOr(c.ChatWebhookTimeoutSeconds, 60)) * time.Second
}

// WebhookRetryCount returns how many times a failed webhook call is retried
func (c *Config) WebhookRetryCount() int {
	return atoiOr(c.ChatWebhookRetryCount, 1)
}

// HistoryLimit returns how many previous messages are forwarded to the webhook
func (c *Config) HistoryLimit() int {
	return atoiOr(c.ChatHistoryLimit, 20)
}

// AgentCacheTTL returns the flat TTL of the preferred agent cache
func (c *Config) AgentCacheTTL() time.Duration {
	return time.Duration(atoiOr(c.AgentCacheTTLSeconds, 300)) * time.Second
}

// AvatarMaxSizeBytes parses sizes such as "2MB", "512KB" or "1048576"
func (c *Config) AvatarMaxSizeBytes() int64 {
	if n, ok := ParseSize(c.AgentAvatarMaxSize); ok {
		return n
	}
	return 2 << 20
}

// AvatarAllowedTypes returns the lower-cased extension allow-list
func (c *Config) AvatarAllowedTypes() []string {
	return splitList(strings.ToLower(c.AgentAvatarAllowedTypes))
}

// FrontendOrigins returns the browser origins allowed by CORS and the websocket hub
func (c *Config) FrontendOrigins() []string {
	return splitList(c.FrontendURL)
}

// KafkaBrokerList returns the configured brokers, empty when Kafka is disabled
func (c *Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

// ParseSize converts a human readable size into bytes.
func ParseSize(s string) (int64, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier, s = 1<<30, strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier, s = 1<<20, strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier, s = 1<<10, strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n * multiplier, true
}

// ServicePort extracts the port of a service URL such as http://localhost:8002.
func ServicePort(serviceURL, fallback string) string {
	u, err := url.Parse(serviceURL)
	if err != nil || u.Port() == "" {
		return fallback
	}
	return u.Port()
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
