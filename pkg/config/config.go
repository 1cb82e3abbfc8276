package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Driver          string
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the connection string. DATABASE_URL wins over the individual parts.
func (c *DBConfig) GetDSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Driver == "sqlite" {
		return c.DBName + ".db"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port        string
	Env         string
	CSRFEnabled bool
}

// PlatformConfig holds the auth/storage platform settings
type PlatformConfig struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
	JWTSecret      string
	AvatarBucket   string
}

// AIConfig holds the text-generation API settings
type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// PDFConfig holds the PDF renderer settings
type PDFConfig struct {
	RendererURL string
	Timeout     time.Duration
}

// MediaConfig holds signed-media proxy settings
type MediaConfig struct {
	SignedURLTTL  time.Duration
	ReuseMargin   time.Duration
	FetchTimeout  time.Duration
	BrowserMaxAge int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
	File  string
}

// Config holds all configuration
type Config struct {
	ServiceName string
	DB          DBConfig
	Server      ServerConfig
	Platform    PlatformConfig
	AI          AIConfig
	PDF         PDFConfig
	Media       MediaConfig
	Log         LogConfig
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not returning error as .env file is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	config := &Config{
		ServiceName: getEnv("SERVICE_NAME", "scouting-service"),
		DB: DBConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			URL:             getEnv("DATABASE_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "scouting"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Env:         getEnv("APP_ENV", "development"),
			CSRFEnabled: getEnvAsBool("CSRF_ENABLED", true),
		},
		Platform: PlatformConfig{
			URL:            strings.TrimRight(getEnv("PLATFORM_URL", ""), "/"),
			AnonKey:        getEnv("PLATFORM_ANON_KEY", ""),
			ServiceRoleKey: getEnv("PLATFORM_SERVICE_ROLE_KEY", ""),
			JWTSecret:      getEnv("PLATFORM_JWT_SECRET", ""),
			AvatarBucket:   getEnv("AVATAR_BUCKET", "avatars"),
		},
		AI: AIConfig{
			APIKey:  getEnv("AI_API_KEY", ""),
			BaseURL: strings.TrimRight(getEnv("AI_BASE_URL", "https://api.mistral.ai"), "/"),
			Model:   getEnv("AI_MODEL", "mistral-small-latest"),
			Timeout: getEnvAsDuration("AI_TIMEOUT", 20*time.Second),
		},
		PDF: PDFConfig{
			RendererURL: strings.TrimRight(getEnv("PDF_RENDERER_URL", ""), "/"),
			Timeout:     getEnvAsDuration("PDF_TIMEOUT", 30*time.Second),
		},
		Media: MediaConfig{
			SignedURLTTL:  getEnvAsDuration("MEDIA_SIGNED_URL_TTL", 15*time.Minute),
			ReuseMargin:   getEnvAsDuration("MEDIA_REUSE_MARGIN", 5*time.Minute),
			FetchTimeout:  getEnvAsDuration("MEDIA_FETCH_TIMEOUT", 5*time.Second),
			BrowserMaxAge: getEnvAsInt("MEDIA_BROWSER_MAX_AGE", 60),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	return config, nil
}

// Missing lists the required environment variables that are not set.
// The health route reports them; startup does not fail on them.
func (c *Config) Missing() []string {
	var missing []string
	if c.DB.URL == "" && c.DB.Driver != "sqlite" && os.Getenv("DB_HOST") == "" {
		missing = append(missing, "DATABASE_URL")
	}
	required := []struct {
		name  string
		value string
	}{
		{"PLATFORM_URL", c.Platform.URL},
		{"PLATFORM_ANON_KEY", c.Platform.AnonKey},
		{"PLATFORM_SERVICE_ROLE_KEY", c.Platform.ServiceRoleKey},
		{"PLATFORM_JWT_SECRET", c.Platform.JWTSecret},
		{"AI_API_KEY", c.AI.APIKey},
	}
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	return missing
}

// LogConfig returns the configuration as zap fields. Keys, secrets and the
// database URL are reported only as set or unset.
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("db_driver", c.DB.Driver),
		zap.String("db_host", c.DB.Host),
		zap.String("db_name", c.DB.DBName),
		zap.Bool("db_url_set", c.DB.URL != ""),
		zap.String("server_port", c.Server.Port),
		zap.Bool("csrf_enabled", c.Server.CSRFEnabled),
		zap.String("platform_url", c.Platform.URL),
		zap.String("avatar_bucket", c.Platform.AvatarBucket),
		zap.Bool("jwt_secret_set", c.Platform.JWTSecret != ""),
		zap.Bool("platform_configured", c.Platform.URL != ""),
		zap.Bool("ai_configured", c.AI.APIKey != ""),
		zap.Bool("pdf_configured", c.PDF.RendererURL != ""),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as log levels
func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
