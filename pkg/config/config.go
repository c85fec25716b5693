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

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Env            string
	AppURL         string
	AllowedOrigins []string
}

// IsProduction reports whether cookies should be marked Secure.
func (s ServerConfig) IsProduction() bool {
	return s.Env == "production"
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey    string
	SessionTTL    time.Duration
	PhoneTokenTTL time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string
}

// OTPConfig describes the third-party OTP provider. Field names are
// configurable because every provider names its request and response
// fields differently.
type OTPConfig struct {
	SendURL          string
	VerifyURL        string
	APIKey           string
	AuthHeader       string
	AuthPrefix       string
	PhoneField       string
	CountryCodeField string
	ChannelField     string
	OTPField         string
	SessionIDField   string
	SessionIDFields  []string
	SuccessFields    []string
	Channel          string
	SenderID         string
	Timeout          time.Duration
}

// GoogleConfig holds Google OAuth client settings. Empty endpoint URLs fall
// back to Google's own.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
}

// Enabled reports whether Google sign-in is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// GeminiConfig holds settings for AI message drafting
type GeminiConfig struct {
	APIKey string
	Model  string
}

// AMQPConfig holds the activity event broker settings
type AMQPConfig struct {
	URL      string
	Exchange string
}

// Config holds all configuration
type Config struct {
	ServiceName string
	DB          DBConfig
	Server      ServerConfig
	JWT         JWTConfig
	Log         LogConfig
	Metrics     MetricsConfig
	OTP         OTPConfig
	Google      GoogleConfig
	Gemini      GeminiConfig
	AMQP        AMQPConfig
}

// Load loads configuration from the environment, reading .env first when present.
func Load(serviceName string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	appURL := getEnv("APP_URL", getEnv("NEXT_PUBLIC_APP_URL", "http://localhost:8080"))

	config := &Config{
		ServiceName: serviceName,
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "crm"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Env:            getEnv("APP_ENV", "development"),
			AppURL:         strings.TrimRight(appURL, "/"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		JWT: JWTConfig{
			SigningKey:    getEnv("JWT_SIGNING_KEY", getEnv("JWT_SECRET", "defaultsecretkey")),
			SessionTTL:    getEnvAsDuration("SESSION_TTL", 7*24*time.Hour),
			PhoneTokenTTL: getEnvAsDuration("PHONE_TOKEN_TTL", 24*time.Hour),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", serviceName),
		},
		OTP:    loadOTPConfig(),
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", appURL+"/auth/google/callback"),
			AuthURL:      getEnv("GOOGLE_AUTH_URL", ""),
			TokenURL:     getEnv("GOOGLE_TOKEN_URL", ""),
			UserInfoURL:  getEnv("GOOGLE_USERINFO_URL", ""),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		AMQP: AMQPConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "crm.events"),
		},
	}

	return config, nil
}

func loadOTPConfig() OTPConfig {
	return OTPConfig{
		SendURL:          getEnv("OTP_SEND_URL", getEnv("OTP_PLATFORM_URL", "")),
		VerifyURL:        getEnv("OTP_VERIFY_URL", getEnv("OTP_PLATFORM_VERIFY_URL", "")),
		APIKey:           getEnv("OTP_API_KEY", ""),
		AuthHeader:       getEnv("OTP_AUTH_HEADER", "Authorization"),
		AuthPrefix:       getEnv("OTP_AUTH_PREFIX", "Bearer"),
		PhoneField:       getEnv("OTP_PHONE_FIELD", "phone"),
		CountryCodeField: getEnv("OTP_COUNTRY_CODE_FIELD", "country_code"),
		ChannelField:     getEnv("OTP_CHANNEL_FIELD", "channel"),
		OTPField:         getEnv("OTP_OTP_FIELD", "otp"),
		SessionIDField:   getEnv("OTP_SESSION_ID_FIELD", "session_id"),
		SessionIDFields:  getEnvAsList("OTP_SESSION_ID_FIELDS", []string{"session_id", "request_id", "id"}),
		SuccessFields:    getEnvAsList("OTP_SUCCESS_FIELDS", []string{"verified", "success", "valid"}),
		Channel:          getEnv("OTP_CHANNEL", "sms"),
		SenderID:         getEnv("OTP_SENDER_ID", "Qawafel CRM"),
		Timeout:          getEnvAsDuration("OTP_TIMEOUT", 10*time.Second),
	}
}

// LogFields returns the configuration as zap fields, leaving secrets out
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_user", c.DB.User),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
		zap.Bool("otp_configured", c.OTP.SendURL != "" && c.OTP.APIKey != ""),
		zap.Bool("google_oauth", c.Google.Enabled()),
		zap.Bool("gemini", c.Gemini.APIKey != ""),
		zap.Bool("amqp", c.AMQP.URL != ""),
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

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, trimming each entry.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
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
