package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server      ServerConfig
	Store       StoreConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Credentials CredentialsConfig
	SMTP        SMTPConfig
	LLM         LLMConfig
	Humanize    HumanizeConfig
	Diagnostics DiagnosticsConfig
	Sentry      SentryConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

// Store drivers.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// StoreConfig selects the account store.
type StoreConfig struct {
	Driver          string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	SQLitePath      string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	Password string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// CredentialsConfig holds the code lifecycle timings.
type CredentialsConfig struct {
	CodeTTL           time.Duration
	RegistrationGrace time.Duration
	ResetCooldown     time.Duration
	ResendThrottle    time.Duration
	SweepInterval     time.Duration
	FreshWindow       time.Duration
	MinPasswordLength int
	BcryptCost        int
}

// SMTPConfig holds outgoing mail settings. An empty Host logs codes instead of sending.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// LLMConfig holds the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	TopP        float32
	Timeout     time.Duration
}

// HumanizeConfig holds the browser automation settings.
type HumanizeConfig struct {
	TargetURL         string
	InputSelector     string
	SubmitSelector    string
	OutputSelector    string
	ChromePath        string
	UserAgent         string
	WindowWidth       int
	WindowHeight      int
	LaunchTimeout     time.Duration
	NavigationTimeout time.Duration
	ElementTimeout    time.Duration
	OutputTimeout     time.Duration
	SettlePeriod      time.Duration
	TypingTimeout     time.Duration
	TypingDelayMin    time.Duration
	TypingDelayMax    time.Duration
	// UserLockTTL defaults to RunBound so a lock never expires under a live run.
	UserLockTTL time.Duration
}

// runBoundSlack covers diagnostics capture and teardown after the last stage.
const runBoundSlack = 30 * time.Second

// RunBound is the longest one humanize run can take when every stage uses its full
// timeout: launch, page open, navigation, input wait, typing, submit, settle and output.
// Typing is bounded as a whole by TypingTimeout, not per keystroke.
func (c HumanizeConfig) RunBound() time.Duration {
	return c.LaunchTimeout + 2*c.NavigationTimeout + 2*c.ElementTimeout +
		c.TypingTimeout + c.SettlePeriod + c.OutputTimeout + runBoundSlack
}

// Diagnostic sinks.
const (
	SinkNone  = "none"
	SinkDir   = "dir"
	SinkMinio = "minio"
)

// DiagnosticsConfig selects where failed browser sessions are captured.
type DiagnosticsConfig struct {
	Sink           string
	Dir            string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN         string
	Environment string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Load loads configuration from environment variables
func Load() *Config {
	env := getEnv("SERVER_ENV", "development")
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "5000"),
			Env:            env,
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Store: StoreConfig{
			Driver:          strings.ToLower(getEnv("STORE_DRIVER", StoreMongo)),
			MongoURI:        getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			MongoDatabase:   getEnv("MONGODB_DATABASE", "kwala"),
			MongoCollection: getEnv("MONGODB_COLLECTION", "users"),
			SQLitePath:      getEnv("SQLITE_PATH", "kwala.db"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "kwala"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-this-in-production"),
			Expiry: getEnvAsDuration("JWT_EXPIRY", 7*24*time.Hour),
		},
		Credentials: CredentialsConfig{
			CodeTTL:           getEnvAsDuration("CODE_TTL", 180*time.Second),
			RegistrationGrace: getEnvAsDuration("REGISTRATION_GRACE", 12*time.Minute),
			ResetCooldown:     getEnvAsDuration("RESET_COOLDOWN", 60*time.Second),
			ResendThrottle:    getEnvAsDuration("RESEND_THROTTLE", 30*time.Second),
			SweepInterval:     getEnvAsDuration("SWEEP_INTERVAL", 60*time.Second),
			FreshWindow:       getEnvAsDuration("CODE_FRESH_WINDOW", 2*time.Second),
			MinPasswordLength: getEnvAsInt("MIN_PASSWORD_LENGTH", 6),
			BcryptCost:        getEnvAsInt("BCRYPT_COST", 12),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("EMAIL_USER", ""),
			Password: getEnv("EMAIL_PASSWORD", ""),
			From:     getEnv("EMAIL_FROM", getEnv("EMAIL_USER", "")),
			FromName: getEnv("EMAIL_FROM_NAME", "Kwala AI"),
			TLS:      getEnvAsBool("SMTP_TLS", true),
		},
		LLM: LLMConfig{
			APIKey:      getEnv("GROQ_API_KEY", ""),
			BaseURL:     getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:       getEnv("GROQ_MODEL", "llama3-8b-8192"),
			Temperature: getEnvAsFloat("GROQ_TEMPERATURE", 0.7),
			MaxTokens:   getEnvAsInt("GROQ_MAX_TOKENS", 2048),
			TopP:        getEnvAsFloat("GROQ_TOP_P", 1),
			Timeout:     getEnvAsDuration("GROQ_TIMEOUT", 60*time.Second),
		},
		Humanize: HumanizeConfig{
			TargetURL:         getEnv("HUMANIZE_URL", "https://www.humanizeai.pro/"),
			InputSelector:     getEnv("HUMANIZE_INPUT_SELECTOR", "textarea.InputContainer_inputContainer__jeGwX"),
			SubmitSelector:    getEnv("HUMANIZE_SUBMIT_SELECTOR", "button.ParaphraseButton_button__nWdlZ"),
			OutputSelector:    getEnv("HUMANIZE_OUTPUT_SELECTOR", ".OutputContainer_output__wvgeh"),
			ChromePath:        getEnv("CHROME_BIN", ""),
			UserAgent:         getEnv("HUMANIZE_USER_AGENT", defaultUserAgent),
			WindowWidth:       getEnvAsInt("HUMANIZE_WINDOW_WIDTH", 1920),
			WindowHeight:      getEnvAsInt("HUMANIZE_WINDOW_HEIGHT", 1080),
			LaunchTimeout:     getEnvAsDuration("HUMANIZE_LAUNCH_TIMEOUT", 90*time.Second),
			NavigationTimeout: getEnvAsDuration("HUMANIZE_NAVIGATION_TIMEOUT", 60*time.Second),
			ElementTimeout:    getEnvAsDuration("HUMANIZE_ELEMENT_TIMEOUT", 30*time.Second),
			OutputTimeout:     getEnvAsDuration("HUMANIZE_OUTPUT_TIMEOUT", 30*time.Second),
			SettlePeriod:      getEnvAsDuration("HUMANIZE_SETTLE_PERIOD", 5*time.Second),
			TypingTimeout:     getEnvAsDuration("HUMANIZE_TYPING_TIMEOUT", 2*time.Minute),
			TypingDelayMin:    getEnvAsDuration("HUMANIZE_TYPING_DELAY_MIN", 5*time.Millisecond),
			TypingDelayMax:    getEnvAsDuration("HUMANIZE_TYPING_DELAY_MAX", 25*time.Millisecond),
			UserLockTTL:       getEnvAsDuration("HUMANIZE_USER_LOCK_TTL", 0),
		},
		Diagnostics: DiagnosticsConfig{
			Sink:           strings.ToLower(getEnv("DIAGNOSTICS_SINK", SinkNone)),
			Dir:            getEnv("DIAGNOSTICS_DIR", os.TempDir()),
			MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			MinioAccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			MinioSecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			MinioBucket:    getEnv("MINIO_BUCKET", "kwala-diagnostics"),
			MinioUseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Sentry: SentryConfig{
			DSN:         getEnv("SENTRY_DSN", ""),
			Environment: getEnv("SENTRY_ENVIRONMENT", env),
		},
	}
	if cfg.Humanize.UserLockTTL <= 0 {
		cfg.Humanize.UserLockTTL = cfg.Humanize.RunBound()
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
