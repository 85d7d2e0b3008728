package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Email    EmailConfig
	Security SecurityConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	MigrateOnStart    bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	FrontendOrigin string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	FailureDelayBase   time.Duration
	FailureDelayJitter time.Duration
	BcryptCost         int
}

type RedisConfig struct {
	Addr     string // empty = in-process counter store (development only)
	Password string
	DB       int
}

type StorageConfig struct {
	Driver          string // "s3", "minio" or "" (uploads disabled)
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

type EmailConfig struct {
	AWSRegion   string
	FromAddress string // empty = lockout notifications disabled
}

type SecurityConfig struct {
	BruteForce   BruteForceConfig
	CSRF         CSRFConfig
	Uploads      UploadConfig
	Encode       EncodeConfig
	Events       EventConfig
	PatternsFile string // optional override of the embedded injection pattern table
}

type BruteForceConfig struct {
	MaxAttempts     int
	LockoutWindow   time.Duration
	KeyPrefix       string
	FailOpen        bool
	StoreTimeout    time.Duration
	LoginPerMinute  int
	RegisterPerHour int
}

type CSRFConfig struct {
	CookieName  string
	HeaderName  string
	TokenLength int
	MaxAge      time.Duration
	ExemptPaths []string
}

type UploadConfig struct {
	MaxImageBytes      int64
	MaxImageWidth      int
	MaxImageHeight     int
	MaxAudioBytes      int64
	MaxAudioDuration   time.Duration
	MaxVideoBytes      int64
	UploadsPerMinute   int
	UploadsPerHour     int
	MaxMultipartMemory int64
}

type EncodeConfig struct {
	Concurrency int
	QueueWait   time.Duration
}

type EventConfig struct {
	Retention       time.Duration
	CleanupInterval time.Duration
	PersistTimeout  time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "sentinel"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			MigrateOnStart:    getEnvAsBool("DB_MIGRATE_ON_START", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			FrontendOrigin: getEnv("FRONTEND_URL", "http://localhost:5173"),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES", nil),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			FailureDelayBase:   getEnvAsDuration("LOGIN_FAILURE_DELAY", 1500*time.Millisecond),
			FailureDelayJitter: getEnvAsDuration("LOGIN_FAILURE_JITTER", 250*time.Millisecond),
			BcryptCost:         getEnvAsInt("BCRYPT_COST", 14),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Driver:          strings.ToLower(getEnv("STORAGE_DRIVER", "")),
			Bucket:          getEnv("STORAGE_BUCKET", ""),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY", ""),
			SecretAccessKey: getEnv("STORAGE_SECRET_KEY", ""),
			PublicBaseURL:   strings.TrimRight(getEnv("STORAGE_PUBLIC_URL", ""), "/"),
		},
		Email: EmailConfig{
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		},
		Security: SecurityConfig{
			BruteForce: BruteForceConfig{
				MaxAttempts:     getEnvAsInt("BRUTE_FORCE_MAX_ATTEMPTS", 5),
				LockoutWindow:   time.Duration(getEnvAsInt("BRUTE_FORCE_LOCKOUT_MINUTES", 15)) * time.Minute,
				KeyPrefix:       getEnv("BRUTE_FORCE_KEY_PREFIX", "bf:"),
				FailOpen:        getEnvAsBool("BRUTE_FORCE_FAIL_OPEN", false),
				StoreTimeout:    getEnvAsDuration("BRUTE_FORCE_STORE_TIMEOUT", 500*time.Millisecond),
				LoginPerMinute:  getEnvAsInt("LOGIN_REQUESTS_PER_MINUTE", 5),
				RegisterPerHour: getEnvAsInt("REGISTER_REQUESTS_PER_HOUR", 3),
			},
			CSRF: CSRFConfig{
				CookieName:  getEnv("CSRF_COOKIE_NAME", "__bellor_csrf"),
				HeaderName:  getEnv("CSRF_HEADER_NAME", "X-CSRF-Token"),
				TokenLength: getEnvAsInt("CSRF_TOKEN_BYTES", 32),
				MaxAge:      getEnvAsDuration("CSRF_MAX_AGE", time.Hour),
				ExemptPaths: getEnvAsList("CSRF_EXEMPT_PATHS", []string{"/webhooks/"}),
			},
			Uploads: UploadConfig{
				MaxImageBytes:      getEnvAsInt64("UPLOAD_MAX_IMAGE_BYTES", 10*1024*1024),
				MaxImageWidth:      getEnvAsInt("UPLOAD_MAX_IMAGE_WIDTH", 4096),
				MaxImageHeight:     getEnvAsInt("UPLOAD_MAX_IMAGE_HEIGHT", 4096),
				MaxAudioBytes:      getEnvAsInt64("UPLOAD_MAX_AUDIO_BYTES", 5*1024*1024),
				MaxAudioDuration:   getEnvAsDuration("UPLOAD_MAX_AUDIO_DURATION", 60*time.Second),
				MaxVideoBytes:      getEnvAsInt64("UPLOAD_MAX_VIDEO_BYTES", 100*1024*1024),
				UploadsPerMinute:   getEnvAsInt("UPLOADS_PER_MINUTE", 10),
				UploadsPerHour:     getEnvAsInt("UPLOADS_PER_HOUR", 50),
				MaxMultipartMemory: getEnvAsInt64("UPLOAD_MAX_MULTIPART_MEMORY", 32*1024*1024),
			},
			Encode: EncodeConfig{
				Concurrency: getEnvAsInt("ENCODE_CONCURRENCY", runtime.NumCPU()),
				QueueWait:   getEnvAsDuration("ENCODE_QUEUE_WAIT", 5*time.Second),
			},
			Events: EventConfig{
				Retention:       getEnvAsDuration("SECURITY_EVENT_RETENTION", 90*24*time.Hour),
				CleanupInterval: getEnvAsDuration("SECURITY_EVENT_CLEANUP_INTERVAL", time.Hour),
				PersistTimeout:  getEnvAsDuration("SECURITY_EVENT_PERSIST_TIMEOUT", 2*time.Second),
			},
			PatternsFile: getEnv("SECURITY_PATTERNS_FILE", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Security.validate(); err != nil {
		return nil, err
	}

	if env == "production" && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required in production")
	}

	return cfg, nil
}

// validate rejects limits that would disable a guard
func (s *SecurityConfig) validate() error {
	if s.BruteForce.MaxAttempts < 1 {
		return fmt.Errorf("BRUTE_FORCE_MAX_ATTEMPTS must be at least 1")
	}
	if s.BruteForce.LockoutWindow <= 0 {
		return fmt.Errorf("BRUTE_FORCE_LOCKOUT_MINUTES must be positive")
	}
	if s.CSRF.TokenLength < 16 {
		return fmt.Errorf("CSRF_TOKEN_BYTES must be at least 16")
	}
	if s.Encode.Concurrency < 1 {
		return fmt.Errorf("ENCODE_CONCURRENCY must be at least 1")
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return getEnvAsList("ALLOWED_ORIGINS", []string{})
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
