package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	BaseURL     string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Swish   SwishConfig
	Email   EmailConfig
	Storage StorageConfig
	Redis   RedisConfig

	// JobTriggerToken protects the job-processing endpoint outside development.
	JobTriggerToken string
}

// SwishConfig carries the merchant identity and the TLS material locations.
// CertFile and KeyFile are always required. RootCAFile is only consulted
// outside production, where the Swish test environment signs with its own CA.
type SwishConfig struct {
	BaseURL     string
	PayeeAlias  string
	CallbackURL string
	CertFile    string
	KeyFile     string
	RootCAFile  string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	BCC          string
}

type StorageConfig struct {
	// Dir is the local object-store root for generated PDFs. Empty disables
	// persistence; invoice PDFs are then attached from memory only.
	Dir           string
	PublicBaseURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := normalizeEnvironment(getenv("ENVIRONMENT", EnvDevelopment))

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "studioclay"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		BaseURL:     strings.TrimRight(getenv("BASE_URL", "http://localhost:8080"), "/"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "studioclay"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		Swish: SwishConfig{
			BaseURL:     getenv("SWISH_BASE_URL", "https://mss.cpc.getswish.net/swish-cpcapi"),
			PayeeAlias:  strings.TrimSpace(getenv("SWISH_PAYEE_ALIAS", "")),
			CallbackURL: strings.TrimSpace(getenv("SWISH_CALLBACK_URL", "")),
			CertFile:    strings.TrimSpace(getenv("SWISH_CERT_FILE", "")),
			KeyFile:     strings.TrimSpace(getenv("SWISH_KEY_FILE", "")),
			RootCAFile:  strings.TrimSpace(getenv("SWISH_ROOT_CA_FILE", "")),
		},
		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", "localhost"),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "noreply@studioclay.se"),
			BCC:          strings.TrimSpace(getenv("SMTP_BCC", "")),
		},
		Storage: StorageConfig{
			Dir:           strings.TrimSpace(getenv("STORAGE_DIR", "")),
			PublicBaseURL: strings.TrimRight(getenv("STORAGE_PUBLIC_BASE_URL", ""), "/"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},

		JobTriggerToken: strings.TrimSpace(getenv("JOB_TRIGGER_TOKEN", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func normalizeEnvironment(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case EnvProduction, "prod":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
