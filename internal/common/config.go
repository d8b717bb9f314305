package common

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Storage   StorageConfig
	Queue     QueueConfig
	OCR       OCRConfig
	Vision    VisionConfig
	LLM       LLMConfig
	Legal     LegalConfig
	Templates TemplatesConfig
	Intake    IntakeConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres | sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	Timeout          time.Duration // per-call deadline used by the pipeline
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr      string
	GRPCAddr      string
	WebhookSecret string
	RunTimeout    time.Duration // deadline for synchronous webhook runs
}

// StorageConfig holds blob store configuration
type StorageConfig struct {
	Driver       string // minio | s3 | memory
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Region       string
	Bucket       string
	UseSSL       bool
	SignedURLTTL time.Duration
	Timeout      time.Duration
}

// QueueConfig holds job delivery configuration
type QueueConfig struct {
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	Key            string
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// OCRConfig holds local OCR configuration
type OCRConfig struct {
	Tesseract    string
	TessdataDir  string
	Lang         string
	LocalTimeout time.Duration
	Parallelism  int
}

// VisionConfig holds the remote vision provider configuration
type VisionConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMConfig holds narrative provider configuration
type LLMConfig struct {
	FastBaseURL     string
	FastAPIKey      string
	FastModel       string
	FallbackBaseURL string
	FallbackAPIKey  string
	FallbackModel   string
	Temperature     float32
	MaxTokens       int
	Timeout         time.Duration
}

// LegalConfig holds the legal constants injected into normalization and documents
type LegalConfig struct {
	DefaultComarca       string
	DefenderName         string
	MinimumWage          float64
	StaleProcessingAfter time.Duration // 0 disables re-claiming stuck runs
}

// TemplatesConfig holds document template configuration
type TemplatesConfig struct {
	Source  string // fs | blob
	Dir     string
	Prefix  string // key prefix inside the storage bucket when Source is blob
	Watch   bool
	Timeout time.Duration
}

// IntakeConfig holds the optional drop-folder intake
type IntakeConfig struct {
	Dir      string // empty disables intake
	Watch    bool
	Debounce time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_URL", "")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_MAX_CONN_LIFETIME", "30m")
	v.SetDefault("DB_MAX_CONN_IDLE_TIME", "5m")
	v.SetDefault("DB_DIAL_TIMEOUT", "3s")
	v.SetDefault("DB_STATEMENT_TIMEOUT", "0s")
	v.SetDefault("DB_TIMEOUT", "10s")

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("WEBHOOK_SECRET", "")
	v.SetDefault("RUN_TIMEOUT", "5m")

	v.SetDefault("STORAGE_DRIVER", "minio")
	v.SetDefault("STORAGE_ENDPOINT", "localhost:9000")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_BUCKET", "documentos")
	v.SetDefault("STORAGE_USE_SSL", false)
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "15m")
	v.SetDefault("STORAGE_TIMEOUT", "30s")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("QUEUE_KEY", "petitions:jobs")
	v.SetDefault("QUEUE_WORKERS", 4)
	v.SetDefault("QUEUE_SIZE", 256)
	v.SetDefault("QUEUE_PROCESS_TIMEOUT", "5m")

	v.SetDefault("TESSERACT_BIN", "tesseract")
	v.SetDefault("TESSDATA_PREFIX", "")
	v.SetDefault("OCR_LANG", "por")
	v.SetDefault("OCR_LOCAL_TIMEOUT", "60s")
	v.SetDefault("OCR_PARALLELISM", 4)

	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("VISION_MODEL", "gemini-1.5-flash")
	v.SetDefault("VISION_TIMEOUT", "45s")

	v.SetDefault("LLM_FAST_BASE_URL", "https://api.groq.com/openai/v1")
	v.SetDefault("LLM_FAST_API_KEY", "")
	v.SetDefault("LLM_FAST_MODEL", "llama-3.3-70b-versatile")
	v.SetDefault("LLM_FALLBACK_MODEL", "gemini-1.5-flash")
	v.SetDefault("LLM_TEMPERATURE", 0.3)
	v.SetDefault("LLM_MAX_TOKENS", 2048)
	v.SetDefault("LLM_TIMEOUT", "45s")

	v.SetDefault("LEGAL_DEFAULT_COMARCA", "Teixeira de Freitas/BA")
	v.SetDefault("LEGAL_DEFENDER_NAME", "Defensor(a) Público(a)")
	v.SetDefault("LEGAL_MINIMUM_WAGE", 1518.00)
	v.SetDefault("LEGAL_STALE_PROCESSING_AFTER", "0s")

	v.SetDefault("TEMPLATES_SOURCE", "fs")
	v.SetDefault("TEMPLATES_DIR", "./templates")
	v.SetDefault("TEMPLATES_PREFIX", "templates")
	v.SetDefault("TEMPLATES_WATCH", true)
	v.SetDefault("TEMPLATES_TIMEOUT", "10s")

	v.SetDefault("INTAKE_DIR", "")
	v.SetDefault("INTAKE_WATCH", false)
	v.SetDefault("INTAKE_DEBOUNCE", "2s")
}

// LoadConfig loads configuration from defaults, an optional .env file and the environment.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, NewAppError("CONFIG_ERROR", "read .env", err)
		}
	}
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:              v.GetString("DB_URL"),
			MaxConns:         v.GetInt32("DB_MAX_CONNS"),
			MinConns:         v.GetInt32("DB_MIN_CONNS"),
			MaxConnLifetime:  v.GetDuration("DB_MAX_CONN_LIFETIME"),
			MaxConnIdleTime:  v.GetDuration("DB_MAX_CONN_IDLE_TIME"),
			DialTimeout:      v.GetDuration("DB_DIAL_TIMEOUT"),
			StatementTimeout: v.GetDuration("DB_STATEMENT_TIMEOUT"),
			Timeout:          v.GetDuration("DB_TIMEOUT"),
		},
		Server: ServerConfig{
			HTTPAddr:      v.GetString("HTTP_ADDR"),
			GRPCAddr:      v.GetString("GRPC_ADDR"),
			WebhookSecret: v.GetString("WEBHOOK_SECRET"),
			RunTimeout:    v.GetDuration("RUN_TIMEOUT"),
		},
		Storage: StorageConfig{
			Driver:       strings.ToLower(v.GetString("STORAGE_DRIVER")),
			Endpoint:     v.GetString("STORAGE_ENDPOINT"),
			AccessKey:    v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:    v.GetString("STORAGE_SECRET_KEY"),
			Region:       v.GetString("STORAGE_REGION"),
			Bucket:       v.GetString("STORAGE_BUCKET"),
			UseSSL:       v.GetBool("STORAGE_USE_SSL"),
			SignedURLTTL: v.GetDuration("STORAGE_SIGNED_URL_TTL"),
			Timeout:      v.GetDuration("STORAGE_TIMEOUT"),
		},
		Queue: QueueConfig{
			RedisAddr:      v.GetString("REDIS_ADDR"),
			RedisPassword:  v.GetString("REDIS_PASSWORD"),
			RedisDB:        v.GetInt("REDIS_DB"),
			Key:            v.GetString("QUEUE_KEY"),
			Workers:        v.GetInt("QUEUE_WORKERS"),
			Size:           v.GetInt("QUEUE_SIZE"),
			ProcessTimeout: v.GetDuration("QUEUE_PROCESS_TIMEOUT"),
		},
		OCR: OCRConfig{
			Tesseract:    v.GetString("TESSERACT_BIN"),
			TessdataDir:  v.GetString("TESSDATA_PREFIX"),
			Lang:         v.GetString("OCR_LANG"),
			LocalTimeout: v.GetDuration("OCR_LOCAL_TIMEOUT"),
			Parallelism:  v.GetInt("OCR_PARALLELISM"),
		},
		Vision: VisionConfig{
			APIKey:  v.GetString("GEMINI_API_KEY"),
			BaseURL: v.GetString("GEMINI_BASE_URL"),
			Model:   v.GetString("VISION_MODEL"),
			Timeout: v.GetDuration("VISION_TIMEOUT"),
		},
		LLM: LLMConfig{
			FastBaseURL:     v.GetString("LLM_FAST_BASE_URL"),
			FastAPIKey:      v.GetString("LLM_FAST_API_KEY"),
			FastModel:       v.GetString("LLM_FAST_MODEL"),
			FallbackBaseURL: v.GetString("GEMINI_BASE_URL"),
			FallbackAPIKey:  v.GetString("GEMINI_API_KEY"),
			FallbackModel:   v.GetString("LLM_FALLBACK_MODEL"),
			Temperature:     float32(v.GetFloat64("LLM_TEMPERATURE")),
			MaxTokens:       v.GetInt("LLM_MAX_TOKENS"),
			Timeout:         v.GetDuration("LLM_TIMEOUT"),
		},
		Legal: LegalConfig{
			DefaultComarca:       v.GetString("LEGAL_DEFAULT_COMARCA"),
			DefenderName:         v.GetString("LEGAL_DEFENDER_NAME"),
			MinimumWage:          v.GetFloat64("LEGAL_MINIMUM_WAGE"),
			StaleProcessingAfter: v.GetDuration("LEGAL_STALE_PROCESSING_AFTER"),
		},
		Templates: TemplatesConfig{
			Source:  strings.ToLower(v.GetString("TEMPLATES_SOURCE")),
			Dir:     v.GetString("TEMPLATES_DIR"),
			Prefix:  v.GetString("TEMPLATES_PREFIX"),
			Watch:   v.GetBool("TEMPLATES_WATCH"),
			Timeout: v.GetDuration("TEMPLATES_TIMEOUT"),
		},
		Intake: IntakeConfig{
			Dir:      v.GetString("INTAKE_DIR"),
			Watch:    v.GetBool("INTAKE_WATCH"),
			Debounce: v.GetDuration("INTAKE_DEBOUNCE"),
		},
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	switch c.Storage.Driver {
	case "minio", "s3":
		if c.Storage.Bucket == "" {
			return NewAppError("CONFIG_ERROR", "STORAGE_BUCKET is required", ErrInvalidInput)
		}
	case "memory":
	default:
		return NewAppError("CONFIG_ERROR", "STORAGE_DRIVER must be minio, s3 or memory", ErrInvalidInput)
	}
	switch c.Templates.Source {
	case "fs":
		if c.Templates.Dir == "" {
			return NewAppError("CONFIG_ERROR", "TEMPLATES_DIR is required", ErrInvalidInput)
		}
	case "blob":
	default:
		return NewAppError("CONFIG_ERROR", "TEMPLATES_SOURCE must be fs or blob", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Legal.MinimumWage <= 0 {
		return NewAppError("CONFIG_ERROR", "LEGAL_MINIMUM_WAGE must be positive", ErrInvalidInput)
	}
	if c.OCR.LocalTimeout <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_LOCAL_TIMEOUT must be positive", ErrInvalidInput)
	}
	return nil
}
