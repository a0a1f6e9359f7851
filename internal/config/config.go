package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort  string
	LogLevel string

	ArchiveRoot string
	StagingRoot string

	OrganizerEnabled      bool
	OrganizerInterval     time.Duration
	OrganizerFaultBackoff time.Duration
	OrganizerStopTimeout  time.Duration
	// OrganizerRejectConflicts keeps an existing bundle folder instead of
	// replacing it when a relocation or write lands on the same name.
	OrganizerRejectConflicts bool

	OllamaURL      string
	OllamaGenModel string

	OCRSpaceURL      string
	OCRSpaceAPIKey   string
	OCRSpaceLanguage string

	NATSURL     string
	NATSSubject string

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	APIBackpressure   time.Duration
	UploadMaxBytes    int64
	IngestParallelism int
	EnhanceMaxWidth   int

	ResilienceRetryMaxAttempts    int
	ResilienceRetryInitialBackoff time.Duration
	ResilienceRetryMaxBackoff     time.Duration
	ResilienceBreakerEnabled      bool
	ResilienceBreakerOpenTimeout  time.Duration
}

// Load reads the environment. A .env file in the working directory, when
// present, fills variables that are not already set.
func Load() Config {
	return LoadFrom(".env")
}

func LoadFrom(envFile string) Config {
	// A missing or malformed .env leaves the process environment in charge.
	_ = godotenv.Load(envFile)

	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		ArchiveRoot: mustEnv("ARCHIVE_ROOT", "./Facturas"),
		StagingRoot: mustEnv("STAGING_ROOT", "./temp"),

		OrganizerEnabled:         mustEnvBool("ORGANIZER_ENABLED", true),
		OrganizerInterval:        mustEnvDuration("ORGANIZER_INTERVAL_MINUTES", time.Minute, 60*time.Minute),
		OrganizerFaultBackoff:    mustEnvDuration("ORGANIZER_FAULT_BACKOFF_SECONDS", time.Second, 60*time.Second),
		OrganizerStopTimeout:     mustEnvDuration("ORGANIZER_STOP_TIMEOUT_SECONDS", time.Second, 5*time.Second),
		OrganizerRejectConflicts: mustEnvBool("ORGANIZER_REJECT_CONFLICTS", false),

		OllamaURL:      mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel: mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),

		OCRSpaceURL:      mustEnv("OCR_SPACE_URL", "https://api.ocr.space/parse/image"),
		OCRSpaceAPIKey:   mustEnv("OCR_SPACE_API_KEY", ""),
		OCRSpaceLanguage: mustEnv("OCR_SPACE_LANGUAGE", "spa"),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "facture"),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 32),
		APIBackpressure:   mustEnvDuration("API_BACKPRESSURE_WAIT_MS", time.Millisecond, 250*time.Millisecond),
		UploadMaxBytes:    int64(mustEnvInt("UPLOAD_MAX_BYTES", 20<<20)),
		IngestParallelism: mustEnvInt("INGEST_PARALLELISM", 4),
		EnhanceMaxWidth:   mustEnvInt("ENHANCE_MAX_WIDTH", 2400),

		ResilienceRetryMaxAttempts:    mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 3),
		ResilienceRetryInitialBackoff: mustEnvDuration("RESILIENCE_RETRY_INITIAL_BACKOFF_MS", time.Millisecond, 250*time.Millisecond),
		ResilienceRetryMaxBackoff:     mustEnvDuration("RESILIENCE_RETRY_MAX_BACKOFF_MS", time.Millisecond, 2*time.Second),
		ResilienceBreakerEnabled:      mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),
		ResilienceBreakerOpenTimeout:  mustEnvDuration("RESILIENCE_BREAKER_OPEN_TIMEOUT_SECONDS", time.Second, 30*time.Second),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration reads a positive integer count of unit.
func mustEnvDuration(key string, unit, fallback time.Duration) time.Duration {
	n := mustEnvInt(key, 0)
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * unit
}
