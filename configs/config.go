// config.go - Configuration loaded from environment variables

package configs

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bosocmputer/bank_guarantee_ai/internal/ai"
	"github.com/bosocmputer/bank_guarantee_ai/internal/processor"
	"github.com/joho/godotenv"
)

// DefaultModelFallback is tried in order when no model is pinned.
var DefaultModelFallback = []string{
	"gemini-2.5-flash-lite",
	"gemini-2.0-flash-lite",
	"gemini-2.5-flash",
	"gemini-3-flash-preview",
}

var (
	// Model provider configuration
	MODEL_PROVIDER  string
	GEMINI_API_KEY  string
	MISTRAL_API_KEY string
	MODEL_NAME      string   // pins a single model when set
	MODEL_FALLBACK  []string // ordered candidate list

	// Pricing per 1M tokens in USD, used for cost logging only
	INPUT_PRICE_PER_MILLION  float64
	OUTPUT_PRICE_PER_MILLION float64

	// Extraction pipeline
	MAX_PAGES             int
	RENDER_DPI            int
	RASTERIZER            string
	MAX_RETRIES           int
	BACKOFF_UNIT          time.Duration
	MODEL_ATTEMPT_TIMEOUT time.Duration
	RATE_LIMIT_RPM        int

	// Image preprocessing settings
	ENABLE_IMAGE_PREPROCESSING bool
	MAX_IMAGE_DIMENSION        int

	// Templates and PDF conversion
	TEMPLATE_DIR        string
	SOFFICE_PATH        string
	PDF_CONVERT_TIMEOUT time.Duration

	// Server Configuration
	PORT            string
	ALLOWED_ORIGINS string
	LOG_LEVEL       string
	DEVELOPMENT     bool
	CACHE_TTL       time.Duration

	// MongoDB Configuration (empty URI keeps records in memory)
	MONGO_URI     string
	MONGO_DB_NAME string
)

// LoadConfig loads configuration from the environment, reading a .env file
// first when one exists.
func LoadConfig() error {
	// Missing .env is normal outside local development
	_ = godotenv.Load()

	MODEL_PROVIDER = strings.ToLower(getEnv("MODEL_PROVIDER", "gemini"))
	GEMINI_API_KEY = getEnv("GEMINI_API_KEY", "")
	MISTRAL_API_KEY = getEnv("MISTRAL_API_KEY", "")

	switch MODEL_PROVIDER {
	case "gemini":
		if GEMINI_API_KEY == "" {
			return errors.New("GEMINI_API_KEY environment variable is required")
		}
	case "mistral":
		if MISTRAL_API_KEY == "" {
			return errors.New("MISTRAL_API_KEY environment variable is required")
		}
	default:
		return errors.New("unsupported MODEL_PROVIDER: " + MODEL_PROVIDER + " (supported: gemini, mistral)")
	}

	MODEL_NAME = getEnv("MODEL_NAME", "")
	MODEL_FALLBACK = getEnvList("MODEL_FALLBACK", DefaultModelFallback)

	INPUT_PRICE_PER_MILLION = getEnvFloat("INPUT_PRICE_PER_MILLION", 0.10)
	OUTPUT_PRICE_PER_MILLION = getEnvFloat("OUTPUT_PRICE_PER_MILLION", 0.40)

	MAX_PAGES = getEnvInt("MAX_PAGES", 5)
	RENDER_DPI = getEnvInt("RENDER_DPI", 200)
	RASTERIZER = strings.ToLower(getEnv("RASTERIZER", "fitz"))
	MAX_RETRIES = getEnvInt("MAX_RETRIES", 3)
	BACKOFF_UNIT = time.Duration(getEnvInt("BACKOFF_SECONDS", 3)) * time.Second
	MODEL_ATTEMPT_TIMEOUT = time.Duration(getEnvInt("MODEL_ATTEMPT_TIMEOUT", 60)) * time.Second
	RATE_LIMIT_RPM = getEnvInt("RATE_LIMIT_RPM", 15)

	ENABLE_IMAGE_PREPROCESSING = getEnvBool("ENABLE_IMAGE_PREPROCESSING", false)
	MAX_IMAGE_DIMENSION = getEnvInt("MAX_IMAGE_DIMENSION", 2500)

	TEMPLATE_DIR = getEnv("TEMPLATE_DIR", "Data")
	SOFFICE_PATH = getEnv("SOFFICE_PATH", "")
	PDF_CONVERT_TIMEOUT = time.Duration(getEnvInt("PDF_CONVERT_TIMEOUT", 60)) * time.Second

	PORT = getEnv("PORT", "8080")
	ALLOWED_ORIGINS = getEnv("ALLOWED_ORIGINS", "*")
	LOG_LEVEL = getEnv("LOG_LEVEL", "info")
	DEVELOPMENT = getEnvBool("DEVELOPMENT", false)
	CACHE_TTL = time.Duration(getEnvInt("CACHE_TTL_MINUTES", 30)) * time.Minute

	MONGO_URI = getEnv("MONGO_URI", "")
	MONGO_DB_NAME = getEnv("MONGO_DB_NAME", "bank_guarantee")

	return nil
}

// Models returns the candidate list for the invoker: the pinned model alone,
// or the fallback list.
func Models() []string {
	if MODEL_NAME != "" {
		return []string{MODEL_NAME}
	}
	return MODEL_FALLBACK
}

// InvokerSettings builds the retry settings for the model invoker.
func InvokerSettings() ai.InvokerConfig {
	return ai.InvokerConfig{
		Models:         Models(),
		MaxAttempts:    MAX_RETRIES,
		BackoffUnit:    BACKOFF_UNIT,
		AttemptTimeout: MODEL_ATTEMPT_TIMEOUT,
	}
}

// RasterSettings builds the page rendering settings.
func RasterSettings() processor.RasterConfig {
	return processor.RasterConfig{DPI: RENDER_DPI}
}

// PrepareSettings builds the per-page image preparation options.
func PrepareSettings() processor.PrepareOptions {
	return processor.PrepareOptions{
		MaxDimension: MAX_IMAGE_DIMENSION,
		Enhance:      ENABLE_IMAGE_PREPROCESSING,
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultValue...)
	}
	return out
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
