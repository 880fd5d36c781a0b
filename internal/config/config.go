package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the speech gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Mistral chat API configuration. The API key is optional: without it
	// the chat/model endpoints report unavailable and pitch estimation
	// falls back to the heuristic, but synthesis keeps working.
	MistralAPIKey  string `envconfig:"MISTRAL_API_KEY" default:""`
	MistralBaseURL string `envconfig:"MISTRAL_BASE_URL" default:"https://api.mistral.ai"`
	MistralModel   string `envconfig:"MISTRAL_MODEL" default:"mistral-small-latest"`
	MistralTimeout int    `envconfig:"MISTRAL_TIMEOUT" default:"30"` // seconds

	// Synthesis engine configuration. EngineCommand may carry extra
	// arguments ("kokoro-tts --debug"); it is parsed shell-style.
	EngineCommand    string `envconfig:"ENGINE_COMMAND" default:"kokoro-tts"`
	EngineTimeout    int    `envconfig:"ENGINE_TIMEOUT" default:"60"` // seconds
	EngineVoice      string `envconfig:"ENGINE_VOICE" default:"af_sarah"`
	EngineModelPath  string `envconfig:"ENGINE_MODEL_PATH" default:"kokoro-v1.0.onnx"`
	EngineVoicesPath string `envconfig:"ENGINE_VOICES_PATH" default:"voices-v1.0.bin"`

	// Audio post-processing configuration
	AudioDir               string `envconfig:"AUDIO_DIR" default:"audio_files"`
	AudioProcessingEnabled bool   `envconfig:"AUDIO_PROCESSING_ENABLED" default:"true"`

	// Resilience configuration for the remote model API
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.EngineCommand == "" {
		return nil, fmt.Errorf("ENGINE_COMMAND must not be empty")
	}
	if cfg.EngineTimeout <= 0 {
		return nil, fmt.Errorf("ENGINE_TIMEOUT must be positive, got %d", cfg.EngineTimeout)
	}
	if cfg.AudioDir == "" {
		return nil, fmt.Errorf("AUDIO_DIR must not be empty")
	}

	return &cfg, nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
