package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	ShutdownTimeout time.Duration
	LogMode         string
	JWTSecret       string

	DB DBConfig

	// LLM provider: "anthropic", "openai", "cli" or "mock"
	LLMProvider     string
	AnthropicModel  string
	AnthropicAPIKey string
	OpenAIModel     string
	OpenAIAPIKey    string
	ClaudeCLIPath   string

	LayoutModelPath string // optional YAML calibration for page layout
	PDFFontPath     string // optional UTF-8 TTF used for Hangul in PDF export

	SignupBonusPoints int
	Costs             map[string]int // per quiz kind, overrides the built-in costs
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DefaultJWTSecret is only meant for local development.
const DefaultJWTSecret = "passage-quiz-dev-signing-key"

var costKinds = []string{"fill_blank", "multiple_choice", "vocabulary", "translation", "ocr"}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		LogMode:         getEnv("LOG_MODE", "dev"),
		JWTSecret:       getEnv("JWT_SECRET", DefaultJWTSecret),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "quiz_user"),
			Password: getEnv("DB_PASSWORD", "quiz_password"),
			Name:     getEnv("DB_NAME", "passage_quiz"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		LLMProvider:       strings.ToLower(getEnv("LLM_PROVIDER", "anthropic")),
		AnthropicModel:    getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		ClaudeCLIPath:     getEnv("CLAUDE_CLI_PATH", "claude"),
		LayoutModelPath:   os.Getenv("LAYOUT_MODEL_PATH"),
		PDFFontPath:       os.Getenv("PDF_FONT_PATH"),
		SignupBonusPoints: getInt("SIGNUP_BONUS_POINTS", 10),
		Costs:             make(map[string]int),
	}

	for _, kind := range costKinds {
		key := "COST_" + strings.ToUpper(kind)
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				log.Fatalf("config: %s=%q is not a non-negative integer", key, v)
			}
			cfg.Costs[kind] = n
		}
	}

	return cfg
}

// UsesDefaultJWTSecret reports whether JWT_SECRET was left unset.
func (c *Config) UsesDefaultJWTSecret() bool {
	return c.JWTSecret == DefaultJWTSecret
}

// DSN renders the lib/pq connection string.
func (c DBConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" sslmode=" + c.SSLMode
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("config: %s=%q is not a valid integer: %v", key, v, err)
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("config: %s=%q is not a valid duration: %v", key, v, err)
	}
	return d
}
