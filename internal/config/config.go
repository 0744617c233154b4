package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string
	DBPath     string
	PhotoPath  string
	LogLevel   string
	LogFile    string
	LogFormat  string

	// Hosted chat-completion backend: "openai", "claude" or "ollama".
	ModelBackend  string
	Model         string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	ClaudeAPIKey  string
	ClaudeModel   string
	OllamaHost    string
	OllamaModel   string
	Stream        bool
	MaxTurns      int
	CallTimeout   time.Duration

	// Shopping search backend: "serper" or "serpapi".
	SearchBackend string
	SerperAPIKey  string
	SerpAPIKey    string
	Country       string

	PromptsFile string

	// Message archive: "sqlite" keeps chat history locally, "rest" forwards it
	// to an external persistence service at ArchiveURL.
	ArchiveBackend string
	ArchiveURL     string

	RetentionDays     int
	RetentionSchedule string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		DBPath:     getEnv("DB_PATH", "/data/glowly.db"),
		PhotoPath:  getEnv("PHOTO_LOCAL_PATH", "/data/photos"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFile:    getEnv("LOG_FILE", ""),
		LogFormat:  getEnv("LOG_FORMAT", "json"),

		ModelBackend:  getEnv("MODEL_BACKEND", "openai"),
		Model:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ClaudeAPIKey:  getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:   getEnv("CLAUDE_MODEL", "claude-sonnet-4-5"),
		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3.2-vision"),
		Stream:        getBool("MODEL_STREAM", false),
		MaxTurns:      getInt("AGENT_MAX_TURNS", 6),
		CallTimeout:   getDuration("MODEL_CALL_TIMEOUT", 120*time.Second),

		SearchBackend: getEnv("SEARCH_BACKEND", "serper"),
		SerperAPIKey:  getEnv("SERPER_API_KEY", ""),
		SerpAPIKey:    getEnv("SERP_API_KEY", ""),
		Country:       getEnv("DEFAULT_COUNTRY", "us"),

		PromptsFile: getEnv("PROMPTS_FILE", ""),

		ArchiveBackend: getEnv("ARCHIVE_BACKEND", "sqlite"),
		ArchiveURL:     getEnv("ARCHIVE_URL", ""),

		RetentionDays:     getInt("RETENTION_DAYS", 0),
		RetentionSchedule: getEnv("RETENTION_SCHEDULE", "@daily"),
	}
}

// ModelID returns the model identifier for the selected backend.
func (c *Config) ModelID() string {
	switch c.ModelBackend {
	case "claude":
		return c.ClaudeModel
	case "ollama":
		return c.OllamaModel
	default:
		return c.Model
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getBool(key string, defaultVal bool) bool {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
