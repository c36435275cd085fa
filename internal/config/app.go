package config

import (
	"os"
	"strconv"
	"time"
)

type AppConfig struct {
	Generator GeneratorConfig
	Store     StoreConfig
	Server    ServerConfig
	Session   SessionConfig
	Activity  ActivityConfig
	Telegram  TelegramConfig
}

type StoreConfig struct {
	Driver              string
	ResultsDir          string
	RedisURL            string
	RedisTTL            time.Duration
	SupabaseURL         string
	SupabaseKey         string
	SupabaseTable       string
	SupabaseSetupsTable string
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// SessionTTL is how long a finished session stays readable before eviction.
	SessionTTL time.Duration
}

// SessionConfig holds the turn timings.
type SessionConfig struct {
	ListenDelay            time.Duration
	AdvanceDelay           time.Duration
	UnsupportedSpeechDelay time.Duration
	PersistTimeout         time.Duration
}

type ActivityConfig struct {
	URL      string
	Interval time.Duration
}

type TelegramConfig struct {
	Token string
	Debug bool
}

func LoadAppConfig() *AppConfig {
	return &AppConfig{
		Generator: GeneratorConfig{
			URL:         getEnv("QUESTION_API_URL", DefaultGeneratorURL),
			APIKey:      getEnv("QUESTION_API_KEY", ""),
			Model:       getEnv("QUESTION_MODEL", "llama3-8b-8192"),
			MaxTokens:   getEnvAsInt("QUESTION_MAX_TOKENS", 1000),
			Temperature: getEnvAsFloat("QUESTION_TEMPERATURE", 0.7),
			Timeout:     getEnvAsDuration("QUESTION_TIMEOUT", 20*time.Second),
		},
		Store: StoreConfig{
			Driver:              getEnv("STORE_DRIVER", "file"),
			ResultsDir:          getEnv("RESULTS_DIR", "results"),
			RedisURL:            getEnv("REDIS_URL", ""),
			RedisTTL:            getEnvAsDuration("REDIS_TTL", 0),
			SupabaseURL:         getEnv("SUPABASE_URL", ""),
			SupabaseKey:         getEnv("SUPABASE_KEY", ""),
			SupabaseTable:       getEnv("SUPABASE_TABLE", "interviews"),
			SupabaseSetupsTable: getEnv("SUPABASE_SETUPS_TABLE", "setups"),
		},
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			SessionTTL:      getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		},
		Session: SessionConfig{
			ListenDelay:            getEnvAsDuration("LISTEN_DELAY", 500*time.Millisecond),
			AdvanceDelay:           getEnvAsDuration("ADVANCE_DELAY", 1500*time.Millisecond),
			UnsupportedSpeechDelay: getEnvAsDuration("SPEECH_UNSUPPORTED_DELAY", 500*time.Millisecond),
			PersistTimeout:         getEnvAsDuration("PERSIST_TIMEOUT", 10*time.Second),
		},
		Activity: ActivityConfig{
			URL:      getEnv("TAB_ACTIVITY_URL", ""),
			Interval: getEnvAsDuration("TAB_ACTIVITY_INTERVAL", 10*time.Second),
		},
		Telegram: TelegramConfig{
			Token: getEnv("TELEGRAM_BOT_TOKEN", ""),
			Debug: getEnvAsBool("TELEGRAM_DEBUG", false),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
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
