package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                    string
	AllowedOrigin           string
	DataDir                 string
	DatabaseURL             string
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	SummaryTTLSeconds       int
	AuthSecret              string
	AccessTokenTTLMinutes   int
	GeminiAPIKey            string
	GeminiModel             string
	AssistantTimeoutSeconds int
	AssistantRatePerMinute  int
	SheetSyncTimeoutSeconds int
	Timezone                string
}

// Load reads the process environment. Values from a .env file in the working
// directory are applied first without overriding variables already set.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[config] WARN: failed to read .env: %v", err)
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		Port:                    getEnv("PORT", "8080"),
		AllowedOrigin:           getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DataDir:                 getEnv("DATA_DIR", "./data"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 redisDB,
		SummaryTTLSeconds:       getPositiveInt("SUMMARY_TTL_SECONDS", 30),
		AuthSecret:              strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:   getPositiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		GeminiAPIKey:            strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:             getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		AssistantTimeoutSeconds: getPositiveInt("ASSISTANT_TIMEOUT_SECONDS", 20),
		AssistantRatePerMinute:  getPositiveInt("ASSISTANT_RATE_PER_MINUTE", 30),
		SheetSyncTimeoutSeconds: getPositiveInt("SHEET_SYNC_TIMEOUT_SECONDS", 10),
		Timezone:                getEnv("STORE_TIMEZONE", "UTC"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getPositiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
