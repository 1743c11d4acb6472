// Package config centralises the environment knobs the core recognises.
// Individual adapter packages (e.g. safety thresholds) still read their own
// narrow env vars directly, matching how the upstream adapter code reads
// GEMINI_SAFETY_THRESHOLD itself rather than threading it through Config.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                  string
	AccountsFile          string
	MaxAccounts           int
	MaxAttempts           int
	MaxWaitBeforeErrorMs  int64
	GeminiMaxOutputTokens int
	SignatureCacheTTLMs   int64
	MinSignatureLength    int
	GeminiSkipSignature   string
	LogLevel              string
	AttemptsDBPath        string
}

func Load() *Config {
	return &Config{
		Port:                  getEnv("DEFAULT_PORT", "8787"),
		AccountsFile:          getEnv("ACCOUNTS_FILE", "accounts.json"),
		MaxAccounts:           getEnvInt("MAX_ACCOUNTS", 50),
		MaxAttempts:           getEnvInt("MAX_ATTEMPTS", 6),
		MaxWaitBeforeErrorMs:  getEnvInt64("MAX_WAIT_BEFORE_ERROR_MS", 120000),
		GeminiMaxOutputTokens: getEnvInt("GEMINI_MAX_OUTPUT_TOKENS", 65536),
		SignatureCacheTTLMs:   getEnvInt64("GEMINI_SIGNATURE_CACHE_TTL_MS", int64(15*time.Minute/time.Millisecond)),
		MinSignatureLength:    getEnvInt("MIN_SIGNATURE_LENGTH", 50),
		GeminiSkipSignature:   getEnv("GEMINI_SKIP_SIGNATURE", "skip"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		AttemptsDBPath:        getEnv("ATTEMPTS_DB_PATH", "relay.db"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
