package config

import (
	"os"
	"strconv"
)

// Backend selection values for WORKQ_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	Backend        string
	SQLitePath     string
	RedisAddr      string
	RedisDB        int
	Port           string
	Concurrency    int
	JobTimeoutSecs int
	LogFile        string

	// HeartbeatCron, when set, schedules a recurring heartbeat job on the
	// default queue (standard five-field cron expression).
	HeartbeatCron string
}

func Load() Config {
	return Config{
		Backend:        getEnv("WORKQ_BACKEND", BackendMemory),
		SQLitePath:     getEnv("WORKQ_SQLITE_PATH", "workq.db"),
		RedisAddr:      getEnv("WORKQ_REDIS_ADDR", "localhost:6379"),
		RedisDB:        getEnvInt("WORKQ_REDIS_DB", 0),
		Port:           getEnv("PORT", "8080"),
		Concurrency:    getEnvInt("WORKQ_CONCURRENCY", 0),
		JobTimeoutSecs: getEnvInt("WORKQ_JOB_TIMEOUT_SECS", 0),
		LogFile:        getEnv("WORKQ_LOG_FILE", ""),
		HeartbeatCron:  getEnv("WORKQ_HEARTBEAT_CRON", ""),
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
