// Package config loads the handful of environment variables the cmd/
// binaries need, in the same style as the teacher's direct os.Getenv
// calls, just centralized instead of copy-pasted per binary.
package config

import (
	"os"
	"strconv"
)

// Worker holds the settings cmd/worker reads at startup.
type Worker struct {
	RedisAddr            string
	MetricsAddr          string
	Name                 string
	Prefetch             int
	HeartbeatInterval    int
	SchedulePollInterval int
	ReaperInterval       int
	VisibilityTimeout    int
}

// LoadWorker reads worker configuration from the environment, falling
// back to the values the teacher's binaries hardcoded.
func LoadWorker() Worker {
	return Worker{
		RedisAddr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		MetricsAddr:          getEnv("METRICS_ADDR", ":8080"),
		Name:                 getEnv("WORKER_NAME", hostnameOrDefault("worker-1")),
		Prefetch:             getEnvInt("WORKER_PREFETCH", 1),
		HeartbeatInterval:    getEnvInt("WORKER_HEARTBEAT_INTERVAL", 5),
		SchedulePollInterval: getEnvInt("WORKER_SCHEDULE_POLL_INTERVAL", 1),
		ReaperInterval:       getEnvInt("WORKER_REAPER_INTERVAL", 10),
		VisibilityTimeout:    getEnvInt("WORKER_VISIBILITY_TIMEOUT", 30),
	}
}

// Producer holds the settings cmd/producer reads at startup.
type Producer struct {
	RedisAddr  string
	ListenAddr string
	APIKey     string
}

// LoadProducer reads producer configuration from the environment.
func LoadProducer() Producer {
	return Producer{
		RedisAddr:  getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		ListenAddr: getEnv("LISTEN_ADDR", ":8081"),
		APIKey:     os.Getenv("API_KEY"),
	}
}

// DevRedis holds the settings cmd/devredis reads at startup.
type DevRedis struct {
	Addr        string
	RequirePass string
}

// LoadDevRedis reads the dev-server's bind address and optional auth
// password from the environment, so it can be pointed at something
// other than the hardcoded default when REDIS_ADDR is already taken
// or multiple suites need isolated instances.
func LoadDevRedis() DevRedis {
	return DevRedis{
		Addr:        getEnv("DEVREDIS_ADDR", "127.0.0.1:6379"),
		RequirePass: os.Getenv("DEVREDIS_REQUIREPASS"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func hostnameOrDefault(def string) string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return def
	}
	return h
}
