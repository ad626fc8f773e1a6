package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr            string
	DatabaseURL     string
	RedisURL        string
	KafkaBrokers    []string
	KafkaTopic      string
	RejectCycles    bool
	StatsCacheTTL   time.Duration
	ShutdownTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
//
// With no variables set the server runs fully in-memory: no postgres, no
// redis snapshot cache, no kafka change stream.
func FromEnv() Server {
	addr := os.Getenv("REQTRACE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	var brokers []string
	if raw := os.Getenv("REQTRACE_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}
	topic := os.Getenv("REQTRACE_KAFKA_TOPIC")
	if topic == "" {
		topic = "reqtrace.changes"
	}

	statsTTL := 5 * time.Minute
	if raw := os.Getenv("REQTRACE_STATS_CACHE_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			statsTTL = d
		}
	}

	return Server{
		Addr:            addr,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KafkaBrokers:    brokers,
		KafkaTopic:      topic,
		RejectCycles:    os.Getenv("REQTRACE_REJECT_CYCLES") == "true",
		StatsCacheTTL:   statsTTL,
		ShutdownTimeout: 10 * time.Second,
	}
}
