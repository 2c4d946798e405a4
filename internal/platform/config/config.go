package config

import (
	"os"
	"strings"

	platformstrings "libris/pkg/platform/strings"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	// PostgresURL selects the Postgres-backed stores when set; empty runs
	// fully in memory.
	PostgresURL string

	// RedisURL selects the Redis backend for the activity offline queue.
	RedisURL string

	// QueueDir is the file-backed queue location used when Redis is not
	// configured.
	QueueDir string

	// DocstoreURL points appends at a hosted document store instead of the
	// local backends. DocstoreToken authenticates them.
	DocstoreURL   string
	DocstoreToken string

	// IPLookupURL is the third-party public-IP endpoint for client-info
	// enrichment; empty disables the lookup.
	IPLookupURL string

	// KafkaBrokers enables the system-event mirror when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	// ActivityDisabled turns the activity subsystem into a no-op.
	ActivityDisabled bool

	// UserAgent is the identity this process reports when a request
	// carries none.
	UserAgent string
}

// FromEnv builds a Server config from environment variables so main stays
// lean.
func FromEnv() Server {
	cfg := Server{
		Addr:             envOr("LIBRIS_ADDR", ":8080"),
		JWTSigningKey:    envOr("LIBRIS_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresURL:      os.Getenv("LIBRIS_POSTGRES_URL"),
		RedisURL:         os.Getenv("LIBRIS_REDIS_URL"),
		QueueDir:         envOr("LIBRIS_QUEUE_DIR", "./data"),
		DocstoreURL:      os.Getenv("LIBRIS_DOCSTORE_URL"),
		DocstoreToken:    os.Getenv("LIBRIS_DOCSTORE_TOKEN"),
		IPLookupURL:      envOr("LIBRIS_IP_LOOKUP_URL", "https://api.ipify.org?format=json"),
		KafkaTopic:       os.Getenv("LIBRIS_KAFKA_TOPIC"),
		ActivityDisabled: os.Getenv("LIBRIS_ACTIVITY_DISABLED") == "true",
		UserAgent:        envOr("LIBRIS_USER_AGENT", "libris/1.0"),
	}
	if brokers := os.Getenv("LIBRIS_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = platformstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
