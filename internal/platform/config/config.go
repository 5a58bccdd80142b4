package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	AdminToken    string
	JWTSigningKey string

	// PostgresURL selects the durable stores; empty runs on in-memory
	// stores (development only).
	PostgresURL string

	// RedisURL enables the verdict cache when set.
	RedisURL string

	// KafkaBrokers enables the audit Kafka sink when set.
	KafkaBrokers []string
	KafkaTopic   string

	// AnchorLedgerPath is the bbolt file for the standalone ledger.
	AnchorLedgerPath string
}

// VerdictCacheTTL bounds how stale a cached verification verdict may
// get (notably across an issuer revocation).
var VerdictCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables so main
// stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:             getenv("CERTLEDGER_ADDR", ":8080"),
		AdminToken:       os.Getenv("CERTLEDGER_ADMIN_TOKEN"),
		JWTSigningKey:    getenv("CERTLEDGER_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresURL:      os.Getenv("CERTLEDGER_POSTGRES_URL"),
		RedisURL:         os.Getenv("CERTLEDGER_REDIS_URL"),
		KafkaTopic:       getenv("CERTLEDGER_KAFKA_TOPIC", "certledger.audit"),
		AnchorLedgerPath: getenv("CERTLEDGER_ANCHOR_PATH", "anchor.db"),
	}
	if brokers := os.Getenv("CERTLEDGER_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
