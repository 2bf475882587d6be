package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Dashboard behaviour.
	StationsFile       string
	ReadOnly           bool
	CORSAllowedOrigins []string

	// Snapshot store backend. An empty RedisAddr keeps snapshots in memory.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Remote snapshot store. When set, publish and read go to another
	// instance over HTTP instead of the local store.
	SnapshotURL     string
	SnapshotTimeout time.Duration

	// Kafka notification of published snapshots, enabled by KAFKA_BROKERS.
	KafkaBrokers       []string
	KafkaSnapshotTopic string
	KafkaEnabled       bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	snapshotTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("SNAPSHOT_TIMEOUT", "5s"))
	if err != nil || snapshotTimeout <= 0 {
		return nil, errors.New("invalid SNAPSHOT_TIMEOUT")
	}

	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	readOnly, err := strconv.ParseBool(sharedcfg.EnvOrDefault("READ_ONLY", "false"))
	if err != nil {
		return nil, errors.New("invalid READ_ONLY")
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		StationsFile:       os.Getenv("STATIONS_FILE"),
		ReadOnly:           readOnly,
		CORSAllowedOrigins: parseList(sharedcfg.EnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		SnapshotURL:     strings.TrimRight(os.Getenv("SNAPSHOT_URL"), "/"),
		SnapshotTimeout: snapshotTimeout,

		KafkaBrokers:       brokers,
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "outage-snapshots"),
		KafkaEnabled:       len(brokers) > 0,
	}

	if cfg.SnapshotURL != "" {
		u, err := url.Parse(cfg.SnapshotURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, errors.New("SNAPSHOT_URL must be an absolute http(s) URL")
		}
	}
	if cfg.KafkaEnabled && cfg.KafkaSnapshotTopic == "" {
		return nil, errors.New("KAFKA_SNAPSHOT_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
