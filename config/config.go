// Package config loads the runner configuration from the environment. A
// .env file, when present, fills the variables that are not already set.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/Skyrin/go-migrate/e"
	"github.com/Skyrin/go-migrate/sql"
	"github.com/joho/godotenv"
)

const (
	ECode090101 = e.Code0901 + "01"
	ECode090102 = e.Code0901 + "02"
	ECode090103 = e.Code0901 + "03"

	// DefaultDotenv loaded when no explicit file is given, if it exists
	DefaultDotenv = ".env"

	EnvAbortAfter    = "MIGRATE_ABORT_AFTER"
	EnvOutput        = "MIGRATE_OUTPUT"
	EnvManifest      = "MIGRATE_MANIFEST"
	EnvListen        = "MIGRATE_LISTEN"
	EnvKafkaBrokers  = "MIGRATE_KAFKA_BROKERS"
	EnvKafkaTopic    = "MIGRATE_KAFKA_TOPIC"
	EnvKafkaRegion   = "MIGRATE_KAFKA_IAM_REGION"
	EnvKafkaEC2Role  = "MIGRATE_KAFKA_EC2_ROLE"
	EnvKafkaPlainTxt = "MIGRATE_KAFKA_NO_TLS"

	OutputConsole = "console"
	OutputHTML    = "html"
	OutputLog     = "log"

	DefaultManifest   = "migrations.yaml"
	DefaultListen     = ":8080"
	DefaultKafkaTopic = "migrate-events"
)

// Kafka settings of the event sink, disabled without brokers
type Kafka struct {
	Brokers   []string
	Topic     string
	IAMRegion string // Enables MSK IAM authentication
	EC2Role   bool
	NoTLS     bool
}

// Enabled whether events should be published
func (k *Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// Config runner configuration
type Config struct {
	DB         *sql.ConnParam
	AbortAfter *int // nil keeps the plan's own policy
	Output     string
	Manifest   string
	Listen     string
	Kafka      Kafka
}

// Load reads dotenv (DefaultDotenv when empty, skipped if it does not
// exist) and then the environment
func Load(dotenv string) (c *Config, err error) {
	path := dotenv
	if path == "" {
		path = DefaultDotenv
	}
	if err := godotenv.Load(path); err != nil {
		if dotenv != "" || !errors.Is(err, fs.ErrNotExist) {
			return nil, e.W(err, ECode090101, "file: "+path)
		}
	}

	c = &Config{
		DB:       sql.GetConnParamFromENV(),
		Output:   getEnv(EnvOutput, OutputConsole),
		Manifest: getEnv(EnvManifest, DefaultManifest),
		Listen:   getEnv(EnvListen, DefaultListen),
		Kafka: Kafka{
			Topic:     getEnv(EnvKafkaTopic, DefaultKafkaTopic),
			IAMRegion: os.Getenv(EnvKafkaRegion),
			EC2Role:   os.Getenv(EnvKafkaEC2Role) == "true",
			NoTLS:     os.Getenv(EnvKafkaPlainTxt) == "true",
		},
	}

	if v := os.Getenv(EnvAbortAfter); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, e.N(ECode090102, EnvAbortAfter+" must be a non negative integer: "+v)
		}
		c.AbortAfter = &n
	}

	switch c.Output {
	case OutputConsole, OutputHTML, OutputLog:
	default:
		return nil, e.N(ECode090103, "unknown output "+c.Output)
	}

	for _, b := range strings.Split(os.Getenv(EnvKafkaBrokers), ",") {
		if b = strings.TrimSpace(b); b != "" {
			c.Kafka.Brokers = append(c.Kafka.Brokers, b)
		}
	}

	return c, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
