package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"log"
)

// Store engines.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Delivery sinks.
const (
	SinkHTTP = "http"
	SinkNATS = "nats"
)

type Config struct {
	Store    string `env:"SCANQ_STORE" envDefault:"sqlite"`
	DataDir  string `env:"SCANQ_DATA_DIR" envDefault:"./data"`
	LogLevel string `env:"SCANQ_LOG_LEVEL" envDefault:"info"`

	Redis Redis
	Sink  Sink
	Flush Flush
}

type Redis struct {
	Addr      string `env:"Redis_Address" envDefault:"localhost:6379"`
	Password  string `env:"Redis_Password"`
	DB        int    `env:"Redis_DB"`
	KeyPrefix string `env:"Redis_KeyPrefix" envDefault:"scanq"`
}

type Sink struct {
	Kind        string        `env:"SCANQ_SINK" envDefault:"http"`
	URL         string        `env:"SCANQ_SINK_URL"`
	Token       string        `env:"SCANQ_SINK_TOKEN"`
	Timeout     time.Duration `env:"SCANQ_SINK_TIMEOUT" envDefault:"10s"`
	NATSURL     string        `env:"SCANQ_NATS_URL" envDefault:"nats://localhost:4222"`
	NATSSubject string        `env:"SCANQ_NATS_SUBJECT" envDefault:"warehouse.scans"`
}

type Flush struct {
	MaxAttempts     int           `env:"SCANQ_MAX_ATTEMPTS" envDefault:"5"`
	BaseDelay       time.Duration `env:"SCANQ_BASE_DELAY" envDefault:"250ms"`
	MaxDelay        time.Duration `env:"SCANQ_MAX_DELAY"`
	Jitter          bool          `env:"SCANQ_JITTER"`
	PersistAttempts bool          `env:"SCANQ_PERSIST_ATTEMPTS"`
	SyncInterval    time.Duration `env:"SCANQ_SYNC_INTERVAL" envDefault:"30s"`
}

// Parse reads the configuration from the environment.
func Parse() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads an optional .env file, then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("ignoring .env: %v", err)
	}

	c, err := Parse()
	if err != nil {
		log.Fatal(err)
	}
	return c
}
