package config

import (
	"github.com/caarlos0/env/v11"
)

type Config struct {
	APIBaseURL         string `env:"CHAT_API_URL" envDefault:"http://localhost:8000"`
	StreamPath         string `env:"CHAT_STREAM_PATH" envDefault:"/api/chat/stream"`
	Port               int    `env:"PORT" envDefault:"8091"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL        string `env:"DATABASE_URL"`
	NATSStoreDir       string `env:"NATS_STORE_DIR"`
	WriterBufferSize   int    `env:"WRITER_BUFFER_SIZE" envDefault:"10000"`
	WriterBatchSize    int    `env:"WRITER_BATCH_SIZE" envDefault:"100"`
	WriterFlushMs      int    `env:"WRITER_FLUSH_MS" envDefault:"100"`
	ReadBufferSize     int    `env:"READ_BUFFER_SIZE" envDefault:"32768"`
	InterruptionMarker string `env:"INTERRUPTION_MARKER" envDefault:"\n\n[interrupted]"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ArchiveEnabled reports whether finalized turns are written to Postgres.
func (c *Config) ArchiveEnabled() bool { return c.DatabaseURL != "" }

// FanoutEnabled reports whether snapshots are published over embedded NATS.
func (c *Config) FanoutEnabled() bool { return c.NATSStoreDir != "" }
