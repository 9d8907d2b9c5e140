package fluentlogger

import (
	"fmt"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
)

// Config holds the Fluent Bit forward input settings.
type Config struct {
	Host      string // "127.0.0.1", or "fluent-bit" inside docker compose
	Port      int    // 24224 by default
	TagPrefix string // prefix of every tag this service emits
	// Async buffers records and sends them from a background goroutine so a
	// slow collector never blocks a request.
	Async        bool
	WriteTimeout time.Duration
}

// NewClient creates a Fluent Bit client. The forward protocol has no ping:
// a successfully created client may still fail on the first Post.
func NewClient(cfg Config) (*fluent.Fluent, error) {
	if cfg.TagPrefix == "" {
		return nil, fmt.Errorf("fluentd tag prefix is required")
	}

	client, err := fluent.New(fluent.Config{
		FluentHost:   cfg.Host,
		FluentPort:   cfg.Port,
		TagPrefix:    cfg.TagPrefix,
		Async:        cfg.Async,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fluentd logger: %w", err)
	}
	return client, nil
}
