package raft

import (
	"fmt"
	"time"
)

// Config holds the dispatch core's tunables. It is typically decoded from a
// TOML file by the embedding daemon (see cmd/dispatchd) but callers may also
// construct it directly with NewConfig.
type Config struct {
	// MinLogsInMemory is the fixed capacity of each follower's send queue.
	MinLogsInMemory int `toml:"min-logs-in-memory"`

	// UseAsyncServer selects the transport used for batches of more than
	// one entry: true for the async client/callback path, false for the
	// blocking sync client path.
	UseAsyncServer bool `toml:"use-async-server"`

	// EnableInstrumenting gates collection of the LogInQueue and
	// FromCreateToEnd timing samples.
	EnableInstrumenting bool `toml:"enable-instrumenting"`

	// WaitForPrevLogTimeout bounds the total backoff budget spent waiting
	// for a batch's predecessor entry to be acknowledged on the sync path.
	WaitForPrevLogTimeout time.Duration `toml:"wait-for-prev-log-timeout"`

	// WaitForPrevLogInitialInterval is the first retry interval of that
	// backoff.
	WaitForPrevLogInitialInterval time.Duration `toml:"wait-for-prev-log-initial-interval"`
}

// NewConfig returns a Config populated with the defaults used across this
// codebase's clusters.
func NewConfig() Config {
	return Config{
		MinLogsInMemory:               256,
		UseAsyncServer:                true,
		EnableInstrumenting:           false,
		WaitForPrevLogTimeout:         5 * time.Second,
		WaitForPrevLogInitialInterval: 50 * time.Millisecond,
	}
}

// Validate checks that the configuration can be used to construct a
// LogDispatcher.
func (c Config) Validate() error {
	if c.MinLogsInMemory <= 0 {
		return fmt.Errorf("raft: min-logs-in-memory must be positive, got %d", c.MinLogsInMemory)
	}
	if c.WaitForPrevLogTimeout <= 0 {
		return fmt.Errorf("raft: wait-for-prev-log-timeout must be positive, got %s", c.WaitForPrevLogTimeout)
	}
	if c.WaitForPrevLogInitialInterval <= 0 {
		return fmt.Errorf("raft: wait-for-prev-log-initial-interval must be positive, got %s", c.WaitForPrevLogInitialInterval)
	}
	return nil
}
