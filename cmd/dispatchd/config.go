package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/nimbusdb/raftdispatch/raft"
)

// Duration is a TOML wrapper for time.Duration so config files can write
// "5s" instead of a raw integer of nanoseconds.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText parses a TOML value into a duration value.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		return nil
	}
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText converts a duration to a string for encoding as TOML.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// NodeConfig describes one member of the simulated cluster.
type NodeConfig struct {
	ID   uint64 `toml:"id"`
	Host string `toml:"host"`
}

// Config is dispatchd's on-disk configuration.
type Config struct {
	HTTPBindAddress string       `toml:"http-bind-address"`
	GroupID         string       `toml:"group-id"`
	ThisNodeID      uint64       `toml:"this-node-id"`
	Nodes           []NodeConfig `toml:"nodes"`

	MinLogsInMemory               int      `toml:"min-logs-in-memory"`
	UseAsyncServer                bool     `toml:"use-async-server"`
	EnableInstrumenting           bool     `toml:"enable-instrumenting"`
	WaitForPrevLogTimeout         Duration `toml:"wait-for-prev-log-timeout"`
	WaitForPrevLogInitialInterval Duration `toml:"wait-for-prev-log-initial-interval"`

	// FollowerLatency simulates network/processing delay in the in-memory
	// transport used by this demo daemon.
	FollowerLatency Duration `toml:"follower-latency"`
}

// NewConfig returns a Config populated with defaults suitable for a
// single-machine, three-node demo cluster.
func NewConfig() Config {
	core := raft.NewConfig()
	return Config{
		HTTPBindAddress:               ":8086",
		GroupID:                       "demo-group",
		ThisNodeID:                    1,
		Nodes:                         []NodeConfig{{ID: 1, Host: "node-1"}, {ID: 2, Host: "node-2"}, {ID: 3, Host: "node-3"}},
		MinLogsInMemory:               core.MinLogsInMemory,
		UseAsyncServer:                core.UseAsyncServer,
		EnableInstrumenting:           true,
		WaitForPrevLogTimeout:         Duration(core.WaitForPrevLogTimeout),
		WaitForPrevLogInitialInterval: Duration(core.WaitForPrevLogInitialInterval),
		FollowerLatency:               Duration(5 * time.Millisecond),
	}
}

// LoadConfig decodes a TOML file at path on top of NewConfig's defaults.
func LoadConfig(path string) (Config, error) {
	cfg := NewConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// raftConfig projects the dispatch-core-relevant fields into a raft.Config.
func (c Config) raftConfig() raft.Config {
	return raft.Config{
		MinLogsInMemory:               c.MinLogsInMemory,
		UseAsyncServer:                c.UseAsyncServer,
		EnableInstrumenting:           c.EnableInstrumenting,
		WaitForPrevLogTimeout:         time.Duration(c.WaitForPrevLogTimeout),
		WaitForPrevLogInitialInterval: time.Duration(c.WaitForPrevLogInitialInterval),
	}
}
