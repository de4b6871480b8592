// Package config holds runtime settings for the field agent.
package config

import "time"

// Config holds runtime settings for the sync agent.
//
// Units: all intervals are time.Durations (e.g. 30*time.Second).
type Config struct {
	// ServerEndpointAddr is host:port of the workspace sync gRPC endpoint.
	ServerEndpointAddr string
	// DataDir is where the local store database lives.
	DataDir string
	// WorkspaceID scopes every record this agent handles.
	WorkspaceID string
	// DeviceID identifies this agent in login and drain announcements.
	DeviceID string
	// OnlineCheckInterval is how often the agent probes server reachability.
	OnlineCheckInterval time.Duration
	// DrainInterval is how often a queue drain is attempted while online.
	DrainInterval time.Duration
	// PullInterval is how often a reconcile cycle runs while online.
	PullInterval time.Duration
	// FailedSweepDelay is how long after a reconnect the automatic
	// failed-queue sweep waits, so the regular drain gets first go.
	FailedSweepDelay time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DataDir = ".fieldsync"
	c.OnlineCheckInterval = 30 * time.Second
	c.DrainInterval = time.Minute
	c.PullInterval = 5 * time.Minute
	c.FailedSweepDelay = 5 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
