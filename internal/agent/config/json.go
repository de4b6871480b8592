package config

import (
	"encoding/json"
	"os"

	"github.com/fieldsync/fieldsync/internal/flagx"
	"github.com/fieldsync/fieldsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "30s"
// or as integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	DataDir             string         `json:"data_dir"`
	WorkspaceID         string         `json:"workspace_id"`
	DeviceID            string         `json:"device_id"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	DrainInterval       timex.Duration `json:"drain_interval"`
	PullInterval        timex.Duration `json:"pull_interval"`
	FailedSweepDelay    timex.Duration `json:"failed_sweep_delay"`
}

// parseJson overlays Config with values loaded from a JSON file named by the
// -c/-config flag. Absent fields keep their current values. Panics on read
// or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.WorkspaceID != "" {
		cfg.WorkspaceID = jc.WorkspaceID
	}
	if jc.DeviceID != "" {
		cfg.DeviceID = jc.DeviceID
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.DrainInterval.Duration != 0 {
		cfg.DrainInterval = jc.DrainInterval.Duration
	}
	if jc.PullInterval.Duration != 0 {
		cfg.PullInterval = jc.PullInterval.Duration
	}
	if jc.FailedSweepDelay.Duration != 0 {
		cfg.FailedSweepDelay = jc.FailedSweepDelay.Duration
	}
}
