// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package conf

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Configuration for structured logging.
type LoggingConfig struct {
	// The log level to use (debug, info, warn, error).
	LevelStr string `yaml:"level"`
	// The log format to use (json, text).
	Format string `yaml:"format"`
}

// Configuration for the monitoring module.
type MonitoringConfig struct {
	// The labels to add to all metrics.
	Labels map[string]string `yaml:"labels"`

	// The port to expose the metrics on.
	Port int `yaml:"port"`
}

// Configuration for the api port.
type APIConfig struct {
	// The port to expose the API on.
	Port int `yaml:"port"`

	// If request bodies should be logged out.
	// This feature is intended for debugging purposes only.
	LogRequestBodies bool `yaml:"logRequestBodies"`

	// Maximum number of scheduling requests evaluated at the same time.
	// Further requests wait until a slot is free or they are cancelled.
	MaxConcurrentRequests int `yaml:"maxConcurrentRequests"`
}

// Configuration of the hard rule checks and the spare host reservation.
type FiltersConfig struct {
	// Whether to check for free memory including an extra reserve
	// for small instances.
	RAMCheckEnabled bool `yaml:"ramCheckEnabled"`
	// Ignore hosts that have this many builds/resizes/snapshots/migrations.
	MaxIOOpsPerHost int `yaml:"maxIOOpsPerHost"`
	// Ignore hosts that have this many instances.
	MaxInstancesPerHost int `yaml:"maxInstancesPerHost"`
	// The number of presented hosts is divided by this value to get the
	// number of empty hosts held back as spares. Zero disables spares.
	SpareHostPercentage int `yaml:"spareHostPercentage"`
	// Scheduler hint that forces a request onto a comma separated list of hosts.
	TargetHostHint string `yaml:"targetHostHint"`
}

// Configuration of a single weigher.
type WeigherConfig struct {
	// The name of the weigher implementation.
	Name string `yaml:"name"`
	// Multiplier applied to the weigher's raw score.
	// If not set, the weigher's default multiplier is used.
	Multiplier *float64 `yaml:"multiplier,omitempty"`
}

// Configuration for the scheduler module.
type SchedulerConfig struct {
	// Name of the pipeline, used in metrics.
	PipelineName string `yaml:"pipelineName"`
	Filters      FiltersConfig `yaml:"filters"`
	// Weighers in the order they are applied.
	Weighers []WeigherConfig `yaml:"weighers"`
	// Randomize the order of the top n hosts. Zero disables fuzzing.
	FuzzTopN int `yaml:"fuzzTopN"`
}

// Configuration for the host selection service.
type Config interface {
	GetLoggingConfig() LoggingConfig
	GetMonitoringConfig() MonitoringConfig
	GetAPIConfig() APIConfig
	GetSchedulerConfig() SchedulerConfig
	// Check if the configuration is valid.
	Validate() error
}

type config struct {
	LoggingConfig    `yaml:"logging"`
	MonitoringConfig `yaml:"monitoring"`
	APIConfig        `yaml:"api"`
	SchedulerConfig  `yaml:"scheduler"`
}

// Default configuration, used for all values missing in the config files.
func defaultConfig() config {
	return config{
		LoggingConfig:    LoggingConfig{LevelStr: "info", Format: "text"},
		MonitoringConfig: MonitoringConfig{Port: 2112},
		APIConfig:        APIConfig{Port: 8080, MaxConcurrentRequests: 64},
		SchedulerConfig:  DefaultSchedulerConfig(),
	}
}

// Default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PipelineName: "default",
		Filters: FiltersConfig{
			RAMCheckEnabled:     false,
			MaxIOOpsPerHost:     8,
			MaxInstancesPerHost: 50,
			SpareHostPercentage: 10,
			TargetHostHint:      "0z0ne_target_host",
		},
		// Nil multipliers fall back to the weigher defaults.
		Weighers: []WeigherConfig{
			{Name: "instance_count"},
			{Name: "project_affinity"},
			{Name: "os_type_affinity"},
		},
		FuzzTopN: 5,
	}
}

// Create a new configuration from the default config yaml files.
//
// This will read two files:
//   - /etc/config/conf.yaml
//   - /etc/secrets/secrets.yaml (optional)
//
// The values read from secrets.yaml will override the values in conf.yaml.
func NewConfig() Config {
	return newConfigFromFiles("/etc/config/conf.yaml", "/etc/secrets/secrets.yaml")
}

// Create a new configuration from the given base and override files.
func newConfigFromFiles(basePath, overridePath string) Config {
	base, err := readRawConfig(basePath)
	if err != nil {
		panic(err)
	}
	override, err := readRawConfig(overridePath)
	if errors.Is(err, fs.ErrNotExist) {
		override = map[string]any{}
	} else if err != nil {
		panic(err)
	}
	merged, err := yaml.Marshal(mergeMaps(base, override))
	if err != nil {
		panic(err)
	}
	return newConfigFromBytes(merged)
}

// Create a new configuration from the given bytes.
func newConfigFromBytes(bytes []byte) Config {
	c := defaultConfig()
	if err := yaml.Unmarshal(bytes, &c); err != nil {
		panic(err)
	}
	return &c
}

// Read the yaml as a map from the given file path.
func readRawConfig(filepath string) (map[string]any, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	bytes, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	conf := map[string]any{}
	if err := yaml.Unmarshal(bytes, &conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// mergeMaps recursively overrides dst with src (in-place)
func mergeMaps(dst, src map[string]any) map[string]any {
	result := dst
	for k, v := range src {
		if v == nil {
			// If src value is nil, skip override
			continue
		}
		if dstVal, ok := dst[k]; ok {
			// If both are maps, merge recursively
			dstMap, dstIsMap := dstVal.(map[string]any)
			srcMap, srcIsMap := v.(map[string]any)
			if dstIsMap && srcIsMap {
				result[k] = mergeMaps(dstMap, srcMap)
				continue
			}
		}
		// Otherwise, override
		result[k] = v
	}
	return result
}

func (c *config) GetLoggingConfig() LoggingConfig       { return c.LoggingConfig }
func (c *config) GetMonitoringConfig() MonitoringConfig { return c.MonitoringConfig }
func (c *config) GetAPIConfig() APIConfig               { return c.APIConfig }
func (c *config) GetSchedulerConfig() SchedulerConfig   { return c.SchedulerConfig }
