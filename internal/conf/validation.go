// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package conf

import (
	"errors"
	"fmt"
	"log/slog"
)

// Check the filter thresholds and the spare percentage.
func (c FiltersConfig) validate() error {
	if c.SpareHostPercentage < 0 || c.SpareHostPercentage > 100 {
		return fmt.Errorf("spare host percentage must be within 0..100, got %d", c.SpareHostPercentage)
	}
	if c.MaxIOOpsPerHost < 0 {
		return fmt.Errorf("max io ops per host can't be negative, got %d", c.MaxIOOpsPerHost)
	}
	if c.MaxInstancesPerHost < 0 {
		return fmt.Errorf("max instances per host can't be negative, got %d", c.MaxInstancesPerHost)
	}
	if c.TargetHostHint == "" {
		return errors.New("target host hint can't be empty")
	}
	return nil
}

// Check the pipeline configuration.
func (c SchedulerConfig) validate() error {
	if err := c.Filters.validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Weighers))
	for _, weigher := range c.Weighers {
		if weigher.Name == "" {
			return errors.New("weigher without name")
		}
		if seen[weigher.Name] {
			return fmt.Errorf("weigher %s configured more than once", weigher.Name)
		}
		seen[weigher.Name] = true
	}
	if c.FuzzTopN < 0 {
		return fmt.Errorf("fuzz top n can't be negative, got %d", c.FuzzTopN)
	}
	return nil
}

// Check if the configuration is valid.
func (c *config) Validate() error {
	if err := c.SchedulerConfig.validate(); err != nil {
		return err
	}
	if c.APIConfig.LogRequestBodies {
		slog.Warn("logging request bodies is enabled (debug feature)")
	}
	if c.APIConfig.Port <= 0 || c.MonitoringConfig.Port <= 0 {
		return fmt.Errorf("invalid ports: api %d, monitoring %d", c.APIConfig.Port, c.MonitoringConfig.Port)
	}
	if c.APIConfig.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("max concurrent requests must be positive, got %d", c.APIConfig.MaxConcurrentRequests)
	}
	if c.APIConfig.Port == c.MonitoringConfig.Port {
		return fmt.Errorf("api and monitoring can't share port %d", c.APIConfig.Port)
	}
	return nil
}
