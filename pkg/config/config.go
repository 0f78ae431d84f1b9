// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config provides configuration loading and management for the
// agent execution core.
//
// Example config:
//
//	version: "1"
//	name: my-core
//
//	llm:
//	  provider: anthropic
//	  model: claude-sonnet-4-20250514
//	  api_key: ${ANTHROPIC_API_KEY}
//
//	lanes:
//	  - kind: shell
//	    max_concurrent: 2
//	  - kind: editor
//	    max_concurrent: 4
//
//	server:
//	  port: 8080
package config

import (
	"fmt"
	"strings"

	"github.com/evoagent/core/pkg/consolidation"
	"github.com/evoagent/core/pkg/vector"
)

// Config is the root configuration structure.
type Config struct {
	// Version of the config schema (e.g., "1").
	Version string `yaml:"version,omitempty"`

	// Name of this configuration (for logging/display).
	Name string `yaml:"name,omitempty"`

	// Description of this configuration.
	Description string `yaml:"description,omitempty"`

	// Databases defines named SQL connections. Referenced by the rate
	// limiter's sql backend and by the VectorPersistence check in
	// Validate.
	Databases map[string]*DatabaseConfig `yaml:"databases,omitempty"`

	// LLM configures the single LLM provider used by the runtime and
	// planner.
	LLM *LLMConfig `yaml:"llm,omitempty"`

	// VectorProvider configures the vector search backend used by the
	// knowledge store.
	VectorProvider *vector.ProviderConfig `yaml:"vector_provider,omitempty"`

	// VectorPersistence, if set, names a database (from Databases);
	// Validate checks that the name exists. Nothing else reads it: vector
	// entries are not written to a SQL table and are not rehydrated on
	// restart.
	VectorPersistence string `yaml:"vector_persistence,omitempty"`

	// Storage configures where session logs and knowledge snapshots
	// live on disk.
	Storage StorageConfig `yaml:"storage,omitempty"`

	// Lanes declares the lane queue topology.
	Lanes []LaneConfig `yaml:"lanes,omitempty"`

	// Consolidation configures the background consolidation loop.
	Consolidation *consolidation.Config `yaml:"consolidation,omitempty"`

	// Server configures the gateway's network-facing surface.
	Server ServerConfig `yaml:"server,omitempty"`

	// Logger configures logging behavior.
	Logger *LoggerConfig `yaml:"logger,omitempty"`

	// RateLimiting configures rate limiting.
	RateLimiting *RateLimitConfig `yaml:"rate_limiting,omitempty"`
}

// SetDefaults applies default values to the config.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	if c.Name == "" {
		c.Name = "evoagent"
	}

	if c.Databases == nil {
		c.Databases = make(map[string]*DatabaseConfig)
	}
	for name, db := range c.Databases {
		if db == nil {
			db = &DatabaseConfig{}
			c.Databases[name] = db
		}
		db.SetDefaults()
	}

	if c.LLM == nil {
		c.LLM = &LLMConfig{}
	}
	c.LLM.SetDefaults()

	if c.VectorProvider == nil {
		c.VectorProvider = &vector.ProviderConfig{}
	}
	c.VectorProvider.SetDefaults()

	c.Storage.SetDefaults()

	if len(c.Lanes) == 0 {
		c.Lanes = DefaultLanes()
	}
	for i := range c.Lanes {
		c.Lanes[i].SetDefaults()
	}

	if c.Consolidation == nil {
		c.Consolidation = &consolidation.Config{}
	}
	c.Consolidation.SetDefaults()

	c.Server.SetDefaults()

	if c.Logger == nil {
		c.Logger = &LoggerConfig{}
	}
	c.Logger.SetDefaults()

	if c.RateLimiting != nil {
		c.RateLimiting.SetDefaults()
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	for name, db := range c.Databases {
		if db == nil {
			continue
		}
		if err := db.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("database %q: %v", name, err))
		}
	}

	if c.LLM != nil {
		if err := c.LLM.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("llm: %v", err))
		}
	}

	if c.VectorProvider != nil {
		if err := c.VectorProvider.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("vector_provider: %v", err))
		}
	}

	if c.VectorPersistence != "" {
		if _, ok := c.Databases[c.VectorPersistence]; !ok {
			errs = append(errs, fmt.Sprintf("vector_persistence references undefined database %q", c.VectorPersistence))
		}
	}

	for i, lane := range c.Lanes {
		if err := lane.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("lanes[%d]: %v", i, err))
		}
	}

	if c.Consolidation != nil {
		if err := c.Consolidation.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("consolidation: %v", err))
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server: %v", err))
	}

	if c.Logger != nil {
		if err := c.Logger.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("logger: %v", err))
		}
	}

	if c.RateLimiting != nil {
		if err := c.RateLimiting.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("rate_limiting: %v", err))
		}
		if c.RateLimiting.Backend == "sql" && c.RateLimiting.SQLDatabase != "" {
			if _, ok := c.Databases[c.RateLimiting.SQLDatabase]; !ok {
				errs = append(errs, fmt.Sprintf("rate_limiting references undefined database %q", c.RateLimiting.SQLDatabase))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// GetDatabase returns the database config by name.
func (c *Config) GetDatabase(name string) (*DatabaseConfig, bool) {
	db, ok := c.Databases[name]
	return db, ok
}
