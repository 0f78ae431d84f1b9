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

package config

import "fmt"

// StorageConfig configures where on-disk state lives.
type StorageConfig struct {
	// SessionDir holds append-only session log segments.
	SessionDir string `yaml:"session_dir,omitempty"`

	// KnowledgeDir holds knowledge store snapshots and lesson files.
	KnowledgeDir string `yaml:"knowledge_dir,omitempty"`
}

// SetDefaults applies default values.
func (c *StorageConfig) SetDefaults() {
	if c.SessionDir == "" {
		c.SessionDir = ".evoagent/sessions"
	}
	if c.KnowledgeDir == "" {
		c.KnowledgeDir = ".evoagent/knowledge"
	}
}

// LaneConfig describes one lane of the lane queue.
type LaneConfig struct {
	// Kind identifies the lane (e.g. "shell", "editor", "network").
	Kind string `yaml:"kind"`

	// MaxConcurrent bounds how many tasks this lane runs at once.
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`

	// Priority orders lanes during each scheduling pass; higher scans
	// first.
	Priority int `yaml:"priority,omitempty"`
}

// SetDefaults applies default values.
func (c *LaneConfig) SetDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 1
	}
}

// Validate checks the lane configuration for errors.
func (c *LaneConfig) Validate() error {
	if c.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive")
	}
	return nil
}

// DefaultLanes returns the lane topology used when none is configured:
// one lane per the usual shell/editor/network split.
func DefaultLanes() []LaneConfig {
	return []LaneConfig{
		{Kind: "shell", MaxConcurrent: 2, Priority: 10},
		{Kind: "editor", MaxConcurrent: 4, Priority: 5},
		{Kind: "network", MaxConcurrent: 4, Priority: 0},
	}
}

// BoolPtr returns a pointer to b, for optional boolean config fields.
func BoolPtr(b bool) *bool {
	return &b
}

// BoolValue dereferences an optional boolean field, returning def when nil.
func BoolValue(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
