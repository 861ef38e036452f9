// Package config loads VM tuning knobs from TOML, in the same spirit as the
// node-configuration files sibling example repos in this pack load with
// naoina/toml: a plain struct with tags, a loader, and a default.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config holds the embedder-facing knobs: how deep calls
// may nest before a RangeError, how many compiled CodeBlocks stay cached,
// and how much register-file headroom to preallocate.
type Config struct {
	// MaxCallDepth bounds call-stack recursion; exceeding it surfaces a
	// RangeError.
	MaxCallDepth int `toml:"max_call_depth"`

	// CodeBlockCacheSize bounds the LRU cache of lazily-compiled CodeBlocks
	// (compiled on first use, cached thereafter).
	CodeBlockCacheSize int `toml:"code_block_cache_size"`

	// InitialRegisterCapacity is the register file's starting capacity
	// it grows on demand, this just avoids early reallocation.
	InitialRegisterCapacity int `toml:"initial_register_capacity"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		MaxCallDepth:            1024,
		CodeBlockCacheSize:      256,
		InitialRegisterCapacity: 1024,
	}
}

// LoadConfig reads path as TOML, filling in defaults for any field the file
// omits.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}
