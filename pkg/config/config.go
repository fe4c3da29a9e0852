// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the simulator's YAML configuration: physical
// constants, the power-on source values and ad-hoc periodic frames.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level document
type Config struct {
	Precharge PrechargeConfig `yaml:"precharge"`
	Source    SourceConfig    `yaml:"source"`
	Frames    []FrameConfig   `yaml:"frames"`
}

// ---- PRECHARGE ----

type PrechargeConfig struct {
	ResistanceOhms float64 `yaml:"resistance_ohms"`
	CapacitanceUF  float64 `yaml:"capacitance_uf"`
}

// ---- SOURCE ----

type SourceConfig struct {
	Voltage *float64 `yaml:"voltage"`
	Current *float64 `yaml:"current"`
}

// ---- FRAMES ----

// FrameConfig declares one ad-hoc frame. Data is hex, optionally separated
// by commas or spaces ("40,10,FE,30,00,00,00,00").
type FrameConfig struct {
	ID       uint32          `yaml:"id"`
	Name     string          `yaml:"name"`
	Data     string          `yaml:"data"`
	RateHz   float64         `yaml:"rate_hz"`
	Enabled  *bool           `yaml:"enabled"`
	Counters []CounterConfig `yaml:"counters"`
	Toggles  []ToggleConfig  `yaml:"toggles"`
	Checksum *ChecksumConfig `yaml:"checksum"`
}

type CounterConfig struct {
	Byte  int    `yaml:"byte"`
	Mask  uint8  `yaml:"mask"`
	Delta *int   `yaml:"delta"` // default 1
	Skip  *uint8 `yaml:"skip"`  // default none
}

type ToggleConfig struct {
	Byte int   `yaml:"byte"`
	Mask uint8 `yaml:"mask"`
}

type ChecksumConfig struct {
	Byte int `yaml:"byte"`
}

// Load reads, validates and normalizes a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty document is a valid, all-default configuration
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config parse failed: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	Normalize(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}
