// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import "github.com/Thermoquad/sboxsim/pkg/sbox"

// Normalize fills in defaults. It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Precharge.ResistanceOhms == 0 {
		cfg.Precharge.ResistanceOhms = sbox.DefaultPrecharge.ResistanceOhms
	}
	if cfg.Precharge.CapacitanceUF == 0 {
		cfg.Precharge.CapacitanceUF = sbox.DefaultPrecharge.CapacitanceFarads * 1e6
	}

	if cfg.Source.Voltage == nil {
		v := sbox.DefaultSource.Voltage
		cfg.Source.Voltage = &v
	}
	if cfg.Source.Current == nil {
		a := sbox.DefaultSource.Current
		cfg.Source.Current = &a
	}

	for fi := range cfg.Frames {
		for ci := range cfg.Frames[fi].Counters {
			c := &cfg.Frames[fi].Counters[ci]
			if c.Delta == nil {
				d := 1
				c.Delta = &d
			}
		}
	}
}

// Options converts the normalized configuration into SBox options
func (c *Config) Options() sbox.Options {
	return sbox.Options{
		Precharge: sbox.PrechargeCircuit{
			ResistanceOhms:    c.Precharge.ResistanceOhms,
			CapacitanceFarads: c.Precharge.CapacitanceUF * 1e-6,
		},
		Source: sbox.SourceParameters{
			Voltage: *c.Source.Voltage,
			Current: *c.Source.Current,
		},
	}
}

// FrameDefinitions returns the built-in telemetry frames followed by the
// declared ad-hoc frames
func (c *Config) FrameDefinitions() []sbox.FrameDefinition {
	defs := append([]sbox.FrameDefinition{}, sbox.TelemetryFrames...)
	for _, f := range c.Frames {
		defs = append(defs, f.Decl().Definition())
	}
	return defs
}

// Decl converts a validated frame entry into a frame declaration
func (f FrameConfig) Decl() sbox.FrameDecl {
	data, _ := DecodeHex(f.Data)
	d := sbox.FrameDecl{
		ID:       f.ID,
		Name:     f.Name,
		Data:     data,
		RateHz:   f.RateHz,
		Disabled: f.Enabled != nil && !*f.Enabled,
	}
	for _, c := range f.Counters {
		skip := sbox.NoSkip
		if c.Skip != nil {
			skip = int(*c.Skip)
		}
		delta := 1
		if c.Delta != nil {
			delta = *c.Delta
		}
		d.Counters = append(d.Counters, sbox.CounterDecl{Byte: c.Byte, Mask: c.Mask, Delta: delta, Skip: skip})
	}
	for _, t := range f.Toggles {
		d.Toggles = append(d.Toggles, sbox.ToggleDecl{Byte: t.Byte, Mask: t.Mask})
	}
	if f.Checksum != nil {
		d.Checksum = &sbox.ChecksumDecl{Byte: f.Checksum.Byte}
	}
	return d
}
