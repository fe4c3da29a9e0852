// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Thermoquad/sboxsim/pkg/sbox"
)

const sampleConfig = `
precharge:
  resistance_ohms: 150
  capacitance_uf: 1000
source:
  voltage: 400
  current: -12.5
frames:
  - id: 0x2D0
    name: IsolationMonitor
    data: "40,10,FE,30,00,00,00,00"
    rate_hz: 10
    counters:
      - byte: 7
        mask: 0x0F
        skip: 0x0F
    toggles:
      - byte: 6
        mask: 0x80
    checksum:
      byte: 5
  - id: 0x5A0
    data: "01 02"
    rate_hz: 1
    enabled: false
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	opts := cfg.Options()
	if opts.Precharge.ResistanceOhms != 150 || math.Abs(opts.Precharge.CapacitanceFarads-1000e-6) > 1e-12 {
		t.Errorf("Precharge = %+v", opts.Precharge)
	}
	if opts.Source != (sbox.SourceParameters{Voltage: 400, Current: -12.5}) {
		t.Errorf("Source = %+v", opts.Source)
	}

	if len(cfg.Frames) != 2 {
		t.Fatalf("len(Frames) = %d, want 2", len(cfg.Frames))
	}

	decl := cfg.Frames[0].Decl()
	if decl.ID != 0x2D0 || decl.Name != "IsolationMonitor" || decl.RateHz != 10 || decl.Disabled {
		t.Errorf("frame 0 = %+v", decl)
	}
	if !bytes.Equal(decl.Data, []byte{0x40, 0x10, 0xFE, 0x30, 0, 0, 0, 0}) {
		t.Errorf("frame 0 data = % X", decl.Data)
	}
	wantCounter := sbox.CounterDecl{Byte: 7, Mask: 0x0F, Delta: 1, Skip: 0x0F}
	if len(decl.Counters) != 1 || decl.Counters[0] != wantCounter {
		t.Errorf("frame 0 counters = %+v, want [%+v]", decl.Counters, wantCounter)
	}
	if len(decl.Toggles) != 1 || decl.Toggles[0] != (sbox.ToggleDecl{Byte: 6, Mask: 0x80}) {
		t.Errorf("frame 0 toggles = %+v", decl.Toggles)
	}
	if decl.Checksum == nil || decl.Checksum.Byte != 5 {
		t.Errorf("frame 0 checksum = %+v", decl.Checksum)
	}

	decl = cfg.Frames[1].Decl()
	if !decl.Disabled {
		t.Error("frame 1 enabled: false not honoured")
	}
	if len(decl.Counters) != 0 || decl.Checksum != nil {
		t.Errorf("frame 1 has generators: %+v", decl)
	}
}

func TestParse_Defaults(t *testing.T) {
	for _, doc := range []string{"", "frames: []\n"} {
		cfg, err := Parse([]byte(doc))
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", doc, err)
		}
		opts := cfg.Options()
		if math.Abs(opts.Precharge.TimeConstant()-sbox.DefaultPrecharge.TimeConstant()) > 1e-12 {
			t.Errorf("Parse(%q) precharge = %+v, want %+v", doc, opts.Precharge, sbox.DefaultPrecharge)
		}
		if opts.Source != sbox.DefaultSource {
			t.Errorf("Parse(%q) source = %+v, want %+v", doc, opts.Source, sbox.DefaultSource)
		}
	}

	if got := Default().Options().Source; got != sbox.DefaultSource {
		t.Errorf("Default() source = %+v", got)
	}
}

func TestParse_ExplicitZeroKept(t *testing.T) {
	cfg, err := Parse([]byte("source:\n  voltage: 0\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if v := cfg.Options().Source.Voltage; v != 0 {
		t.Errorf("explicit voltage 0 replaced by %v", v)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"unknown key", "precharge:\n  resistance: 10\n", "parse"},
		{"negative resistance", "precharge:\n  resistance_ohms: -1\n", "resistance_ohms"},
		{"negative capacitance", "precharge:\n  capacitance_uf: -1\n", "capacitance_uf"},
		{"zero rate", "frames:\n  - id: 0x123\n    data: \"00\"\n", "rate_hz"},
		{"negative rate", "frames:\n  - id: 0x123\n    data: \"00\"\n    rate_hz: -5\n", "rate_hz"},
		{"odd hex", "frames:\n  - id: 0x123\n    data: \"0\"\n    rate_hz: 1\n", "invalid data"},
		{"payload too long", "frames:\n  - id: 0x123\n    data: \"000000000000000000\"\n    rate_hz: 1\n", "at most 8"},
		{"identifier too large", "frames:\n  - id: 0x20000000\n    data: \"00\"\n    rate_hz: 1\n", "out of range"},
		{"counter outside payload", "frames:\n  - id: 0x123\n    data: \"00\"\n    rate_hz: 1\n    counters:\n      - byte: 1\n        mask: 0x0F\n", "outside payload"},
		{"zero counter mask", "frames:\n  - id: 0x123\n    data: \"00\"\n    rate_hz: 1\n    counters:\n      - byte: 0\n        mask: 0\n", "must not be zero"},
		{"split counter mask", "frames:\n  - id: 0x123\n    data: \"00\"\n    rate_hz: 1\n    counters:\n      - byte: 0\n        mask: 0x81\n", "contiguous"},
		{"toggle outside payload", "frames:\n  - id: 0x123\n    data: \"00\"\n    rate_hz: 1\n    toggles:\n      - byte: 3\n        mask: 1\n", "outside payload"},
		{"checksum outside payload", "frames:\n  - id: 0x123\n    data: \"\"\n    rate_hz: 1\n    checksum:\n      byte: 0\n", "outside payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("Parse() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestFrameDefinitions_DuplicateOfTelemetry(t *testing.T) {
	// Duplicates pass validation and fail when the frame table is built
	cfg, err := Parse([]byte("frames:\n  - id: 0x210\n    data: \"00\"\n    rate_hz: 1\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	_, err = sbox.New(cfg.Options(), cfg.FrameDefinitions()...)
	if !errors.Is(err, sbox.ErrDuplicateIdentifier) {
		t.Errorf("sbox.New() error = %v, want ErrDuplicateIdentifier", err)
	}
}

func TestFrameDefinitions_Order(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	defs := cfg.FrameDefinitions()
	var names []string
	for _, d := range defs {
		names = append(names, d.Name)
	}
	want := []string{"Current", "PackVoltage", "PostContactorVoltage", "IsolationMonitor", "Frame_5A0"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("definitions = %v, want %v", names, want)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sbox.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.Frames) != 2 {
		t.Errorf("len(Frames) = %d, want 2", len(cfg.Frames))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}

func TestDecodeHex(t *testing.T) {
	tests := []struct {
		in      string
		want    []byte
		wantErr bool
	}{
		{in: "FFFEFFFF", want: []byte{0xFF, 0xFE, 0xFF, 0xFF}},
		{in: "a6 00 00 00", want: []byte{0xA6, 0, 0, 0}},
		{in: "40,10,FE,30", want: []byte{0x40, 0x10, 0xFE, 0x30}},
		{in: "", want: []byte{}},
		{in: "ABC", wantErr: true},
		{in: "GG", wantErr: true},
	}

	for _, tt := range tests {
		got, err := DecodeHex(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("DecodeHex(%q) succeeded", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("DecodeHex(%q) error: %v", tt.in, err)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("DecodeHex(%q) = % X, want % X", tt.in, got, tt.want)
		}
	}
}

func TestContiguous(t *testing.T) {
	tests := map[uint8]bool{
		0x01: true, 0x0F: true, 0xF0: true, 0x3C: true, 0xFF: true, 0x80: true,
		0x81: false, 0x05: false, 0xF1: false,
	}
	for m, want := range tests {
		if got := contiguous(m); got != want {
			t.Errorf("contiguous(0x%02X) = %v, want %v", m, got, want)
		}
	}
}
