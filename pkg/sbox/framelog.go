// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/sboxsim/pkg/canbus"
)

// Direction tells a frame log whether a frame was received or transmitted
type Direction int

const (
	Rx Direction = iota
	Tx
)

func (d Direction) String() string {
	if d == Tx {
		return "Tx"
	}
	return "Rx"
}

// FrameLog is an append-only record of bus traffic
type FrameLog interface {
	Record(dir Direction, f canbus.Frame, at time.Time)
}

// DiscardFrameLog drops every record
type DiscardFrameLog struct{}

func (DiscardFrameLog) Record(Direction, canbus.Frame, time.Time) {}

// TextFrameLog writes one line per frame:
//
//	Timestamp: 1700000000.123456    ID: 0200    Tx    DL:  8    02 00 00 80 22 01 d9 71
type TextFrameLog struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// NewTextFrameLog logs to w
func NewTextFrameLog(w io.Writer) *TextFrameLog {
	return &TextFrameLog{w: w}
}

// CreateTextFrameLog creates (or appends to) a log file at path
func CreateTextFrameLog(path string) (*TextFrameLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame log: %w", err)
	}
	return &TextFrameLog{w: f, c: f}, nil
}

// DefaultFrameLogName is the per-run log file name, e.g.
// "2025-06-01T12:00:00+02:00-sbox-sim.log"
func DefaultFrameLogName(now time.Time) string {
	return now.Format(time.RFC3339) + "-sbox-sim.log"
}

// Record appends one frame. Write errors are dropped; the log is best effort.
func (l *TextFrameLog) Record(dir Direction, f canbus.Frame, at time.Time) {
	line := FormatFrameLogLine(dir, f, at)
	l.mu.Lock()
	io.WriteString(l.w, line)
	l.mu.Unlock()
}

// Close closes the underlying file, if the log owns one
func (l *TextFrameLog) Close() error {
	if l.c == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.Close()
}

// FormatFrameLogLine renders one frame log line, newline included
func FormatFrameLogLine(dir Direction, f canbus.Frame, at time.Time) string {
	var s strings.Builder
	fmt.Fprintf(&s, "Timestamp: %17.6f    ", float64(at.UnixMicro())/1e6)
	if f.Extended {
		fmt.Fprintf(&s, "ID: %08x    ", f.ID)
	} else {
		fmt.Fprintf(&s, "ID: %04x    ", f.ID)
	}
	fmt.Fprintf(&s, "%s    DL: %2d    % x\n", dir, f.Len, f.Payload())
	return s.String()
}
