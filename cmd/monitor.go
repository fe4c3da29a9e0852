// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/sboxsim/pkg/canbus"
	"github.com/Thermoquad/sboxsim/pkg/sbox_protocol"
	"github.com/spf13/cobra"
)

var (
	errorsOnly    bool
	statsInterval int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Decode and check SBox traffic on the bus",
	Long: `Continuously decode SBox frames as they arrive and check them for errors.

Telemetry frames are shown with their current or voltage and alive counter,
contactor commands with their decoded meaning. Each frame is validated:
  - Wrong length telemetry and command frames
  - Alive counter gaps and the reserved 0xF value
  - Unrecognized contactor commands
  - Setup frames other than the unlock pattern

Use it against a running simulator, or a real contactor box, on a shared
SocketCAN interface or WebSocket bridge. With --errors-only, valid frames are
counted but not printed. A statistics summary is printed periodically.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&errorsOnly, "errors-only", false, "Only print frames with errors")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds, 0 disables)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	bus, busInfo, err := OpenBus()
	if err != nil {
		return err
	}
	defer bus.Close()

	fmt.Printf("SBox Monitor\n")
	fmt.Printf("Bus: %s\n", busInfo)
	if errorsOnly {
		fmt.Printf("Mode: Errors only\n")
	} else {
		fmt.Printf("Mode: All frames\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := sbox_protocol.NewStatistics()
	err = monitorBus(ctx, bus, os.Stdout, stats, time.Duration(statsInterval)*time.Second)

	fmt.Println()
	fmt.Print(stats.String())
	return err
}

// monitorBus prints frames until ctx ends or the bus fails
func monitorBus(ctx context.Context, bus canbus.Bus, w io.Writer, stats *sbox_protocol.Statistics, interval time.Duration) error {
	validator := sbox_protocol.NewValidator()

	// Bus reader goroutine
	frames := make(chan canbus.Frame, 64)
	readErr := make(chan error, 1)
	go func() {
		for {
			f, err := bus.Receive(ctx)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	var tick <-chan time.Time
	if interval > 0 {
		statsTicker := time.NewTicker(interval)
		defer statsTicker.Stop()
		tick = statsTicker.C
	}

	for {
		select {
		case f := <-frames:
			now := time.Now()
			validationErrors := validator.ValidateFrame(f)
			stats.Update(f, validationErrors)

			if len(validationErrors) > 0 {
				printFrameErrors(w, f, now, validationErrors)
			} else if !errorsOnly {
				fmt.Fprint(w, sbox_protocol.FormatFrame(f, now))
			}

		case <-tick:
			fmt.Fprintln(w)
			fmt.Fprint(w, stats.String())
			fmt.Fprintln(w)

		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, canbus.ErrClosed) {
				fmt.Fprintf(w, "Bus closed\n")
				return nil
			}
			return fmt.Errorf("receive failed: %w", err)

		case <-ctx.Done():
			return nil
		}
	}
}

// printFrameErrors prints validation errors for a frame in highlighted format
func printFrameErrors(w io.Writer, f canbus.Frame, at time.Time, validationErrors []sbox_protocol.ValidationError) {
	timestamp := at.Format("15:04:05.000")
	fmt.Fprintf(w, "[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (0x%03X) % X\n",
		timestamp, sbox_protocol.FormatFrameName(f.ID), f.ID, f.Payload())

	for i, err := range validationErrors {
		switch err.Type {
		case sbox_protocol.ANOMALY_ALIVE_GAP:
			fmt.Fprintf(w, "  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if expected, ok := err.Details["expected"].(int); ok {
				fmt.Fprintf(w, "    expected alive=%d\n", expected)
			}
		case sbox_protocol.ANOMALY_UNKNOWN_COMMAND, sbox_protocol.ANOMALY_LENGTH_MISMATCH, sbox_protocol.ANOMALY_SETUP_LOCKED:
			fmt.Fprintf(w, "  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
		default:
			fmt.Fprintf(w, "  Issue %d: %s\n", i+1, err.Message)
		}
	}
	fmt.Fprintln(w)
}
