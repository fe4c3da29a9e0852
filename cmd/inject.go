// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Thermoquad/sboxsim/pkg/canbus"
	"github.com/Thermoquad/sboxsim/pkg/config"
	"github.com/spf13/cobra"
)

var (
	injectRepeat   int
	injectInterval int
)

var injectCmd = &cobra.Command{
	Use:   "inject <id> <data>",
	Short: "Send a frame onto the bus",
	Long: `Send a single CAN frame, or a stream of identical frames, onto the
selected bus. Use it to drive a simulator running on the same SocketCAN
interface or WebSocket bridge in place of a vehicle controller.

The identifier accepts decimal or 0x-prefixed hex. Data is hex, optionally
separated by spaces or commas.

Examples:
  sbox-sim inject --iface vcan0 0x300 FFFEFFFF
  sbox-sim inject --iface vcan0 0x100 "A6 00 00 00"
  sbox-sim inject --iface vcan0 0x100 AA000000 --repeat 100 --interval 20`,
	Args: cobra.ExactArgs(2),
	RunE: runInject,
}

func init() {
	injectCmd.Flags().IntVarP(&injectRepeat, "repeat", "r", 1, "Number of times to send the frame")
	injectCmd.Flags().IntVar(&injectInterval, "interval", 20, "Interval between repeats in milliseconds")
	rootCmd.AddCommand(injectCmd)
}

// parseInjectFrame builds a frame from the command line arguments
func parseInjectFrame(idArg, dataArg string) (canbus.Frame, error) {
	id, err := strconv.ParseUint(idArg, 0, 32)
	if err != nil {
		return canbus.Frame{}, fmt.Errorf("invalid identifier %q: %v", idArg, err)
	}
	data, err := config.DecodeHex(dataArg)
	if err != nil {
		return canbus.Frame{}, err
	}
	return canbus.NewFrame(uint32(id), data)
}

func runInject(cmd *cobra.Command, args []string) error {
	frame, err := parseInjectFrame(args[0], args[1])
	if err != nil {
		return err
	}
	if injectRepeat < 1 {
		return fmt.Errorf("--repeat must be at least 1")
	}
	if injectInterval < 0 {
		return fmt.Errorf("--interval must not be negative")
	}

	bus, busInfo, err := OpenBus()
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := time.Duration(injectInterval) * time.Millisecond
	sent := 0
	for i := 0; i < injectRepeat; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				fmt.Printf("Interrupted after %d frames\n", sent)
				return nil
			case <-time.After(interval):
			}
		}

		sendCtx, cancel := context.WithTimeout(ctx, time.Second)
		err := bus.Send(sendCtx, frame)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to send %s: %w", frame, err)
		}
		sent++
	}

	fmt.Printf("Sent %s x%d on %s\n", frame, sent, busInfo)
	return nil
}
