// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Bus selection flags
	useVirtual bool
	canIface   string
	portName   string
	baudRate   int
	bitrate    int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "sbox-sim",
	Short: "SBox high-voltage contactor box CAN simulator",
	Long: `sbox-sim - Emulates the CAN behavior of an EV battery pack contactor box.

The simulator accepts contactor setup (0x300) and control (0x100) frames from a
vehicle controller, tracks the contactor and precharge state those commands
imply, and transmits current and voltage telemetry at 100 Hz so a real
controller can be exercised without high-voltage hardware.

Bus modes:
  Virtual:   --virtual
  SocketCAN: --iface can0
  SLCAN:     --port /dev/ttyACM0 [--baud 115200] [--bitrate 500000]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the SBOX_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&useVirtual, "virtual", false, "Use an in-process virtual bus")
	rootCmd.PersistentFlags().StringVarP(&canIface, "iface", "i", "", "SocketCAN interface (linux)")

	// SLCAN flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "SLCAN serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Serial baud rate (SLCAN only)")
	rootCmd.PersistentFlags().IntVar(&bitrate, "bitrate", 500000, "CAN bitrate (SLCAN only)")

	// WebSocket flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
