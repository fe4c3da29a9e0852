// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/Thermoquad/sboxsim/pkg/canbus"
	"github.com/Thermoquad/sboxsim/pkg/config"
	"golang.org/x/term"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("SBOX_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenBus opens the bus selected by the connection flags and describes it
func OpenBus() (canbus.Bus, string, error) {
	switch {
	case useVirtual:
		return canbus.NewVirtualBus().Open(), "Virtual bus", nil

	case canIface != "":
		bus, err := canbus.DialSocketCAN(canIface)
		if err != nil {
			return nil, "", err
		}
		return bus, fmt.Sprintf("SocketCAN: %s", canIface), nil

	case portName != "":
		bus, err := canbus.DialSLCAN(portName, baudRate, bitrate)
		if err != nil {
			return nil, "", err
		}
		return bus, fmt.Sprintf("SLCAN: %s @ %d baud, %d bit/s", portName, baudRate, bitrate), nil

	case wsURL != "":
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}
		bus, err := canbus.DialWebSocket(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return bus, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	return nil, "", fmt.Errorf("one of --virtual, --iface, --port or --url must be specified")
}

// loadConfig reads --config, or returns the defaults
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}
