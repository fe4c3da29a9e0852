// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// sbox-sim - SBox Contactor Box CAN Simulator
//
// Emulates the CAN traffic of an EV battery pack contactor box so vehicle
// controllers can be tested without high-voltage hardware.

package main

import (
	"fmt"
	"os"

	"github.com/Thermoquad/sboxsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
