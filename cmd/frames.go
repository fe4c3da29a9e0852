// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/sboxsim/pkg/sbox"
	"github.com/spf13/cobra"
)

var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "List the frames the simulator transmits",
	Long: `List every transmitted frame, sorted by identifier, with its rate and
initial payload. Frames declared in the --config file are included, so this is
a quick way to check a configuration before running it.`,
	Args: cobra.NoArgs,
	RunE: runFrames,
}

func init() {
	rootCmd.AddCommand(framesCmd)
}

func runFrames(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	box, err := sbox.New(cfg.Options(), cfg.FrameDefinitions()...)
	if err != nil {
		return fmt.Errorf("failed to build frame table: %w", err)
	}

	printFrameTable(os.Stdout, box.Frames().Sorted())
	return nil
}

func printFrameTable(w io.Writer, frames []*sbox.PeriodicFrame) {
	fmt.Fprintf(w, "%-10s %-24s %8s %-8s %s\n", "ID", "NAME", "RATE", "ENABLED", "PAYLOAD")
	for _, f := range frames {
		enabled := "yes"
		if !f.Enabled() {
			enabled = "no"
		}
		fmt.Fprintf(w, "0x%-8X %-24s %6gHz %-8s % X\n", f.ID(), f.Name(), f.RateHz(), enabled, f.Payload())
	}
}
