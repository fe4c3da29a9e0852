// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/sboxsim/pkg/sbox"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	noUI        bool
	logFilePath string
	verbose     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the contactor box simulator",
	Long: `Run the SBox simulator on the selected bus.

The simulator transmits Current (0x200), PackVoltage (0x210) and
PostContactorVoltage (0x220) at 100 Hz, plus any frames declared in the
configuration file, and applies contactor commands received on 0x100 and
0x300.

An operator panel shows contactor state, output voltage and inbound message
rate, and lets you change the pack voltage and current and enable or disable
individual transmitted frames. Tab switches between fields, Enter applies a
value, Space toggles the selected frame.

With --no-ui, or when stdout is not a terminal, the simulator runs headless
and logs to stderr until interrupted.

Every frame sent or received is appended to a log file, named
<timestamp>-sbox-sim.log unless --log-file is given.`,
	RunE: runSimulator,
}

func init() {
	runCmd.Flags().BoolVar(&noUI, "no-ui", false, "Run headless without the operator panel")
	runCmd.Flags().StringVar(&logFilePath, "log-file", "", "Frame log file (default <timestamp>-sbox-sim.log)")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log debug diagnostics")
	rootCmd.AddCommand(runCmd)
}

func runSimulator(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	headless := noUI || !term.IsTerminal(int(os.Stdout.Fd()))

	var logger *slog.Logger
	var events *eventHandler
	if headless {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	} else {
		events = newEventHandler(256, level)
		logger = slog.New(events)
	}

	opts := cfg.Options()
	opts.Logger = logger
	box, err := sbox.New(opts, cfg.FrameDefinitions()...)
	if err != nil {
		return fmt.Errorf("failed to build frame table: %w", err)
	}

	bus, busInfo, err := OpenBus()
	if err != nil {
		return err
	}
	defer bus.Close()

	if logFilePath == "" {
		logFilePath = sbox.DefaultFrameLogName(time.Now())
	}
	frameLog, err := sbox.CreateTextFrameLog(logFilePath)
	if err != nil {
		return err
	}
	defer frameLog.Close()

	fmt.Fprintf(os.Stderr, "Writing CAN messages to %s\n", logFilePath)

	scheduler := sbox.NewScheduler(box, bus, frameLog)

	if headless {
		return runHeadless(box, scheduler, busInfo)
	}
	return runPanel(box, scheduler, busInfo, events)
}

// runHeadless runs the scheduler until SIGINT or SIGTERM
func runHeadless(box *sbox.SBox, scheduler *sbox.Scheduler, busInfo string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	box.Logger().Info("simulator started", "bus", busInfo, "frames", box.Frames().Len())
	err := scheduler.Run(ctx)

	st := box.Stats().Snapshot()
	box.Logger().Info("simulator stopped",
		"tx", st.TxFrames,
		"tx_errors", st.TxErrors,
		"rx", st.RxFrames)
	return err
}

// runPanel runs the scheduler in the background for as long as the operator
// panel is open
func runPanel(box *sbox.SBox, scheduler *sbox.Scheduler, busInfo string, events *eventHandler) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := initialPanelModel(box, busInfo, events.ch)
	p := tea.NewProgram(m, tea.WithAltScreen())

	done := make(chan error, 1)
	go func() {
		err := scheduler.Run(ctx)
		p.Send(schedulerStoppedMsg{err: err})
		done <- err
	}()

	_, tuiErr := p.Run()

	// Stop the scheduler and wait for the transmit tasks to exit
	cancel()
	err := <-done

	if tuiErr != nil {
		return fmt.Errorf("TUI error: %v", tuiErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
