// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/sboxsim/pkg/canbus"
	"golang.org/x/sync/errgroup"
)

// DefaultSendTimeout bounds a single frame transmission
const DefaultSendTimeout = 25 * time.Millisecond

// Scheduler runs one transmit goroutine per registered frame plus a single
// receive goroutine feeding inbound frames to the SBox
type Scheduler struct {
	box         *SBox
	bus         canbus.Bus
	log         FrameLog
	SendTimeout time.Duration
}

// NewScheduler connects an SBox to a bus. A nil log discards traffic.
func NewScheduler(box *SBox, bus canbus.Bus, log FrameLog) *Scheduler {
	if log == nil {
		log = DiscardFrameLog{}
	}
	return &Scheduler{
		box:         box,
		bus:         bus,
		log:         log,
		SendTimeout: DefaultSendTimeout,
	}
}

// Run blocks until ctx is cancelled or the bus fails. Cancellation is a clean
// stop and returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.receive(ctx)
	})
	for _, f := range s.box.Frames().All() {
		f := f
		g.Go(func() error {
			s.transmit(ctx, f)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) receive(ctx context.Context) error {
	for {
		f, err := s.bus.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, canbus.ErrClosed) {
				return fmt.Errorf("bus closed: %w", err)
			}
			return fmt.Errorf("receive failed: %w", err)
		}
		s.log.Record(Rx, f, s.box.now())
		s.box.HandleFrame(f)
	}
}

// transmit sends one frame every period. The first send is delayed by one
// period to stagger start-up, and later sends are scheduled from the previous
// deadline so the rate does not drift.
func (s *Scheduler) transmit(ctx context.Context, pf *PeriodicFrame) {
	period := pf.Period()
	if !sleepContext(ctx, period) {
		return
	}

	next := time.Now()
	for {
		if frame, ok := pf.Tick(); ok {
			s.send(ctx, pf, frame)
			next = next.Add(period)
			// Resynchronize rather than burst after a stall
			if behind := time.Since(next); behind > period {
				next = time.Now()
			}
		} else {
			next = time.Now().Add(period)
		}

		if !sleepContext(ctx, time.Until(next)) {
			return
		}
	}
}

func (s *Scheduler) send(ctx context.Context, pf *PeriodicFrame, frame canbus.Frame) {
	s.log.Record(Tx, frame, s.box.now())

	sendCtx, cancel := context.WithTimeout(ctx, s.SendTimeout)
	err := s.bus.Send(sendCtx, frame)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.box.stats.TxErrors.Add(1)
		s.box.logger.Warn("failed to send frame",
			"id", fmt.Sprintf("0x%03X", pf.ID()),
			"hz", pf.RateHz(),
			"error", err)
		return
	}
	s.box.stats.TxFrames.Add(1)
}

// sleepContext waits for d, returning false if ctx ends first
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
