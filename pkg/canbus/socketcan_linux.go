// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build linux

package canbus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// Linux struct can_frame
const (
	canFrameSize = 16
	canEffFlag   = 0x80000000
	canRtrFlag   = 0x40000000
	canErrFlag   = 0x20000000
	canEffMask   = 0x1FFFFFFF
	canSffMask   = 0x7FF

	// pollIntervalMs bounds how long a blocked call waits before re-checking
	// its context
	pollIntervalMs = 50
)

type socketCAN struct {
	fd        int
	closeOnce sync.Once
	done      chan struct{}

	// Send and Receive hold mu shared while they use fd, so Close never
	// releases the descriptor under a blocked Poll or Read
	mu sync.RWMutex
}

// DialSocketCAN opens a raw CAN socket bound to a network interface such as
// "can0" or "vcan0".
func DialSocketCAN(iface string) (Bus, error) {
	netIf, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", iface, err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("failed to open CAN socket: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: netIf.Index}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to bind CAN socket to %s: %w", iface, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}

	return &socketCAN{fd: fd, done: make(chan struct{})}, nil
}

func (s *socketCAN) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		err = unix.Close(s.fd)
		s.mu.Unlock()
	})
	return err
}

func (s *socketCAN) Send(ctx context.Context, frame Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	buf := marshalCANFrame(frame)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for {
		if err := s.checkOpen(ctx); err != nil {
			return err
		}
		n, err := unix.Write(s.fd, buf)
		switch {
		case err == nil && n != len(buf):
			return errors.New("canbus: short write")
		case err == nil:
			return nil
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.ENOBUFS):
			if err := s.wait(ctx, unix.POLLOUT); err != nil {
				return err
			}
		case errors.Is(err, unix.EINTR):
		default:
			return err
		}
	}
}

func (s *socketCAN) Receive(ctx context.Context) (Frame, error) {
	buf := make([]byte, canFrameSize)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for {
		if err := s.checkOpen(ctx); err != nil {
			return Frame{}, err
		}
		n, err := unix.Read(s.fd, buf)
		switch {
		case err == nil && n != canFrameSize:
			return Frame{}, errors.New("canbus: short read")
		case err == nil:
			f, ok := unmarshalCANFrame(buf)
			if !ok {
				continue // error and remote frames
			}
			return f, nil
		case errors.Is(err, unix.EAGAIN):
			if err := s.wait(ctx, unix.POLLIN); err != nil {
				return Frame{}, err
			}
		case errors.Is(err, unix.EINTR):
		default:
			return Frame{}, err
		}
	}
}

func (s *socketCAN) checkOpen(ctx context.Context) error {
	select {
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (s *socketCAN) wait(ctx context.Context, events int16) error {
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: events}}
	for {
		if err := s.checkOpen(ctx); err != nil {
			return err
		}
		n, err := unix.Poll(fds, pollIntervalMs)
		if err != nil && !errors.Is(err, unix.EINTR) {
			return err
		}
		if n > 0 {
			return nil
		}
	}
}

func marshalCANFrame(f Frame) []byte {
	id := f.ID
	if f.Extended {
		id |= canEffFlag
	}
	buf := make([]byte, canFrameSize)
	binary.NativeEndian.PutUint32(buf[0:4], id)
	buf[4] = f.Len
	copy(buf[8:], f.Data[:])
	return buf
}

func unmarshalCANFrame(buf []byte) (Frame, bool) {
	id := binary.NativeEndian.Uint32(buf[0:4])
	if id&(canErrFlag|canRtrFlag) != 0 {
		return Frame{}, false
	}
	var f Frame
	f.Extended = id&canEffFlag != 0
	if f.Extended {
		f.ID = id & canEffMask
	} else {
		f.ID = id & canSffMask
	}
	f.Len = buf[4]
	if f.Len > MaxDataLen {
		f.Len = MaxDataLen
	}
	copy(f.Data[:], buf[8:16])
	return f, true
}
