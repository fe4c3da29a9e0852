// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package canbus

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SLCAN (Lawicel) serial protocol
const (
	slcanTerminator = '\r'
	slcanBell       = 0x07 // adapter reports a rejected command
	slcanMaxLine    = 32
	slcanReadPoll   = 100 * time.Millisecond
)

// slcanBitrates maps bus bitrates to the "Sn" setup command digit
var slcanBitrates = map[int]byte{
	10000:   '0',
	20000:   '1',
	50000:   '2',
	100000:  '3',
	125000:  '4',
	250000:  '5',
	500000:  '6',
	800000:  '7',
	1000000: '8',
}

type slcanBus struct {
	port    serial.Port
	writeMu sync.Mutex

	frames    chan Frame
	done      chan struct{}
	closeOnce sync.Once

	failed  chan struct{}
	readErr error
}

// DialSLCAN opens a USB-serial CAN adapter speaking the SLCAN ASCII protocol
// (CANable, CANUSB and clones), configures the bus bitrate and opens the
// channel.
func DialSLCAN(portName string, baudRate int, bitrate int) (Bus, error) {
	code, ok := slcanBitrates[bitrate]
	if !ok {
		return nil, fmt.Errorf("unsupported SLCAN bitrate %d", bitrate)
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}
	if err := port.SetReadTimeout(slcanReadPoll); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %v", err)
	}

	// Close any channel left open by a previous session before configuring
	for _, cmd := range []string{"C\r", "S" + string(code) + "\r", "O\r"} {
		if _, err := port.Write([]byte(cmd)); err != nil {
			port.Close()
			return nil, fmt.Errorf("SLCAN setup failed: %v", err)
		}
	}

	b := &slcanBus{
		port:   port,
		frames: make(chan Frame, virtualQueueSize),
		done:   make(chan struct{}),
		failed: make(chan struct{}),
	}
	go b.readLoop()
	return b, nil
}

func (b *slcanBus) Send(ctx context.Context, frame Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	select {
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	line := encodeSLCAN(frame)
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_, err := b.port.Write([]byte(line))
	return err
}

func (b *slcanBus) Receive(ctx context.Context) (Frame, error) {
	select {
	case f := <-b.frames:
		return f, nil
	case <-b.failed:
		return Frame{}, b.readErr
	case <-b.done:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (b *slcanBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		b.writeMu.Lock()
		b.port.Write([]byte("C\r"))
		b.writeMu.Unlock()
		err = b.port.Close()
	})
	return err
}

// readLoop splits the serial byte stream into SLCAN lines and forwards
// received data frames
func (b *slcanBus) readLoop() {
	buf := make([]byte, 128)
	line := make([]byte, 0, slcanMaxLine)
	for {
		n, err := b.port.Read(buf)
		if err != nil {
			select {
			case <-b.done:
			default:
				b.readErr = fmt.Errorf("SLCAN read failed: %w", err)
				close(b.failed)
			}
			return
		}

		for _, c := range buf[:n] {
			switch {
			case c == slcanTerminator || c == slcanBell:
				if f, ok := parseSLCAN(line); ok {
					select {
					case b.frames <- f:
					case <-b.done:
						return
					}
				}
				line = line[:0]
			case len(line) < slcanMaxLine:
				line = append(line, c)
			default:
				// Overlong garbage, resynchronize on the next terminator
				line = line[:0]
			}
		}
	}
}

// encodeSLCAN renders a frame as a transmit command, e.g. "t1004A6000000\r"
func encodeSLCAN(f Frame) string {
	var s []byte
	if f.Extended {
		s = append(s, 'T')
		s = append(s, fmt.Sprintf("%08X", f.ID&MaxExtendedID)...)
	} else {
		s = append(s, 't')
		s = append(s, fmt.Sprintf("%03X", f.ID&MaxStandardID)...)
	}
	s = append(s, '0'+f.Len)
	for _, d := range f.Payload() {
		s = append(s, fmt.Sprintf("%02X", d)...)
	}
	s = append(s, slcanTerminator)
	return string(s)
}

var errSLCANLine = errors.New("canbus: malformed SLCAN frame")

// parseSLCAN decodes a received "t"/"T" line. Acknowledgements, status
// replies and remote frames are not data frames and report false.
func parseSLCAN(line []byte) (Frame, bool) {
	f, err := decodeSLCAN(line)
	return f, err == nil
}

func decodeSLCAN(line []byte) (Frame, error) {
	if len(line) == 0 {
		return Frame{}, errSLCANLine
	}
	var idLen int
	var f Frame
	switch line[0] {
	case 't':
		idLen = 3
	case 'T':
		idLen = 8
		f.Extended = true
	default:
		return Frame{}, errSLCANLine
	}
	if len(line) < 1+idLen+1 {
		return Frame{}, errSLCANLine
	}

	id, err := strconv.ParseUint(string(line[1:1+idLen]), 16, 32)
	if err != nil {
		return Frame{}, errSLCANLine
	}
	f.ID = uint32(id)

	dlc := line[1+idLen]
	if dlc < '0' || dlc > '8' {
		return Frame{}, errSLCANLine
	}
	f.Len = dlc - '0'

	// Some adapters append a 4 digit timestamp after the data
	data := line[2+idLen:]
	if len(data) < int(f.Len)*2 {
		return Frame{}, errSLCANLine
	}
	if _, err := hex.Decode(f.Data[:f.Len], data[:int(f.Len)*2]); err != nil {
		return Frame{}, errSLCANLine
	}
	return f, f.Validate()
}
