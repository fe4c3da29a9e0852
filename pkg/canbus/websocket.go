// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package canbus

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsDialTimeout      = 15 * time.Second

	// A write that times out leaves the connection unusable, so writes get a
	// fixed deadline and Send's context only bounds the queueing.
	wsWriteTimeout = 5 * time.Second
)

// wireFrame is the CAN-over-WebSocket encoding: each binary message carries
// one CBOR array [id, extended, data].
type wireFrame struct {
	_        struct{} `cbor:",toarray"`
	ID       uint32
	Extended bool
	Data     []byte
}

// EncodeWireFrame encodes a frame as a CBOR [id, extended, data] array
func EncodeWireFrame(f Frame) ([]byte, error) {
	return cbor.Marshal(wireFrame{ID: f.ID, Extended: f.Extended, Data: f.Payload()})
}

// DecodeWireFrame decodes a CBOR [id, extended, data] array
func DecodeWireFrame(data []byte) (Frame, error) {
	var w wireFrame
	if err := cbor.Unmarshal(data, &w); err != nil {
		return Frame{}, fmt.Errorf("failed to decode CBOR frame: %w", err)
	}
	if len(w.Data) > MaxDataLen {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrInvalidLen, len(w.Data))
	}
	f := Frame{ID: w.ID, Extended: w.Extended, Len: uint8(len(w.Data))}
	copy(f.Data[:], w.Data)
	return f, f.Validate()
}

type wsBus struct {
	conn *websocket.Conn

	frames    chan Frame
	outgoing  chan []byte
	done      chan struct{}
	closeOnce sync.Once
	flushed   chan struct{}

	// failed is closed once when either the reader or the writer loses the
	// connection; err holds the cause
	failed   chan struct{}
	failOnce sync.Once
	err      error
}

// DialWebSocket connects to a CAN gateway exposing frames over WebSocket,
// with optional HTTP Basic auth
func DialWebSocket(wsURL, username, password string, skipSSLVerify bool) (Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: wsHandshakeTimeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsDialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	return NewWebSocketBus(conn), nil
}

// NewWebSocketBus wraps an established connection. Either side of a
// connection may use it, so a gateway can serve the same encoding.
func NewWebSocketBus(conn *websocket.Conn) Bus {
	b := &wsBus{
		conn:     conn,
		frames:   make(chan Frame, virtualQueueSize),
		outgoing: make(chan []byte, virtualQueueSize),
		done:     make(chan struct{}),
		flushed:  make(chan struct{}),
		failed:   make(chan struct{}),
	}
	go b.readLoop()
	go b.writeLoop()
	return b
}

// Send queues the frame for the writer. ctx bounds the wait for queue space.
func (b *wsBus) Send(ctx context.Context, frame Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	select {
	case <-b.failed:
		return b.err
	default:
	}

	data, err := EncodeWireFrame(frame)
	if err != nil {
		return err
	}

	select {
	case b.outgoing <- data:
		return nil
	case <-b.failed:
		return b.err
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *wsBus) Receive(ctx context.Context) (Frame, error) {
	select {
	case f := <-b.frames:
		return f, nil
	case <-b.failed:
		// Frames read before the failure are still delivered
		select {
		case f := <-b.frames:
			return f, nil
		default:
			return Frame{}, b.err
		}
	case <-b.done:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (b *wsBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		<-b.flushed
		b.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = b.conn.Close()
	})
	return err
}

// fail records the first transport error and tears the connection down
func (b *wsBus) fail(err error) {
	select {
	case <-b.done:
		return
	default:
	}
	b.failOnce.Do(func() {
		b.err = err
		close(b.failed)
		b.conn.Close()
	})
}

func (b *wsBus) writeLoop() {
	defer close(b.flushed)
	for {
		select {
		case data := <-b.outgoing:
			if !b.write(data) {
				return
			}
		case <-b.failed:
			return
		case <-b.done:
			// Frames queued before Close still go out
			for {
				select {
				case data := <-b.outgoing:
					if !b.write(data) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (b *wsBus) write(data []byte) bool {
	b.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := b.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		b.fail(fmt.Errorf("websocket write failed: %w", err))
		return false
	}
	return true
}

func (b *wsBus) readLoop() {
	for {
		messageType, data, err := b.conn.ReadMessage()
		if err != nil {
			b.fail(fmt.Errorf("websocket read failed: %w", err))
			return
		}

		// Text messages are not part of the frame encoding
		if messageType != websocket.BinaryMessage {
			continue
		}

		f, err := DecodeWireFrame(data)
		if err != nil {
			continue
		}
		select {
		case b.frames <- f:
		case <-b.done:
			return
		}
	}
}
