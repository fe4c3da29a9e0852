// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !linux

package canbus

import "errors"

// DialSocketCAN is only available on Linux
func DialSocketCAN(iface string) (Bus, error) {
	return nil, errors.New("canbus: SocketCAN is only supported on linux")
}
