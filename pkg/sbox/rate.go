// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox

import "time"

// MessageRate counts inbound frames per wall-clock second. The reported rate
// is the count of the last complete second.
type MessageRate struct {
	second  int64
	current int
	last    int
}

// Observe records one message received at now
func (r *MessageRate) Observe(now time.Time) {
	sec := now.Unix()
	if sec != r.second {
		if sec == r.second+1 {
			r.last = r.current
		} else {
			r.last = 0
		}
		r.current = 0
		r.second = sec
	}
	r.current++
}

// PerSecond returns the number of messages received during the second
// before now
func (r *MessageRate) PerSecond(now time.Time) int {
	switch now.Unix() {
	case r.second:
		return r.last
	case r.second + 1:
		return r.current
	default:
		return 0
	}
}
