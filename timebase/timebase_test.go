// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package timebase

import "testing"

func TestElapsedWrap(t *testing.T) {
	cases := []struct {
		now, t0, delta uint32
		want           bool
	}{
		{now: 100, t0: 0, delta: 100, want: true},
		{now: 99, t0: 0, delta: 100, want: false},
		{now: 5, t0: 0xFFFFFFF0, delta: 20, want: true}, // wraps past 1<<32
		{now: 5, t0: 0xFFFFFFF0, delta: 22, want: false}, // 21ms have elapsed
	}
	for _, c := range cases {
		if got := Elapsed(c.now, c.t0, c.delta); got != c.want {
			t.Errorf("Elapsed(%d,%d,%d) = %v, want %v", c.now, c.t0, c.delta, got, c.want)
		}
	}
}

func TestFakeClockKicks(t *testing.T) {
	f := &Fake{}
	f.Set(10)
	if got := f.NowMS(); got != 10 {
		t.Fatalf("NowMS() = %d, want 10", got)
	}
	f.RestartWDT()
	f.RestartWDT()
	if got := f.Kicks(); got != 2 {
		t.Fatalf("Kicks() = %d, want 2", got)
	}
	if got := f.Advance(5); got != 15 {
		t.Fatalf("Advance(5) = %d, want 15", got)
	}
}
