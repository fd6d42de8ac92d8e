package sfs

import "testing"

func TestTimestampRoundTrip(t *testing.T) {
	cases := []struct {
		sec, nsec int64
		wantSec   int64
	}{
		{0, 0, 0},
		{1, 0, 1},
		{1700000000, 500000000, 1700000000},
		// 999999999ns rounds to 65536 ticks, which carries into the next
		// second.
		{1, 999999999, 2},
		{-1, 0, -1},
	}
	for _, c := range cases {
		ts := EncodeTimestamp(c.sec, c.nsec)
		gotSec, gotNsec := DecodeTimestamp(ts)
		if gotSec != c.wantSec {
			t.Errorf("EncodeTimestamp(%d,%d): decoded sec = %d, want %d", c.sec, c.nsec, gotSec, c.wantSec)
		}
		// nsec round-trips only to the on-disk resolution (1/65536s); allow
		// the formula's own rounding error, checked via re-encoding instead
		// of an exact nsec comparison.
		reEncoded := EncodeTimestamp(gotSec, gotNsec)
		if reEncoded != ts {
			t.Errorf("EncodeTimestamp(%d,%d): re-encode after decode = %d, want %d", c.sec, c.nsec, reEncoded, ts)
		}
	}
}

func TestEncodeTimestampFormula(t *testing.T) {
	// 1 second exactly should be 1<<16.
	if got := EncodeTimestamp(1, 0); got != Timestamp(1<<16) {
		t.Errorf("EncodeTimestamp(1,0) = %d, want %d", got, Timestamp(1<<16))
	}
}
