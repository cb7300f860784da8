package timeutil

import "testing"

func TestParseInt64ToTimestampMicrosBands(t *testing.T) {
	nowBefore := NowMicros()
	if got := ParseInt64ToTimestampMicros(0); got < nowBefore {
		t.Fatalf("v==0 should resolve to now, got %d before %d", got, nowBefore)
	}
	micros := int64(1700000000000000)
	if got := ParseInt64ToTimestampMicros(micros); got != micros {
		t.Fatalf("microseconds passthrough: got %d want %d", got, micros)
	}
	millis := int64(1700000000000)
	if got := ParseInt64ToTimestampMicros(millis); got != millis*1000 {
		t.Fatalf("millis*1000: got %d want %d", got, millis*1000)
	}
	seconds := int64(1700000000)
	if got := ParseInt64ToTimestampMicros(seconds); got != seconds*1_000_000 {
		t.Fatalf("seconds*1e6: got %d want %d", got, seconds*1_000_000)
	}
	nanos := int64(1700000000000000000)
	if got := ParseInt64ToTimestampMicros(nanos); got != nanos/1000 {
		t.Fatalf("nanos/1000: got %d want %d", got, nanos/1000)
	}
}

func TestParseInt64ToTimestampMicrosMonotonicWithinBand(t *testing.T) {
	a := int64(1700000000000000)
	b := a + 1000
	if !(ParseInt64ToTimestampMicros(a) <= ParseInt64ToTimestampMicros(b)) {
		t.Fatalf("expected monotonic within micros band")
	}
}

func TestParseTimestampStringFormats(t *testing.T) {
	cases := []string{
		"2024-01-02T15:04:05Z",
		"2024-01-02T15:04:05.123456Z",
		"2024-01-02 15:04:05",
		"2024-01-02T15:04:05 UTC",
		"Tue, 02 Jan 2024 15:04:05 +0000",
	}
	for _, c := range cases {
		if _, err := ParseTimestampString(c); err != nil {
			t.Errorf("ParseTimestampString(%q) failed: %v", c, err)
		}
	}
	if _, err := ParseTimestampString("not a time"); err == nil {
		t.Fatalf("expected error for garbage input")
	} else if err.Error() != "invalid time format" {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestParseMillisecondsIntegerIsSeconds(t *testing.T) {
	got, err := ParseMilliseconds("30")
	if err != nil {
		t.Fatal(err)
	}
	if got != 30000 {
		t.Fatalf("got %d want 30000", got)
	}
}

func TestParseMillisecondsUnits(t *testing.T) {
	cases := map[string]int64{
		"5h":     5 * 3600 * 1000,
		"1d":     86400 * 1000,
		"2w":     2 * 86400 * 7 * 1000,
		"1y":     365 * 86400 * 1000,
		"500ms":  500,
		"1h30m":  90 * 60 * 1000,
		"10s":    10000,
	}
	for in, want := range cases {
		got, err := ParseMilliseconds(in)
		if err != nil {
			t.Errorf("ParseMilliseconds(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseMilliseconds(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseMillisecondsMissingUnitAtZero(t *testing.T) {
	if _, err := ParseMilliseconds("h5"); err == nil {
		t.Fatalf("expected error for missing leading digits")
	}
}

func TestValidateAndAdjustHistogramIntervalIdempotent(t *testing.T) {
	for _, in := range []int64{1, 7, 100, 3601, 604800, 90000} {
		adjusted := ValidateAndAdjustHistogramInterval(in)
		twice := ValidateAndAdjustHistogramInterval(adjusted)
		if adjusted != twice {
			t.Errorf("not idempotent for %d: %d != %d", in, adjusted, twice)
		}
		if secondsPerDay%adjusted != 0 && adjusted%secondsPerDay != 0 {
			t.Errorf("adjusted value %d for input %d violates day divisor/multiple invariant", adjusted, in)
		}
	}
}

func TestHistogramIntervalExamples(t *testing.T) {
	if got := ValidateAndAdjustHistogramInterval(5 * 3600); got != 6*3600 {
		t.Fatalf("5 hour -> got %d want %d", got, 6*3600)
	}
	if got := ValidateAndAdjustHistogramInterval(7 * 86400); got != 7*86400 {
		t.Fatalf("7 day -> got %d want %d (unchanged)", got, 7*86400)
	}
}
