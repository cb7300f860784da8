package main

import (
	"os"
	"testing"
)

func TestGetenvFallsBackToDefault(t *testing.T) {
	os.Unsetenv("METRICS_ADDR_TEST_KEY")
	if got := getenv("METRICS_ADDR_TEST_KEY", ":9109"); got != ":9109" {
		t.Fatalf("got %q, want default", got)
	}
}

func TestGetenvPrefersSetValue(t *testing.T) {
	t.Setenv("METRICS_ADDR_TEST_KEY", ":1234")
	if got := getenv("METRICS_ADDR_TEST_KEY", ":9109"); got != ":1234" {
		t.Fatalf("got %q, want set value", got)
	}
}
