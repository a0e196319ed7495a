package log

import (
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		" warn ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelRanking(t *testing.T) {
	defer SetLevel(LevelInfo)

	SetLevel(LevelWarn)
	if enabled(LevelDebug) || enabled(LevelInfo) {
		t.Fatal("sub-threshold levels enabled")
	}
	if !enabled(LevelWarn) || !enabled(LevelError) {
		t.Fatal("threshold levels disabled")
	}
}

func TestFormatKVs(t *testing.T) {
	got := formatKVs("a", 1, "b", "two")
	if got != " a=1 b=two" {
		t.Fatalf("got %q", got)
	}

	// odd trailing argument is dropped, non-string keys skipped
	got = formatKVs("a", 1, "dangling")
	if strings.Contains(got, "dangling") {
		t.Fatalf("got %q", got)
	}
	got = formatKVs(42, "x", "b", 2)
	if strings.Contains(got, "x") || !strings.Contains(got, "b=2") {
		t.Fatalf("got %q", got)
	}
}
