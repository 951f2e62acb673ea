package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeSpaceSeparated(t *testing.T) {
	got, ok := ParseTime("2025-03-01 09:30:00")
	if !ok {
		t.Fatalf("expected ok")
	}
	want := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestParseTimeZonelessT(t *testing.T) {
	got, ok := ParseTime("2025-03-01T09:30:00")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Hour() != 9 || got.Minute() != 30 {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
	got = ParseTimeDefault("not-a-date", def)
	if !got.Equal(def) {
		t.Fatalf("expected default for garbage input")
	}
}

func TestParseIntDefault(t *testing.T) {
	if v := ParseIntDefault("", 7); v != 7 {
		t.Fatalf("got %d", v)
	}
	if v := ParseIntDefault("42", 7); v != 42 {
		t.Fatalf("got %d", v)
	}
	if v := ParseIntDefault("x", 7); v != 7 {
		t.Fatalf("got %d", v)
	}
}

func TestDigits(t *testing.T) {
	if got := Digits("sh600519"); got != "600519" {
		t.Fatalf("got %q", got)
	}
	if !IsDigits("600519") || IsDigits("sh600519") || IsDigits("") {
		t.Fatalf("IsDigits misclassified")
	}
}
