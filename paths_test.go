package logagent

import (
	"strings"
	"testing"
	"time"
)

func TestJoinRemoteUsesBackslashes(t *testing.T) {
	got := joinRemote(`D:\CXJPos`, "Client", "logs", "2024-01-15")
	want := `D:\CXJPos\Client\logs\2024-01-15`
	if got != want {
		t.Fatalf("joinRemote = %q, want %q", got, want)
	}
	if strings.Contains(got, "/") {
		t.Fatalf("host separator leaked into remote path: %q", got)
	}
}

func TestJoinRemoteTrimsSeparators(t *testing.T) {
	got := joinRemote(`D:\CXJPos\`, `\Client\`, "logs/")
	want := `D:\CXJPos\Client\logs`
	if got != want {
		t.Fatalf("joinRemote = %q, want %q", got, want)
	}
}

func TestDailyLogPathBackendZipSuffix(t *testing.T) {
	base := `D:\CXJPos`
	if got := dailyLogPath(base, LogTypeBackend, "2024-01-15", 1); got != `D:\CXJPos\Backend\log\2024-01-15.zip` {
		t.Fatalf("offset 1 backend path = %q", got)
	}
	if got := dailyLogPath(base, LogTypeBackend, "2024-01-15", 3); !strings.HasSuffix(got, ".zip") {
		t.Fatalf("offset 3 backend path missing .zip: %q", got)
	}
	if got := dailyLogPath(base, LogTypeBackend, "2024-01-15", 0); got != `D:\CXJPos\Backend\log\2024-01-15` {
		t.Fatalf("offset 0 backend path = %q", got)
	}
}

func TestDailyLogPathClient(t *testing.T) {
	got := dailyLogPath(`D:\CXJPos`, LogTypeClient, "2024-01-15", 2)
	if got != `D:\CXJPos\Client\logs\2024-01-15` {
		t.Fatalf("client path = %q", got)
	}
}

func TestDailyLogPathUnknownKind(t *testing.T) {
	if got := dailyLogPath(`D:\CXJPos`, "bogus", "2024-01-15", 0); got != "" {
		t.Fatalf("unknown kind should derive no path, got %q", got)
	}
}

func TestLogDate(t *testing.T) {
	now := time.Date(2024, 1, 16, 9, 30, 0, 0, time.Local)
	if got := logDate(now, 1); got != "2024-01-15" {
		t.Fatalf("logDate offset 1 = %q", got)
	}
	if got := logDate(now, 0); got != "2024-01-16" {
		t.Fatalf("logDate offset 0 = %q", got)
	}
}

func TestSanitizeDeviceName(t *testing.T) {
	if got := sanitizeDeviceName(`华北/西小口店`); got != "华北_西小口店" {
		t.Fatalf("sanitize = %q", got)
	}
	if got := sanitizeDeviceName(`Store\A`); got != "Store_A" {
		t.Fatalf("sanitize = %q", got)
	}
	if got := sanitizeDeviceName("  "); got != "unknown-device" {
		t.Fatalf("empty name sanitize = %q", got)
	}
}
