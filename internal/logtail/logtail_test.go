package logtail

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestRead(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{name: "read all (0)", maxLines: 0, expected: expectedAll},
		{name: "read all (negative)", maxLines: -1, expected: expectedAll},
		{name: "read partial (5)", maxLines: 5, expected: expectedAll[5:]},
		{name: "read exactly all (10)", maxLines: 10, expected: expectedAll},
		{name: "read more than exists (20)", maxLines: 20, expected: expectedAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "nope.log"), 10)
	if err != nil || got != nil {
		t.Fatalf("Read(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestParse(t *testing.T) {
	line := `time=2025-03-01T12:00:00.000Z level=WARN msg="operation failed" kind=conflict error="api: status 409: Seats already booked" app=marquee`
	e := Parse(line)
	if e.Level != slog.LevelWarn || e.Message != "operation failed" {
		t.Fatalf("Parse = %#v", e)
	}
	if !e.Time.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("Time = %v", e.Time)
	}
	want := []Attr{
		{Key: "kind", Value: "conflict"},
		{Key: "error", Value: "api: status 409: Seats already booked"},
		{Key: "app", Value: "marquee"},
	}
	if !reflect.DeepEqual(e.Attrs, want) {
		t.Fatalf("Attrs = %#v, want %#v", e.Attrs, want)
	}

	plain := Parse("panic: something odd happened")
	if plain.Message != "panic: something odd happened" || len(plain.Attrs) != 0 {
		t.Fatalf("plain line = %#v", plain)
	}
}

func TestParseAll_FiltersByLevel(t *testing.T) {
	lines := []string{
		`time=2025-03-01T12:00:00Z level=DEBUG msg="cache sweep" evicted=2`,
		`time=2025-03-01T12:00:01Z level=INFO msg="seats booked" session_id=7`,
		"",
		`time=2025-03-01T12:00:02Z level=ERROR msg="poll failed"`,
	}
	got := ParseAll(lines, slog.LevelInfo)
	if len(got) != 2 || got[0].Message != "seats booked" || got[1].Level != slog.LevelError {
		t.Fatalf("ParseAll = %#v", got)
	}
}
