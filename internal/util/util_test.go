package util

import (
	"testing"
	"time"
)

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b {
		t.Fatal("expected distinct ids")
	}
	if _, err := ParseID(a); err != nil {
		t.Errorf("NewID() = %q is not a valid uuid", a)
	}
	if a > b {
		t.Errorf("expected time-ordered ids, got %s after %s", b, a)
	}
}

func TestParseID(t *testing.T) {
	got, err := ParseID("0190C9A1-7F3B-7C2E-9B5A-3D2F1E0A4B6C")
	if err != nil {
		t.Fatalf("ParseID() error = %v", err)
	}
	if got != "0190c9a1-7f3b-7c2e-9b5a-3d2f1e0a4b6c" {
		t.Errorf("ParseID() = %s, want lowercase form", got)
	}
	if _, err := ParseID("not-a-uuid"); err == nil {
		t.Error("expected error for invalid id")
	}
}

func TestDocumentNumber(t *testing.T) {
	tests := []struct {
		prefix string
		seq    int
		want   string
	}{
		{"MO", 1, "MO-000001"},
		{"QT", 42, "QT-000042"},
		{"SO", 1234567, "SO-1234567"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := FormatDocumentNumber(tt.prefix, tt.seq)
			if got != tt.want {
				t.Errorf("FormatDocumentNumber() = %s, want %s", got, tt.want)
			}
			seq, err := ParseDocumentNumber(tt.prefix, got)
			if err != nil {
				t.Fatalf("ParseDocumentNumber() error = %v", err)
			}
			if seq != tt.seq {
				t.Errorf("ParseDocumentNumber() = %d, want %d", seq, tt.seq)
			}
		})
	}

	for _, bad := range []string{"QT-000001", "MO-abc", "MO000001"} {
		if _, err := ParseDocumentNumber("MO", bad); err == nil {
			t.Errorf("ParseDocumentNumber(%q) expected error", bad)
		}
	}
}

func TestManualClock(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
	c := NewManualClock(start)

	if c.Now().Location() != time.UTC {
		t.Error("expected UTC clock")
	}
	c.Advance(90 * time.Minute)
	if want := start.Add(90 * time.Minute); !c.Now().Equal(want) {
		t.Errorf("Now() = %v, want %v", c.Now(), want)
	}

	later := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Errorf("Now() = %v, want %v", c.Now(), later)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	now := SystemClock{}.Now()
	if now.Nanosecond() != 0 {
		t.Error("expected system clock truncated to seconds")
	}
	got, err := ParseTimestamp(FormatTimestamp(now))
	if err != nil {
		t.Fatalf("ParseTimestamp() error = %v", err)
	}
	if !got.Equal(now) {
		t.Errorf("round trip = %v, want %v", got, now)
	}
}
