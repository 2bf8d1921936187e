package usecase

import (
	"testing"
	"time"
)

func TestTradingDayClockCutoffBoundary(t *testing.T) {
	clock, err := NewTradingDayClock("01:00", "UTC")
	if err != nil {
		t.Fatalf("NewTradingDayClock failed: %v", err)
	}

	tests := []struct {
		name string
		ts   time.Time
		want time.Time
	}{
		{
			name: "one second before cutoff belongs to previous day",
			ts:   time.Date(2026, 3, 10, 0, 59, 59, 0, time.UTC),
			want: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at cutoff belongs to the new day",
			ts:   time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "midday stays on the same day",
			ts:   time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
			want: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "midnight rolls back to previous day",
			ts:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		got := clock.Normalize(tt.ts)
		if !got.Equal(tt.want) {
			t.Fatalf("%s: Normalize(%v) = %v, want %v", tt.name, tt.ts, got, tt.want)
		}
	}
}

func TestTradingDayClockTimezone(t *testing.T) {
	clock, err := NewTradingDayClock("01:00", "Asia/Shanghai")
	if err != nil {
		t.Fatalf("NewTradingDayClock failed: %v", err)
	}

	// 16:30 UTC is 00:30 the next day in Shanghai, before cutoff, so the
	// trading day is still the Shanghai previous calendar day.
	ts := time.Date(2026, 3, 10, 16, 30, 0, 0, time.UTC)
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := clock.Normalize(ts); !got.Equal(want) {
		t.Fatalf("Normalize(%v) = %v, want %v", ts, got, want)
	}

	// 17:30 UTC is 01:30 in Shanghai, past cutoff: new trading day.
	ts = time.Date(2026, 3, 10, 17, 30, 0, 0, time.UTC)
	want = time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if got := clock.Normalize(ts); !got.Equal(want) {
		t.Fatalf("Normalize(%v) = %v, want %v", ts, got, want)
	}
}

func TestTradingDayClockRejectsBadInput(t *testing.T) {
	if _, err := NewTradingDayClock("25:00", "UTC"); err == nil {
		t.Fatal("expected error for invalid cutoff")
	}
	if _, err := NewTradingDayClock("01:00", "Not/AZone"); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}
