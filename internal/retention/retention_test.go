package retention

import (
	"testing"
	"time"

	"github.com/careloop/visit-media-service/internal/types"
)

func TestResolveExpiration(t *testing.T) {
	t0 := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	cases := []struct {
		policy types.RetentionPolicy
		want   time.Time
	}{
		{types.Retention7Days, t0.Add(7 * 24 * time.Hour)},
		{types.Retention30Days, t0.Add(30 * 24 * time.Hour)},
		{types.Retention1Year, t0.Add(365 * 24 * time.Hour)},
		{types.Retention7Years, t0.Add(7 * 365 * 24 * time.Hour)},
	}

	for _, c := range cases {
		got, err := ResolveExpiration(c.policy, t0)
		if err != nil {
			t.Fatalf("ResolveExpiration(%s): unexpected error: %v", c.policy, err)
		}
		if got == nil {
			t.Fatalf("ResolveExpiration(%s): expected a timestamp, got nil", c.policy)
		}
		if !got.Equal(c.want) {
			t.Fatalf("ResolveExpiration(%s) = %v, want %v", c.policy, got, c.want)
		}
	}
}

func TestResolveExpirationPermanent(t *testing.T) {
	got, err := ResolveExpiration(types.RetentionPermanent, time.Now())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("Expected nil expiry for permanent policy, got %v", got)
	}
}

func TestResolveExpirationUnknownPolicy(t *testing.T) {
	_, err := ResolveExpiration("forever", time.Now())
	if err == nil {
		t.Fatal("Expected error for unknown policy")
	}
}

// Fixed-day arithmetic: crossing a leap day must not produce calendar-year
// alignment.
func TestResolveExpirationLeapYear(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := ResolveExpiration(types.Retention1Year, t0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// 2024 is a leap year, so 365 days lands on Dec 31, not Jan 1.
	want := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
}
