package generation_test

import (
	"errors"
	"testing"

	"reel/internal/generation"
	"reel/internal/services"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		seconds int
		want    generation.Duration
		cost    int64
		ok      bool
	}{
		{10, generation.DurationShort, 50, true},
		{15, generation.DurationLong, 70, true},
		{5, 0, 0, false},
		{20, 0, 0, false},
		{0, 0, 0, false},
	}
	for _, tc := range cases {
		d, err := generation.ParseDuration(tc.seconds)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParseDuration(%d) failed: %v", tc.seconds, err)
			}
			if d != tc.want || d.Cost() != tc.cost {
				t.Fatalf("ParseDuration(%d) = %v cost %d, want %v cost %d", tc.seconds, d, d.Cost(), tc.want, tc.cost)
			}
			continue
		}
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("ParseDuration(%d) should fail validation, got %v", tc.seconds, err)
		}
	}
}

func TestParseAspectRatio(t *testing.T) {
	if got, err := generation.ParseAspectRatio("landscape"); err != nil || got != generation.AspectLandscape {
		t.Fatalf("landscape parse: %v %v", got, err)
	}
	if got, err := generation.ParseAspectRatio(" Portrait "); err != nil || got != generation.AspectPortrait {
		t.Fatalf("portrait parse should trim and lowercase: %v %v", got, err)
	}
	if _, err := generation.ParseAspectRatio("square"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("square should fail validation, got %v", err)
	}
}
