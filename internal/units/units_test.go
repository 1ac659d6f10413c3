package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false, want true", u)
		}
	}
	for _, u := range []string{"", "knots", "MPH", "m/s"} {
		if IsValid(u) {
			t.Errorf("IsValid(%q) = true, want false", u)
		}
	}
}

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name  string
		mps   float64
		units string
		want  float64
	}{
		{"mps passthrough", 10, MPS, 10},
		{"to kmh", 10, KMPH, 36},
		{"kph alias", 10, KPH, 36},
		{"to mph", 10, MPH, 22.3694},
		{"unknown unit falls back to mps", 10, "furlongs", 10},
		{"zero speed", 0, MPH, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertSpeed(tt.mps, tt.units)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ConvertSpeed(%v, %q) = %v, want %v", tt.mps, tt.units, got, tt.want)
			}
		})
	}
}
