package units

import (
	"math"
	"testing"
)

func TestDegreesToArcsec(t *testing.T) {
	if got := DegreesToArcsec(1); got != 3600 {
		t.Errorf("DegreesToArcsec(1) = %v, want 3600", got)
	}
	if got := DegreesToArcsec(-0.5); got != -1800 {
		t.Errorf("DegreesToArcsec(-0.5) = %v, want -1800", got)
	}
}

func TestArcsecToDegrees(t *testing.T) {
	if got := ArcsecToDegrees(7200); got != 2 {
		t.Errorf("ArcsecToDegrees(7200) = %v, want 2", got)
	}
}

func TestRadiansToDegrees(t *testing.T) {
	if got := RadiansToDegrees(math.Pi); math.Abs(got-180) > 1e-12 {
		t.Errorf("RadiansToDegrees(pi) = %v, want 180", got)
	}
}

func TestNormalizeDegrees(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{360, 0},
		{370, 10},
		{-10, 350},
		{-370, 350},
		{725, 5},
	}
	for _, tt := range tests {
		if got := NormalizeDegrees(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeDegrees(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDecimalToDMS(t *testing.T) {
	tests := []struct {
		in   float64
		want DMS
	}{
		{49.2827, DMS{Degrees: 49, Minutes: 16, Seconds: 58}},
		{-123.1207, DMS{Degrees: 123, Minutes: 7, Seconds: 15, Negative: true}},
		{0, DMS{}},
		// 59.999.. seconds must carry into the next minute, not report 60
		{10.9999999, DMS{Degrees: 11}},
	}
	for _, tt := range tests {
		if got := DecimalToDMS(tt.in); got != tt.want {
			t.Errorf("DecimalToDMS(%v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestDMSRoundTrip(t *testing.T) {
	for _, deg := range []float64{0, 12.5, -49.2827, 179.9999, -90} {
		got := DecimalToDMS(deg).Decimal()
		// one-second quantization is the best the format can do
		if math.Abs(got-deg) > 1.0/3600 {
			t.Errorf("round trip of %v gave %v", deg, got)
		}
	}
}
