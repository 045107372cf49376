package calculator

import (
	"errors"
	"math"
	"testing"
)

func TestSMA_Values(t *testing.T) {
	data := []float64{11, 12, 13, 14, 20, 16}
	got := sma(data, 3)
	expected := []float64{0, 0, (11 + 12 + 13) / 3.0, (12 + 13 + 14) / 3.0, (13 + 14 + 20) / 3.0, (14 + 20 + 16) / 3.0}
	for i := range data {
		if i < 2 {
			if !math.IsNaN(got[i]) {
				t.Errorf("index %d: expected NaN before warm-up, got %v", i, got[i])
			}
			continue
		}
		if math.Abs(got[i]-expected[i]) > 1e-12 {
			t.Errorf("index %d: expected %v, got %v", i, expected[i], got[i])
		}
	}
}

func TestHighestLowest(t *testing.T) {
	data := []float64{3, 1, 4, 1, 5, 9, 2}
	hi := highest(data, 3)
	lo := lowest(data, 3)
	wantHi := []float64{4, 4, 5, 9, 9}
	wantLo := []float64{1, 1, 1, 1, 2}
	for i := 2; i < len(data); i++ {
		if hi[i] != wantHi[i-2] || lo[i] != wantLo[i-2] {
			t.Errorf("index %d: got hi=%v lo=%v, want hi=%v lo=%v", i, hi[i], lo[i], wantHi[i-2], wantLo[i-2])
		}
	}
}

func TestRangePosition(t *testing.T) {
	tests := []struct {
		current, high, low float64
		want               float64
	}{
		{10, 20, 10, 0},
		{20, 20, 10, 1},
		{15, 20, 10, 0.5},
	}
	for _, tt := range tests {
		got, err := RangePosition(tt.current, tt.high, tt.low)
		if err != nil || got != tt.want {
			t.Errorf("RangePosition(%v,%v,%v) = %v, %v; want %v", tt.current, tt.high, tt.low, got, err, tt.want)
		}
	}
	if _, err := RangePosition(5, 5, 5); !errors.Is(err, ErrDegenerateRange) {
		t.Errorf("expected ErrDegenerateRange, got %v", err)
	}
	for _, current := range []float64{25, 9.99} {
		if _, err := RangePosition(current, 20, 10); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("RangePosition(%v, 20, 10): expected ErrOutOfRange, got %v", current, err)
		}
	}
}

func TestSmoothers(t *testing.T) {
	ema := NewExponential(3)
	v := ema.Next(math.NaN(), 30)
	if v != 30 {
		t.Fatalf("expected seed 30, got %v", v)
	}
	v = ema.Next(v, 60)
	if math.Abs(v-40) > 1e-12 {
		t.Fatalf("expected 40, got %v", v)
	}

	sma := NewSimpleAverage(2)
	if got := sma.Next(math.NaN(), 10); got != 10 {
		t.Fatalf("expected partial mean 10, got %v", got)
	}
	sma.Next(0, 20)
	if got := sma.Next(0, 40); got != 30 {
		t.Fatalf("expected 30, got %v", got)
	}

	if _, err := SmootherByName("wma"); err == nil {
		t.Fatal("expected error for unknown smoother")
	}
}
