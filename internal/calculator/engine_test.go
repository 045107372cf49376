package calculator

import (
	"errors"
	"math"
	"testing"
)

func TestCompute_WarmUp(t *testing.T) {
	e := mustEngine(DefaultConfig())
	if e.WarmUp() != 24 {
		t.Fatalf("expected warm-up 24, got %d", e.WarmUp())
	}

	closes := make([]float64, 24)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	bars := barsFromCloses(closes...)

	if _, err := e.Compute(bars[:23]); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for 23 bars, got %v", err)
	}

	series, err := e.Compute(bars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 23; i++ {
		if series[i].BBIReady || !math.IsNaN(series[i].BBI) {
			t.Fatalf("bar %d: bbi should be undefined", i)
		}
	}
	last := series[23]
	if !last.BBIReady {
		t.Fatal("bbi should be defined at exactly 24 bars")
	}
	// SMA3=23, SMA6=21.5, SMA12=18.5, SMA24=12.5
	if math.Abs(last.BBI-18.875) > 1e-9 {
		t.Errorf("expected bbi 18.875, got %v", last.BBI)
	}
}

func TestComputeKDJ_WarmUp(t *testing.T) {
	e := mustEngine(DefaultConfig())
	bars := waveBars(9)

	if _, err := e.ComputeKDJ(bars[:8]); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for 8 bars, got %v", err)
	}
	series, err := e.ComputeKDJ(bars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 8; i++ {
		if series[i].KDJReady {
			t.Fatalf("bar %d: kdj should be undefined", i)
		}
	}
	first := series[8]
	if !first.KDJReady {
		t.Fatal("kdj should be defined at exactly pk bars")
	}
	if first.BBIReady {
		t.Error("bbi should still be undefined")
	}
	// Seeded by the first rsv: k == d == j.
	if first.K != first.D || first.J != first.K {
		t.Errorf("expected seeded k=d=j, got k=%v d=%v j=%v", first.K, first.D, first.J)
	}
}

func TestKDJ_Recurrence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PK = 3
	e := mustEngine(cfg)
	// high = close+1, low = close-1
	bars := barsFromCloses(10, 11, 12, 11, 10)
	series, err := e.ComputeKDJ(bars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// bar 2: hh=13 ll=9 rsv=75; bar 3: hh=13 ll=10 rsv=33.33; bar 4: hh=13 ll=9 rsv=25
	rsv := []float64{75, 100.0 / 3, 25}
	k, d := rsv[0], rsv[0]
	for i, r := range rsv {
		if i > 0 {
			k = r/3 + k*2/3
			d = k/3 + d*2/3
		}
		pt := series[i+2]
		if math.Abs(pt.K-k) > 1e-9 || math.Abs(pt.D-d) > 1e-9 {
			t.Errorf("bar %d: got k=%v d=%v, want k=%v d=%v", i+2, pt.K, pt.D, k, d)
		}
	}
}

func TestKDJ_JIdentity(t *testing.T) {
	e := mustEngine(DefaultConfig())
	series, err := e.Compute(waveBars(200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	swungBelowZero := false
	for i, pt := range series {
		if !pt.KDJReady {
			continue
		}
		if math.Abs(pt.J-(3*pt.K-2*pt.D)) > 1e-9 {
			t.Fatalf("bar %d: j identity violated", i)
		}
		if pt.J < 0 {
			swungBelowZero = true
		}
	}
	if !swungBelowZero {
		t.Error("expected j to swing below zero on a wave series")
	}
}

func TestCompute_Deterministic(t *testing.T) {
	e := mustEngine(DefaultConfig())
	bars := waveBars(120)
	a, err := e.Compute(bars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := e.Compute(bars)
	for i := range a {
		if !samePoint(a[i], b[i]) {
			t.Fatalf("bar %d differs between runs", i)
		}
	}
}

func TestStream_MatchesBatch(t *testing.T) {
	e := mustEngine(DefaultConfig())
	bars := waveBars(80)
	batch, err := e.Compute(bars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := e.NewStream()
	for i, b := range bars {
		pt, err := s.Push(b)
		if err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
		if !samePoint(pt, batch[i]) {
			t.Fatalf("bar %d: stream %+v != batch %+v", i, pt, batch[i])
		}
		// Recomputing from scratch over the prefix gives the same latest point.
		if i+1 >= e.WarmUp() {
			prefix, _ := e.Compute(bars[:i+1])
			if !samePoint(prefix[i], pt) {
				t.Fatalf("bar %d: prefix replay mismatch", i)
			}
		}
	}
}

func TestStream_BBIMatchesBatchFunction(t *testing.T) {
	e := mustEngine(DefaultConfig())
	bars := waveBars(60)
	series, _ := e.Compute(bars)
	direct := bbi(closesOf(bars), DefaultConfig().BBIPeriods)
	for i := 23; i < len(bars); i++ {
		if math.Abs(series[i].BBI-direct[i]) > 1e-9 {
			t.Errorf("bar %d: stream bbi %v, direct %v", i, series[i].BBI, direct[i])
		}
	}
}

func TestRangePolicy(t *testing.T) {
	tests := []struct {
		policy  RangePolicy
		prev    float64
		want    float64
		wantErr bool
	}{
		{RangeCarry, math.NaN(), 50, false},
		{RangeCarry, 37, 37, false},
		{RangeNeutral, 37, 50, false},
		{RangeStrict, 37, 0, true},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.RangePolicy = tt.policy
		s := mustEngine(cfg).NewStream()
		s.prevRSV = tt.prev
		got, err := s.rsv(10, 10, 10)
		if tt.wantErr {
			if !errors.Is(err, ErrDegenerateRange) {
				t.Errorf("%s: expected ErrDegenerateRange, got %v", tt.policy, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%s: got %v (err=%v), want %v", tt.policy, got, err, tt.want)
		}
	}
}

func TestCompute_FlatSeries(t *testing.T) {
	flat := barsFromCloses(10, 10, 10, 10, 10, 10, 10, 10, 10, 10)
	for i := range flat {
		flat[i].High, flat[i].Low = 10, 10
	}

	series, err := mustEngine(DefaultConfig()).ComputeKDJ(flat)
	if err != nil {
		t.Fatalf("carry policy should not fail: %v", err)
	}
	if last, _ := series.Last(); last.K != 50 || last.J != 50 {
		t.Errorf("expected neutral k=j=50 on a flat series, got k=%v j=%v", last.K, last.J)
	}

	cfg := DefaultConfig()
	cfg.RangePolicy = RangeStrict
	if _, err := mustEngine(cfg).ComputeKDJ(flat); !errors.Is(err, ErrDegenerateRange) {
		t.Fatalf("expected ErrDegenerateRange, got %v", err)
	}
}

func TestCompute_SimpleAverageSmoother(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Smoother = "sma"
	series, err := mustEngine(cfg).Compute(waveBars(50))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, pt := range series {
		if pt.KDJReady && math.Abs(pt.J-(3*pt.K-2*pt.D)) > 1e-9 {
			t.Fatalf("bar %d: j identity violated", i)
		}
	}
}

func TestNewEngine_Invalid(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"zero pk", func(c *Config) { c.PK = 0 }},
		{"negative bbi", func(c *Config) { c.BBIPeriods = []int{3, -1} }},
		{"no bbi", func(c *Config) { c.BBIPeriods = nil }},
		{"bad smoother", func(c *Config) { c.Smoother = "wma" }},
		{"bad policy", func(c *Config) { c.RangePolicy = "skip" }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mut(&cfg)
		if _, err := NewEngine(cfg); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestTurnover(t *testing.T) {
	bars := barsFromCloses(1, 2, 3)
	bars[0].Volume, bars[1].Volume, bars[2].Volume = 100, 200, 200
	v, err := Turnover(bars, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// alpha = 1/3: 100 -> 133.33 -> 155.56
	want := 100.0
	want = want + (200-want)/3
	want = want + (200-want)/3
	if math.Abs(v-want) > 1e-9 {
		t.Errorf("expected %v, got %v", want, v)
	}
	if _, err := Turnover(nil, 5); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func samePoint(a, b modelPoint) bool {
	eq := func(x, y float64) bool { return x == y || (math.IsNaN(x) && math.IsNaN(y)) }
	return a.BBIReady == b.BBIReady && a.KDJReady == b.KDJReady &&
		eq(a.BBI, b.BBI) && eq(a.K, b.K) && eq(a.D, b.D) && eq(a.J, b.J)
}

func TestComputeKDJ_CloseOutsideRangeFails(t *testing.T) {
	bars := barsFromCloses(10, 10, 10, 10, 10, 10, 10, 10, 10)
	bars[8].Close = 50

	if _, err := mustEngine(DefaultConfig()).ComputeKDJ(bars); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}
