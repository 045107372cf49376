package calculator

import (
	"errors"
	"fmt"
	"math"

	"StockPicker/internal/model"
)

// RangePolicy decides the rsv value when highest == lowest over a KDJ window.
type RangePolicy string

const (
	// RangeCarry reuses the previous rsv, or 50 before any rsv exists.
	RangeCarry RangePolicy = "carry"
	// RangeNeutral uses rsv = 50.
	RangeNeutral RangePolicy = "neutral"
	// RangeStrict fails the computation with ErrDegenerateRange.
	RangeStrict RangePolicy = "strict"
)

const neutralRSV = 50.0

// Config holds the indicator periods.
type Config struct {
	BBIPeriods  []int
	PK          int
	PD          int
	PDSlow      int
	Smoother    string
	RangePolicy RangePolicy
}

// DefaultConfig returns BBI 3/6/12/24 and KDJ 9/3/3 with exponential smoothing.
func DefaultConfig() Config {
	return Config{
		BBIPeriods:  []int{3, 6, 12, 24},
		PK:          9,
		PD:          3,
		PDSlow:      3,
		Smoother:    "ema",
		RangePolicy: RangeCarry,
	}
}

// Engine computes BBI and KDJ series. It holds no per-symbol state and is
// safe to share between goroutines.
type Engine struct {
	cfg      Config
	smoother SmootherFactory
}

// NewEngine validates cfg and resolves the smoother.
func NewEngine(cfg Config) (*Engine, error) {
	if len(cfg.BBIPeriods) == 0 {
		return nil, errors.New("bbi periods are required")
	}
	for _, p := range append([]int{cfg.PK, cfg.PD, cfg.PDSlow}, cfg.BBIPeriods...) {
		if p <= 0 {
			return nil, fmt.Errorf("indicator config: %w (got %d)", ErrInvalidPeriod, p)
		}
	}
	switch cfg.RangePolicy {
	case "":
		cfg.RangePolicy = RangeCarry
	case RangeCarry, RangeNeutral, RangeStrict:
	default:
		return nil, fmt.Errorf("unknown range policy %q", cfg.RangePolicy)
	}
	sm, err := SmootherByName(cfg.Smoother)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, smoother: sm}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// WarmUp is the longest period among all constituents.
func (e *Engine) WarmUp() int {
	n := e.cfg.PK
	for _, p := range e.cfg.BBIPeriods {
		if p > n {
			n = p
		}
	}
	return n
}

// KDJWarmUp is the number of bars before the first rsv exists.
func (e *Engine) KDJWarmUp() int { return e.cfg.PK }

// Compute replays bars through a fresh stream. It fails with
// ErrInsufficientData when fewer than WarmUp bars are given.
func (e *Engine) Compute(bars []model.Bar) (model.IndicatorSeries, error) {
	if len(bars) < e.WarmUp() {
		return nil, fmt.Errorf("compute: have %d bars, need %d: %w", len(bars), e.WarmUp(), ErrInsufficientData)
	}
	return e.replay(bars)
}

// ComputeKDJ is Compute with only the KDJ warm-up enforced. BBI points stay
// unready until their own window fills.
func (e *Engine) ComputeKDJ(bars []model.Bar) (model.IndicatorSeries, error) {
	if len(bars) < e.KDJWarmUp() {
		return nil, fmt.Errorf("compute kdj: have %d bars, need %d: %w", len(bars), e.KDJWarmUp(), ErrInsufficientData)
	}
	return e.replay(bars)
}

func (e *Engine) replay(bars []model.Bar) (model.IndicatorSeries, error) {
	s := e.NewStream()
	out := make(model.IndicatorSeries, 0, len(bars))
	for _, b := range bars {
		pt, err := s.Push(b)
		if err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, nil
}

// Stream is the explicit fold over a bar sequence. The KDJ recurrence
// depends on the whole history, so a stream must see every bar from the
// start of the series.
type Stream struct {
	policy  RangePolicy
	closes  []*window
	highs   *window
	lows    *window
	k       Smoother
	d       Smoother
	prevRSV float64
	prevK   float64
	prevD   float64
	n       int
}

// NewStream starts a fold with empty accumulators.
func (e *Engine) NewStream() *Stream {
	s := &Stream{
		policy:  e.cfg.RangePolicy,
		highs:   newWindow(e.cfg.PK),
		lows:    newWindow(e.cfg.PK),
		k:       e.smoother(e.cfg.PD),
		d:       e.smoother(e.cfg.PDSlow),
		prevRSV: math.NaN(),
		prevK:   math.NaN(),
		prevD:   math.NaN(),
	}
	for _, p := range e.cfg.BBIPeriods {
		s.closes = append(s.closes, newWindow(p))
	}
	return s
}

// Push advances the fold by one bar and returns that bar's point.
func (s *Stream) Push(b model.Bar) (model.Point, error) {
	idx := s.n
	s.n++
	pt := model.Point{BBI: math.NaN(), K: math.NaN(), D: math.NaN(), J: math.NaN()}

	ready := true
	for _, w := range s.closes {
		w.push(b.Close)
		ready = ready && w.full()
	}
	if ready {
		sum := 0.0
		for _, w := range s.closes {
			sum += w.mean()
		}
		pt.BBI = sum / float64(len(s.closes))
		pt.BBIReady = true
	}

	s.highs.push(b.High)
	s.lows.push(b.Low)
	if !s.highs.full() {
		return pt, nil
	}
	rsv, err := s.rsv(b.Close, s.highs.max(), s.lows.min())
	if err != nil {
		return pt, fmt.Errorf("kdj at bar %d (%s): %w", idx, b.Date.Format("2006-01-02"), err)
	}
	s.prevRSV = rsv
	s.prevK = s.k.Next(s.prevK, rsv)
	s.prevD = s.d.Next(s.prevD, s.prevK)
	pt.K = s.prevK
	pt.D = s.prevD
	pt.J = 3*pt.K - 2*pt.D
	pt.KDJReady = true
	return pt, nil
}

func (s *Stream) rsv(close, highest, lowest float64) (float64, error) {
	pos, err := RangePosition(close, highest, lowest)
	if err == nil {
		return 100 * pos, nil
	}
	if !errors.Is(err, ErrDegenerateRange) {
		return 0, err
	}
	switch s.policy {
	case RangeStrict:
		return 0, err
	case RangeNeutral:
		return neutralRSV, nil
	default:
		if math.IsNaN(s.prevRSV) {
			return neutralRSV, nil
		}
		return s.prevRSV, nil
	}
}

// Turnover is the non-adjusted exponential average of volume with
// alpha = 2/(span+1), seeded at the first bar, evaluated at the latest bar.
func Turnover(bars []model.Bar, span int) (float64, error) {
	if span <= 0 {
		return 0, fmt.Errorf("turnover(%d): %w", span, ErrInvalidPeriod)
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("turnover: %w", ErrInsufficientData)
	}
	sm := NewExponentialSpan(span)
	v := math.NaN()
	for _, b := range bars {
		v = sm.Next(v, float64(b.Volume))
	}
	return v, nil
}
