// Package screener ranks a symbol universe by KDJ J under turnover-tiered
// liquidity and signal thresholds.
package screener

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"StockPicker/internal/calculator"
	"StockPicker/internal/collector"
	"StockPicker/internal/model"
)

// ErrTooShort marks a symbol with less history than the screen requires.
// It is a soft skip, not a failure.
var ErrTooShort = errors.New("insufficient history")

// ErrDuplicateSymbol is returned when an in-memory universe lists a symbol
// twice.
var ErrDuplicateSymbol = errors.New("duplicate symbol in universe")

// Config holds the screening thresholds.
type Config struct {
	MinHistory    int
	DomesticFloor float64 // minimum turnover for symbols starting with a digit
	USFloor       float64
	HighLiquidity float64 // turnover at which the loose J threshold applies
	LooseJ        float64
	StrictJ       float64
	TurnoverSpan  int
	Workers       int
}

func DefaultConfig() Config {
	return Config{
		MinHistory:    20,
		DomesticFloor: 1e8,
		USFloor:       1e7,
		HighLiquidity: 1e9,
		LooseJ:        8,
		StrictJ:       0,
		TurnoverSpan:  5,
		Workers:       8,
	}
}

// Validate rejects thresholds that would make a more liquid symbol face a
// stricter screen than a less liquid one.
func (c Config) Validate() error {
	if c.MinHistory <= 0 || c.TurnoverSpan <= 0 {
		return fmt.Errorf("screen config: min history and turnover span must be positive")
	}
	if c.USFloor > c.DomesticFloor || c.DomesticFloor > c.HighLiquidity {
		return fmt.Errorf("screen config: liquidity tiers must satisfy us_floor <= domestic_floor <= high_liquidity")
	}
	if c.StrictJ > c.LooseJ {
		return fmt.Errorf("screen config: strict_j %.2f above loose_j %.2f", c.StrictJ, c.LooseJ)
	}
	return nil
}

// Loader supplies the bar history of one symbol.
type Loader interface {
	LoadBars(ctx context.Context, symbol string) ([]model.Bar, error)
}

// Result is the outcome of one screening run.
type Result struct {
	RunID      string
	Started    time.Time
	Elapsed    time.Duration
	Candidates []model.Candidate // every evaluated symbol, j ascending then symbol
	Skipped    []model.SymbolError
	Failed     []model.SymbolError
}

// Passed returns the candidates that cleared both tiers, in rank order.
func (r *Result) Passed() []model.Candidate {
	var out []model.Candidate
	for _, c := range r.Candidates {
		if c.Passes {
			out = append(out, c)
		}
	}
	return out
}

// Symbols returns the passing symbols in rank order.
func (r *Result) Symbols() []string {
	passed := r.Passed()
	out := make([]string, len(passed))
	for i, c := range passed {
		out[i] = c.Symbol
	}
	return out
}

// Engine screens symbols. It keeps no state between runs.
type Engine struct {
	cfg Config
	ind *calculator.Engine
}

func NewEngine(cfg Config, ind *calculator.Engine) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Engine{cfg: cfg, ind: ind}, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Floor is the liquidity floor for a symbol's market.
func (e *Engine) Floor(symbol string) float64 {
	if collector.Market(symbol) == model.MarketDomestic {
		return e.cfg.DomesticFloor
	}
	return e.cfg.USFloor
}

// Threshold is the J ceiling for a turnover level.
func (e *Engine) Threshold(turnover float64) float64 {
	if turnover >= e.cfg.HighLiquidity {
		return e.cfg.LooseJ
	}
	return e.cfg.StrictJ
}

// Evaluate builds the latest-bar candidate of one symbol.
func (e *Engine) Evaluate(symbol string, bars []model.Bar) (model.Candidate, error) {
	if len(bars) < e.cfg.MinHistory {
		return model.Candidate{}, fmt.Errorf("%d bars, need %d: %w", len(bars), e.cfg.MinHistory, ErrTooShort)
	}
	if err := collector.ValidateBars(bars); err != nil {
		return model.Candidate{}, err
	}
	series, err := e.ind.ComputeKDJ(bars)
	if err != nil {
		if errors.Is(err, calculator.ErrInsufficientData) {
			return model.Candidate{}, fmt.Errorf("%w: %v", ErrTooShort, err)
		}
		return model.Candidate{}, err
	}
	pt, _ := series.Last()
	turnover, err := calculator.Turnover(bars, e.cfg.TurnoverSpan)
	if err != nil {
		return model.Candidate{}, err
	}

	latest := bars[len(bars)-1]
	c := model.Candidate{
		Symbol:         symbol,
		Market:         collector.Market(symbol),
		LatestDate:     latest.Date,
		LatestClose:    latest.Close,
		Turnover:       turnover,
		K:              pt.K,
		D:              pt.D,
		J:              pt.J,
		Bars:           len(bars),
		LiquidityFloor: e.Floor(symbol),
		JThreshold:     e.Threshold(turnover),
	}
	c.Liquid = c.Turnover >= c.LiquidityFloor
	c.Passes = c.Liquid && c.J <= c.JThreshold
	return c, nil
}

// Screen evaluates symbols on a bounded worker pool. Workers only send
// outcomes; the calling goroutine collects them and drives obs, so
// observers need not be safe for concurrent use. Per-symbol errors never
// abort the run. A symbol listed twice is screened once. When ctx is
// cancelled dispatch stops and the partial result is returned with
// ctx.Err().
func (e *Engine) Screen(ctx context.Context, loader Loader, symbols []string, obs Observer) (*Result, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	res := &Result{RunID: uuid.NewString(), Started: time.Now()}

	type item struct {
		symbol string
		cand   model.Candidate
		err    error
	}
	jobs := make(chan string)
	ch := make(chan item, e.cfg.Workers)
	var wg sync.WaitGroup

	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				c, err := e.screenOne(ctx, loader, s)
				ch <- item{s, c, err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		seen := make(map[string]bool, len(symbols))
		for _, s := range symbols {
			if seen[s] {
				continue
			}
			seen[s] = true
			select {
			case jobs <- s:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		switch {
		case it.err == nil:
			res.Candidates = append(res.Candidates, it.cand)
			obs.OnEvaluated(it.cand)
		case errors.Is(it.err, ErrTooShort):
			res.Skipped = append(res.Skipped, model.SymbolError{Symbol: it.symbol, Err: it.err})
			obs.OnSkipped(it.symbol, it.err)
		default:
			res.Failed = append(res.Failed, model.SymbolError{Symbol: it.symbol, Err: it.err})
			obs.OnFailed(it.symbol, it.err)
		}
	}

	sort.Slice(res.Candidates, func(i, j int) bool {
		a, b := res.Candidates[i], res.Candidates[j]
		if a.J != b.J {
			return a.J < b.J
		}
		return a.Symbol < b.Symbol
	})
	sortErrors(res.Skipped)
	sortErrors(res.Failed)
	res.Elapsed = time.Since(res.Started)
	obs.OnFinished(res)
	return res, ctx.Err()
}

func (e *Engine) screenOne(ctx context.Context, loader Loader, symbol string) (model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return model.Candidate{}, err
	}
	bars, err := loader.LoadBars(ctx, symbol)
	if err != nil {
		return model.Candidate{}, fmt.Errorf("load: %w", err)
	}
	return e.Evaluate(symbol, bars)
}

// ScreenSeries screens an in-memory universe. Each symbol may appear once.
func (e *Engine) ScreenSeries(ctx context.Context, universe []model.Series, obs Observer) (*Result, error) {
	m := make(memLoader, len(universe))
	symbols := make([]string, 0, len(universe))
	for _, s := range universe {
		if _, ok := m[s.Symbol]; ok {
			return nil, fmt.Errorf("%s: %w", s.Symbol, ErrDuplicateSymbol)
		}
		m[s.Symbol] = s.Bars
		symbols = append(symbols, s.Symbol)
	}
	return e.Screen(ctx, m, symbols, obs)
}

type memLoader map[string][]model.Bar

func (m memLoader) LoadBars(_ context.Context, symbol string) ([]model.Bar, error) {
	bars, ok := m[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, collector.ErrNotFound)
	}
	return bars, nil
}

func sortErrors(errs []model.SymbolError) {
	sort.Slice(errs, func(i, j int) bool { return errs[i].Symbol < errs[j].Symbol })
}
