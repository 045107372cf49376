// Package backtest replays a symbol's history through the strategy machine
// with a paper broker.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"StockPicker/internal/calculator"
	"StockPicker/internal/collector"
	"StockPicker/internal/fund"
	"StockPicker/internal/model"
	"StockPicker/internal/strategy"
)

// Config holds the paper account settings.
type Config struct {
	InitialCash float64
	Percent     float64 // of free cash per entry
	Commission  float64
}

func DefaultConfig() Config {
	return Config{InitialCash: 100000, Percent: 95, Commission: 0}
}

// Sink receives every intent and execution report of a run.
type Sink interface {
	OnIntent(intent model.OrderIntent)
	OnResult(symbol string, res model.OrderResult)
}

// MultiSink fans events out in order.
type MultiSink []Sink

func (m MultiSink) OnIntent(intent model.OrderIntent) {
	for _, s := range m {
		s.OnIntent(intent)
	}
}

func (m MultiSink) OnResult(symbol string, res model.OrderResult) {
	for _, s := range m {
		s.OnResult(symbol, res)
	}
}

// Report summarises one run.
type Report struct {
	Symbol       string
	Bars         int
	Intents      []model.OrderIntent
	Results      []model.OrderResult
	Fills        int
	FinalState   strategy.State
	FinalCash    float64
	FinalValue   float64
	InitialValue float64
	Return       float64
	Account      model.AccountState
	Through      time.Time // date of the last evaluated bar
}

// Runner is reusable. Each Run gets a fresh account and state unless the
// runner was set to resume.
type Runner struct {
	cfg      Config
	stratCfg strategy.Config
	ind      *calculator.Engine
	log      zerolog.Logger
	sink     Sink
	resume   *resumePoint
}

type resumePoint struct {
	state   strategy.State
	account model.AccountState
	through time.Time
}

func NewRunner(cfg Config, stratCfg strategy.Config, ind *calculator.Engine, log zerolog.Logger) *Runner {
	return &Runner{cfg: cfg, stratCfg: stratCfg, ind: ind, log: log}
}

// WithSink attaches a sink for intents and results.
func (r *Runner) WithSink(s Sink) *Runner {
	r.sink = s
	return r
}

// Resume continues from a saved position and account snapshot. Bars dated
// on or before through only feed the indicators. A zero account snapshot
// starts a fresh account.
func (r *Runner) Resume(st strategy.State, account model.AccountState, through time.Time) *Runner {
	r.resume = &resumePoint{state: st, account: account, through: through}
	return r
}

// Run replays series bar by bar. Orders issued on a bar are filled at the
// next bar's open, before that bar is evaluated.
func (r *Runner) Run(ctx context.Context, series model.Series) (*Report, error) {
	account, st, err := r.start()
	if err != nil {
		return nil, err
	}
	machine, err := strategy.NewMachine(r.stratCfg, account)
	if err != nil {
		return nil, err
	}
	stream, err := collector.NewStream(series, r.ind)
	if err != nil {
		return nil, err
	}
	broker := NewPaperBroker(account, r.cfg.Commission)
	symbol := stream.Symbol()
	rep := &Report{Symbol: symbol, InitialValue: account.Snapshot().InitialCash}
	if r.resume != nil {
		rep.Through = r.resume.through
	}

	apply := func(results []model.OrderResult) error {
		for _, res := range results {
			if err := machine.OnOrderResult(st, res); err != nil {
				return fmt.Errorf("%s order %s: %w", symbol, res.OrderID, err)
			}
			rep.Results = append(rep.Results, res)
			if res.Status == model.StatusFilled || res.Status == model.StatusPartiallyFilled {
				rep.Fills++
			}
			if r.sink != nil {
				r.sink.OnResult(symbol, res)
			}
		}
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar, pt, ok := stream.Next()
		if !ok {
			break
		}
		if !bar.Date.After(rep.Through) {
			continue
		}
		rep.Bars++
		rep.Through = bar.Date

		intent := machine.OnBar(st, symbol, bar, pt)
		if intent == nil {
			continue
		}
		rep.Intents = append(rep.Intents, *intent)
		if r.sink != nil {
			r.sink.OnIntent(*intent)
		}
		r.log.Debug().
			Str("symbol", symbol).
			Str("date", bar.Date.Format("2006-01-02")).
			Str("action", string(intent.Action)).
			Str("reason", string(intent.Reason)).
			Float64("size", intent.Size).
			Float64("close", bar.Close).
			Msg("order created")
		if err := apply([]model.OrderResult{broker.Submit(*intent)}); err != nil {
			return nil, err
		}
		// the order fills at the next bar's open, before that bar is evaluated
		if next, ok := stream.Peek(); ok {
			if err := apply(broker.FillAt(next)); err != nil {
				return nil, err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	if err := apply(broker.ExpireAll()); err != nil {
		return nil, err
	}

	rep.Account = account.Snapshot()
	rep.FinalState = *st
	rep.FinalCash = rep.Account.Cash
	rep.FinalValue = rep.FinalCash
	if latest, ok := series.Latest(); ok {
		rep.FinalValue += st.PositionSize * latest.Close
	}
	rep.Return = rep.FinalValue/rep.InitialValue - 1
	r.log.Info().
		Str("symbol", symbol).
		Int("bars", rep.Bars).
		Int("orders", len(rep.Intents)).
		Float64("final_value", rep.FinalValue).
		Float64("return", rep.Return).
		Msg("backtest finished")
	return rep, nil
}

func (r *Runner) start() (*fund.Account, *strategy.State, error) {
	if r.resume == nil {
		account, err := fund.NewAccount(r.cfg.InitialCash, r.cfg.Percent)
		return account, &strategy.State{}, err
	}
	st := r.resume.state
	if st.HasPendingOrder {
		return nil, nil, fmt.Errorf("resume: state has pending order %s", st.PendingOrderID)
	}
	snap := r.resume.account
	if snap.InitialCash <= 0 {
		if st.PositionSize > 0 {
			return nil, nil, fmt.Errorf("resume: holding %.2f with no account snapshot", st.PositionSize)
		}
		account, err := fund.NewAccount(r.cfg.InitialCash, r.cfg.Percent)
		return account, &st, err
	}
	// no order outlives a run, so nothing can still be reserved
	snap.Reserved = 0
	if snap.Percent <= 0 || snap.Percent > 100 {
		snap.Percent = r.cfg.Percent
	}
	return fund.FromState(snap), &st, nil
}
