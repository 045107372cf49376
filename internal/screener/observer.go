package screener

import (
	"github.com/rs/zerolog"

	"StockPicker/internal/model"
)

// Observer receives per-symbol screening outcomes. A run calls it from a
// single goroutine.
type Observer interface {
	OnEvaluated(c model.Candidate)
	OnSkipped(symbol string, err error)
	OnFailed(symbol string, err error)
	OnFinished(r *Result)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnEvaluated(model.Candidate) {}
func (NopObserver) OnSkipped(string, error)     {}
func (NopObserver) OnFailed(string, error)      {}
func (NopObserver) OnFinished(*Result)          {}

// LogObserver writes outcomes to a zerolog logger.
type LogObserver struct {
	Log zerolog.Logger
}

func (o LogObserver) OnEvaluated(c model.Candidate) {
	ev := o.Log.Debug()
	if c.Passes {
		ev = o.Log.Info()
	}
	ev.Str("symbol", c.Symbol).
		Float64("j", c.J).
		Float64("turnover", c.Turnover).
		Bool("passes", c.Passes).
		Msg("symbol evaluated")
}

func (o LogObserver) OnSkipped(symbol string, err error) {
	o.Log.Debug().Str("symbol", symbol).Err(err).Msg("symbol skipped")
}

func (o LogObserver) OnFailed(symbol string, err error) {
	o.Log.Warn().Str("symbol", symbol).Err(err).Msg("symbol failed")
}

func (o LogObserver) OnFinished(r *Result) {
	o.Log.Info().
		Str("run_id", r.RunID).
		Int("evaluated", len(r.Candidates)).
		Int("passed", len(r.Passed())).
		Int("skipped", len(r.Skipped)).
		Int("failed", len(r.Failed)).
		Dur("elapsed", r.Elapsed).
		Msg("screen finished")
}

// MultiObserver fans every event out in order.
type MultiObserver []Observer

func (m MultiObserver) OnEvaluated(c model.Candidate) {
	for _, o := range m {
		o.OnEvaluated(c)
	}
}

func (m MultiObserver) OnSkipped(symbol string, err error) {
	for _, o := range m {
		o.OnSkipped(symbol, err)
	}
}

func (m MultiObserver) OnFailed(symbol string, err error) {
	for _, o := range m {
		o.OnFailed(symbol, err)
	}
}

func (m MultiObserver) OnFinished(r *Result) {
	for _, o := range m {
		o.OnFinished(r)
	}
}
