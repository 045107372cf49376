// Package strategy holds the per-symbol entry, partial-trim, trend-exit and
// stop-loss state machine.
package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"StockPicker/internal/model"
)

var (
	// ErrOversell is returned when a sell fill exceeds the open position.
	ErrOversell = errors.New("sell fill exceeds position")
	// ErrUnknownOrder is returned for results that do not match the pending order.
	ErrUnknownOrder = errors.New("result for unknown order")
)

// Config holds the exit parameters.
type Config struct {
	StopLoss  float64 // fraction below the entry close
	TrendDays int     // consecutive closes beyond BBI that confirm a trim or exit
}

func DefaultConfig() Config {
	return Config{StopLoss: 0.03, TrendDays: 2}
}

// Sizer decides the entry size for a symbol at a reference price.
type Sizer interface {
	Size(symbol string, price float64) float64
}

// FixedSizer always buys the same number of units.
type FixedSizer float64

func (f FixedSizer) Size(string, float64) float64 { return float64(f) }

// Machine applies the rules to a State one bar or one order result at a
// time. It keeps no per-symbol data of its own.
type Machine struct {
	cfg   Config
	sizer Sizer
	newID func() string
}

func NewMachine(cfg Config, sizer Sizer) (*Machine, error) {
	if cfg.StopLoss < 0 || cfg.StopLoss >= 1 {
		return nil, fmt.Errorf("stop loss %.4f outside [0,1)", cfg.StopLoss)
	}
	if cfg.TrendDays <= 0 {
		return nil, fmt.Errorf("trend days must be positive, got %d", cfg.TrendDays)
	}
	if sizer == nil {
		return nil, errors.New("sizer is required")
	}
	return &Machine{cfg: cfg, sizer: sizer, newID: uuid.NewString}, nil
}

func (m *Machine) Config() Config { return m.cfg }

// OnBar evaluates one bar for symbol and returns the order to submit, if
// any. While an order is pending nothing is evaluated, counters included.
func (m *Machine) OnBar(st *State, symbol string, bar model.Bar, pt model.Point) *model.OrderIntent {
	if st.HasPendingOrder {
		return nil
	}

	if st.Phase() == PhaseFlat {
		st.DaysAboveTrend = 0
		st.DaysBelowTrend = 0
		return m.entry(st, symbol, bar, pt)
	}

	m.updateTrend(st, bar, pt)
	for _, rule := range []exitRule{m.partialTrim, m.trendExit, m.stopLoss} {
		if intent := rule(st, symbol, bar); intent != nil {
			return intent
		}
	}
	return nil
}

// OnOrderResult applies an execution report for the pending order.
func (m *Machine) OnOrderResult(st *State, res model.OrderResult) error {
	if !st.HasPendingOrder || res.OrderID != st.PendingOrderID {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, res.OrderID)
	}
	switch res.Status {
	case model.StatusAccepted:
	case model.StatusPartiallyFilled, model.StatusFilled:
		if err := m.applyFill(st, res); err != nil {
			return err
		}
	case model.StatusRejected, model.StatusCanceled, model.StatusExpired:
		if st.PendingFilled == 0 {
			switch st.PendingReason {
			case model.ReasonPartialTrim:
				st.PartialSellDone = st.PartialBefore
			case model.ReasonEntry:
				// nothing was bought, so the entry stop goes too
				st.Reset()
			}
		}
	default:
		return fmt.Errorf("unknown order status %q", res.Status)
	}
	if res.Status.Terminal() {
		st.clearPending()
	}
	return nil
}

func (m *Machine) applyFill(st *State, res model.OrderResult) error {
	if res.FilledSize < 0 {
		return fmt.Errorf("negative fill size %.4f", res.FilledSize)
	}
	if res.FilledSize == 0 {
		return nil
	}
	switch st.PendingAction {
	case model.ActionBuy:
		cost := st.EntryPrice*st.PositionSize + res.FillPrice*res.FilledSize
		st.PositionSize += res.FilledSize
		st.EntryPrice = cost / st.PositionSize
	case model.ActionSell:
		if res.FilledSize > st.PositionSize {
			return fmt.Errorf("%w: fill %.4f, position %.4f", ErrOversell, res.FilledSize, st.PositionSize)
		}
		st.PositionSize -= res.FilledSize
	}
	st.PendingFilled += res.FilledSize
	if st.PositionSize == 0 {
		st.Reset()
	}
	return nil
}

func (m *Machine) issue(st *State, symbol string, bar model.Bar, action model.Action, size float64, reason model.Reason) *model.OrderIntent {
	intent := &model.OrderIntent{
		ID:     m.newID(),
		Symbol: symbol,
		Date:   bar.Date,
		Action: action,
		Size:   size,
		Price:  bar.Close,
		Reason: reason,
	}
	st.HasPendingOrder = true
	st.PendingOrderID = intent.ID
	st.PendingAction = action
	st.PendingReason = reason
	st.PendingSize = size
	st.PendingFilled = 0
	return intent
}

func (m *Machine) entry(st *State, symbol string, bar model.Bar, pt model.Point) *model.OrderIntent {
	if !pt.KDJReady || pt.J >= 0 {
		return nil
	}
	size := math.Floor(m.sizer.Size(symbol, bar.Close))
	if size <= 0 {
		return nil
	}
	st.PartialSellDone = false
	st.StopPrice = bar.Close * (1 - m.cfg.StopLoss)
	st.HasStop = true
	return m.issue(st, symbol, bar, model.ActionBuy, size, model.ReasonEntry)
}
