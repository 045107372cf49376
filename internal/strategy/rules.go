package strategy

import (
	"math"

	"StockPicker/internal/model"
)

type exitRule func(st *State, symbol string, bar model.Bar) *model.OrderIntent

// updateTrend advances the BBI day counters. A bar without a BBI value
// breaks both streaks. Days below only count once the position was trimmed.
func (m *Machine) updateTrend(st *State, bar model.Bar, pt model.Point) {
	if pt.BBIReady && bar.Close > pt.BBI {
		st.DaysAboveTrend++
	} else {
		st.DaysAboveTrend = 0
	}
	if st.PartialSellDone && pt.BBIReady && bar.Close < pt.BBI {
		st.DaysBelowTrend++
	} else {
		st.DaysBelowTrend = 0
	}
}

// partialTrim sells half the position after TrendDays closes above BBI,
// once per position. It does not fire when half rounds down to zero.
func (m *Machine) partialTrim(st *State, symbol string, bar model.Bar) *model.OrderIntent {
	if st.PartialSellDone || st.DaysAboveTrend < m.cfg.TrendDays {
		return nil
	}
	half := math.Floor(st.PositionSize / 2)
	if half <= 0 {
		return nil
	}
	st.PartialBefore = st.PartialSellDone
	st.PartialSellDone = true
	return m.issue(st, symbol, bar, model.ActionSell, half, model.ReasonPartialTrim)
}

// trendExit closes the rest after TrendDays closes below BBI following a trim.
func (m *Machine) trendExit(st *State, symbol string, bar model.Bar) *model.OrderIntent {
	if !st.PartialSellDone || st.DaysBelowTrend < m.cfg.TrendDays {
		return nil
	}
	return m.issue(st, symbol, bar, model.ActionSell, st.PositionSize, model.ReasonTrendExit)
}

func (m *Machine) stopLoss(st *State, symbol string, bar model.Bar) *model.OrderIntent {
	if !st.HasStop || bar.Close >= st.StopPrice {
		return nil
	}
	return m.issue(st, symbol, bar, model.ActionSell, st.PositionSize, model.ReasonStopLoss)
}
