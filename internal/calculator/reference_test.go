package calculator

import (
	"math"
)

// Batch reference forms of the stream arithmetic, used to cross-check it.

func sma(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	w := newWindow(period)
	for i, v := range values {
		w.push(v)
		if w.full() {
			out[i] = w.mean()
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

func rolling(values []float64, period int, f func(*window) float64) []float64 {
	out := make([]float64, len(values))
	w := newWindow(period)
	for i, v := range values {
		w.push(v)
		if w.full() {
			out[i] = f(w)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

func highest(values []float64, period int) []float64 { return rolling(values, period, (*window).max) }

func lowest(values []float64, period int) []float64 { return rolling(values, period, (*window).min) }

func bbi(closes []float64, periods []int) []float64 {
	out := make([]float64, len(closes))
	for _, p := range periods {
		for i, v := range sma(closes, p) {
			out[i] += v / float64(len(periods))
		}
	}
	return out
}
