package calculator

import (
	"fmt"
	"math"
)

// Smoother advances a recurrence by one input. prev is NaN on the first call,
// in which case the smoother seeds itself from input.
type Smoother interface {
	Next(prev, input float64) float64
}

// SmootherFactory builds a fresh smoother for a period.
type SmootherFactory func(period int) Smoother

// ExponentialSmoother is the non-adjusted recurrence alpha*x + (1-alpha)*prev,
// evaluated as prev + alpha*(x-prev) so a constant input stays exact.
type ExponentialSmoother struct {
	Alpha float64
}

// NewExponential uses alpha = 1/period, the KDJ convention.
func NewExponential(period int) Smoother {
	return &ExponentialSmoother{Alpha: 1 / float64(period)}
}

// NewExponentialSpan uses alpha = 2/(span+1).
func NewExponentialSpan(span int) Smoother {
	return &ExponentialSmoother{Alpha: 2 / float64(span+1)}
}

func (e *ExponentialSmoother) Next(prev, input float64) float64 {
	if math.IsNaN(prev) {
		return input
	}
	return prev + e.Alpha*(input-prev)
}

// SimpleAverageSmoother is the rolling mean of the last period inputs,
// a partial mean while the window fills. prev is ignored.
type SimpleAverageSmoother struct {
	w *window
}

func NewSimpleAverage(period int) Smoother {
	return &SimpleAverageSmoother{w: newWindow(period)}
}

func (s *SimpleAverageSmoother) Next(_, input float64) float64 {
	s.w.push(input)
	return s.w.mean()
}

// SmootherByName maps a config value to a factory.
func SmootherByName(name string) (SmootherFactory, error) {
	switch name {
	case "", "ema":
		return NewExponential, nil
	case "sma":
		return NewSimpleAverage, nil
	default:
		return nil, fmt.Errorf("unknown smoother %q", name)
	}
}
