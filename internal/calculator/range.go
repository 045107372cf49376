package calculator

import "fmt"

// RangePosition returns where current sits within [low, high] as 0.0~1.0.
// A current outside the range is an error, never clamped.
func RangePosition(current, high, low float64) (float64, error) {
	if high == low {
		return 0, ErrDegenerateRange
	}
	if high < low {
		return 0, fmt.Errorf("high %.4f below low %.4f", high, low)
	}
	if current < low || current > high {
		return 0, fmt.Errorf("%w: %.4f not in [%.4f, %.4f]", ErrOutOfRange, current, low, high)
	}
	return (current - low) / (high - low), nil
}
