package collector

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"StockPicker/internal/model"
)

// ErrInvalidBars is returned for malformed input series.
var ErrInvalidBars = errors.New("invalid bars")

var validate = validator.New()

// ValidateBars checks every bar's fields, that open and close lie within
// [low, high], and that dates strictly increase. It reports the first
// offending index and never repairs the input.
func ValidateBars(bars []model.Bar) error {
	for i := range bars {
		b := &bars[i]
		if err := validate.Struct(b); err != nil {
			return fmt.Errorf("%w: bar %d: %v", ErrInvalidBars, i, err)
		}
		if b.Date.IsZero() {
			return fmt.Errorf("%w: bar %d: missing date", ErrInvalidBars, i)
		}
		for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
			if math.IsInf(v, 0) || math.IsNaN(v) {
				return fmt.Errorf("%w: bar %d: non-finite price", ErrInvalidBars, i)
			}
		}
		if b.High < b.Low {
			return fmt.Errorf("%w: bar %d: high %.4f below low %.4f", ErrInvalidBars, i, b.High, b.Low)
		}
		if b.Open < b.Low || b.Open > b.High {
			return fmt.Errorf("%w: bar %d: open %.4f outside [%.4f, %.4f]", ErrInvalidBars, i, b.Open, b.Low, b.High)
		}
		if b.Close < b.Low || b.Close > b.High {
			return fmt.Errorf("%w: bar %d: close %.4f outside [%.4f, %.4f]", ErrInvalidBars, i, b.Close, b.Low, b.High)
		}
		if i > 0 && !b.Date.After(bars[i-1].Date) {
			return fmt.Errorf("%w: bar %d: date %s not after %s", ErrInvalidBars, i,
				b.Date.Format("2006-01-02"), bars[i-1].Date.Format("2006-01-02"))
		}
	}
	return nil
}
