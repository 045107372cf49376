package model

import "time"

// Bar is a single daily OHLCV row.
type Bar struct {
	Date   time.Time `json:"date" validate:"required"`
	Open   float64   `json:"open" validate:"gt=0"`
	High   float64   `json:"high" validate:"gt=0"`
	Low    float64   `json:"low" validate:"gt=0"`
	Close  float64   `json:"close" validate:"gt=0"`
	Volume int64     `json:"volume" validate:"gte=0"`
}

// Series is the ordered bar history of one symbol.
type Series struct {
	Symbol string
	Bars   []Bar
}

// Latest returns the most recent bar, or false when the series is empty.
func (s Series) Latest() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}
