package calculator

import (
	"math"
	"time"

	"StockPicker/internal/model"
)

var day0 = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

func barsFromCloses(closes ...float64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{
			Date:   day0.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func waveBars(n int) []model.Bar {
	bars := make([]model.Bar, n)
	for i := 0; i < n; i++ {
		c := 100 + 10*math.Sin(float64(i)*0.3) + float64(i)*0.1
		bars[i] = model.Bar{
			Date:   day0.AddDate(0, 0, i),
			Open:   c - 0.2,
			High:   c + 1 + 0.5*math.Cos(float64(i)),
			Low:    c - 1,
			Close:  c,
			Volume: int64(1000 + 10*i),
		}
	}
	return bars
}

func mustEngine(cfg Config) *Engine {
	e, err := NewEngine(cfg)
	if err != nil {
		panic(err)
	}
	return e
}

type modelPoint = model.Point

func closesOf(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
