package collector

import (
	"context"
	"fmt"
	"math"
	"time"

	"StockPicker/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price  float64
	Volume int64
	Start  time.Time
	Data   map[string][]model.Bar
	Errs   map[string]error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.Errs[symbol]; ok {
		return nil, fmt.Errorf("mock %s: %w", symbol, err)
	}
	if bars, ok := m.Data[symbol]; ok {
		if days > 0 && len(bars) > days {
			bars = bars[len(bars)-days:]
		}
		return bars, nil
	}
	return m.generate(days), nil
}

func (m *MockFetcher) LoadBars(ctx context.Context, symbol string) ([]model.Bar, error) {
	return m.FetchDailyBars(ctx, symbol, 0)
}

// generate produces a gentle wave around Price, one bar per calendar day.
func (m *MockFetcher) generate(count int) []model.Bar {
	if count <= 0 {
		count = 120
	}
	start := m.Start
	if start.IsZero() {
		start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	price := m.Price
	if price <= 0 {
		price = 100
	}
	vol := m.Volume
	if vol <= 0 {
		vol = 1000000
	}
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		p := price * (1 + 0.05*math.Sin(float64(i)*0.25))
		bars[i] = model.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: vol,
		}
	}
	return bars
}
