package collector

import (
	"context"
	"unicode"

	"StockPicker/internal/model"
)

// Fetcher defines the interface for fetching daily bars.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.Bar, error)
	Name() string
}

// FetchLoader adapts a Fetcher to the screener's loader by always asking for
// the same history depth.
type FetchLoader struct {
	Fetcher Fetcher
	Days    int
}

func (l FetchLoader) LoadBars(ctx context.Context, symbol string) ([]model.Bar, error) {
	return l.Fetcher.FetchDailyBars(ctx, symbol, l.Days)
}

// Market classifies a symbol: domestic exchange codes start with a digit.
func Market(symbol string) model.Market {
	if symbol != "" && unicode.IsDigit(rune(symbol[0])) {
		return model.MarketDomestic
	}
	return model.MarketUS
}
