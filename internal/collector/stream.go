package collector

import (
	"fmt"

	"StockPicker/internal/calculator"
	"StockPicker/internal/model"
)

// Stream yields a validated series bar by bar together with the indicator
// point computed incrementally up to that bar.
type Stream struct {
	symbol string
	bars   []model.Bar
	fold   *calculator.Stream
	pos    int
	err    error
}

// NewStream validates the series before any bar is yielded.
func NewStream(series model.Series, engine *calculator.Engine) (*Stream, error) {
	if err := ValidateBars(series.Bars); err != nil {
		return nil, fmt.Errorf("stream %s: %w", series.Symbol, err)
	}
	return &Stream{
		symbol: series.Symbol,
		bars:   series.Bars,
		fold:   engine.NewStream(),
	}, nil
}

func (s *Stream) Symbol() string { return s.symbol }

// Next returns the next bar and its point. It returns false at the end of
// the series or after an indicator error; check Err afterwards.
func (s *Stream) Next() (model.Bar, model.Point, bool) {
	if s.err != nil || s.pos >= len(s.bars) {
		return model.Bar{}, model.Point{}, false
	}
	b := s.bars[s.pos]
	pt, err := s.fold.Push(b)
	if err != nil {
		s.err = fmt.Errorf("stream %s: %w", s.symbol, err)
		return model.Bar{}, model.Point{}, false
	}
	s.pos++
	return b, pt, true
}

// Peek returns the bar after the last one yielded without advancing.
func (s *Stream) Peek() (model.Bar, bool) {
	if s.pos >= len(s.bars) {
		return model.Bar{}, false
	}
	return s.bars[s.pos], true
}

func (s *Stream) Err() error { return s.err }
