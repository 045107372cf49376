package strategy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"StockPicker/internal/model"
)

// Phase is the coarse position state of a symbol.
type Phase string

const (
	PhaseFlat Phase = "FLAT"
	PhaseLong Phase = "LONG"
)

// State is the per-symbol position record. Only Machine mutates it.
type State struct {
	PositionSize    float64 `json:"position_size"`
	EntryPrice      float64 `json:"entry_price"`
	StopPrice       float64 `json:"stop_price"`
	HasStop         bool    `json:"has_stop"`
	DaysAboveTrend  int     `json:"days_above_trend"`
	DaysBelowTrend  int     `json:"days_below_trend"`
	PartialSellDone bool    `json:"partial_sell_done"`

	HasPendingOrder bool         `json:"has_pending_order"`
	PendingOrderID  string       `json:"pending_order_id,omitempty"`
	PendingAction   model.Action `json:"pending_action,omitempty"`
	PendingReason   model.Reason `json:"pending_reason,omitempty"`
	PendingSize     float64      `json:"pending_size,omitempty"`
	PendingFilled   float64      `json:"pending_filled,omitempty"`
	// partial flag as it was before a pending trim was issued
	PartialBefore bool `json:"partial_before,omitempty"`
}

func (s *State) Phase() Phase {
	if s.PositionSize > 0 {
		return PhaseLong
	}
	return PhaseFlat
}

// Reset returns the state to a fresh FLAT record.
func (s *State) Reset() { *s = State{} }

func (s *State) clearPending() {
	s.HasPendingOrder = false
	s.PendingOrderID = ""
	s.PendingAction = ""
	s.PendingReason = ""
	s.PendingSize = 0
	s.PendingFilled = 0
	s.PartialBefore = false
}

// Book owns the State of every symbol a run trades.
type Book struct {
	mu        sync.Mutex
	States    map[string]*State    `json:"states"`
	LastBars  map[string]time.Time `json:"last_bars,omitempty"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func NewBook() *Book {
	return &Book{States: make(map[string]*State), LastBars: make(map[string]time.Time)}
}

// SetLastBar records the date of the last bar applied to symbol's state.
func (b *Book) SetLastBar(symbol string, date time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LastBars[symbol] = date
}

// LastBar is the zero time for a symbol that was never marked.
func (b *Book) LastBar(symbol string) time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.LastBars[symbol]
}

// Get returns the state of symbol, creating a FLAT one on first use.
func (b *Book) Get(symbol string) *State {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.States[symbol]
	if !ok {
		st = &State{}
		b.States[symbol] = st
	}
	return st
}

// Symbols lists the tracked symbols in sorted order.
func (b *Book) Symbols() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.States))
	for s := range b.States {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Save writes the book to a JSON file.
func (b *Book) Save(path string) error {
	b.mu.Lock()
	b.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(b, "", "  ")
	b.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadBook reads a book from a JSON file. Returns an empty book if the file
// doesn't exist.
func LoadBook(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewBook(), nil
		}
		return nil, err
	}
	b := NewBook()
	if err := json.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("decode book %s: %w", path, err)
	}
	if b.States == nil {
		b.States = make(map[string]*State)
	}
	if b.LastBars == nil {
		b.LastBars = make(map[string]time.Time)
	}
	return b, nil
}
