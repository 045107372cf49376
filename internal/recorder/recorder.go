package recorder

import (
	"time"

	"github.com/rs/zerolog"

	"StockPicker/internal/model"
	"StockPicker/internal/screener"
)

// ScreenRun is the persisted form of one screening run.
type ScreenRun struct {
	RunID      string
	Started    time.Time
	Elapsed    time.Duration
	Evaluated  int
	Passed     int
	Skipped    int
	Failed     int
	Candidates []model.Candidate // every evaluated candidate, in rank order
}

// NewScreenRun flattens a screening result for storage.
func NewScreenRun(res *screener.Result) *ScreenRun {
	return &ScreenRun{
		RunID:      res.RunID,
		Started:    res.Started,
		Elapsed:    res.Elapsed,
		Evaluated:  len(res.Candidates),
		Passed:     len(res.Passed()),
		Skipped:    len(res.Skipped),
		Failed:     len(res.Failed),
		Candidates: res.Candidates,
	}
}

// PassedCandidates returns the passing candidates in rank order.
func (r *ScreenRun) PassedCandidates() []model.Candidate {
	var out []model.Candidate
	for _, c := range r.Candidates {
		if c.Passes {
			out = append(out, c)
		}
	}
	return out
}

// OrderEvent records an order intent or an execution report.
type OrderEvent struct {
	Source  string // "backtest" or "paper"
	Kind    string // "intent" or "result"
	Symbol  string
	OrderID string
	Date    time.Time
	Action  model.Action
	Reason  model.Reason
	Status  model.OrderStatus
	Size    float64
	Price   float64
	Message string
}

// IntentEvent builds the event for an issued intent.
func IntentEvent(source string, in model.OrderIntent) *OrderEvent {
	return &OrderEvent{
		Source: source, Kind: "intent", Symbol: in.Symbol, OrderID: in.ID, Date: in.Date,
		Action: in.Action, Reason: in.Reason, Size: in.Size, Price: in.Price,
	}
}

// ResultEvent builds the event for an execution report.
func ResultEvent(source, symbol string, res model.OrderResult) *OrderEvent {
	return &OrderEvent{
		Source: source, Kind: "result", Symbol: symbol, OrderID: res.OrderID, Date: res.Date,
		Action: res.Action, Status: res.Status, Size: res.FilledSize, Price: res.FillPrice, Message: res.Message,
	}
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordScreen(run *ScreenRun) error
	RecordOrder(evt *OrderEvent) error
	Close() error
}

// Multi fans records out to several recorders and returns the first error.
type Multi []Recorder

func (m Multi) RecordScreen(run *ScreenRun) error {
	var first error
	for _, r := range m {
		if err := r.RecordScreen(run); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) RecordOrder(evt *OrderEvent) error {
	var first error
	for _, r := range m {
		if err := r.RecordOrder(evt); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, r := range m {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OrderLog records every intent and execution report it receives. It
// satisfies the backtest sink.
type OrderLog struct {
	Rec    Recorder
	Source string
	Log    zerolog.Logger
}

func (o OrderLog) OnIntent(in model.OrderIntent) {
	if err := o.Rec.RecordOrder(IntentEvent(o.Source, in)); err != nil {
		o.Log.Error().Err(err).Str("order_id", in.ID).Msg("record intent")
	}
}

func (o OrderLog) OnResult(symbol string, res model.OrderResult) {
	if err := o.Rec.RecordOrder(ResultEvent(o.Source, symbol, res)); err != nil {
		o.Log.Error().Err(err).Str("order_id", res.OrderID).Msg("record order result")
	}
}
