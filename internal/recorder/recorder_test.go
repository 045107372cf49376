package recorder

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"StockPicker/internal/model"
	"StockPicker/internal/screener"
)

func sampleRun() *ScreenRun {
	day := time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC)
	res := &screener.Result{
		RunID:   "run-1",
		Started: time.Unix(1_756_000_000, 0),
		Elapsed: 1500 * time.Millisecond,
		Candidates: []model.Candidate{
			{Symbol: "AAPL", Market: model.MarketUS, LatestDate: day, LatestClose: 210.1234, Turnover: 5e7, K: 10, D: 20, J: -10.12345, Bars: 250, LiquidityFloor: 1e7, Liquid: true, Passes: true},
			{Symbol: "600000.SS", Market: model.MarketDomestic, LatestDate: day, LatestClose: 9.8, Turnover: 2e9, K: 12, D: 10, J: 4, Bars: 250, LiquidityFloor: 1e8, JThreshold: 8, Liquid: true, Passes: true},
			{Symbol: "MSFT", Market: model.MarketUS, LatestDate: day, LatestClose: 500, Turnover: 3e7, K: 60, D: 50, J: 80, Bars: 250, LiquidityFloor: 1e7, Liquid: true},
		},
		Skipped: []model.SymbolError{{Symbol: "NEW", Err: screener.ErrTooShort}},
	}
	return NewScreenRun(res)
}

func TestNewScreenRun(t *testing.T) {
	run := sampleRun()
	if run.Evaluated != 3 || run.Passed != 2 || run.Skipped != 1 || run.Failed != 0 {
		t.Errorf("unexpected counts %+v", run)
	}
}

func TestSQLiteRecorder(t *testing.T) {
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "picker.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rec.Close()

	if _, err := rec.LastScreen(); !errors.Is(err, ErrNoRuns) {
		t.Fatalf("expected ErrNoRuns, got %v", err)
	}

	run := sampleRun()
	if err := rec.RecordScreen(run); err != nil {
		t.Fatalf("record screen: %v", err)
	}
	last, err := rec.LastScreen()
	if err != nil {
		t.Fatalf("last screen: %v", err)
	}
	if last.RunID != "run-1" || len(last.Candidates) != 3 || last.Elapsed != 1500*time.Millisecond {
		t.Fatalf("unexpected run %+v", last)
	}
	if c := last.Candidates[1]; c.Symbol != "600000.SS" || !c.Passes || c.Market != model.MarketDomestic || c.JThreshold != 8 {
		t.Errorf("candidate round trip failed: %+v", c)
	}
	if last.Candidates[2].Passes {
		t.Error("MSFT should not pass")
	}

	in := model.OrderIntent{ID: "o1", Symbol: "AAPL", Date: time.Now(), Action: model.ActionBuy, Size: 10, Price: 100, Reason: model.ReasonEntry}
	if err := rec.RecordOrder(IntentEvent("backtest", in)); err != nil {
		t.Fatalf("record order: %v", err)
	}
	var n int
	if err := rec.db.QueryRow(`SELECT COUNT(*) FROM order_events WHERE order_id = 'o1'`).Scan(&n); err != nil || n != 1 {
		t.Errorf("expected one order row, got %d (err=%v)", n, err)
	}
}

func TestFileRecorder(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewFileRecorder(dir, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	rec.now = func() time.Time { return time.Date(2025, 8, 23, 9, 30, 0, 0, time.Local) }

	if err := rec.RecordScreen(sampleRun()); err != nil {
		t.Fatalf("record: %v", err)
	}
	csvData, err := os.ReadFile(filepath.Join(dir, "selected_stocks_20250823_093000.csv"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 passing rows, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[1], "1,AAPL,us,2025-08-22,210.123,50000000.000,10.000,20.000,-10.123,250") {
		t.Errorf("unexpected first row %q", lines[1])
	}

	txt, err := os.ReadFile(filepath.Join(dir, "selected_stocks_20250823_093000.txt"))
	if err != nil || string(txt) != "AAPL\n600000.SS\n" {
		t.Errorf("unexpected symbol list %q (err=%v)", txt, err)
	}

	res := model.OrderResult{OrderID: "o1", Status: model.StatusFilled, Action: model.ActionBuy, FilledSize: 10, FillPrice: 101}
	rec.RecordOrder(ResultEvent("backtest", "AAPL", res))
	rec.RecordOrder(ResultEvent("backtest", "AAPL", res))
	orders, _ := os.ReadFile(filepath.Join(dir, "orders.csv"))
	if n := strings.Count(string(orders), "\n"); n != 2 {
		t.Errorf("expected 2 appended order rows, got %d", n)
	}
}

func TestFileRecorder_NothingPassed(t *testing.T) {
	dir := t.TempDir()
	rec, _ := NewFileRecorder(dir, zerolog.Nop())
	if err := rec.RecordScreen(&ScreenRun{RunID: "empty"}); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no files, got %d", len(entries))
	}
}

type failing struct{ *NoopRecorder }

func (failing) RecordOrder(*OrderEvent) error { return errors.New("disk full") }

func TestMulti(t *testing.T) {
	m := Multi{NewNoopRecorder(), failing{NewNoopRecorder()}}
	if err := m.RecordOrder(&OrderEvent{}); err == nil {
		t.Error("expected error from failing recorder")
	}
	if err := m.RecordScreen(sampleRun()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

type captureOrders struct {
	*NoopRecorder
	events []*OrderEvent
}

func (c *captureOrders) RecordOrder(evt *OrderEvent) error {
	c.events = append(c.events, evt)
	return nil
}

func TestOrderLog(t *testing.T) {
	rec := &captureOrders{NoopRecorder: NewNoopRecorder()}
	sink := OrderLog{Rec: rec, Source: "backtest", Log: zerolog.Nop()}
	day := time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC)

	sink.OnIntent(model.OrderIntent{ID: "o1", Symbol: "AAPL", Date: day, Action: model.ActionBuy, Size: 10, Price: 5, Reason: model.ReasonEntry})
	sink.OnResult("AAPL", model.OrderResult{OrderID: "o1", Status: model.StatusFilled, Action: model.ActionBuy, FilledSize: 10, FillPrice: 5.1, Date: day})

	if len(rec.events) != 2 {
		t.Fatalf("got %d events, want 2", len(rec.events))
	}
	in, res := rec.events[0], rec.events[1]
	if in.Kind != "intent" || in.Source != "backtest" || in.Reason != model.ReasonEntry {
		t.Errorf("intent event = %+v", in)
	}
	if res.Kind != "result" || res.Symbol != "AAPL" || res.Status != model.StatusFilled || res.Price != 5.1 {
		t.Errorf("result event = %+v", res)
	}

	// errors are logged, not propagated
	OrderLog{Rec: failing{NewNoopRecorder()}, Log: zerolog.Nop()}.OnIntent(model.OrderIntent{ID: "o2"})
}
