package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"StockPicker/internal/backtest"
	"StockPicker/internal/collector"
	"StockPicker/internal/model"
	"StockPicker/internal/recorder"
)

type fakeTelegram struct {
	mu       sync.Mutex
	failures int
	sent     []string
}

func (f *fakeTelegram) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bottoken/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failures > 0 {
			f.failures--
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		f.sent = append(f.sent, payload["text"])
	})
	mux.HandleFunc("/bottoken/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":true,"result":[{"update_id":7,"message":{"text":" /last "}},{"update_id":8}]}`)
	})
	return mux
}

func newTestNotifier(url string) *TelegramNotifier {
	n := NewTelegramNotifier("token", "42", "", zerolog.Nop())
	n.BaseURL = url
	return n
}

func TestSendWithRetry(t *testing.T) {
	fake := &fakeTelegram{failures: 2}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	n := newTestNotifier(srv.URL)
	if err := n.SendWithRetry(context.Background(), "hello", 3, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.sent) != 1 || fake.sent[0] != "hello" {
		t.Errorf("unexpected sent messages %v", fake.sent)
	}

	fake.failures = 10
	if err := n.SendWithRetry(context.Background(), "again", 1, time.Millisecond); err == nil {
		t.Error("expected exhausted retries")
	}
}

func TestPoll_DispatchesCommands(t *testing.T) {
	fake := &fakeTelegram{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	n := newTestNotifier(srv.URL)
	var got []string
	next, err := n.poll(context.Background(), srv.Client(), 0, func(_ context.Context, cmd string) string {
		got = append(got, cmd)
		return "reply to " + cmd
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != 9 {
		t.Errorf("expected next offset 9, got %d", next)
	}
	if len(got) != 1 || got[0] != "/last" {
		t.Errorf("unexpected commands %v", got)
	}
	if len(fake.sent) != 1 || fake.sent[0] != "reply to /last" {
		t.Errorf("expected the reply to be sent, got %v", fake.sent)
	}
}

func TestFormatScreenReport(t *testing.T) {
	run := &recorder.ScreenRun{
		RunID: "r", Started: time.Date(2025, 8, 22, 15, 30, 0, 0, time.UTC), Evaluated: 2, Passed: 1,
		Candidates: []model.Candidate{
			{Symbol: "600000.SS", J: -3.5, LatestClose: 9.81, Turnover: 2.5e8, Passes: true},
			{Symbol: "MSFT", J: 40},
		},
	}
	msg := FormatScreenReport(run)
	for _, want := range []string{"600000.SS", "J=-3.50", "2.50亿", "入选: 1"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "MSFT") {
		t.Error("non-passing candidates must not be listed")
	}

	empty := FormatScreenReport(&recorder.ScreenRun{})
	if !strings.Contains(empty, "无符合条件") {
		t.Errorf("expected empty notice, got %s", empty)
	}
}

func TestFormatBacktestAndDownload(t *testing.T) {
	rep := &backtest.Report{
		Symbol: "AAPL", Bars: 100, Fills: 2, InitialValue: 1000, FinalValue: 1100, Return: 0.1,
		Intents: []model.OrderIntent{{Action: model.ActionBuy, Size: 10, Price: 100, Reason: model.ReasonEntry}},
	}
	if msg := FormatBacktestReport(rep); !strings.Contains(msg, "+10.00%") || !strings.Contains(msg, "entry") {
		t.Errorf("unexpected backtest message:\n%s", msg)
	}

	dl := &collector.DownloadReport{
		Succeeded: []string{"A"},
		Failed:    []model.SymbolError{{Symbol: "B&C"}},
	}
	if msg := FormatDownloadReport(dl); !strings.Contains(msg, "B&amp;C") {
		t.Errorf("expected escaped symbol, got:\n%s", msg)
	}
}
