package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"StockPicker/internal/calculator"
	"StockPicker/internal/collector"
	"StockPicker/internal/recorder"
	"StockPicker/internal/screener"
)

type captureNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (c *captureNotifier) Send(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

type staticHistory struct{ run *recorder.ScreenRun }

func (h staticHistory) LastScreen() (*recorder.ScreenRun, error) { return h.run, nil }

func newTestScheduler(t *testing.T, n *captureNotifier) *Scheduler {
	t.Helper()
	ind, err := calculator.NewEngine(calculator.DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	cfg := screener.DefaultConfig()
	cfg.Workers = 2
	eng, err := screener.NewEngine(cfg, ind)
	if err != nil {
		t.Fatalf("screener.NewEngine: %v", err)
	}

	store := collector.NewCSVStore(t.TempDir())
	src := &collector.MockFetcher{Volume: 2_000_000_000}
	dl := collector.NewDownloader(src, store, collector.DownloadConfig{Workers: 2, Days: 60}, zerolog.Nop())

	return New(Options{
		Downloader: dl,
		Screener:   eng,
		Loader:     store,
		Universe:   func() ([]string, error) { return []string{"AAPL", "600000.SS"}, nil },
		Notifier:   n,
		Log:        zerolog.Nop(),
	})
}

func TestDownloadThenScreen(t *testing.T) {
	n := &captureNotifier{}
	s := newTestScheduler(t, n)
	ctx := context.Background()

	rep, err := s.RunDownloadNow(ctx)
	if err != nil {
		t.Fatalf("RunDownloadNow: %v", err)
	}
	if len(rep.Succeeded) != 2 || len(rep.Failed) != 0 {
		t.Fatalf("download report = %+v", rep)
	}

	run, err := s.RunScreenNow(ctx)
	if err != nil {
		t.Fatalf("RunScreenNow: %v", err)
	}
	if run.Evaluated != 2 || run.Failed != 0 || run.Skipped != 0 {
		t.Errorf("run = %+v", run)
	}

	if len(n.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(n.sent))
	}
	if !strings.Contains(n.sent[0], "数据下载完成") || !strings.Contains(n.sent[1], "评估: 2") {
		t.Errorf("unexpected messages %q", n.sent)
	}

	if got := s.HandleCommand(ctx, "/last"); !strings.Contains(got, "评估: 2") {
		t.Errorf("/last = %q", got)
	}
}

func TestScreenWithEmptyStoreFails(t *testing.T) {
	s := newTestScheduler(t, &captureNotifier{})
	run, err := s.RunScreenNow(context.Background())
	if err != nil {
		t.Fatalf("RunScreenNow: %v", err)
	}
	if run.Evaluated != 0 || run.Failed != 2 {
		t.Errorf("run = %+v, want two failures", run)
	}
}

func TestHandleCommand(t *testing.T) {
	s := newTestScheduler(t, &captureNotifier{})
	ctx := context.Background()

	if got := s.HandleCommand(ctx, "/last"); got != "暂无选股记录" {
		t.Errorf("/last before any run = %q", got)
	}
	if got := s.HandleCommand(ctx, "/help@picker_bot"); got != helpText {
		t.Errorf("/help = %q", got)
	}
	if got := s.HandleCommand(ctx, "hello"); got != helpText {
		t.Errorf("unknown command = %q", got)
	}

	s.opts.History = staticHistory{run: &recorder.ScreenRun{RunID: "r1", Started: time.Now(), Evaluated: 7}}
	if got := s.HandleCommand(ctx, "/last"); !strings.Contains(got, "评估: 7") {
		t.Errorf("/last from history = %q", got)
	}
}

func TestRunRejectsOverlap(t *testing.T) {
	s := newTestScheduler(t, &captureNotifier{})
	s.screenMu.Lock()
	defer s.screenMu.Unlock()
	if _, err := s.RunScreenNow(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}
}

func TestRegisterAll(t *testing.T) {
	s := newTestScheduler(t, &captureNotifier{})
	if err := s.RegisterAll("not a cron", "0 0 17 * * 1-5"); err == nil {
		t.Error("RegisterAll accepted an invalid expression")
	}

	s = newTestScheduler(t, &captureNotifier{})
	if err := s.RegisterAll("0 30 16 * * 1-5", "0 0 17 * * 1-5"); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	if got := len(s.cron.Entries()); got != 2 {
		t.Errorf("entries = %d, want 2", got)
	}
}
