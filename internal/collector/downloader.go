package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"StockPicker/internal/model"
)

// ErrNoData is returned when a source answers with an empty series.
var ErrNoData = errors.New("no data")

// Saver persists a downloaded series.
type Saver interface {
	Save(symbol string, bars []model.Bar) error
}

// DownloadConfig bounds the network work of one download run.
type DownloadConfig struct {
	Workers int
	Days    int
	Timeout time.Duration // per call
	Retries int           // extra attempts per symbol and pass
	Backoff time.Duration // first retry delay, doubled per attempt
}

// DownloadReport summarises a run.
type DownloadReport struct {
	Succeeded []string
	Failed    []model.SymbolError
	Retried   int // symbols that needed the second pass
	Elapsed   time.Duration
}

// Downloader mirrors a universe from a remote Fetcher into a Saver.
type Downloader struct {
	source Fetcher
	sink   Saver
	cfg    DownloadConfig
	log    zerolog.Logger
	hook   func(symbol string, err error)
}

func NewDownloader(source Fetcher, sink Saver, cfg DownloadConfig, log zerolog.Logger) *Downloader {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.Days <= 0 {
		cfg.Days = 365
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &Downloader{source: source, sink: sink, cfg: cfg, log: log}
}

// OnResult registers a callback invoked once per symbol with its final outcome.
func (d *Downloader) OnResult(fn func(symbol string, err error)) { d.hook = fn }

// Download fetches every symbol, then makes one more pass over the failures.
// A cancelled context stops dispatch; the partial report is returned with
// ctx.Err().
func (d *Downloader) Download(ctx context.Context, symbols []string) (*DownloadReport, error) {
	start := time.Now()
	report := &DownloadReport{}

	failed := d.pass(ctx, symbols, report)
	if len(failed) > 0 && ctx.Err() == nil {
		retry := make([]string, 0, len(failed))
		for s := range failed {
			retry = append(retry, s)
		}
		sort.Strings(retry)
		report.Retried = len(retry)
		d.log.Info().Int("symbols", len(retry)).Msg("retrying failed downloads")
		failed = d.pass(ctx, retry, report)
	}

	for s, err := range failed {
		report.Failed = append(report.Failed, model.SymbolError{Symbol: s, Err: err})
	}
	sort.Strings(report.Succeeded)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Symbol < report.Failed[j].Symbol })
	if d.hook != nil {
		for _, s := range report.Succeeded {
			d.hook(s, nil)
		}
		for _, f := range report.Failed {
			d.hook(f.Symbol, f.Err)
		}
	}
	report.Elapsed = time.Since(start)

	d.log.Info().
		Int("succeeded", len(report.Succeeded)).
		Int("failed", len(report.Failed)).
		Dur("elapsed", report.Elapsed).
		Msg("download finished")
	return report, ctx.Err()
}

// pass runs one worker-pool sweep and returns the symbols that failed.
func (d *Downloader) pass(ctx context.Context, symbols []string, report *DownloadReport) map[string]error {
	type item struct {
		symbol string
		err    error
	}
	jobs := make(chan string)
	results := make(chan item, d.cfg.Workers)
	var wg sync.WaitGroup

	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				results <- item{s, d.fetchOne(ctx, s)}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, s := range symbols {
			select {
			case jobs <- s:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() { wg.Wait(); close(results) }()

	failed := make(map[string]error)
	seen := make(map[string]bool, len(symbols))
	for it := range results {
		seen[it.symbol] = true
		if it.err != nil {
			failed[it.symbol] = it.err
			d.log.Warn().Str("symbol", it.symbol).Err(it.err).Msg("download failed")
			continue
		}
		report.Succeeded = append(report.Succeeded, it.symbol)
	}
	for _, s := range symbols {
		if !seen[s] {
			failed[s] = ctx.Err()
		}
	}
	return failed
}

func (d *Downloader) fetchOne(ctx context.Context, symbol string) error {
	var lastErr error
	for attempt := 0; attempt <= d.cfg.Retries; attempt++ {
		if attempt > 0 {
			backoff := d.cfg.Backoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		err := d.fetchAndSave(ctx, symbol)
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrInvalidBars) || ctx.Err() != nil {
			break
		}
		d.log.Debug().Str("symbol", symbol).Int("attempt", attempt+1).Err(err).Msg("fetch attempt failed")
	}
	return lastErr
}

func (d *Downloader) fetchAndSave(ctx context.Context, symbol string) error {
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()
	bars, err := d.source.FetchDailyBars(callCtx, symbol, d.cfg.Days)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return ErrNoData
	}
	if err := ValidateBars(bars); err != nil {
		return err
	}
	if err := d.sink.Save(symbol, bars); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}
