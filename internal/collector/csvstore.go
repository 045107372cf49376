package collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"StockPicker/internal/model"
)

const dateLayout = "2006-01-02"

// csvColumns is the on-disk column order of a bar file.
var csvColumns = []string{"date", "close", "high", "low", "open", "volume"}

// ErrNotFound is returned when no file exists for a symbol.
var ErrNotFound = errors.New("symbol not found")

// CSVStore keeps one bar file per symbol under <dir>/<market>/<symbol>.csv.
type CSVStore struct {
	Dir string
}

func NewCSVStore(dir string) *CSVStore { return &CSVStore{Dir: dir} }

func (s *CSVStore) Name() string { return "csv" }

// Path returns the file location of a symbol.
func (s *CSVStore) Path(symbol string) string {
	return filepath.Join(s.Dir, string(Market(symbol)), symbol+".csv")
}

// Save overwrites the symbol's file with bars. The write goes through a
// temporary file so a reader never sees a half-written series.
func (s *CSVStore) Save(symbol string, bars []model.Bar) error {
	path := s.Path(symbol)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), symbol+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(csvColumns); err != nil {
		tmp.Close()
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.Date.Format(dateLayout),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", symbol, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadBars reads the full stored history of symbol.
func (s *CSVStore) LoadBars(_ context.Context, symbol string) ([]model.Bar, error) {
	f, err := os.Open(s.Path(symbol))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", symbol, ErrNotFound)
		}
		return nil, err
	}
	defer f.Close()
	bars, err := ReadBarsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", symbol, err)
	}
	return bars, nil
}

// FetchDailyBars returns the latest days bars from disk; days <= 0 means all.
func (s *CSVStore) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.Bar, error) {
	bars, err := s.LoadBars(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if days > 0 && len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

// Symbols lists every stored symbol of a market.
func (s *CSVStore) Symbols(market model.Market) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.Dir, string(market)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ".csv"))
	}
	return out, nil
}

// ReadBarsCSV parses a bar file. Columns are located by header name so
// files written by other tools in a different order still load.
func ReadBarsCSV(r io.Reader) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range csvColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	var bars []model.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		b, err := parseRecord(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseRecord(rec []string, idx map[string]int) (model.Bar, error) {
	var b model.Bar
	date, err := time.Parse(dateLayout, strings.TrimSpace(rec[idx["date"]]))
	if err != nil {
		return b, err
	}
	b.Date = date
	for _, f := range []struct {
		col string
		dst *float64
	}{
		{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close},
	} {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[f.col]]), 64)
		if err != nil {
			return b, fmt.Errorf("%s: %w", f.col, err)
		}
		*f.dst = v
	}
	vol, err := strconv.ParseFloat(strings.TrimSpace(rec[idx["volume"]]), 64)
	if err != nil {
		return b, fmt.Errorf("volume: %w", err)
	}
	b.Volume = int64(vol)
	return b, nil
}
