package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var pickColumns = []string{
	"rank", "symbol", "market", "latest_date", "latest_close",
	"turnover_mv5", "k_value", "d_value", "j_value", "data_points",
}

// FileRecorder writes each run's passing candidates as
// selected_stocks_<ts>.csv and the bare symbol list as selected_stocks_<ts>.txt.
// Order events are appended to orders.csv.
type FileRecorder struct {
	dir string
	mu  sync.Mutex
	log zerolog.Logger
	now func() time.Time
}

func NewFileRecorder(dir string, log zerolog.Logger) (*FileRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FileRecorder{dir: dir, log: log, now: time.Now}, nil
}

func round3(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }

func (f *FileRecorder) RecordScreen(run *ScreenRun) error {
	passed := run.PassedCandidates()
	if len(passed) == 0 {
		f.log.Warn().Str("run_id", run.RunID).Msg("no stocks to save")
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	stamp := f.now().Format("20060102_150405")
	base := filepath.Join(f.dir, "selected_stocks_"+stamp)

	rows := make([][]string, 0, len(passed)+1)
	rows = append(rows, pickColumns)
	symbols := make([]string, 0, len(passed))
	for i, c := range passed {
		rows = append(rows, []string{
			strconv.Itoa(i + 1), c.Symbol, string(c.Market), c.LatestDate.Format("2006-01-02"),
			round3(c.LatestClose), round3(c.Turnover), round3(c.K), round3(c.D), round3(c.J),
			strconv.Itoa(c.Bars),
		})
		symbols = append(symbols, c.Symbol)
	}
	if err := writeCSV(base+".csv", rows, false); err != nil {
		return err
	}
	if err := os.WriteFile(base+".txt", []byte(strings.Join(symbols, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("write symbol list: %w", err)
	}
	f.log.Info().Str("path", base+".csv").Int("symbols", len(passed)).Msg("results saved")
	return nil
}

func (f *FileRecorder) RecordOrder(evt *OrderEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := []string{
		f.now().Format(time.RFC3339), evt.Source, evt.Kind, evt.Symbol, evt.OrderID,
		evt.Date.Format("2006-01-02"), string(evt.Action), string(evt.Reason), string(evt.Status),
		strconv.FormatFloat(evt.Size, 'f', -1, 64), round3(evt.Price), evt.Message,
	}
	return writeCSV(filepath.Join(f.dir, "orders.csv"), [][]string{row}, true)
}

func (f *FileRecorder) Close() error { return nil }

func writeCSV(path string, rows [][]string, appendMode bool) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}
