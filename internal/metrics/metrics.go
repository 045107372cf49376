package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"StockPicker/internal/model"
	"StockPicker/internal/screener"
)

// Recorder exposes screening, strategy and download counters on its own
// registry so several instances can coexist in tests.
type Recorder struct {
	registry *prometheus.Registry

	screenSymbols  *prometheus.CounterVec
	screenDuration prometheus.Histogram
	screenPassed   prometheus.Gauge
	lastScreen     prometheus.Gauge
	orders         *prometheus.CounterVec
	fills          *prometheus.CounterVec
	downloads      *prometheus.CounterVec
}

// New creates a recorder. With runtime set the Go and process collectors
// are registered as well.
func New(runtime bool) *Recorder {
	reg := prometheus.NewRegistry()
	if runtime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		screenSymbols: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpicker_screen_symbols_total",
				Help: "Symbols processed by the screener by outcome",
			},
			[]string{"outcome"},
		),
		screenDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockpicker_screen_duration_seconds",
			Help:    "Wall time of a screening run",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		screenPassed: f.NewGauge(prometheus.GaugeOpts{
			Name: "stockpicker_screen_candidates_passed",
			Help: "Candidates that passed the last screening run",
		}),
		lastScreen: f.NewGauge(prometheus.GaugeOpts{
			Name: "stockpicker_screen_last_run_timestamp_seconds",
			Help: "Unix time the last screening run finished",
		}),
		orders: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpicker_strategy_orders_total",
				Help: "Order intents issued by the strategy",
			},
			[]string{"action", "reason"},
		),
		fills: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpicker_order_results_total",
				Help: "Execution reports by status",
			},
			[]string{"status"},
		),
		downloads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpicker_download_symbols_total",
				Help: "Symbols downloaded by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) OnEvaluated(c model.Candidate) {
	outcome := "rejected"
	if c.Passes {
		outcome = "passed"
	}
	r.screenSymbols.WithLabelValues(outcome).Inc()
}

func (r *Recorder) OnSkipped(string, error) {
	r.screenSymbols.WithLabelValues("skipped").Inc()
}

func (r *Recorder) OnFailed(string, error) {
	r.screenSymbols.WithLabelValues("failed").Inc()
}

func (r *Recorder) OnFinished(res *screener.Result) {
	r.screenDuration.Observe(res.Elapsed.Seconds())
	r.screenPassed.Set(float64(len(res.Passed())))
	r.lastScreen.Set(float64(res.Started.Add(res.Elapsed).Unix()))
}

func (r *Recorder) OnIntent(in model.OrderIntent) {
	r.orders.WithLabelValues(string(in.Action), string(in.Reason)).Inc()
}

func (r *Recorder) OnResult(_ string, res model.OrderResult) {
	r.fills.WithLabelValues(string(res.Status)).Inc()
}

// OnDownload matches the downloader result hook.
func (r *Recorder) OnDownload(_ string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	r.downloads.WithLabelValues(outcome).Inc()
}

var _ screener.Observer = (*Recorder)(nil)
