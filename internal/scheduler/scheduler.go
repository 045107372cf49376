package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"StockPicker/internal/collector"
	"StockPicker/internal/notifier"
	"StockPicker/internal/recorder"
	"StockPicker/internal/screener"
)

// ErrBusy is returned when a job of the same kind is already running.
var ErrBusy = errors.New("job already running")

// History returns the most recent persisted screening run.
type History interface {
	LastScreen() (*recorder.ScreenRun, error)
}

type retrier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int, baseDelay time.Duration) error
}

// Options wires the collaborators of a Scheduler. Downloader, History and
// Observer are optional.
type Options struct {
	Downloader *collector.Downloader
	Screener   *screener.Engine
	Loader     screener.Loader
	Universe   func() ([]string, error)
	Recorder   recorder.Recorder
	History    History
	Notifier   notifier.Notifier
	Observer   screener.Observer
	Log        zerolog.Logger
}

// Scheduler runs the download and screening jobs on cron schedules and on
// demand from chat commands.
type Scheduler struct {
	cron *cron.Cron
	opts Options
	log  zerolog.Logger
	ctx  context.Context

	downloadMu sync.Mutex
	screenMu   sync.Mutex

	mu   sync.RWMutex
	last *recorder.ScreenRun
}

func New(opts Options) *Scheduler {
	if opts.Recorder == nil {
		opts.Recorder = recorder.NewNoopRecorder()
	}
	if opts.Notifier == nil {
		opts.Notifier = notifier.NoopNotifier{}
	}
	if opts.Observer == nil {
		opts.Observer = screener.NopObserver{}
	}
	cronLog := opts.Log.With().Str("component", "cron").Logger()
	logger := cron.PrintfLogger(&cronLog)
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		opts: opts,
		log:  opts.Log,
		ctx:  context.Background(),
	}
}

// RegisterAll registers the download and screening jobs. An empty
// expression leaves that job unscheduled.
func (s *Scheduler) RegisterAll(downloadCron, screenCron string) error {
	if downloadCron != "" && s.opts.Downloader != nil {
		if _, err := s.cron.AddFunc(downloadCron, s.downloadJob); err != nil {
			return fmt.Errorf("register download task: %w", err)
		}
	}
	if screenCron != "" {
		if _, err := s.cron.AddFunc(screenCron, s.screenJob); err != nil {
			return fmt.Errorf("register screen task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler. Jobs run under ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) downloadJob() {
	if _, err := s.RunDownloadNow(s.ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduled download failed")
	}
}

func (s *Scheduler) screenJob() {
	if _, err := s.RunScreenNow(s.ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduled screen failed")
	}
}

// RunDownloadNow refreshes the local store for the whole universe and
// reports the outcome through the notifier.
func (s *Scheduler) RunDownloadNow(ctx context.Context) (*collector.DownloadReport, error) {
	if s.opts.Downloader == nil {
		return nil, errors.New("no downloader configured")
	}
	if !s.downloadMu.TryLock() {
		return nil, ErrBusy
	}
	defer s.downloadMu.Unlock()

	symbols, err := s.opts.Universe()
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	s.log.Info().Int("symbols", len(symbols)).Msg("running download")
	report, err := s.opts.Downloader.Download(ctx, symbols)
	if report != nil {
		s.trySend(ctx, notifier.FormatDownloadReport(report))
	}
	return report, err
}

// RunScreenNow screens the universe from the local store, records the run
// and sends the report.
func (s *Scheduler) RunScreenNow(ctx context.Context) (*recorder.ScreenRun, error) {
	if !s.screenMu.TryLock() {
		return nil, ErrBusy
	}
	defer s.screenMu.Unlock()

	symbols, err := s.opts.Universe()
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	s.log.Info().Int("symbols", len(symbols)).Msg("running screen")
	res, err := s.opts.Screener.Screen(ctx, s.opts.Loader, symbols, s.opts.Observer)
	if err != nil {
		return nil, fmt.Errorf("screen: %w", err)
	}

	run := recorder.NewScreenRun(res)
	if err := s.opts.Recorder.RecordScreen(run); err != nil {
		s.log.Error().Err(err).Str("run_id", run.RunID).Msg("record screen")
	}
	s.mu.Lock()
	s.last = run
	s.mu.Unlock()

	s.trySend(ctx, notifier.FormatScreenReport(run))
	return run, nil
}

// Last returns the latest run of this process, falling back to History.
func (s *Scheduler) Last() (*recorder.ScreenRun, error) {
	s.mu.RLock()
	run := s.last
	s.mu.RUnlock()
	if run != nil {
		return run, nil
	}
	if s.opts.History == nil {
		return nil, recorder.ErrNoRuns
	}
	return s.opts.History.LastScreen()
}

const helpText = "可用命令:\n• /screen 立即选股\n• /last 最近一次选股结果\n• /download 更新行情数据\n• /help 帮助"

// HandleCommand processes a chat command and returns a reply. Jobs
// started from a command send their own report, so they reply with "".
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	cmd := strings.TrimSpace(command)
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	switch cmd {
	case "/screen", "选股":
		if _, err := s.RunScreenNow(ctx); err != nil {
			return fmt.Sprintf("❌ 选股失败: %v", err)
		}
		return ""
	case "/last", "最新结果":
		run, err := s.Last()
		if errors.Is(err, recorder.ErrNoRuns) {
			return "暂无选股记录"
		}
		if err != nil {
			return fmt.Sprintf("❌ 读取记录失败: %v", err)
		}
		return notifier.FormatScreenReport(run)
	case "/download", "更新数据":
		if _, err := s.RunDownloadNow(ctx); err != nil {
			return fmt.Sprintf("❌ 数据更新失败: %v", err)
		}
		return ""
	default:
		return helpText
	}
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	var err error
	if r, ok := s.opts.Notifier.(retrier); ok {
		err = r.SendWithRetry(ctx, text, 3, 2*time.Second)
	} else {
		err = s.opts.Notifier.Send(ctx, text)
	}
	if err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}
