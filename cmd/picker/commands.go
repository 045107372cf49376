package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"StockPicker/internal/backtest"
	"StockPicker/internal/collector"
	"StockPicker/internal/fund"
	"StockPicker/internal/logger"
	"StockPicker/internal/metrics"
	"StockPicker/internal/model"
	"StockPicker/internal/notifier"
	"StockPicker/internal/recorder"
	"StockPicker/internal/scheduler"
	"StockPicker/internal/screener"
	"StockPicker/internal/strategy"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func downloadCmd() *cobra.Command {
	var symbols []string
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download daily bars for the universe into the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if len(symbols) == 0 {
				if symbols, err = a.universe(); err != nil {
					return err
				}
			}
			ctx, cancel := signalContext()
			defer cancel()

			rep, err := a.downloader().Download(ctx, symbols)
			if rep != nil {
				fmt.Printf("downloaded %d, failed %d, retried %d in %s\n",
					len(rep.Succeeded), len(rep.Failed), rep.Retried, rep.Elapsed.Round(time.Second))
				for _, f := range rep.Failed {
					fmt.Printf("  %s: %v\n", f.Symbol, f.Err)
				}
			}
			return err
		},
	}
	cmd.Flags().StringSliceVarP(&symbols, "symbols", "s", nil, "Symbols to download instead of the universe")
	return cmd
}

func screenCmd() *cobra.Command {
	var notify bool
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Screen the stored universe and write the ranked candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			eng, err := a.screener()
			if err != nil {
				return err
			}
			symbols, err := a.universe()
			if err != nil {
				return err
			}
			recs, _, err := a.recorders()
			if err != nil {
				return err
			}
			defer recs.Close()

			ctx, cancel := signalContext()
			defer cancel()

			obs := screener.LogObserver{Log: logger.Component(a.log, "screener")}
			res, err := eng.Screen(ctx, a.store, symbols, obs)
			if err != nil {
				return err
			}
			run := recorder.NewScreenRun(res)
			if err := recs.RecordScreen(run); err != nil {
				a.log.Error().Err(err).Msg("record screen")
			}
			printCandidates(run)

			if notify && a.cfg.TelegramEnabled() {
				tn := notifier.NewTelegramNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID, a.cfg.Proxy, logger.Component(a.log, "telegram"))
				if err := tn.SendWithRetry(ctx, notifier.FormatScreenReport(run), 3, 2*time.Second); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "Send the report to Telegram")
	return cmd
}

func printCandidates(run *recorder.ScreenRun) {
	fmt.Printf("evaluated %d, passed %d, skipped %d, failed %d in %s\n",
		run.Evaluated, run.Passed, run.Skipped, run.Failed, run.Elapsed.Round(time.Millisecond))
	passed := run.PassedCandidates()
	if len(passed) == 0 {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSYMBOL\tDATE\tCLOSE\tTURNOVER\tK\tD\tJ")
	for i, c := range passed {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%.0f\t%.2f\t%.2f\t%.2f\n",
			i+1, c.Symbol, c.LatestDate.Format("2006-01-02"), c.LatestClose, c.Turnover, c.K, c.D, c.J)
	}
	w.Flush()
}

func backtestCmd() *cobra.Command {
	var (
		symbol string
		fetch  bool
		save   bool
		resume bool
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the strategy over one symbol's history",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			symbol = collector.NormalizeSymbol(symbol)
			ctx, cancel := signalContext()
			defer cancel()

			var bars []model.Bar
			if fetch {
				bars, err = a.fetcher().FetchDailyBars(ctx, symbol, a.cfg.Download.Days)
			} else {
				bars, err = a.store.LoadBars(ctx, symbol)
			}
			if err != nil {
				return err
			}

			recs, _, err := a.recorders()
			if err != nil {
				return err
			}
			defer recs.Close()

			sink := recorder.OrderLog{Rec: recs, Source: "backtest", Log: a.log}
			runner := backtest.NewRunner(a.cfg.BacktestConfig(), a.cfg.StrategyConfig(), a.ind, logger.Component(a.log, "backtest")).
				WithSink(sink)
			if resume {
				book, err := strategy.LoadBook(a.cfg.Strategy.StateFile)
				if err != nil {
					return err
				}
				acct, err := fund.LoadState(a.cfg.Backtest.StateFile)
				if err != nil {
					return err
				}
				runner.Resume(*book.Get(symbol), *acct, book.LastBar(symbol))
			}
			rep, err := runner.Run(ctx, model.Series{Symbol: symbol, Bars: bars})
			if err != nil {
				return err
			}

			fmt.Printf("%s: %d bars, %d orders, %d fills\n", rep.Symbol, rep.Bars, len(rep.Intents), rep.Fills)
			fmt.Printf("value %.2f -> %.2f (%+.2f%%)\n", rep.InitialValue, rep.FinalValue, rep.Return*100)
			if rep.FinalState.PositionSize > 0 {
				fmt.Printf("open position %.0f @ %.2f, stop %.2f\n",
					rep.FinalState.PositionSize, rep.FinalState.EntryPrice, rep.FinalState.StopPrice)
			}

			if save {
				return saveBacktestState(a, rep)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "Symbol to backtest")
	cmd.Flags().BoolVar(&fetch, "fetch", false, "Fetch bars from the remote source instead of the store")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the final strategy and account state")
	cmd.Flags().BoolVar(&resume, "resume", false, "Continue from the saved strategy and account state")
	cmd.MarkFlagRequired("symbol")
	return cmd
}

// saveBacktestState stores the symbol's final strategy state in the book
// and the paper account snapshot next to it.
func saveBacktestState(a *app, rep *backtest.Report) error {
	book, err := strategy.LoadBook(a.cfg.Strategy.StateFile)
	if err != nil {
		return err
	}
	*book.Get(rep.Symbol) = rep.FinalState
	if !rep.Through.IsZero() {
		book.SetLastBar(rep.Symbol, rep.Through)
	}
	if err := book.Save(a.cfg.Strategy.StateFile); err != nil {
		return err
	}
	return fund.SaveState(a.cfg.Backtest.StateFile, &rep.Account)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled downloads and screens with Telegram commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(a)
		},
	}
}

func serve(a *app) error {
	a.log.Info().Str("version", version).Msg("StockPicker starting")

	eng, err := a.screener()
	if err != nil {
		return err
	}
	recs, db, err := a.recorders()
	if err != nil {
		return err
	}
	defer recs.Close()

	met := metrics.New(true)
	dl := a.downloader()
	dl.OnResult(met.OnDownload)

	var (
		note notifier.Notifier = notifier.NoopNotifier{}
		tn   *notifier.TelegramNotifier
	)
	if a.cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID, a.cfg.Proxy, logger.Component(a.log, "telegram"))
		note = tn
	} else {
		a.log.Warn().Msg("telegram not configured, reports are only logged")
	}

	opts := scheduler.Options{
		Downloader: dl,
		Screener:   eng,
		Loader:     a.store,
		Universe:   a.universe,
		Recorder:   recs,
		Notifier:   note,
		Observer:   screener.MultiObserver{screener.LogObserver{Log: logger.Component(a.log, "screener")}, met},
		Log:        logger.Component(a.log, "scheduler"),
	}
	if db != nil {
		opts.History = db
	}
	sched := scheduler.New(opts)
	if err := sched.RegisterAll(a.cfg.Schedule.DownloadCron, a.cfg.Schedule.ScreenCron); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	sched.Start(ctx)
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		a.log.Info().Msg("telegram polling started")
	}

	var srv *http.Server
	if a.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", met.Handler())
		srv = &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error().Err(err).Msg("metrics server")
			}
		}()
		a.log.Info().Str("addr", a.cfg.Metrics.Addr).Msg("metrics server started")
	}

	if a.cfg.Schedule.RunOnStart {
		a.log.Info().Msg("run_on_start enabled, screening now")
		go func() {
			if _, err := sched.RunScreenNow(ctx); err != nil {
				a.log.Error().Err(err).Msg("startup screen")
			}
		}()
	}

	a.log.Info().Msg("StockPicker is running, press Ctrl+C to stop")
	<-ctx.Done()
	a.log.Info().Msg("shutdown signal received, stopping")

	if srv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error().Err(err).Msg("metrics server shutdown")
		}
	}
	return nil
}
