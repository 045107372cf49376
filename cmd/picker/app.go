package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/rs/zerolog"

	"StockPicker/internal/calculator"
	"StockPicker/internal/collector"
	"StockPicker/internal/config"
	"StockPicker/internal/logger"
	"StockPicker/internal/model"
	"StockPicker/internal/recorder"
	"StockPicker/internal/screener"
)

// app holds the collaborators shared by every subcommand.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	closer io.Closer

	store *collector.CSVStore
	ind   *calculator.Engine
}

func newApp(cfgPath, logLevel string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, closer, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return nil, err
	}

	ind, err := calculator.NewEngine(cfg.IndicatorConfig())
	if err != nil {
		closer.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		log:    log,
		closer: closer,
		store:  collector.NewCSVStore(cfg.Data.Dir),
		ind:    ind,
	}, nil
}

func (a *app) Close() error { return a.closer.Close() }

// fetcher returns the remote source configured for downloads.
func (a *app) fetcher() collector.Fetcher {
	switch a.cfg.Data.Source {
	case "rest":
		return collector.NewRESTFetcher(a.cfg.Data.BaseURL, a.cfg.Data.APIKey, a.cfg.Proxy, a.cfg.Download.Timeout)
	case "csv":
		return a.store
	default:
		return collector.NewYahooFetcher(a.cfg.Proxy, a.cfg.Download.Timeout)
	}
}

func (a *app) downloader() *collector.Downloader {
	log := logger.Component(a.log, "downloader")
	return collector.NewDownloader(a.fetcher(), a.store, a.cfg.DownloadConfig(), log)
}

func (a *app) screener() (*screener.Engine, error) {
	return screener.NewEngine(a.cfg.ScreenerConfig(), a.ind)
}

// universe reads the configured symbol list. Without a list file it falls
// back to whatever the local store already holds.
func (a *app) universe() ([]string, error) {
	symbols, err := collector.LoadUniverse(a.cfg.Data.Universe)
	if err == nil {
		return symbols, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var stored []string
	for _, m := range []model.Market{model.MarketDomestic, model.MarketUS} {
		s, err := a.store.Symbols(m)
		if err != nil {
			return nil, err
		}
		stored = append(stored, s...)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("no universe at %s and no stored symbols under %s", a.cfg.Data.Universe, a.cfg.Data.Dir)
	}
	a.log.Warn().Str("path", a.cfg.Data.Universe).Int("symbols", len(stored)).Msg("universe file missing, using stored symbols")
	return stored, nil
}

// recorders opens the SQLite history and the result file writer. A SQLite
// failure degrades to the file writer alone. The returned SQLite recorder
// may be nil.
func (a *app) recorders() (recorder.Multi, *recorder.SQLiteRecorder, error) {
	var out recorder.Multi
	var db *recorder.SQLiteRecorder
	if a.cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(a.cfg.Database.SQLitePath, logger.Component(a.log, "sqlite"))
		if err != nil {
			a.log.Warn().Err(err).Msg("init sqlite recorder failed, continuing without it")
		} else {
			db = sr
			out = append(out, sr)
		}
	}
	fr, err := recorder.NewFileRecorder(a.cfg.Screen.OutputDir, logger.Component(a.log, "results"))
	if err != nil {
		out.Close()
		return nil, nil, err
	}
	return append(out, fr), db, nil
}

func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "configs/config.yaml"
}
