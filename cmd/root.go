package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"steadydb/internal/banner"
	"steadydb/internal/cli"
	"steadydb/internal/datastore"
	"steadydb/internal/dummy"
	"steadydb/internal/logging"
	"steadydb/internal/metrics"
	"steadydb/internal/runner"
	"steadydb/internal/stats"
	"steadydb/internal/storage"
	"steadydb/internal/tui"
	"steadydb/internal/tui/result"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "steadydb",
	Short: "steadydb - concurrent insert load generator",
	Long: `
steadydb drives a fixed number of workers, each inserting a fixed number of
rows through a shared connection pool, and reports insert throughput.

It supports two output modes:
1. Headless (Default): progress logs and a summary block, for CI usage
2. TUI (--tui): live counters, progress and a rate sparkline`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoadTest(cmd.Context(), viper.GetViper())
	},
}

func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(historyCmd)

	def := runner.DefaultConfig()
	ds := def.Datastore

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.steadydb.yaml)")
	pf.String(keyDriver, ds.Driver, "Datastore driver: mysql, sqlite3 or dummy")
	pf.String(keyDSN, "", "Full data source name (overrides host/port/user/password/database)")
	pf.String(keyHost, ds.Host, "Datastore host")
	pf.Int(keyPort, ds.Port, "Datastore port")
	pf.String(keyUser, ds.User, "Datastore user")
	pf.String(keyPassword, ds.Password, "Datastore password")
	pf.String(keyDatabase, ds.Database, "Database name (file path for sqlite3)")
	pf.String(keyTable, ds.Table, "Target table")
	pf.Duration(keyConnTimeout, ds.ConnTimeout, "Connection acquisition timeout")
	pf.String(keyLogLevel, "info", "Log level: debug, info, warn, error")
	pf.String(keyLogFile, "", "Write logs to this file with rotation (default stderr, or $HOME/.steadydb/steadydb.log with --tui)")
	pf.String(keyHistoryFile, "", "Run history database (default $HOME/.steadydb/history.db)")

	f := rootCmd.Flags()
	f.IntP(keyWorkers, "w", def.Workers, "Number of concurrent workers")
	f.IntP(keyRecords, "n", def.RecordsPerWorker, "Inserts per worker")
	f.Duration(keyInterval, def.ReportInterval, "Progress report interval")
	f.Duration(keyGrace, def.ShutdownGrace, "How long to wait for workers at shutdown")
	f.Int(keyPoolSize, 0, "Connection pool size (must equal workers; 0 means workers)")
	f.Duration(keyIdleTimeout, ds.IdleTimeout, "Close connections idle for longer than this")
	f.Duration(keyMaxLifetime, ds.MaxLifetime, "Close connections older than this")
	f.String(keyMetricsAddr, "", "Serve Prometheus metrics on this address (e.g. :9090)")
	f.Bool(keyTUI, false, "Show the live terminal UI")
	f.Bool(keyNoHistory, false, "Do not record this run in the history database")
	f.Duration(keyDummyMinLat, 0, "dummy driver: minimum insert latency")
	f.Duration(keyDummyMaxLat, time.Millisecond, "dummy driver: maximum insert latency")
	f.Float64(keyDummyErrRatio, 0, "dummy driver: fraction of inserts that fail")

	viper.BindPFlags(pf)
	viper.BindPFlags(f)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".steadydb")
		}
	}
	viper.SetEnvPrefix("steadydb")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		}
	}
}

func setupLogger(v *viper.Viper, tuiMode bool) (*zap.Logger, error) {
	opts := logging.Options{
		Level: v.GetString(keyLogLevel),
		File:  v.GetString(keyLogFile),
	}
	// Log lines would tear the TUI, so it always logs to a file
	if tuiMode && opts.File == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		opts.File = filepath.Join(home, ".steadydb", "steadydb.log")
	}

	logger, err := logging.New(opts)
	if err != nil {
		return nil, err
	}
	logging.SetGlobal(logger)
	return logger, nil
}

// openPool returns the pool for the configured driver. db is nil for the
// dummy driver. The caller closes db.
func openPool(ctx context.Context, v *viper.Viper, cfg runner.Config, logger *zap.Logger) (datastore.Pool, *datastore.DB, error) {
	if cfg.Datastore.Driver == dummy.Driver {
		dc := dummyConfig(v, cfg)
		logging.Debug("Using simulated datastore",
			zap.Int("slots", dc.Slots),
			zap.Duration("max_latency", dc.MaxLatency),
			zap.Float64("error_rate", dc.ErrorRate),
		)
		return dummy.New(dc), nil, nil
	}

	db, err := datastore.Open(ctx, cfg.Datastore, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, db, nil
}

func runLoadTest(ctx context.Context, v *viper.Viper) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tuiMode := v.GetBool(keyTUI)

	logger, err := setupLogger(v, tuiMode)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logging.Sync()

	cfg := runConfig(v)
	if err := cfg.Validate(); err != nil {
		logging.Error("Invalid configuration", zap.Error(err))
		return err
	}

	pool, db, err := openPool(ctx, v, cfg, logger)
	if err != nil {
		logging.Error("Failed to set up datastore", zap.String("driver", cfg.Datastore.Driver), zap.Error(err))
		return err
	}
	if db != nil {
		defer db.Close()
	}

	var updates runner.SampleChan
	if tuiMode {
		updates = make(runner.SampleChan, 16)
	}
	r := runner.NewRunner(cfg, pool, logger, updates)

	if addr := v.GetString(keyMetricsAddr); addr != "" {
		src := metrics.Source{Stats: r.Stats, ActiveWorkers: r.ActiveWorkers}
		if db != nil {
			src.DBStats = db.Stats
		}
		srv, err := metrics.Listen(addr, metrics.NewCollector(src), logger)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()
	}

	var sum stats.Summary
	if tuiMode {
		sum, err = runTUI(ctx, r)
	} else {
		sum, err = cli.Start(ctx, r, os.Stdout)
	}
	if err != nil {
		return err
	}

	if !v.GetBool(keyNoHistory) {
		if err := saveHistory(v, cfg, sum); err != nil {
			logging.Warn("Failed to save run history", zap.Error(err))
		}
	}
	return nil
}

func runTUI(ctx context.Context, r *runner.Runner) (stats.Summary, error) {
	p := tea.NewProgram(tui.NewModel(ctx, r), tea.WithAltScreen())

	final, err := p.Run()
	if err != nil {
		return stats.Summary{}, fmt.Errorf("error running TUI: %w", err)
	}

	m := final.(tui.Model)
	if !m.Done {
		return stats.Summary{}, errors.New("run aborted before workers finished")
	}
	if m.Err != nil {
		return stats.Summary{}, m.Err
	}

	// The alt screen is gone once the program exits
	fmt.Println(banner.GetString())
	fmt.Println(result.Render(m.Summary))
	return m.Summary, nil
}

func openHistory(v *viper.Viper) (*storage.Store, error) {
	path := v.GetString(keyHistoryFile)
	if path == "" {
		var err error
		if path, err = storage.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return storage.NewStore(path)
}

func saveHistory(v *viper.Viper, cfg runner.Config, sum stats.Summary) error {
	store, err := openHistory(v)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Save(storage.NewHistoryItem(cfg, sum)); err != nil {
		return err
	}
	logging.Info("Run recorded in history", zap.String("run_id", sum.RunID))
	return nil
}
