package cmd

import (
	"time"

	"github.com/spf13/viper"

	"steadydb/internal/dummy"
	"steadydb/internal/runner"
)

// Config keys. Flags use the same names; env vars are STEADYDB_<KEY> with
// dashes turned into underscores.
const (
	keyWorkers       = "workers"
	keyRecords       = "records"
	keyInterval      = "report-interval"
	keyGrace         = "shutdown-grace"
	keyPoolSize      = "pool-size"
	keyConnTimeout   = "conn-timeout"
	keyIdleTimeout   = "idle-timeout"
	keyMaxLifetime   = "max-lifetime"
	keyDriver        = "driver"
	keyDSN           = "dsn"
	keyHost          = "host"
	keyPort          = "port"
	keyUser          = "user"
	keyPassword      = "password"
	keyDatabase      = "database"
	keyTable         = "table"
	keyLogLevel      = "log-level"
	keyLogFile       = "log-file"
	keyMetricsAddr   = "metrics-addr"
	keyTUI           = "tui"
	keyNoHistory     = "no-history"
	keyHistoryFile   = "history-file"
	keyDummyMinLat   = "dummy-min-latency"
	keyDummyMaxLat   = "dummy-max-latency"
	keyDummyErrRatio = "dummy-error-rate"
)

// runConfig reads the run parameters from v. Keys that are not set keep
// their default; the pool size defaults to 0, meaning one per worker.
func runConfig(v *viper.Viper) runner.Config {
	cfg := runner.DefaultConfig()
	cfg.Datastore.PoolSize = 0

	setInt(v, keyWorkers, &cfg.Workers)
	setInt(v, keyRecords, &cfg.RecordsPerWorker)
	setDuration(v, keyInterval, &cfg.ReportInterval)
	setDuration(v, keyGrace, &cfg.ShutdownGrace)

	ds := &cfg.Datastore
	setString(v, keyDriver, &ds.Driver)
	setString(v, keyDSN, &ds.DSN)
	setString(v, keyHost, &ds.Host)
	setInt(v, keyPort, &ds.Port)
	setString(v, keyUser, &ds.User)
	setString(v, keyPassword, &ds.Password)
	setString(v, keyDatabase, &ds.Database)
	setString(v, keyTable, &ds.Table)
	setInt(v, keyPoolSize, &ds.PoolSize)
	setDuration(v, keyConnTimeout, &ds.ConnTimeout)
	setDuration(v, keyIdleTimeout, &ds.IdleTimeout)
	setDuration(v, keyMaxLifetime, &ds.MaxLifetime)

	return cfg
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setDuration(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}

func dummyConfig(v *viper.Viper, cfg runner.Config) dummy.Config {
	return dummy.Config{
		Slots:       cfg.Datastore.PoolSize,
		ConnTimeout: cfg.Datastore.ConnTimeout,
		MinLatency:  v.GetDuration(keyDummyMinLat),
		MaxLatency:  v.GetDuration(keyDummyMaxLat),
		ErrorRate:   v.GetFloat64(keyDummyErrRatio),
	}
}
