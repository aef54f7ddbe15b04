package datastore

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config describes how to reach the datastore and how to size its pool
type Config struct {
	Driver string
	// DSN overrides the endpoint and credential fields when set
	DSN string

	Host     string
	Port     int
	User     string
	Password string
	Database string
	Table    string

	PoolSize    int
	ConnTimeout time.Duration
	IdleTimeout time.Duration
	MaxLifetime time.Duration
}

// TableName returns the configured table or the default one.
func (c Config) TableName() (string, error) {
	t := c.Table
	if t == "" {
		t = DefaultTable
	}
	if !tableNameRe.MatchString(t) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTable, t)
	}
	return t, nil
}

// DataSourceName builds the driver DSN from the endpoint fields unless DSN is set.
func (c Config) DataSourceName() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}

	switch c.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		mc.DBName = c.Database
		mc.Timeout = c.ConnTimeout
		mc.Loc = time.UTC
		// Each session prepares its insert once on the server and reuses it
		mc.InterpolateParams = false
		return mc.FormatDSN(), nil
	case DriverSQLite:
		name := c.Database
		if name == "" {
			name = "steadydb.db"
		}
		return "file:" + name + "?_busy_timeout=5000&_journal_mode=WAL", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
	}
}
