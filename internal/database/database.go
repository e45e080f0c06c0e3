// Package database centralises sqlx connection helpers for the item
// store.  The driver is go-sql-driver/mysql, which also works with MariaDB
// and any server speaking the MySQL wire protocol.
//
// Public entry points:
//
//	DSN(ctx, opts)          – driver DSN for the options' auth mode.
//	Open(ctx, opts, pool)   – DSN + sqlx pool + Ping with retries.
//
// Both expect options that already passed
// options.ValidateForContainerCreation.  Open Pings the database before
// returning so callers can fail fast during bootstrap.  Callers should
// Close() the returned *sqlx.DB when no longer needed.
package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/itemstore/internal/options"
)

const (
	driverName = "mysql"

	// DefaultIdentityUser is used when the account endpoint names no user.
	DefaultIdentityUser = "itemstore"
	defaultPort         = "3306"
)

// ErrBadSecret is returned when the connection secret is not a DSN.
var ErrBadSecret = errors.New("connection secret is not a valid DSN")

// Options tunes one pool.  Zero MaxOpenConns, ConnMaxLifetime, and
// RetryBackoff fall back to Defaults.  Zero MaxIdleConns and Retries are
// honoured: no idle connections, a single Ping.  Negative values fall back
// to Defaults for MaxIdleConns and to zero for Retries.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Retries         int
	RetryBackoff    time.Duration
}

// Defaults is 15 max open, 5 idle, a 30-minute connection lifetime, and
// two Ping retries half a second apart.
var Defaults = Options{
	MaxOpenConns:    15,
	MaxIdleConns:    5,
	ConnMaxLifetime: 30 * time.Minute,
	Retries:         2,
	RetryBackoff:    500 * time.Millisecond,
}

// DSN builds the driver DSN.  Secret auth parses the secret as a MySQL
// DSN.  Identity auth asks the credential for a token and sends it as a
// cleartext password to AccountEndpoint.
func DSN(ctx context.Context, opts options.RepositoryOptions) (string, error) {
	switch opts.AuthMode() {
	case options.AuthSecret:
		cfg, err := mysql.ParseDSN(strings.TrimSpace(opts.ConnectionSecret))
		if err != nil {
			// The driver error echoes the DSN, which holds the password.
			return "", ErrBadSecret
		}
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil

	case options.AuthIdentity:
		tok, err := opts.TokenCredential.Token(ctx)
		if err != nil {
			return "", fmt.Errorf("identity token: %w", err)
		}
		user, addr, err := parseEndpoint(opts.AccountEndpoint)
		if err != nil {
			return "", err
		}
		cfg := mysql.NewConfig()
		cfg.User = user
		cfg.Passwd = tok.Value
		cfg.Net = "tcp"
		cfg.Addr = addr
		cfg.AllowCleartextPasswords = true
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil

	default:
		return "", options.ErrMissingCredential
	}
}

// parseEndpoint accepts "mysql://user@host:port", "host:port", or "host".
func parseEndpoint(ep string) (user, addr string, err error) {
	ep = strings.TrimSpace(ep)
	user = DefaultIdentityUser
	addr = ep

	if strings.Contains(ep, "://") {
		u, perr := url.Parse(ep)
		if perr != nil {
			return "", "", fmt.Errorf("account endpoint %q: %w", ep, perr)
		}
		if u.User != nil && u.User.Username() != "" {
			user = u.User.Username()
		}
		addr = u.Host
	}
	if addr == "" {
		return "", "", fmt.Errorf("account endpoint %q has no host", ep)
	}
	if _, _, serr := net.SplitHostPort(addr); serr != nil {
		addr = net.JoinHostPort(addr, defaultPort)
	}
	return user, addr, nil
}

// Open builds the DSN and returns a pinged *sqlx.DB.
func Open(ctx context.Context, opts options.RepositoryOptions, pool Options) (*sqlx.DB, error) {
	dsn, err := DSN(ctx, opts)
	if err != nil {
		return nil, err
	}
	return open(ctx, driverName, dsn, pool)
}

func open(ctx context.Context, driver, dsn string, o Options) (*sqlx.DB, error) {
	o = o.withDefaults()

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxIdleConns)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)

	for attempt := 0; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if attempt >= o.Retries || ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(o.RetryBackoff):
		}
	}
	_ = db.Close()
	return nil, fmt.Errorf("ping: %w", err)
}

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = Defaults.MaxOpenConns
	}
	if o.MaxIdleConns < 0 {
		o.MaxIdleConns = Defaults.MaxIdleConns
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = Defaults.ConnMaxLifetime
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = Defaults.RetryBackoff
	}
	return o
}
