// internal/database/database_test.go
//
// Unit-tests for DSN building and the Ping retry loop.
//
// Run: go test ./internal/database -v

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/yanizio/itemstore/internal/options"
)

type failingCred struct{}

func (failingCred) Token(context.Context) (options.AccessToken, error) {
	return options.AccessToken{}, errors.New("token endpoint down")
}

func TestDSNSecret(t *testing.T) {
	dsn, err := DSN(context.Background(), options.RepositoryOptions{
		ConnectionSecret: "app:pw@tcp(db:3306)/",
		TokenCredential:  options.StaticToken("ignored"),
	})
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("round-trip parse: %v", err)
	}
	if cfg.User != "app" || cfg.Passwd != "pw" || cfg.Addr != "db:3306" || !cfg.ParseTime {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestDSNSecretGarbage(t *testing.T) {
	_, err := DSN(context.Background(), options.RepositoryOptions{ConnectionSecret: "cs"})
	if !errors.Is(err, ErrBadSecret) {
		t.Fatalf("got %v, want ErrBadSecret", err)
	}
}

func TestDSNIdentity(t *testing.T) {
	cases := []struct {
		endpoint string
		user     string
		addr     string
	}{
		{"db.internal", DefaultIdentityUser, "db.internal:3306"},
		{"db.internal:3307", DefaultIdentityUser, "db.internal:3307"},
		{"mysql://svc@db.internal:3308", "svc", "db.internal:3308"},
		{"mysql://db.internal", DefaultIdentityUser, "db.internal:3306"},
	}
	for _, tc := range cases {
		dsn, err := DSN(context.Background(), options.RepositoryOptions{
			TokenCredential: options.StaticToken("tok"),
			AccountEndpoint: tc.endpoint,
		})
		if err != nil {
			t.Fatalf("DSN(%s): %v", tc.endpoint, err)
		}
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			t.Fatalf("round-trip parse %q: %v", dsn, err)
		}
		if cfg.User != tc.user || cfg.Addr != tc.addr || cfg.Passwd != "tok" {
			t.Errorf("%s: got user=%q addr=%q pw=%q", tc.endpoint, cfg.User, cfg.Addr, cfg.Passwd)
		}
		if !cfg.AllowCleartextPasswords {
			t.Errorf("%s: cleartext passwords not enabled", tc.endpoint)
		}
	}
}

func TestDSNIdentityErrors(t *testing.T) {
	_, err := DSN(context.Background(), options.RepositoryOptions{
		TokenCredential: failingCred{},
		AccountEndpoint: "db",
	})
	if err == nil {
		t.Fatalf("expected token error")
	}

	_, err = DSN(context.Background(), options.RepositoryOptions{
		TokenCredential: options.StaticToken("tok"),
		AccountEndpoint: "mysql://",
	})
	if err == nil {
		t.Fatalf("expected endpoint error")
	}

	_, err = DSN(context.Background(), options.RepositoryOptions{})
	if !errors.Is(err, options.ErrMissingCredential) {
		t.Fatalf("got %v, want missing credential", err)
	}

	// A typed nil credential is absent, not a nil dereference.
	var nilCred *nilTokenCred
	_, err = DSN(context.Background(), options.RepositoryOptions{
		TokenCredential: nilCred,
		AccountEndpoint: "db:3306",
	})
	if !errors.Is(err, options.ErrMissingCredential) {
		t.Fatalf("got %v, want missing credential", err)
	}
}

type nilTokenCred struct{ tok string }

func (c *nilTokenCred) Token(context.Context) (options.AccessToken, error) {
	return options.AccessToken{Value: c.tok}, nil
}

func TestOpenRetriesPing(t *testing.T) {
	db, mock, err := sqlmock.NewWithDSN("database_retry", sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing()

	got, err := open(context.Background(), "sqlmock", "database_retry", Options{
		Retries:      1,
		RetryBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got.DriverName() != "sqlmock" {
		t.Fatalf("driver = %q", got.DriverName())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestOpenGivesUp(t *testing.T) {
	db, mock, err := sqlmock.NewWithDSN("database_giveup", sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	boom := errors.New("connection refused")
	mock.ExpectPing().WillReturnError(boom)
	mock.ExpectPing().WillReturnError(boom)

	_, err = open(context.Background(), "sqlmock", "database_giveup", Options{
		Retries:      1,
		RetryBackoff: time.Millisecond,
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped ping error", err)
	}
}

func TestWithDefaults(t *testing.T) {
	o := Options{MaxIdleConns: -1, Retries: -3}.withDefaults()
	if o.MaxOpenConns != 15 || o.MaxIdleConns != 5 || o.Retries != 0 ||
		o.ConnMaxLifetime != 30*time.Minute || o.RetryBackoff != 500*time.Millisecond {
		t.Fatalf("withDefaults = %+v", o)
	}

	o = Options{}.withDefaults()
	if o.MaxIdleConns != 0 || o.Retries != 0 {
		t.Fatalf("zero idle conns and retries not honoured: %+v", o)
	}
	if o.MaxOpenConns != 15 || o.RetryBackoff != 500*time.Millisecond {
		t.Fatalf("withDefaults(zero) = %+v", o)
	}
}
