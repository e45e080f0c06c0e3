// internal/config/model.go
//
// Typed configuration model for itemstore.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                             – dotenv values,
//   • `conf/itemstore.yaml`                       – primary static file,
//   • `ITEMSTORE_`-prefixed environment overrides – highest precedence.
//
// The `repository` section unmarshals straight into
// `options.RepositoryOptions`.  It carries no `validate` tags on purpose:
// the provisioner runs `options.ValidateForContainerCreation` on it, and
// that check owns the error order.  A connection secret may be a
// `vault:` reference, which cmd/itemstore resolves before validation.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import (
	"time"

	"github.com/yanizio/itemstore/internal/options"
)

//
// Log section
//

// Log controls the zap logger.
type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

//
// HTTP section
//

// HTTP holds the ops listener (/metrics, /healthz).
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
}

//
// Vault section
//

// Vault enables secret resolution and the Vault identity credential.
// Address and token still come from VAULT_ADDR and VAULT_TOKEN.
type Vault struct {
	Enabled  bool          `koanf:"enabled"`
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"gte=0"`
}

//
// Identity section
//

// Identity selects where the token credential comes from.  Empty means
// none; the repository then has to authenticate with its secret.
type Identity struct {
	Source string `koanf:"source" validate:"omitempty,oneof=vault static"`
	Token  string `koanf:"token"  validate:"required_if=Source static"`
}

//
// Pool section
//

// Pool tunes the sqlx connection pool.
type Pool struct {
	MaxOpenConns    int           `koanf:"max_open_conns"    validate:"gte=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns"    validate:"gte=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"gte=0"`
	Retries         int           `koanf:"retries"           validate:"gte=0,lte=10"`
	RetryBackoff    time.Duration `koanf:"retry_backoff"     validate:"gte=0"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // ITEMSTORE_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads.
type Config struct {
	Log        Log                       `koanf:"log"`
	HTTP       HTTP                      `koanf:"http"`
	Vault      Vault                     `koanf:"vault"`
	Identity   Identity                  `koanf:"identity"`
	Pool       Pool                      `koanf:"pool"`
	Repository options.RepositoryOptions `koanf:"repository" validate:"-"`
	Paths      Paths                     `koanf:"-"`
}

// Holder wraps the repository section for the options validator.  A nil
// *Config yields the absent holder.
func (c *Config) Holder() options.Holder {
	if c == nil {
		return options.None
	}
	return options.Of(c.Repository)
}

// defaults seeds values that YAML may omit.
func defaults() map[string]any {
	return map[string]any{
		"log.level":              "info",
		"http.listen_addr":       "127.0.0.1:9090",
		"vault.cache_ttl":        "5m",
		"pool.max_open_conns":    15,
		"pool.max_idle_conns":    5,
		"pool.conn_max_lifetime": "30m",
		"pool.retries":           2,
		"pool.retry_backoff":     "500ms",
	}
}
