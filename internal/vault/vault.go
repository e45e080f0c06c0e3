// internal/vault/vault.go
//
// Vault client wrapper for itemstore.
//
// Context
// -------
//   - Provides a concurrency‑safe wrapper around the HashiCorp Vault Go SDK.
//   - Resolves `vault:<mount>/<path>#<key>` references so the repository
//     connection secret never has to live in YAML or git.
//   - Doubles as the identity credential: `Token` satisfies
//     `options.TokenCredential` with the current Vault token and its TTL.
//   - Adds background token renewal and per‑key caching.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx, log)                   // during boot.
//  2. dsn, err := cli.Resolve(ctx, raw, ttl)            // secret refs.
//  3. opts.TokenCredential = cli                        // identity auth.
//
// Build tags: none.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/yanizio/itemstore/internal/options"
)

// RefPrefix marks a config value that must be read from Vault.
const RefPrefix = "vault:"

var (
	// ErrBadRef is returned for a malformed vault: reference.
	ErrBadRef = errors.New("malformed vault reference")
	// ErrNoToken is returned by Token when the client holds no token.
	ErrNoToken = errors.New("vault client has no token")
)

//
// SECTION 1.  Public façade
//

// Client is safe for concurrent use.  Create once at startup.  Zero value
// is invalid.
type Client struct {
	api *vault.Client
	log *zap.SugaredLogger

	cacheMu sync.RWMutex
	cache   map[string]cached // canonical path#key → value + expiry.
}

type cached struct {
	val string
	exp time.Time
}

var _ options.TokenCredential = (*Client)(nil)

// New constructs a Vault client from the environment and starts a
// background token‑renewal loop bound to ctx.
//
// Environment expectations
// ------------------------
// • VAULT_ADDR   – scheme and host of the Vault server.
// • VAULT_TOKEN  – initial token (falls back to ~/.vault‑token).
func New(ctx context.Context, log *zap.SugaredLogger) (*Client, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}

	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		apiCli.SetToken(tok)
	}

	c := wrap(apiCli, log)
	go c.renewLoop(ctx)
	return c, nil
}

// wrap builds a Client around an existing API client without starting the
// renewal loop.
func wrap(apiCli *vault.Client, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		api:   apiCli,
		log:   log,
		cache: make(map[string]cached),
	}
}

// GetKV fetches a single key from a KV‑v2 secret.  If ttl > 0 the result is
// cached for that duration.
func (c *Client) GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error) {
	if secretPath == "" || key == "" {
		return "", errors.New("secret path and key must be non‑empty")
	}

	canonical := secretPath + "#" + key

	if ttl > 0 {
		c.cacheMu.RLock()
		cv, ok := c.cache[canonical]
		c.cacheMu.RUnlock()
		if ok && time.Now().Before(cv.exp) {
			return cv.val, nil
		}
	}

	mount, rel := splitMount(secretPath)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}

	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}

	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s#%s is not a string", secretPath, key)
	}

	if ttl > 0 {
		c.cacheMu.Lock()
		c.cache[canonical] = cached{val: sval, exp: time.Now().Add(ttl)}
		c.cacheMu.Unlock()
	}

	return sval, nil
}

// Resolve returns value unchanged unless it starts with RefPrefix, in
// which case the referenced KV‑v2 key is fetched.
func (c *Client) Resolve(ctx context.Context, value string, ttl time.Duration) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	path, key, err := ParseRef(value)
	if err != nil {
		return "", err
	}
	return c.GetKV(ctx, path, key, ttl)
}

// Token reports the client's current token and when it expires.  A
// zero ExpiresOn means the token does not expire.
func (c *Client) Token(ctx context.Context) (options.AccessToken, error) {
	tok := c.api.Token()
	if tok == "" {
		return options.AccessToken{}, ErrNoToken
	}

	sec, err := c.api.Auth().Token().LookupSelfWithContext(ctx)
	if err != nil {
		return options.AccessToken{}, fmt.Errorf("vault token lookup: %w", err)
	}
	ttl, err := sec.TokenTTL()
	if err != nil {
		return options.AccessToken{}, fmt.Errorf("vault token ttl: %w", err)
	}

	at := options.AccessToken{Value: tok}
	if ttl > 0 {
		at.ExpiresOn = time.Now().Add(ttl)
	}
	return at, nil
}

//
// SECTION 2.  References
//

// IsRef reports whether value is a vault: reference.
func IsRef(value string) bool { return strings.HasPrefix(value, RefPrefix) }

// ParseRef splits "vault:secret/itemstore/db#dsn" into the secret path
// "secret/itemstore/db" and key "dsn".
func ParseRef(ref string) (path, key string, err error) {
	body := strings.TrimPrefix(ref, RefPrefix)
	path, key, ok := strings.Cut(body, "#")
	if !ok || path == "" || key == "" || !strings.Contains(path, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrBadRef, ref)
	}
	return path, key, nil
}

//
// SECTION 3.  Background token renewal
//

func (c *Client) renewLoop(ctx context.Context) {
	for ctx.Err() == nil {
		sec, err := c.api.Auth().Token().RenewSelfWithContext(ctx, 0)
		if err != nil {
			c.log.Warnw("vault token renew-self failed", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}

		if sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
			c.log.Infow("vault token is not renewable, sleeping", "for", time.Hour)
			backoff(ctx, time.Hour)
			continue
		}

		watcher, err := c.api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{
			Secret: sec,
		})
		if err != nil {
			c.log.Warnw("vault lifetime watcher init failed", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}

		c.watch(ctx, watcher)
		backoff(ctx, 15*time.Second)
	}
}

// watch blocks until the watcher stops or ctx ends.
func (c *Client) watch(ctx context.Context, w *vault.LifetimeWatcher) {
	go w.Start()
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-w.DoneCh():
			if err != nil {
				c.log.Warnw("vault token renewal stopped", "err", err)
			}
			return
		case ev := <-w.RenewCh():
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				c.log.Debugw("vault token renewed", "ttl_seconds", ev.Secret.Auth.LeaseDuration)
			}
		}
	}
}

//
// SECTION 4.  Helpers
//

func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return
}

func backoff(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
