// cmd/itemstore/main.go
//
// itemstore – provisioning entry point.
//
// Life-cycle
// ----------
//
//  1. Load env vars (jail-wide file → .env fallback).
//
//  2. Load layered config, then start the daily rotating logger (tees to
//     console when running in a TTY).
//
//  3. Build repository options: resolve a `vault:` connection secret and
//     attach the identity credential (Vault or static).
//
//  4. Provision: validate options (fail fast, no network on error), open
//     the pool, create the database and containers.
//
//  5. With -serve, keep exposing /metrics and /healthz until SIGINT or
//     SIGTERM.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yanizio/itemstore/internal/config"
	"github.com/yanizio/itemstore/internal/database"
	"github.com/yanizio/itemstore/internal/logger"
	"github.com/yanizio/itemstore/internal/options"
	"github.com/yanizio/itemstore/internal/provision"
	"github.com/yanizio/itemstore/internal/server"
	"github.com/yanizio/itemstore/internal/vault"
)

const serverEnvPath = "/usr/local/etc/itemstore/global.env"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	serve := flag.Bool("serve", false, "keep serving /metrics and /healthz after provisioning")
	flag.Parse()

	loadEnv()
	logger.Bootstrap()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *serve, flag.Args()); err != nil {
		log.Fatalf("itemstore: %v", err)
	}
}

func run(ctx context.Context, serve bool, itemTypes []string) error {
	//
	// ── 1.  Config + logger ─────────────────────────────────────────────
	//
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logOut, err := logger.New(cfg.Paths.Root, cfg.Log.Level, runningInTTY())
	if err != nil {
		return fmt.Errorf("start logger: %w", err)
	}
	defer func() { _ = logOut.Sync() }()

	//
	// ── 2.  Repository options ──────────────────────────────────────────
	//
	var vc *vault.Client
	if cfg.Vault.Enabled {
		if vc, err = vault.New(ctx, logOut); err != nil {
			return err
		}
	}
	opts, err := buildOptions(ctx, cfg, vc)
	if err != nil {
		return err
	}
	holder := options.Of(opts)

	//
	// ── 3.  Provision ───────────────────────────────────────────────────
	//
	pool := database.Options{
		MaxOpenConns:    cfg.Pool.MaxOpenConns,
		MaxIdleConns:    cfg.Pool.MaxIdleConns,
		ConnMaxLifetime: cfg.Pool.ConnMaxLifetime,
		Retries:         cfg.Pool.Retries,
		RetryBackoff:    cfg.Pool.RetryBackoff,
	}
	prov := provision.New(func(ctx context.Context, o options.RepositoryOptions) (*sqlx.DB, error) {
		logOut.Infow("connecting to store", "auth", o.AuthMode().String())
		return database.Open(ctx, o, pool)
	}, options.DefaultValidator{}, logOut)
	defer func() { _ = prov.Close() }()

	var srv *http.Server
	if serve {
		srv = server.New(cfg.HTTP.ListenAddr, server.Router(prov.Ready))
		go func() {
			logOut.Infow("ops listener online", "addr", cfg.HTTP.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logOut.Errorw("ops listener failed", "err", err)
			}
		}()
	}

	containers, err := prov.EnsureContainers(ctx, holder, itemTypes...)
	if err != nil {
		return fmt.Errorf("provision: %w", err)
	}
	logOut.Infow("provisioning complete", "containers", len(containers))

	if srv == nil {
		return nil
	}

	//
	// ── 4.  Serve until signalled ───────────────────────────────────────
	//
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildOptions turns the repository section into runtime options.  It
// resolves vault: secrets and attaches the identity credential, but never
// validates; that is the provisioner's job.
func buildOptions(ctx context.Context, cfg *config.Config, vc *vault.Client) (options.RepositoryOptions, error) {
	opts := cfg.Repository

	if vault.IsRef(opts.ConnectionSecret) {
		if vc == nil {
			return opts, errors.New("connection secret is a vault reference but vault is disabled")
		}
		secret, err := vc.Resolve(ctx, opts.ConnectionSecret, cfg.Vault.CacheTTL)
		if err != nil {
			return opts, fmt.Errorf("resolve connection secret: %w", err)
		}
		opts.ConnectionSecret = secret
	}

	switch cfg.Identity.Source {
	case "vault":
		if vc == nil {
			return opts, errors.New("identity source is vault but vault is disabled")
		}
		opts.TokenCredential = vc
	case "static":
		opts.TokenCredential = options.StaticToken(cfg.Identity.Token)
	}

	zap.S().Debugw("repository options built",
		"auth", opts.AuthMode().String(),
		"container_per_item_type", opts.ContainerPerItemType,
	)
	return opts, nil
}
