// internal/provision/provision.go
//
// Database and container provisioning.
//
// Context
// -------
// `EnsureContainers` is the only way itemstore creates storage.  It runs
// the options validator first and returns its error untouched, so a bad
// configuration never reaches the network.  After that it:
//
//  1. plans the containers for the topology (one shared container, or one
//     per item type),
//  2. checks every database and container name as a SQL identifier,
//  3. connects through the ConnectFunc on first use,
//  4. issues `CREATE DATABASE IF NOT EXISTS` when a database id is set,
//  5. issues `CREATE TABLE IF NOT EXISTS` once per distinct container.
//
// Concurrent calls for the same name collapse through singleflight, and
// names already created are remembered in an LRU so repeat calls issue no
// SQL.  Each event updates Prometheus counters.
//
// Notes
// -----
//   - Items are stored as JSON bodies keyed by (partition_key, id).
//   - Oxford commas, two spaces after periods.
package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/itemstore/internal/cache"
	"github.com/yanizio/itemstore/internal/metrics"
	"github.com/yanizio/itemstore/internal/options"
)

const (
	// MaxKnown bounds the remembered-container cache.
	MaxKnown = 1024

	// StatementTimeout bounds one provisioning statement.
	StatementTimeout = 30 * time.Second
)

// Container is one planned or provisioned container.
type Container struct {
	Database         string // empty means the connection's default schema
	Name             string
	ItemTypes        []string
	PartitionKeyPath string
	DefaultTTLSecs   int64
}

// ConnectFunc opens the store for validated options.  database.Open
// satisfies it once bound to pool settings.
type ConnectFunc func(ctx context.Context, opts options.RepositoryOptions) (*sqlx.DB, error)

// Provisioner creates databases and containers for validated options.
type Provisioner struct {
	connect   ConnectFunc
	validator options.Validator
	log       *zap.SugaredLogger

	dbMu sync.Mutex
	db   *sqlx.DB

	sfg   singleflight.Group
	known *cache.LRU[string, struct{}]
	ready atomic.Bool
}

// New returns a Provisioner that connects through connect on first use.
// A nil validator means options.DefaultValidator, a nil log means zap.S().
func New(connect ConnectFunc, v options.Validator, log *zap.SugaredLogger) *Provisioner {
	if v == nil {
		v = options.DefaultValidator{}
	}
	if log == nil {
		log = zap.S()
	}
	return &Provisioner{
		connect:   connect,
		validator: v,
		log:       log,
		known:     cache.New[string, struct{}](MaxKnown),
	}
}

// NewWithDB returns a Provisioner bound to an already open pool.
func NewWithDB(db *sqlx.DB, v options.Validator, log *zap.SugaredLogger) *Provisioner {
	return New(func(context.Context, options.RepositoryOptions) (*sqlx.DB, error) {
		return db, nil
	}, v, log)
}

// Validate gates h and counts failures by kind.
func (p *Provisioner) Validate(h options.Holder) error {
	err := p.validator.ValidateForContainerCreation(h)
	if err != nil {
		kind := "unknown"
		var fe *options.FieldError
		if errors.As(err, &fe) {
			kind = fe.Kind.String()
		}
		metrics.OptionsValidationFailuresTotal.WithLabelValues(kind).Inc()
		p.log.Errorw("repository options rejected", "kind", kind, "err", err)
	}
	return err
}

// EnsureContainers validates h and then creates whatever is missing for
// itemTypes.  With no itemTypes the item types listed in the options'
// Containers section are used.  Shared topology always yields exactly one
// container.
func (p *Provisioner) EnsureContainers(ctx context.Context, h options.Holder, itemTypes ...string) ([]Container, error) {
	if err := p.Validate(h); err != nil {
		return nil, err
	}
	opts, _ := h.Value()

	plan, err := Plan(opts, itemTypes...)
	if err != nil {
		return nil, err
	}

	db, err := p.conn(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if options.IsSet(opts.DatabaseID) {
		if err := p.ensure(ctx, db, dbKey(opts.DatabaseID), createDatabaseSQL(opts.DatabaseID)); err != nil {
			return nil, fmt.Errorf("database %s: %w", opts.DatabaseID, err)
		}
	}

	for _, c := range plan {
		if err := p.ensure(ctx, db, containerKey(c), createTableSQL(c)); err != nil {
			return nil, fmt.Errorf("container %s: %w", c.Name, err)
		}
		p.log.Infow("container ready",
			"database", c.Database,
			"container", c.Name,
			"item_types", c.ItemTypes,
		)
	}

	p.ready.Store(true)
	return plan, nil
}

// Ready reports whether one EnsureContainers call has succeeded.
func (p *Provisioner) Ready() bool { return p.ready.Load() }

// conn returns the pool, connecting once.  A failed connect is retried on
// the next call.
func (p *Provisioner) conn(ctx context.Context, opts options.RepositoryOptions) (*sqlx.DB, error) {
	p.dbMu.Lock()
	defer p.dbMu.Unlock()
	if p.db != nil {
		return p.db, nil
	}
	if p.connect == nil {
		return nil, errors.New("provisioner has no connect function")
	}
	db, err := p.connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	p.db = db
	return db, nil
}

// Close releases the pool if one was opened.
func (p *Provisioner) Close() error {
	p.dbMu.Lock()
	defer p.dbMu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// ensure runs stmt once per key across concurrent callers and remembers
// success.  The statement runs detached from the leader's ctx, bounded by
// StatementTimeout, so a cancelled caller never fails the others.  Each
// caller still stops waiting when its own ctx is done.
func (p *Provisioner) ensure(ctx context.Context, db *sqlx.DB, key, stmt string) error {
	if _, ok := p.known.Get(key); ok {
		return nil
	}
	ch := p.sfg.DoChan(key, func() (any, error) {
		// Double-check after singleflight barrier.
		if _, ok := p.known.Get(key); ok {
			return nil, nil
		}
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), StatementTimeout)
		defer cancel()
		if _, err := db.ExecContext(sctx, stmt); err != nil {
			metrics.ContainerProvisionErrorsTotal.Inc()
			p.log.Errorw("provisioning statement failed", "key", key, "err", err)
			return nil, err
		}
		if !p.known.Add(key, struct{}{}) {
			metrics.ContainersKnown.Inc()
		}
		metrics.ContainersProvisionedTotal.Inc()
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func dbKey(db string) string { return "db:" + db }

func containerKey(c Container) string { return "container:" + c.Database + "." + c.Name }
