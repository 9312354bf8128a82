// Package storage selects the persistence backend once, at process start.
package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/ar"
	"github.com/trezcool/fieldpro/core/business"
	"github.com/trezcool/fieldpro/core/customer"
	"github.com/trezcool/fieldpro/core/job"
	"github.com/trezcool/fieldpro/core/notification"
	"github.com/trezcool/fieldpro/core/product"
	"github.com/trezcool/fieldpro/core/schedule"
	"github.com/trezcool/fieldpro/core/user"
	"github.com/trezcool/fieldpro/storage/failover"
	"github.com/trezcool/fieldpro/storage/localstore"
	"github.com/trezcool/fieldpro/storage/postgres"
	"github.com/trezcool/fieldpro/storage/seed"
	"github.com/trezcool/fieldpro/storage/supabase"
)

const pingTimeout = 5 * time.Second

// Repositories is what the services are built with.
type Repositories struct {
	Backend string // the backend in use, after any startup fallback

	Users         user.Repository
	Businesses    business.Repository
	Customers     customer.Repository
	Products      product.Repository
	Notifications notification.Repository
	Jobs          job.Repository
	Schedules     schedule.Repository
	AR            ar.Repository

	closers []func() error
}

// New bundles b as every repository.
func New(backend string, b failover.Backend, closers ...func() error) *Repositories {
	return &Repositories{
		Backend:       backend,
		Users:         b,
		Businesses:    b,
		Customers:     b,
		Products:      b,
		Notifications: b,
		Jobs:          b,
		Schedules:     b,
		AR:            b,
		closers:       closers,
	}
}

// Degraded reports whether writes are currently being diverted to the local store.
func (r *Repositories) Degraded() bool {
	if f, ok := r.Jobs.(*failover.Repository); ok {
		return f.Degraded()
	}
	return false
}

func (r *Repositories) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type remote interface {
	failover.Backend
	Ping(ctx context.Context) error
}

// Open selects the configured backend. When the remote backend is unreachable at
// startup and fallback is enabled, the local store is used instead.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (*Repositories, error) {
	backend := conf.Storage.Backend
	if backend == "" {
		backend = core.BackendLocal
	}

	var local *localstore.Store
	openLocal := func() error {
		var err error
		if local, err = localstore.Open(conf.Storage.LocalDir, logger); err != nil {
			return err
		}
		data, err := seed.Load(conf.Storage.SeedFile)
		if err == nil {
			_, err = local.InitializeData(ctx, data)
		}
		if err != nil {
			_ = local.Close()
		}
		return err
	}

	if backend == core.BackendLocal {
		if err := openLocal(); err != nil {
			return nil, err
		}
		logger.Info("storage: using the local store at " + local.Dir())
		return New(core.BackendLocal, local, local.Close), nil
	}

	primary, closePrimary, err := openRemote(ctx, backend, conf, logger)
	if err != nil {
		if !conf.Storage.Fallback {
			return nil, err
		}
		logger.Warn("storage: "+backend+" unavailable, using the local store", err)
		if err = openLocal(); err != nil {
			return nil, err
		}
		return New(core.BackendLocal, local, local.Close), nil
	}

	if !conf.Storage.Fallback {
		logger.Info("storage: using " + backend)
		return New(backend, primary, closePrimary), nil
	}
	if err = openLocal(); err != nil {
		_ = closePrimary()
		return nil, err
	}
	logger.Info("storage: using " + backend + " with local fallback at " + local.Dir())
	return New(backend, failover.New(primary, local, logger), closePrimary, local.Close), nil
}

func openRemote(ctx context.Context, backend string, conf *core.Config, logger core.Logger) (remote, func() error, error) {
	var (
		repo    remote
		closeFn = func() error { return nil }
	)

	switch backend {
	case core.BackendSupabase:
		sb, err := supabase.NewRepository(conf.Supabase, func(from, to supabase.CircuitState) {
			if to == supabase.CircuitOpen {
				logger.Warn("storage: supabase circuit " + from.String() + " -> " + to.String())
			} else {
				logger.Info("storage: supabase circuit " + from.String() + " -> " + to.String())
			}
		})
		if err != nil {
			return nil, nil, err
		}
		repo = sb

	case core.BackendPostgres:
		db, err := postgres.Open(conf.Database)
		if err != nil {
			return nil, nil, err
		}
		repo, closeFn = postgres.NewRepository(db), db.Close

	default:
		return nil, nil, errors.Errorf("unknown storage backend %q", backend)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		_ = closeFn()
		return nil, nil, errors.Wrap(err, backend)
	}
	return repo, closeFn, nil
}
