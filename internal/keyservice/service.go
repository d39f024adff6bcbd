// Package keyservice runs content key derivation through the bounded
// scheduler so bulk derivations never fan out into unbounded parallel
// cryptographic work.
package keyservice

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"wallet-core/go-backend/internal/identity"
	"wallet-core/go-backend/internal/platform/scheduler"

	"golang.org/x/sync/errgroup"
)

const componentName = "keyservice"

var ErrNoContentIDs = errors.New("no content ids")

type Service struct {
	engine *identity.Engine
	sched  *scheduler.Scheduler
	logger *slog.Logger
}

// New composes a service. Nil arguments fall back to a default engine, a
// scheduler with scheduler.DefaultConfig and slog.Default.
func New(engine *identity.Engine, sched *scheduler.Scheduler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = identity.NewEngine(identity.WithLogger(logger))
	}
	if sched == nil {
		// DefaultConfig always validates.
		sched, _ = scheduler.New(scheduler.DefaultConfig(), scheduler.WithLogger(logger))
	}
	return &Service{engine: engine, sched: sched, logger: logger}
}

// Derive derives the key material for one content id as a scheduled task.
func (s *Service) Derive(ctx context.Context, root identity.RootSecret, contentID string) (*identity.DerivedKeyMaterial, error) {
	keys, err := scheduler.Run(ctx, s.sched, func(context.Context) (*identity.DerivedKeyMaterial, error) {
		return s.engine.Derive(root, contentID)
	})
	if err != nil {
		s.logWarn("derive", "derivation failed", "content_id", contentID, "error", err.Error())
		return nil, err
	}
	return keys, nil
}

// DeriveBatch derives key material for every id, one scheduled task per id.
// Results are in input order. If any derivation fails, material that was
// already derived is erased and the first error is returned. At most
// 2*MaxConcurrent ids are submitted at a time, so a large batch parks a
// bounded number of goroutines.
func (s *Service) DeriveBatch(ctx context.Context, root identity.RootSecret, contentIDs []string) ([]*identity.DerivedKeyMaterial, error) {
	if len(contentIDs) == 0 {
		return nil, ErrNoContentIDs
	}
	out := make([]*identity.DerivedKeyMaterial, len(contentIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchInFlight(s.sched))
	for i, id := range contentIDs {
		g.Go(func() error {
			keys, err := scheduler.Run(gctx, s.sched, func(context.Context) (*identity.DerivedKeyMaterial, error) {
				return s.engine.Derive(root, id)
			})
			if err != nil {
				return err
			}
			out[i] = keys
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		Release(out...)
		s.logWarn("derive_batch", "batch derivation failed", "count", len(contentIDs), "error", err.Error())
		return nil, err
	}
	s.logger.Debug("batch derived",
		"component", componentName,
		"operation", "derive_batch",
		"count", len(contentIDs),
	)
	return out, nil
}

func batchInFlight(sched *scheduler.Scheduler) int {
	return 2 * sched.Config().MaxConcurrent
}

// Release erases every non-nil entry of materials.
func Release(materials ...*identity.DerivedKeyMaterial) {
	for _, m := range materials {
		m.Erase()
	}
}

func (s *Service) logWarn(operation, message string, attrs ...any) {
	base := []any{
		"component", componentName,
		"operation", strings.TrimSpace(operation),
	}
	s.logger.Warn(message, append(base, attrs...)...)
}
