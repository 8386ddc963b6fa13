// Package lock grants, renews and releases advisory per-document-state locks
// with lazy expiry. Locking blocks engine-level writes only; it never
// prevents a direct store write.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/veltadocs/velta/internal/errs"
	"github.com/veltadocs/velta/internal/metrics"
	"github.com/veltadocs/velta/internal/model"
	"github.com/veltadocs/velta/internal/repository"
)

// Manager implements the advisory locking protocol over a LockRepository.
type Manager struct {
	repo repository.LockRepository
	log  *zap.Logger
	m    *metrics.Metrics
	now  func() time.Time
}

// NewManager constructs a lock manager.
func NewManager(repo repository.LockRepository, log *zap.Logger, m *metrics.Metrics) *Manager {
	return &Manager{repo: repo, log: log, m: m, now: time.Now}
}

// Acquire takes or renews the (documentID, state) slot for actorID. The same
// holder always re-acquires their own slot, and an expired slot is silently
// reclaimable by anyone; a live slot held by someone else fails with
// ErrLockHeld and no mutation.
func (mg *Manager) Acquire(ctx context.Context, documentID uuid.UUID, state string, actorID uuid.UUID, ttl time.Duration) (model.Lock, error) {
	now := mg.now()
	l := model.Lock{
		DocumentID: documentID,
		State:      state,
		UserID:     actorID,
		Timeout:    now.Add(ttl),
		CreatedAt:  now,
	}
	ok, err := mg.repo.Upsert(ctx, l, now)
	if err != nil {
		return model.Lock{}, err
	}
	if !ok {
		mg.m.LockConflictsTotal.Inc()
		return model.Lock{}, fmt.Errorf("lock %s/%s: %w", documentID, state, errs.ErrLockHeld)
	}
	mg.m.LockAcquisitionsTotal.Inc()
	return l, nil
}

// IsLockedByOther reports whether a live slot exists whose holder differs
// from actorID. Every engine write consults this before mutating.
func (mg *Manager) IsLockedByOther(ctx context.Context, documentID uuid.UUID, state string, actorID uuid.UUID) (bool, error) {
	l, err := mg.repo.Find(ctx, documentID, state)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if l.Expired(mg.now()) {
		return false, nil
	}
	return l.UserID != actorID, nil
}

// Release removes the document's lock record. Administrators may release on
// behalf of a named surrogate; otherwise every slot of the record must be
// held by the releasing actor, or the release fails without touching any
// slot.
func (mg *Manager) Release(ctx context.Context, documentID uuid.UUID, actor *model.Actor, surrogateID uuid.UUID) error {
	if actor == nil {
		return fmt.Errorf("release %s: anonymous: %w", documentID, errs.ErrUnauthorized)
	}
	holder := actor.ID
	if actor.IsAdmin && surrogateID != uuid.Nil {
		holder = surrogateID
	}

	slots, err := mg.repo.ListByDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		return fmt.Errorf("release %s: %w", documentID, errs.ErrNotFound)
	}
	if !actor.IsAdmin {
		for _, s := range slots {
			if s.UserID != holder {
				return fmt.Errorf("release %s: slot %q held by %s: %w",
					documentID, s.State, s.UserID, errs.ErrUnauthorized)
			}
		}
	}
	return mg.repo.DeleteByDocument(ctx, documentID)
}

// Sweep deletes expired slots. This is storage hygiene only; expiry is
// already evaluated lazily on every acquire and check.
func (mg *Manager) Sweep(ctx context.Context) (int64, error) {
	n, err := mg.repo.DeleteExpired(ctx, mg.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		mg.m.LocksSweptTotal.Add(float64(n))
		mg.log.Info("swept expired locks", zap.Int64("count", n))
	}
	return n, nil
}

// RunSweeper loops Sweep on the given interval until ctx is done.
func (mg *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := mg.Sweep(ctx); err != nil {
				mg.log.Warn("lock sweep failed", zap.Error(err))
			}
		}
	}
}
