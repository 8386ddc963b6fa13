package version

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/veltadocs/velta/internal/errs"
	"github.com/veltadocs/velta/internal/lock"
	"github.com/veltadocs/velta/internal/metrics"
	"github.com/veltadocs/velta/internal/model"
	"github.com/veltadocs/velta/internal/perm"
	"github.com/veltadocs/velta/internal/resource"
)

// headSlot is the single lock slot of a versioned document. The head is
// locked as a whole; there are no per-state slots to reserve.
const headSlot = "head"

// Service wires permission and lock checks around the version engine, the
// same gating multi-state documents receive before their change-sets apply.
type Service struct {
	reg   *resource.Registry
	eng   *Engine
	locks *lock.Manager
	log   *zap.Logger
	m     *metrics.Metrics
}

// NewService constructs the versioned-document service.
func NewService(reg *resource.Registry, eng *Engine, locks *lock.Manager, log *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{reg: reg, eng: eng, locks: locks, log: log, m: m}
}

// Create stores a new versioned document owned by the actor.
func (s *Service) Create(ctx context.Context, resName string, data map[string]any, actor *model.Actor) (*model.VersionedDocument, error) {
	res, err := s.reg.Get(resName)
	if err != nil {
		return nil, err
	}
	if _, err := perm.Can(actor, res, model.MethodPost, res.DefaultState); err != nil {
		return nil, s.deny(res, model.MethodPost, err)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return s.eng.Create(ctx, res, id, data, actor)
}

// Get loads the head enriched with its creator profile, enforcing read access.
func (s *Service) Get(ctx context.Context, resName string, id uuid.UUID, actor *model.Actor) (*model.VersionedDocument, error) {
	res, err := s.reg.Get(resName)
	if err != nil {
		return nil, err
	}
	filter, err := perm.Can(actor, res, model.MethodGet, res.DefaultState)
	if err != nil {
		return nil, s.deny(res, model.MethodGet, err)
	}
	doc, err := s.eng.repo.GetCurrentWithCreator(ctx, res.Name, id)
	if err != nil {
		return nil, err
	}
	if !perm.MatchesVersioned(doc, filter) {
		return nil, s.deny(res, model.MethodGet,
			fmt.Errorf("get %s/%s: %w", res.Name, id, errs.ErrUnauthorized))
	}
	return doc, nil
}

// Update replaces the head's body guarded by the expected revision, after
// the write-access and lock checks pass.
func (s *Service) Update(ctx context.Context, resName string, id uuid.UUID, expectedRevision int64, newData map[string]any, actor *model.Actor) (*model.VersionedDocument, error) {
	res, err := s.reg.Get(resName)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, res, id, model.MethodPut, actor); err != nil {
		return nil, err
	}
	if err := s.checkLock(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.eng.UpdateWithPrecondition(ctx, res, id, expectedRevision, newData, actor)
}

// Promote publishes a revision as the next version.
func (s *Service) Promote(ctx context.Context, resName string, id uuid.UUID, revisionRef int64, name, tag string, actor *model.Actor) (*model.Version, error) {
	res, err := s.reg.Get(resName)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, res, id, model.MethodPut, actor); err != nil {
		return nil, err
	}
	return s.eng.PromoteToVersion(ctx, res, id, revisionRef, name, tag, actor)
}

// Revisions lists the document's snapshots, oldest first.
func (s *Service) Revisions(ctx context.Context, resName string, id uuid.UUID, actor *model.Actor) ([]*model.Revision, error) {
	res, err := s.reg.Get(resName)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, res, id, model.MethodGet, actor); err != nil {
		return nil, err
	}
	return s.eng.Revisions(ctx, id)
}

// Versions lists the document's promotions, oldest first.
func (s *Service) Versions(ctx context.Context, resName string, id uuid.UUID, actor *model.Actor) ([]*model.Version, error) {
	res, err := s.reg.Get(resName)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, res, id, model.MethodGet, actor); err != nil {
		return nil, err
	}
	return s.eng.Versions(ctx, id)
}

// Delete removes the head and its revision and version history.
func (s *Service) Delete(ctx context.Context, resName string, id uuid.UUID, actor *model.Actor) error {
	res, err := s.reg.Get(resName)
	if err != nil {
		return err
	}
	if _, err := s.authorize(ctx, res, id, model.MethodDelete, actor); err != nil {
		return err
	}
	return s.eng.repo.DeleteCurrent(ctx, res.Name, id)
}

// authorize resolves the actor's access filter and evaluates it against the
// loaded head, so an existing document the actor may not touch surfaces as a
// denial rather than as absence.
func (s *Service) authorize(ctx context.Context, res *model.Resource, id uuid.UUID, method model.Method, actor *model.Actor) (*model.VersionedDocument, error) {
	filter, err := perm.Can(actor, res, method, res.DefaultState)
	if err != nil {
		return nil, s.deny(res, method, err)
	}
	doc, err := s.eng.repo.GetCurrent(ctx, res.Name, id)
	if err != nil {
		return nil, err
	}
	if !perm.MatchesVersioned(doc, filter) {
		return nil, s.deny(res, method,
			fmt.Errorf("%s %s/%s: %w", method, res.Name, id, errs.ErrUnauthorized))
	}
	return doc, nil
}

// checkLock rejects the write when another actor holds the live head slot.
func (s *Service) checkLock(ctx context.Context, id uuid.UUID, actor *model.Actor) error {
	locked, err := s.locks.IsLockedByOther(ctx, id, headSlot, actorID(actor))
	if err != nil {
		return err
	}
	if locked {
		return fmt.Errorf("write %s: locked by another user: %w", id, errs.ErrUnauthorized)
	}
	return nil
}

func (s *Service) deny(res *model.Resource, method model.Method, err error) error {
	if errors.Is(err, errs.ErrUnauthorized) {
		s.m.DenialsTotal.WithLabelValues(res.Name, string(method)).Inc()
	}
	return err
}
