package docs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/veltadocs/velta/internal/errs"
	"github.com/veltadocs/velta/internal/inherit"
	"github.com/veltadocs/velta/internal/lock"
	"github.com/veltadocs/velta/internal/metrics"
	"github.com/veltadocs/velta/internal/model"
	"github.com/veltadocs/velta/internal/perm"
	"github.com/veltadocs/velta/internal/repository"
	"github.com/veltadocs/velta/internal/resource"
	"github.com/veltadocs/velta/internal/state"
)

// Service exposes the multi-state document operations.
type Service struct {
	reg   *resource.Registry
	repo  repository.DocumentRepository
	locks *lock.Manager
	log   *zap.Logger
	m     *metrics.Metrics
	now   func() time.Time
}

// NewService constructs the document service.
func NewService(reg *resource.Registry, repo repository.DocumentRepository, locks *lock.Manager, log *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{reg: reg, repo: repo, locks: locks, log: log, m: m, now: time.Now}
}

// GetResult is a document read outcome. State reports which state Select
// actually returned when the requested one was absent.
type GetResult struct {
	Document *model.Document
	// State is the state actually selected on single-state reads.
	State string
}

// Create stores a new document entering stateName (default state when empty).
func (s *Service) Create(ctx context.Context, resName, stateName string, data map[string]any, actor *model.Actor) (*model.Document, error) {
	res, err := s.reg.Get(resName)
	if err != nil {
		return nil, err
	}
	doc, err := BuildCreate(res, stateName, data, actor, s.now())
	if err != nil {
		return nil, s.deny(res, model.MethodPost, err)
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Get loads a document, redacting states the actor may not see. requested
// narrows the returned states; empty means every allowed state, and naming
// only states the document never entered falls back to the allowed ones. For
// inheritable resources the returned per-state data is the fold of the
// ancestor chain, leaf winning.
func (s *Service) Get(ctx context.Context, resName string, id uuid.UUID, requested []string, actor *model.Actor) (*GetResult, error) {
	res, err := s.reg.Get(resName)
	if err != nil {
		return nil, err
	}
	stateName := res.DefaultState
	if len(requested) == 1 {
		stateName = requested[0]
	}
	filter, err := perm.Can(actor, res, model.MethodGet, stateName)
	if err != nil {
		return nil, s.deny(res, model.MethodGet, err)
	}
	// Single-document reads evaluate the filter engine-side so a filtered-out
	// document surfaces as a denial rather than as absence.
	doc, err := s.repo.Get(ctx, res.Name, id, model.AccessFilter{Unconditional: true})
	if err != nil {
		return nil, err
	}
	if !perm.MatchesFilter(doc, filter) {
		return nil, s.deny(res, model.MethodGet,
			fmt.Errorf("get %s/%s: %w", res.Name, id, errs.ErrUnauthorized))
	}

	if res.Inheritable && doc.ParentID != nil {
		ancestors, err := s.repo.Ancestors(ctx, res.Name, doc.ID)
		if err != nil {
			return nil, err
		}
		doc = inherit.Resolve(doc, ancestors)
	}

	allowed := perm.AllowedStates(actor, res, model.MethodGet, doc)
	visible := perm.FilterDocumentStates(doc, allowed, requested)
	if len(visible) == 0 && len(requested) > 0 {
		// Requesting only states the document never entered falls back to
		// whatever the actor may see, mirroring single-state selection. The
		// denial below is reserved for actors with no readable state at all.
		visible = perm.FilterDocumentStates(doc, allowed, nil)
	}
	if len(visible) == 0 {
		return nil, s.deny(res, model.MethodGet, fmt.Errorf("get %s/%s: no readable state: %w", res.Name, id, errs.ErrUnauthorized))
	}
	doc.States = visible

	selected, _, _ := state.Select(doc, stateName)
	return &GetResult{Document: doc, State: selected}, nil
}

// List returns the resource's documents the actor may touch, each redacted
// to the actor's allowed states.
func (s *Service) List(ctx context.Context, resName, stateName string, actor *model.Actor) ([]*model.Document, error) {
	res, err := s.reg.Get(resName)
	if err != nil {
		return nil, err
	}
	desc, err := state.Resolve(res, stateName)
	if err != nil {
		return nil, err
	}
	filter, err := perm.Can(actor, res, model.MethodGet, desc.Name)
	if err != nil {
		return nil, s.deny(res, model.MethodGet, err)
	}
	list, err := s.repo.List(ctx, res.Name, filter)
	if err != nil {
		return nil, err
	}
	for _, doc := range list {
		allowed := perm.AllowedStates(actor, res, model.MethodGet, doc)
		doc.States = perm.FilterDocumentStates(doc, allowed, []string{desc.Name})
	}
	return list, nil
}

// Update replaces one state's payload wholesale.
func (s *Service) Update(ctx context.Context, resName string, id uuid.UUID, stateName string, data map[string]any, actor *model.Actor) error {
	res, err := s.reg.Get(resName)
	if err != nil {
		return err
	}
	cs, err := BuildUpdate(res, id, stateName, data, actor, s.now())
	if err != nil {
		return s.deny(res, model.MethodPut, err)
	}
	if err := s.checkLock(ctx, id, cs.State, actor); err != nil {
		return err
	}
	return s.apply(ctx, cs)
}

// Patch merges top-level data keys into one state's payload. The stored
// document is fetched first so validation can gate on the folded result.
func (s *Service) Patch(ctx context.Context, resName string, id uuid.UUID, stateName string, patch map[string]any, actor *model.Actor) error {
	res, err := s.reg.Get(resName)
	if err != nil {
		return err
	}
	desc, err := state.Resolve(res, stateName)
	if err != nil {
		return err
	}
	filter, err := perm.Can(actor, res, model.MethodPatch, desc.Name)
	if err != nil {
		return s.deny(res, model.MethodPatch, err)
	}
	doc, err := s.repo.Get(ctx, res.Name, id, filter)
	if err != nil {
		return err
	}
	body, ok := doc.States[desc.Name]
	if !ok {
		return fmt.Errorf("patch %s/%s: state %q not entered: %w", res.Name, id, desc.Name, errs.ErrNotFound)
	}
	merged := inherit.MergeData([]map[string]any{body.Data, patch})

	cs, err := BuildPatch(res, id, desc.Name, patch, merged, actor, s.now())
	if err != nil {
		return s.deny(res, model.MethodPatch, err)
	}
	if err := s.checkLock(ctx, id, desc.Name, actor); err != nil {
		return err
	}
	return s.apply(ctx, cs)
}

// SetState transitions a document from one state to another, renaming the
// slot while preserving its body.
func (s *Service) SetState(ctx context.Context, resName string, id uuid.UUID, fromState, toState string, actor *model.Actor) error {
	res, err := s.reg.Get(resName)
	if err != nil {
		return err
	}
	filter, err := perm.Can(actor, res, model.MethodGet, fromState)
	if err != nil {
		return s.deny(res, model.MethodGet, err)
	}
	doc, err := s.repo.Get(ctx, res.Name, id, filter)
	if err != nil {
		return err
	}
	cs, err := state.Transition(res, doc, fromState, toState, actor, s.now())
	if err != nil {
		return s.deny(res, model.MethodPut, err)
	}
	if err := s.checkLock(ctx, id, fromState, actor); err != nil {
		return err
	}
	return s.apply(ctx, cs)
}

// RemoveState drops a single state slot, refusing to drop the last one.
func (s *Service) RemoveState(ctx context.Context, resName string, id uuid.UUID, stateName string, actor *model.Actor) error {
	res, err := s.reg.Get(resName)
	if err != nil {
		return err
	}
	cs, err := BuildRemoveState(res, id, stateName, actor, s.now())
	if err != nil {
		return s.deny(res, model.MethodDelete, err)
	}
	doc, err := s.repo.Get(ctx, res.Name, id, cs.Filter)
	if err != nil {
		return err
	}
	if _, ok := doc.States[stateName]; !ok {
		return fmt.Errorf("remove state %s/%s: %q not entered: %w", res.Name, id, stateName, errs.ErrNotFound)
	}
	if len(doc.States) <= 1 {
		return fmt.Errorf("remove state %s/%s: last remaining state: %w", res.Name, id, errs.ErrConflict)
	}
	if err := s.checkLock(ctx, id, stateName, actor); err != nil {
		return err
	}
	return s.apply(ctx, cs)
}

// Delete removes a document. Inheritable documents with children first merge
// their states onto each child (child data winning) and promote the children
// one level up, then disappear.
func (s *Service) Delete(ctx context.Context, resName string, id uuid.UUID, actor *model.Actor) error {
	res, err := s.reg.Get(resName)
	if err != nil {
		return err
	}
	filter, err := perm.Can(actor, res, model.MethodDelete, res.DefaultState)
	if err != nil {
		return s.deny(res, model.MethodDelete, err)
	}

	if res.Inheritable {
		doc, err := s.repo.Get(ctx, res.Name, id, filter)
		if err != nil {
			return err
		}
		children, err := s.repo.Children(ctx, res.Name, id)
		if err != nil {
			return err
		}
		for _, p := range inherit.PlanDelete(doc, children) {
			if err := s.repo.MergeStates(ctx, res.Name, p.ChildID, p.MergedStates); err != nil {
				return err
			}
			if err := s.repo.SetParent(ctx, res.Name, p.ChildID, p.NewParentID); err != nil {
				return err
			}
		}
	}

	ok, err := s.repo.Delete(ctx, res.Name, id, filter)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("delete %s/%s: %w", res.Name, id, errs.ErrNotFound)
	}
	return nil
}

// SetUser grants per-document roles; RemoveUser revokes them. Both are
// restricted to administrators and owners through the change-set filter.
func (s *Service) SetUser(ctx context.Context, resName string, id uuid.UUID, entry model.DocUserEntry, actor *model.Actor) error {
	res, err := s.reg.Get(resName)
	if err != nil {
		return err
	}
	cs, err := BuildSetUser(res, id, entry, actor, s.now())
	if err != nil {
		return s.deny(res, model.MethodPut, err)
	}
	return s.apply(ctx, cs)
}

// RemoveUser revokes a user's entry on the document.
func (s *Service) RemoveUser(ctx context.Context, resName string, id, userID uuid.UUID, actor *model.Actor) error {
	res, err := s.reg.Get(resName)
	if err != nil {
		return err
	}
	cs, err := BuildRemoveUser(res, id, userID, actor, s.now())
	if err != nil {
		return s.deny(res, model.MethodDelete, err)
	}
	return s.apply(ctx, cs)
}

// SetGroup attaches or detaches a shared group on the document.
func (s *Service) SetGroup(ctx context.Context, resName string, id uuid.UUID, group string, attach bool, actor *model.Actor) error {
	res, err := s.reg.Get(resName)
	if err != nil {
		return err
	}
	cs, err := BuildGroupChange(res, id, group, attach, actor, s.now())
	if err != nil {
		return s.deny(res, model.MethodPut, err)
	}
	return s.apply(ctx, cs)
}

// checkLock rejects the write when another actor holds a live slot.
func (s *Service) checkLock(ctx context.Context, id uuid.UUID, stateName string, actor *model.Actor) error {
	locked, err := s.locks.IsLockedByOther(ctx, id, stateName, idOf(actor))
	if err != nil {
		return err
	}
	if locked {
		return fmt.Errorf("write %s/%s: locked by another user: %w", id, stateName, errs.ErrUnauthorized)
	}
	return nil
}

// apply runs the change-set and maps a zero modified-count to ErrNotFound:
// the document is absent, the filter excluded it, or a concurrent writer won.
func (s *Service) apply(ctx context.Context, cs model.ChangeSet) error {
	ok, err := s.repo.Apply(ctx, cs)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("apply %s/%s: %w", cs.Resource, cs.DocumentID, errs.ErrNotFound)
	}
	return nil
}

func (s *Service) deny(res *model.Resource, method model.Method, err error) error {
	if errors.Is(err, errs.ErrUnauthorized) {
		s.m.DenialsTotal.WithLabelValues(res.Name, string(method)).Inc()
	}
	return err
}
