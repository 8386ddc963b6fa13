// Package version maintains the append-only revision history of versioned
// documents, enforces expected-revision preconditions, and promotes
// revisions to named, tagged published versions.
package version

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/veltadocs/velta/internal/diff"
	"github.com/veltadocs/velta/internal/errs"
	"github.com/veltadocs/velta/internal/metrics"
	"github.com/veltadocs/velta/internal/model"
	"github.com/veltadocs/velta/internal/repository"
)

// Engine implements the versioning protocol over a VersionedRepository.
type Engine struct {
	repo repository.VersionedRepository
	log  *zap.Logger
	m    *metrics.Metrics
	now  func() time.Time
}

// NewEngine constructs a version engine.
func NewEngine(repo repository.VersionedRepository, log *zap.Logger, m *metrics.Metrics) *Engine {
	return &Engine{repo: repo, log: log, m: m, now: time.Now}
}

// Create inserts a new versioned document at revision 1, owned by the actor.
func (e *Engine) Create(ctx context.Context, res *model.Resource, id uuid.UUID, data map[string]any, actor *model.Actor) (*model.VersionedDocument, error) {
	if actor == nil {
		return nil, fmt.Errorf("create %s: anonymous: %w", res.Name, errs.ErrUnauthorized)
	}
	if res.Validator != nil {
		if fields := res.Validator.Validate(data); len(fields) > 0 {
			return nil, errs.NewValidation(fields)
		}
	}
	now := e.now()
	doc := &model.VersionedDocument{
		ID:       id,
		Resource: res.Name,
		Revision: 1,
		Data:     data,
		Users: map[string]model.DocUserEntry{
			actor.ID.String(): {UserID: actor.ID, Roles: []string{model.RoleOwner}, AddedAt: now},
		},
		CreatedAt:  now,
		CreatedBy:  actor.ID,
		ModifiedAt: now,
		ModifiedBy: actor.ID,
	}
	if err := e.repo.InsertCurrent(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateWithPrecondition replaces the head document's body, guarded by the
// caller's expected revision. The sequence is fixed: fetch, precondition
// check, no-op detection, validation, revision snapshot insert, conditional
// replace. A replace that modifies zero rows lost a concurrent race; the
// inserted snapshot is then rolled back best-effort so that a Revision only
// ever exists for a transition that completed.
func (e *Engine) UpdateWithPrecondition(ctx context.Context, res *model.Resource, id uuid.UUID, expectedRevision int64, newData map[string]any, actor *model.Actor) (*model.VersionedDocument, error) {
	cur, err := e.repo.GetCurrent(ctx, res.Name, id)
	if err != nil {
		return nil, err
	}
	if cur.Revision != expectedRevision {
		e.m.PreconditionFailuresTotal.Inc()
		return nil, fmt.Errorf("%s: expected revision %d, have %d: %w",
			id, expectedRevision, cur.Revision, errs.ErrPreconditionFailed)
	}

	if diff.Equal(cur.Data, newData) {
		e.m.NoopUpdatesTotal.Inc()
		return cur, nil
	}

	if res.Validator != nil {
		if fields := res.Validator.Validate(diff.Strip(newData)); len(fields) > 0 {
			return nil, errs.NewValidation(fields)
		}
	}

	rev := &model.Revision{
		CurrentID: cur.ID,
		Revision:  cur.Revision,
		Data:      cur.Data,
		CreatedAt: e.now(),
		CreatedBy: actorID(actor),
	}
	if err := e.repo.InsertRevision(ctx, rev); err != nil {
		return nil, err
	}
	e.m.RevisionsWrittenTotal.Inc()

	next := &model.VersionedDocument{
		ID:         cur.ID,
		Resource:   cur.Resource,
		Revision:   cur.Revision + 1,
		Data:       diff.Strip(newData),
		Users:      cur.Users,
		Groups:     cur.Groups,
		CreatedAt:  cur.CreatedAt,
		CreatedBy:  cur.CreatedBy,
		ModifiedAt: e.now(),
		ModifiedBy: actorID(actor),
	}
	ok, replaceErr := e.repo.ReplaceCurrent(ctx, res.Name, cur.ID, cur.Revision, next)
	if replaceErr == nil && ok {
		return next, nil
	}

	// Compensating action: the snapshot must not outlive a replace that
	// never happened. Its own failure is logged, never surfaced.
	if rbErr := e.repo.DeleteRevision(ctx, rev.CurrentID, rev.Revision); rbErr != nil {
		e.log.Error("revision rollback failed",
			zap.String("id", rev.CurrentID.String()),
			zap.Int64("revision", rev.Revision),
			zap.Error(rbErr))
	} else {
		e.m.RevisionRollbacksTotal.Inc()
	}

	if replaceErr != nil {
		return nil, replaceErr
	}
	return nil, fmt.Errorf("%s: replace raced and lost: %w", id, errs.ErrConflict)
}

// PromoteToVersion publishes a revision under the next version number.
// revisionRef may name the head (when its revision matches) or a historical
// snapshot. Tag defaults to "<version>.0.0".
func (e *Engine) PromoteToVersion(ctx context.Context, res *model.Resource, id uuid.UUID, revisionRef int64, name, tag string, actor *model.Actor) (*model.Version, error) {
	cur, err := e.repo.GetCurrent(ctx, res.Name, id)
	if err != nil {
		return nil, err
	}
	if cur.Revision != revisionRef {
		if _, err := e.repo.GetRevision(ctx, id, revisionRef); err != nil {
			return nil, err
		}
	}

	maxV, err := e.repo.MaxVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	next := maxV + 1
	if tag == "" {
		tag = fmt.Sprintf("%d.0.0", next)
	}
	v := &model.Version{
		CurrentID:   id,
		Version:     next,
		Revision:    revisionRef,
		Tag:         tag,
		Name:        name,
		PublishedAt: e.now(),
		PublishedBy: actorID(actor),
	}
	if err := e.repo.InsertVersion(ctx, v); err != nil {
		return nil, err
	}
	e.m.VersionsPublishedTotal.Inc()
	return v, nil
}

// Revisions lists the document's snapshots, oldest first.
func (e *Engine) Revisions(ctx context.Context, id uuid.UUID) ([]*model.Revision, error) {
	return e.repo.ListRevisions(ctx, id)
}

// Versions lists the document's promotions, oldest first.
func (e *Engine) Versions(ctx context.Context, id uuid.UUID) ([]*model.Version, error) {
	return e.repo.ListVersions(ctx, id)
}

func actorID(actor *model.Actor) uuid.UUID {
	if actor == nil {
		return uuid.Nil
	}
	return actor.ID
}
