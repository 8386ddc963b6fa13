package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/veltadocs/velta/internal/model"
)

// VersionedRepository persists versioned resources across the current,
// revision and version tables related by the current document id.
type VersionedRepository interface {
	// InsertCurrent creates the head document at revision 1.
	InsertCurrent(ctx context.Context, doc *model.VersionedDocument) error

	// GetCurrent loads the head document, ErrNotFound if absent.
	GetCurrent(ctx context.Context, resource string, id uuid.UUID) (*model.VersionedDocument, error)

	// GetCurrentWithCreator loads the head enriched with the creator's
	// profile via a lookup-join.
	GetCurrentWithCreator(ctx context.Context, resource string, id uuid.UUID) (*model.VersionedDocument, error)

	// ReplaceCurrent swaps the head's data and bumps its revision, guarded
	// by the expected revision. A false result means the guard failed.
	ReplaceCurrent(ctx context.Context, resource string, id uuid.UUID, expectedRevision int64, doc *model.VersionedDocument) (bool, error)

	// DeleteCurrent removes the head and cascades to its revisions and
	// versions (full document deletion only).
	DeleteCurrent(ctx context.Context, resource string, id uuid.UUID) error

	// InsertRevision appends an immutable pre-update snapshot.
	InsertRevision(ctx context.Context, rev *model.Revision) error

	// DeleteRevision is the compensating action rolling back an inserted
	// snapshot after a failed replace.
	DeleteRevision(ctx context.Context, currentID uuid.UUID, revision int64) error

	// GetRevision loads one snapshot, ErrNotFound if absent.
	GetRevision(ctx context.Context, currentID uuid.UUID, revision int64) (*model.Revision, error)

	// ListRevisions returns snapshots ordered by ascending revision.
	ListRevisions(ctx context.Context, currentID uuid.UUID) ([]*model.Revision, error)

	// MaxVersion returns the highest promoted version number, 0 if none.
	MaxVersion(ctx context.Context, currentID uuid.UUID) (int64, error)

	// InsertVersion appends a promotion; ErrConflict when the
	// (currentID, version) uniqueness constraint rejects it.
	InsertVersion(ctx context.Context, v *model.Version) error

	// ListVersions returns promotions ordered by ascending version.
	ListVersions(ctx context.Context, currentID uuid.UUID) ([]*model.Version, error)
}
