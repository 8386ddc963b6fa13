// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/veltadocs/velta/internal/model"
)

// DocumentRepository provides access to multi-state documents. Every write
// is a single conditional update: a zero modified-count means the document
// was missing, the access filter excluded it, or a concurrent writer won.
type DocumentRepository interface {
	// Create inserts a new document.
	Create(ctx context.Context, doc *model.Document) error

	// Get loads one document honoring the access filter.
	Get(ctx context.Context, resource string, id uuid.UUID, f model.AccessFilter) (*model.Document, error)

	// List returns the documents of a resource the filter admits.
	List(ctx context.Context, resource string, f model.AccessFilter) ([]*model.Document, error)

	// Apply performs the change-set's mutation atomically, honoring its
	// filter, and reports whether a row was modified.
	Apply(ctx context.Context, cs model.ChangeSet) (bool, error)

	// Delete removes the document outright, honoring the access filter.
	Delete(ctx context.Context, resource string, id uuid.UUID, f model.AccessFilter) (bool, error)

	// Ancestors walks the parent chain and returns it root first,
	// excluding the document itself.
	Ancestors(ctx context.Context, resource string, id uuid.UUID) ([]*model.Document, error)

	// Children returns the documents whose parent pointer references id.
	Children(ctx context.Context, resource string, id uuid.UUID) ([]*model.Document, error)

	// SetParent re-points a child's parent pointer (nil promotes to root).
	SetParent(ctx context.Context, resource string, id uuid.UUID, parentID *uuid.UUID) error

	// MergeStates folds the given state bodies under a child document,
	// keeping the child's own data on conflicting state names.
	MergeStates(ctx context.Context, resource string, id uuid.UUID, states map[string]model.StateBody) error
}
