package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/veltadocs/velta/internal/model"
)

// LockRepository persists advisory per-document-state lock slots.
type LockRepository interface {
	// Upsert acquires or renews the slot in one conditional statement.
	// It reports false, without mutating, when a different holder's
	// non-expired slot exists. now is the expiry evaluation instant.
	Upsert(ctx context.Context, lock model.Lock, now time.Time) (bool, error)

	// Find returns the slot for (documentID, state), ErrNotFound if absent.
	Find(ctx context.Context, documentID uuid.UUID, state string) (*model.Lock, error)

	// ListByDocument returns every slot of the document's lock record.
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]model.Lock, error)

	// DeleteByDocument removes every slot of the document's lock record.
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) error

	// DeleteExpired removes slots whose timeout passed before now and
	// returns how many were swept.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
