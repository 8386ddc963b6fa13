package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/veltadocs/velta/internal/errs"
	"github.com/veltadocs/velta/internal/model"
)

// LockRepo implements LockRepository using PostgreSQL. One row per
// (document_id, state) slot; a document's lock record is its row group.
type LockRepo struct{ db *DB }

// NewLockRepo constructs a lock repository.
func NewLockRepo(db *DB) *LockRepo { return &LockRepo{db: db} }

// Upsert acquires or renews the slot in one conditional statement: the
// update half fires only when the existing row belongs to the same holder or
// has expired, so a live foreign lock leaves zero rows affected and no
// mutation.
func (r *LockRepo) Upsert(ctx context.Context, lock model.Lock, now time.Time) (bool, error) {
	const q = `
INSERT INTO doc_locks (document_id, state, user_id, timeout, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (document_id, state) DO UPDATE
SET user_id=EXCLUDED.user_id, timeout=EXCLUDED.timeout
WHERE doc_locks.user_id=EXCLUDED.user_id OR doc_locks.timeout <= $6`
	tag, err := r.db.Pool.Exec(ctx, q,
		lock.DocumentID, lock.State, lock.UserID, lock.Timeout, lock.CreatedAt, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Find returns the slot for (documentID, state).
func (r *LockRepo) Find(ctx context.Context, documentID uuid.UUID, state string) (*model.Lock, error) {
	const q = `
SELECT document_id, state, user_id, timeout, created_at
FROM doc_locks WHERE document_id=$1 AND state=$2`
	var l model.Lock
	err := r.db.Pool.QueryRow(ctx, q, documentID, state).
		Scan(&l.DocumentID, &l.State, &l.UserID, &l.Timeout, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lock %s/%s: %w", documentID, state, errs.ErrNotFound)
		}
		return nil, err
	}
	return &l, nil
}

// ListByDocument returns every slot of the document's lock record.
func (r *LockRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]model.Lock, error) {
	const q = `
SELECT document_id, state, user_id, timeout, created_at
FROM doc_locks WHERE document_id=$1 ORDER BY state ASC`
	rows, err := r.db.Pool.Query(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Lock
	for rows.Next() {
		var l model.Lock
		if err := rows.Scan(&l.DocumentID, &l.State, &l.UserID, &l.Timeout, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteByDocument removes every slot of the document's lock record.
func (r *LockRepo) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	const q = `DELETE FROM doc_locks WHERE document_id=$1`
	_, err := r.db.Pool.Exec(ctx, q, documentID)
	return err
}

// DeleteExpired sweeps slots whose timeout passed before now.
func (r *LockRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM doc_locks WHERE timeout <= $1`
	tag, err := r.db.Pool.Exec(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
