package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/veltadocs/velta/internal/errs"
	"github.com/veltadocs/velta/internal/model"
)

// VersionedRepo implements VersionedRepository using PostgreSQL: a current
// head table plus append-only revision and version tables keyed by the head
// id.
type VersionedRepo struct{ db *DB }

// NewVersionedRepo constructs a versioned-document repository.
func NewVersionedRepo(db *DB) *VersionedRepo { return &VersionedRepo{db: db} }

// InsertCurrent creates the head document at revision 1.
func (r *VersionedRepo) InsertCurrent(ctx context.Context, doc *model.VersionedDocument) error {
	data, err := json.Marshal(doc.Data)
	if err != nil {
		return err
	}
	users, err := json.Marshal(doc.Users)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO vdoc_current (id, resource, revision, data, users, groups, created_at, created_by, modified_at, modified_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err = r.db.Pool.Exec(ctx, q,
		doc.ID, doc.Resource, doc.Revision, data, users, groupsArg(doc.Groups),
		doc.CreatedAt, doc.CreatedBy, doc.ModifiedAt, doc.ModifiedBy)
	if isUniqueViolation(err) {
		return fmt.Errorf("document %s: %w", doc.ID, errs.ErrConflict)
	}
	return err
}

const vdocColumns = `id, resource, revision, data, users, groups, created_at, created_by, modified_at, modified_by`

// GetCurrent loads the head document.
func (r *VersionedRepo) GetCurrent(ctx context.Context, resource string, id uuid.UUID) (*model.VersionedDocument, error) {
	q := `SELECT ` + vdocColumns + ` FROM vdoc_current WHERE resource=$1 AND id=$2`
	doc, err := scanVersioned(r.db.Pool.QueryRow(ctx, q, resource, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document %s/%s: %w", resource, id, errs.ErrNotFound)
		}
		return nil, err
	}
	return doc, nil
}

// GetCurrentWithCreator loads the head joined with the creator's profile.
func (r *VersionedRepo) GetCurrentWithCreator(ctx context.Context, resource string, id uuid.UUID) (*model.VersionedDocument, error) {
	const q = `
SELECT c.id, c.resource, c.revision, c.data, c.users, c.groups,
       c.created_at, c.created_by, c.modified_at, c.modified_by,
       p.id, p.display_name, p.email
FROM vdoc_current c
LEFT JOIN profiles p ON p.id = c.created_by
WHERE c.resource=$1 AND c.id=$2`
	var (
		doc         model.VersionedDocument
		data, users []byte
		pID         uuid.NullUUID
		pName       *string
		pEmail      *string
	)
	err := r.db.Pool.QueryRow(ctx, q, resource, id).Scan(
		&doc.ID, &doc.Resource, &doc.Revision, &data, &users, &doc.Groups,
		&doc.CreatedAt, &doc.CreatedBy, &doc.ModifiedAt, &doc.ModifiedBy,
		&pID, &pName, &pEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document %s/%s: %w", resource, id, errs.ErrNotFound)
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &doc.Data); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(users, &doc.Users); err != nil {
		return nil, err
	}
	if pID.Valid {
		doc.Creator = &model.Profile{ID: pID.UUID}
		if pName != nil {
			doc.Creator.DisplayName = *pName
		}
		if pEmail != nil {
			doc.Creator.Email = *pEmail
		}
	}
	return &doc, nil
}

// ReplaceCurrent swaps the head's body guarded by the expected revision. A
// zero row count means the guard failed: the caller lost a concurrent race.
func (r *VersionedRepo) ReplaceCurrent(ctx context.Context, resource string, id uuid.UUID, expectedRevision int64, doc *model.VersionedDocument) (bool, error) {
	data, err := json.Marshal(doc.Data)
	if err != nil {
		return false, err
	}
	const q = `
UPDATE vdoc_current SET data=$4, revision=$3+1, modified_at=$5, modified_by=$6
WHERE resource=$1 AND id=$2 AND revision=$3`
	tag, err := r.db.Pool.Exec(ctx, q, resource, id, expectedRevision, data, doc.ModifiedAt, doc.ModifiedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteCurrent removes the head and cascades to revisions and versions.
func (r *VersionedRepo) DeleteCurrent(ctx context.Context, resource string, id uuid.UUID) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM vdoc_versions WHERE current_id=$1`, id); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `DELETE FROM vdoc_revisions WHERE current_id=$1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM vdoc_current WHERE resource=$1 AND id=$2`, resource, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s/%s: %w", resource, id, errs.ErrNotFound)
	}
	return nil
}

// InsertRevision appends an immutable pre-update snapshot.
func (r *VersionedRepo) InsertRevision(ctx context.Context, rev *model.Revision) error {
	data, err := json.Marshal(rev.Data)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO vdoc_revisions (current_id, revision, data, created_at, created_by)
VALUES ($1,$2,$3,$4,$5)`
	_, err = r.db.Pool.Exec(ctx, q, rev.CurrentID, rev.Revision, data, rev.CreatedAt, rev.CreatedBy)
	if isUniqueViolation(err) {
		return fmt.Errorf("revision %s/%d: %w", rev.CurrentID, rev.Revision, errs.ErrConflict)
	}
	return err
}

// DeleteRevision rolls back a snapshot inserted for a replace that never
// completed.
func (r *VersionedRepo) DeleteRevision(ctx context.Context, currentID uuid.UUID, revision int64) error {
	const q = `DELETE FROM vdoc_revisions WHERE current_id=$1 AND revision=$2`
	_, err := r.db.Pool.Exec(ctx, q, currentID, revision)
	return err
}

// GetRevision loads one snapshot.
func (r *VersionedRepo) GetRevision(ctx context.Context, currentID uuid.UUID, revision int64) (*model.Revision, error) {
	const q = `
SELECT current_id, revision, data, created_at, created_by
FROM vdoc_revisions WHERE current_id=$1 AND revision=$2`
	rev, err := scanRevision(r.db.Pool.QueryRow(ctx, q, currentID, revision))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("revision %s/%d: %w", currentID, revision, errs.ErrNotFound)
		}
		return nil, err
	}
	return rev, nil
}

// ListRevisions returns snapshots ordered by ascending revision.
func (r *VersionedRepo) ListRevisions(ctx context.Context, currentID uuid.UUID) ([]*model.Revision, error) {
	const q = `
SELECT current_id, revision, data, created_at, created_by
FROM vdoc_revisions WHERE current_id=$1 ORDER BY revision ASC`
	rows, err := r.db.Pool.Query(ctx, q, currentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

// MaxVersion returns the highest promoted version number, 0 if none.
func (r *VersionedRepo) MaxVersion(ctx context.Context, currentID uuid.UUID) (int64, error) {
	const q = `SELECT COALESCE(MAX(version),0) FROM vdoc_versions WHERE current_id=$1`
	var v int64
	if err := r.db.Pool.QueryRow(ctx, q, currentID).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// InsertVersion appends a promotion; the (current_id, version) primary key
// rejects duplicates.
func (r *VersionedRepo) InsertVersion(ctx context.Context, v *model.Version) error {
	const q = `
INSERT INTO vdoc_versions (current_id, version, revision, tag, name, published_at, published_by)
VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.db.Pool.Exec(ctx, q,
		v.CurrentID, v.Version, v.Revision, v.Tag, v.Name, v.PublishedAt, v.PublishedBy)
	if isUniqueViolation(err) {
		return fmt.Errorf("version %s/%d: %w", v.CurrentID, v.Version, errs.ErrConflict)
	}
	return err
}

// ListVersions returns promotions ordered by ascending version.
func (r *VersionedRepo) ListVersions(ctx context.Context, currentID uuid.UUID) ([]*model.Version, error) {
	const q = `
SELECT current_id, version, revision, tag, name, published_at, published_by
FROM vdoc_versions WHERE current_id=$1 ORDER BY version ASC`
	rows, err := r.db.Pool.Query(ctx, q, currentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Version
	for rows.Next() {
		var v model.Version
		if err := rows.Scan(&v.CurrentID, &v.Version, &v.Revision, &v.Tag, &v.Name,
			&v.PublishedAt, &v.PublishedBy); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func scanVersioned(row pgx.Row) (*model.VersionedDocument, error) {
	var (
		doc         model.VersionedDocument
		data, users []byte
	)
	if err := row.Scan(&doc.ID, &doc.Resource, &doc.Revision, &data, &users, &doc.Groups,
		&doc.CreatedAt, &doc.CreatedBy, &doc.ModifiedAt, &doc.ModifiedBy); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &doc.Data); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(users, &doc.Users); err != nil {
		return nil, err
	}
	return &doc, nil
}

func scanRevision(row pgx.Row) (*model.Revision, error) {
	var (
		rev  model.Revision
		data []byte
	)
	if err := row.Scan(&rev.CurrentID, &rev.Revision, &data, &rev.CreatedAt, &rev.CreatedBy); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &rev.Data); err != nil {
		return nil, err
	}
	return &rev, nil
}
