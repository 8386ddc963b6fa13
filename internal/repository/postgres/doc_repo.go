package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/veltadocs/velta/internal/errs"
	"github.com/veltadocs/velta/internal/model"
)

// DocRepo implements DocumentRepository using PostgreSQL. Documents live in
// one table with JSONB state and user maps; every mutation is a single
// conditional UPDATE whose row count tells the caller whether it applied.
type DocRepo struct{ db *DB }

// NewDocRepo constructs a document repository.
func NewDocRepo(db *DB) *DocRepo { return &DocRepo{db: db} }

const docColumns = `id, resource, parent_id, states, users, groups, created_at, created_by, modified_at, modified_by`

// Create inserts a new document.
func (r *DocRepo) Create(ctx context.Context, doc *model.Document) error {
	states, err := json.Marshal(doc.States)
	if err != nil {
		return err
	}
	users, err := json.Marshal(doc.Users)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO documents (id, resource, parent_id, states, users, groups, created_at, created_by, modified_at, modified_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err = r.db.Pool.Exec(ctx, q,
		doc.ID, doc.Resource, parentArg(doc.ParentID), states, users, groupsArg(doc.Groups),
		doc.CreatedAt, doc.CreatedBy, doc.ModifiedAt, doc.ModifiedBy)
	if isUniqueViolation(err) {
		return fmt.Errorf("document %s: %w", doc.ID, errs.ErrConflict)
	}
	return err
}

// Get loads one document honoring the access filter.
func (r *DocRepo) Get(ctx context.Context, resource string, id uuid.UUID, f model.AccessFilter) (*model.Document, error) {
	q := `SELECT ` + docColumns + ` FROM documents WHERE resource=$1 AND id=$2`
	args := []any{resource, id}
	q, args = appendFilter(q, args, f)

	doc, err := scanDocument(r.db.Pool.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document %s/%s: %w", resource, id, errs.ErrNotFound)
		}
		return nil, err
	}
	return doc, nil
}

// List returns the documents of a resource the filter admits.
func (r *DocRepo) List(ctx context.Context, resource string, f model.AccessFilter) ([]*model.Document, error) {
	q := `SELECT ` + docColumns + ` FROM documents WHERE resource=$1`
	args := []any{resource}
	q, args = appendFilter(q, args, f)
	q += ` ORDER BY created_at ASC`

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// Apply performs the change-set's mutation as one conditional UPDATE.
func (r *DocRepo) Apply(ctx context.Context, cs model.ChangeSet) (bool, error) {
	q, args, err := buildApply(cs)
	if err != nil {
		return false, err
	}
	tag, err := r.db.Pool.Exec(ctx, q, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// buildApply translates a change-set into SQL. The filter and any structural
// guard (state present, not the last state) ride in the WHERE clause so the
// whole mutation stays a single atomic statement.
func buildApply(cs model.ChangeSet) (string, []any, error) {
	stamp := cs.ModifiedAt
	switch cs.Kind {
	case model.ChangeSetState:
		body, err := json.Marshal(cs.Body)
		if err != nil {
			return "", nil, err
		}
		q := `
UPDATE documents SET
  states = jsonb_set(states, ARRAY[$3], CASE WHEN states ? $3
    THEN $4::jsonb || jsonb_build_object('createdAt', states#>ARRAY[$3,'createdAt'], 'createdBy', states#>ARRAY[$3,'createdBy'])
    ELSE $4::jsonb END),
  modified_at=$5, modified_by=$6
WHERE resource=$1 AND id=$2`
		args := []any{cs.Resource, cs.DocumentID, cs.State, body, stamp, cs.ModifiedBy}
		q, args = appendFilter(q, args, cs.Filter)
		return q, args, nil

	case model.ChangePatchState:
		patch, err := json.Marshal(cs.Patch)
		if err != nil {
			return "", nil, err
		}
		q := `
UPDATE documents SET
  states = jsonb_set(jsonb_set(jsonb_set(states,
    ARRAY[$3,'data'], COALESCE(states#>ARRAY[$3,'data'],'{}'::jsonb) || $4::jsonb),
    ARRAY[$3,'modifiedAt'], to_jsonb($5::text)),
    ARRAY[$3,'modifiedBy'], to_jsonb($6::text)),
  modified_at=$7, modified_by=$8
WHERE resource=$1 AND id=$2 AND states ? $3`
		args := []any{cs.Resource, cs.DocumentID, cs.State, patch,
			stamp.UTC().Format(time.RFC3339Nano), cs.ModifiedBy.String(), stamp, cs.ModifiedBy}
		q, args = appendFilter(q, args, cs.Filter)
		return q, args, nil

	case model.ChangeRenameState:
		q := `
UPDATE documents SET
  states = (states - $3) || jsonb_build_object($4::text, states->$3),
  modified_at=$5, modified_by=$6
WHERE resource=$1 AND id=$2 AND states ? $3`
		args := []any{cs.Resource, cs.DocumentID, cs.FromState, cs.ToState, stamp, cs.ModifiedBy}
		q, args = appendFilter(q, args, cs.Filter)
		return q, args, nil

	case model.ChangeRemoveState:
		q := `
UPDATE documents SET states = states - $3, modified_at=$4, modified_by=$5
WHERE resource=$1 AND id=$2 AND states ? $3
  AND (SELECT count(*) FROM jsonb_object_keys(documents.states)) > 1`
		args := []any{cs.Resource, cs.DocumentID, cs.State, stamp, cs.ModifiedBy}
		q, args = appendFilter(q, args, cs.Filter)
		return q, args, nil

	case model.ChangeSetUser:
		entry, err := json.Marshal(cs.UserEntry)
		if err != nil {
			return "", nil, err
		}
		q := `
UPDATE documents SET
  users = jsonb_set(users, ARRAY[$3], $4::jsonb),
  modified_at=$5, modified_by=$6
WHERE resource=$1 AND id=$2`
		args := []any{cs.Resource, cs.DocumentID, cs.UserEntry.UserID.String(), entry, stamp, cs.ModifiedBy}
		q, args = appendFilter(q, args, cs.Filter)
		return q, args, nil

	case model.ChangeRemoveUser:
		q := `
UPDATE documents SET users = users - $3, modified_at=$4, modified_by=$5
WHERE resource=$1 AND id=$2 AND users ? $3`
		args := []any{cs.Resource, cs.DocumentID, cs.UserID.String(), stamp, cs.ModifiedBy}
		q, args = appendFilter(q, args, cs.Filter)
		return q, args, nil

	case model.ChangeAddGroup:
		q := `
UPDATE documents SET
  groups = CASE WHEN groups @> ARRAY[$3] THEN groups ELSE array_append(groups, $3) END,
  modified_at=$4, modified_by=$5
WHERE resource=$1 AND id=$2`
		args := []any{cs.Resource, cs.DocumentID, cs.Group, stamp, cs.ModifiedBy}
		q, args = appendFilter(q, args, cs.Filter)
		return q, args, nil

	case model.ChangeRemoveGroup:
		q := `
UPDATE documents SET groups = array_remove(groups, $3), modified_at=$4, modified_by=$5
WHERE resource=$1 AND id=$2`
		args := []any{cs.Resource, cs.DocumentID, cs.Group, stamp, cs.ModifiedBy}
		q, args = appendFilter(q, args, cs.Filter)
		return q, args, nil

	default:
		return "", nil, fmt.Errorf("change kind %d not supported", cs.Kind)
	}
}

// Delete removes the document outright, honoring the access filter.
func (r *DocRepo) Delete(ctx context.Context, resource string, id uuid.UUID, f model.AccessFilter) (bool, error) {
	q := `DELETE FROM documents WHERE resource=$1 AND id=$2`
	args := []any{resource, id}
	q, args = appendFilter(q, args, f)
	tag, err := r.db.Pool.Exec(ctx, q, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Ancestors walks the self-referencing parent pointer to the root and
// returns the chain root first, excluding the document itself.
func (r *DocRepo) Ancestors(ctx context.Context, resource string, id uuid.UUID) ([]*model.Document, error) {
	const q = `
WITH RECURSIVE chain AS (
  SELECT d.*, 0 AS depth FROM documents d WHERE d.resource=$1 AND d.id=$2
  UNION ALL
  SELECT p.*, chain.depth + 1 FROM documents p JOIN chain ON p.id = chain.parent_id
)
SELECT ` + docColumns + ` FROM chain WHERE depth > 0 ORDER BY depth DESC`
	rows, err := r.db.Pool.Query(ctx, q, resource, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// Children returns the documents whose parent pointer references id.
func (r *DocRepo) Children(ctx context.Context, resource string, id uuid.UUID) ([]*model.Document, error) {
	q := `SELECT ` + docColumns + ` FROM documents WHERE resource=$1 AND parent_id=$2 ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, resource, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// SetParent re-points a child's parent pointer; nil promotes it to root.
func (r *DocRepo) SetParent(ctx context.Context, resource string, id uuid.UUID, parentID *uuid.UUID) error {
	const q = `UPDATE documents SET parent_id=$3 WHERE resource=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, resource, id, parentArg(parentID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s/%s: %w", resource, id, errs.ErrNotFound)
	}
	return nil
}

// MergeStates folds pre-merged state bodies onto the child; the incoming
// map already resolved conflicts in the child's favor, so it wins wholesale.
func (r *DocRepo) MergeStates(ctx context.Context, resource string, id uuid.UUID, states map[string]model.StateBody) error {
	payload, err := json.Marshal(states)
	if err != nil {
		return err
	}
	const q = `UPDATE documents SET states = states || $3::jsonb WHERE resource=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, resource, id, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s/%s: %w", resource, id, errs.ErrNotFound)
	}
	return nil
}

// appendFilter attaches the access-filter predicate: the actor's per-document
// role set must intersect the allowed roles, or the document must share one
// of the actor's groups.
func appendFilter(q string, args []any, f model.AccessFilter) (string, []any) {
	if f.Unconditional {
		return q, args
	}
	n := len(args)
	q += fmt.Sprintf(
		" AND (COALESCE(users #> ARRAY[$%d,'roles'], '[]'::jsonb) ?| $%d OR groups && $%d)",
		n+1, n+2, n+3)
	return q, append(args, f.ActorID.String(), stringsArg(f.Roles), groupsArg(f.Groups))
}

func scanDocument(row pgx.Row) (*model.Document, error) {
	var (
		doc      model.Document
		parentID uuid.NullUUID
		states   []byte
		users    []byte
	)
	if err := row.Scan(&doc.ID, &doc.Resource, &parentID, &states, &users, &doc.Groups,
		&doc.CreatedAt, &doc.CreatedBy, &doc.ModifiedAt, &doc.ModifiedBy); err != nil {
		return nil, err
	}
	if parentID.Valid {
		id := parentID.UUID
		doc.ParentID = &id
	}
	if err := json.Unmarshal(states, &doc.States); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(users, &doc.Users); err != nil {
		return nil, err
	}
	return &doc, nil
}

func collectDocuments(rows pgx.Rows) ([]*model.Document, error) {
	var out []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func parentArg(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}

// groupsArg keeps empty slices non-nil so they encode as '{}' instead of NULL.
func groupsArg(groups []string) []string {
	if groups == nil {
		return []string{}
	}
	return groups
}

func stringsArg(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
