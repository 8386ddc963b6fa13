// Package docs orchestrates multi-state document operations: the filter
// builder turns mutation requests into change-sets a store can apply
// atomically, and the service wires permission, state, lock and inheritance
// checks around them.
package docs

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/veltadocs/velta/internal/errs"
	"github.com/veltadocs/velta/internal/model"
	"github.com/veltadocs/velta/internal/perm"
	"github.com/veltadocs/velta/internal/state"
)

// BuildCreate assembles a new document entering its first state. The
// creating actor becomes the document's owner; anonymous creation is
// possible only when the public pseudo-role permits POST.
func BuildCreate(res *model.Resource, stateName string, data map[string]any, actor *model.Actor, now time.Time) (*model.Document, error) {
	desc, err := state.Resolve(res, stateName)
	if err != nil {
		return nil, err
	}
	if _, err := perm.Can(actor, res, model.MethodPost, desc.Name); err != nil {
		return nil, err
	}
	if desc.Validate && res.Validator != nil {
		if fields := res.Validator.Validate(data); len(fields) > 0 {
			return nil, errs.NewValidation(fields)
		}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	doc := &model.Document{
		ID:       id,
		Resource: res.Name,
		States: map[string]model.StateBody{
			desc.Name: {
				CreatedAt:  now,
				CreatedBy:  idOf(actor),
				ModifiedAt: now,
				ModifiedBy: idOf(actor),
				Data:       data,
			},
		},
		Users:      map[string]model.DocUserEntry{},
		CreatedAt:  now,
		CreatedBy:  idOf(actor),
		ModifiedAt: now,
		ModifiedBy: idOf(actor),
	}
	if actor != nil {
		doc.Users[actor.ID.String()] = model.DocUserEntry{
			UserID:  actor.ID,
			Roles:   []string{model.RoleOwner},
			AddedAt: now,
		}
	}
	return doc, nil
}

// BuildUpdate assembles a full-state replacement change-set. CreatedAt and
// CreatedBy of an already-entered state survive in the store; the body here
// carries the values used when the state is entered for the first time.
func BuildUpdate(res *model.Resource, id uuid.UUID, stateName string, data map[string]any, actor *model.Actor, now time.Time) (model.ChangeSet, error) {
	desc, err := state.Resolve(res, stateName)
	if err != nil {
		return model.ChangeSet{}, err
	}
	filter, err := perm.Can(actor, res, model.MethodPut, desc.Name)
	if err != nil {
		return model.ChangeSet{}, err
	}
	if desc.Validate && res.Validator != nil {
		if fields := res.Validator.Validate(data); len(fields) > 0 {
			return model.ChangeSet{}, errs.NewValidation(fields)
		}
	}
	return model.ChangeSet{
		Kind:       model.ChangeSetState,
		Resource:   res.Name,
		DocumentID: id,
		Filter:     filter,
		State:      desc.Name,
		Body: &model.StateBody{
			CreatedAt:  now,
			CreatedBy:  idOf(actor),
			ModifiedAt: now,
			ModifiedBy: idOf(actor),
			Data:       data,
		},
		ModifiedAt: now,
		ModifiedBy: idOf(actor),
	}, nil
}

// BuildPatch assembles a shallow merge of top-level data keys into an
// existing state. merged is the already-folded result used for validation
// gating; patch carries only the keys being written.
func BuildPatch(res *model.Resource, id uuid.UUID, stateName string, patch, merged map[string]any, actor *model.Actor, now time.Time) (model.ChangeSet, error) {
	desc, err := state.Resolve(res, stateName)
	if err != nil {
		return model.ChangeSet{}, err
	}
	filter, err := perm.Can(actor, res, model.MethodPatch, desc.Name)
	if err != nil {
		return model.ChangeSet{}, err
	}
	if desc.Validate && res.Validator != nil {
		if fields := res.Validator.Validate(merged); len(fields) > 0 {
			return model.ChangeSet{}, errs.NewValidation(fields)
		}
	}
	return model.ChangeSet{
		Kind:       model.ChangePatchState,
		Resource:   res.Name,
		DocumentID: id,
		Filter:     filter,
		State:      desc.Name,
		Patch:      patch,
		ModifiedAt: now,
		ModifiedBy: idOf(actor),
	}, nil
}

// BuildRemoveState assembles removal of a single state slot. The store's
// conditional update additionally refuses to drop the last remaining state.
func BuildRemoveState(res *model.Resource, id uuid.UUID, stateName string, actor *model.Actor, now time.Time) (model.ChangeSet, error) {
	if _, ok := res.States[stateName]; !ok {
		return model.ChangeSet{}, fmt.Errorf("%s/%s: %w", res.Name, stateName, errs.ErrUnknownState)
	}
	filter, err := perm.Can(actor, res, model.MethodDelete, stateName)
	if err != nil {
		return model.ChangeSet{}, err
	}
	return model.ChangeSet{
		Kind:       model.ChangeRemoveState,
		Resource:   res.Name,
		DocumentID: id,
		Filter:     filter,
		State:      stateName,
		ModifiedAt: now,
		ModifiedBy: idOf(actor),
	}, nil
}

// ownerFilter restricts a membership mutation to administrators and the
// document's owners.
func ownerFilter(actor *model.Actor) (model.AccessFilter, error) {
	if actor == nil {
		return model.AccessFilter{}, fmt.Errorf("membership change: anonymous: %w", errs.ErrUnauthorized)
	}
	if actor.IsAdmin {
		return model.AccessFilter{Unconditional: true}, nil
	}
	return model.AccessFilter{ActorID: actor.ID, Roles: []string{model.RoleOwner}}, nil
}

// BuildSetUser assembles granting (or re-granting) per-document roles to a user.
func BuildSetUser(res *model.Resource, id uuid.UUID, entry model.DocUserEntry, actor *model.Actor, now time.Time) (model.ChangeSet, error) {
	filter, err := ownerFilter(actor)
	if err != nil {
		return model.ChangeSet{}, err
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = now
	}
	return model.ChangeSet{
		Kind:       model.ChangeSetUser,
		Resource:   res.Name,
		DocumentID: id,
		Filter:     filter,
		UserEntry:  &entry,
		ModifiedAt: now,
		ModifiedBy: idOf(actor),
	}, nil
}

// BuildRemoveUser assembles revoking a user's document entry.
func BuildRemoveUser(res *model.Resource, id, userID uuid.UUID, actor *model.Actor, now time.Time) (model.ChangeSet, error) {
	filter, err := ownerFilter(actor)
	if err != nil {
		return model.ChangeSet{}, err
	}
	return model.ChangeSet{
		Kind:       model.ChangeRemoveUser,
		Resource:   res.Name,
		DocumentID: id,
		Filter:     filter,
		UserID:     userID,
		ModifiedAt: now,
		ModifiedBy: idOf(actor),
	}, nil
}

// BuildGroupChange assembles attaching or detaching a shared group.
func BuildGroupChange(res *model.Resource, id uuid.UUID, group string, attach bool, actor *model.Actor, now time.Time) (model.ChangeSet, error) {
	if !res.WithGroups {
		return model.ChangeSet{}, fmt.Errorf("resource %s has no group support: %w", res.Name, errs.ErrUnauthorized)
	}
	filter, err := ownerFilter(actor)
	if err != nil {
		return model.ChangeSet{}, err
	}
	kind := model.ChangeRemoveGroup
	if attach {
		kind = model.ChangeAddGroup
	}
	return model.ChangeSet{
		Kind:       kind,
		Resource:   res.Name,
		DocumentID: id,
		Filter:     filter,
		Group:      group,
		ModifiedAt: now,
		ModifiedBy: idOf(actor),
	}, nil
}

func idOf(actor *model.Actor) uuid.UUID {
	if actor == nil {
		return uuid.Nil
	}
	return actor.ID
}
