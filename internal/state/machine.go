// Package state resolves state descriptors and builds state-to-state
// transitions for multi-state resources.
package state

import (
	"fmt"
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/veltadocs/velta/internal/errs"
	"github.com/veltadocs/velta/internal/model"
	"github.com/veltadocs/velta/internal/perm"
)

// Resolve returns the descriptor for the requested state name, falling back
// to the resource's configured default when name is empty. Unknown names are
// a hard error.
func Resolve(res *model.Resource, name string) (model.StateDescriptor, error) {
	if name == "" {
		name = res.DefaultState
	}
	st, ok := res.States[name]
	if !ok {
		return model.StateDescriptor{}, fmt.Errorf("%s/%s: %w", res.Name, name, errs.ErrUnknownState)
	}
	return model.StateDescriptor{Name: name, Validate: st.Validate}, nil
}

// Transition builds the change-set renaming the fromState slot to toState,
// preserving its body, with a root modification stamp. The rename and stamp
// apply atomically or not at all.
//
// The actor must be able to read fromState and write toState; when toState
// requires validation, the body being carried over must satisfy the resource
// schema before the rename is permitted.
func Transition(res *model.Resource, doc *model.Document, fromState, toState string, actor *model.Actor, now time.Time) (model.ChangeSet, error) {
	if _, ok := res.States[fromState]; !ok {
		return model.ChangeSet{}, fmt.Errorf("%s/%s: %w", res.Name, fromState, errs.ErrUnknownState)
	}
	target, ok := res.States[toState]
	if !ok {
		return model.ChangeSet{}, fmt.Errorf("%s/%s: %w", res.Name, toState, errs.ErrUnknownState)
	}

	readable := perm.AllowedStates(actor, res, model.MethodGet, doc)
	writable := perm.AllowedStates(actor, res, model.MethodPut, doc)
	if !contains(readable, fromState) || !contains(writable, toState) {
		return model.ChangeSet{}, fmt.Errorf("transition %s->%s: %w", fromState, toState, errs.ErrUnauthorized)
	}

	if target.Validate && res.Validator != nil {
		body := doc.States[fromState]
		if fields := res.Validator.Validate(body.Data); len(fields) > 0 {
			return model.ChangeSet{}, errs.NewValidation(fields)
		}
	}

	var actorID uuid.UUID
	if actor != nil {
		actorID = actor.ID
	}
	return model.ChangeSet{
		Kind:       model.ChangeRenameState,
		Resource:   res.Name,
		DocumentID: doc.ID,
		FromState:  fromState,
		ToState:    toState,
		ModifiedAt: now,
		ModifiedBy: actorID,
	}, nil
}

// Select picks the state body to return on reads. When the document does not
// hold the requested state, selection falls back to the first existing state
// in lexicographic order instead of failing; the returned name reports which
// state was actually chosen.
func Select(doc *model.Document, requested string) (string, model.StateBody, bool) {
	if body, ok := doc.States[requested]; ok {
		return requested, body, true
	}
	if len(doc.States) == 0 {
		return "", model.StateBody{}, false
	}
	names := make([]string, 0, len(doc.States))
	for name := range doc.States {
		names = append(names, name)
	}
	sort.Strings(names)
	return names[0], doc.States[names[0]], true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
