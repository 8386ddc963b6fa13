// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/veltadocs/velta/internal/errs"
)

// Method is an HTTP-like verb used in permission tables.
type Method string

// Verbs recognized by permission tables.
const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
)

const (
	// RoleOwner is implicitly honored in every permission check, whether or
	// not the resource's permission table declares it.
	RoleOwner = "owner"

	// RolePublic is the pseudo-role granting anonymous access when its
	// permission entry allows the method.
	RolePublic = "public"
)

// Methods is a permission cell: either the wildcard or an explicit verb list.
type Methods []Method

// Wildcard permits every method.
const Wildcard = "*"

// Allows reports whether m is permitted by the cell.
func (ms Methods) Allows(m Method) bool {
	for _, v := range ms {
		if string(v) == Wildcard || v == m {
			return true
		}
	}
	return false
}

// Validator checks a candidate payload against a resource's schema.
// Schema compilation lives outside the engine; a nil/empty result means pass.
type Validator interface {
	Validate(data map[string]any) []errs.FieldError
}

// State describes one named lifecycle slot of a resource.
type State struct {
	// Validate requires the payload to satisfy the resource schema before
	// the state is written or transitioned into.
	Validate bool
}

// Resource is an immutable document class built once at configuration load.
type Resource struct {
	Name         string
	Label        string
	DefaultState string
	States       map[string]State
	// Permissions maps role -> state -> allowed methods.
	Permissions map[string]map[string]Methods
	// Inheritable documents resolve data through their parent chain.
	Inheritable bool
	// WithGroups enables group-based sharing on documents of this class.
	WithGroups bool
	// Versioned resources use revision/version tables instead of states.
	Versioned bool
	// Rels declares named relationships to other resources.
	Rels      map[string]Rel
	Validator Validator
}

// Rel declares a named relationship to another resource.
type Rel struct {
	Resource string
	Path     string
	Embed    bool
}

// PermittedMethods returns the permission cell for (role, state), nil if absent.
func (r *Resource) PermittedMethods(role, state string) Methods {
	states, ok := r.Permissions[role]
	if !ok {
		return nil
	}
	return states[state]
}

// StateDescriptor is the result of resolving a requested state name.
type StateDescriptor struct {
	Name     string
	Validate bool
}

// Actor is the already-authenticated caller shape consumed by the engine.
// A nil *Actor is anonymous.
type Actor struct {
	ID      uuid.UUID
	Groups  []string
	IsAdmin bool
}

// DocUserEntry grants per-document roles to one user.
type DocUserEntry struct {
	UserID      uuid.UUID      `json:"userId"`
	Roles       []string       `json:"roles"`
	AddedAt     time.Time      `json:"addedAt"`
	DisplayName string         `json:"displayName,omitempty"`
	Infos       map[string]any `json:"infos,omitempty"`
}

// StateBody is the payload stored under one state of a multi-state document.
// CreatedAt/CreatedBy are set exactly once at first entry into the state.
type StateBody struct {
	CreatedAt  time.Time      `json:"createdAt"`
	CreatedBy  uuid.UUID      `json:"createdBy"`
	ModifiedAt time.Time      `json:"modifiedAt"`
	ModifiedBy uuid.UUID      `json:"modifiedBy"`
	Data       map[string]any `json:"data"`
}

// Document is a stored multi-state document. States present are exactly the
// states the document has entered.
type Document struct {
	ID       uuid.UUID
	Resource string
	ParentID *uuid.UUID
	States   map[string]StateBody
	// Users is keyed by the user id in canonical string form.
	Users      map[string]DocUserEntry
	Groups     []string
	CreatedAt  time.Time
	CreatedBy  uuid.UUID
	ModifiedAt time.Time
	ModifiedBy uuid.UUID
}

// RolesOf returns the per-document roles held by the actor, nil if none.
func (d *Document) RolesOf(actorID uuid.UUID) []string {
	e, ok := d.Users[actorID.String()]
	if !ok {
		return nil
	}
	return e.Roles
}

// SharesGroup reports whether the document shares at least one group with groups.
func (d *Document) SharesGroup(groups []string) bool {
	for _, g := range groups {
		for _, dg := range d.Groups {
			if g == dg {
				return true
			}
		}
	}
	return false
}

// VersionedDocument is the current head of a versioned resource.
type VersionedDocument struct {
	ID         uuid.UUID
	Resource   string
	Revision   int64
	Data       map[string]any
	Users      map[string]DocUserEntry
	Groups     []string
	CreatedAt  time.Time
	CreatedBy  uuid.UUID
	ModifiedAt time.Time
	ModifiedBy uuid.UUID
	// Creator is populated by lookup-join reads; nil otherwise.
	Creator *Profile
}

// RolesOf returns the per-document roles held by the actor, nil if none.
func (d *VersionedDocument) RolesOf(actorID uuid.UUID) []string {
	e, ok := d.Users[actorID.String()]
	if !ok {
		return nil
	}
	return e.Roles
}

// SharesGroup reports whether the head shares at least one group with groups.
func (d *VersionedDocument) SharesGroup(groups []string) bool {
	for _, g := range groups {
		for _, dg := range d.Groups {
			if g == dg {
				return true
			}
		}
	}
	return false
}

// Profile is the stored shape of an actor, owned by the identity service;
// the engine only reads it to enrich results.
type Profile struct {
	ID          uuid.UUID
	DisplayName string
	Email       string
}

// Revision is an immutable snapshot of a versioned document taken just
// before the head was overwritten. Never mutated after insertion.
type Revision struct {
	CurrentID uuid.UUID
	Revision  int64
	Data      map[string]any
	CreatedAt time.Time
	CreatedBy uuid.UUID
}

// Version is a named, tagged promotion of one revision. (CurrentID, Version)
// is unique; several versions may reference the same revision.
type Version struct {
	CurrentID   uuid.UUID
	Version     int64
	Revision    int64
	Tag         string
	Name        string
	PublishedAt time.Time
	PublishedBy uuid.UUID
}

// Lock is one advisory slot reserving (DocumentID, State) for UserID until
// Timeout. After expiry the slot is inert and anyone may reclaim it.
type Lock struct {
	DocumentID uuid.UUID
	State      string
	UserID     uuid.UUID
	Timeout    time.Time
	CreatedAt  time.Time
}

// Expired reports whether the slot is inert at now.
func (l Lock) Expired(now time.Time) bool {
	return !l.Timeout.After(now)
}

// AccessFilter narrows which stored documents an actor may touch. When
// Unconditional is true the remaining fields are ignored.
type AccessFilter struct {
	Unconditional bool
	// ActorID selects whose per-document role entry to inspect.
	ActorID uuid.UUID
	// Roles intersects with the actor's roles on the candidate document.
	Roles []string
	// Groups OR-matches against the candidate document's groups.
	Groups []string
}

// ChangeKind discriminates the single primary mutation of a ChangeSet.
type ChangeKind int

// Mutations a change-set can express; each maps to one conditional store update.
const (
	ChangeSetState ChangeKind = iota
	ChangePatchState
	ChangeRenameState
	ChangeRemoveState
	ChangeSetUser
	ChangeRemoveUser
	ChangeAddGroup
	ChangeRemoveGroup
)

// ChangeSet is an atomically applicable mutation against one document,
// produced by the filter builder after permission, state and validation
// gating. The store applies it in a single conditional update honoring Filter.
type ChangeSet struct {
	Kind       ChangeKind
	Resource   string
	DocumentID uuid.UUID
	Filter     AccessFilter

	// ChangeSetState / ChangePatchState
	State string
	Body  *StateBody
	Patch map[string]any

	// ChangeRenameState
	FromState string
	ToState   string

	// ChangeSetUser / ChangeRemoveUser
	UserEntry *DocUserEntry
	UserID    uuid.UUID

	// ChangeAddGroup / ChangeRemoveGroup
	Group string

	// Root stamp applied together with the mutation.
	ModifiedAt time.Time
	ModifiedBy uuid.UUID
}
