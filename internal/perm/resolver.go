// Package perm computes access filters and allowed-state sets from a
// resource's role/state permission table and an actor's document roles.
package perm

import (
	"fmt"
	"sort"

	"github.com/veltadocs/velta/internal/errs"
	"github.com/veltadocs/velta/internal/model"
)

// Can resolves whether actor may invoke method at state on res. It returns an
// unconditional filter for public access and administrators, a restricting
// filter otherwise, and ErrUnauthorized for anonymous actors when the public
// pseudo-role does not permit the method.
func Can(actor *model.Actor, res *model.Resource, method model.Method, state string) (model.AccessFilter, error) {
	if res.PermittedMethods(model.RolePublic, state).Allows(method) {
		return model.AccessFilter{Unconditional: true}, nil
	}
	// A resource without a public entry rejects anonymous access outright.
	if actor == nil {
		return model.AccessFilter{}, fmt.Errorf("%s %s/%s: anonymous: %w", method, res.Name, state, errs.ErrUnauthorized)
	}
	if actor.IsAdmin {
		return model.AccessFilter{Unconditional: true}, nil
	}
	return model.AccessFilter{
		ActorID: actor.ID,
		Roles:   allowedRoles(res, method, state),
		Groups:  actor.Groups,
	}, nil
}

// allowedRoles collects every role granting method at state, plus the
// implicit owner role, which is honored even when the table never declares it.
func allowedRoles(res *model.Resource, method model.Method, state string) []string {
	roles := make([]string, 0, len(res.Permissions)+1)
	for role, states := range res.Permissions {
		if role == model.RolePublic {
			continue
		}
		if states[state].Allows(method) {
			roles = append(roles, role)
		}
	}
	if !contains(roles, model.RoleOwner) {
		roles = append(roles, model.RoleOwner)
	}
	sort.Strings(roles)
	return roles
}

// AllowedStates returns the states actor may act on with method for this
// concrete document: all states for admins and shared-group members, the
// union over the actor's document roles otherwise, and the publicly
// permitted states when the actor holds no explicit role.
func AllowedStates(actor *model.Actor, res *model.Resource, method model.Method, doc *model.Document) []string {
	if actor != nil && actor.IsAdmin {
		return allStates(res)
	}
	if actor != nil && doc.SharesGroup(actor.Groups) {
		return allStates(res)
	}
	var roles []string
	if actor != nil {
		roles = doc.RolesOf(actor.ID)
	}
	if len(roles) == 0 {
		return PublicStates(res, method)
	}
	set := map[string]struct{}{}
	for _, role := range roles {
		for state := range res.States {
			if res.PermittedMethods(role, state).Allows(method) {
				set[state] = struct{}{}
			}
		}
	}
	return sorted(set)
}

// PublicStates returns the states whose public permission entry allows method.
func PublicStates(res *model.Resource, method model.Method) []string {
	set := map[string]struct{}{}
	for state := range res.States {
		if res.PermittedMethods(model.RolePublic, state).Allows(method) {
			set[state] = struct{}{}
		}
	}
	return sorted(set)
}

// FilterDocumentStates is the redaction step applied before returning a
// document: only state bodies both allowed and requested survive. An empty
// requested set means "everything allowed".
func FilterDocumentStates(doc *model.Document, allowed, requested []string) map[string]model.StateBody {
	out := make(map[string]model.StateBody)
	for _, name := range allowed {
		body, ok := doc.States[name]
		if !ok {
			continue
		}
		if len(requested) == 0 || contains(requested, name) {
			out[name] = body
		}
	}
	return out
}

// MatchesFilter evaluates an AccessFilter against a loaded document, mirroring
// the predicate the store applies server-side.
func MatchesFilter(doc *model.Document, f model.AccessFilter) bool {
	if f.Unconditional {
		return true
	}
	for _, role := range doc.RolesOf(f.ActorID) {
		if contains(f.Roles, role) {
			return true
		}
	}
	return doc.SharesGroup(f.Groups)
}

// MatchesVersioned evaluates an AccessFilter against a versioned head, the
// same way MatchesFilter does for multi-state documents.
func MatchesVersioned(doc *model.VersionedDocument, f model.AccessFilter) bool {
	if f.Unconditional {
		return true
	}
	for _, role := range doc.RolesOf(f.ActorID) {
		if contains(f.Roles, role) {
			return true
		}
	}
	return doc.SharesGroup(f.Groups)
}

func allStates(res *model.Resource) []string {
	set := make(map[string]struct{}, len(res.States))
	for name := range res.States {
		set[name] = struct{}{}
	}
	return sorted(set)
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
