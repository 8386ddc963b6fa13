package docs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veltadocs/velta/internal/errs"
	"github.com/veltadocs/velta/internal/lock"
	"github.com/veltadocs/velta/internal/metrics"
	"github.com/veltadocs/velta/internal/model"
	"github.com/veltadocs/velta/internal/perm"
	"github.com/veltadocs/velta/internal/repository"
	"github.com/veltadocs/velta/internal/resource"
)

const serviceConfig = `
resources:
  pizzas:
    label: Pizzas
    defaultState: published
    withGroups: true
    states:
      draft: {}
      published: {}
    permissions:
      public:
        published: [get]
      owner:
        draft: "*"
        published: "*"
  menus:
    label: Menus
    inheritable: true
    defaultState: live
    states:
      live: {}
    permissions:
      public:
        live: [get]
      owner:
        live: "*"
`

// memDocRepo is an in-memory stand-in honoring access filters and the
// conditional single-update contract.
type memDocRepo struct {
	docs map[uuid.UUID]*model.Document
}

var _ repository.DocumentRepository = (*memDocRepo)(nil)

func newMemDocRepo() *memDocRepo { return &memDocRepo{docs: map[uuid.UUID]*model.Document{}} }

func (r *memDocRepo) Create(_ context.Context, doc *model.Document) error {
	if _, ok := r.docs[doc.ID]; ok {
		return fmt.Errorf("document %s: %w", doc.ID, errs.ErrConflict)
	}
	r.docs[doc.ID] = doc
	return nil
}

func (r *memDocRepo) Get(_ context.Context, resource string, id uuid.UUID, f model.AccessFilter) (*model.Document, error) {
	doc, ok := r.docs[id]
	if !ok || doc.Resource != resource || !perm.MatchesFilter(doc, f) {
		return nil, fmt.Errorf("document %s/%s: %w", resource, id, errs.ErrNotFound)
	}
	cp := *doc
	cp.States = map[string]model.StateBody{}
	for k, v := range doc.States {
		cp.States[k] = v
	}
	return &cp, nil
}

func (r *memDocRepo) List(_ context.Context, resource string, f model.AccessFilter) ([]*model.Document, error) {
	var out []*model.Document
	for _, doc := range r.docs {
		if doc.Resource == resource && perm.MatchesFilter(doc, f) {
			cp := *doc
			cp.States = map[string]model.StateBody{}
			for k, v := range doc.States {
				cp.States[k] = v
			}
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memDocRepo) Apply(_ context.Context, cs model.ChangeSet) (bool, error) {
	doc, ok := r.docs[cs.DocumentID]
	if !ok || doc.Resource != cs.Resource || !perm.MatchesFilter(doc, cs.Filter) {
		return false, nil
	}
	switch cs.Kind {
	case model.ChangeSetState:
		body := *cs.Body
		if prev, entered := doc.States[cs.State]; entered {
			body.CreatedAt = prev.CreatedAt
			body.CreatedBy = prev.CreatedBy
		}
		doc.States[cs.State] = body
	case model.ChangePatchState:
		body, entered := doc.States[cs.State]
		if !entered {
			return false, nil
		}
		for k, v := range cs.Patch {
			body.Data[k] = v
		}
		body.ModifiedAt = cs.ModifiedAt
		body.ModifiedBy = cs.ModifiedBy
		doc.States[cs.State] = body
	case model.ChangeRenameState:
		body, entered := doc.States[cs.FromState]
		if !entered {
			return false, nil
		}
		delete(doc.States, cs.FromState)
		doc.States[cs.ToState] = body
	case model.ChangeRemoveState:
		if _, entered := doc.States[cs.State]; !entered || len(doc.States) <= 1 {
			return false, nil
		}
		delete(doc.States, cs.State)
	case model.ChangeSetUser:
		doc.Users[cs.UserEntry.UserID.String()] = *cs.UserEntry
	case model.ChangeRemoveUser:
		delete(doc.Users, cs.UserID.String())
	case model.ChangeAddGroup:
		doc.Groups = append(doc.Groups, cs.Group)
	case model.ChangeRemoveGroup:
		out := doc.Groups[:0]
		for _, g := range doc.Groups {
			if g != cs.Group {
				out = append(out, g)
			}
		}
		doc.Groups = out
	}
	doc.ModifiedAt = cs.ModifiedAt
	doc.ModifiedBy = cs.ModifiedBy
	return true, nil
}

func (r *memDocRepo) Delete(_ context.Context, resource string, id uuid.UUID, f model.AccessFilter) (bool, error) {
	doc, ok := r.docs[id]
	if !ok || doc.Resource != resource || !perm.MatchesFilter(doc, f) {
		return false, nil
	}
	delete(r.docs, id)
	return true, nil
}

func (r *memDocRepo) Ancestors(_ context.Context, resource string, id uuid.UUID) ([]*model.Document, error) {
	var chain []*model.Document
	doc := r.docs[id]
	for doc != nil && doc.ParentID != nil {
		doc = r.docs[*doc.ParentID]
		if doc != nil {
			chain = append([]*model.Document{doc}, chain...)
		}
	}
	return chain, nil
}

func (r *memDocRepo) Children(_ context.Context, resource string, id uuid.UUID) ([]*model.Document, error) {
	var out []*model.Document
	for _, doc := range r.docs {
		if doc.Resource == resource && doc.ParentID != nil && *doc.ParentID == id {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *memDocRepo) SetParent(_ context.Context, _ string, id uuid.UUID, parentID *uuid.UUID) error {
	doc, ok := r.docs[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, errs.ErrNotFound)
	}
	doc.ParentID = parentID
	return nil
}

func (r *memDocRepo) MergeStates(_ context.Context, _ string, id uuid.UUID, states map[string]model.StateBody) error {
	doc, ok := r.docs[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, errs.ErrNotFound)
	}
	for name, body := range states {
		doc.States[name] = body
	}
	return nil
}

// memLockRepo mirrors the conditional acquire-or-renew statement in memory.
type memLockRepo struct {
	slots map[string]model.Lock
}

var _ repository.LockRepository = (*memLockRepo)(nil)

func newMemLockRepo() *memLockRepo { return &memLockRepo{slots: map[string]model.Lock{}} }

func slotKey(docID uuid.UUID, state string) string { return docID.String() + "/" + state }

func (r *memLockRepo) Upsert(_ context.Context, l model.Lock, now time.Time) (bool, error) {
	cur, ok := r.slots[slotKey(l.DocumentID, l.State)]
	if ok && cur.UserID != l.UserID && !cur.Expired(now) {
		return false, nil
	}
	r.slots[slotKey(l.DocumentID, l.State)] = l
	return true, nil
}

func (r *memLockRepo) Find(_ context.Context, docID uuid.UUID, state string) (*model.Lock, error) {
	l, ok := r.slots[slotKey(docID, state)]
	if !ok {
		return nil, fmt.Errorf("lock %s/%s: %w", docID, state, errs.ErrNotFound)
	}
	return &l, nil
}

func (r *memLockRepo) ListByDocument(_ context.Context, docID uuid.UUID) ([]model.Lock, error) {
	var out []model.Lock
	for _, l := range r.slots {
		if l.DocumentID == docID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memLockRepo) DeleteByDocument(_ context.Context, docID uuid.UUID) error {
	for k, l := range r.slots {
		if l.DocumentID == docID {
			delete(r.slots, k)
		}
	}
	return nil
}

func (r *memLockRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for k, l := range r.slots {
		if l.Expired(now) {
			delete(r.slots, k)
			n++
		}
	}
	return n, nil
}

type fixture struct {
	svc   *Service
	repo  *memDocRepo
	locks *lock.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := resource.Parse([]byte(serviceConfig), nil)
	require.NoError(t, err)
	repo := newMemDocRepo()
	m := metrics.New(prometheus.NewRegistry())
	locks := lock.NewManager(newMemLockRepo(), zap.NewNop(), m)
	return &fixture{
		svc:   NewService(reg, repo, locks, zap.NewNop(), m),
		repo:  repo,
		locks: locks,
	}
}

func TestCreate_OwnerAssigned(t *testing.T) {
	fx := newFixture(t)
	actor := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	doc, err := fx.svc.Create(context.Background(), "pizzas", "draft",
		map[string]any{"name": "margherita"}, actor)
	require.NoError(t, err)
	require.Equal(t, []string{model.RoleOwner}, doc.RolesOf(actor.ID))
	require.Contains(t, fx.repo.docs, doc.ID)
	require.Equal(t, "margherita", fx.repo.docs[doc.ID].States["draft"].Data["name"])
}

func TestCreate_AnonymousDenied(t *testing.T) {
	fx := newFixture(t)

	// Public permission on published is GET only.
	_, err := fx.svc.Create(context.Background(), "pizzas", "published",
		map[string]any{"name": "hawaiian"}, nil)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.Empty(t, fx.repo.docs)
}

func TestCreate_RolelessAuthenticatedActorBecomesOwner(t *testing.T) {
	fx := newFixture(t)
	actor := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	// Roles are per-document, so every creator starts role-less: an
	// authenticated POST succeeds even where the public entry is GET-only,
	// and the creator becomes the document's owner. Only anonymous creation
	// is rejected there.
	doc, err := fx.svc.Create(context.Background(), "pizzas", "published",
		map[string]any{"name": "fresh"}, actor)
	require.NoError(t, err)
	require.Equal(t, []string{model.RoleOwner}, doc.RolesOf(actor.ID))
}

func TestGet_RedactsToAllowedStates(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	doc, err := fx.svc.Create(context.Background(), "pizzas", "draft",
		map[string]any{"name": "wip"}, owner)
	require.NoError(t, err)
	require.NoError(t, fx.svc.Update(context.Background(), "pizzas", doc.ID, "published",
		map[string]any{"name": "done"}, owner))

	// The owner sees both states.
	got, err := fx.svc.Get(context.Background(), "pizzas", doc.ID, nil, owner)
	require.NoError(t, err)
	require.Len(t, got.Document.States, 2)

	// An anonymous reader sees only the public one, and Select reports it.
	got, err = fx.svc.Get(context.Background(), "pizzas", doc.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, got.Document.States, 1)
	require.Contains(t, got.Document.States, "published")
	require.Equal(t, "published", got.State)
}

func TestGet_DeniedDocumentIsUnauthorizedNotMissing(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}
	stranger := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	doc, err := fx.svc.Create(context.Background(), "pizzas", "draft",
		map[string]any{"name": "secret"}, owner)
	require.NoError(t, err)

	// The document exists but the stranger has no role on it: the read must
	// report a denial, not absence.
	_, err = fx.svc.Get(context.Background(), "pizzas", doc.ID, []string{"draft"}, stranger)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestGet_StateFallback(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	doc, err := fx.svc.Create(context.Background(), "pizzas", "draft",
		map[string]any{"name": "wip"}, owner)
	require.NoError(t, err)

	// The owner asks for published, which the document never entered; the
	// read falls back and reports the state actually selected.
	got, err := fx.svc.Get(context.Background(), "pizzas", doc.ID, nil, owner)
	require.NoError(t, err)
	require.Equal(t, "draft", got.State)
}

func TestGet_RequestedStateNotEnteredFallsBack(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	doc, err := fx.svc.Create(context.Background(), "pizzas", "draft",
		map[string]any{"name": "wip"}, owner)
	require.NoError(t, err)

	// Explicitly asking for a state the document never entered must fall
	// back to the states the owner may see, not fail.
	got, err := fx.svc.Get(context.Background(), "pizzas", doc.ID, []string{"published"}, owner)
	require.NoError(t, err)
	require.Equal(t, "draft", got.State)
	require.Contains(t, got.Document.States, "draft")

	// Same fallback for an anonymous reader: a missing public state falls
	// back to the public states actually present.
	require.NoError(t, fx.svc.Update(context.Background(), "pizzas", doc.ID, "published",
		map[string]any{"name": "done"}, owner))
	require.NoError(t, fx.svc.RemoveState(context.Background(), "pizzas", doc.ID, "draft", owner))

	got, err = fx.svc.Get(context.Background(), "pizzas", doc.ID, []string{"draft"}, owner)
	require.NoError(t, err)
	require.Equal(t, "published", got.State)
}

func TestGet_InheritanceFold(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	parent, err := fx.svc.Create(context.Background(), "menus", "live",
		map[string]any{"theme": "dark", "footer": "corp"}, owner)
	require.NoError(t, err)
	child, err := fx.svc.Create(context.Background(), "menus", "live",
		map[string]any{"theme": "light"}, owner)
	require.NoError(t, err)
	fx.repo.docs[child.ID].ParentID = &parent.ID

	got, err := fx.svc.Get(context.Background(), "menus", child.ID, nil, owner)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"theme": "light", "footer": "corp"},
		got.Document.States["live"].Data)

	// The stored child is untouched by the fold.
	require.Equal(t, map[string]any{"theme": "light"},
		fx.repo.docs[child.ID].States["live"].Data)
}

func TestList_FiltersAndRedacts(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	pub, err := fx.svc.Create(context.Background(), "pizzas", "published",
		map[string]any{"name": "visible"}, owner)
	require.NoError(t, err)
	_, err = fx.svc.Create(context.Background(), "pizzas", "draft",
		map[string]any{"name": "hidden"}, owner)
	require.NoError(t, err)

	// Anonymous listing admits every document (public is unconditional) but
	// redaction leaves only those with a public state.
	list, err := fx.svc.List(context.Background(), "pizzas", "published", nil)
	require.NoError(t, err)

	var withStates []*model.Document
	for _, d := range list {
		if len(d.States) > 0 {
			withStates = append(withStates, d)
		}
	}
	require.Len(t, withStates, 1)
	require.Equal(t, pub.ID, withStates[0].ID)
}

func TestUpdate_PreservesFirstEntryStamp(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	doc, err := fx.svc.Create(context.Background(), "pizzas", "draft",
		map[string]any{"name": "v1"}, owner)
	require.NoError(t, err)
	created := fx.repo.docs[doc.ID].States["draft"].CreatedAt

	time.Sleep(time.Millisecond)
	require.NoError(t, fx.svc.Update(context.Background(), "pizzas", doc.ID, "draft",
		map[string]any{"name": "v2"}, owner))

	body := fx.repo.docs[doc.ID].States["draft"]
	require.Equal(t, "v2", body.Data["name"])
	require.Equal(t, created, body.CreatedAt)
	require.True(t, body.ModifiedAt.After(created))
}

func TestUpdate_LockedByOther(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}
	other := uuid.Must(uuid.NewV4())

	doc, err := fx.svc.Create(context.Background(), "pizzas", "draft",
		map[string]any{"name": "v1"}, owner)
	require.NoError(t, err)

	_, err = fx.locks.Acquire(context.Background(), doc.ID, "draft", other, time.Minute)
	require.NoError(t, err)

	err = fx.svc.Update(context.Background(), "pizzas", doc.ID, "draft",
		map[string]any{"name": "v2"}, owner)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.Equal(t, "v1", fx.repo.docs[doc.ID].States["draft"].Data["name"])

	// The holder themselves may keep writing.
	_, err = fx.locks.Acquire(context.Background(), doc.ID, "published", owner.ID, time.Minute)
	require.NoError(t, err)
	require.NoError(t, fx.svc.Update(context.Background(), "pizzas", doc.ID, "published",
		map[string]any{"name": "mine"}, owner))
}

func TestPatch_MergesKeys(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	doc, err := fx.svc.Create(context.Background(), "pizzas", "draft",
		map[string]any{"name": "v1", "price": 9}, owner)
	require.NoError(t, err)

	require.NoError(t, fx.svc.Patch(context.Background(), "pizzas", doc.ID, "draft",
		map[string]any{"price": 11}, owner))

	data := fx.repo.docs[doc.ID].States["draft"].Data
	require.Equal(t, "v1", data["name"])
	require.Equal(t, 11, data["price"])
}

func TestPatch_StateNotEntered(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	doc, err := fx.svc.Create(context.Background(), "pizzas", "draft",
		map[string]any{"name": "v1"}, owner)
	require.NoError(t, err)

	err = fx.svc.Patch(context.Background(), "pizzas", doc.ID, "published",
		map[string]any{"name": "v2"}, owner)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSetState_RenamesSlot(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	doc, err := fx.svc.Create(context.Background(), "pizzas", "draft",
		map[string]any{"name": "ready"}, owner)
	require.NoError(t, err)

	require.NoError(t, fx.svc.SetState(context.Background(), "pizzas", doc.ID, "draft", "published", owner))

	stored := fx.repo.docs[doc.ID]
	require.NotContains(t, stored.States, "draft")
	require.Equal(t, "ready", stored.States["published"].Data["name"])
}

func TestSetState_StrangerDenied(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	doc, err := fx.svc.Create(context.Background(), "pizzas", "published",
		map[string]any{"name": "done"}, owner)
	require.NoError(t, err)

	// The stranger can read published (public) but cannot write draft.
	stranger := &model.Actor{ID: uuid.Must(uuid.NewV4())}
	err = fx.svc.SetState(context.Background(), "pizzas", doc.ID, "published", "draft", stranger)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestRemoveState(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	doc, err := fx.svc.Create(context.Background(), "pizzas", "draft",
		map[string]any{"name": "v1"}, owner)
	require.NoError(t, err)

	// The only remaining state cannot be removed.
	err = fx.svc.RemoveState(context.Background(), "pizzas", doc.ID, "draft", owner)
	require.ErrorIs(t, err, errs.ErrConflict)

	// A state never entered reports absence.
	err = fx.svc.RemoveState(context.Background(), "pizzas", doc.ID, "published", owner)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, fx.svc.Update(context.Background(), "pizzas", doc.ID, "published",
		map[string]any{"name": "v2"}, owner))
	require.NoError(t, fx.svc.RemoveState(context.Background(), "pizzas", doc.ID, "draft", owner))
	require.NotContains(t, fx.repo.docs[doc.ID].States, "draft")
}

func TestDelete(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	doc, err := fx.svc.Create(context.Background(), "pizzas", "published",
		map[string]any{"name": "done"}, owner)
	require.NoError(t, err)

	require.NoError(t, fx.svc.Delete(context.Background(), "pizzas", doc.ID, owner))
	require.NotContains(t, fx.repo.docs, doc.ID)

	err = fx.svc.Delete(context.Background(), "pizzas", doc.ID, owner)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDelete_PromotesChildren(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	grand, err := fx.svc.Create(context.Background(), "menus", "live",
		map[string]any{"brand": "corp"}, owner)
	require.NoError(t, err)
	middle, err := fx.svc.Create(context.Background(), "menus", "live",
		map[string]any{"theme": "dark", "footer": "legal"}, owner)
	require.NoError(t, err)
	leaf, err := fx.svc.Create(context.Background(), "menus", "live",
		map[string]any{"theme": "light"}, owner)
	require.NoError(t, err)
	fx.repo.docs[middle.ID].ParentID = &grand.ID
	fx.repo.docs[leaf.ID].ParentID = &middle.ID

	require.NoError(t, fx.svc.Delete(context.Background(), "menus", middle.ID, owner))
	require.NotContains(t, fx.repo.docs, middle.ID)

	// The child absorbed the deleted document's states, its own data
	// winning, and moved up to the grandparent.
	stored := fx.repo.docs[leaf.ID]
	require.Equal(t, &grand.ID, stored.ParentID)
	require.Equal(t, map[string]any{"theme": "light", "footer": "legal"},
		stored.States["live"].Data)
}

func TestSetUser_OwnerGrantsRoles(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}
	guest := uuid.Must(uuid.NewV4())

	doc, err := fx.svc.Create(context.Background(), "pizzas", "draft",
		map[string]any{"name": "shared"}, owner)
	require.NoError(t, err)

	entry := model.DocUserEntry{UserID: guest, Roles: []string{"editor"}}
	require.NoError(t, fx.svc.SetUser(context.Background(), "pizzas", doc.ID, entry, owner))
	require.Equal(t, []string{"editor"}, fx.repo.docs[doc.ID].RolesOf(guest))

	// A non-owner's grant matches no document and surfaces as absence.
	stranger := &model.Actor{ID: uuid.Must(uuid.NewV4())}
	err = fx.svc.SetUser(context.Background(), "pizzas", doc.ID, entry, stranger)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, fx.svc.RemoveUser(context.Background(), "pizzas", doc.ID, guest, owner))
	require.Nil(t, fx.repo.docs[doc.ID].RolesOf(guest))
}

func TestSetGroup(t *testing.T) {
	fx := newFixture(t)
	owner := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	doc, err := fx.svc.Create(context.Background(), "pizzas", "draft",
		map[string]any{"name": "shared"}, owner)
	require.NoError(t, err)

	require.NoError(t, fx.svc.SetGroup(context.Background(), "pizzas", doc.ID, "team-a", true, owner))
	require.Equal(t, []string{"team-a"}, fx.repo.docs[doc.ID].Groups)

	require.NoError(t, fx.svc.SetGroup(context.Background(), "pizzas", doc.ID, "team-a", false, owner))
	require.Empty(t, fx.repo.docs[doc.ID].Groups)

	// menus has no group support.
	menu, err := fx.svc.Create(context.Background(), "menus", "live",
		map[string]any{}, owner)
	require.NoError(t, err)
	err = fx.svc.SetGroup(context.Background(), "menus", menu.ID, "team-a", true, owner)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}
