package state

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/veltadocs/velta/internal/errs"
	"github.com/veltadocs/velta/internal/model"
)

type failValidator struct{ fields []errs.FieldError }

func (v failValidator) Validate(map[string]any) []errs.FieldError { return v.fields }

func articleResource() *model.Resource {
	return &model.Resource{
		Name:         "articles",
		DefaultState: "draft",
		States: map[string]model.State{
			"draft":     {},
			"published": {Validate: true},
		},
		Permissions: map[string]map[string]model.Methods{
			model.RoleOwner: {
				"draft":     {model.Method(model.Wildcard)},
				"published": {model.Method(model.Wildcard)},
			},
			model.RolePublic: {
				"published": {model.MethodGet},
			},
		},
	}
}

func TestResolve_Default(t *testing.T) {
	res := articleResource()

	desc, err := Resolve(res, "")
	require.NoError(t, err)
	require.Equal(t, "draft", desc.Name)
	require.False(t, desc.Validate)
}

func TestResolve_Named(t *testing.T) {
	res := articleResource()

	desc, err := Resolve(res, "published")
	require.NoError(t, err)
	require.Equal(t, "published", desc.Name)
	require.True(t, desc.Validate)
}

func TestResolve_Unknown(t *testing.T) {
	res := articleResource()

	_, err := Resolve(res, "nonexistent")
	require.ErrorIs(t, err, errs.ErrUnknownState)
}

func ownedDoc(ownerID uuid.UUID) *model.Document {
	return &model.Document{
		ID: uuid.Must(uuid.NewV4()),
		Users: map[string]model.DocUserEntry{
			ownerID.String(): {UserID: ownerID, Roles: []string{model.RoleOwner}},
		},
		States: map[string]model.StateBody{
			"draft": {Data: map[string]any{"title": "hello"}},
		},
	}
}

func TestTransition_OK(t *testing.T) {
	res := articleResource()
	ownerID := uuid.Must(uuid.NewV4())
	doc := ownedDoc(ownerID)
	now := time.Now()

	cs, err := Transition(res, doc, "draft", "published", &model.Actor{ID: ownerID}, now)
	require.NoError(t, err)
	require.Equal(t, model.ChangeRenameState, cs.Kind)
	require.Equal(t, doc.ID, cs.DocumentID)
	require.Equal(t, "draft", cs.FromState)
	require.Equal(t, "published", cs.ToState)
	require.Equal(t, now, cs.ModifiedAt)
	require.Equal(t, ownerID, cs.ModifiedBy)
}

func TestTransition_UnknownStates(t *testing.T) {
	res := articleResource()
	ownerID := uuid.Must(uuid.NewV4())
	doc := ownedDoc(ownerID)

	_, err := Transition(res, doc, "nope", "published", &model.Actor{ID: ownerID}, time.Now())
	require.ErrorIs(t, err, errs.ErrUnknownState)

	_, err = Transition(res, doc, "draft", "nope", &model.Actor{ID: ownerID}, time.Now())
	require.ErrorIs(t, err, errs.ErrUnknownState)
}

func TestTransition_Unauthorized(t *testing.T) {
	res := articleResource()
	doc := ownedDoc(uuid.Must(uuid.NewV4()))
	stranger := &model.Actor{ID: uuid.Must(uuid.NewV4())}

	_, err := Transition(res, doc, "draft", "published", stranger, time.Now())
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestTransition_ValidationGate(t *testing.T) {
	res := articleResource()
	res.Validator = failValidator{fields: []errs.FieldError{{Field: "title", Message: "too short"}}}
	ownerID := uuid.Must(uuid.NewV4())
	doc := ownedDoc(ownerID)

	_, err := Transition(res, doc, "draft", "published", &model.Actor{ID: ownerID}, time.Now())
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "title", verr.Fields[0].Field)

	// The draft state itself does not validate, so the reverse rename passes.
	doc.States["published"] = doc.States["draft"]
	_, err = Transition(res, doc, "published", "draft", &model.Actor{ID: ownerID}, time.Now())
	require.NoError(t, err)
}

func TestSelect_Fallback(t *testing.T) {
	doc := &model.Document{States: map[string]model.StateBody{
		"draft": {Data: map[string]any{"title": "wip"}},
	}}

	name, body, ok := Select(doc, "draft")
	require.True(t, ok)
	require.Equal(t, "draft", name)
	require.Equal(t, "wip", body.Data["title"])

	// Requesting a state the document never entered falls back to the
	// first existing state and reports which one was chosen.
	name, _, ok = Select(doc, "published")
	require.True(t, ok)
	require.Equal(t, "draft", name)

	_, _, ok = Select(&model.Document{}, "draft")
	require.False(t, ok)
}
