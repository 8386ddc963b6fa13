// Package inherit resolves the effective data of inheritable documents by
// folding their ancestor chain, and plans child promotion when an
// inheritable document is deleted. Everything here is pure; stored parents
// are never mutated during a read.
package inherit

import (
	"github.com/gofrs/uuid/v5"

	"github.com/veltadocs/velta/internal/model"
)

// MergeData folds data maps ordered root to leaf: root values first,
// overwritten by each descendant in turn, so the leaf wins.
func MergeData(chain []map[string]any) map[string]any {
	out := map[string]any{}
	for _, m := range chain {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// Resolve returns a copy of doc whose per-state data is the fold of the
// ancestor chain (root first, doc itself last). States absent from doc but
// present on an ancestor are inherited wholesale.
func Resolve(doc *model.Document, ancestors []*model.Document) *model.Document {
	chain := append(append([]*model.Document{}, ancestors...), doc)

	states := map[string]model.StateBody{}
	for _, d := range chain {
		for name, body := range d.States {
			merged, ok := states[name]
			if !ok {
				merged = body
				merged.Data = MergeData([]map[string]any{body.Data})
				states[name] = merged
				continue
			}
			merged.Data = MergeData([]map[string]any{merged.Data, body.Data})
			merged.ModifiedAt = body.ModifiedAt
			merged.ModifiedBy = body.ModifiedBy
			states[name] = merged
		}
	}

	out := *doc
	out.States = states
	return &out
}

// ChildPromotion is the per-child plan applied when an inheritable document
// with children is deleted: the child absorbs the deleted document's states
// (its own data winning on conflicting keys) and moves one level up.
type ChildPromotion struct {
	ChildID     uuid.UUID
	NewParentID *uuid.UUID
	// MergedStates holds only the states the child must take over or fold;
	// states identical to what the child already stores are omitted.
	MergedStates map[string]model.StateBody
}

// PlanDelete computes the promotion plan for deleting doc. With no children
// the plan is empty and the caller may delete outright.
func PlanDelete(doc *model.Document, children []*model.Document) []ChildPromotion {
	plans := make([]ChildPromotion, 0, len(children))
	for _, child := range children {
		merged := map[string]model.StateBody{}
		for name, body := range doc.States {
			own, ok := child.States[name]
			if !ok {
				merged[name] = body
				continue
			}
			own.Data = MergeData([]map[string]any{body.Data, own.Data})
			merged[name] = own
		}
		plans = append(plans, ChildPromotion{
			ChildID:      child.ID,
			NewParentID:  doc.ParentID,
			MergedStates: merged,
		})
	}
	return plans
}
