// Package diff provides the structural comparison behind no-op update
// detection: document bodies are compared after stripping bookkeeping fields.
package diff

import (
	"github.com/google/go-cmp/cmp"
)

// bookkeeping fields are maintained by the engine, never by callers, and are
// excluded from change detection.
var bookkeeping = map[string]struct{}{
	"id":         {},
	"revision":   {},
	"users":      {},
	"groups":     {},
	"createdAt":  {},
	"createdBy":  {},
	"modifiedAt": {},
	"modifiedBy": {},
}

// Strip returns a shallow copy of body without bookkeeping fields.
func Strip(body map[string]any) map[string]any {
	out := make(map[string]any, len(body))
	for k, v := range body {
		if _, skip := bookkeeping[k]; skip {
			continue
		}
		out[k] = v
	}
	return out
}

// Equal reports whether two bodies are structurally identical once
// bookkeeping fields are stripped from both.
func Equal(stored, incoming map[string]any) bool {
	return cmp.Equal(Strip(stored), Strip(incoming))
}

// Describe renders a human-readable diff of the stripped bodies, empty when
// they are equal. Used for logging, never for control flow.
func Describe(stored, incoming map[string]any) string {
	return cmp.Diff(Strip(stored), Strip(incoming))
}
