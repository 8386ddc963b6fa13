// Package resource loads the YAML resource configuration and builds the
// immutable descriptor registry used for every permission and state lookup.
// Descriptors are assembled once at startup by merging class-level and
// resource-level configuration; they are never mutated at request time.
package resource

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/veltadocs/velta/internal/errs"
	"github.com/veltadocs/velta/internal/model"
)

// SchemaCompiler turns an opaque schema document into a Validator. Schema
// compilation itself is an external collaborator.
type SchemaCompiler interface {
	Compile(schema map[string]any) (model.Validator, error)
}

// Registry holds the compiled resource descriptors, keyed by name.
type Registry struct {
	byName map[string]*model.Resource
}

// Get returns the descriptor for name, ErrNotFound if unconfigured.
func (r *Registry) Get(name string) (*model.Resource, error) {
	res, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("resource %q: %w", name, errs.ErrNotFound)
	}
	return res, nil
}

// Names returns the configured resource names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type fileConfig struct {
	Classes   map[string]classConfig    `yaml:"classes"`
	Resources map[string]resourceConfig `yaml:"resources" validate:"required,min=1"`
}

type classConfig struct {
	Versioned    bool                   `yaml:"versioned"`
	DefaultState string                 `yaml:"defaultState"`
	States       map[string]stateConfig `yaml:"states"`
	Permissions  permissionsConfig      `yaml:"permissions"`
}

type resourceConfig struct {
	Class        string                 `yaml:"class"`
	Label        string                 `yaml:"label"`
	Inheritable  bool                   `yaml:"inheritable"`
	WithGroups   bool                   `yaml:"withGroups"`
	DefaultState string                 `yaml:"defaultState"`
	States       map[string]stateConfig `yaml:"states"`
	Permissions  permissionsConfig      `yaml:"permissions"`
	Schema       map[string]any         `yaml:"schema"`
	Rels         map[string]relConfig   `yaml:"rels"`
}

type stateConfig struct {
	Validate bool `yaml:"validate"`
}

type relConfig struct {
	Resource string `yaml:"resource" validate:"required"`
	Path     string `yaml:"path" validate:"required"`
	Embed    bool   `yaml:"embed"`
}

// permissionsConfig maps role -> state -> methods.
type permissionsConfig map[string]map[string]methodsValue

// methodsValue accepts either the "*" scalar or an explicit method list.
type methodsValue []string

func (m *methodsValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*m = methodsValue{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*m = methodsValue(list)
		return nil
	default:
		return fmt.Errorf("permissions: expected %q or a method list", model.Wildcard)
	}
}

// Load reads, validates and compiles the resource configuration at path.
// A nil compiler leaves resources without validators (every payload passes).
func Load(path string, compiler SchemaCompiler) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resource config: %w", err)
	}
	return Parse(raw, compiler)
}

// Parse builds a registry from raw YAML configuration.
func Parse(raw []byte, compiler SchemaCompiler) (*Registry, error) {
	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse resource config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("resource config: %w", err)
	}

	reg := &Registry{byName: make(map[string]*model.Resource, len(cfg.Resources))}
	for name, rc := range cfg.Resources {
		res, err := buildResource(name, rc, cfg.Classes, compiler)
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", name, err)
		}
		reg.byName[name] = res
	}
	return reg, nil
}

// buildResource merges class-level configuration under the resource's own.
func buildResource(name string, rc resourceConfig, classes map[string]classConfig, compiler SchemaCompiler) (*model.Resource, error) {
	var cls classConfig
	if rc.Class != "" {
		c, ok := classes[rc.Class]
		if !ok {
			return nil, fmt.Errorf("unknown class %q", rc.Class)
		}
		cls = c
	}

	res := &model.Resource{
		Name:         name,
		Label:        rc.Label,
		Inheritable:  rc.Inheritable,
		WithGroups:   rc.WithGroups,
		Versioned:    cls.Versioned,
		States:       map[string]model.State{},
		Permissions:  map[string]map[string]model.Methods{},
		Rels:         map[string]model.Rel{},
		DefaultState: firstNonEmpty(rc.DefaultState, cls.DefaultState),
	}

	for n, sc := range cls.States {
		res.States[n] = model.State{Validate: sc.Validate}
	}
	for n, sc := range rc.States {
		res.States[n] = model.State{Validate: sc.Validate}
	}

	mergePermissions(res.Permissions, cls.Permissions)
	mergePermissions(res.Permissions, rc.Permissions)

	for n, rel := range rc.Rels {
		res.Rels[n] = model.Rel{Resource: rel.Resource, Path: rel.Path, Embed: rel.Embed}
	}

	if !res.Versioned {
		if len(res.States) == 0 {
			return nil, fmt.Errorf("no states declared")
		}
		if res.DefaultState == "" && len(res.States) == 1 {
			for n := range res.States {
				res.DefaultState = n
			}
		}
		if _, ok := res.States[res.DefaultState]; !ok {
			return nil, fmt.Errorf("default state %q: %w", res.DefaultState, errs.ErrUnknownState)
		}
	}

	if compiler != nil && rc.Schema != nil {
		v, err := compiler.Compile(rc.Schema)
		if err != nil {
			return nil, fmt.Errorf("compile schema: %w", err)
		}
		res.Validator = v
	}
	return res, nil
}

func mergePermissions(dst map[string]map[string]model.Methods, src permissionsConfig) {
	for role, states := range src {
		row, ok := dst[role]
		if !ok {
			row = map[string]model.Methods{}
			dst[role] = row
		}
		for state, methods := range states {
			cell := make(model.Methods, 0, len(methods))
			for _, m := range methods {
				if m == model.Wildcard {
					cell = append(cell, model.Method(model.Wildcard))
					continue
				}
				cell = append(cell, model.Method(strings.ToUpper(m)))
			}
			row[state] = cell
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
