// Package handler contains the tool handler registry: a compile-time table
// mapping tool names to the declarative policy metadata the gateway stages
// enforce (elicitation prompts, root templates, group tags).
//
// All configuration errors surface at registry construction, never at call
// time: an empty elicitation prompt, a template placeholder that is not a
// declared parameter, conflicting templates on one tool, or a duplicate tool
// name all fail NewRegistry.
package handler

import (
	"fmt"
	"sort"
	"strings"
)

// FieldType is the declared base type of a tool parameter. Values mirror the
// primitive JSON Schema types allowed in flat elicitation schemas.
type FieldType string

const (
	String  FieldType = "string"
	Number  FieldType = "number"
	Integer FieldType = "integer"
	Boolean FieldType = "boolean"
)

// IsValid returns true if the field type is a known primitive type.
func (t FieldType) IsValid() bool {
	switch t {
	case String, Number, Integer, Boolean:
		return true
	default:
		return false
	}
}

// Param is one declared parameter of a tool handler.
type Param struct {
	// Name is the argument key in the tool call.
	Name string

	// Type is the declared base type, used when building elicitation
	// schemas for this parameter.
	Type FieldType

	// ElicitPrompt, when non-empty, marks this parameter as requiring
	// human review before the call proceeds. The prompt becomes the
	// field description in the elicitation schema.
	ElicitPrompt string
}

// Spec is the complete declarative metadata for one tool. Build instances
// with NewSpec and its chained methods, then validate the whole set with
// NewRegistry. A Spec is immutable once the registry is constructed.
type Spec struct {
	name         string
	params       []Param
	rootTemplate *Template
	groups       []string

	// deferred construction errors, reported by NewRegistry
	errs []error
}

// NewSpec starts a spec for the named tool.
func NewSpec(name string) *Spec {
	return &Spec{name: name}
}

// Param declares a plain parameter.
func (s *Spec) Param(name string, t FieldType) *Spec {
	return s.addParam(Param{Name: name, Type: t})
}

// ElicitParam declares a parameter requiring human review. The prompt must
// be non-empty; an empty prompt fails registry construction.
func (s *Spec) ElicitParam(name string, t FieldType, prompt string) *Spec {
	if prompt == "" {
		s.errs = append(s.errs, fmt.Errorf("tool %q: parameter %q: elicitation prompt is required", s.name, name))
	}
	return s.addParam(Param{Name: name, Type: t, ElicitPrompt: prompt})
}

func (s *Spec) addParam(p Param) *Spec {
	if !p.Type.IsValid() {
		s.errs = append(s.errs, fmt.Errorf("tool %q: parameter %q: invalid type %q", s.name, p.Name, p.Type))
	}
	for _, existing := range s.params {
		if existing.Name == p.Name {
			s.errs = append(s.errs, fmt.Errorf("tool %q: duplicate parameter %q", s.name, p.Name))
			return s
		}
	}
	s.params = append(s.params, p)
	return s
}

// RootTemplate attaches a resource URI template with {var} placeholders.
// Reapplying the identical template is a no-op; applying a different one
// fails registry construction.
func (s *Spec) RootTemplate(template string) *Spec {
	if s.rootTemplate != nil {
		if s.rootTemplate.Raw() == template {
			return s
		}
		s.errs = append(s.errs, fmt.Errorf(
			"tool %q already has root template %q, cannot apply different template %q",
			s.name, s.rootTemplate.Raw(), template))
		return s
	}
	tmpl, err := ParseTemplate(template)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("tool %q: %w", s.name, err))
		return s
	}
	s.rootTemplate = tmpl
	return s
}

// Groups tags the tool as belonging to the named groups. Can be called
// multiple times; duplicates are collapsed.
func (s *Spec) Groups(names ...string) *Spec {
	for _, n := range names {
		found := false
		for _, existing := range s.groups {
			if existing == n {
				found = true
				break
			}
		}
		if !found {
			s.groups = append(s.groups, n)
		}
	}
	return s
}

// Name returns the tool name.
func (s *Spec) Name() string { return s.name }

// Params returns the declared parameters in declaration order.
func (s *Spec) Params() []Param { return s.params }

// Template returns the root template, or nil if the tool has none.
func (s *Spec) Template() *Template { return s.rootTemplate }

// GroupTags returns the group names the tool is tagged with, sorted.
func (s *Spec) GroupTags() []string {
	tags := make([]string, len(s.groups))
	copy(tags, s.groups)
	sort.Strings(tags)
	return tags
}

// ElicitParams returns the parameters that require human review, in
// declaration order.
func (s *Spec) ElicitParams() []Param {
	var fields []Param
	for _, p := range s.params {
		if p.ElicitPrompt != "" {
			fields = append(fields, p)
		}
	}
	return fields
}

// hasParam reports whether the spec declares a parameter with the name.
func (s *Spec) hasParam(name string) bool {
	for _, p := range s.params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// validate checks the spec's deferred errors plus cross-field invariants.
func (s *Spec) validate() error {
	if s.name == "" {
		return fmt.Errorf("tool spec has empty name")
	}
	if len(s.errs) > 0 {
		return s.errs[0]
	}
	if s.rootTemplate != nil {
		var missing []string
		for _, v := range s.rootTemplate.Vars() {
			if !s.hasParam(v) {
				missing = append(missing, v)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("tool %q: template variable(s) %s not found in declared parameters",
				s.name, strings.Join(missing, ", "))
		}
	}
	return nil
}

// Registry is the immutable name-to-spec table built once at construction.
type Registry struct {
	specs map[string]*Spec

	// prefix is an optional backend name prefix ("github" matches
	// "github_create_issue"); stripped before lookup so handlers written
	// against bare tool names keep working behind a prefixing proxy.
	prefix string
}

// Option configures registry construction.
type Option func(*Registry)

// WithPrefix sets the backend name prefix stripped during Lookup.
func WithPrefix(prefix string) Option {
	return func(r *Registry) { r.prefix = prefix }
}

// NewRegistry validates all specs and builds the lookup table.
// Any configuration error is fatal: the gateway must not start with an
// invalid policy.
func NewRegistry(specs []*Spec, opts ...Option) (*Registry, error) {
	r := &Registry{specs: make(map[string]*Spec, len(specs))}
	for _, o := range opts {
		o(r)
	}
	for _, s := range specs {
		if err := s.validate(); err != nil {
			return nil, err
		}
		if _, exists := r.specs[s.name]; exists {
			return nil, fmt.Errorf("duplicate tool spec %q", s.name)
		}
		r.specs[s.name] = s
	}
	return r, nil
}

// Lookup returns the spec for a tool name, stripping the configured backend
// prefix when present. Unknown names return (nil, false); the caller decides
// pass-through versus error.
func (r *Registry) Lookup(name string) (*Spec, bool) {
	if s, ok := r.specs[name]; ok {
		return s, true
	}
	if r.prefix != "" {
		if bare, ok := strings.CutPrefix(name, r.prefix+"_"); ok {
			if s, found := r.specs[bare]; found {
				return s, true
			}
		}
	}
	return nil, false
}

// Specs returns all registered specs keyed by tool name.
func (r *Registry) Specs() map[string]*Spec {
	return r.specs
}
