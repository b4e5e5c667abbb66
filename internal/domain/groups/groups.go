// Package groups contains the capability-disclosure stage: progressive
// revelation of backend tools through a hierarchy of named groups that the
// client toggles with the enable_tools/disable_tools meta-tools.
package groups

import (
	"fmt"
	"sort"
)

// Definition declares one tool group. Definitions form a forest: each group
// has at most one parent, declared explicitly up front.
type Definition struct {
	Name        string
	Description string
	Parent      string
}

// EnableToolsResult is the structured result of the enable_tools meta-tool.
type EnableToolsResult struct {
	Enabled         []string `json:"enabled"`
	EnabledGroups   []string `json:"enabled_groups"`
	AvailableTools  []string `json:"available_tools"`
	AvailableGroups []string `json:"available_groups"`
	Errors          []string `json:"errors"`
}

// DisableToolsResult is the structured result of the disable_tools meta-tool.
type DisableToolsResult struct {
	Disabled       []string `json:"disabled"`
	EnabledGroups  []string `json:"enabled_groups"`
	AvailableTools []string `json:"available_tools"`
	Errors         []string `json:"errors"`
}

// forest is the validated group hierarchy plus the mutable disclosure state.
// All mutating and reading methods suffixed Locked assume the stage's mutex
// is held.
type forest struct {
	defs     map[string]Definition
	children map[string][]string

	enabled    map[string]struct{}
	toolGroups map[string]map[string]struct{}
	maxTools   int
}

// newForest validates the definitions and builds the child index.
// Referencing an undeclared parent is a fatal configuration error.
func newForest(defs []Definition, maxTools int) (*forest, error) {
	f := &forest{
		defs:       make(map[string]Definition, len(defs)),
		children:   make(map[string][]string),
		enabled:    make(map[string]struct{}),
		toolGroups: make(map[string]map[string]struct{}),
		maxTools:   maxTools,
	}
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("group definition has empty name")
		}
		if _, dup := f.defs[d.Name]; dup {
			return nil, fmt.Errorf("duplicate group %q", d.Name)
		}
		f.defs[d.Name] = d
	}
	for _, d := range f.defs {
		if d.Parent == "" {
			continue
		}
		if _, ok := f.defs[d.Parent]; !ok {
			return nil, fmt.Errorf("group %q has unknown parent %q", d.Name, d.Parent)
		}
		f.children[d.Parent] = append(f.children[d.Parent], d.Name)
	}
	for _, kids := range f.children {
		sort.Strings(kids)
	}
	return f, nil
}

// tagTool records a handler-side group tag. Unknown groups are fatal.
func (f *forest) tagTool(tool string, groupNames []string) error {
	for _, g := range groupNames {
		if _, ok := f.defs[g]; !ok {
			return fmt.Errorf("handler %q references unknown group %q, define it in group definitions", tool, g)
		}
	}
	set := f.toolGroups[tool]
	if set == nil {
		set = make(map[string]struct{}, len(groupNames))
		f.toolGroups[tool] = set
	}
	for _, g := range groupNames {
		set[g] = struct{}{}
	}
	return nil
}

// discoverLocked records tool-level metadata group declarations for tools
// not already mapped by handler tags. Names outside the declared forest are
// silently dropped; metadata is lower priority and advisory.
func (f *forest) discoverLocked(tool string, groupNames []string) {
	if _, mapped := f.toolGroups[tool]; mapped {
		return
	}
	var valid map[string]struct{}
	for _, g := range groupNames {
		if _, ok := f.defs[g]; ok {
			if valid == nil {
				valid = make(map[string]struct{})
			}
			valid[g] = struct{}{}
		}
	}
	if valid != nil {
		f.toolGroups[tool] = valid
	}
}

// isVisibleLocked reports the visibility rule: a group is visible iff it has
// no parent or its parent is currently enabled.
func (f *forest) isVisibleLocked(name string) bool {
	d := f.defs[name]
	if d.Parent == "" {
		return true
	}
	_, ok := f.enabled[d.Parent]
	return ok
}

// descendantsLocked returns all descendants of a group, traversed
// iteratively (deep trees must not recurse).
func (f *forest) descendantsLocked(name string) []string {
	var descendants []string
	seen := map[string]struct{}{}
	stack := []string{name}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range f.children[current] {
			if _, dup := seen[child]; dup {
				continue
			}
			seen[child] = struct{}{}
			descendants = append(descendants, child)
			stack = append(stack, child)
		}
	}
	return descendants
}

// enabledToolsLocked returns the sorted names of tools mapped to at least
// one enabled group.
func (f *forest) enabledToolsLocked() []string {
	var tools []string
	for tool, groupSet := range f.toolGroups {
		if f.intersectsEnabledLocked(groupSet) {
			tools = append(tools, tool)
		}
	}
	sort.Strings(tools)
	return tools
}

// isToolEnabledLocked reports whether a tool is mapped to an enabled group.
func (f *forest) isToolEnabledLocked(tool string) bool {
	set, ok := f.toolGroups[tool]
	return ok && f.intersectsEnabledLocked(set)
}

func (f *forest) intersectsEnabledLocked(groupSet map[string]struct{}) bool {
	for g := range groupSet {
		if _, on := f.enabled[g]; on {
			return true
		}
	}
	return false
}

// countIfEnabledLocked projects the enabled-tool count if the group were
// added to the enabled set.
func (f *forest) countIfEnabledLocked(name string) int {
	count := 0
	for _, groupSet := range f.toolGroups {
		if f.intersectsEnabledLocked(groupSet) {
			count++
			continue
		}
		if _, ok := groupSet[name]; ok {
			count++
		}
	}
	return count
}

// enabledGroupsLocked returns the sorted enabled group names.
func (f *forest) enabledGroupsLocked() []string {
	names := make([]string, 0, len(f.enabled))
	for g := range f.enabled {
		names = append(names, g)
	}
	sort.Strings(names)
	return names
}

// availableChildrenLocked returns visible-but-not-enabled children of
// enabled groups, sorted.
func (f *forest) availableChildrenLocked() []string {
	var available []string
	seen := map[string]struct{}{}
	for g := range f.enabled {
		for _, child := range f.children[g] {
			if _, on := f.enabled[child]; on {
				continue
			}
			if _, dup := seen[child]; dup {
				continue
			}
			seen[child] = struct{}{}
			available = append(available, child)
		}
	}
	sort.Strings(available)
	return available
}

// validateEnableLocked returns the error message preventing the group from
// being enabled, or "" if the enable is valid. The projected-count check
// runs against the current enabled set, so each name in a batch is validated
// against the state left by the names before it.
func (f *forest) validateEnableLocked(name string) string {
	if _, ok := f.defs[name]; !ok {
		return fmt.Sprintf("Unknown group: %s", name)
	}
	if !f.isVisibleLocked(name) {
		return fmt.Sprintf("Group '%s' not visible. Enable parent '%s' first.", name, f.defs[name].Parent)
	}
	if _, on := f.enabled[name]; on {
		return fmt.Sprintf("Group already enabled: %s", name)
	}
	if f.maxTools > 0 {
		projected := f.countIfEnabledLocked(name)
		if projected > f.maxTools {
			return fmt.Sprintf(
				"Cannot enable '%s': would result in %d tools, exceeding max_tools=%d. Disable some groups first.",
				name, projected, f.maxTools)
		}
	}
	return ""
}

// enableLocked processes an enable_tools batch. Each name is validated and,
// only if valid, committed before the next name is examined, so a batch can
// partially succeed and an aborted caller never sees a half-applied name.
func (f *forest) enableLocked(names []string) EnableToolsResult {
	result := EnableToolsResult{
		Enabled: []string{},
		Errors:  []string{},
	}
	for _, name := range names {
		if msg := f.validateEnableLocked(name); msg != "" {
			result.Errors = append(result.Errors, msg)
			continue
		}
		f.enabled[name] = struct{}{}
		result.Enabled = append(result.Enabled, name)
	}
	result.EnabledGroups = f.enabledGroupsLocked()
	result.AvailableTools = f.enabledToolsLocked()
	result.AvailableGroups = f.availableChildrenLocked()
	return result
}

// disableLocked processes a disable_tools batch. Disabling a group cascades
// to every currently-enabled descendant; all removed names are reported.
func (f *forest) disableLocked(names []string) DisableToolsResult {
	result := DisableToolsResult{
		Disabled: []string{},
		Errors:   []string{},
	}
	for _, name := range names {
		if _, ok := f.defs[name]; !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("Unknown group: %s", name))
			continue
		}
		if _, on := f.enabled[name]; !on {
			result.Errors = append(result.Errors, fmt.Sprintf("Group not enabled: %s", name))
			continue
		}
		removed := []string{name}
		delete(f.enabled, name)
		for _, descendant := range f.descendantsLocked(name) {
			if _, on := f.enabled[descendant]; on {
				delete(f.enabled, descendant)
				removed = append(removed, descendant)
			}
		}
		sort.Strings(removed)
		result.Disabled = append(result.Disabled, removed...)
	}
	result.EnabledGroups = f.enabledGroupsLocked()
	result.AvailableTools = f.enabledToolsLocked()
	return result
}

// groupsForToolLocked returns the sorted group names a tool is mapped to.
func (f *forest) groupsForToolLocked(tool string) []string {
	set, ok := f.toolGroups[tool]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(set))
	for g := range set {
		names = append(names, g)
	}
	sort.Strings(names)
	return names
}

// rootGroupsLocked returns the sorted names of groups without a parent.
func (f *forest) rootGroupsLocked() []string {
	var roots []string
	for name, d := range f.defs {
		if d.Parent == "" {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)
	return roots
}
