package groups

import (
	"fmt"
	"strings"
)

const (
	// MetaToolEnable and MetaToolDisable are the names of the two
	// meta-tools this stage serves locally.
	MetaToolEnable  = "enable_tools"
	MetaToolDisable = "disable_tools"
)

// enableToolsDescription renders the enable_tools description from the
// current disclosure state. Children are revealed only under enabled
// parents; enabled groups are marked, and the tool budget is shown with
// the current count.
func (f *forest) enableToolsDescription() string {
	var b strings.Builder
	b.WriteString("Enable tool groups for use.\n\nAvailable groups:")

	var writeGroup func(name string, indent int)
	writeGroup = func(name string, indent int) {
		d := f.defs[name]
		_, on := f.enabled[name]
		status := ""
		if on {
			status = " (enabled)"
		}
		fmt.Fprintf(&b, "\n%s- %s: %s%s", strings.Repeat("  ", indent), name, d.Description, status)
		if on {
			for _, child := range f.children[name] {
				writeGroup(child, indent+1)
			}
		}
	}
	for _, name := range f.rootGroupsLocked() {
		writeGroup(name, 0)
	}

	if f.maxTools > 0 {
		fmt.Fprintf(&b, "\n\nMax tools limit: %d (current: %d)", f.maxTools, len(f.enabledToolsLocked()))
	}
	return b.String()
}

// disableToolsDescription renders the disable_tools description listing the
// currently enabled groups.
func (f *forest) disableToolsDescription() string {
	var b strings.Builder
	b.WriteString("Disable tool groups to reduce context.\n\n")
	enabled := f.enabledGroupsLocked()
	if len(enabled) == 0 {
		b.WriteString("No groups currently enabled.")
		return b.String()
	}
	b.WriteString("Currently enabled:")
	for _, name := range enabled {
		fmt.Fprintf(&b, "\n- %s: %s", name, f.defs[name].Description)
	}
	return b.String()
}
