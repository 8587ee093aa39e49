package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"gitlab.com/tinyland/lab/ttop/app"
)

// KeyCategory groups keybindings by function.
type KeyCategory string

const (
	CategoryNavigation KeyCategory = "navigation"
	CategoryScroll     KeyCategory = "scroll"
	CategoryView       KeyCategory = "view"
	CategorySystem     KeyCategory = "system"
)

// Categories lists the categories in display order.
func Categories() []KeyCategory {
	return []KeyCategory{CategoryNavigation, CategoryScroll, CategoryView, CategorySystem}
}

// KeyEntry is one registered keybinding.
type KeyEntry struct {
	Binding  key.Binding
	Category KeyCategory
	// Since is the version where this binding was introduced.
	Since string
}

// KeyRegistry is the single list of dashboard keybindings, used by the help
// overlay and `ttop keys`.
type KeyRegistry struct {
	Entries []KeyEntry
}

// DefaultRegistry builds the registry from app.DefaultKeyMap.
func DefaultRegistry() *KeyRegistry {
	return NewRegistry(app.DefaultKeyMap())
}

// NewRegistry builds a registry from km.
func NewRegistry(km app.KeyMap) *KeyRegistry {
	r := &KeyRegistry{}
	add := func(cat KeyCategory, bs ...key.Binding) {
		for _, b := range bs {
			r.Entries = append(r.Entries, KeyEntry{Binding: b, Category: cat, Since: "0.1.0"})
		}
	}
	add(CategoryNavigation, km.NextPanel, km.PrevPanel)
	add(CategoryView, km.Panels[:]...)
	add(CategoryScroll, km.Up, km.Down, km.PageUp, km.PageDown, km.Home, km.End)
	add(CategoryView, km.Sort, km.Reverse, km.Tree)
	add(CategorySystem, km.Help, km.Quit)
	return r
}

// ByCategory returns all entries in cat, in registration order.
func (r *KeyRegistry) ByCategory(cat KeyCategory) []KeyEntry {
	var result []KeyEntry
	for _, e := range r.Entries {
		if e.Category == cat {
			result = append(result, e)
		}
	}
	return result
}

// HasDuplicateKeys reports every key bound more than once.
func (r *KeyRegistry) HasDuplicateKeys() []string {
	seen := make(map[string]string)
	var conflicts []string
	for _, e := range r.Entries {
		for _, k := range e.Binding.Keys() {
			if existing, ok := seen[k]; ok {
				conflicts = append(conflicts, fmt.Sprintf("duplicate key %q: %s vs %s", k, existing, e.Binding.Help().Desc))
				continue
			}
			seen[k] = e.Binding.Help().Desc
		}
	}
	return conflicts
}

// FormatTable renders the bindings grouped by category.
func (r *KeyRegistry) FormatTable() string {
	var sb strings.Builder
	for _, cat := range Categories() {
		entries := r.ByCategory(cat)
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s:\n", strings.ToUpper(string(cat)))
		sb.WriteString(strings.Repeat("-", 50) + "\n")
		for _, e := range entries {
			fmt.Fprintf(&sb, "  %-20s  %s\n", strings.Join(e.Binding.Keys(), ", "), e.Binding.Help().Desc)
		}
	}
	return sb.String()
}

// FormatJSON returns one map per binding, ready for encoding/json.
func (r *KeyRegistry) FormatJSON() []map[string]string {
	result := make([]map[string]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		result = append(result, map[string]string{
			"keys":     strings.Join(e.Binding.Keys(), ", "),
			"desc":     e.Binding.Help().Desc,
			"category": string(e.Category),
			"since":    e.Since,
		})
	}
	return result
}

// helpLines renders the registry as the two-column help overlay body.
func (r *KeyRegistry) helpLines() []string {
	var lines []string
	for _, cat := range Categories() {
		entries := r.ByCategory(cat)
		if len(entries) == 0 {
			continue
		}
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, " "+strings.ToUpper(string(cat)[:1])+string(cat)[1:])
		for _, e := range entries {
			lines = append(lines, fmt.Sprintf("  %-14s %s", e.Binding.Help().Key, e.Binding.Help().Desc))
		}
	}
	return lines
}
