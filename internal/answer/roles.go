package answer

import (
	"sort"
	"strings"

	"github.com/hyperjump/kotae/internal/inference"
)

const noEntities = "None provided"

// RoleEntityMap lists the entity types each role cares about.
type RoleEntityMap map[string][]string

// allowed returns the entity types for role. An unknown role allows nothing.
func (m RoleEntityMap) allowed(role string) map[string]bool {
	types := m[role]
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[strings.ToUpper(strings.TrimSpace(t))] = true
	}
	return set
}

// Roles returns the configured role names, sorted.
func (m RoleEntityMap) Roles() []string {
	out := make([]string, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// formatEntities keeps entities whose type the role allows, formats them as
// "<text> (<type>)" in first-seen order without repeats, and joins them with ", ".
func formatEntities(entities []inference.Entity, allowed map[string]bool) string {
	seen := make(map[string]bool)
	var parts []string
	for _, e := range entities {
		typ := strings.ToUpper(e.Type)
		if !allowed[typ] {
			continue
		}
		s := e.Text + " (" + typ + ")"
		if seen[s] {
			continue
		}
		seen[s] = true
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return noEntities
	}
	return strings.Join(parts, ", ")
}
