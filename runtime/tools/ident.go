package tools

import "strings"

// Ident names a tool globally, as "toolset.tool" (e.g. "orders.cancel").
// Registries, model definitions and task histories all key on this type
// rather than free-form strings.
type Ident string

// String returns the canonical string form.
func (id Ident) String() string {
	return string(id)
}

// Toolset returns the toolset component, or "" when the identifier has no
// toolset qualifier.
func (id Ident) Toolset() string {
	ts, _, ok := strings.Cut(string(id), ".")
	if !ok {
		return ""
	}
	return ts
}

// Tool returns the bare tool name, the segment after the last dot.
func (id Ident) Tool() string {
	s := string(id)
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}
