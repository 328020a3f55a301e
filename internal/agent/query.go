// Package agent holds the LM-backed research roles: the planner that
// generates search queries, the reflector that judges evidence coverage,
// and the finalizer that synthesizes the cited answer. Each role is a small
// struct with one public method and a documented safe fallback, sharing the
// llm.Provider collaborator.
package agent

import (
	"strings"
)

// Normalize produces the canonical form used for query deduplication:
// trimmed, whitespace-collapsed, case-folded. The original casing is what
// gets sent to providers; normalization exists only for the dedup key.
func Normalize(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// TokenCount counts whitespace tokens after normalization.
func TokenCount(query string) int {
	return len(strings.Fields(query))
}
