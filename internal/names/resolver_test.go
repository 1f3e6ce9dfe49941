package names

import (
	"strings"
	"testing"
)

func testTable() map[string][]string {
	return map[string][]string{
		"Liverpool":     {"Liverpool FC", "LFC"},
		"Athletic Club": {"Athletic Bilbao", "Ath Bilbao"},
	}
}

func TestCanonical(t *testing.T) {
	r := NewResolver(testTable())

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Exact canonical", "Liverpool", "Liverpool"},
		{"Known alias", "Liverpool FC", "Liverpool"},
		{"Case insensitive alias", "lfc", "Liverpool"},
		{"FC suffix stripped for lookup", "LFC FC", "Liverpool"},
		{"Unknown name passes through", "Sunderland", "Sunderland"},
		{"Whitespace trimmed", "  Liverpool  ", "Liverpool"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Canonical(tt.input); got != tt.expected {
				t.Errorf("Canonical(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestVariantsClosedUnderFCRule(t *testing.T) {
	r := NewResolver(testTable())
	variants := r.Variants("Liverpool")

	has := func(s string) bool {
		for _, v := range variants {
			if v == s {
				return true
			}
		}
		return false
	}

	if !has("liverpool") || !has("liverpool fc") || !has("lfc") {
		t.Errorf("Variants(Liverpool) = %v, missing expected forms", variants)
	}

	// Closed under the FC-suffix rule: for each form, its FC sibling is
	// present unless the cap was hit.
	if len(variants) < MaxVariants {
		for _, v := range variants {
			var sibling string
			if strings.HasSuffix(v, " fc") {
				sibling = strings.TrimSuffix(v, " fc")
			} else {
				sibling = v + " fc"
			}
			if !has(sibling) {
				t.Errorf("variant %q has no FC-rule sibling %q in %v", v, sibling, variants)
			}
		}
	}
}

func TestVariantsIdempotent(t *testing.T) {
	r := NewResolver(testTable())
	first := r.Variants("Liverpool FC")
	second := r.Variants("Liverpool FC")

	if len(first) != len(second) {
		t.Fatalf("variant count changed between calls: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("variant order changed at %d: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestVariantsEmptyTable(t *testing.T) {
	r := NewResolver(nil)
	variants := r.Variants("Sunderland")

	if len(variants) < 2 {
		t.Fatalf("empty table should still yield name plus FC sibling, got %v", variants)
	}
	if variants[0] != "sunderland" {
		t.Errorf("first variant = %q, expected lowercase input", variants[0])
	}
}

func TestVariantsCapped(t *testing.T) {
	table := map[string][]string{
		"Team": {"T1", "T2", "T3", "T4", "T5", "T6", "T7", "T8", "T9", "T10", "T11"},
	}
	r := NewResolver(table)
	if got := len(r.Variants("Team")); got > MaxVariants {
		t.Errorf("Variants returned %d forms, cap is %d", got, MaxVariants)
	}
}

func TestWhereClause(t *testing.T) {
	r := NewResolver(nil)
	clause, params := r.WhereClause("team_name", "Sunderland")

	if !strings.HasPrefix(clause, "LOWER(team_name) IN (") {
		t.Errorf("unexpected clause: %s", clause)
	}
	if strings.Count(clause, "?") != len(params) {
		t.Errorf("placeholder count %d does not match %d params", strings.Count(clause, "?"), len(params))
	}
	if params[0] != "sunderland" {
		t.Errorf("first param = %v, expected sunderland", params[0])
	}
}
