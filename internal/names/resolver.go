package names

import (
	"fmt"
	"strings"
)

// MaxVariants bounds the number of name forms used in any lookup.
const MaxVariants = 10

// Resolver canonicalises team and referee names across data sources.
// Collectors write names in whatever form the upstream feed uses; every
// lookup in the engine goes through the resolver so raw strings are never
// compared directly.
type Resolver struct {
	// canonical maps a lowercase alias to its canonical form.
	canonical map[string]string
	// aliases maps a lowercase canonical form to its known variants.
	aliases map[string][]string
}

// NewResolver builds a resolver from an alias table mapping canonical name
// to its known variants. A nil or empty table is valid: lookups then fall
// back to the identity mapping.
func NewResolver(table map[string][]string) *Resolver {
	r := &Resolver{
		canonical: make(map[string]string),
		aliases:   make(map[string][]string),
	}
	for canon, variants := range table {
		key := strings.ToLower(canon)
		r.canonical[key] = canon
		for _, v := range variants {
			lower := strings.ToLower(v)
			r.canonical[lower] = canon
			r.aliases[key] = append(r.aliases[key], lower)
		}
	}
	return r
}

// Canonical maps any external name to its canonical form. Unknown names are
// returned trimmed but otherwise unchanged.
func (r *Resolver) Canonical(name string) string {
	name = strings.TrimSpace(name)
	if canon, ok := r.canonical[strings.ToLower(name)]; ok {
		return canon
	}
	// Retry without a trailing FC suffix
	if stripped, changed := stripFC(name); changed {
		if canon, ok := r.canonical[strings.ToLower(stripped)]; ok {
			return canon
		}
	}
	return name
}

// Variants expands a name into the ordered set of lowercase forms used for
// lookups: the name itself, its canonical form, every known alias, and the
// FC-suffix rule applied to each. At most MaxVariants forms are returned.
// Never fails: with an empty alias table the result is just the lowercase
// name and its FC-rule sibling.
func (r *Resolver) Variants(name string) []string {
	name = strings.TrimSpace(name)
	seen := make(map[string]bool)
	var out []string

	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] || len(out) >= MaxVariants {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	addWithFCRule := func(s string) {
		add(s)
		if stripped, changed := stripFC(s); changed {
			add(stripped)
		} else {
			add(s + " fc")
		}
	}

	addWithFCRule(name)
	canon := r.Canonical(name)
	addWithFCRule(canon)
	for _, alias := range r.aliases[strings.ToLower(canon)] {
		addWithFCRule(alias)
	}
	return out
}

// WhereClause builds a SQL fragment matching any variant of name against
// column, plus the parameters to bind: LOWER(col) IN (?, ?, ...).
func (r *Resolver) WhereClause(column, name string) (string, []any) {
	variants := r.Variants(name)
	placeholders := make([]string, len(variants))
	params := make([]any, len(variants))
	for i, v := range variants {
		placeholders[i] = "?"
		params[i] = v
	}
	clause := fmt.Sprintf("LOWER(%s) IN (%s)", column, strings.Join(placeholders, ", "))
	return clause, params
}

func stripFC(name string) (string, bool) {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, " fc") {
		return strings.TrimSpace(name[:len(name)-3]), true
	}
	return name, false
}
