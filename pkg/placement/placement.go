// Package placement holds the per-category placement rules used to position
// an overlay on a garment base photo.
//
// A [Registry] is a fixed, hand-curated table built once at startup and
// passed explicitly to whoever needs it. It is never derived from image
// analysis and never mutated after construction, so it is safe to share
// between goroutines without locking.
//
// Rules are not checked against base image dimensions here: rules and base
// images are sourced independently and the check happens at composite time.
package placement

import (
	"sort"
	"strings"

	errs "github.com/matzehuels/mockup/pkg/errors"
)

// Rule is the target overlay size and offset for one garment category.
type Rule struct {
	Category string // normalized category key
	Width    int    // overlay target width in pixels
	Height   int    // overlay target height in pixels
	X        int    // x-offset of the overlay's top-left corner
	Y        int    // y-offset of the overlay's top-left corner
	Label    string // human-readable name
}

// Registry maps normalized category identifiers to placement rules.
type Registry struct {
	rules map[string]Rule
}

// Normalize returns the canonical form of a category identifier.
// The same normalization is used for base image file names.
func Normalize(category string) string {
	return strings.ToUpper(strings.TrimSpace(category))
}

// NewRegistry builds a registry from rules. Categories are normalized; empty
// or duplicate categories and non-positive sizes are rejected.
func NewRegistry(rules ...Rule) (*Registry, error) {
	r := &Registry{rules: make(map[string]Rule, len(rules))}
	for _, rule := range rules {
		key := Normalize(rule.Category)
		if err := errs.ValidateCategory(key); err != nil {
			return nil, errs.Wrap(errs.ErrCodeConfig, err, "placement rule %q", rule.Category)
		}
		if rule.Width <= 0 || rule.Height <= 0 {
			return nil, errs.New(errs.ErrCodeConfig, "placement rule %s: size must be positive (got %dx%d)", key, rule.Width, rule.Height)
		}
		if _, dup := r.rules[key]; dup {
			return nil, errs.New(errs.ErrCodeConfig, "duplicate placement rule for %s", key)
		}
		rule.Category = key
		r.rules[key] = rule
	}
	return r, nil
}

// Lookup returns the rule for category, ignoring case.
func (r *Registry) Lookup(category string) (Rule, error) {
	rule, ok := r.rules[Normalize(category)]
	if !ok {
		return Rule{}, errs.New(errs.ErrCodeNotFound, "no placement rule for category %q", category)
	}
	return rule, nil
}

// Categories returns the registered category keys in sorted order.
func (r *Registry) Categories() []string {
	keys := make([]string, 0, len(r.rules))
	for k := range r.rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered rules.
func (r *Registry) Len() int { return len(r.rules) }
