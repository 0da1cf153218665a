package grizzly

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
)

// Keyword is one of the three Gherkin verbs a step definition registers
// under. "and"/"but"/"*" are not keywords in their own right — callers
// resolve them to the nearest preceding explicit keyword before looking up
// the inventory.
type Keyword string

const (
	Given Keyword = "given"
	When  Keyword = "when"
	Then  Keyword = "then"
)

// SourceLocation is the file/line a step definition was registered at.
type SourceLocation struct {
	Path string
	Line int
}

// StepDefinition is one catalogued entry: a registered pattern, its
// compiled regex forms, and its documentation.
type StepDefinition struct {
	Keyword            Keyword
	Expression         string
	CleanExpression    string
	Pattern            *Pattern
	Help               string
	SourceLocation     *SourceLocation
	RegistrationIndex  int
}

// RawDefinition is what a Source Loader harvests before normalization.
type RawDefinition struct {
	Keyword        Keyword
	Expression     string
	Help           string
	SourceLocation *SourceLocation
	// Validators maps a placeholder name to a boolean expr-lang expression
	// evaluated against {value: <captured string>} during diagnostics.
	Validators map[string]string
}

// Inventory is the indexed, immutable catalogue of step definitions for one
// revision. A new Inventory is built wholesale and swapped in atomically;
// nothing ever mutates an Inventory in place.
type Inventory struct {
	revision uint64
	byVerb   map[Keyword][]*StepDefinition
	prefixes map[Keyword][]string // normalized clean expressions, same order as byVerb
}

func newInventory(revision uint64) *Inventory {
	return &Inventory{
		revision: revision,
		byVerb:   make(map[Keyword][]*StepDefinition),
		prefixes: make(map[Keyword][]string),
	}
}

// Revision returns the build counter this snapshot was produced by.
func (inv *Inventory) Revision() uint64 { return inv.revision }

// All returns every definition registered under verb, in registration order.
func (inv *Inventory) All(verb Keyword) []*StepDefinition {
	return inv.byVerb[verb]
}

// Lookup returns the first definition under verb whose regex fully matches
// text, with ties (multiple regex variants on the same definition)
// resolved to the lowest variant index. Insertion order breaks ties across
// definitions.
func (inv *Inventory) Lookup(verb Keyword, text string) (*StepDefinition, bool) {
	for _, def := range inv.byVerb[verb] {
		for _, rx := range def.Pattern.RegexPatterns {
			if rx.MatchString(text) {
				return def, true
			}
		}
	}

	return nil, false
}

// Candidates returns definitions under verb whose normalized clean
// expression starts with normalizedPrefix (already normalized by the
// caller via NormalizeText). An empty prefix returns every definition.
func (inv *Inventory) Candidates(verb Keyword, normalizedPrefix string) []*StepDefinition {
	defs := inv.byVerb[verb]

	if normalizedPrefix == "" {
		return defs
	}

	out := make([]*StepDefinition, 0, len(defs))

	for i, def := range defs {
		if strings.HasPrefix(inv.prefixes[verb][i], normalizedPrefix) {
			out = append(out, def)
		}
	}

	return out
}

// NormalizeText lowercases s and collapses internal whitespace runs, the
// normalization applied uniformly to inventory entries and lookup/prefix
// queries so the two sides compare equal.
func NormalizeText(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

// Store owns the single active Inventory for a workspace and coalesces
// concurrent rebuild requests onto one in-flight build.
type Store struct {
	current atomic.Pointer[Inventory]
	group   singleflight.Group
	nextRev atomic.Uint64
}

// NewStore returns a Store holding an empty, revision-0 inventory.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(newInventory(0))

	return s
}

// Snapshot returns the currently active inventory. Callers should take one
// reference per request and use it throughout, rather than re-reading
// Snapshot mid-request, so that a concurrent rebuild cannot make two reads
// within the same request disagree.
func (s *Store) Snapshot() *Inventory {
	return s.current.Load()
}

// Rebuild normalizes raw and swaps it in as the new active inventory.
// Concurrent callers made during an in-flight rebuild share its result
// rather than each starting their own.
//
// Per-definition pattern errors are collected and returned as a non-fatal
// multierr alongside the (still successfully built) inventory; a loader
// failure for the whole batch should be reported by the caller separately
// and Rebuild should not be called with raw == nil in that case.
func (s *Store) Rebuild(ctx context.Context, raw []RawDefinition, registry *ParseTypeRegistry) (*Inventory, error) {
	v, err, _ := s.group.Do("rebuild", func() (any, error) {
		return s.rebuildOnce(raw, registry)
	})

	_ = ctx // reserved for future deadline plumbing; loader owns the real timeout

	if v == nil {
		return nil, err
	}

	return v.(*Inventory), err
}

func (s *Store) rebuildOnce(raw []RawDefinition, registry *ParseTypeRegistry) (*Inventory, error) {
	rev := s.nextRev.Add(1)
	inv := newInventory(rev)

	var errs error

	for i, rd := range raw {
		pat, err := NormalizePattern(rd.Expression, registry)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		for i, ph := range pat.Placeholders {
			if v, ok := rd.Validators[ph.Name]; ok {
				pat.Placeholders[i].Validator = v
			}
		}

		def := &StepDefinition{
			Keyword:           rd.Keyword,
			Expression:        rd.Expression,
			CleanExpression:   pat.CleanExpression,
			Pattern:           pat,
			Help:              rd.Help,
			SourceLocation:    rd.SourceLocation,
			RegistrationIndex: i,
		}

		inv.byVerb[rd.Keyword] = append(inv.byVerb[rd.Keyword], def)
		inv.prefixes[rd.Keyword] = append(inv.prefixes[rd.Keyword], NormalizeText(pat.CleanExpression))
	}

	sortStable(inv)

	s.current.Store(inv)

	return inv, errs
}

// sortStable keeps registration order within a verb; it exists purely as a
// documented no-op hook for a future ranking pass so Rebuild's contract
// (insertion-order ties) stays obvious at the call site.
func sortStable(inv *Inventory) {
	for verb := range inv.byVerb {
		sort.SliceStable(inv.byVerb[verb], func(i, j int) bool {
			return inv.byVerb[verb][i].RegistrationIndex < inv.byVerb[verb][j].RegistrationIndex
		})
	}
}
