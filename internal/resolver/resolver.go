// Package resolver computes resolution plans: which module versions to
// install, upgrade, skip, or remove to satisfy a request against the
// current catalog and registry. All resolution errors happen before any
// filesystem mutation and leave nothing partially applied.
package resolver

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/cadmod-labs/cadmod/internal/catalog"
	"github.com/cadmod-labs/cadmod/internal/registry"
)

const (
	white = iota
	grey
	black
)

// Resolve computes an install plan for the requested identifiers. For each
// identifier in the closure it selects the highest catalog version
// satisfying every declared minimum-version constraint, orders dependencies
// before dependents, and marks already-satisfied modules as skips.
func Resolve(requested []string, cat *catalog.Catalog, reg *registry.Registry) (*Plan, error) {
	if len(requested) == 0 {
		return &Plan{}, nil
	}

	// Roots in catalog declaration order keeps independent subgraphs in a
	// deterministic, reproducible order.
	roots := append([]string(nil), requested...)
	sort.SliceStable(roots, func(i, j int) bool {
		return cat.DeclarationIndex(roots[i]) < cat.DeclarationIndex(roots[j])
	})

	// A selection can tighten constraints on a module visited earlier in
	// the same walk, so walks repeat with the previous round's constraint
	// table until selections are stable. Minimum-version constraints only
	// tighten, which bounds the rounds by the catalog size.
	var w *walker
	prevCons := make(map[string][]Constraint)
	prevSel := make(map[string]string)
	maxRounds := len(cat.Modules()) + 2
	for round := 0; ; round++ {
		if round == maxRounds {
			return nil, &ConvergenceError{Rounds: maxRounds}
		}

		w = newWalker(cat, prevCons)
		for _, id := range roots {
			w.addConstraint(id, Constraint{DeclaredBy: "request"})
			if err := w.visit(id); err != nil {
				return nil, err
			}
		}

		cur := make(map[string]string, len(w.sel))
		for id, d := range w.sel {
			cur[id] = d.Version
		}
		if versionsEqual(prevSel, cur) {
			break
		}
		prevSel = cur
		prevCons = w.cons
	}

	// Post-order emission: dependencies precede dependents.
	plan := &Plan{}
	for _, id := range w.order {
		desc := w.sel[id]
		step := Step{ID: id, Version: desc.Version, Action: ActionInstall, Descriptor: desc}

		if rec, ok := reg.Get(id); ok && !rec.PendingRemoval {
			if w.satisfiesAll(id, rec.Version) {
				step = Step{ID: id, Version: rec.Version, Action: ActionSkip}
			} else {
				step.Action = ActionUpgrade
			}
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan, nil
}

// ResolveRemoval validates and orders a removal request against the current
// registry graph. Every requested identifier must be installed, and no
// remaining installed module may depend on one being removed unless it is
// part of the same removal set. Steps come out dependents-first.
func ResolveRemoval(requested []string, reg *registry.Registry) (*Plan, error) {
	set := make(map[string]bool, len(requested))
	for _, id := range requested {
		set[id] = true
	}

	records := make(map[string]registry.Record, len(requested))
	for _, id := range requested {
		rec, ok := reg.Get(id)
		if !ok || rec.PendingRemoval {
			return nil, &NotInstalledError{ID: id}
		}
		records[id] = rec
	}

	// Blocking check runs before any filesystem mutation.
	active := reg.Active()
	for _, id := range requested {
		var blockers []string
		for _, rec := range active {
			if set[rec.ID] {
				continue
			}
			for _, dep := range rec.Requires {
				if dep == id {
					blockers = append(blockers, rec.ID)
					break
				}
			}
		}
		if len(blockers) > 0 {
			sort.Strings(blockers)
			return nil, &DependentStillInstalledError{ID: id, Dependents: blockers}
		}
	}

	// Reverse dependency order within the set: post-order DFS over the
	// registry's dependency edges yields dependencies first; reverse it so
	// dependents are removed before what they depend on.
	color := make(map[string]int, len(requested))
	var order []string
	var visit func(id string)
	visit = func(id string) {
		if color[id] != white {
			return
		}
		color[id] = grey
		for _, dep := range records[id].Requires {
			if set[dep] {
				visit(dep)
			}
		}
		color[id] = black
		order = append(order, id)
	}
	ids := append([]string(nil), requested...)
	sort.Strings(ids)
	for _, id := range ids {
		visit(id)
	}

	plan := &Plan{}
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		plan.Steps = append(plan.Steps, Step{
			ID:      id,
			Version: records[id].Version,
			Action:  ActionRemove,
		})
	}
	return plan, nil
}

// walker performs one constrained DFS over the catalog.
type walker struct {
	cat   *catalog.Catalog
	prev  map[string][]Constraint
	cons  map[string][]Constraint
	sel   map[string]*catalog.ModuleDescriptor
	color map[string]int
	stack []string
	order []string
}

func newWalker(cat *catalog.Catalog, prev map[string][]Constraint) *walker {
	return &walker{
		cat:   cat,
		prev:  prev,
		cons:  make(map[string][]Constraint),
		sel:   make(map[string]*catalog.ModuleDescriptor),
		color: make(map[string]int),
	}
}

func (w *walker) addConstraint(id string, c Constraint) {
	w.cons[id] = append(w.cons[id], c)
}

// merged returns the constraints known for id across this walk and the
// previous round, deduplicated.
func (w *walker) merged(id string) []Constraint {
	seen := make(map[Constraint]bool)
	var out []Constraint
	for _, c := range append(append([]Constraint(nil), w.prev[id]...), w.cons[id]...) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func (w *walker) visit(id string) error {
	switch w.color[id] {
	case grey:
		// A grey node re-visited closes a cycle.
		start := 0
		for i, s := range w.stack {
			if s == id {
				start = i
				break
			}
		}
		cycle := append(append([]string(nil), w.stack[start:]...), id)
		return &CyclicDependencyError{Cycle: cycle}
	case black:
		return nil
	}

	w.color[id] = grey
	w.stack = append(w.stack, id)

	desc, err := w.selectVersion(id)
	if err != nil {
		return err
	}
	w.sel[id] = desc

	for _, dep := range desc.Requires {
		w.addConstraint(dep.ID, Constraint{DeclaredBy: id, Expr: normalizeExpr(dep.MinVersion)})
		if err := w.visit(dep.ID); err != nil {
			return err
		}
	}

	w.stack = w.stack[:len(w.stack)-1]
	w.color[id] = black
	w.order = append(w.order, id)
	return nil
}

// selectVersion picks the highest catalog version of id satisfying every
// known constraint.
func (w *walker) selectVersion(id string) (*catalog.ModuleDescriptor, error) {
	versions := w.cat.Versions(id)
	if len(versions) == 0 {
		return nil, &UnsatisfiableDependencyError{ID: id, RequiredBy: w.declaredBy(id)}
	}

	cons := w.merged(id)
	var best *catalog.ModuleDescriptor
	var bestVer *semver.Version
	var available []string

	for i := range versions {
		d := versions[i]
		available = append(available, d.Version)
		v, err := semver.NewVersion(d.Version)
		if err != nil {
			continue
		}
		if !satisfies(v, cons) {
			continue
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			best = &d
			bestVer = v
		}
	}

	if best == nil {
		return nil, &VersionConflictError{ID: id, Constraints: effective(cons), Available: available}
	}
	return best, nil
}

// satisfiesAll reports whether an installed version meets every constraint
// collected for id in the final walk.
func (w *walker) satisfiesAll(id, version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return satisfies(v, w.merged(id))
}

func (w *walker) declaredBy(id string) []string {
	var out []string
	for _, c := range w.merged(id) {
		if c.DeclaredBy != "request" {
			out = append(out, c.DeclaredBy)
		}
	}
	sort.Strings(out)
	return out
}

func satisfies(v *semver.Version, cons []Constraint) bool {
	for _, c := range cons {
		if c.Expr == "" {
			continue
		}
		check, err := semver.NewConstraint(c.Expr)
		if err != nil {
			return false
		}
		if !check.Check(v) {
			return false
		}
	}
	return true
}

// effective filters out the empty placeholder constraints for reporting.
func effective(cons []Constraint) []Constraint {
	var out []Constraint
	for _, c := range cons {
		if c.Expr != "" {
			out = append(out, c)
		}
	}
	return out
}

// normalizeExpr applies minimum-version semantics to bare versions:
// "1.2.0" becomes ">= 1.2.0". Expressions already carrying an operator
// pass through, so full semver ranges remain usable.
func normalizeExpr(expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ""
	}
	if strings.ContainsAny(expr, "><=~^*,| ") {
		return expr
	}
	return ">= " + expr
}

func versionsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
