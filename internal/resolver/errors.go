package resolver

import (
	"fmt"
	"strings"
)

// Constraint is one minimum-version requirement on an identifier, kept with
// its declaring module for error reporting.
type Constraint struct {
	DeclaredBy string // module id that declared the requirement, or "request"
	Expr       string // constraint expression, e.g. ">= 1.2.0"
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s (required by %s)", c.Expr, c.DeclaredBy)
}

// UnsatisfiableDependencyError reports an identifier no catalog source knows.
type UnsatisfiableDependencyError struct {
	ID         string
	RequiredBy []string
}

func (e *UnsatisfiableDependencyError) Error() string {
	if len(e.RequiredBy) == 0 {
		return fmt.Sprintf("module %s not found in catalog", e.ID)
	}
	return fmt.Sprintf("module %s not found in catalog (required by %s)",
		e.ID, strings.Join(e.RequiredBy, ", "))
}

// VersionConflictError reports that versions of the identifier exist but no
// single one satisfies every declared constraint.
type VersionConflictError struct {
	ID          string
	Constraints []Constraint
	Available   []string
}

func (e *VersionConflictError) Error() string {
	parts := make([]string, 0, len(e.Constraints))
	for _, c := range e.Constraints {
		parts = append(parts, c.String())
	}
	return fmt.Sprintf("no version of %s satisfies all constraints: %s (available: %s)",
		e.ID, strings.Join(parts, "; "), strings.Join(e.Available, ", "))
}

// CyclicDependencyError reports a dependency cycle reachable from the request.
type CyclicDependencyError struct {
	Cycle []string // identifier sequence, first repeated at the end
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// DependentStillInstalledError blocks a removal: the named dependents are
// installed, depend on the module, and are not part of the same removal set.
type DependentStillInstalledError struct {
	ID         string
	Dependents []string
}

func (e *DependentStillInstalledError) Error() string {
	return fmt.Sprintf("cannot remove %s: still required by %s",
		e.ID, strings.Join(e.Dependents, ", "))
}

// ConvergenceError reports that version selection was still changing after
// the bounded number of resolution rounds. Minimum-version constraints only
// tighten, so this indicates an inconsistent catalog snapshot.
type ConvergenceError struct {
	Rounds int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("dependency resolution did not converge after %d rounds", e.Rounds)
}

// NotInstalledError reports a removal request for an absent module.
type NotInstalledError struct {
	ID string
}

func (e *NotInstalledError) Error() string {
	return fmt.Sprintf("module %s is not installed", e.ID)
}
