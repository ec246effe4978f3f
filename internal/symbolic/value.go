// Package symbolic defines the interfaces the accelerator needs from the
// host symbolic executor: register file, paged memory, constraint solver,
// option set. This package has no implementation of its own concern — the
// real register file, memory model and solver live outside this module,
// in the symbolic-execution engine the accelerator bridges to. A minimal
// in-memory implementation lives in internal/symbolic/fake for tests and
// the CLI demo driver.
package symbolic

// ValueID is a stable identity for a symbolic value. It must not change
// as the solver simplifies the underlying expression, and must be
// hashable — callers may use it as a map key.
type ValueID string

// VarSet is a set of free-variable names backing one or more symbolic
// values.
type VarSet map[string]struct{}

// Intersects reports whether the two sets share at least one member.
func (s VarSet) Intersects(other VarSet) bool {
	small, big := s, other
	if len(big) < len(small) {
		small, big = big, small
	}
	for v := range small {
		if _, ok := big[v]; ok {
			return true
		}
	}
	return false
}

// SubsetOf reports whether every member of s is also in other.
func (s VarSet) SubsetOf(other VarSet) bool {
	for v := range s {
		if _, ok := other[v]; !ok {
			return false
		}
	}
	return true
}

// Annotation is opaque metadata attached to a symbolic value. The
// classifier (C2) refuses any value that carries one, since annotations
// carry semantics the native emulator cannot preserve.
type Annotation interface {
	AnnotationTag() string
}

// AggressiveConcretizationAnnotation marks a constraint the accelerator
// itself emitted in aggressive-concretization mode, tagged with the
// instruction pointer at the time it was emitted.
type AggressiveConcretizationAnnotation struct {
	IP uint64
}

func (a AggressiveConcretizationAnnotation) AnnotationTag() string {
	return "aggressive-concretization"
}

// Value is a single symbolic (or concrete) datum: a register value or a
// byte of memory.
type Value interface {
	// Concrete returns the value and true if it has no symbolic bytes.
	Concrete() (uint64, bool)
	// Annotations returns all annotations attached to this value.
	Annotations() []Annotation
	// FreeVariables returns the set of free variable names this value
	// depends on. Empty for concrete values.
	FreeVariables() VarSet
	// Identity returns a stable identity for this value, used to avoid
	// emitting duplicate concretization constraints (I5).
	Identity() ValueID
}
