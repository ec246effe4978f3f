// Package classify implements the Value Classifier (C2, spec.md §4.2):
// for every symbolic value read off a register or a byte of memory,
// decide whether to pass it through, concretize it, or refuse it.
package classify

import (
	"github.com/zboralski/galago/internal/accel/plugin"
	"github.com/zboralski/galago/internal/symbolic"
)

// FromWhere tags the origin of a value being classified (spec.md §4.2).
type FromWhere int

const (
	FromReg FromWhere = iota
	FromMem
)

// Refused is returned when C2 refuses a value outright (annotations
// present). The caller must abort the episode for registers, or taint
// the byte for memory.
var Refused = concreteSentinel{}

type concreteSentinel struct{}

func (concreteSentinel) Concrete() (uint64, bool)        { return 0, false }
func (concreteSentinel) Annotations() []symbolic.Annotation { return nil }
func (concreteSentinel) FreeVariables() symbolic.VarSet  { return nil }
func (concreteSentinel) Identity() symbolic.ValueID      { return "" }

// concreteValue wraps a resolved concrete uint64 as a symbolic.Value, the
// return type C2 hands back after a concretization decision.
type concreteValue struct {
	v uint64
}

func Concrete(v uint64) symbolic.Value { return concreteValue{v} }

func (c concreteValue) Concrete() (uint64, bool)           { return c.v, true }
func (c concreteValue) Annotations() []symbolic.Annotation { return nil }
func (c concreteValue) FreeVariables() symbolic.VarSet     { return nil }
func (c concreteValue) Identity() symbolic.ValueID         { return "" }

// ConcretizeAtChecker answers membership in concretize_at for a given
// instruction pointer. The default is a plain set lookup; ScriptEngine
// (script.go) is a scriptable alternative.
type ConcretizeAtChecker interface {
	ConcretizeAt(p *plugin.Plugin, ip uint64) bool
}

// StaticSet checks plugin.ConcretizeAt directly — the behavior spec.md
// describes verbatim.
type StaticSet struct{}

func (StaticSet) ConcretizeAt(p *plugin.Plugin, ip uint64) bool {
	_, ok := p.ConcretizeAt[ip]
	return ok
}

// Classify runs the seven-step policy of spec.md §4.2 and returns the
// value to materialize. refused is true only for step 1 (annotations
// present); the caller is responsible for steps 4/7's "let the caller
// decide" semantics — Classify never errors on a still-symbolic result.
func Classify(
	v symbolic.Value,
	from FromWhere,
	ip uint64,
	opts symbolic.Options,
	solver symbolic.Solver,
	p *plugin.Plugin,
	checker ConcretizeAtChecker,
) (result symbolic.Value, refused bool, err error) {
	// Step 1: annotations carry semantics the emulator cannot preserve.
	if len(v.Annotations()) > 0 {
		return Refused, true, nil
	}

	// Step 2: already concrete.
	if cv, ok := v.Concrete(); ok {
		return Concrete(cv), false, nil
	}

	// Step 3: aggressive concretization.
	if opts.Has(symbolic.OptAggressiveConcretization) {
		cv, err := concretize(v, ip, solver, p)
		if err != nil {
			return nil, false, err
		}
		return Concrete(cv), false, nil
	}

	free := v.FreeVariables()

	// Step 4: never_concretize wins — pass the symbolic value through.
	if free.Intersects(p.NeverConcretize) {
		return v, false, nil
	}

	// Step 5: always_concretize.
	if free.SubsetOf(p.AlwaysConcretize) {
		cv, err := concretize(v, ip, solver, p)
		if err != nil {
			return nil, false, err
		}
		return Concrete(cv), false, nil
	}

	// Step 6: current IP is a stop-and-concretize address.
	if checker == nil {
		checker = StaticSet{}
	}
	if checker.ConcretizeAt(p, ip) {
		cv, err := concretize(v, ip, solver, p)
		if err != nil {
			return nil, false, err
		}
		return Concrete(cv), false, nil
	}

	// Step 7: leave it symbolic.
	return v, false, nil
}

// concretize produces a single-model evaluation of v and, unless this
// value's identity already has a recorded constraint (I5/P4), emits
// "v == cv" tagged aggressive-concretization at the given IP.
func concretize(v symbolic.Value, ip uint64, solver symbolic.Solver, p *plugin.Plugin) (uint64, error) {
	cv, err := solver.Eval(v)
	if err != nil {
		return 0, err
	}
	id := v.Identity()
	if _, seen := p.ConcretizedValues[id]; !seen {
		if err := solver.AddConstraint(v, cv, "aggressive-concretization", ip); err != nil {
			return 0, err
		}
		p.ConcretizedValues[id] = struct{}{}
	}
	return cv, nil
}
