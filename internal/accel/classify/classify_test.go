package classify

import (
	"testing"

	"github.com/zboralski/galago/internal/accel/plugin"
	"github.com/zboralski/galago/internal/symbolic"
	"github.com/zboralski/galago/internal/symbolic/fake"
)

func newPlugin() *plugin.Plugin {
	return plugin.New("k", plugin.CooldownSettings{}, plugin.Thresholds{}, 0)
}

func TestClassifyRefusesAnnotated(t *testing.T) {
	v := fake.Symbolic("x", symbolic.AggressiveConcretizationAnnotation{IP: 1})
	_, refused, err := Classify(v, FromReg, 1, symbolic.FlagSet{}, fake.NewSolver(nil), newPlugin(), StaticSet{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !refused {
		t.Fatal("expected annotated value to be refused")
	}
}

func TestClassifyPassesThroughConcrete(t *testing.T) {
	v := fake.Concrete(42)
	result, refused, err := Classify(v, FromReg, 1, symbolic.FlagSet{}, fake.NewSolver(nil), newPlugin(), StaticSet{})
	if err != nil || refused {
		t.Fatalf("unexpected refusal/error: refused=%v err=%v", refused, err)
	}
	cv, ok := result.Concrete()
	if !ok || cv != 42 {
		t.Fatalf("expected concrete 42, got %v ok=%v", cv, ok)
	}
}

func TestClassifyAggressiveConcretizationAlwaysConcretizes(t *testing.T) {
	v := fake.Symbolic("x")
	opts := symbolic.FlagSet{symbolic.OptAggressiveConcretization: true}
	solver := fake.NewSolver(map[string]uint64{"x": 7})
	result, refused, err := Classify(v, FromReg, 1, opts, solver, newPlugin(), StaticSet{})
	if err != nil || refused {
		t.Fatalf("unexpected refusal/error: refused=%v err=%v", refused, err)
	}
	cv, ok := result.Concrete()
	if !ok || cv != 7 {
		t.Fatalf("expected concrete 7, got %v ok=%v", cv, ok)
	}
	if len(solver.Constraints) != 1 {
		t.Fatalf("expected one constraint recorded, got %d", len(solver.Constraints))
	}
}

func TestClassifyNeverConcretizeWins(t *testing.T) {
	p := newPlugin()
	p.NeverConcretize["x"] = struct{}{}
	p.AlwaysConcretize["x"] = struct{}{} // would also match step 5; step 4 must win
	v := fake.Symbolic("x")
	result, refused, err := Classify(v, FromReg, 1, symbolic.FlagSet{}, fake.NewSolver(nil), p, StaticSet{})
	if err != nil || refused {
		t.Fatalf("unexpected refusal/error: refused=%v err=%v", refused, err)
	}
	if _, ok := result.Concrete(); ok {
		t.Fatal("expected value to remain symbolic")
	}
}

func TestClassifyAlwaysConcretizeSubset(t *testing.T) {
	p := newPlugin()
	p.AlwaysConcretize["x"] = struct{}{}
	v := fake.Symbolic("x")
	solver := fake.NewSolver(map[string]uint64{"x": 9})
	result, _, err := Classify(v, FromReg, 1, symbolic.FlagSet{}, solver, p, StaticSet{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cv, ok := result.Concrete()
	if !ok || cv != 9 {
		t.Fatalf("expected concrete 9, got %v ok=%v", cv, ok)
	}
}

func TestClassifyConcretizeAtMembership(t *testing.T) {
	p := newPlugin()
	p.ConcretizeAt[0x1000] = struct{}{}
	v := fake.Symbolic("x")
	solver := fake.NewSolver(map[string]uint64{"x": 3})
	result, _, err := Classify(v, FromReg, 0x1000, symbolic.FlagSet{}, solver, p, StaticSet{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cv, ok := result.Concrete()
	if !ok || cv != 3 {
		t.Fatalf("expected concrete 3, got %v ok=%v", cv, ok)
	}
}

func TestClassifyFallsThroughSymbolic(t *testing.T) {
	p := newPlugin()
	v := fake.Symbolic("x")
	result, refused, err := Classify(v, FromReg, 0x2000, symbolic.FlagSet{}, fake.NewSolver(nil), p, StaticSet{})
	if err != nil || refused {
		t.Fatalf("unexpected refusal/error: refused=%v err=%v", refused, err)
	}
	if _, ok := result.Concrete(); ok {
		t.Fatal("expected value to remain symbolic with no policy match")
	}
}

func TestClassifyDoesNotDuplicateConstraints(t *testing.T) {
	p := newPlugin()
	opts := symbolic.FlagSet{symbolic.OptAggressiveConcretization: true}
	solver := fake.NewSolver(map[string]uint64{"x": 1})
	v := fake.Symbolic("x")

	if _, _, err := Classify(v, FromReg, 1, opts, solver, p, StaticSet{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := Classify(v, FromReg, 2, opts, solver, p, StaticSet{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(solver.Constraints) != 1 {
		t.Fatalf("expected constraint to be emitted once (I5), got %d", len(solver.Constraints))
	}
}
