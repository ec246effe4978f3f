package fake

import (
	"testing"

	"github.com/zboralski/galago/internal/symbolic"
)

func TestRegistersDefaultToConcreteZero(t *testing.T) {
	r := NewRegisters()
	v, err := r.Read(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cv, ok := v.Concrete()
	if !ok || cv != 0 {
		t.Fatalf("expected concrete 0 for an unset register, got %v ok=%v", cv, ok)
	}
}

func TestRegistersWriteAndRead(t *testing.T) {
	r := NewRegisters()
	if err := r.Write(1, 0x42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := r.Read(1)
	cv, ok := v.Concrete()
	if !ok || cv != 0x42 {
		t.Fatalf("expected concrete 0x42, got %v ok=%v", cv, ok)
	}
}

func TestRegistersWriteSymbolicPreservesFreeVariables(t *testing.T) {
	r := NewRegisters()
	if err := r.WriteSymbolic(2, Symbolic("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := r.Read(2)
	if _, ok := v.Concrete(); ok {
		t.Fatal("expected register to remain symbolic")
	}
	if _, ok := v.FreeVariables()["x"]; !ok {
		t.Fatal("expected free variable x to be tracked")
	}
}

func TestMemoryMapRegionZeroFills(t *testing.T) {
	m := NewMemory()
	if err := m.MapRegion(0x1000, 0x2000, symbolic.PermRW); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	objs, err := m.LoadObjects(0x1000, 0x1010, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(objs) != 1 {
		t.Fatalf("expected one backing object, got %d", len(objs))
	}
	for _, v := range objs[0].Bytes {
		cv, ok := v.Concrete()
		if !ok || cv != 0 {
			t.Fatalf("expected zero-filled bytes, got %v ok=%v", cv, ok)
		}
	}
}

func TestMemoryWriteBytesThenLoad(t *testing.T) {
	m := NewMemory()
	if err := m.MapRegion(0x1000, 0x1000, symbolic.PermRW); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.WriteBytes(0x1000, []byte{1, 2, 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	objs, err := m.LoadObjects(0x1000, 0x1003, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := objs[0].Bytes
	for i, want := range []uint64{1, 2, 3} {
		cv, _ := got[i].Concrete()
		if cv != want {
			t.Errorf("byte %d: expected %d, got %d", i, want, cv)
		}
	}
}

func TestMemoryLoadObjectsStrictFailsOnGap(t *testing.T) {
	m := NewMemory()
	if _, err := m.LoadObjects(0x5000, 0x5010, false); err == nil {
		t.Fatal("expected an error for a strict load against unmapped memory")
	}
}

func TestMemoryLoadObjectsBestEffortToleratesGap(t *testing.T) {
	m := NewMemory()
	objs, err := m.LoadObjects(0x5000, 0x5010, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(objs) != 0 {
		t.Fatalf("expected no objects over unmapped memory, got %d", len(objs))
	}
}

func TestSolverEvalPrefersConcrete(t *testing.T) {
	s := NewSolver(map[string]uint64{"x": 9})
	cv, err := s.Eval(Concrete(5))
	if err != nil || cv != 5 {
		t.Fatalf("expected concrete value to pass through unchanged, got %v err=%v", cv, err)
	}
}

func TestSolverEvalUsesModelForSymbolic(t *testing.T) {
	s := NewSolver(map[string]uint64{"x": 9})
	cv, err := s.Eval(Symbolic("x"))
	if err != nil || cv != 9 {
		t.Fatalf("expected model value 9, got %v err=%v", cv, err)
	}
}

func TestSolverAddConstraintRecords(t *testing.T) {
	s := NewSolver(nil)
	if err := s.AddConstraint(Concrete(1), 1, "tag", 0x10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Constraints) != 1 {
		t.Fatalf("expected one recorded constraint, got %d", len(s.Constraints))
	}
	if s.Constraints[0].Tag != "tag" || s.Constraints[0].IP != 0x10 {
		t.Fatalf("unexpected constraint recorded: %+v", s.Constraints[0])
	}
}

func TestStateIPReadsConfiguredRegister(t *testing.T) {
	st := NewState("AMD64", 3, nil)
	if err := st.Regs.Write(3, 0x401000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := st.IP()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cv, ok := v.Concrete()
	if !ok || cv != 0x401000 {
		t.Fatalf("expected IP 0x401000, got %v ok=%v", cv, ok)
	}
}

func TestStdoutAccumulatesWrites(t *testing.T) {
	st := NewState("AMD64", 0, nil)
	n, err := st.Stdout().Write([]byte("hi"))
	if err != nil || n != 2 {
		t.Fatalf("unexpected write result: n=%d err=%v", n, err)
	}
	n, err = st.Stdout().Write([]byte("!"))
	if err != nil || n != 1 {
		t.Fatalf("unexpected write result: n=%d err=%v", n, err)
	}
	if string(st.Out.Data) != "hi!" {
		t.Fatalf("expected accumulated stdout %q, got %q", "hi!", st.Out.Data)
	}
}
