// Package fake is a minimal in-memory realization of the
// internal/symbolic interfaces: a byte-addressable register file and
// paged memory holding either concrete bytes or named symbolic
// variables, backed by a trivial solver that evaluates against a fixed
// model. It exists for tests and for the CLI demo driver — nothing in
// internal/accel imports it directly.
package fake

import (
	"fmt"
	"sort"

	"github.com/zboralski/galago/internal/symbolic"
)

// Value is either a concrete byte/word or a named free variable.
type Value struct {
	concrete   uint64
	isConcrete bool
	name       string
	anns       []symbolic.Annotation
}

// Concrete wraps a resolved value.
func Concrete(v uint64) Value { return Value{concrete: v, isConcrete: true} }

// Symbolic wraps a named free variable, optionally annotated.
func Symbolic(name string, anns ...symbolic.Annotation) Value {
	return Value{name: name, anns: anns}
}

func (v Value) Concrete() (uint64, bool) { return v.concrete, v.isConcrete }
func (v Value) Annotations() []symbolic.Annotation { return v.anns }
func (v Value) FreeVariables() symbolic.VarSet {
	if v.isConcrete || v.name == "" {
		return nil
	}
	return symbolic.VarSet{v.name: struct{}{}}
}
func (v Value) Identity() symbolic.ValueID {
	if v.isConcrete {
		return symbolic.ValueID(fmt.Sprintf("c:%d", v.concrete))
	}
	return symbolic.ValueID("v:" + v.name)
}

// Registers is a byte-addressable register file keyed by native
// register id, matching the width conventions arch.RegSpec describes.
type Registers struct {
	words map[int]Value
}

// NewRegisters returns an empty register file; every unset register
// reads as a concrete zero.
func NewRegisters() *Registers { return &Registers{words: make(map[int]Value)} }

func (r *Registers) Read(reg int) (symbolic.Value, error) {
	if v, ok := r.words[reg]; ok {
		return v, nil
	}
	return Concrete(0), nil
}

func (r *Registers) Write(reg int, val uint64) error {
	r.words[reg] = Concrete(val)
	return nil
}

func (r *Registers) WriteSymbolic(reg int, val symbolic.Value) error {
	v, ok := val.(Value)
	if !ok {
		return fmt.Errorf("fake: foreign Value implementation")
	}
	r.words[reg] = v
	return nil
}

// Bytes returns n copies of the register's whole-word value, since this
// fake model has no sub-register byte granularity of its own — enough
// to exercise the symbolic-offset widening logic, which only cares
// whether a byte is concrete or not.
func (r *Registers) Bytes(reg int, n int) ([]symbolic.Value, error) {
	v, err := r.Read(reg)
	if err != nil {
		return nil, err
	}
	out := make([]symbolic.Value, n)
	for i := range out {
		out[i] = v
	}
	return out, nil
}

// page is 4KiB of byte-granular values.
type page struct {
	bytes [4096]Value
	perm  symbolic.Perm
	symPerm bool
}

const pageShift = 12
const pageSize = 1 << pageShift

// Memory is a sparse paged byte store.
type Memory struct {
	pages map[uint64]*page
}

func NewMemory() *Memory { return &Memory{pages: make(map[uint64]*page)} }

func pageBase(addr uint64) uint64 { return addr &^ (pageSize - 1) }

func (m *Memory) Permission(addr uint64) (symbolic.Perm, bool, bool) {
	p, ok := m.pages[pageBase(addr)]
	if !ok {
		return 0, false, false
	}
	return p.perm, p.symPerm, true
}

func (m *Memory) MapRegion(addr, size uint64, perm symbolic.Perm) error {
	for a := pageBase(addr); a < addr+size; a += pageSize {
		if _, ok := m.pages[a]; ok {
			continue
		}
		np := &page{perm: perm}
		for i := range np.bytes {
			np.bytes[i] = Concrete(0)
		}
		m.pages[a] = np
	}
	return nil
}

// SetByte writes one value directly, for test setup.
func (m *Memory) SetByte(addr uint64, v Value) {
	base := pageBase(addr)
	p, ok := m.pages[base]
	if !ok {
		p = &page{perm: symbolic.PermRW}
		for i := range p.bytes {
			p.bytes[i] = Concrete(0)
		}
		m.pages[base] = p
	}
	p.bytes[addr-base] = v
}

func (m *Memory) LoadObjects(start, end uint64, bestEffort bool) ([]symbolic.MemoryObject, error) {
	var objs []symbolic.MemoryObject
	for base, p := range m.pages {
		if base+pageSize <= start || base >= end {
			continue
		}
		lo, hi := base, base+pageSize
		if lo < start {
			lo = start
		}
		if hi > end {
			hi = end
		}
		vals := make([]symbolic.Value, hi-lo)
		for i := range vals {
			vals[i] = p.bytes[lo-base+uint64(i)]
		}
		objs = append(objs, symbolic.MemoryObject{Start: lo, Bytes: vals})
	}
	if !bestEffort && len(objs) == 0 {
		return nil, fmt.Errorf("fake: no objects in [%#x,%#x)", start, end)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Start > objs[j].Start })
	return objs, nil
}

func (m *Memory) WriteBytes(addr uint64, data []byte) error {
	for i, b := range data {
		m.SetByte(addr+uint64(i), Concrete(uint64(b)))
	}
	return nil
}

// Solver evaluates every symbolic value against a fixed model and
// records every constraint it is asked to add, for test assertions.
type Solver struct {
	Model       map[string]uint64
	Constraints []Constraint
}

// Constraint is one recorded AddConstraint call.
type Constraint struct {
	Value symbolic.Value
	CV    uint64
	Tag   string
	IP    uint64
}

func NewSolver(model map[string]uint64) *Solver {
	return &Solver{Model: model}
}

func (s *Solver) Eval(v symbolic.Value) (uint64, error) {
	if cv, ok := v.Concrete(); ok {
		return cv, nil
	}
	free := v.FreeVariables()
	for name := range free {
		if cv, ok := s.Model[name]; ok {
			return cv, nil
		}
	}
	return 0, nil
}

func (s *Solver) AddConstraint(v symbolic.Value, cv uint64, tag string, ip uint64) error {
	s.Constraints = append(s.Constraints, Constraint{Value: v, CV: cv, Tag: tag, IP: ip})
	return nil
}

// Stdout is an in-memory byte sink.
type Stdout struct {
	Data []byte
}

func (s *Stdout) Write(data []byte) (int, error) {
	s.Data = append(s.Data, data...)
	return len(data), nil
}

// State is a complete, minimal symbolic.State.
type State struct {
	ArchID string
	Regs   *Registers
	Mem    *Memory
	Slv    *Solver
	Opts   symbolic.FlagSet
	IPReg  int
	Out    *Stdout
}

// NewState returns a ready-to-use fake state for architecture archID,
// with the instruction pointer tracked at register id ipReg.
func NewState(archID string, ipReg int, model map[string]uint64) *State {
	return &State{
		ArchID: archID,
		Regs:   NewRegisters(),
		Mem:    NewMemory(),
		Slv:    NewSolver(model),
		Opts:   make(symbolic.FlagSet),
		IPReg:  ipReg,
		Out:    &Stdout{},
	}
}

func (s *State) Arch() string            { return s.ArchID }
func (s *State) Registers() symbolic.Registers { return s.Regs }
func (s *State) Memory() symbolic.Memory       { return s.Mem }
func (s *State) Solver() symbolic.Solver       { return s.Slv }
func (s *State) Options() symbolic.Options     { return s.Opts }
func (s *State) Stdout() symbolic.Stdout       { return s.Out }

func (s *State) IP() (symbolic.Value, error) {
	return s.Regs.Read(s.IPReg)
}
