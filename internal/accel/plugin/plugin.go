// Package plugin implements AcceleratorPlugin (C8, spec.md §3/§4.8): the
// tunables, policy sets and counters attached to exactly one symbolic
// state, cloned on fork and merged on path join.
package plugin

import (
	"sort"

	"github.com/zboralski/galago/internal/symbolic"
	"github.com/zboralski/galago/internal/uclib"
)

// CacheKey identifies a lineage of states that may share a reusable
// emulator handle (spec.md glossary). Stable across forks sharing the
// same execution lineage.
type CacheKey string

// SyscallHookFunc is an in-accelerator model for one syscall number,
// consulted by the i386 interrupt bridge before falling back to a
// STOP_SYSCALL hand-off (spec.md §4.4).
type SyscallHookFunc func(state symbolic.State, sysno int) error

// CooldownSettings are the static countdown lengths configured for each
// cooldown kind (spec.md §3).
type CooldownSettings struct {
	NonUnicornBlocks  int
	SymbolicRegisters int
	SymbolicMemory    int
	StopPoint         int
}

// max returns the component-wise maximum of two settings, used by merge
// (P5: cooldown monotonicity).
func (s CooldownSettings) max(o CooldownSettings) CooldownSettings {
	return CooldownSettings{
		NonUnicornBlocks:  maxInt(s.NonUnicornBlocks, o.NonUnicornBlocks),
		SymbolicRegisters: maxInt(s.SymbolicRegisters, o.SymbolicRegisters),
		SymbolicMemory:    maxInt(s.SymbolicMemory, o.SymbolicMemory),
		StopPoint:         maxInt(s.StopPoint, o.StopPoint),
	}
}

// CooldownState is the live countdown for each cooldown kind.
type CooldownState struct {
	NonUnicornBlocks  int
	SymbolicRegisters int
	SymbolicMemory    int
	StopPoint         int
}

func (s CooldownState) max(o CooldownState) CooldownState {
	return CooldownState{
		NonUnicornBlocks:  maxInt(s.NonUnicornBlocks, o.NonUnicornBlocks),
		SymbolicRegisters: maxInt(s.SymbolicRegisters, o.SymbolicRegisters),
		SymbolicMemory:    maxInt(s.SymbolicMemory, o.SymbolicMemory),
		StopPoint:         maxInt(s.StopPoint, o.StopPoint),
	}
}

// Active reports whether acceleration is currently suppressed by any
// live cooldown.
func (s CooldownState) Active() bool {
	return s.NonUnicornBlocks > 0 || s.SymbolicRegisters > 0 ||
		s.SymbolicMemory > 0 || s.StopPoint > 0
}

// Thresholds configure C6's promotion rule (spec.md §4.6). Zero means
// "no threshold configured for this kind".
type Thresholds struct {
	Instruction int
	Memory      int
	Register    int
}

func (t Thresholds) min(o Thresholds) Thresholds {
	return Thresholds{
		Instruction: minPositive(t.Instruction, o.Instruction),
		Memory:      minPositive(t.Memory, o.Memory),
		Register:    minPositive(t.Register, o.Register),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// minPositive treats 0 as "unset" rather than as the minimum, so merging
// a configured threshold with an unconfigured one keeps the configured
// value (spec.md §4.8 "for thresholds use the minimum").
func minPositive(a, b int) int {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

// Plugin is AcceleratorPlugin (C8).
type Plugin struct {
	CacheKey   CacheKey
	InstanceID uint64 // last id stamped by pool.Acquire

	Settings CooldownSettings
	Live     CooldownState

	Thresholds Thresholds

	VarHits  map[string]int
	InsnHits map[uint64]int

	AlwaysConcretize symbolic.VarSet
	NeverConcretize  symbolic.VarSet
	ConcretizeAt     map[uint64]struct{}

	// ConcretizedValues records identities for which an
	// aggressive-concretization constraint was already emitted (I5/P4).
	ConcretizedValues map[symbolic.ValueID]struct{}

	SyscallHooks map[int]SyscallHookFunc

	MaxSteps uint64
	Steps    uint64

	LastStopReason uclib.StopReason
	LastError      string

	// UncachePages is the pending uncache-page request list (spec.md
	// §4.7 "clear any pending uncache-page requests").
	UncachePages []uint64

	// Engine is the native handle bound for the current episode. Nil
	// outside setup/start/finish/destroy; never copied or serialized.
	Engine interface{}
}

// New returns a freshly configured plugin.
func New(cacheKey CacheKey, settings CooldownSettings, thresholds Thresholds, maxSteps uint64) *Plugin {
	return &Plugin{
		CacheKey:          cacheKey,
		Settings:          settings,
		Thresholds:        thresholds,
		VarHits:           make(map[string]int),
		InsnHits:          make(map[uint64]int),
		AlwaysConcretize:  make(symbolic.VarSet),
		NeverConcretize:   make(symbolic.VarSet),
		ConcretizeAt:      make(map[uint64]struct{}),
		ConcretizedValues: make(map[symbolic.ValueID]struct{}),
		SyscallHooks:      make(map[int]SyscallHookFunc),
		MaxSteps:          maxSteps,
	}
}

// Copy deep-copies everything except the native engine, which starts
// nil in the fork, and the instance id, which is rebuilt on next
// acquisition (spec.md §4.8). The cache key is preserved so the fork
// shares its parent's emulator-reuse lineage.
func (p *Plugin) Copy() *Plugin {
	cp := &Plugin{
		CacheKey:          p.CacheKey,
		Settings:          p.Settings,
		Live:              p.Live,
		Thresholds:        p.Thresholds,
		VarHits:           make(map[string]int, len(p.VarHits)),
		InsnHits:          make(map[uint64]int, len(p.InsnHits)),
		AlwaysConcretize:  make(symbolic.VarSet, len(p.AlwaysConcretize)),
		NeverConcretize:   make(symbolic.VarSet, len(p.NeverConcretize)),
		ConcretizeAt:      make(map[uint64]struct{}, len(p.ConcretizeAt)),
		ConcretizedValues: make(map[symbolic.ValueID]struct{}, len(p.ConcretizedValues)),
		SyscallHooks:      make(map[int]SyscallHookFunc, len(p.SyscallHooks)),
		MaxSteps:          p.MaxSteps,
		Steps:             p.Steps,
		LastStopReason:    p.LastStopReason,
		LastError:         p.LastError,
		UncachePages:      append([]uint64(nil), p.UncachePages...),
	}
	for k, v := range p.VarHits {
		cp.VarHits[k] = v
	}
	for k, v := range p.InsnHits {
		cp.InsnHits[k] = v
	}
	for k := range p.AlwaysConcretize {
		cp.AlwaysConcretize[k] = struct{}{}
	}
	for k := range p.NeverConcretize {
		cp.NeverConcretize[k] = struct{}{}
	}
	for k := range p.ConcretizeAt {
		cp.ConcretizeAt[k] = struct{}{}
	}
	for k := range p.ConcretizedValues {
		cp.ConcretizedValues[k] = struct{}{}
	}
	for k, v := range p.SyscallHooks {
		cp.SyscallHooks[k] = v
	}
	return cp
}

// Merge combines several predecessor plugins into one following all of
// spec.md §4.8's merge rules. The receiver is overwritten in place and
// also returned for convenience.
func (p *Plugin) Merge(others []*Plugin) *Plugin {
	for _, o := range others {
		p.Settings = p.Settings.max(o.Settings)
		p.Live = p.Live.max(o.Live)
		p.Thresholds = p.Thresholds.min(o.Thresholds)

		for k := range o.AlwaysConcretize {
			p.AlwaysConcretize[k] = struct{}{}
		}
		for k := range o.NeverConcretize {
			p.NeverConcretize[k] = struct{}{}
		}
		for k := range o.ConcretizeAt {
			p.ConcretizeAt[k] = struct{}{}
		}

		// Conservative intersection: only promise not to re-emit a
		// constraint already emitted by every predecessor.
		intersected := make(map[symbolic.ValueID]struct{})
		for k := range p.ConcretizedValues {
			if _, ok := o.ConcretizedValues[k]; ok {
				intersected[k] = struct{}{}
			}
		}
		p.ConcretizedValues = intersected
	}
	return p
}

// Widen has no widening-specific behavior beyond merge; the host state
// adapts this concrete-typed method to its own StatePlugin contract.
func (p *Plugin) Widen(others []*Plugin) {
	p.Merge(others)
}

// RecordAlwaysConcretize adds vars to always_concretize (additive only,
// spec.md §4.6 "Policy sets are additive-only within a state").
func (p *Plugin) RecordAlwaysConcretize(vars symbolic.VarSet) {
	for v := range vars {
		p.AlwaysConcretize[v] = struct{}{}
	}
}

// RecordConcretizeAt adds ip to concretize_at.
func (p *Plugin) RecordConcretizeAt(ip uint64) {
	p.ConcretizeAt[ip] = struct{}{}
}

// SortedConcretizeAt is a deterministic view used by tests and logging.
func (p *Plugin) SortedConcretizeAt() []uint64 {
	out := make([]uint64, 0, len(p.ConcretizeAt))
	for ip := range p.ConcretizeAt {
		out = append(out, ip)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
