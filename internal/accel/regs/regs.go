// Package regs implements the Register Marshaller (C4, spec.md §4.5):
// moving register state between the host symbolic state and the native
// emulator at episode boundaries, including x87 extended-precision
// conversion and symbolic-register tracking.
package regs

import (
	"fmt"
	"sort"

	"github.com/zboralski/galago/internal/accel/classify"
	"github.com/zboralski/galago/internal/accel/errs"
	"github.com/zboralski/galago/internal/accel/plugin"
	"github.com/zboralski/galago/internal/arch"
	"github.com/zboralski/galago/internal/symbolic"
	"github.com/zboralski/galago/internal/uclib"
)

// Marshaller binds one episode's register traffic to a capability
// table, native engine, and classification policy.
type Marshaller struct {
	Cap     *arch.Capability
	Engine  *uclib.Engine
	Solver  symbolic.Solver
	Opts    symbolic.Options
	Plugin  *plugin.Plugin
	Checker classify.ConcretizeAtChecker
	IP      func() uint64

	// SetIPAtSyscall, if set, receives the adjusted program counter on
	// an egress following a syscall stop (spec.md §4.5 "ip_at_syscall").
	SetIPAtSyscall func(uint64)

	// snapshot holds, per native register id, the symbolic value left
	// in place at ingress because it could not be concretized. Egress
	// restores these after the generic concrete sync, so a register the
	// engine never touched is never silently replaced by a stale
	// concrete reading (spec.md §4.5 "snapshot-then-restore").
	snapshot map[int]symbolic.Value
}

// New returns a marshaller for one episode.
func New(cap *arch.Capability, engine *uclib.Engine, p *plugin.Plugin, solver symbolic.Solver, opts symbolic.Options, checker classify.ConcretizeAtChecker) *Marshaller {
	return &Marshaller{Cap: cap, Engine: engine, Plugin: p, Solver: solver, Opts: opts, Checker: checker}
}

// Ingress moves register state from the host state into the native
// engine (spec.md §4.5 "set_regs").
func (m *Marshaller) Ingress(state symbolic.State) error {
	ip := uint64(0)
	if m.IP != nil {
		ip = m.IP()
	}
	m.snapshot = make(map[int]symbolic.Value)

	for _, r := range m.Cap.Registers {
		if r.Blacklist {
			continue
		}
		v, err := state.Registers().Read(r.UC)
		if err != nil {
			return fmt.Errorf("regs: read %s: %w", r.Name, err)
		}
		result, refused, err := classify.Classify(v, classify.FromReg, ip, m.Opts, m.Solver, m.Plugin, m.Checker)
		if err != nil {
			return fmt.Errorf("regs: classify %s: %w", r.Name, err)
		}
		cv, ok := result.Concrete()
		if refused || !ok {
			if !m.Opts.Has(symbolic.OptSymRegsSupport) {
				return errs.ErrSymbolicRefused
			}
			m.snapshot[r.UC] = v
			continue
		}
		if err := m.Engine.RegWrite(r.UC, cv); err != nil {
			return fmt.Errorf("regs: write %s: %w", r.Name, err)
		}
	}

	if m.Cap.HasX87 {
		if err := m.ingressX87(state, ip); err != nil {
			return err
		}
	}

	if m.Cap.HasSegmentBases {
		if err := m.ingressSegmentBases(state); err != nil {
			return err
		}
	}

	if m.Opts.Has(symbolic.OptSymRegsSupport) {
		offsets, err := m.computeSymbolicOffsets(state)
		if err != nil {
			return err
		}
		m.Engine.EnableSymbolicRegTracking(offsets)
	} else {
		m.Engine.DisableSymbolicRegTracking()
	}
	return nil
}

// ingressX87 converts the eight ST registers to extended precision and
// writes a tag word marking every register valid — this port has no
// VEX-style per-register tag byte to consult, so unlike the original
// bridge it always treats a populated stack slot as valid rather than
// tracking emptiness across episodes.
func (m *Marshaller) ingressX87(state symbolic.State, ip uint64) error {
	for _, regID := range m.Cap.X87Stack {
		v, err := state.Registers().Read(regID)
		if err != nil {
			return fmt.Errorf("regs: read x87 reg: %w", err)
		}
		result, refused, err := classify.Classify(v, classify.FromReg, ip, m.Opts, m.Solver, m.Plugin, m.Checker)
		if err != nil {
			return err
		}
		cv, ok := result.Concrete()
		if refused || !ok {
			if !m.Opts.Has(symbolic.OptSymRegsSupport) {
				return errs.ErrSymbolicRefused
			}
			m.snapshot[regID] = v
			continue
		}
		f80 := DoubleBitsToFloat80(cv)
		if err := m.Engine.WriteX87(regID, f80.Mantissa, f80.Exponent); err != nil {
			return err
		}
	}
	return m.Engine.RegWrite(m.Cap.FPTagReg, 0)
}

// ingressSegmentBases pushes the guest's FS/GS thread-local bases into
// the native side (spec.md §4.5): AMD64 has real MSRs for this, while
// X86 has none and gets a synthetic flat GDT instead. Both registers
// are blacklisted in Cap.Registers, so this reads them directly rather
// than relying on the generic ingress loop.
func (m *Marshaller) ingressSegmentBases(state symbolic.State) error {
	fsVal, err := state.Registers().Read(m.Cap.FSReg)
	if err != nil {
		return fmt.Errorf("regs: read fs base: %w", err)
	}
	gsVal, err := state.Registers().Read(m.Cap.GSReg)
	if err != nil {
		return fmt.Errorf("regs: read gs base: %w", err)
	}
	fsBase, ok := fsVal.Concrete()
	if !ok {
		return errs.ErrSymbolicRefused
	}
	gsBase, ok := gsVal.Concrete()
	if !ok {
		return errs.ErrSymbolicRefused
	}

	switch m.Cap.ID {
	case arch.AMD64:
		if err := m.Engine.WriteMSR(uclib.MsrFSBase, fsBase); err != nil {
			return fmt.Errorf("regs: write fs base msr: %w", err)
		}
		if err := m.Engine.WriteMSR(uclib.MsrGSBase, gsBase); err != nil {
			return fmt.Errorf("regs: write gs base msr: %w", err)
		}
	case arch.X86:
		if _, err := m.Engine.SetupGDT(uint32(fsBase), uint32(gsBase)); err != nil {
			return fmt.Errorf("regs: setup gdt: %w", err)
		}
	}
	return nil
}

// Egress moves register state from the native engine back into the
// host state (spec.md §4.5 "get_regs"). isSyscall should be true when
// the episode stopped on a syscall, so ip_at_syscall can be derived.
func (m *Marshaller) Egress(state symbolic.State, isSyscall bool) error {
	for _, r := range m.Cap.Registers {
		if r.Blacklist {
			continue
		}
		cv, err := m.Engine.RegRead(r.UC)
		if err != nil {
			return fmt.Errorf("regs: read native %s: %w", r.Name, err)
		}
		if err := state.Registers().Write(r.UC, cv); err != nil {
			return fmt.Errorf("regs: write %s: %w", r.Name, err)
		}
	}

	if m.Cap.HasX87 {
		if err := m.egressX87(state); err != nil {
			return err
		}
	}

	if isSyscall && m.SetIPAtSyscall != nil {
		pc, err := m.Engine.RegRead(m.Cap.PCReg)
		if err != nil {
			return err
		}
		m.SetIPAtSyscall(pc - m.Cap.SyscallPCAdjust)
	}

	for reg, v := range m.snapshot {
		if err := state.Registers().WriteSymbolic(reg, v); err != nil {
			return fmt.Errorf("regs: restore symbolic reg: %w", err)
		}
	}
	return nil
}

func (m *Marshaller) egressX87(state symbolic.State) error {
	for _, regID := range m.Cap.X87Stack {
		if _, wasSymbolic := m.snapshot[regID]; wasSymbolic {
			continue
		}
		mantissa, exponent, err := m.Engine.ReadX87(regID)
		if err != nil {
			return err
		}
		bits := Float80ToDoubleBits(Float80{Mantissa: mantissa, Exponent: exponent})
		if err := state.Registers().Write(regID, bits); err != nil {
			return err
		}
	}
	return nil
}

// computeSymbolicOffsets builds the byte-offset set the native tracker
// should watch (spec.md §4.5 step 2): every byte backed by a
// non-concrete Value, widened so that if any byte inside a condition
// code region is symbolic the whole region is treated as symbolic.
func (m *Marshaller) computeSymbolicOffsets(state symbolic.State) ([]int, error) {
	set := make(map[int]bool)
	offset := 0
	for _, r := range m.Cap.Registers {
		if r.Blacklist {
			offset += r.Bytes
			continue
		}
		vals, err := state.Registers().Bytes(r.UC, r.Bytes)
		if err != nil {
			return nil, fmt.Errorf("regs: byte-scan %s: %w", r.Name, err)
		}
		for i, v := range vals {
			if _, ok := v.Concrete(); !ok {
				set[offset+i] = true
			}
		}
		offset += r.Bytes
	}

	for _, rng := range m.Cap.CondCodeRanges {
		hit := false
		for o := rng.Start; o < rng.End; o++ {
			if set[o] {
				hit = true
				break
			}
		}
		if hit {
			for o := rng.Start; o < rng.End; o++ {
				set[o] = true
			}
		}
	}

	out := make([]int, 0, len(set))
	for o := range set {
		out = append(out, o)
	}
	sort.Ints(out)
	return out, nil
}

// ValueAtOffset returns the symbolic value backing one byte of the
// flattened register file, keyed by the same offsets
// computeSymbolicOffsets produces. The run controller uses this to feed
// C6 the exact byte that triggered a symbolic-register stop.
func (m *Marshaller) ValueAtOffset(state symbolic.State, offset int) (symbolic.Value, error) {
	base := 0
	for _, r := range m.Cap.Registers {
		if offset >= base && offset < base+r.Bytes {
			vals, err := state.Registers().Bytes(r.UC, r.Bytes)
			if err != nil {
				return nil, err
			}
			return vals[offset-base], nil
		}
		base += r.Bytes
	}
	return nil, fmt.Errorf("regs: offset %d out of range", offset)
}

// CheckRoundTrip is a debug check (spec.md §9, gated behind a debug
// config flag by the caller): it runs ingress immediately followed by
// egress with no instructions executed in between and returns the first
// error either step reports. It does not compare register values.
func (m *Marshaller) CheckRoundTrip(state symbolic.State) error {
	if err := m.Ingress(state); err != nil {
		return fmt.Errorf("regs: round-trip ingress: %w", err)
	}
	if err := m.Egress(state, false); err != nil {
		return fmt.Errorf("regs: round-trip egress: %w", err)
	}
	return nil
}
