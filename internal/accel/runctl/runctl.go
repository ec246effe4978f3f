// Package runctl implements the Run Controller (C7, spec.md §4.7): the
// four-phase lifecycle — setup, start, finish, destroy — that drives one
// acceleration episode end to end, gluing together the register
// marshaller (C4), page bridge (C3), interrupt bridge (C5) and
// concretization policy (C6) around a single pool.Handle.
package runctl

import (
	"fmt"
	"time"

	"github.com/zboralski/galago/internal/accel/classify"
	"github.com/zboralski/galago/internal/accel/errs"
	"github.com/zboralski/galago/internal/accel/interrupt"
	"github.com/zboralski/galago/internal/accel/pagebridge"
	"github.com/zboralski/galago/internal/accel/plugin"
	"github.com/zboralski/galago/internal/accel/policy"
	"github.com/zboralski/galago/internal/accel/pool"
	"github.com/zboralski/galago/internal/accel/regs"
	"github.com/zboralski/galago/internal/arch"
	"github.com/zboralski/galago/internal/symbolic"
	"github.com/zboralski/galago/internal/uclib"
)

// minBlocksPerSec is the throughput floor below which an otherwise quiet
// episode still earns a nonunicorn-blocks cooldown (spec.md §4.7).
const minBlocksPerSec = 10.0

// Trace is the optional introspection data collected at finish (spec.md
// §4.7 "Collect optional trace data").
type Trace struct {
	BBLAddrs      []uint64
	StackPointers []uint64
	SyscallCount  uint64
	ExecutedPages []uint64
}

// Result is what Finish reports back to the caller driving the episode.
type Result struct {
	StopReason     uclib.StopReason
	Steps          uint64
	Elapsed        time.Duration
	StoppingOffset int
	StoppingAddr   uint64
	IPAtSyscall    uint64
	Trace          Trace
}

// Controller drives one acceleration episode: Setup, Start, Finish,
// Destroy, in that order, against one pool.AffinityToken.
type Controller struct {
	Token       pool.AffinityToken
	State       symbolic.State
	Plugin      *plugin.Plugin
	Solver      symbolic.Solver
	Checker     classify.ConcretizeAtChecker
	TestingMode bool

	// TransmitAddr is the modeled transmit-syscall target address,
	// registered with the native side when both
	// symbolic.OptTransmitSyscall and CGCModel hold (spec.md §4.7
	// "setup").
	TransmitAddr uint64
	// CGCModel reports whether a CGC-model plugin is attached to State.
	CGCModel bool

	cap        *arch.Capability
	handle     *pool.Handle
	regs       *regs.Marshaller
	pageBridge *pagebridge.Bridge
	intr       *interrupt.Bridge

	ipAtSyscall uint64
	startTime   time.Time
	elapsed     time.Duration
}

func (c *Controller) ip() uint64 {
	v, err := c.State.IP()
	if err != nil {
		return 0
	}
	cv, ok := v.Concrete()
	if !ok {
		return 0
	}
	return cv
}

// Setup is phase 1 (spec.md §4.7 "setup").
func (c *Controller) Setup() error {
	cp, ok := arch.Lookup(arch.ID(c.State.Arch()))
	if !ok {
		return errs.ErrUnsupportedArch
	}
	c.cap = cp

	handle, err := pool.Acquire(c.Token, cp.ID, c.Plugin)
	if err != nil {
		return err
	}
	c.handle = handle

	// A fake GDT region backs every architecture, not just the ones
	// that populate it, so finish's mutation-exclusion range always
	// reads against real emulator memory.
	if err := handle.Engine.MemMap(uclib.GDTBase, uclib.GDTLimit); err != nil {
		return fmt.Errorf("runctl: map gdt region: %w", err)
	}

	c.regs = regs.New(cp, handle.Engine, c.Plugin, c.Solver, c.State.Options(), c.Checker)
	c.regs.IP = c.ip
	c.regs.SetIPAtSyscall = func(pc uint64) { c.ipAtSyscall = pc }
	if err := c.regs.Ingress(c.State); err != nil {
		return fmt.Errorf("runctl: ingress: %w", err)
	}

	if c.State.Options().Has(symbolic.OptTransmitSyscall) && c.CGCModel {
		handle.Engine.SetTransmitSysno(2, c.TransmitAddr)
	}

	c.pageBridge = &pagebridge.Bridge{
		Memory:  c.State.Memory(),
		Solver:  c.Solver,
		Opts:    c.State.Options(),
		Plugin:  c.Plugin,
		Engine:  handle.Engine,
		IP:      c.ip,
		Checker: c.Checker,
	}
	// This mirrors regs.SetIPAtSyscall above; Egress always runs before
	// Finish reads c.ipAtSyscall, so its post-run recomputation is what
	// actually reaches Result, and this interrupt-time write only matters
	// for the window between the trap firing and Finish being called.
	c.intr = &interrupt.Bridge{
		Cap:          cp,
		Engine:       handle.Engine,
		Plugin:       c.Plugin,
		State:        c.State,
		SetSyscallPC: func(pc uint64) { c.ipAtSyscall = pc },
	}
	handle.Engine.SetMemUnmappedHandler(c.pageBridge.OnUnmapped)
	handle.Engine.SetIntrHandler(c.intr.OnIntr)
	if cp.ID == arch.AMD64 {
		handle.Engine.SetSyscallInsnHandler(c.intr.OnSyscallInsn)
	}
	if err := handle.Engine.Hook(); err != nil {
		return fmt.Errorf("runctl: hook: %w", err)
	}
	return nil
}

// CheckRegisterRoundTrip runs the register marshaller's ingress/egress
// round-trip check against the state as it stands right after Setup,
// before Start executes any instructions. Callers gate this behind a
// debug flag: it costs a full register push/pull and reports only errors
// returned by ingress or egress; it does not compare register values.
func (c *Controller) CheckRegisterRoundTrip() error {
	return c.regs.CheckRoundTrip(c.State)
}

// Start is phase 2 (spec.md §4.7 "start").
func (c *Controller) Start(steps uint64) error {
	for _, addr := range c.Plugin.UncachePages {
		c.handle.Engine.UncachePage(addr)
	}
	c.Plugin.UncachePages = nil

	addr := c.ip()
	c.startTime = time.Now()
	err := c.handle.Engine.Start(addr, steps)
	c.elapsed = time.Since(c.startTime)
	return err
}

// Finish is phase 3 (spec.md §4.7 "finish").
func (c *Controller) Finish() (Result, error) {
	reason := c.handle.Engine.StopReasonValue()
	if err := c.regs.Egress(c.State, reason == uclib.StopSyscall); err != nil {
		return Result{}, fmt.Errorf("runctl: egress: %w", err)
	}
	steps := c.handle.Engine.Step()

	res := Result{StopReason: reason, Steps: steps, Elapsed: c.elapsed, IPAtSyscall: c.ipAtSyscall}

	switch reason {
	case uclib.StopSymbolicReg:
		offset := c.handle.Engine.StoppingRegister()
		res.StoppingOffset = offset
		if v, err := c.regs.ValueAtOffset(c.State, offset); err == nil {
			policy.Observe(c.Plugin, c.State.Options(), policy.FromReg, v.FreeVariables(), c.ip())
		}
	case uclib.StopSymbolicMem:
		addr := c.handle.Engine.StoppingMemory()
		res.StoppingAddr = addr
		if v, err := c.byteAtMemory(addr); err == nil {
			policy.Observe(c.Plugin, c.State.Options(), policy.FromMem, v.FreeVariables(), c.ip())
		}
	}

	if reason == uclib.StopNostart && steps > 0 {
		return res, errs.ErrInternalInvariant
	}

	c.handle.Engine.DisableSymbolicRegTracking()

	for _, mut := range c.handle.Engine.Sync() {
		if mut.Address >= uclib.GDTBase && mut.Address < uclib.GDTBase+uclib.GDTLimit {
			continue
		}
		data, err := c.handle.Engine.MemRead(mut.Address, mut.Length)
		if err != nil {
			return res, fmt.Errorf("runctl: read mutation: %w", err)
		}
		if err := c.State.Memory().WriteBytes(mut.Address, data); err != nil {
			return res, fmt.Errorf("runctl: replay mutation: %w", err)
		}
	}
	c.handle.Engine.Destroy()

	for i := 0; ; i++ {
		t, ok := c.handle.Engine.ProcessTransmit(i)
		if !ok {
			break
		}
		if _, err := c.State.Stdout().Write(t.Data); err != nil {
			return res, fmt.Errorf("runctl: transmit replay: %w", err)
		}
	}

	c.updateCooldowns(reason, steps)

	res.Trace = Trace{
		BBLAddrs:      c.handle.Engine.BBLAddrs(),
		StackPointers: c.handle.Engine.StackPointers(),
		SyscallCount:  c.handle.Engine.SyscallCount(),
		ExecutedPages: c.handle.Engine.ExecutedPages(),
	}

	c.Plugin.Steps += steps
	c.Plugin.LastStopReason = reason
	return res, nil
}

// byteAtMemory returns the symbolic value backing one byte of memory, by
// consulting the highest-priority overlapping object exactly as the page
// bridge does when materializing a range.
func (c *Controller) byteAtMemory(addr uint64) (symbolic.Value, error) {
	objs, err := c.State.Memory().LoadObjects(addr, addr+1, true)
	if err != nil {
		return nil, err
	}
	for _, o := range objs {
		if addr >= o.Start && addr < o.End() {
			return o.Bytes[addr-o.Start], nil
		}
	}
	return nil, fmt.Errorf("runctl: no object backing %#x", addr)
}

// updateCooldowns applies spec.md §4.7's stop-reason-driven cooldown
// table, plus the throughput penalty: a quiet episode (below 10
// blocks/sec) earns a nonunicorn-blocks cooldown even on an otherwise
// clean stop, unless TestingMode suppresses it.
func (c *Controller) updateCooldowns(reason uclib.StopReason, steps uint64) {
	settings := c.Plugin.Settings
	live := &c.Plugin.Live

	switch reason {
	case uclib.StopNormal, uclib.StopSyscall:
		live.NonUnicornBlocks = 0
	case uclib.StopStoppoint:
		live.NonUnicornBlocks = 0
		live.StopPoint = settings.StopPoint
	case uclib.StopSymbolicReg:
		live.SymbolicRegisters = settings.SymbolicRegisters
	case uclib.StopSymbolicMem:
		live.SymbolicMemory = settings.SymbolicMemory
	default:
		live.NonUnicornBlocks = settings.NonUnicornBlocks
	}

	if !c.TestingMode && c.elapsed > 0 {
		if float64(steps)/c.elapsed.Seconds() < minBlocksPerSec {
			live.NonUnicornBlocks = settings.NonUnicornBlocks
		}
	}
}

// Destroy is phase 4 (spec.md §4.7 "destroy").
func (c *Controller) Destroy() error {
	if err := c.handle.Engine.Unhook(); err != nil {
		return err
	}
	c.handle.Engine.Destroy()
	if err := c.handle.Engine.ResetMappings(); err != nil {
		return err
	}
	if !c.handle.Engine.StopReasonValue().Retained() {
		pool.Discard(c.Token)
	}
	return nil
}
