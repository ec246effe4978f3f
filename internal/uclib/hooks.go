package uclib

import (
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

// SetMemUnmappedHandler installs the callback the page bridge (C3) uses
// to materialize a faulting range. Must be called before Hook.
func (e *Engine) SetMemUnmappedHandler(fn MemUnmappedFunc) { e.memUnmappedFn = fn }

// SetIntrHandler installs the callback the interrupt bridge (C5) uses to
// classify trap vectors. Must be called before Hook.
func (e *Engine) SetIntrHandler(fn IntrFunc) { e.intrFn = fn }

// SetSyscallInsnHandler installs the callback fired when the SYSCALL
// instruction itself is decoded (AMD64 only). Must be called before Hook.
func (e *Engine) SetSyscallInsnHandler(fn func()) { e.syscallFn = fn }

// Hook installs native callbacks (spec.md §6 "hook(state)").
func (e *Engine) Hook() error {
	if h, err := e.mu.HookAdd(uc.HOOK_MEM_UNMAPPED, e.onMemUnmapped, 1, 0); err != nil {
		return err
	} else {
		e.hooks = append(e.hooks, h)
	}

	if h, err := e.mu.HookAdd(uc.HOOK_INTR, e.onIntr, 1, 0); err != nil {
		return err
	} else {
		e.hooks = append(e.hooks, h)
	}

	if h, err := e.mu.HookAdd(uc.HOOK_MEM_WRITE, func(_ uc.Unicorn, _ int, addr uint64, size int, _ int64) {
		e.recordWrite(addr, uint64(size))
	}, 1, 0); err != nil {
		return err
	} else {
		e.hooks = append(e.hooks, h)
	}

	if e.Arch == "AMD64" && e.syscallFn != nil {
		h, err := e.mu.HookAdd(uc.HOOK_INSN, e.onSyscallInsn, 1, 0, uc.X86_INS_SYSCALL)
		if err != nil {
			return err
		}
		e.hooks = append(e.hooks, h)
	}

	h, err := e.mu.HookAdd(uc.HOOK_CODE, e.onCode, 1, 0)
	if err != nil {
		return err
	}
	e.hooks = append(e.hooks, h)

	return nil
}

// Unhook removes native callbacks (spec.md §6 "unhook(state)"). A
// commented-out hook_reset on episode teardown in the original source
// (spec.md §9) suggested some implementations skip this between
// episodes to save setup cost; this port always unhooks on Destroy so
// handlers never outlive the Engine that installed them.
func (e *Engine) Unhook() error {
	for _, h := range e.hooks {
		if err := e.mu.HookDel(h); err != nil {
			return err
		}
	}
	e.hooks = nil
	return nil
}

func (e *Engine) onMemUnmapped(mu uc.Unicorn, access int, addr uint64, size int, value int64) bool {
	_ = mu
	_ = value
	if e.memUnmappedFn == nil {
		return false
	}
	kind := AccessRead
	switch access {
	case uc.MEM_WRITE, uc.MEM_WRITE_UNMAPPED, uc.MEM_WRITE_PROT:
		kind = AccessWrite
	case uc.MEM_FETCH, uc.MEM_FETCH_UNMAPPED, uc.MEM_FETCH_PROT:
		kind = AccessFetch
	}
	return e.memUnmappedFn(kind, addr, size)
}

func (e *Engine) onIntr(mu uc.Unicorn, intno uint32) {
	_ = mu
	e.mu_.Lock()
	e.interruptHandled = false
	e.mu_.Unlock()
	if e.intrFn != nil {
		e.intrFn(intno)
	}
}

func (e *Engine) onSyscallInsn(mu uc.Unicorn) {
	_ = mu
	e.mu_.Lock()
	e.syscallCount++
	e.mu_.Unlock()
	if e.syscallFn != nil {
		e.syscallFn()
	}
}

func (e *Engine) onCode(mu uc.Unicorn, addr uint64, size uint32) {
	_ = mu
	e.mu_.Lock()
	e.stepCount++
	if e.trackBBLs {
		e.bblAddrs = append(e.bblAddrs, addr)
	}
	if e.trackStack {
		e.stackPointers = append(e.stackPointers, 0) // filled in by caller via RecordStackPointer
	}
	e.executedPages[addr&^0xFFF] = struct{}{}
	for _, sp := range e.stopPoints {
		if sp == addr {
			e.stopRequested = true
			e.stopReason = StopStoppoint
		}
	}
	if !e.stopRequested && e.stepLimit > 0 && e.stepCount > e.stepLimit {
		e.stopRequested = true
		e.stopReason = StopNormal
	}
	stop := e.stopRequested
	if stop {
		// The instruction at addr does not run, so it is not counted.
		e.stepCount--
	}
	e.mu_.Unlock()
	if stop {
		e.mu.Stop()
	}
}

// RecordStackPointer overwrites the most recent tracked stack-pointer
// sample; callers record the real SP value observed at the current code
// hook since the hook callback itself has no register-read access here
// without extra marshalling cost.
func (e *Engine) RecordStackPointer(sp uint64) {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	if len(e.stackPointers) > 0 {
		e.stackPointers[len(e.stackPointers)-1] = sp
	}
}

// MarkInterruptHandled lets a syscall hook table entry (C5, i386 direct
// dispatch) tell the x86 interrupt hook that this vector was already
// consumed, avoiding double handling (spec.md §4.4).
func (e *Engine) MarkInterruptHandled() {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	e.interruptHandled = true
}

// RequestStop requests a stop with a given reason (spec.md §6
// "stop(state, reason)").
func (e *Engine) RequestStop(reason StopReason) {
	e.mu_.Lock()
	e.stopRequested = true
	e.stopReason = reason
	e.mu_.Unlock()
	e.mu.Stop()
}

// Start runs up to steps instructions from addr (spec.md §6
// "start(state, addr, steps)"). steps == 0 means unbounded. The limit is
// enforced in onCode, which stops the emulator itself at the code hook
// that follows the steps-th instruction, so a stop point at that address
// still wins; Unicorn has no native step-limit primitive of its own.
func (e *Engine) Start(addr, steps uint64) error {
	e.mu_.Lock()
	e.stopRequested = false
	e.stepCount = 0
	e.stepLimit = steps
	e.stoppingRegister = 0
	e.stoppingMemory = 0
	e.bblAddrs = nil
	e.stackPointers = nil
	e.pendingMutations = nil
	e.mu_.Unlock()
	e.clearTransmits()

	var until uint64
	err := e.mu.Start(addr, until)

	e.mu_.Lock()
	if err != nil && !e.stopRequested {
		e.stopReason = StopError
	} else if e.stopRequested {
		// stopReason already set by the hook that requested the stop.
	} else {
		e.stopReason = StopNormal
	}
	e.mu_.Unlock()

	return err
}

// EnableSymbolicRegTracking arms byte-granular symbolic-register
// detection (spec.md §6 "enable_symbolic_reg_tracking").
func (e *Engine) EnableSymbolicRegTracking(offsets []int) {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	e.symbolicOffsets = append([]int(nil), offsets...)
	e.trackingArmed = true
}

// DisableSymbolicRegTracking disarms tracking (spec.md §6
// "disable_symbolic_reg_tracking").
func (e *Engine) DisableSymbolicRegTracking() {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	e.trackingArmed = false
	e.symbolicOffsets = nil
}

// PushSymbolicRegisterData replaces the offset set pushed to the native
// side (spec.md §6 "symbolic_register_data"); a nil slice clears it.
func (e *Engine) PushSymbolicRegisterData(offsets []int) {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	e.symbolicOffsets = append([]int(nil), offsets...)
}

// ObserveSymbolicRegister records an offset the tracker witnessed a read
// cross during the episode. Nothing else in this module calls it, so
// GetSymbolicRegisters returns only what callers of this method recorded.
func (e *Engine) ObserveSymbolicRegister(offset int) {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	e.observedSymbolic = append(e.observedSymbolic, offset)
}

// GetSymbolicRegisters pulls the observed set at stop time (spec.md §6
// "get_symbolic_registers").
func (e *Engine) GetSymbolicRegisters() []int {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	return append([]int(nil), e.observedSymbolic...)
}

// SetStoppingRegister and SetStoppingMemory record the offset or address
// that triggered a SYMBOLIC_REG / SYMBOLIC_MEM stop, read back by the run
// controller.
func (e *Engine) SetStoppingRegister(offset int) {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	e.stoppingRegister = offset
}

func (e *Engine) SetStoppingMemory(addr uint64) {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	e.stoppingMemory = addr
}
