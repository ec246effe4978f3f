// Package interrupt implements the Interrupt Bridge (C5, spec.md §4.4):
// classifying trap vectors the native emulator raises (divide-by-zero,
// syscall, unhandled) into either a stop reason or an in-process
// syscall-hook dispatch.
package interrupt

import (
	"github.com/zboralski/galago/internal/accel/plugin"
	"github.com/zboralski/galago/internal/arch"
	"github.com/zboralski/galago/internal/symbolic"
	"github.com/zboralski/galago/internal/uclib"
)

// Bridge wires interrupt classification to one episode's engine, plugin
// and host state.
type Bridge struct {
	Cap    *arch.Capability
	Engine *uclib.Engine
	Plugin *plugin.Plugin
	State  symbolic.State

	// SetSyscallPC receives the post-instruction program counter at trap
	// time; the run controller stores it as ip_at_syscall, and the next
	// egress overwrites that value.
	SetSyscallPC func(uint64)

	TrapIP uint64
}

// OnIntr is installed against uclib.HOOK_INTR.
func (b *Bridge) OnIntr(intno uint32) {
	if b.Engine.IsInterruptHandled() {
		return
	}
	if pc, err := b.Engine.RegRead(b.Cap.PCReg); err == nil {
		b.TrapIP = pc
	}

	switch b.Cap.ID {
	case arch.AMD64:
		if intno == 0 {
			b.Engine.RequestStop(uclib.StopZeroDiv)
			return
		}
		b.Engine.RequestStop(uclib.StopError)

	case arch.X86:
		switch intno {
		case 0:
			b.Engine.RequestStop(uclib.StopZeroDiv)
		case 0x80:
			b.handleSyscall(true)
		default:
			b.Engine.RequestStop(uclib.StopError)
		}

	case arch.MIPS32:
		const excpSyscall = 17
		if intno == excpSyscall {
			b.handleSyscall(false)
		} else {
			b.Engine.RequestStop(uclib.StopError)
		}

	default:
		b.Engine.RequestStop(uclib.StopError)
	}
}

// OnSyscallInsn is installed against uclib.HOOK_INSN for AMD64's SYSCALL
// opcode, which raises no interrupt vector of its own.
func (b *Bridge) OnSyscallInsn() {
	if b.Engine.IsInterruptHandled() {
		return
	}
	b.handleSyscall(false)
}

// handleSyscall computes ip_at_syscall and either dispatches to an
// in-process syscall hook (i386 only, per spec.md §4.4) or requests a
// STOP_SYSCALL hand-off to the caller.
func (b *Bridge) handleSyscall(allowQuickTable bool) {
	pc, err := b.Engine.RegRead(b.Cap.PCReg)
	if err != nil {
		b.Engine.RequestStop(uclib.StopError)
		return
	}
	syscallPC := pc + b.Cap.SyscallPCAdjust
	if b.SetSyscallPC != nil {
		b.SetSyscallPC(syscallPC)
	}

	if allowQuickTable && b.Plugin.SyscallHooks != nil {
		sysno, err := b.Engine.RegRead(b.Cap.SyscallNumReg)
		if err == nil {
			if hook, ok := b.Plugin.SyscallHooks[int(sysno)]; ok {
				b.Engine.MarkInterruptHandled()
				if err := hook(b.State, int(sysno)); err != nil {
					b.Engine.RequestStop(uclib.StopError)
				}
				return
			}
		}
	}

	b.Engine.RequestStop(uclib.StopSyscall)
}
