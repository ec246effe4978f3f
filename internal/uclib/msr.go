package uclib

import uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

// IA32_FS_BASE and IA32_GS_BASE MSR numbers, used by the AMD64 register
// marshaller to restore the segment bases Unicorn does not expose as
// ordinary registers.
const (
	MsrFSBase = 0xC0000100
	MsrGSBase = 0xC0000101
)

// trampolineBase is a scratch address assumed never to collide with a
// real mapping; ReadMSR/WriteMSR map, use, and unmap it per call.
const trampolineBase = 0x100b000000

// ReadMSR reads a model-specific register by executing a one-instruction
// RDMSR trampoline, mirroring the original Python bridge: Unicorn's
// bindings expose no direct MSR accessor, so the only portable way to
// read one is to run the instruction.
func (e *Engine) ReadMSR(msr uint32) (uint64, error) {
	code := []byte{0x0f, 0x32} // rdmsr
	if err := e.mu.MemMap(trampolineBase, 0x1000); err != nil {
		return 0, err
	}
	defer e.mu.MemUnmap(trampolineBase, 0x1000)

	if err := e.mu.MemWrite(trampolineBase, code); err != nil {
		return 0, err
	}
	if err := e.mu.RegWrite(uc.X86_REG_RCX, uint64(msr)); err != nil {
		return 0, err
	}
	if err := e.mu.Start(trampolineBase, trampolineBase+uint64(len(code))); err != nil {
		return 0, err
	}
	lo, err := e.mu.RegRead(uc.X86_REG_RAX)
	if err != nil {
		return 0, err
	}
	hi, err := e.mu.RegRead(uc.X86_REG_RDX)
	if err != nil {
		return 0, err
	}
	return (hi << 32) | (lo & 0xFFFFFFFF), nil
}

// WriteMSR writes a model-specific register via a one-instruction WRMSR
// trampoline.
func (e *Engine) WriteMSR(msr uint32, val uint64) error {
	code := []byte{0x0f, 0x30} // wrmsr
	if err := e.mu.MemMap(trampolineBase, 0x1000); err != nil {
		return err
	}
	defer e.mu.MemUnmap(trampolineBase, 0x1000)

	if err := e.mu.MemWrite(trampolineBase, code); err != nil {
		return err
	}
	if err := e.mu.RegWrite(uc.X86_REG_RCX, uint64(msr)); err != nil {
		return err
	}
	if err := e.mu.RegWrite(uc.X86_REG_RAX, val&0xFFFFFFFF); err != nil {
		return err
	}
	if err := e.mu.RegWrite(uc.X86_REG_RDX, val>>32); err != nil {
		return err
	}
	return e.mu.Start(trampolineBase, trampolineBase+uint64(len(code)))
}
