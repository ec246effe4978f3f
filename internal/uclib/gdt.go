package uclib

import uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

// GDTBase is the address of the synthetic global descriptor table that
// SetupGDT writes for i386. The run controller maps this range for every
// architecture and excludes it from mutation replay (spec.md §4.7) since
// it is emulator bookkeeping, not guest-visible state.
const (
	GDTBase  = 0x1000
	GDTLimit = 0x1000
)

const (
	gdtAccessCode = 0xFA // present, ring3, code, executable, readable, accessed
	gdtAccessData = 0xF2 // present, ring3, data, writable, accessed
	gdtFlags      = 0xC  // 4KiB granularity, 32-bit
)

func encodeDescriptor(base, limit uint32, access byte) [8]byte {
	var d [8]byte
	d[0] = byte(limit)
	d[1] = byte(limit >> 8)
	d[2] = byte(base)
	d[3] = byte(base >> 8)
	d[4] = byte(base >> 16)
	d[5] = access
	d[6] = byte(limit>>16)&0x0F | gdtFlags<<4
	d[7] = byte(base >> 24)
	return d
}

// GDTSelectors is the set of selector values SetupGDT installs, to load
// into CS/DS/ES/SS/FS/GS.
type GDTSelectors struct {
	CS, DS, ES, SS, FS, GS uint16
}

// SetupGDT builds a flat descriptor table with FS/GS base descriptors
// carrying fsBase/gsBase, writes it at GDTBase (which the caller has
// already mapped), and points GDTR at it — the Go-native
// realization of the original bridge's generate_gdt()/setup_gdt() pair
// for architectures (i386) whose thread-local segment bases Unicorn has
// no register for.
func (e *Engine) SetupGDT(fsBase, gsBase uint32) (GDTSelectors, error) {
	table := make([]byte, 0, 48)
	table = append(table, make([]byte, 8)...) // null descriptor

	code := encodeDescriptor(0, 0xFFFFF, gdtAccessCode)
	data := encodeDescriptor(0, 0xFFFFF, gdtAccessData)
	fs := encodeDescriptor(fsBase, 0xFFFFF, gdtAccessData)
	gs := encodeDescriptor(gsBase, 0xFFFFF, gdtAccessData)
	table = append(table, code[:]...)
	table = append(table, data[:]...)
	table = append(table, fs[:]...)
	table = append(table, gs[:]...)

	// The caller (the run controller's setup phase) is responsible for
	// mapping [GDTBase, GDTBase+GDTLimit) once per episode; every
	// architecture gets this placeholder region regardless of whether
	// it populates it, so the mutation-replay exclusion range is always
	// backed by real memory.
	if err := e.mu.MemWrite(GDTBase, table); err != nil {
		return GDTSelectors{}, err
	}
	if err := e.mu.RegWriteX86Mmr(uc.X86_REG_GDTR, &uc.X86Mmr{Base: GDTBase, Limit: uint32(len(table) - 1)}); err != nil {
		return GDTSelectors{}, err
	}

	const rpl = 3
	sel := GDTSelectors{
		CS: 1<<3 | rpl,
		DS: 2<<3 | rpl,
		ES: 2<<3 | rpl,
		SS: 2<<3 | rpl,
		FS: 3<<3 | rpl,
		GS: 4<<3 | rpl,
	}
	if err := e.mu.RegWrite(uc.X86_REG_CS, uint64(sel.CS)); err != nil {
		return GDTSelectors{}, err
	}
	if err := e.mu.RegWrite(uc.X86_REG_DS, uint64(sel.DS)); err != nil {
		return GDTSelectors{}, err
	}
	if err := e.mu.RegWrite(uc.X86_REG_ES, uint64(sel.ES)); err != nil {
		return GDTSelectors{}, err
	}
	if err := e.mu.RegWrite(uc.X86_REG_SS, uint64(sel.SS)); err != nil {
		return GDTSelectors{}, err
	}
	if err := e.mu.RegWrite(uc.X86_REG_FS, uint64(sel.FS)); err != nil {
		return GDTSelectors{}, err
	}
	if err := e.mu.RegWrite(uc.X86_REG_GS, uint64(sel.GS)); err != nil {
		return GDTSelectors{}, err
	}
	return sel, nil
}
