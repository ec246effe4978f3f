// Package arch holds per-architecture capability tables: register
// layouts and blacklists, condition-code ranges, PC/SP and syscall
// registers, x87 and segment-base registers. This replaces
// branchy architecture dispatch with a table of structs, one per
// architecture, as suggested by the re-architecture guidance in spec.md
// §9 ("Dynamic dispatch on architecture").
package arch

import uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

// ID identifies a supported architecture.
type ID string

const (
	AMD64  ID = "AMD64"
	X86    ID = "X86"
	MIPS32 ID = "MIPS32"
)

// RegSpec describes one architecture register: its native id (matching
// both the Unicorn constant and the offset used by symbolic.Registers),
// its byte width, and whether C4 must skip it entirely (segment
// registers, MMX aliases).
type RegSpec struct {
	Name      string
	UC        int // Unicorn register constant
	Bytes     int
	Blacklist bool
}

// CondCodeRange is a byte-offset range within the register file that C4
// must widen to "symbolic" as a whole whenever any byte inside it is
// symbolic (spec.md §4.5 step 2: "widening architecture-specific
// condition-code regions").
type CondCodeRange struct {
	Start, End int // offsets into the flattened register-file byte space
}

// Capability is the per-architecture table of everything C1-C5 branch
// on. One instance exists per supported ID, built once at package init
// and looked up by Lookup.
type Capability struct {
	ID ID

	UCArch int
	UCMode int

	// Registers lists every architecture register C4 marshals, in a
	// stable order. Blacklisted entries are skipped by ingress/egress
	// but still occupy a byte-offset slot for condition-code widening.
	Registers []RegSpec

	// CondCodeRanges are widened per spec.md §4.5 (X86 offsets 40-56;
	// AMD64 offsets 144-176).
	CondCodeRanges []CondCodeRange

	// PCReg / SPReg are the instruction- and stack-pointer register ids,
	// used by the run controller and page bridge.
	PCReg int
	SPReg int

	// SyscallPCAdjust is added to the saved syscall_pc to land past the
	// triggering instruction (+2 for x86 INT/SYSCALL, +4 for MIPS).
	SyscallPCAdjust uint64

	// SyscallNumReg is the register holding the syscall number at trap
	// time (rax/eax/v0).
	SyscallNumReg int

	// ReuseAcrossEpisodes is false for architectures known to leak
	// native state across instances (MIPS32), forcing C1 to reconstruct
	// rather than reset the emulator handle.
	ReuseAcrossEpisodes bool

	// HasX87 is true for architectures that marshal x87 FPU state
	// (§4.5); only X86 and AMD64 do.
	HasX87 bool

	// X87Stack lists the eight native ST0-ST7 register ids, in order,
	// when HasX87 is true. These never appear in Registers: they need
	// the 80-bit Float80 marshaling path, not the generic uint64 one.
	X87Stack []int

	// FPTagReg is the native FPU tag-word register id.
	FPTagReg int

	// FSReg / GSReg are the native segment register ids C4 reads
	// directly (bypassing the blacklist skip) to recover the guest's
	// thread-local segment bases at ingress. Zero on architectures with
	// no segment registers (MIPS32).
	FSReg, GSReg int

	// HasSegmentBases is true for architectures where ingress must push
	// FS/GS bases into the native side via MSR writes (AMD64) or a
	// synthetic GDT (X86).
	HasSegmentBases bool
}

var registry = map[ID]*Capability{}

func register(c *Capability) {
	registry[c.ID] = c
}

// Lookup returns the capability table for id, or (nil, false) if the
// architecture is unsupported — spec.md §7 "Unsupported architecture".
func Lookup(id ID) (*Capability, bool) {
	c, ok := registry[id]
	return c, ok
}

// unicornConstants is a tiny indirection so this package doesn't need to
// import the Unicorn binding's full constant surface in every file.
var unicornConstants = struct {
	archX86, archMIPS, archARM64   int
	mode32, mode64, modeMIPS32, le int
}{
	archX86:    uc.ARCH_X86,
	mode32:     uc.MODE_32,
	mode64:     uc.MODE_64,
	modeMIPS32: uc.MODE_MIPS32,
	le:         uc.MODE_LITTLE_ENDIAN,
	archMIPS:   uc.ARCH_MIPS,
}
