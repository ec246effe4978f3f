package symbolic

// Registers is the symbolic register file. Register identity is an
// architecture-specific integer offset into the file (matching the
// native emulator's own register numbering, e.g. Unicorn's X86_REG_*
// constants) rather than a name, so C4 can address both worlds with the
// same key.
type Registers interface {
	// Read returns the symbolic value currently stored at reg.
	Read(reg int) (Value, error)
	// Write stores a concrete value at reg.
	Write(reg int, val uint64) error
	// WriteSymbolic preserves a symbolic value at reg without
	// concretizing it (used when sym_regs_support is enabled and the
	// caller keeps tracking it instead of resolving it).
	WriteSymbolic(reg int, val Value) error
	// Bytes returns the raw per-byte Values backing reg, used by the
	// symbolic-offset scan in §4.5 step 2. n is the register's natural
	// width in bytes.
	Bytes(reg int, n int) ([]Value, error)
}

// Options is the symbolic state's option set, a simple boolean flag
// bag. The flag names match spec.md verbatim.
type Options interface {
	Has(name string) bool
}

// FlagSet is a trivial map-backed Options implementation, convenient for
// tests and for the CLI demo driver.
type FlagSet map[string]bool

func (f FlagSet) Has(name string) bool { return f[name] }

// Known option names (spec.md §4.2-§4.7).
const (
	OptAggressiveConcretization = "aggressive_concretization"
	OptSymRegsSupport           = "sym_regs_support"
	OptZeropageGuard            = "zeropage_guard"
	OptEnableNX                 = "enable_nx"
	OptStrictPageAccess         = "strict_page_access"
	OptCGCZeroFill              = "cgc_zero_fill"
	OptThresholdConcretization  = "threshold_concretization"
	OptTransmitSyscall          = "unicorn_handle_transmit_syscall"
)
