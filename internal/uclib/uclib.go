// Package uclib adapts github.com/unicorn-engine/unicorn's Go bindings to
// the C-ABI surface described in spec.md §6 (alloc/dealloc/hook/unhook/
// start/stop/sync/...). It is the module's only direct dependency on the
// native emulator engine; every other package in internal/accel talks to
// *uclib.Engine instead of the Unicorn bindings directly, grounded on how
// internal/emulator/emulator.go in the teacher repository wraps
// uc.Unicorn behind a small typed API.
package uclib

import (
	"fmt"
	"sync"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/zboralski/galago/internal/arch"
)

type pageRange struct {
	addr, size uint64
}

// Engine wraps one uc.Unicorn instance plus the bookkeeping spec.md's
// EmulatorHandle (C1) needs: mapped regions, installed hooks, the bound
// architecture and cache key, and the last-issued pool id. This is the
// Go-native analogue of the original Python Uniwrapper.
type Engine struct {
	mu uc.Unicorn

	Arch     arch.ID
	CacheKey string
	ID       uint64

	mu_ sync.Mutex // guards everything below

	mapped     map[pageRange]struct{}
	cachedPage map[uint64][]byte // cache_page fast path, keyed by page start
	hooks      []uc.Hook

	pendingMutations []Mutation

	transmits          []Transmit
	transmitSysno      int
	transmitAddr       uint64
	transmitConfigured bool

	stopRequested bool
	stopReason    StopReason
	stepCount     uint64
	stepLimit     uint64 // 0 = unbounded, set fresh by Start each run

	stoppingRegister int
	stoppingMemory   uint64

	interruptHandled bool

	bblAddrs      []uint64
	stackPointers []uint64
	syscallCount  uint64
	executedPages map[uint64]struct{}
	trackBBLs     bool
	trackStack    bool
	stopPoints    []uint64

	symbolicOffsets  []int
	trackingArmed    bool
	observedSymbolic []int

	memUnmappedFn MemUnmappedFunc
	intrFn        IntrFunc
	syscallFn     func()
}

// MemUnmappedFunc handles a page fault; it returns true if the range was
// successfully installed and execution should retry the faulting access.
type MemUnmappedFunc func(accessKind AccessKind, address uint64, size int) bool

// IntrFunc handles a CPU interrupt/trap vector.
type IntrFunc func(intno uint32)

// AccessKind distinguishes a read, write, or instruction fetch, matching
// spec.md §4.3's access_kind.
type AccessKind int

const (
	AccessRead AccessKind = iota
	AccessWrite
	AccessFetch
)

var libOK = true // flipped by the lazy probe in Available, see available.go

// Alloc binds a fresh engine to the given architecture and cache key
// (spec.md §6 "alloc(engine, cache_key)").
func Alloc(cap_ *arch.Capability, cacheKey string) (*Engine, error) {
	if !libOK {
		return nil, fmt.Errorf("uclib: native emulator library unavailable")
	}
	mu, err := uc.NewUnicorn(cap_.UCArch, cap_.UCMode)
	if err != nil {
		return nil, fmt.Errorf("uclib: create unicorn: %w", err)
	}
	return &Engine{
		mu:            mu,
		Arch:          cap_.ID,
		CacheKey:      cacheKey,
		mapped:        make(map[pageRange]struct{}),
		cachedPage:    make(map[uint64][]byte),
		executedPages: make(map[uint64]struct{}),
	}, nil
}

// Dealloc releases the underlying Unicorn instance (spec.md §6
// "dealloc(state)").
func (e *Engine) Dealloc() error {
	return e.mu.Close()
}

// MemMap maps addr/size with RWX permission, tracked for reset.
func (e *Engine) MemMap(addr, size uint64) error {
	if err := e.mu.MemMap(addr, size); err != nil {
		return err
	}
	e.mu_.Lock()
	e.mapped[pageRange{addr, size}] = struct{}{}
	e.mu_.Unlock()
	return nil
}

// MemMapProt maps addr/size with an explicit permission (spec.md §4.3
// "Installation").
func (e *Engine) MemMapProt(addr, size uint64, perm int) error {
	if err := e.mu.MemMapProt(addr, size, perm); err != nil {
		return err
	}
	e.mu_.Lock()
	e.mapped[pageRange{addr, size}] = struct{}{}
	e.mu_.Unlock()
	return nil
}

// MemUnmap removes a previously mapped range.
func (e *Engine) MemUnmap(addr, size uint64) error {
	if err := e.mu.MemUnmap(addr, size); err != nil {
		return err
	}
	e.mu_.Lock()
	delete(e.mapped, pageRange{addr, size})
	e.mu_.Unlock()
	return nil
}

// ResetMappings unmaps every tracked region (C1 "reset" path) and clears
// the cache_page store. Hook state is retained unless a caller also
// calls Unhook, per spec.md §4.1.
func (e *Engine) ResetMappings() error {
	e.mu_.Lock()
	ranges := make([]pageRange, 0, len(e.mapped))
	for r := range e.mapped {
		ranges = append(ranges, r)
	}
	e.mu_.Unlock()
	for _, r := range ranges {
		if err := e.MemUnmap(r.addr, r.size); err != nil {
			return err
		}
	}
	e.mu_.Lock()
	e.cachedPage = make(map[uint64][]byte)
	e.mu_.Unlock()
	return nil
}

// MemRead / MemWrite are thin passthroughs; MemWrite additionally records
// a mutation so Sync can report it (used by the page bridge). Guest stores
// executed by the emulator are recorded the same way by the memory-write
// hook that Hook installs.
func (e *Engine) MemRead(addr, size uint64) ([]byte, error) {
	return e.mu.MemRead(addr, size)
}

func (e *Engine) MemWrite(addr uint64, data []byte) error {
	if err := e.mu.MemWrite(addr, data); err != nil {
		return err
	}
	e.recordWrite(addr, uint64(len(data)))
	return nil
}

// RegRead / RegWrite delegate straight to the bound Unicorn registers.
func (e *Engine) RegRead(reg int) (uint64, error) { return e.mu.RegRead(reg) }
func (e *Engine) RegWrite(reg int, val uint64) error {
	return e.mu.RegWrite(reg, val)
}

// CachePage stores a copy of a non-writable untainted page in the
// native-side cache (spec.md §4.3 "Installation"). It does not map the
// page; the page bridge maps it live as well. Returns false if the page
// is writable or already cached with different content.
func (e *Engine) CachePage(addr, length uint64, data []byte, writable bool) bool {
	if writable {
		return false
	}
	e.mu_.Lock()
	defer e.mu_.Unlock()
	if existing, ok := e.cachedPage[addr]; ok {
		return string(existing) == string(data)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	e.cachedPage[addr] = cp
	return true
}

// UncachePage drops a single cached page (spec.md §6 "uncache_page").
func (e *Engine) UncachePage(addr uint64) {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	delete(e.cachedPage, addr)
}

// Activate registers (or clears, with a nil taint) a taint map for a
// mapped range (spec.md §6 "activate"). The Go port does not retain the
// taint map anywhere: Activate stores nothing and exists so the call site
// matches the C-ABI shape.
func (e *Engine) Activate(addr, length uint64, taint []byte) error {
	_ = addr
	_ = length
	_ = taint
	return nil
}

// SetStops installs stop points (spec.md §6 "set_stops").
func (e *Engine) SetStops(addrs []uint64) error {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	e.stopPoints = append([]uint64(nil), addrs...)
	return nil
}

// SetTracking enables optional trace collection (spec.md §6
// "set_tracking").
func (e *Engine) SetTracking(bbls, stack bool) {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	e.trackBBLs = bbls
	e.trackStack = stack
}

// IsInterruptHandled reports whether the last interrupt was already
// consumed by native code (spec.md §6 "is_interrupt_handled").
func (e *Engine) IsInterruptHandled() bool {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	return e.interruptHandled
}

// Step returns the instruction count executed in the last episode.
func (e *Engine) Step() uint64 {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	return e.stepCount
}

// StopReasonValue returns the stop reason recorded for the last episode.
func (e *Engine) StopReasonValue() StopReason {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	return e.stopReason
}

// StoppingRegister / StoppingMemory return the offset or address that
// triggered a SYMBOLIC_REG / SYMBOLIC_MEM stop.
func (e *Engine) StoppingRegister() int {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	return e.stoppingRegister
}

func (e *Engine) StoppingMemory() uint64 {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	return e.stoppingMemory
}

// BBLAddrs, StackPointers, SyscallCount, ExecutedPages are introspection
// accessors populated during the episode when tracking is enabled.
func (e *Engine) BBLAddrs() []uint64 {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	return append([]uint64(nil), e.bblAddrs...)
}

func (e *Engine) StackPointers() []uint64 {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	return append([]uint64(nil), e.stackPointers...)
}

func (e *Engine) SyscallCount() uint64 {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	return e.syscallCount
}

func (e *Engine) ExecutedPages() []uint64 {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	out := make([]uint64, 0, len(e.executedPages))
	for p := range e.executedPages {
		out = append(out, p)
	}
	return out
}
