// Package pagebridge implements the Page Bridge (C3, spec.md §4.3): the
// lazy page-fault handler that materializes a range of symbolic memory
// into the native emulator on first access.
package pagebridge

import (
	"sort"

	"github.com/zboralski/galago/internal/accel/classify"
	"github.com/zboralski/galago/internal/accel/errs"
	"github.com/zboralski/galago/internal/accel/plugin"
	"github.com/zboralski/galago/internal/symbolic"
	"github.com/zboralski/galago/internal/uclib"
)

const pageSize = 4096
const widePageSize = 64 * 1024

// Descriptor is the ephemeral per-fault materialization result (spec.md
// §3 "Page Descriptor").
type Descriptor struct {
	Start, Length uint64
	Perm          symbolic.Perm
	Content       []byte
	Taint         []byte // nil when the range is fully concrete (I2a)
}

// Bridge wires the page bridge to one episode's memory, solver, options
// and plugin policy.
type Bridge struct {
	Memory  symbolic.Memory
	Solver  symbolic.Solver
	Opts    symbolic.Options
	Plugin  *plugin.Plugin
	Engine  *uclib.Engine
	IP      func() uint64
	Checker classify.ConcretizeAtChecker

	MappedCount int
}

// OnUnmapped is the callback registered against uclib.HOOK_MEM_UNMAPPED.
// It returns true when the fault was resolved and the faulting access
// should be retried by the emulator.
func (b *Bridge) OnUnmapped(kind uclib.AccessKind, address uint64, size int) bool {
	outcome, err := b.attempt(kind, address, uint64(size), true)
	if outcome == outcomeRetryNarrow {
		outcome, err = b.attempt(kind, address, uint64(size), false)
	}
	_ = err
	return outcome == outcomeHandled
}

type faultOutcome int

const (
	outcomeHandled faultOutcome = iota
	outcomeRetryNarrow
	outcomeStopped
)

func (b *Bridge) attempt(kind uclib.AccessKind, address, size uint64, wide bool) (faultOutcome, error) {
	start, end := align(address, size, wide)

	if b.Opts.Has(symbolic.OptZeropageGuard) {
		if start == 0 || end < start {
			b.Engine.RequestStop(uclib.StopZeroPage)
			return outcomeStopped, errs.ErrAccessingZeroPage
		}
	}

	perm, allMissing, mixed, err := b.resolvePermissions(start, end)
	if err != nil {
		return outcomeRetryNarrow, err
	}

	if allMissing {
		switch {
		case b.Opts.Has(symbolic.OptStrictPageAccess):
			b.Engine.RequestStop(uclib.StopSegfault)
			return outcomeStopped, errs.ErrAccessingZeroPage
		case kind == uclib.AccessFetch:
			b.Engine.RequestStop(uclib.StopExecNone)
			return outcomeStopped, errs.ErrFetchingZeroPage
		default:
			if err := b.Memory.MapRegion(start, end-start, symbolic.PermRW); err != nil {
				b.Engine.RequestStop(uclib.StopSegfault)
				return outcomeStopped, err
			}
			perm = symbolic.PermRW
		}
	} else if mixed {
		return outcomeRetryNarrow, errs.ErrMixedPermissions
	}

	desc, err := b.materialize(start, end, perm, wide)
	if err != nil {
		b.Engine.RequestStop(uclib.StopSegfault)
		return outcomeStopped, err
	}

	if err := b.install(desc); err != nil {
		return outcomeRetryNarrow, err
	}
	return outcomeHandled, nil
}

// align applies the two alignment strategies of spec.md §4.3: the wide
// (64 KiB) first attempt amortizes page-in cost; the narrow (4 KiB)
// retry handles a wide range colliding with an existing mapping.
func align(address, size uint64, wide bool) (start, end uint64) {
	granularity := uint64(pageSize)
	if wide {
		granularity = widePageSize
	}
	start = address &^ (granularity - 1)
	end = (address + size + granularity - 1) &^ (granularity - 1)
	if end <= start {
		end = start + granularity
	}
	return start, end
}

// resolvePermissions walks the aligned range in 4 KiB steps (spec.md
// §4.3 "Permission resolution").
func (b *Bridge) resolvePermissions(start, end uint64) (perm symbolic.Perm, allMissing, mixed bool, err error) {
	var (
		seenPerm  symbolic.Perm
		havePerm  bool
		missing   int
		total     int
		anyMixed  bool
	)
	for addr := start; addr < end; addr += pageSize {
		total++
		p, sym, ok := b.Memory.Permission(addr)
		if !ok {
			missing++
			continue
		}
		if sym {
			p = symbolic.PermRWX
		} else if !b.Opts.Has(symbolic.OptEnableNX) {
			p |= symbolic.PermExec
		}
		if !havePerm {
			seenPerm = p
			havePerm = true
		} else if p != seenPerm {
			anyMixed = true
		}
	}
	if missing == total {
		return 0, true, false, nil
	}
	if missing > 0 || anyMixed {
		return 0, false, true, nil
	}
	return seenPerm, false, false, nil
}

// materialize loads overlapping memory objects and builds the content
// and taint buffers (spec.md §4.3 "Content and taint").
func (b *Bridge) materialize(start, end uint64, perm symbolic.Perm, wide bool) (Descriptor, error) {
	length := end - start
	objects, err := b.Memory.LoadObjects(start, end, wide)
	if err != nil {
		return Descriptor{}, err
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Start > objects[j].Start })

	content := make([]byte, length)
	taint := make([]byte, length)
	filled := make([]bool, length)
	hasTaint := false

	ip := uint64(0)
	if b.IP != nil {
		ip = b.IP()
	}

	for _, obj := range objects {
		for i, v := range obj.Bytes {
			addr := obj.Start + uint64(i)
			if addr < start || addr >= end {
				continue
			}
			off := addr - start
			if filled[off] {
				continue
			}
			filled[off] = true

			result, refused, err := classify.Classify(v, classify.FromMem, ip, b.Opts, b.Solver, b.Plugin, b.Checker)
			if err != nil {
				return Descriptor{}, err
			}
			if refused {
				taint[off] = 1
				hasTaint = true
				continue
			}
			if cv, ok := result.Concrete(); ok {
				content[off] = byte(cv)
			} else {
				taint[off] = 1
				hasTaint = true
			}
		}
	}

	// Fill gaps left by no object covering that byte.
	zeroFillGaps := b.Opts.Has(symbolic.OptCGCZeroFill)
	for off := uint64(0); off < length; off++ {
		if filled[off] {
			continue
		}
		if !zeroFillGaps {
			taint[off] = 1
			hasTaint = true
		}
	}

	var taintOut []byte
	if hasTaint {
		taintOut = taint
	}

	return Descriptor{Start: start, Length: length, Perm: perm, Content: content, Taint: taintOut}, nil
}

// install maps the materialized page (spec.md §4.3 "Installation"); a
// non-writable untainted page is also copied into the engine's page
// cache, but is still mapped so the retried access finds it.
func (b *Bridge) install(d Descriptor) error {
	writable := d.Perm&symbolic.PermWrite != 0
	if !writable && d.Taint == nil {
		b.Engine.CachePage(d.Start, d.Length, d.Content, false)
	}

	if err := b.Engine.MemMapProt(d.Start, d.Length, int(d.Perm)); err != nil {
		return err
	}
	if err := b.Engine.MemWrite(d.Start, d.Content); err != nil {
		return err
	}
	b.MappedCount++
	// TODO: Engine.Activate is a no-op and d.Taint is never retained
	// beyond this call. Once a real native symbolic-memory tracker is
	// wired in (out of scope per spec.md §1), this needs to push taint
	// across that boundary instead of discarding it here.
	return b.Engine.Activate(d.Start, d.Length, d.Taint)
}
