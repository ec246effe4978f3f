// Package pool implements the Emulator Handle Pool (C1, spec.md §4.1):
// per-thread ownership of native emulator instances, their lifecycle and
// reuse rules. Go has no first-class thread-local storage, so "thread
// local" is realized here as a process-wide table keyed by an opaque,
// caller-supplied AffinityToken — typically one token per goroutine that
// has pinned itself to an OS thread with runtime.LockOSThread for the
// duration of an episode, matching spec.md §5's "runs synchronously on
// the thread driving a given symbolic state".
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/zboralski/galago/internal/accel/errs"
	"github.com/zboralski/galago/internal/accel/plugin"
	"github.com/zboralski/galago/internal/arch"
	"github.com/zboralski/galago/internal/uclib"
)

// AffinityToken identifies the logical owner of a Handle. Must be
// comparable. Two goroutines must never share a token.
type AffinityToken interface{}

// NewAffinityToken returns a token guaranteed distinct from every other
// token returned by this function.
func NewAffinityToken() AffinityToken {
	return new(struct{})
}

// Handle wraps a native emulator instance plus the bookkeeping spec.md
// §3 assigns to EmulatorHandle: mapped regions and hooks live inside
// Engine itself; Handle additionally remembers which architecture and
// cache-key lineage it is currently bound to and the last id stamped on
// it, so Acquire can decide reset vs. reconstruct vs. reuse.
type Handle struct {
	Engine   *uclib.Engine
	Arch     arch.ID
	CacheKey plugin.CacheKey
	ID       uint64
}

var (
	handles    sync.Map // AffinityToken -> *Handle
	tokenLocks sync.Map // AffinityToken -> *sync.Mutex

	globalCounter atomic.Uint64
)

// NextID issues a fresh id from the process-global monotonic counter
// (spec.md §5 "process-global, increments atomically").
func NextID() uint64 {
	return globalCounter.Add(1)
}

func lockFor(token AffinityToken) *sync.Mutex {
	l, _ := tokenLocks.LoadOrStore(token, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// Acquire returns the handle bound to token, applying spec.md §4.1's
// rules: construct if missing/arch-mismatched/cache-key-mismatched;
// otherwise, if the plugin's id does not match the handle's stamped id,
// reset (architectures that tolerate reuse) or reconstruct
// (architectures, like MIPS32, known to leak state across episodes).
// Every acquisition rotates a fresh id, stamping both p and the
// returned handle (P3: handle isolation is enforced because token
// identifies exactly one caller at a time via lockFor).
func Acquire(token AffinityToken, archID arch.ID, p *plugin.Plugin) (*Handle, error) {
	lock := lockFor(token)
	lock.Lock()
	defer lock.Unlock()

	capability, ok := arch.Lookup(archID)
	if !ok {
		return nil, errs.ErrUnsupportedArch
	}

	var h *Handle
	if v, ok := handles.Load(token); ok {
		h = v.(*Handle)
	}

	switch {
	case h == nil || h.Arch != archID || h.CacheKey != p.CacheKey:
		if h != nil {
			discardLocked(h)
		}
		eng, err := uclib.Alloc(capability, string(p.CacheKey))
		if err != nil {
			return nil, err
		}
		h = &Handle{Engine: eng, Arch: archID, CacheKey: p.CacheKey}
		handles.Store(token, h)

	case h.ID != p.InstanceID:
		if capability.ReuseAcrossEpisodes {
			if err := h.Engine.ResetMappings(); err != nil {
				return nil, err
			}
		} else {
			discardLocked(h)
			eng, err := uclib.Alloc(capability, string(p.CacheKey))
			if err != nil {
				return nil, err
			}
			h = &Handle{Engine: eng, Arch: archID, CacheKey: p.CacheKey}
			handles.Store(token, h)
		}
	}

	id := NextID()
	h.ID = id
	h.Engine.ID = id
	p.InstanceID = id
	return h, nil
}

// Discard tears down and forgets the handle bound to token (I4: called
// after any stop reason other than normal/stoppoint/symbolic-mem/
// symbolic-reg).
func Discard(token AffinityToken) {
	lock := lockFor(token)
	lock.Lock()
	defer lock.Unlock()
	if v, ok := handles.Load(token); ok {
		discardLocked(v.(*Handle))
		handles.Delete(token)
	}
}

func discardLocked(h *Handle) {
	_ = h.Engine.Unhook()
	_ = h.Engine.Dealloc()
}

// Peek returns the handle currently bound to token without acquiring it,
// for tests and introspection.
func Peek(token AffinityToken) (*Handle, bool) {
	v, ok := handles.Load(token)
	if !ok {
		return nil, false
	}
	return v.(*Handle), true
}
