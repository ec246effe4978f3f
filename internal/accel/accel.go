// Package accel is the accelerator's external facade (spec.md §6): the
// small surface a symbolic executor drives one episode through — Setup,
// Start, Finish, Destroy — plus the maintenance calls (UncachePage,
// SetStops, SetTracking) that can be issued between episodes. Everything
// under internal/accel/* is wiring reachable only through this package
// or through internal/accel/plugin directly (for state-plugin duties).
package accel

import (
	"github.com/zboralski/galago/internal/accel/classify"
	"github.com/zboralski/galago/internal/accel/plugin"
	"github.com/zboralski/galago/internal/accel/pool"
	"github.com/zboralski/galago/internal/accel/runctl"
	"github.com/zboralski/galago/internal/symbolic"
	"github.com/zboralski/galago/internal/uclib"
)

// Episode binds one symbolic state to its accelerator plugin and drives
// it through the run controller. Callers construct one per acceleration
// attempt; the underlying native handle is pooled across episodes that
// share an AffinityToken.
type Episode struct {
	ctl *runctl.Controller
}

// Config carries the knobs that do not live on the host state's own
// option set: which thread owns the native handle, how symbolic values
// get classified at concretize_at checkpoints, and the CGC transmit
// model wiring (spec.md §4.7 "setup").
type Config struct {
	Token        pool.AffinityToken
	Solver       symbolic.Solver
	Checker      classify.ConcretizeAtChecker
	TestingMode  bool
	CGCModel     bool
	TransmitAddr uint64
}

// New prepares an Episode for state, under plugin p, without running
// any native code yet. Call Setup next.
func New(state symbolic.State, p *plugin.Plugin, cfg Config) *Episode {
	return &Episode{ctl: &runctl.Controller{
		Token:        cfg.Token,
		State:        state,
		Plugin:       p,
		Solver:       cfg.Solver,
		Checker:      cfg.Checker,
		TestingMode:  cfg.TestingMode,
		CGCModel:     cfg.CGCModel,
		TransmitAddr: cfg.TransmitAddr,
	}}
}

// Available reports whether the native emulator library is usable at
// all on this process (spec.md §7 "Native library unavailable").
func Available() bool { return uclib.Available() }

// Setup validates architecture support, pushes registers, and arms the
// page/interrupt bridges (spec.md §4.7 phase 1).
func (e *Episode) Setup() error { return e.ctl.Setup() }

// CheckRegisterRoundTrip re-ingresses and immediately egresses the
// state's registers with no instructions run in between, returning the
// first error either step reports; register values are not compared. A
// debug check callers run after Setup, not part of the normal episode
// lifecycle.
func (e *Episode) CheckRegisterRoundTrip() error { return e.ctl.CheckRegisterRoundTrip() }

// Start runs up to steps instructions (0 = unbounded; the plugin's
// MaxSteps is not applied here) from the state's current instruction
// pointer (spec.md §4.7 phase 2).
func (e *Episode) Start(steps uint64) error { return e.ctl.Start(steps) }

// Finish pulls registers back out, replays mutations and transmits, and
// updates cooldowns (spec.md §4.7 phase 3).
func (e *Episode) Finish() (runctl.Result, error) { return e.ctl.Finish() }

// Destroy tears down native hooks and, per I4, discards the pooled
// handle entirely unless the episode stopped cleanly (spec.md §4.7
// phase 4).
func (e *Episode) Destroy() error { return e.ctl.Destroy() }

// UncachePage queues a cache_page eviction on p, applied at the start of
// the next episode run with that plugin (spec.md §6 "uncache_page"). Safe to
// call between episodes since it only mutates the plugin's pending list.
func UncachePage(p *plugin.Plugin, addr uint64) {
	p.UncachePages = append(p.UncachePages, addr)
}

// SetStops installs stop-point addresses on token's currently pooled
// handle, if one exists yet (spec.md §6 "set_stops"). A handle that
// hasn't been acquired yet picks up stop points on its first Setup via
// whatever the caller wires into the page/interrupt bridges; this call
// only affects an already-live handle.
func SetStops(token pool.AffinityToken, addrs []uint64) error {
	h, ok := pool.Peek(token)
	if !ok {
		return nil
	}
	return h.Engine.SetStops(addrs)
}

// SetTracking toggles optional trace collection on token's currently
// pooled handle, if one exists (spec.md §6 "set_tracking").
func SetTracking(token pool.AffinityToken, bbls, stack bool) {
	h, ok := pool.Peek(token)
	if !ok {
		return
	}
	h.Engine.SetTracking(bbls, stack)
}
