package runctl

import (
	"testing"

	"github.com/zboralski/galago/internal/accel/classify"
	"github.com/zboralski/galago/internal/accel/plugin"
	"github.com/zboralski/galago/internal/accel/pool"
	"github.com/zboralski/galago/internal/arch"
	"github.com/zboralski/galago/internal/symbolic"
	"github.com/zboralski/galago/internal/symbolic/fake"
	"github.com/zboralski/galago/internal/uclib"
)

func requireNative(t *testing.T) {
	t.Helper()
	if !uclib.Available() {
		t.Skip("native Unicorn library unavailable")
	}
}

// newNopSledController builds a controller over a NOP sled at
// codeBase, stopped deterministically after n bytes/instructions via a
// stop point rather than relying on an unbounded run.
func newNopSledController(t *testing.T, n uint64) (*Controller, *fake.State) {
	t.Helper()
	const codeBase = 0x400000

	cp, ok := arch.Lookup(arch.AMD64)
	if !ok {
		t.Fatal("AMD64 capability not registered")
	}

	state := fake.NewState(string(arch.AMD64), cp.PCReg, nil)
	if err := state.Mem.MapRegion(codeBase, 0x1000, symbolic.PermRead|symbolic.PermWrite|symbolic.PermExec); err != nil {
		t.Fatalf("map region: %v", err)
	}
	nops := make([]byte, 0x1000)
	for i := range nops {
		nops[i] = 0x90
	}
	if err := state.Mem.WriteBytes(codeBase, nops); err != nil {
		t.Fatalf("write code: %v", err)
	}
	if err := state.Regs.Write(cp.PCReg, codeBase); err != nil {
		t.Fatalf("write pc: %v", err)
	}
	if err := state.Regs.Write(cp.SPReg, codeBase+0x800); err != nil {
		t.Fatalf("write sp: %v", err)
	}

	p := plugin.New("runctl-test", plugin.CooldownSettings{NonUnicornBlocks: 1}, plugin.Thresholds{}, 0)
	token := pool.NewAffinityToken()

	ctl := &Controller{
		Token:       token,
		State:       state,
		Plugin:      p,
		Solver:      state.Slv,
		Checker:     classify.StaticSet{},
		TestingMode: true,
	}
	if err := ctl.Setup(); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := ctl.handle.Engine.SetStops([]uint64{codeBase + n}); err != nil {
		t.Fatalf("set stops: %v", err)
	}
	t.Cleanup(func() { pool.Discard(token) })
	return ctl, state
}

func TestRunControllerLifecycleStopsCleanly(t *testing.T) {
	requireNative(t)
	ctl, _ := newNopSledController(t, 16)

	if err := ctl.Start(16); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := ctl.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if res.StopReason != uclib.StopStoppoint {
		t.Fatalf("expected StopStoppoint, got %s", res.StopReason)
	}
	if res.Steps == 0 {
		t.Fatal("expected a nonzero step count")
	}
	if err := ctl.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
}

func TestCheckRegisterRoundTripSucceedsBeforeStart(t *testing.T) {
	requireNative(t)
	ctl, _ := newNopSledController(t, 16)
	defer ctl.Destroy()

	if err := ctl.CheckRegisterRoundTrip(); err != nil {
		t.Fatalf("expected a clean round trip right after setup, got: %v", err)
	}
}

func TestRunControllerStoppointCooldownClearsNonUnicornBlocks(t *testing.T) {
	requireNative(t)
	ctl, _ := newNopSledController(t, 8)
	ctl.Plugin.Live.NonUnicornBlocks = 5
	ctl.Plugin.Settings.StopPoint = 3

	if err := ctl.Start(8); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := ctl.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if ctl.Plugin.Live.NonUnicornBlocks != 0 {
		t.Fatalf("expected stoppoint stop to clear nonunicorn-blocks cooldown, got %d", ctl.Plugin.Live.NonUnicornBlocks)
	}
	if ctl.Plugin.Live.StopPoint == 0 {
		t.Fatal("expected stoppoint stop to engage its own cooldown")
	}
	ctl.Destroy()
}
