package accel

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
	if !Available() {
		t.Skip("native Unicorn library unavailable")
	}
}

func TestEpisodeLifecycleEndToEnd(t *testing.T) {
	requireNative(t)

	const codeBase = 0x400000
	cp, _ := arch.Lookup(arch.AMD64)
	state := fake.NewState(string(arch.AMD64), cp.PCReg, nil)
	if err := state.Mem.MapRegion(codeBase, 0x1000, symbolic.PermRead|symbolic.PermWrite|symbolic.PermExec); err != nil {
		t.Fatalf("map region: %v", err)
	}
	nops := make([]byte, 0x100)
	for i := range nops {
		nops[i] = 0x90
	}
	if err := state.Mem.WriteBytes(codeBase, nops); err != nil {
		t.Fatalf("write code: %v", err)
	}
	if err := state.Regs.Write(cp.PCReg, codeBase); err != nil {
		t.Fatalf("write pc: %v", err)
	}

	p := plugin.New("accel-test", plugin.CooldownSettings{}, plugin.Thresholds{}, 0)
	token := pool.NewAffinityToken()
	defer pool.Discard(token)

	ep := New(state, p, Config{
		Token:       token,
		Solver:      state.Slv,
		Checker:     classify.StaticSet{},
		TestingMode: true,
	})
	if err := ep.Setup(); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := SetStops(token, []uint64{codeBase + 4}); err != nil {
		t.Fatalf("set stops: %v", err)
	}
	if err := ep.Start(4); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := ep.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if res.StopReason != uclib.StopStoppoint {
		t.Fatalf("expected StopStoppoint, got %s", res.StopReason)
	}
	if err := ep.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
}

func TestUncachePageQueuesOnPlugin(t *testing.T) {
	p := plugin.New("k", plugin.CooldownSettings{}, plugin.Thresholds{}, 0)
	UncachePage(p, 0x1000)
	UncachePage(p, 0x2000)
	if len(p.UncachePages) != 2 {
		t.Fatalf("expected two queued pages, got %d", len(p.UncachePages))
	}
}

func TestSetStopsWithoutHandleIsNoop(t *testing.T) {
	token := pool.NewAffinityToken()
	if err := SetStops(token, []uint64{0x1000}); err != nil {
		t.Fatalf("expected a no-op, got error: %v", err)
	}
}

func TestSetTrackingWithoutHandleIsNoop(t *testing.T) {
	token := pool.NewAffinityToken()
	SetTracking(token, true, true) // must not panic
}
