package pagebridge

import (
	"testing"

	"github.com/zboralski/galago/internal/accel/classify"
	"github.com/zboralski/galago/internal/accel/plugin"
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

func newBridge(t *testing.T) (*Bridge, *fake.Memory, *uclib.Engine) {
	t.Helper()
	cp, ok := arch.Lookup(arch.AMD64)
	if !ok {
		t.Fatal("AMD64 capability not registered")
	}
	eng, err := uclib.Alloc(cp, "pagebridge-test")
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	t.Cleanup(func() { _ = eng.Dealloc() })

	mem := fake.NewMemory()
	p := plugin.New("pagebridge-test", plugin.CooldownSettings{}, plugin.Thresholds{}, 0)
	b := &Bridge{
		Memory:  mem,
		Solver:  fake.NewSolver(nil),
		Opts:    symbolic.FlagSet{},
		Plugin:  p,
		Engine:  eng,
		IP:      func() uint64 { return 0 },
		Checker: classify.StaticSet{},
	}
	return b, mem, eng
}

func TestOnUnmappedMapsFreshZeroPageWhenAllMissing(t *testing.T) {
	requireNative(t)
	b, _, eng := newBridge(t)

	if !b.OnUnmapped(uclib.AccessRead, 0x500000, 8) {
		t.Fatal("expected fault to be handled")
	}
	if b.MappedCount == 0 {
		t.Fatal("expected a page to be mapped")
	}
	data, err := eng.MemRead(0x500000, 8)
	if err != nil {
		t.Fatalf("memread: %v", err)
	}
	for i, b := range data {
		if b != 0 {
			t.Fatalf("expected zero-filled page, byte %d = %#x", i, b)
		}
	}
}

func TestOnUnmappedMaterializesConcreteBackedContent(t *testing.T) {
	requireNative(t)
	b, mem, eng := newBridge(t)

	if err := mem.MapRegion(0x600000, 0x1000, symbolic.PermRead|symbolic.PermExec); err != nil {
		t.Fatalf("map region: %v", err)
	}
	for i, v := range []byte{0xde, 0xad, 0xbe, 0xef} {
		mem.SetByte(0x600000+uint64(i), fake.Concrete(uint64(v)))
	}

	if !b.OnUnmapped(uclib.AccessFetch, 0x600000, 4) {
		t.Fatal("expected fault to be handled")
	}
	got, err := eng.MemRead(0x600000, 4)
	if err != nil {
		t.Fatalf("memread: %v", err)
	}
	want := []byte{0xde, 0xad, 0xbe, 0xef}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestOnUnmappedFetchIntoUnmappedZeroPageStops(t *testing.T) {
	requireNative(t)
	b, _, _ := newBridge(t)

	if b.OnUnmapped(uclib.AccessFetch, 0x700000, 4) {
		t.Fatal("expected fetch into an all-missing page to remain unhandled")
	}
}

func TestAlignWideVersusNarrow(t *testing.T) {
	start, end := align(0x401234, 8, true)
	if start != 0x400000 || end != 0x410000 {
		t.Fatalf("wide align: got [%#x,%#x)", start, end)
	}
	start, end = align(0x401234, 8, false)
	if start != 0x401000 || end != 0x402000 {
		t.Fatalf("narrow align: got [%#x,%#x)", start, end)
	}
}
