package arch

import "testing"

func TestLookupKnownArchitectures(t *testing.T) {
	for _, id := range []ID{AMD64, X86, MIPS32} {
		cp, ok := Lookup(id)
		if !ok {
			t.Fatalf("expected %s to be registered", id)
		}
		if cp.ID != id {
			t.Fatalf("capability for %s has mismatched ID %s", id, cp.ID)
		}
		if len(cp.Registers) == 0 {
			t.Fatalf("%s capability has no registers", id)
		}
		if cp.PCReg == 0 {
			t.Fatalf("%s capability has no PC register configured", id)
		}
	}
}

func TestLookupUnknownArchitecture(t *testing.T) {
	if _, ok := Lookup(ID("SPARC")); ok {
		t.Fatal("expected unregistered architecture to miss")
	}
}

func TestSegmentBaseCapabilityMatchesArchitecture(t *testing.T) {
	amd64, _ := Lookup(AMD64)
	if !amd64.HasSegmentBases {
		t.Fatal("AMD64 must report segment-base support for MSR-based FS/GS ingress")
	}
	if amd64.FSReg == 0 || amd64.GSReg == 0 {
		t.Fatal("AMD64 must have concrete FS/GS register ids configured")
	}

	mips, _ := Lookup(MIPS32)
	if mips.HasSegmentBases {
		t.Fatal("MIPS32 has no segment registers and must not claim segment-base support")
	}
}

func TestCondCodeRangesAreWithinRegisterFile(t *testing.T) {
	for _, id := range []ID{AMD64, X86, MIPS32} {
		cp, _ := Lookup(id)
		total := 0
		for _, r := range cp.Registers {
			total += r.Bytes
		}
		for _, rng := range cp.CondCodeRanges {
			if rng.Start < 0 || rng.End > total || rng.Start >= rng.End {
				t.Fatalf("%s: condition-code range [%d,%d) out of register file bounds [0,%d)",
					id, rng.Start, rng.End, total)
			}
		}
	}
}
