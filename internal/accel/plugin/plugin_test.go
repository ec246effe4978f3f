package plugin

import "testing"

func TestCopyIsIndependent(t *testing.T) {
	p := New("k", CooldownSettings{NonUnicornBlocks: 1}, Thresholds{Register: 2}, 10)
	p.RecordAlwaysConcretize(map[string]struct{}{"x": {}})
	p.RecordConcretizeAt(0x10)

	cp := p.Copy()
	cp.RecordAlwaysConcretize(map[string]struct{}{"y": {}})
	cp.RecordConcretizeAt(0x20)

	if _, ok := p.AlwaysConcretize["y"]; ok {
		t.Fatal("mutating the copy must not affect the original")
	}
	if _, ok := p.ConcretizeAt[0x20]; ok {
		t.Fatal("mutating the copy's concretize_at must not affect the original")
	}
	if cp.CacheKey != p.CacheKey {
		t.Fatal("copy must preserve the cache key lineage")
	}
	if cp.Engine != nil {
		t.Fatal("copy must not inherit a native engine handle")
	}
}

func TestMergeCooldownsTakeMax(t *testing.T) {
	p := New("k", CooldownSettings{}, Thresholds{}, 0)
	p.Live.NonUnicornBlocks = 1

	other := New("k", CooldownSettings{}, Thresholds{}, 0)
	other.Live.NonUnicornBlocks = 5

	p.Merge([]*Plugin{other})
	if p.Live.NonUnicornBlocks != 5 {
		t.Fatalf("expected merged cooldown to take the max, got %d", p.Live.NonUnicornBlocks)
	}
}

func TestMergeThresholdsTakeMinPositive(t *testing.T) {
	p := New("k", CooldownSettings{}, Thresholds{Register: 10}, 0)
	other := New("k", CooldownSettings{}, Thresholds{Register: 3}, 0)

	p.Merge([]*Plugin{other})
	if p.Thresholds.Register != 3 {
		t.Fatalf("expected merged threshold to take the min, got %d", p.Thresholds.Register)
	}
}

func TestMergeThresholdsIgnoreUnset(t *testing.T) {
	p := New("k", CooldownSettings{}, Thresholds{Register: 10}, 0)
	other := New("k", CooldownSettings{}, Thresholds{}, 0) // Register unset (0)

	p.Merge([]*Plugin{other})
	if p.Thresholds.Register != 10 {
		t.Fatalf("unset threshold must not override a configured one, got %d", p.Thresholds.Register)
	}
}

func TestMergeConcretizedValuesIntersect(t *testing.T) {
	p := New("k", CooldownSettings{}, Thresholds{}, 0)
	p.ConcretizedValues["a"] = struct{}{}
	p.ConcretizedValues["b"] = struct{}{}

	other := New("k", CooldownSettings{}, Thresholds{}, 0)
	other.ConcretizedValues["a"] = struct{}{}

	p.Merge([]*Plugin{other})
	if _, ok := p.ConcretizedValues["a"]; !ok {
		t.Fatal("value confirmed by both predecessors must survive the intersection")
	}
	if _, ok := p.ConcretizedValues["b"]; ok {
		t.Fatal("value missing from a predecessor must not survive the intersection")
	}
}

func TestMergeUnionsPolicySets(t *testing.T) {
	p := New("k", CooldownSettings{}, Thresholds{}, 0)
	other := New("k", CooldownSettings{}, Thresholds{}, 0)
	other.AlwaysConcretize["x"] = struct{}{}
	other.ConcretizeAt[0x10] = struct{}{}

	p.Merge([]*Plugin{other})
	if _, ok := p.AlwaysConcretize["x"]; !ok {
		t.Fatal("expected always_concretize to union across predecessors")
	}
	if _, ok := p.ConcretizeAt[0x10]; !ok {
		t.Fatal("expected concretize_at to union across predecessors")
	}
}
