package uclib

// Mutation is the Go-side rendering of the native mutation linked list
// (spec.md §3 "Mutation Record"). The native side owns the list until
// consumed; here that ownership is modeled as a borrowed slice returned
// by Sync and invalidated by the next Start (spec.md §9, FFI contract
// guidance: "model it as a borrowed iterator").
type Mutation struct {
	Address uint64
	Length  uint64
}

// recordWrite merges addr/len into the pending mutation set for this
// episode. Adjacent and overlapping ranges are coalesced so Sync returns
// a compact list, mirroring the native side's own region tracking.
func (e *Engine) recordWrite(addr, length uint64) {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	end := addr + length
	merged := make([]Mutation, 0, len(e.pendingMutations)+1)
	for _, m := range e.pendingMutations {
		mEnd := m.Address + m.Length
		if m.Address > end || mEnd < addr {
			merged = append(merged, m)
			continue
		}
		if m.Address < addr {
			addr = m.Address
		}
		if mEnd > end {
			end = mEnd
		}
	}
	merged = append(merged, Mutation{Address: addr, Length: end - addr})
	e.pendingMutations = merged
}

// Sync enumerates mutations accumulated since the last Start.
func (e *Engine) Sync() []Mutation {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	out := make([]Mutation, len(e.pendingMutations))
	copy(out, e.pendingMutations)
	return out
}

// Destroy frees the mutation list (spec.md §6 "destroy(list_head)").
func (e *Engine) Destroy() {
	e.mu_.Lock()
	defer e.mu_.Unlock()
	e.pendingMutations = nil
}
