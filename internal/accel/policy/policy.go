// Package policy implements the threshold-based concretization promoter
// (C6, spec.md §4.6): counting how often a variable or instruction
// blocks acceleration and promoting it into the plugin's always-on
// policy sets once a configured threshold is crossed.
package policy

import (
	"github.com/zboralski/galago/internal/accel/plugin"
	"github.com/zboralski/galago/internal/symbolic"
)

// FromWhere mirrors classify.FromWhere without importing it, since
// policy only needs to pick a threshold kind.
type FromWhere int

const (
	FromReg FromWhere = iota
	FromMem
)

// Observe records that classification left a value symbolic at ip,
// blocking native acceleration, and promotes it under
// threshold_concretization (spec.md §4.6). Promotion is additive-only:
// once a variable or address is promoted it is never demoted within
// this state (plugin.Plugin.RecordAlwaysConcretize/RecordConcretizeAt
// only ever add entries).
func Observe(p *plugin.Plugin, opts symbolic.Options, from FromWhere, vars symbolic.VarSet, ip uint64) {
	if !opts.Has(symbolic.OptThresholdConcretization) {
		return
	}

	if p.Thresholds.Instruction > 0 {
		p.InsnHits[ip]++
		if p.InsnHits[ip] >= p.Thresholds.Instruction {
			p.RecordConcretizeAt(ip)
		}
	}

	threshold := p.Thresholds.Register
	if from == FromMem {
		threshold = p.Thresholds.Memory
	}
	if threshold <= 0 {
		return
	}

	promote := make(symbolic.VarSet)
	for v := range vars {
		p.VarHits[v]++
		if p.VarHits[v] >= threshold {
			promote[v] = struct{}{}
		}
	}
	if len(promote) > 0 {
		p.RecordAlwaysConcretize(promote)
	}
}
