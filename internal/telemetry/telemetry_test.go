package telemetry

import (
	"testing"
	"time"

	"github.com/zboralski/galago/internal/accel/runctl"
	"github.com/zboralski/galago/internal/uclib"
)

func TestFromResultOrdersBblsThenSyscallThenStop(t *testing.T) {
	res := runctl.Result{
		StopReason:   uclib.StopNormal,
		Steps:        3,
		Elapsed:      10 * time.Millisecond,
		StoppingAddr: 0x2000,
		IPAtSyscall:  0x1500,
		Trace: runctl.Trace{
			BBLAddrs:     []uint64{0x1000, 0x1010},
			SyscallCount: 1,
		},
	}
	events := FromResult(res)
	if len(events) != 4 {
		t.Fatalf("expected 2 bbl + 1 syscall + 1 stop event, got %d", len(events))
	}
	if events[0].Tags.Primary() != BasicBlock || events[1].Tags.Primary() != BasicBlock {
		t.Fatal("expected the first two events to be basic blocks")
	}
	if events[2].Tags.Primary() != Syscall {
		t.Fatal("expected the third event to be the syscall summary")
	}
	stop := events[3]
	if stop.Tags.Primary() != Stop {
		t.Fatal("expected the last event to be the stop event")
	}
	if stop.Detail != uclib.StopNormal.String() {
		t.Errorf("expected stop detail %q, got %q", uclib.StopNormal.String(), stop.Detail)
	}
	if stop.Tags.Has(HandleEvict) {
		t.Error("a retained stop reason must not be tagged for eviction")
	}
}

func TestFromResultTagsEvictionOnAbnormalStop(t *testing.T) {
	res := runctl.Result{StopReason: uclib.StopSegfault}
	events := FromResult(res)
	stop := events[len(events)-1]
	if !stop.Tags.Has(HandleEvict) {
		t.Fatal("expected a non-retained stop reason to be tagged for handle eviction")
	}
}

func TestDefaultEnricherClassifiesSeverity(t *testing.T) {
	clean := NewEvent(0, Stop, uclib.StopNormal.String())
	DefaultEnricher(clean)
	if clean.Annotations.Get("severity") != "clean" {
		t.Errorf("expected clean severity, got %q", clean.Annotations.Get("severity"))
	}

	abnormal := NewEvent(0, Stop, uclib.StopSegfault.String())
	DefaultEnricher(abnormal)
	if abnormal.Annotations.Get("severity") != "abnormal" {
		t.Errorf("expected abnormal severity, got %q", abnormal.Annotations.Get("severity"))
	}
}

func TestDefaultEnricherIgnoresNonStopEvents(t *testing.T) {
	e := NewEvent(0x10, BasicBlock, "")
	DefaultEnricher(e)
	if _, ok := e.Annotations["severity"]; ok {
		t.Fatal("non-stop events must not get a severity annotation")
	}
}

func TestTagsAddIsIdempotent(t *testing.T) {
	var tags Tags
	tags.Add(BasicBlock)
	tags.Add(BasicBlock)
	if len(tags) != 1 {
		t.Fatalf("expected duplicate Add to be a no-op, got %d tags", len(tags))
	}
}
