// Package telemetry turns one episode's runctl.Result into a sequence of
// tagged trace events, in the shape of the teacher's internal/trace
// package: a Tag vocabulary, free-form Annotations, and an Enricher hook
// a caller can use to add domain tags after the fact.
package telemetry

import (
	"fmt"
	"time"

	"github.com/zboralski/galago/internal/accel/runctl"
	"github.com/zboralski/galago/internal/uclib"
)

// Tag represents a trace event category. Tags are stored without the #
// prefix; the prefix is added on rendering.
type Tag string

// Standard tags for accelerator trace events.
const (
	BasicBlock  Tag = "bbl"
	StackPoint  Tag = "stack"
	Syscall     Tag = "syscall"
	PageFault   Tag = "fault"
	Concretize  Tag = "concretize"
	Cooldown    Tag = "cooldown"
	Stop        Tag = "stop"
	HandleEvict Tag = "evict"
)

// Tags is a collection of tags with helper methods.
type Tags []Tag

// Has returns true if the tag collection contains the given tag.
func (t Tags) Has(tag Tag) bool {
	for _, x := range t {
		if x == tag {
			return true
		}
	}
	return false
}

// Add adds a tag if not already present.
func (t *Tags) Add(tag Tag) {
	if !t.Has(tag) {
		*t = append(*t, tag)
	}
}

// Strings returns tags as strings with # prefix for display.
func (t Tags) Strings() []string {
	out := make([]string, len(t))
	for i, tag := range t {
		out[i] = "#" + string(tag)
	}
	return out
}

// Primary returns the first tag or empty string if none.
func (t Tags) Primary() Tag {
	if len(t) > 0 {
		return t[0]
	}
	return ""
}

// Annotations holds key-value metadata for a trace event.
type Annotations map[string]string

// Set adds or updates an annotation.
func (a Annotations) Set(k, v string) { a[k] = v }

// Get retrieves an annotation value.
func (a Annotations) Get(k string) string { return a[k] }

// Event is one piece of episode telemetry: a tagged fact at a given
// address, with whatever extra detail that fact carries.
type Event struct {
	PC          uint64
	Tags        Tags
	Detail      string
	Annotations Annotations
	Timestamp   time.Time
}

// NewEvent creates a new trace event under the given primary tag.
func NewEvent(pc uint64, tag Tag, detail string) *Event {
	return &Event{
		PC:          pc,
		Tags:        Tags{tag},
		Detail:      detail,
		Annotations: make(Annotations),
		Timestamp:   time.Now(),
	}
}

// AddTag adds a tag to the event.
func (e *Event) AddTag(tag Tag) { e.Tags.Add(tag) }

// Annotate sets an annotation on the event.
func (e *Event) Annotate(k, v string) {
	if e.Annotations == nil {
		e.Annotations = make(Annotations)
	}
	e.Annotations.Set(k, v)
}

// PrimaryTag returns the primary (first) tag with a # prefix.
func (e *Event) PrimaryTag() string {
	if len(e.Tags) > 0 {
		return "#" + string(e.Tags[0])
	}
	return ""
}

// Enricher adds tags or annotations to an event after collection, e.g.
// classifying a syscall event by number or a fault event by outcome.
type Enricher func(e *Event)

// FromResult flattens one episode's runctl.Result into an ordered event
// stream: one event per traced basic block and stack pointer sample,
// then a syscall-count summary (if any occurred), then the terminal
// stop event. Callers append their own Concretize/Cooldown/PageFault
// events as those decisions happen during the episode; FromResult only
// covers what the run controller collects after the fact.
func FromResult(res runctl.Result) []*Event {
	var events []*Event

	for _, addr := range res.Trace.BBLAddrs {
		events = append(events, NewEvent(addr, BasicBlock, ""))
	}
	for _, sp := range res.Trace.StackPointers {
		e := NewEvent(res.StoppingAddr, StackPoint, fmt.Sprintf("sp=%#x", sp))
		events = append(events, e)
	}
	if res.Trace.SyscallCount > 0 {
		e := NewEvent(res.IPAtSyscall, Syscall, fmt.Sprintf("count=%d", res.Trace.SyscallCount))
		events = append(events, e)
	}

	stop := NewEvent(res.StoppingAddr, Stop, res.StopReason.String())
	stop.Annotate("steps", fmt.Sprintf("%d", res.Steps))
	stop.Annotate("elapsed_ms", fmt.Sprintf("%.3f", res.Elapsed.Seconds()*1000))
	if !res.StopReason.Retained() {
		stop.AddTag(HandleEvict)
	}
	events = append(events, stop)

	return events
}

// ConcretizeEvent records one classify/policy concretization decision.
func ConcretizeEvent(ip uint64, tag string, value uint64) *Event {
	e := NewEvent(ip, Concretize, tag)
	e.Annotate("value", fmt.Sprintf("%#x", value))
	return e
}

// CooldownEvent records a cooldown counter engaging.
func CooldownEvent(kind string, countdown int) *Event {
	e := NewEvent(0, Cooldown, kind)
	e.Annotate("countdown", fmt.Sprintf("%d", countdown))
	return e
}

// PageFaultEvent records one page-bridge decision.
func PageFaultEvent(addr uint64, size int, outcome string) *Event {
	e := NewEvent(addr, PageFault, outcome)
	e.Annotate("size", fmt.Sprintf("%d", size))
	return e
}

// DefaultEnricher adds a severity annotation to stop events based on
// the underlying uclib.StopReason, so downstream consumers don't need
// to re-derive it from the raw detail string.
func DefaultEnricher(e *Event) {
	if e.Tags.Primary() != Stop {
		return
	}
	switch e.Detail {
	case uclib.StopNormal.String(), uclib.StopStoppoint.String(), uclib.StopSyscall.String():
		e.Annotate("severity", "clean")
	default:
		e.Annotate("severity", "abnormal")
	}
}
