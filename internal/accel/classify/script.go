package classify

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/zboralski/galago/internal/accel/plugin"
)

// ScriptEngine evaluates a small JavaScript predicate to decide
// concretize_at membership, an enrichment over the static set for
// deployments that want to express policy ("concretize anything in this
// function") without recompiling. It is entirely optional: passing nil
// as the ConcretizeAtChecker to Classify falls back to StaticSet.
type ScriptEngine struct {
	vm     *goja.Runtime
	member goja.Callable
}

// NewScriptEngine compiles source, which must define a top-level
// function `shouldConcretize(ip)` returning a boolean.
func NewScriptEngine(source string) (*ScriptEngine, error) {
	vm := goja.New()
	if _, err := vm.RunString(source); err != nil {
		return nil, fmt.Errorf("classify: compile policy script: %w", err)
	}
	fnVal := vm.Get("shouldConcretize")
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, fmt.Errorf("classify: policy script must define shouldConcretize(ip)")
	}
	return &ScriptEngine{vm: vm, member: fn}, nil
}

// ConcretizeAt implements ConcretizeAtChecker by calling into the
// compiled script, falling back to the static set when the script
// throws or returns undefined or null; any other result is converted
// with JavaScript truthiness.
func (s *ScriptEngine) ConcretizeAt(p *plugin.Plugin, ip uint64) bool {
	if s == nil || s.member == nil {
		return StaticSet{}.ConcretizeAt(p, ip)
	}
	res, err := s.member(goja.Undefined(), s.vm.ToValue(ip))
	if err != nil {
		return StaticSet{}.ConcretizeAt(p, ip)
	}
	if res.ExportType() == nil {
		return StaticSet{}.ConcretizeAt(p, ip)
	}
	return res.ToBoolean()
}
