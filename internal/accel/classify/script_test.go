package classify

import "testing"

func TestScriptEngineOverridesConcretizeAt(t *testing.T) {
	se, err := NewScriptEngine(`function shouldConcretize(ip) { return ip === 4096; }`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	p := newPlugin()
	if !se.ConcretizeAt(p, 0x1000) {
		t.Fatal("expected script to report concretize_at membership for 0x1000")
	}
	if se.ConcretizeAt(p, 0x2000) {
		t.Fatal("expected script to report no membership for 0x2000")
	}
}

func TestScriptEngineFallsBackToStaticSetOnUndefinedReturn(t *testing.T) {
	se, err := NewScriptEngine(`function shouldConcretize(ip) {}`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	p := newPlugin()
	p.ConcretizeAt[0x1000] = struct{}{}
	if !se.ConcretizeAt(p, 0x1000) {
		t.Fatal("expected fallback to the static set when the script returns nothing")
	}
	if se.ConcretizeAt(p, 0x2000) {
		t.Fatal("expected no static-set membership at 0x2000")
	}
}

func TestScriptEngineFallsBackOnRuntimeError(t *testing.T) {
	se, err := NewScriptEngine(`function shouldConcretize(ip) { throw "boom"; }`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	p := newPlugin()
	p.ConcretizeAt[0x1000] = struct{}{}
	if !se.ConcretizeAt(p, 0x1000) {
		t.Fatal("expected fallback to the static set when the script throws")
	}
	if se.ConcretizeAt(p, 0x2000) {
		t.Fatal("expected no static-set membership at 0x2000")
	}
}

func TestNewScriptEngineRejectsMissingEntrypoint(t *testing.T) {
	if _, err := NewScriptEngine(`function somethingElse() { return true; }`); err == nil {
		t.Fatal("expected an error when shouldConcretize is undefined")
	}
}

func TestNewScriptEngineRejectsSyntaxError(t *testing.T) {
	if _, err := NewScriptEngine(`function shouldConcretize(ip { `); err == nil {
		t.Fatal("expected a compile error for invalid JavaScript")
	}
}
