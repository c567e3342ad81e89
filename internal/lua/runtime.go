package lua

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// SkillContext is the read-only view of the chat a skill script can query.
type SkillContext struct {
	Skill      string
	Agent      string
	Request    string
	Discussion string
	Whiteboard string
}

// Result is what a skill run produced.
type Result struct {
	Output string
	Logs   []string
}

// Runtime executes Lua skill scripts in a sandboxed environment
type Runtime struct {
	sc   SkillContext
	logs []string

	failReason string
	failed     bool
}

// NewRuntime creates a runtime bound to one skill invocation
func NewRuntime(sc SkillContext) *Runtime {
	return &Runtime{
		sc:   sc,
		logs: make([]string, 0),
	}
}

// Execute loads the script, then calls skill(input) and returns its result
// converted to a string. Tables are returned as JSON.
func (r *Runtime) Execute(ctx context.Context, scriptPath, input string) (*Result, error) {
	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // Don't load any libraries by default
	})
	defer L.Close()
	L.SetContext(ctx)

	r.openSafeLibs(L)
	r.registerAPI(L)

	if err := L.DoString(string(script)); err != nil {
		return nil, fmt.Errorf("failed to load script: %w", err)
	}

	fn := L.GetGlobal("skill")
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("script must define a 'skill' function")
	}

	L.Push(fn)
	L.Push(lua.LString(input))
	if err := L.PCall(1, 1, nil); err != nil {
		if r.failed {
			return nil, fmt.Errorf("skill %s failed: %s", r.sc.Skill, r.failReason)
		}
		return nil, fmt.Errorf("skill execution failed: %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)

	out, err := luaToString(ret)
	if err != nil {
		return nil, err
	}
	return &Result{Output: out, Logs: r.logs}, nil
}

// openSafeLibs loads only the safe standard libraries
func (r *Runtime) openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)

	// Remove dangerous base functions
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("print", lua.LNil) // Use log() instead

	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// Remove non-deterministic math functions
	math := L.GetGlobal("math")
	if tbl, ok := math.(*lua.LTable); ok {
		L.SetField(tbl, "random", lua.LNil)
		L.SetField(tbl, "randomseed", lua.LNil)
	}
}

// registerAPI registers the skill API functions
func (r *Runtime) registerAPI(L *lua.LState) {
	L.SetGlobal("log", L.NewFunction(r.luaLog))
	L.SetGlobal("fail", L.NewFunction(r.luaFail))
	L.SetGlobal("context", L.NewFunction(r.luaContext))
	L.SetGlobal("discussion", L.NewFunction(r.luaDiscussion))
	L.SetGlobal("whiteboard", L.NewFunction(r.luaWhiteboard))
}

// luaLog implements the log(message) API
func (r *Runtime) luaLog(L *lua.LState) int {
	r.logs = append(r.logs, L.CheckString(1))
	return 0
}

// luaFail implements the fail(reason?) API
func (r *Runtime) luaFail(L *lua.LState) int {
	r.failReason = L.OptString(1, "skill failed")
	r.failed = true
	L.RaiseError("fail: %s", r.failReason)
	return 0
}

// luaContext implements the context() API
func (r *Runtime) luaContext(L *lua.LState) int {
	tbl := L.NewTable()
	L.SetField(tbl, "skill", lua.LString(r.sc.Skill))
	L.SetField(tbl, "agent", lua.LString(r.sc.Agent))
	L.SetField(tbl, "request", lua.LString(r.sc.Request))
	L.Push(tbl)
	return 1
}

func (r *Runtime) luaDiscussion(L *lua.LState) int {
	L.Push(lua.LString(r.sc.Discussion))
	return 1
}

func (r *Runtime) luaWhiteboard(L *lua.LState) int {
	L.Push(lua.LString(r.sc.Whiteboard))
	return 1
}

func luaToString(v lua.LValue) (string, error) {
	switch v.Type() {
	case lua.LTNil:
		return "", nil
	case lua.LTString, lua.LTNumber, lua.LTBool:
		return v.String(), nil
	case lua.LTTable:
		data, err := json.Marshal(luaToGo(v))
		if err != nil {
			return "", fmt.Errorf("failed to encode skill result: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported skill result type %s", v.Type())
	}
}

// luaToGo converts a Lua value to a Go value. Tables with a non-empty
// array part become slices; others become maps.
func luaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if n := val.Len(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, luaToGo(val.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any)
		val.ForEach(func(k, item lua.LValue) {
			out[k.String()] = luaToGo(item)
		})
		return out
	default:
		return v.String()
	}
}

// IsSkillScript checks if a file is a Lua skill implementation
func IsSkillScript(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".lua")
}
