package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for server policy hooks.
// LState is not goroutine-safe and violations are judged from connection
// read goroutines, so every call goes through mu.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	// Load core scripts first, then feature scripts
	for _, sub := range []string{"core", "movement"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Close releases the VM.
func (e *Engine) Close() {
	e.mu.Lock()
	e.vm.Close()
	e.mu.Unlock()
}

// Action is what the policy wants done with a rejected client.
type Action string

const (
	ActionCorrect Action = "correct" // snap the client back, keep the connection
	ActionKick    Action = "kick"    // snap back and disconnect
)

// ViolationContext holds pre-packed data for one validator rejection.
type ViolationContext struct {
	Reason    string  // UnwalkableTile / SpeedHack / TeleportDetected
	Distance  int     // Manhattan tiles claimed
	Allowed   float64 // tiles the speed rule allowed
	Elapsed   float64 // seconds since the last accepted command
	Count     int     // rejections so far, this one included
	KickAfter int     // configured escalation threshold
}

// JudgeViolation calls the Lua judge_violation function. A missing
// function, a script error or an unknown action all fall back to correct.
func (e *Engine) JudgeViolation(ctx ViolationContext) Action {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("judge_violation")
	if fn == lua.LNil {
		return ActionCorrect
	}

	t := e.vm.NewTable()
	t.RawSetString("reason", lua.LString(ctx.Reason))
	t.RawSetString("distance", lua.LNumber(ctx.Distance))
	t.RawSetString("allowed", lua.LNumber(ctx.Allowed))
	t.RawSetString("elapsed", lua.LNumber(ctx.Elapsed))
	t.RawSetString("count", lua.LNumber(ctx.Count))
	t.RawSetString("kick_after", lua.LNumber(ctx.KickAfter))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua judge_violation error", zap.Error(err))
		return ActionCorrect
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua judge_violation returned non-table")
		return ActionCorrect
	}

	switch a := Action(lua.LVAsString(rt.RawGetString("action"))); a {
	case ActionCorrect, ActionKick:
		return a
	default:
		e.log.Warn("lua judge_violation returned unknown action", zap.String("action", string(a)))
		return ActionCorrect
	}
}
