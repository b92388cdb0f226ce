// Package luavm hosts the Lua VM used by scripted routines.
package luavm

import (
	"fmt"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
)

// Runtime is a single Lua VM with the stripd modules preloaded.
// A Runtime is not safe for concurrent use; scripted routines only touch it
// from the render loop.
type Runtime struct {
	L    *lua.LState
	name string
}

// NewRuntime creates a VM for the named script. params is exposed to the
// script as the global table `params`.
func NewRuntime(name string, params map[string]any) *Runtime {
	L := lua.NewState()

	r := &Runtime{L: L, name: name}
	r.registerModules()

	if params == nil {
		params = map[string]any{}
	}
	L.SetGlobal("params", GoToLuaValue(L, params))

	return r
}

// registerModules registers all Lua modules
func (r *Runtime) registerModules() {
	logModule := NewLogModule(r.name)
	r.L.PreloadModule("log", logModule.Loader)

	colorModule := NewColorModule()
	r.L.PreloadModule("color", colorModule.Loader)
	// The colour helpers are also plain globals so short scripts can skip require.
	colorModule.register(r.L, r.L.G.Global)
}

// LoadFile executes a Lua file.
func (r *Runtime) LoadFile(path string) error {
	log.Info().Str("routine", r.name).Str("path", path).Msg("Loading Lua script")

	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}
	return nil
}

// LoadString executes inline Lua source.
func (r *Runtime) LoadString(source string) error {
	if err := r.L.DoString(source); err != nil {
		return fmt.Errorf("failed to execute Lua source: %w", err)
	}
	return nil
}

// Function looks up a global function defined by the script.
func (r *Runtime) Function(name string) (*lua.LFunction, error) {
	fn, ok := r.L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("lua script %q does not define function %q", r.name, name)
	}
	return fn, nil
}

// Close releases the VM.
func (r *Runtime) Close() {
	r.L.Close()
}
