package routine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/stripd/internal/color"
	"github.com/dokzlo13/stripd/internal/luavm"
)

// DefaultScriptTimeout bounds a single render call, about one frame at 50fps.
const DefaultScriptTimeout = 20 * time.Millisecond

// ScriptParams configures a Script. Exactly one of Path or Source is used,
// Path taking precedence.
type ScriptParams struct {
	Path    string         `yaml:"path"`
	Source  string         `yaml:"source"`
	Params  map[string]any `yaml:"params"`
	Timeout time.Duration  `yaml:"timeout"`
}

// Script is a routine written in Lua. The script must define
//
//	function render(tick, n) ... end
//
// returning an array of n pixel tables. A failing call renders all off.
type Script struct {
	name    string
	vm      *luavm.Runtime
	render  *lua.LFunction
	timeout time.Duration
	failing bool
}

// NewScript loads and runs the script once, then looks up its render function.
func NewScript(name string, params ScriptParams) (*Script, error) {
	if params.Path == "" && params.Source == "" {
		return nil, errors.New("script routine needs a path or source")
	}

	vm := luavm.NewRuntime(name, params.Params)

	var err error
	if params.Path != "" {
		err = vm.LoadFile(params.Path)
	} else {
		err = vm.LoadString(params.Source)
	}
	if err != nil {
		vm.Close()
		return nil, err
	}

	fn, err := vm.Function("render")
	if err != nil {
		vm.Close()
		return nil, err
	}

	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}

	return &Script{name: name, vm: vm, render: fn, timeout: timeout}, nil
}

// Name implements Routine.
func (s *Script) Name() string { return s.name }

// Render implements Routine. A call running past the timeout is aborted
// and counts as a failure.
func (s *Script) Render(tick uint64, n int) color.Frame {
	f := color.NewFrame(n)
	L := s.vm.L

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	L.SetContext(ctx)
	err := L.CallByParam(lua.P{
		Fn:      s.render,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(tick), lua.LNumber(n))
	L.RemoveContext()
	cancel()
	if err != nil {
		s.fail(err)
		return f
	}

	ret := L.Get(-1)
	L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		s.fail(fmt.Errorf("render returned %s, want table", ret.Type().String()))
		return f
	}

	for i := range f {
		f[i] = luavm.LuaToPixel(tbl.RawGetInt(i + 1))
	}

	if s.failing {
		s.failing = false
		log.Info().Str("routine", s.name).Msg("Lua routine recovered")
	}
	return f
}

// fail logs the first error of a run of failures only, so a broken script
// does not flood the log at frame rate.
func (s *Script) fail(err error) {
	if s.failing {
		return
	}
	s.failing = true
	log.Error().Err(err).Str("routine", s.name).Msg("Lua routine failed, rendering off")
}

// Close releases the Lua VM.
func (s *Script) Close() error {
	s.vm.Close()
	return nil
}
