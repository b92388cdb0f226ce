package luavm

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/stripd/internal/color"
)

// ColorModule exposes the colour model to Lua. Every helper returns a
// pixel table {r=, g=, b=, w=} with white already derived.
type ColorModule struct{}

// NewColorModule creates a new color module
func NewColorModule() *ColorModule {
	return &ColorModule{}
}

// Loader is the module loader for Lua
func (m *ColorModule) Loader(L *lua.LState) int {
	mod := L.NewTable()
	m.register(L, mod)
	L.Push(mod)
	return 1
}

func (m *ColorModule) register(L *lua.LState, tbl *lua.LTable) {
	L.SetField(tbl, "hsv", L.NewFunction(m.hsv))
	L.SetField(tbl, "rgb", L.NewFunction(m.rgb))
	L.SetField(tbl, "rgbw", L.NewFunction(m.rgbw))
}

// hsv(h, s, v [, w]) with h in degrees and s, v, w in 0..1
func (m *ColorModule) hsv(L *lua.LState) int {
	spec := color.HSVW{
		H: float64(L.CheckNumber(1)),
		S: float64(L.OptNumber(2, 1)),
		V: float64(L.OptNumber(3, 1)),
		W: float64(L.OptNumber(4, 0)),
	}
	L.Push(PixelToLua(L, spec.ToRGBW()))
	return 1
}

// rgb(r, g, b) with channels in 0..255
func (m *ColorModule) rgb(L *lua.LState) int {
	spec := color.RGB{
		R: L.CheckInt(1),
		G: L.CheckInt(2),
		B: L.CheckInt(3),
	}
	L.Push(PixelToLua(L, spec.ToRGBW()))
	return 1
}

// rgbw(r, g, b, w) with channels in 0..255
func (m *ColorModule) rgbw(L *lua.LState) int {
	spec := color.RGBW{
		R: L.CheckInt(1),
		G: L.CheckInt(2),
		B: L.CheckInt(3),
		W: L.OptInt(4, 0),
	}
	L.Push(PixelToLua(L, spec.ToRGBW()))
	return 1
}
