package luavm

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/stripd/internal/color"
)

// LuaToGo converts a Lua value to a Go value
func LuaToGo(v lua.LValue) interface{} {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case lua.LBool:
		return bool(val)
	case *lua.LTable:
		// Check if it's an array or object
		isArray := true
		maxIdx := 0
		val.ForEach(func(k, _ lua.LValue) {
			if num, ok := k.(lua.LNumber); ok {
				idx := int(num)
				if idx > maxIdx {
					maxIdx = idx
				}
			} else {
				isArray = false
			}
		})

		if isArray && maxIdx > 0 {
			arr := make([]interface{}, maxIdx)
			val.ForEach(func(k, v lua.LValue) {
				if num, ok := k.(lua.LNumber); ok {
					arr[int(num)-1] = LuaToGo(v)
				}
			})
			return arr
		}

		obj := make(map[string]interface{})
		val.ForEach(func(k, v lua.LValue) {
			obj[lua.LVAsString(k)] = LuaToGo(v)
		})
		return obj
	case *lua.LNilType:
		return nil
	default:
		return v.String()
	}
}

// GoToLuaValue converts a Go value to a Lua value
func GoToLuaValue(L *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []interface{}:
		tbl := L.NewTable()
		for i, item := range val {
			tbl.RawSetInt(i+1, GoToLuaValue(L, item))
		}
		return tbl
	case map[string]interface{}:
		tbl := L.NewTable()
		for k, v := range val {
			tbl.RawSetString(k, GoToLuaValue(L, v))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// PixelToLua converts a pixel to a {r=, g=, b=, w=} table
func PixelToLua(L *lua.LState, p color.Pixel) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("r", lua.LNumber(p.R))
	tbl.RawSetString("g", lua.LNumber(p.G))
	tbl.RawSetString("b", lua.LNumber(p.B))
	tbl.RawSetString("w", lua.LNumber(p.W))
	return tbl
}

// LuaToPixel reads a pixel from either {r=, g=, b=, w=} or {r, g, b, w}.
// Anything else is off. Channels are clamped.
func LuaToPixel(v lua.LValue) color.Pixel {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return color.Off
	}

	get := func(key string, idx int) int {
		if n, ok := tbl.RawGetString(key).(lua.LNumber); ok {
			return int(n)
		}
		if n, ok := tbl.RawGetInt(idx).(lua.LNumber); ok {
			return int(n)
		}
		return 0
	}

	return color.RGBW{
		R: get("r", 1),
		G: get("g", 2),
		B: get("b", 3),
		W: get("w", 4),
	}.ToRGBW()
}
