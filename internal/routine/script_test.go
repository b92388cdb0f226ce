package routine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/stripd/internal/color"
)

func TestScript_Render(t *testing.T) {
	s, err := NewScript("chase", ScriptParams{
		Source: `
local log = require("log")
log.debug("loaded", {speed = params.speed})

function render(tick, n)
  local out = {}
  for i = 1, n do
    if (i - 1) == tick % n then
      out[i] = rgb(255, 255, 255)
    else
      out[i] = {params.level, 0, 0, 0}
    end
  end
  return out
end
`,
		Params: map[string]any{"speed": 2, "level": 10},
	})
	require.NoError(t, err)
	defer s.Close()

	f := s.Render(1, 4)
	require.Len(t, f, 4)
	assert.Equal(t, color.New(10, 0, 0, 0), f[0])
	assert.Equal(t, color.New(0, 0, 0, 255), f[1])
	assert.Equal(t, color.New(10, 0, 0, 0), f[2])
}

func TestScript_ColorModule(t *testing.T) {
	s, err := NewScript("hsv", ScriptParams{
		Source: `
local color = require("color")
function render(tick, n)
  local out = {}
  for i = 1, n do out[i] = color.hsv(240, 1, 1) end
  return out
end
`,
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, color.Frame{color.New(0, 0, 255, 0), color.New(0, 0, 255, 0)}, s.Render(0, 2))
}

func TestScript_ShortResultPadsOff(t *testing.T) {
	s, err := NewScript("short", ScriptParams{
		Source: `function render(tick, n) return { {r = 300, g = -4, b = 1, w = 2} } end`,
	})
	require.NoError(t, err)
	defer s.Close()

	f := s.Render(0, 3)
	assert.Equal(t, color.Frame{color.New(255, 0, 1, 2), color.Off, color.Off}, f)
}

func TestScript_RuntimeErrorRendersOff(t *testing.T) {
	s, err := NewScript("broken", ScriptParams{
		Source: `function render(tick, n) error("boom") end`,
	})
	require.NoError(t, err)
	defer s.Close()

	for tick := uint64(0); tick < 3; tick++ {
		assert.Equal(t, color.NewFrame(2), s.Render(tick, 2))
	}
	assert.True(t, s.failing)
}

func TestScript_RunawayRenderIsAborted(t *testing.T) {
	s, err := NewScript("loop", ScriptParams{
		Source:  `function render(tick, n) while true do end end`,
		Timeout: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	defer s.Close()

	start := time.Now()
	assert.Equal(t, color.NewFrame(4), s.Render(0, 4))
	assert.Equal(t, color.NewFrame(4), s.Render(1, 4))
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, s.failing)
}

func TestScript_DefaultTimeout(t *testing.T) {
	s, err := NewScript("solid", ScriptParams{
		Source: `function render(tick, n) return {} end`,
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, DefaultScriptTimeout, s.timeout)
	assert.Equal(t, color.NewFrame(2), s.Render(0, 2))
	assert.False(t, s.failing)
}

func TestScript_LoadErrors(t *testing.T) {
	_, err := NewScript("none", ScriptParams{})
	assert.Error(t, err)

	_, err = NewScript("no-render", ScriptParams{Source: `x = 1`})
	assert.ErrorContains(t, err, `does not define function "render"`)

	_, err = NewScript("syntax", ScriptParams{Source: `function (`})
	assert.Error(t, err)
}

func TestScript_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solid.lua")
	require.NoError(t, os.WriteFile(path, []byte(`
function render(tick, n)
  local out = {}
  for i = 1, n do out[i] = rgbw(1, 2, 3, 4) end
  return out
end
`), 0o644))

	s, err := NewScript("file", ScriptParams{Path: path})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, color.Frame{color.New(1, 2, 3, 4)}, s.Render(0, 1))
}
