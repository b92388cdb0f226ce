package control

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/stripd/internal/color"
)

type recordingSink struct {
	mu     sync.Mutex
	frames []color.Frame
	err    error
}

func (s *recordingSink) Write(_ context.Context, f color.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *recordingSink) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *recordingSink) snapshot() []color.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]color.Frame(nil), s.frames...)
}

func TestEngine_RedToBlueScenario(t *testing.T) {
	a := newAdapter(time.Second, solid("red", red), solid("blue", blue))
	e := NewEngine(a, &recordingSink{}, EngineConfig{FPS: 10})
	assert.Equal(t, 100*time.Millisecond, e.Interval())

	require.NoError(t, a.Start())
	e.step(0)
	requireSolid(t, e.step(2*time.Second), red)

	require.True(t, e.Submit(ev(KindNext)))
	base := 2 * time.Second
	frames := map[time.Duration]color.Frame{}
	for i := 0; i <= 15; i++ {
		at := time.Duration(i) * 100 * time.Millisecond
		frames[at] = e.step(base + at)
	}

	requireSolid(t, frames[0], red)
	requireSolid(t, frames[500*time.Millisecond], color.New(128, 0, 128, 0))
	requireSolid(t, frames[time.Second], blue)
	requireSolid(t, frames[1500*time.Millisecond], blue)
}

func TestEngine_EventsAppliedInOrder(t *testing.T) {
	a := newAdapter(0, solid("a", red), solid("b", blue), solid("c", color.New(0, 0, 0, 9)))
	e := NewEngine(a, &recordingSink{}, EngineConfig{})

	e.Submit(ev(KindNext))
	e.Submit(ev(KindNext))
	e.Submit(ev(KindPrevious))
	e.Submit(Event{Kind: KindSelect, Index: 2})
	e.Submit(ev(KindNext))
	e.step(0)

	assert.Equal(t, 0, a.Playlist().Cursor())
	st := e.Status()
	assert.Equal(t, "a", st.Routine)
	assert.Equal(t, []string{"a", "b", "c"}, st.Playlist)
	assert.True(t, st.Powered)
}

func TestEngine_SubmitDropsWhenFull(t *testing.T) {
	a := newAdapter(0, solid("red", red))
	e := NewEngine(a, &recordingSink{}, EngineConfig{QueueSize: 2})

	assert.True(t, e.Submit(ev(KindNext)))
	assert.True(t, e.Submit(ev(KindNext)))
	assert.False(t, e.Submit(ev(KindNext)))
	assert.Equal(t, int64(1), e.Status().Dropped)

	e.step(0)
	assert.True(t, e.Submit(ev(KindNext)))
}

func TestEngine_FailedEventsDoNotStopLoop(t *testing.T) {
	a := newAdapter(0)
	e := NewEngine(a, &recordingSink{}, EngineConfig{})

	e.Submit(ev(KindNext))
	e.Submit(ev("bogus"))
	f := e.step(0)

	assert.Len(t, f, 3)
	requireSolid(t, f, color.Off)
	assert.Equal(t, int64(2), e.failed.Count())
	select {
	case <-e.Changes():
		t.Fatal("unexpected state change")
	default:
	}
}

func TestEngine_ChangesKeepsLatest(t *testing.T) {
	a := newAdapter(0, solid("red", red), solid("blue", blue))
	e := NewEngine(a, &recordingSink{}, EngineConfig{})

	e.Submit(ev(KindPowerOn))
	e.step(0)
	e.Submit(ev(KindNext))
	e.step(time.Millisecond)

	select {
	case st := <-e.Changes():
		assert.Equal(t, "blue", st.Routine)
		assert.True(t, st.Powered)
	default:
		t.Fatal("expected a state change")
	}
	select {
	case <-e.Changes():
		t.Fatal("only the latest state should be kept")
	default:
	}
}

func TestEngine_Do(t *testing.T) {
	a := newAdapter(0, solid("red", red), solid("blue", blue))
	e := NewEngine(a, &recordingSink{}, EngineConfig{})

	err := e.Do(func(a *Adapter) error {
		return a.Remove("red")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"blue"}, e.Status().Playlist)

	st := <-e.Changes()
	assert.Equal(t, "blue", st.Routine)
}

func TestEngine_Gamma(t *testing.T) {
	a := newAdapter(0, solid("grey", color.New(128, 0, 0, 255)))
	require.NoError(t, a.Start())
	e := NewEngine(a, &recordingSink{}, EngineConfig{Gamma: 2})

	f := e.step(0)
	assert.Equal(t, color.New(64, 0, 0, 255), f[0])
	assert.Equal(t, f, e.LastFrame())
}

func TestEngine_WriteErrorsAreCounted(t *testing.T) {
	sink := &recordingSink{err: errors.New("bus unplugged")}
	a := newAdapter(0, solid("red", red))
	e := NewEngine(a, sink, EngineConfig{})

	ctx := context.Background()
	e.write(ctx, e.step(0))
	e.write(ctx, e.step(time.Millisecond))
	assert.True(t, e.failing)
	assert.Equal(t, int64(2), e.Status().WriteErrors)

	sink.setErr(nil)
	e.write(ctx, e.step(2*time.Millisecond))
	assert.False(t, e.failing)
	assert.Len(t, sink.snapshot(), 1)
}

// captureWarnings routes the global logger into a buffer at warn level for
// the rest of the test.
func captureWarnings(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.WarnLevel)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestEngine_RepeatedWriteFailuresWarnAtMostOncePerInterval(t *testing.T) {
	buf := captureWarnings(t)
	sink := &recordingSink{err: errors.New("bus unplugged")}
	e := NewEngine(newAdapter(0, solid("red", red)), sink, EngineConfig{WriteWarnInterval: time.Hour})

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		e.write(ctx, e.step(time.Duration(i)*time.Millisecond))
	}

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "Strip write failed"))
	assert.Zero(t, strings.Count(out, "Strip write still failing"))
	assert.Equal(t, int64(50), e.Status().WriteErrors)
}

func TestEngine_ContinuedWriteFailuresWarnAfterInterval(t *testing.T) {
	buf := captureWarnings(t)
	sink := &recordingSink{err: errors.New("bus unplugged")}
	e := NewEngine(newAdapter(0, solid("red", red)), sink, EngineConfig{WriteWarnInterval: 20 * time.Millisecond})

	ctx := context.Background()
	e.write(ctx, e.step(0))
	e.write(ctx, e.step(time.Millisecond))
	time.Sleep(50 * time.Millisecond)
	e.write(ctx, e.step(2*time.Millisecond))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "Strip write failed"))
	assert.Equal(t, 1, strings.Count(out, "Strip write still failing"))
	assert.Contains(t, out, `"failed_frames":3`)
	assert.Contains(t, out, `"since_last_warning":2`)
}

func TestEngine_RunBlanksOnExit(t *testing.T) {
	sink := &recordingSink{}
	a := newAdapter(0, solid("red", red))
	require.NoError(t, a.Start())
	e := NewEngine(a, sink, EngineConfig{FPS: 200, BlankOnExit: true})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, e.Run(ctx))

	frames := sink.snapshot()
	require.GreaterOrEqual(t, len(frames), 2)
	requireSolid(t, frames[0], red)
	requireSolid(t, frames[len(frames)-1], color.Off)
}
