package control

import (
	"context"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/stripd/internal/color"
	"github.com/dokzlo13/stripd/internal/compositor"
)

// Default engine settings.
const (
	DefaultFPS           = 50
	DefaultQueueSize     = 64
	DefaultStatsInterval = time.Minute

	// DefaultWriteWarnInterval spaces the reminders logged while strip
	// writes keep failing.
	DefaultWriteWarnInterval = 10 * time.Second
)

// Sink receives rendered frames.
type Sink interface {
	Write(ctx context.Context, f color.Frame) error
}

// EngineConfig holds render loop settings.
type EngineConfig struct {
	FPS           int
	QueueSize     int
	Gamma         float64
	StatsInterval time.Duration
	// BlankOnExit writes an all-off frame when the loop stops.
	BlankOnExit bool
	// WriteWarnInterval is the minimum gap between warnings about a run
	// of failed strip writes.
	WriteWarnInterval time.Duration
}

// Status is a point-in-time view of the engine for reporting.
type Status struct {
	Powered     bool                `json:"powered"`
	Routine     string              `json:"routine,omitempty"`
	Cursor      int                 `json:"cursor"`
	Playlist    []string            `json:"playlist"`
	Compositor  compositor.Snapshot `json:"compositor"`
	FPS         float64             `json:"fps"`
	RenderP95   time.Duration       `json:"render_p95_ns"`
	Dropped     int64               `json:"dropped_events"`
	WriteErrors int64               `json:"write_errors"`
}

// Engine is the single owner of the adapter, playlist and compositor. It
// drains queued control events and renders one frame per tick.
type Engine struct {
	mu      sync.Mutex
	adapter *Adapter
	sink    Sink
	gamma   *color.GammaTable

	interval      time.Duration
	statsInterval time.Duration
	blankOnExit   bool

	events  chan Event
	changes chan State
	start   time.Time
	last    color.Frame

	registry    metrics.Registry
	renderTime  metrics.Timer
	frames      metrics.Meter
	writeErrors metrics.Counter
	applied     metrics.Counter
	failed      metrics.Counter
	dropped     metrics.Counter

	failing     bool
	failedCount int64
	warnedAt    int64
	failWarn    *rate.Limiter
}

// NewEngine creates a render loop around adapter that writes to sink.
func NewEngine(adapter *Adapter, sink Sink, cfg EngineConfig) *Engine {
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = DefaultStatsInterval
	}
	if cfg.WriteWarnInterval <= 0 {
		cfg.WriteWarnInterval = DefaultWriteWarnInterval
	}

	registry := metrics.NewRegistry()
	return &Engine{
		adapter:       adapter,
		sink:          sink,
		gamma:         color.NewGammaTable(cfg.Gamma),
		interval:      time.Second / time.Duration(cfg.FPS),
		statsInterval: cfg.StatsInterval,
		blankOnExit:   cfg.BlankOnExit,
		events:        make(chan Event, cfg.QueueSize),
		changes:       make(chan State, 1),
		registry:      registry,
		renderTime:    metrics.GetOrRegisterTimer("render.time", registry),
		frames:        metrics.GetOrRegisterMeter("render.frames", registry),
		writeErrors:   metrics.GetOrRegisterCounter("driver.errors", registry),
		applied:       metrics.GetOrRegisterCounter("events.applied", registry),
		failed:        metrics.GetOrRegisterCounter("events.failed", registry),
		dropped:       metrics.GetOrRegisterCounter("events.dropped", registry),
		failWarn:      rate.NewLimiter(rate.Every(cfg.WriteWarnInterval), 1),
	}
}

// Interval returns the target frame period.
func (e *Engine) Interval() time.Duration { return e.interval }

// Metrics returns the engine's metrics registry.
func (e *Engine) Metrics() metrics.Registry { return e.registry }

// Changes delivers the latest adapter state after events change it. Only the
// most recent state is kept.
func (e *Engine) Changes() <-chan State { return e.changes }

// Submit queues an event for the next tick. Non-blocking: when the queue is
// full the event is dropped and false is returned.
func (e *Engine) Submit(ev Event) bool {
	select {
	case e.events <- ev:
		return true
	default:
		e.dropped.Inc(1)
		log.Warn().
			Str("event_id", ev.ID).
			Str("kind", string(ev.Kind)).
			Msg("Engine event queue full, dropping event")
		return false
	}
}

// Do runs fn with exclusive access to the adapter, between ticks.
func (e *Engine) Do(fn func(a *Adapter) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.adapter.State()
	err := fn(e.adapter)
	if e.adapter.State() != before {
		e.notify(e.adapter.State())
	}
	return err
}

// Status returns the current engine status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	pl := e.adapter.Playlist()
	names := make([]string, 0, pl.Len())
	for _, r := range pl.Items() {
		names = append(names, r.Name())
	}

	st := e.adapter.State()
	return Status{
		Powered:     st.Powered,
		Routine:     st.Routine,
		Cursor:      st.Cursor,
		Playlist:    names,
		Compositor:  e.adapter.Compositor().Snapshot(),
		FPS:         e.frames.Rate1(),
		RenderP95:   time.Duration(e.renderTime.Percentile(0.95)),
		Dropped:     e.dropped.Count(),
		WriteErrors: e.writeErrors.Count(),
	}
}

// LastFrame returns a copy of the most recently written frame.
func (e *Engine) LastFrame() color.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(color.Frame, len(e.last))
	copy(out, e.last)
	return out
}

// Run renders frames until ctx is cancelled. A slow sink delays the next
// tick instead of queueing frames.
func (e *Engine) Run(ctx context.Context) error {
	e.start = time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()
	stats := time.NewTicker(e.statsInterval)
	defer stats.Stop()
	defer e.frames.Stop()

	log.Info().
		Dur("interval", e.interval).
		Int("pixels", e.adapter.Compositor().PixelCount()).
		Msg("Render loop started")

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil
		case <-stats.C:
			e.logStats()
			continue
		case <-timer.C:
		}

		began := time.Now()
		frame := e.step(began.Sub(e.start))
		e.write(ctx, frame)

		wait := e.interval - time.Since(began)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}

// step applies queued events and renders the frame for now.
func (e *Engine) step(now time.Duration) color.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()

	began := time.Now()
	comp := e.adapter.Compositor()
	comp.SetClock(now)

	changed := false
	for drained := false; !drained; {
		select {
		case ev := <-e.events:
			if e.apply(ev) {
				changed = true
			}
		default:
			drained = true
		}
	}

	frame := comp.Tick(now)
	e.gamma.Apply(frame)
	e.last = frame
	e.renderTime.UpdateSince(began)

	if changed {
		e.notify(e.adapter.State())
	}
	return frame
}

func (e *Engine) apply(ev Event) bool {
	if err := e.adapter.Apply(ev); err != nil {
		e.failed.Inc(1)
		log.Warn().
			Err(err).
			Str("event_id", ev.ID).
			Str("event", ev.String()).
			Str("source", ev.Source).
			Msg("Control event failed")
		return false
	}
	e.applied.Inc(1)
	log.Debug().
		Str("event_id", ev.ID).
		Str("event", ev.String()).
		Str("source", ev.Source).
		Msg("Control event applied")
	return true
}

// write hands the frame to the sink. Failures are logged when they start
// and when they stop, with a rate-limited warning in between; the loop
// keeps running either way.
func (e *Engine) write(ctx context.Context, frame color.Frame) {
	err := e.sink.Write(ctx, frame)
	if err == nil {
		e.frames.Mark(1)
		if e.failing {
			log.Info().Int64("failed_frames", e.failedCount).Msg("Strip writes recovered")
			e.failing = false
			e.failedCount = 0
			e.warnedAt = 0
		}
		return
	}

	e.writeErrors.Inc(1)
	e.failedCount++
	if !e.failing {
		e.failing = true
		e.warnedAt = e.failedCount
		e.failWarn.Allow()
		log.Error().Err(err).Msg("Strip write failed")
		return
	}
	if e.failWarn.Allow() {
		log.Warn().
			Err(err).
			Int64("failed_frames", e.failedCount).
			Int64("since_last_warning", e.failedCount-e.warnedAt).
			Msg("Strip write still failing")
		e.warnedAt = e.failedCount
		return
	}
	log.Trace().Err(err).Int64("failed_frames", e.failedCount).Msg("Strip write still failing")
}

// notify replaces any undelivered state with s.
func (e *Engine) notify(s State) {
	select {
	case <-e.changes:
	default:
	}
	select {
	case e.changes <- s:
	default:
	}
}

func (e *Engine) logStats() {
	log.Debug().
		Float64("fps", e.frames.Rate1()).
		Dur("render_p95", time.Duration(e.renderTime.Percentile(0.95))).
		Int64("events", e.applied.Count()).
		Int64("write_errors", e.writeErrors.Count()).
		Msg("Render loop stats")
}

func (e *Engine) shutdown() {
	if !e.blankOnExit {
		log.Info().Msg("Render loop stopped")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	blank := color.NewFrame(e.adapter.Compositor().PixelCount())
	if err := e.sink.Write(ctx, blank); err != nil {
		log.Warn().Err(err).Msg("Failed to blank strip on exit")
	}
	log.Info().Msg("Render loop stopped")
}
