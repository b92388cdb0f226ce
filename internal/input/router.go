package input

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/stripd/internal/control"
)

// Defaults for dial handling.
const (
	DefaultRotaryDivisor  = 15
	DefaultRotaryDebounce = 50 * time.Millisecond
)

// Publisher receives the control events produced by the router.
type Publisher interface {
	Publish(ev control.Event) bool
}

// Router resolves triggers against the bindings and publishes the result.
// Dial triggers are debounced: rotation arriving within the quiet period is
// summed into one event.
type Router struct {
	bindings Bindings
	pub      Publisher
	debounce time.Duration

	mu         sync.Mutex
	debouncers map[string]*rotaryDebouncer
}

// NewRouter creates a router. bindings must be compiled.
func NewRouter(bindings Bindings, pub Publisher, debounce time.Duration) *Router {
	return &Router{
		bindings:   bindings,
		pub:        pub,
		debounce:   debounce,
		debouncers: make(map[string]*rotaryDebouncer),
	}
}

// Handle resolves and publishes one trigger. It reports whether a binding
// matched.
func (r *Router) Handle(t Trigger) bool {
	b, ok := r.bindings.Match(t)
	if !ok {
		log.Trace().Stringer("trigger", t).Msg("No binding for trigger")
		return false
	}

	log.Debug().
		Stringer("trigger", t).
		Str("trigger_id", t.ID).
		Str("event", b.Event).
		Msg("Trigger matched binding")

	if t.Steps != 0 && r.debounce > 0 {
		r.debouncer(t.Device, b).add(t)
		return true
	}

	r.pub.Publish(b.Build(t))
	return true
}

// Flush publishes any pending debounced rotation immediately.
func (r *Router) Flush() {
	r.mu.Lock()
	pending := make([]*rotaryDebouncer, 0, len(r.debouncers))
	for _, d := range r.debouncers {
		pending = append(pending, d)
	}
	r.mu.Unlock()

	for _, d := range pending {
		d.fire()
	}
}

func (r *Router) debouncer(device string, b *Binding) *rotaryDebouncer {
	key := device + "\x00" + b.Action + "\x00" + b.Event

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.debouncers[key]
	if !ok {
		d = &rotaryDebouncer{
			binding:      b,
			pub:          r.pub,
			debounceTime: r.debounce,
		}
		log.Debug().
			Str("device", device).
			Dur("debounce", r.debounce).
			Msg("Created rotary debouncer")
		r.debouncers[key] = d
	}
	return d
}

// rotaryDebouncer accumulates rotation and fires once after a quiet period.
type rotaryDebouncer struct {
	mu               sync.Mutex
	accumulatedSteps int
	last             Trigger
	timer            *time.Timer
	debounceTime     time.Duration
	binding          *Binding
	pub              Publisher
}

func (d *rotaryDebouncer) add(t Trigger) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.accumulatedSteps += abs(t.Steps)
	d.last = t

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounceTime, d.fire)
}

func (d *rotaryDebouncer) fire() {
	d.mu.Lock()
	steps := d.accumulatedSteps
	d.accumulatedSteps = 0
	t := d.last
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	if steps == 0 {
		return
	}

	t.Steps = steps
	log.Debug().
		Str("device", t.Device).
		Int("net_steps", steps).
		Msg("Rotary debounced - publishing")
	d.pub.Publish(d.binding.Build(t))
}
