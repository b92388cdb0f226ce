package routine

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
)

// Builder constructs a routine from its definition.
type Builder func(def Definition) (Routine, error)

// Registry maps routine types to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates a registry with the built-in routine types.
func NewRegistry() *Registry {
	r := &Registry{
		builders: make(map[string]Builder),
	}
	r.builders[TypeStatic] = buildStatic
	r.builders[TypeRainbow] = func(def Definition) (Routine, error) {
		return NewRainbow(def.Name, def.Rainbow), nil
	}
	r.builders[TypeSparkle] = func(def Definition) (Routine, error) {
		return NewSparkle(def.Name, def.Sparkle), nil
	}
	r.builders[TypeScript] = func(def Definition) (Routine, error) {
		return NewScript(def.Name, def.Script)
	}
	return r
}

// Register adds a builder for a routine type
func (r *Registry) Register(kind string, b Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[kind]; exists {
		return fmt.Errorf("routine type %q already registered", kind)
	}

	r.builders[kind] = b
	return nil
}

// Build constructs a single routine.
func (r *Registry) Build(def Definition) (Routine, error) {
	r.mu.RLock()
	b, ok := r.builders[def.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown routine type %q", def.Type)
	}
	return b(def)
}

// BuildAll constructs routines in order. Unnamed routines are named after
// their type and position. On error every routine built so far is closed.
func (r *Registry) BuildAll(defs []Definition) ([]Routine, error) {
	routines := make([]Routine, 0, len(defs))
	for i, def := range defs {
		if def.Name == "" {
			def.Name = fmt.Sprintf("%s-%d", def.Type, i+1)
		}
		rt, err := r.Build(def)
		if err != nil {
			CloseAll(routines)
			return nil, fmt.Errorf("routine %d (%s): %w", i+1, def.Name, err)
		}
		log.Debug().Str("routine", def.Name).Str("type", def.Type).Msg("Routine built")
		routines = append(routines, rt)
	}
	return routines, nil
}

// CloseAll releases routines that hold resources (scripted routines).
func CloseAll(routines []Routine) {
	for _, rt := range routines {
		if c, ok := rt.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Str("routine", rt.Name()).Msg("Failed to close routine")
			}
		}
	}
}

// buildStatic never fails: a malformed colour is logged and clamped.
func buildStatic(def Definition) (Routine, error) {
	spec, err := def.Color.Spec()
	if err != nil {
		log.Warn().Err(err).Str("routine", def.Name).Msg("Invalid colour, using clamped value")
	}
	return NewStatic(def.Name, spec), nil
}
