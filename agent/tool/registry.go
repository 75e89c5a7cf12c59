package tool

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

// Registry maps tool names to descriptors. Register is serialised by a mutex
// and publishes a fresh immutable snapshot; lookups never lock.
type Registry struct {
	mu    sync.Mutex
	tools atomic.Pointer[map[string]Descriptor]
}

func NewRegistry() *Registry {
	r := &Registry{}
	empty := map[string]Descriptor{}
	r.tools.Store(&empty)
	return r
}

func (r *Registry) Register(d Descriptor) error {
	d.Name = strings.TrimSpace(d.Name)
	if err := d.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.tools.Load()
	if _, exists := current[d.Name]; exists {
		return fmt.Errorf("%w: %s", contractx.ErrDuplicateTool, d.Name)
	}

	next := make(map[string]Descriptor, len(current)+1)
	maps.Copy(next, current)
	next[d.Name] = cloneDescriptor(d)
	r.tools.Store(&next)

	log.Debug().Str("component", "tool_registry").Str("tool", d.Name).Msg("tool registered")
	return nil
}

func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(name string) (Descriptor, error) {
	d, ok := (*r.tools.Load())[strings.TrimSpace(name)]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", contractx.ErrUnknownTool, name)
	}
	return cloneDescriptor(d), nil
}

// List yields every descriptor of the snapshot taken when iteration starts.
// The sequence can be ranged over any number of times.
func (r *Registry) List() iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		snapshot := *r.tools.Load()
		for _, d := range snapshot {
			if !yield(cloneDescriptor(d)) {
				return
			}
		}
	}
}

func (r *Registry) Len() int {
	return len(*r.tools.Load())
}

// Names returns registered tool names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(*r.tools.Load()))
}

func cloneDescriptor(d Descriptor) Descriptor {
	out := d
	out.RequiredArgs = slices.Clone(d.RequiredArgs)
	out.OptionalArgs = slices.Clone(d.OptionalArgs)
	return out
}
