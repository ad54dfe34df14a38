package permit

import (
	"sort"
	"sync"

	"RestJSON/internal/logger"
	"RestJSON/internal/model"

	"github.com/samber/lo"
)

// Func narrows input for one resource in code.
type Func func(action string, input map[string]any) map[string]any

// Fields provides the input fields each action may write. Resources
// without a registered Func use their declared permit lists; with no list
// for the action the input passes unchanged.
type Fields struct {
	mu     sync.RWMutex
	custom map[string]Func
}

func New() *Fields {
	return &Fields{custom: map[string]Func{}}
}

// Register overrides the declared lists of resource.
func (f *Fields) Register(resource string, fn Func) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.custom[resource] = fn
}

func (f *Fields) Permit(res *model.Resource, action string, input map[string]any) map[string]any {
	f.mu.RLock()
	fn, ok := f.custom[res.Name()]
	f.mu.RUnlock()
	if ok {
		return fn(action, input)
	}

	allowed, declared := res.Permitted(action)
	if !declared {
		return lo.Assign(input)
	}
	out := lo.PickByKeys(input, allowed)
	if dropped := lo.Without(lo.Keys(input), allowed...); len(dropped) > 0 {
		sort.Strings(dropped)
		logger.Debug("unpermitted_params", map[string]any{
			"resource": res.Name(),
			"action":   action,
			"params":   dropped,
		})
	}
	return out
}
