package common

import (
	"errors"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a native module is administratively halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the module is paused. A nil view or empty
// module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Registry is a PauseView backed by an in-memory set. Governance flips the
// switches; engines only ever read them.
type Registry struct {
	mu     sync.RWMutex
	paused map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{paused: make(map[string]bool)}
}

func (r *Registry) Pause(module string) {
	if r == nil || module == "" {
		return
	}
	r.mu.Lock()
	r.paused[module] = true
	r.mu.Unlock()
}

func (r *Registry) Resume(module string) {
	if r == nil || module == "" {
		return
	}
	r.mu.Lock()
	delete(r.paused, module)
	r.mu.Unlock()
}

func (r *Registry) IsPaused(module string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused[module]
}
