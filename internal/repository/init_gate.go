package repository

import (
	"sync"

	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/domain"
)

// initGate records the outcome of the last Initialize call. Create and
// List consult it so that an uninitialized or failed store is reported as
// a StorageInitError instead of an I/O error.
type initGate struct {
	mu    sync.RWMutex
	ready bool
	err   error
}

func (g *initGate) record(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ready = err == nil
	g.err = err
}

func (g *initGate) check() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.ready {
		return nil
	}
	if g.err != nil {
		return domain.NewStorageInitError("run store initialization failed", g.err)
	}
	return domain.NewStorageInitError("run store not initialized", nil)
}
