// Package core orchestrates storing and serving files: validation and
// transforms, durable storage, metadata and the cache in front of it all.
package core

import (
	"sync"
)

var mu sync.RWMutex
var theFacade *Facade

// InitFacade installs the process-wide facade used by request handlers.
func InitFacade(f *Facade) {
	mu.Lock()
	defer mu.Unlock()
	theFacade = f
}

// GetFacade returns the installed facade, or nil before InitFacade.
func GetFacade() *Facade {
	mu.RLock()
	defer mu.RUnlock()
	return theFacade
}
