package node

import (
	"fmt"
	"sort"
	"sync"
)

// serviceState is the lifecycle state of a registered service.
type serviceState int

const (
	stateCreated serviceState = iota
	stateRunning
	stateStopped
	stateFailed
)

// Service is a subsystem the lifecycle manager starts and stops in priority
// order: the event-stream HTTP server, the system-metrics collector, and
// (per cmd/ledgerd) anything else wired onto a running Node.
type Service interface {
	Name() string
	Start() error
	Stop() error
}

type serviceEntry struct {
	svc      Service
	state    serviceState
	err      error
	priority int
}

// lifecycleManager starts and stops a fixed set of services in priority
// order, ascending on start and descending on stop. Grounded on the
// teacher's node.LifecycleManager, trimmed to what this shell's smaller
// service set needs (no shutdown-timeout/grace-period bookkeeping, since
// the shell's own services shut down synchronously).
type lifecycleManager struct {
	mu       sync.Mutex
	services []*serviceEntry
	byName   map[string]*serviceEntry
}

func newLifecycleManager() *lifecycleManager {
	return &lifecycleManager{byName: make(map[string]*serviceEntry)}
}

func (lm *lifecycleManager) register(svc Service, priority int) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if _, exists := lm.byName[svc.Name()]; exists {
		return fmt.Errorf("node: service %q already registered", svc.Name())
	}
	entry := &serviceEntry{svc: svc, state: stateCreated, priority: priority}
	lm.services = append(lm.services, entry)
	lm.byName[svc.Name()] = entry
	return nil
}

func (lm *lifecycleManager) startAll() []error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	ordered := lm.sorted()
	var errs []error
	for _, entry := range ordered {
		if err := entry.svc.Start(); err != nil {
			entry.state = stateFailed
			entry.err = err
			errs = append(errs, fmt.Errorf("start %s: %w", entry.svc.Name(), err))
			continue
		}
		entry.state = stateRunning
	}
	return errs
}

func (lm *lifecycleManager) stopAll() []error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	ordered := lm.sorted()
	var errs []error
	for i := len(ordered) - 1; i >= 0; i-- {
		entry := ordered[i]
		if entry.state != stateRunning {
			continue
		}
		if err := entry.svc.Stop(); err != nil {
			entry.state = stateFailed
			entry.err = err
			errs = append(errs, fmt.Errorf("stop %s: %w", entry.svc.Name(), err))
			continue
		}
		entry.state = stateStopped
	}
	return errs
}

func (lm *lifecycleManager) sorted() []*serviceEntry {
	sorted := make([]*serviceEntry, len(lm.services))
	copy(sorted, lm.services)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].priority < sorted[j].priority })
	return sorted
}
