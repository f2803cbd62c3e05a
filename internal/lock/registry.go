package lock

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

// StateWriter persists a device snapshot. It is a cache; failures are reported, never fatal.
type StateWriter interface {
	SaveState(ctx context.Context, lockID string, s Snapshot, l Ledger) error
}

// Registry holds the managed devices. Different devices are fully independent.
type Registry struct {
	mu       sync.RWMutex
	devices  map[string]*Device
	cooldown time.Duration
}

// NewRegistry creates an empty registry whose devices use the given battery refresh window.
func NewRegistry(cooldown time.Duration) *Registry {
	return &Registry{devices: make(map[string]*Device), cooldown: cooldown}
}

// Lookup returns the device or ErrUnknownDevice.
func (r *Registry) Lookup(id string) (*Device, error) {
	r.mu.RLock()
	d, ok := r.devices[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, id)
	}
	return d, nil
}

// Add registers a device for id, returning the existing one when already present.
func (r *Registry) Add(id string) (*Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[id]; ok {
		return d, false
	}
	d := NewDevice(id, r.cooldown)
	r.devices[id] = d
	return d, true
}

// Remove drops the device and cancels its cooldown.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	d, ok := r.devices[id]
	delete(r.devices, id)
	r.mu.Unlock()
	if ok {
		d.RefreshGate().Clear()
	}
	return ok
}

// IDs returns the managed lock ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func persist(ctx context.Context, w StateWriter, d *Device) {
	if w == nil {
		return
	}
	d.persistMu.Lock()
	defer d.persistMu.Unlock()
	s, l := d.view()
	if err := w.SaveState(ctx, d.ID(), s, l); err != nil {
		log.Printf("lock %s: failed to persist state: %v", d.ID(), err)
	}
}
