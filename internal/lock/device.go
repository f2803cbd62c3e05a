package lock

import (
	"sync"
	"time"
)

// Device is the per-lock aggregate. All snapshot and ledger access goes through its mutex so the
// dispatcher and the reconciler never write concurrently.
type Device struct {
	id string

	mu     sync.Mutex
	state  Snapshot
	ledger Ledger

	refresh *CooldownGate

	// inFlight counts remote commands between their optimistic update and their outcome.
	inFlight int

	// persistMu orders cache writes so the last write carries the newest state.
	persistMu sync.Mutex
}

// NewDevice creates a device with an unknown state and an empty ledger.
func NewDevice(id string, cooldown time.Duration) *Device {
	return &Device{
		id: id,
		state: Snapshot{
			LockState:   StateUnknown,
			DoorContact: DoorUnknown,
		},
		ledger:  NewLedger(),
		refresh: NewCooldownGate(cooldown),
	}
}

// ID returns the lock id.
func (d *Device) ID() string {
	return d.id
}

// Snapshot returns a consistent copy of the state.
func (d *Device) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Ledger returns a copy of the timestamp ledger.
func (d *Device) Ledger() Ledger {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ledger.Clone()
}

func (d *Device) view() (Snapshot, Ledger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, d.ledger.Clone()
}

// LockState returns the current lock state.
func (d *Device) LockState() LockState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.LockState
}

// Restore replaces the state and ledger, used when loading the persisted cache.
func (d *Device) Restore(s Snapshot, l Ledger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = s
	d.ledger = NewLedger()
	for k, v := range l {
		d.ledger[k] = v
	}
}

// RefreshGate exposes the cooldown gate owned by the device.
func (d *Device) RefreshGate() *CooldownGate {
	return d.refresh
}

// update runs fn with exclusive access to the state and ledger and returns the resulting snapshot.
func (d *Device) update(fn func(s *Snapshot, l Ledger)) Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.state, d.ledger)
	return d.state
}

// beginCommand applies the optimistic change of a remote command and marks it in flight.
func (d *Device) beginCommand(fn func(s *Snapshot)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight++
	fn(&d.state)
}

// endCommand applies the outcome of a remote command started with beginCommand.
func (d *Device) endCommand(fn func(s *Snapshot)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight--
	fn(&d.state)
}

// updateUnlessBusy is update with an extra flag telling whether a remote command is in flight.
func (d *Device) updateUnlessBusy(fn func(s *Snapshot, busy bool)) Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.state, d.inFlight > 0)
	return d.state
}

// The setters below must be called with d.mu held and return the previous value.

func (s *Snapshot) setLockState(v LockState) LockState {
	prev := s.LockState
	s.LockState = v
	return prev
}

func (s *Snapshot) setDoorContact(v DoorContact) DoorContact {
	prev := s.DoorContact
	s.DoorContact = v
	return prev
}

func (s *Snapshot) setSecureLock(v bool) bool {
	prev := s.SecureLock
	s.SecureLock = v
	return prev
}

func (s *Snapshot) setBatteryWarning(v bool) bool {
	prev := s.BatteryWarning
	s.BatteryWarning = v
	return prev
}

func (s *Snapshot) setAvailable(v bool) bool {
	prev := s.Available
	s.Available = v
	return prev
}
