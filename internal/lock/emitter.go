package lock

import (
	"log"
	"time"
)

// Kind is a domain-level notification type.
type Kind string

const (
	KindLocked        Kind = "locked"
	KindUnlocked      Kind = "unlocked"
	KindOpened        Kind = "opened"
	KindClosed        Kind = "closed"
	KindDoorbell      Kind = "doorbell"
	KindPinSyncFailed Kind = "pin_sync_failed"
)

// Notification is what the sink receives.
type Notification struct {
	Kind       Kind              `json:"kind"`
	LockID     string            `json:"lockId"`
	Attributes map[string]string `json:"attributes,omitempty"`
	At         time.Time         `json:"at"`
}

// Source returns the optional source attribute.
func (n Notification) Source() string {
	return n.Attributes["source"]
}

// Sink receives notifications that survived the emission check.
type Sink interface {
	Emit(n Notification)
}

// Trigger is a candidate notification together with the state that justified it.
type Trigger struct {
	Kind   Kind
	Source string
	// Door is set for opened/closed triggers raised by the door sensor; the match is then checked
	// against the door contact instead of the lock state.
	Door bool
}

// matches re-checks the justification against the current snapshot.
func (t Trigger) matches(s Snapshot) bool {
	switch t.Kind {
	case KindLocked:
		return s.LockState == StateLocked
	case KindUnlocked:
		return s.LockState == StateUnlocked || s.LockState == StateOpen
	case KindOpened:
		if t.Door {
			return s.DoorContact == DoorOpen
		}
		return s.LockState == StateUnlocked || s.LockState == StateOpen
	case KindClosed:
		return s.DoorContact == DoorClosed
	}
	return true
}

// Emitter fires triggers only when the state they describe is still current.
type Emitter struct {
	sink Sink
	now  func() time.Time
}

// NewEmitter creates an emitter for the given sink.
func NewEmitter(sink Sink) *Emitter {
	return &Emitter{sink: sink, now: time.Now}
}

// Emit re-reads the device snapshot and forwards the trigger to the sink if it still matches.
// It reports whether the notification was emitted.
func (e *Emitter) Emit(d *Device, t Trigger) bool {
	s := d.Snapshot()
	if !t.matches(s) {
		log.Printf("lock %s: not emitting %s, state changed in the meantime (lock=%s door=%s)", d.ID(), t.Kind, s.LockState, s.DoorContact)
		return false
	}
	var attrs map[string]string
	if t.Source != "" {
		attrs = map[string]string{"source": t.Source}
	}
	e.Send(d.ID(), t.Kind, attrs)
	return true
}

// Send forwards a notification without any state check.
func (e *Emitter) Send(lockID string, kind Kind, attrs map[string]string) {
	if e.sink == nil {
		return
	}
	log.Printf("lock %s: emitting %s %v", lockID, kind, attrs)
	e.sink.Emit(Notification{Kind: kind, LockID: lockID, Attributes: attrs, At: e.now().UTC()})
}
