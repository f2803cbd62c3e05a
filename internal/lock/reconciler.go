package lock

import (
	"context"
	"fmt"
	"log"
)

// Reconciler merges push events into the device state.
type Reconciler struct {
	registry *Registry
	emitter  *Emitter
	writer   StateWriter
}

// NewReconciler creates a reconciler.
func NewReconciler(registry *Registry, emitter *Emitter, writer StateWriter) *Reconciler {
	return &Reconciler{registry: registry, emitter: emitter, writer: writer}
}

// HandlePayload parses and handles a raw push event.
func (r *Reconciler) HandlePayload(ctx context.Context, p Payload) error {
	ev, err := ParsePayload(p)
	if err != nil {
		return err
	}
	return r.Handle(ctx, ev)
}

// Handle applies one event. Stale events (timestamp not newer than the last accepted one of the
// same category) are discarded without side effects and are not an error.
func (r *Reconciler) Handle(ctx context.Context, ev Event) error {
	dev, err := r.registry.Lookup(ev.LockID())
	if err != nil {
		return err
	}

	admitted := true
	var triggers []Trigger
	gate := func(l Ledger) bool {
		admitted = l.Admit(ev.Category(), ev.Timestamp())
		return admitted
	}

	switch e := ev.(type) {
	case BatteryEvent:
		dev.update(func(s *Snapshot, l Ledger) {
			if !gate(l) {
				return
			}
			s.setBatteryWarning(e.Warning)
		})

	case DoorEvent:
		dev.update(func(s *Snapshot, l Ledger) {
			if !gate(l) {
				return
			}
			prev := s.setDoorContact(e.Contact)
			if prev == e.Contact {
				return
			}
			switch e.Contact {
			case DoorOpen:
				triggers = append(triggers, Trigger{Kind: KindOpened, Door: true})
			case DoorClosed:
				triggers = append(triggers, Trigger{Kind: KindClosed, Door: true})
			}
		})

	case LockEvent:
		if e.Invalid() {
			log.Printf("lock %s: ignoring invalid code entry", dev.ID())
			return nil
		}
		dev.update(func(s *Snapshot, l Ledger) {
			if !gate(l) {
				return
			}
			target := e.Target()
			if prev := s.LockState; prev != target {
				s.setLockState(target)
				// An open lock settles to unlocked on its own; only a lock is worth announcing then.
				if prev != StateOpen || target == StateLocked {
					kind := KindUnlocked
					if target == StateLocked {
						kind = KindLocked
					}
					triggers = append(triggers, Trigger{Kind: kind, Source: e.Source()})
				}
			}
			s.setSecureLock(e.Secure())
			s.Synced = true
		})

	case AvailabilityEvent:
		dev.update(func(s *Snapshot, l Ledger) {
			if !gate(l) {
				return
			}
			if !e.Known {
				log.Printf("lock %s: ignoring system status %q", dev.ID(), e.Code)
				return
			}
			s.setAvailable(e.Online)
		})

	case DoorbellEvent:
		dev.update(func(_ *Snapshot, l Ledger) {
			if !gate(l) {
				return
			}
			triggers = append(triggers, Trigger{Kind: KindDoorbell})
		})

	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedEvent, ev)
	}

	if !admitted {
		log.Printf("lock %s: ignoring %s event older than the last one received", dev.ID(), ev.Category())
		return nil
	}
	persist(ctx, r.writer, dev)
	for _, t := range triggers {
		r.emitter.Emit(dev, t)
	}
	return nil
}
