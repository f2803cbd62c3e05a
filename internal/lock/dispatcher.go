package lock

import (
	"context"
	"fmt"
	"log"
)

// Remote is the command/response side of the vendor API. Calls may fail with a transport error and
// carry no ordering guarantee versus push events. Callers own the timeout policy through ctx.
type Remote interface {
	QueryStatus(ctx context.Context, lockID string) (Status, error)
	ForceStatus(ctx context.Context, lockID string) (Status, error)
	Lock(ctx context.Context, lockID string) error
	Unlock(ctx context.Context, lockID string) error
}

// Outcome describes how a requested change ended.
type Outcome string

const (
	// OutcomeUnchanged means the target already equals the local state; nothing was sent.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeAlreadyConsistent means the remote status already matched the target.
	OutcomeAlreadyConsistent Outcome = "already_consistent"
	// OutcomeApplied means the remote command succeeded.
	OutcomeApplied Outcome = "applied"
	// OutcomeRolledBack means the command failed and the optimistic state was reverted.
	OutcomeRolledBack Outcome = "rolled_back"
	// OutcomeSuperseded means the command failed but a push event had already confirmed the state.
	OutcomeSuperseded Outcome = "superseded"
)

// DefaultCommandSource is the source attribute attached to notifications caused by our own commands.
const DefaultCommandSource = "App"

// Dispatcher performs optimistic lock state changes.
type Dispatcher struct {
	registry *Registry
	remote   Remote
	emitter  *Emitter
	writer   StateWriter
	source   string
}

// NewDispatcher creates a dispatcher. An empty source falls back to DefaultCommandSource.
func NewDispatcher(registry *Registry, remote Remote, emitter *Emitter, writer StateWriter, source string) *Dispatcher {
	if source == "" {
		source = DefaultCommandSource
	}
	return &Dispatcher{
		registry: registry,
		remote:   remote,
		emitter:  emitter,
		writer:   writer,
		source:   source,
	}
}

// Pending is the future of a submitted change.
type Pending struct {
	done    chan struct{}
	outcome Outcome
	err     error
}

// Done is closed once the outcome is known.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the outcome is known or ctx ends.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, p.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Submit runs RequestChange in its own goroutine.
func (d *Dispatcher) Submit(ctx context.Context, lockID string, target LockState) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.outcome, p.err = d.RequestChange(ctx, lockID, target)
	}()
	return p
}

// RequestChange moves the lock to target. The local state is updated before the remote command is
// confirmed; a failed command is rolled back unless a push event confirmed the state in the meantime.
func (d *Dispatcher) RequestChange(ctx context.Context, lockID string, target LockState) (Outcome, error) {
	if !target.Commandable() {
		return "", &ValidationError{Field: "state", Reason: fmt.Sprintf("%q is not one of locked, unlocked, open", target)}
	}
	dev, err := d.registry.Lookup(lockID)
	if err != nil {
		return "", err
	}

	previousLocal := dev.LockState()
	if previousLocal == target {
		return OutcomeUnchanged, nil
	}

	// The local snapshot may be stale from an earlier unconfirmed attempt, so ask the remote.
	previousConfirmed := StateUnknown
	status, err := d.remote.QueryStatus(ctx, lockID)
	if err != nil {
		log.Printf("lock %s: status query before %s failed: %v", lockID, target, err)
	} else {
		previousConfirmed = status.LockState
		if previousConfirmed == target {
			dev.update(func(s *Snapshot, _ Ledger) {
				s.setLockState(target)
			})
			persist(ctx, d.writer, dev)
			return OutcomeAlreadyConsistent, nil
		}
	}

	dev.beginCommand(func(s *Snapshot) {
		s.setLockState(target)
		s.Synced = false
	})
	persist(ctx, d.writer, dev)

	// "open" is physically a superset of unlocking.
	verb := "unlock"
	if target == StateLocked {
		verb = "lock"
		err = d.remote.Lock(ctx, lockID)
	} else {
		err = d.remote.Unlock(ctx, lockID)
	}

	if err == nil {
		dev.endCommand(func(*Snapshot) {})
		d.emitter.Emit(dev, d.triggerFor(target))
		return OutcomeApplied, nil
	}

	outcome := OutcomeRolledBack
	rollback := previousConfirmed
	if rollback == StateUnknown {
		rollback = previousLocal
	}
	dev.endCommand(func(s *Snapshot) {
		if s.Synced {
			outcome = OutcomeSuperseded
			return
		}
		s.setLockState(rollback)
		// A state read from the remote before the attempt is as good as a confirmation.
		s.Synced = previousConfirmed != StateUnknown
	})
	if outcome == OutcomeSuperseded {
		log.Printf("lock %s: %s failed but state was confirmed by an event, keeping it", lockID, verb)
	} else {
		log.Printf("lock %s: %s failed, rolled back to %s", lockID, verb, rollback)
		persist(ctx, d.writer, dev)
	}
	return outcome, fmt.Errorf("%w: %s %s: %w", ErrCommandFailed, verb, lockID, err)
}

func (d *Dispatcher) triggerFor(target LockState) Trigger {
	switch target {
	case StateLocked:
		return Trigger{Kind: KindLocked, Source: d.source}
	case StateOpen:
		return Trigger{Kind: KindOpened}
	}
	return Trigger{Kind: KindUnlocked, Source: d.source}
}
