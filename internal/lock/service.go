package lock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"lock-sync-backend/internal/parse"
)

// Vendor is the full remote capability set used by the service.
type Vendor interface {
	Remote
	LockInfo(ctx context.Context, lockID string) (Info, error)
	RegisterWebhook(ctx context.Context, lockID string) error
	UnregisterWebhook(ctx context.Context, lockID string) error
	LoadPIN(ctx context.Context, lockID, pin, name string) error
	DeletePIN(ctx context.Context, lockID, pin, name string) error
}

// Repository persists managed locks and their cached state.
type Repository interface {
	StateWriter
	UpsertLock(ctx context.Context, lockID, name string) error
	DeleteLock(ctx context.Context, lockID string) error
	LoadState(ctx context.Context, lockID string) (Snapshot, Ledger, bool, error)
}

// Options tunes the service.
type Options struct {
	BatteryCooldown time.Duration
	CommandSource   string
}

// Service wires the registry, dispatcher, reconciler and emitter around a vendor client.
type Service struct {
	registry   *Registry
	vendor     Vendor
	repo       Repository
	emitter    *Emitter
	dispatcher *Dispatcher
	reconciler *Reconciler
}

// NewService creates a service. repo may be nil, in which case nothing is persisted.
func NewService(vendor Vendor, repo Repository, sink Sink, opts Options) *Service {
	registry := NewRegistry(opts.BatteryCooldown)
	emitter := NewEmitter(sink)

	var writer StateWriter
	if repo != nil {
		writer = repo
	}
	return &Service{
		registry:   registry,
		vendor:     vendor,
		repo:       repo,
		emitter:    emitter,
		dispatcher: NewDispatcher(registry, vendor, emitter, writer, opts.CommandSource),
		reconciler: NewReconciler(registry, emitter, writer),
	}
}

// Registry exposes the managed devices.
func (s *Service) Registry() *Registry { return s.registry }

// RequestChange forwards to the dispatcher.
func (s *Service) RequestChange(ctx context.Context, lockID string, target LockState) (Outcome, error) {
	return s.dispatcher.RequestChange(ctx, lockID, target)
}

// Submit starts a change without waiting for its outcome.
func (s *Service) Submit(ctx context.Context, lockID string, target LockState) *Pending {
	return s.dispatcher.Submit(ctx, lockID, target)
}

// HandlePayload forwards to the reconciler.
func (s *Service) HandlePayload(ctx context.Context, p Payload) error {
	return s.reconciler.HandlePayload(ctx, p)
}

// Snapshot returns the current state of a lock.
func (s *Service) Snapshot(lockID string) (Snapshot, error) {
	dev, err := s.registry.Lookup(lockID)
	if err != nil {
		return Snapshot{}, err
	}
	return dev.Snapshot(), nil
}

// Onboard starts managing a lock: it is persisted, the cached state restored, the vendor webhook
// registered and the state hydrated from the authoritative status endpoint.
// Webhook and hydration failures are logged; the lock stays managed and unavailable.
func (s *Service) Onboard(ctx context.Context, lockID, name string) error {
	lockID = strings.TrimSpace(lockID)
	if lockID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if s.repo != nil {
		if err := s.repo.UpsertLock(ctx, lockID, name); err != nil {
			return fmt.Errorf("failed to save lock %s: %w", lockID, err)
		}
	}

	dev, created := s.registry.Add(lockID)
	if created && s.repo != nil {
		snap, ledger, found, err := s.repo.LoadState(ctx, lockID)
		if err != nil {
			log.Printf("lock %s: could not load cached state: %v", lockID, err)
		} else if found {
			dev.Restore(snap, ledger)
		}
	}

	if err := s.vendor.RegisterWebhook(ctx, lockID); err != nil {
		log.Printf("lock %s: webhook registration failed: %v", lockID, err)
	}
	if err := s.Hydrate(ctx, lockID); err != nil {
		log.Printf("lock %s: initial hydration failed: %v", lockID, err)
	}
	return nil
}

// Remove stops managing a lock and deregisters its webhook.
func (s *Service) Remove(ctx context.Context, lockID string) error {
	if _, err := s.registry.Lookup(lockID); err != nil {
		return err
	}
	if err := s.vendor.UnregisterWebhook(ctx, lockID); err != nil {
		log.Printf("lock %s: webhook deregistration failed: %v", lockID, err)
	}
	if s.repo != nil {
		if err := s.repo.DeleteLock(ctx, lockID); err != nil {
			return fmt.Errorf("failed to delete lock %s: %w", lockID, err)
		}
	}
	s.registry.Remove(lockID)
	return nil
}

// Hydrate re-derives the state from the status endpoint, then refreshes the battery and leaves the
// cooldown gate open for the user.
func (s *Service) Hydrate(ctx context.Context, lockID string) error {
	dev, err := s.registry.Lookup(lockID)
	if err != nil {
		return err
	}
	if err := s.syncStatus(ctx, dev, true); err != nil {
		return err
	}
	if err := s.RefreshBattery(ctx, lockID); err != nil {
		log.Printf("lock %s: battery refresh failed: %v", lockID, err)
	}
	dev.RefreshGate().Clear()
	return nil
}

// ResyncAll re-reads the status of every managed lock. Locks with a remote command in flight keep
// their optimistic lock state.
func (s *Service) ResyncAll(ctx context.Context) error {
	var errs []error
	for _, id := range s.registry.IDs() {
		dev, err := s.registry.Lookup(id)
		if err != nil {
			continue
		}
		if err := s.syncStatus(ctx, dev, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) syncStatus(ctx context.Context, dev *Device, initial bool) error {
	status, err := s.vendor.QueryStatus(ctx, dev.ID())
	if err != nil {
		dev.update(func(snap *Snapshot, _ Ledger) {
			snap.setAvailable(false)
		})
		persist(ctx, s.repo, dev)
		return fmt.Errorf("status query for %s failed: %w", dev.ID(), err)
	}
	dev.updateUnlessBusy(func(snap *Snapshot, busy bool) {
		snap.setAvailable(true)
		snap.setDoorContact(status.DoorContact)
		if !initial && busy {
			return
		}
		if status.LockState.Commandable() {
			snap.setLockState(status.LockState)
		}
		snap.Synced = true
	})
	persist(ctx, s.repo, dev)
	return nil
}

// RefreshBattery reads the battery state, at most once per cooldown window.
func (s *Service) RefreshBattery(ctx context.Context, lockID string) error {
	dev, err := s.registry.Lookup(lockID)
	if err != nil {
		return err
	}
	gate := dev.RefreshGate()
	if err := gate.TryAcquire(); err != nil {
		return err
	}
	info, err := s.vendor.LockInfo(ctx, lockID)
	if err != nil {
		gate.Clear()
		return fmt.Errorf("battery refresh for %s failed: %w", lockID, err)
	}
	dev.update(func(snap *Snapshot, _ Ledger) {
		snap.setBatteryWarning(BatteryWarning(info.BatteryWarningState))
	})
	persist(ctx, s.repo, dev)
	return nil
}

// ForceRefresh asks the lock itself for its state. An unknown answer yields ErrStatusUnknown.
func (s *Service) ForceRefresh(ctx context.Context, lockID string) (Snapshot, error) {
	dev, err := s.registry.Lookup(lockID)
	if err != nil {
		return Snapshot{}, err
	}
	status, err := s.vendor.ForceStatus(ctx, lockID)
	if err != nil {
		return dev.Snapshot(), fmt.Errorf("forced status for %s failed: %w", lockID, err)
	}
	if status.LockState == StateUnknown {
		return dev.Snapshot(), ErrStatusUnknown
	}
	snap := dev.update(func(snap *Snapshot, _ Ledger) {
		snap.setLockState(status.LockState)
		snap.setDoorContact(status.DoorContact)
		snap.Synced = true
	})
	persist(ctx, s.repo, dev)
	return snap, nil
}

// SetPIN loads a keypad PIN. Invalid PINs are rejected before any remote call.
func (s *Service) SetPIN(ctx context.Context, lockID, pin, name string) error {
	if _, err := s.registry.Lookup(lockID); err != nil {
		return err
	}
	code, err := parse.PIN(pin)
	if err != nil {
		return &ValidationError{Field: "pin", Reason: err.Error()}
	}
	if err := s.vendor.LoadPIN(ctx, lockID, code, parse.PINName(name)); err != nil {
		return fmt.Errorf("loading pin on %s failed: %w", lockID, err)
	}
	return nil
}

// DeletePIN removes a keypad PIN. Invalid PINs are rejected before any remote call.
func (s *Service) DeletePIN(ctx context.Context, lockID, pin string) error {
	if _, err := s.registry.Lookup(lockID); err != nil {
		return err
	}
	code, err := parse.PIN(pin)
	if err != nil {
		return &ValidationError{Field: "pin", Reason: err.Error()}
	}
	if err := s.vendor.DeletePIN(ctx, lockID, code, parse.PINName("")); err != nil {
		return fmt.Errorf("deleting pin on %s failed: %w", lockID, err)
	}
	return nil
}

// PinSyncIssue is one entry of a PIN sync digest.
type PinSyncIssue struct {
	Reason string `json:"reason"`
}

// PinSyncReport is the body of the PIN webhook.
type PinSyncReport struct {
	LockID  string `json:"lockId"`
	Message string `json:"message"`
	Digest  struct {
		Conflict []PinSyncIssue `json:"conflict"`
		Error    []PinSyncIssue `json:"error"`
	} `json:"digest"`
}

const (
	pinSyncFail        = "PinSyncFail"
	pinDoesNotExistMsg = "Unable to set intent state for pin: No pin given or could not find pin per lock ID and user ID"
)

// HandlePinSync turns a failed PIN sync report into a notification. It reports whether one was sent.
func (s *Service) HandlePinSync(r PinSyncReport) bool {
	if r.Message != pinSyncFail {
		return false
	}
	if _, err := s.registry.Lookup(r.LockID); err != nil {
		log.Printf("pin sync: %v, ignored", err)
		return false
	}
	reasons := make([]string, 0, len(r.Digest.Conflict)+len(r.Digest.Error))
	for _, c := range r.Digest.Conflict {
		reasons = append(reasons, c.Reason)
	}
	for _, e := range r.Digest.Error {
		reasons = append(reasons, e.Reason)
	}
	msg := strings.Join(reasons, ", ")
	// Deleting a PIN that was never loaded is reported as a failure; nothing to tell anyone.
	if msg == pinDoesNotExistMsg {
		log.Printf("pin sync: pin does not exist, ignored")
		return false
	}
	s.emitter.Send(r.LockID, KindPinSyncFailed, map[string]string{"reason": msg})
	return true
}
