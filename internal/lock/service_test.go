package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, vendor *fakeVendor) (*Service, *memoryRepo, *memorySink) {
	t.Helper()
	repo := newMemoryRepo()
	sink := &memorySink{}
	svc := NewService(vendor, repo, sink, Options{BatteryCooldown: time.Hour})
	return svc, repo, sink
}

func TestService_OnboardHydrates(t *testing.T) {
	vendor := &fakeVendor{}
	svc, repo, _ := newTestService(t, vendor)

	require.NoError(t, svc.Onboard(context.Background(), " L1 ", "Front door"))

	snap, err := svc.Snapshot("L1")
	require.NoError(t, err)
	assert.Equal(t, StateLocked, snap.LockState)
	assert.Equal(t, DoorClosed, snap.DoorContact)
	assert.True(t, snap.Available)
	assert.True(t, snap.Synced)
	assert.False(t, snap.BatteryWarning)

	assert.Equal(t, []string{"register_webhook", "status", "lock_info"}, vendor.Calls())
	assert.Equal(t, "Front door", repo.locks["L1"])

	dev, err := svc.Registry().Lookup("L1")
	require.NoError(t, err)
	assert.False(t, dev.RefreshGate().Pending(), "hydration leaves the refresh gate open")
}

func TestService_OnboardRestoresCachedLedger(t *testing.T) {
	vendor := &fakeVendor{}
	svc, repo, sink := newTestService(t, vendor)
	repo.states["L1"] = Snapshot{LockState: StateUnlocked, DoorContact: DoorClosed}
	repo.ledgers["L1"] = Ledger{CategoryLockState: 500}

	require.NoError(t, svc.Onboard(context.Background(), "L1", ""))

	// The event predates the cached ledger entry.
	require.NoError(t, svc.HandlePayload(context.Background(), lockPayload("L1", "unlock", 400)))
	snap, _ := svc.Snapshot("L1")
	assert.Equal(t, StateLocked, snap.LockState)
	assert.Empty(t, sink.Items())
}

func TestService_OnboardKeepsLockWhenHydrationFails(t *testing.T) {
	vendor := &fakeVendor{
		QueryStatusFunc: func(context.Context, string) (Status, error) {
			return Status{}, errors.New("unauthorized")
		},
	}
	svc, _, _ := newTestService(t, vendor)

	require.NoError(t, svc.Onboard(context.Background(), "L1", ""))
	snap, err := svc.Snapshot("L1")
	require.NoError(t, err)
	assert.False(t, snap.Available)
	assert.Equal(t, StateUnknown, snap.LockState)
}

func TestService_OnboardRejectsEmptyID(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeVendor{})

	err := svc.Onboard(context.Background(), "  ", "")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestService_Remove(t *testing.T) {
	vendor := &fakeVendor{}
	svc, repo, _ := newTestService(t, vendor)
	ctx := context.Background()
	require.NoError(t, svc.Onboard(ctx, "L1", ""))

	require.NoError(t, svc.Remove(ctx, "L1"))
	assert.Equal(t, 1, vendor.count("unregister_webhook"))
	assert.NotContains(t, repo.locks, "L1")

	_, err := svc.Snapshot("L1")
	assert.ErrorIs(t, err, ErrUnknownDevice)
	assert.ErrorIs(t, svc.Remove(ctx, "L1"), ErrUnknownDevice)
}

func TestService_BatteryRefreshCooldown(t *testing.T) {
	vendor := &fakeVendor{
		LockInfoFunc: func(context.Context, string) (Info, error) {
			return Info{BatteryWarningState: "lock_state_battery_warning_low"}, nil
		},
	}
	svc, _, _ := newTestService(t, vendor)
	ctx := context.Background()
	require.NoError(t, svc.Onboard(ctx, "L1", ""))
	before := vendor.count("lock_info")

	require.NoError(t, svc.RefreshBattery(ctx, "L1"))
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, svc.RefreshBattery(ctx, "L1"), ErrRefreshInProgress)
	}
	assert.Equal(t, before+1, vendor.count("lock_info"))

	snap, _ := svc.Snapshot("L1")
	assert.True(t, snap.BatteryWarning)
}

func TestService_BatteryRefreshFailureReopensGate(t *testing.T) {
	calls := 0
	vendor := &fakeVendor{
		LockInfoFunc: func(context.Context, string) (Info, error) {
			calls++
			if calls == 1 {
				return Info{}, errors.New("boom")
			}
			return Info{BatteryWarningState: batteryWarningNone}, nil
		},
	}
	reg, _ := newTestDevice(t, "L1", Snapshot{})
	svc := NewService(vendor, nil, nil, Options{})
	svc.registry = reg

	assert.Error(t, svc.RefreshBattery(context.Background(), "L1"))
	assert.NoError(t, svc.RefreshBattery(context.Background(), "L1"))
}

func TestService_ForceRefresh(t *testing.T) {
	vendor := &fakeVendor{
		ForceStatusFunc: func(context.Context, string) (Status, error) {
			return Status{LockState: StateUnlocked, DoorContact: DoorOpen}, nil
		},
	}
	svc, _, _ := newTestService(t, vendor)
	ctx := context.Background()
	require.NoError(t, svc.Onboard(ctx, "L1", ""))

	dev, _ := svc.Registry().Lookup("L1")
	dev.update(func(s *Snapshot, _ Ledger) { s.Synced = false })

	snap, err := svc.ForceRefresh(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, StateUnlocked, snap.LockState)
	assert.Equal(t, DoorOpen, snap.DoorContact)
	assert.True(t, snap.Synced)

	vendor.ForceStatusFunc = func(context.Context, string) (Status, error) {
		return Status{LockState: StateUnknown}, nil
	}
	snap, err = svc.ForceRefresh(ctx, "L1")
	assert.ErrorIs(t, err, ErrStatusUnknown)
	assert.Equal(t, StateUnlocked, snap.LockState, "an unknown answer leaves the state alone")
}

func TestService_ResyncKeepsInFlightState(t *testing.T) {
	vendor := &fakeVendor{}
	svc, _, _ := newTestService(t, vendor)
	ctx := context.Background()
	require.NoError(t, svc.Onboard(ctx, "A", ""))
	require.NoError(t, svc.Onboard(ctx, "B", ""))

	b, _ := svc.Registry().Lookup("B")
	b.beginCommand(func(s *Snapshot) {
		s.LockState = StateUnlocked
		s.Synced = false
	})
	vendor.QueryStatusFunc = func(_ context.Context, id string) (Status, error) {
		if id == "A" {
			return Status{}, errors.New("gateway timeout")
		}
		return Status{LockState: StateLocked, DoorContact: DoorOpen}, nil
	}

	err := svc.ResyncAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway timeout")

	a, _ := svc.Snapshot("A")
	assert.False(t, a.Available)
	snap := b.Snapshot()
	assert.Equal(t, StateUnlocked, snap.LockState)
	assert.Equal(t, DoorOpen, snap.DoorContact)

	// Once the command settles the next resync takes the remote state again.
	b.endCommand(func(*Snapshot) {})
	require.Error(t, svc.ResyncAll(ctx))
	snap = b.Snapshot()
	assert.Equal(t, StateLocked, snap.LockState)
	assert.True(t, snap.Synced)
}

func TestService_ResyncCorrectsStateAfterRollback(t *testing.T) {
	remote := StateLocked
	vendor := &fakeVendor{
		QueryStatusFunc: func(context.Context, string) (Status, error) {
			return Status{LockState: remote, DoorContact: DoorClosed}, nil
		},
		UnlockFunc: func(context.Context, string) error {
			return errors.New("bridge offline")
		},
	}
	svc, _, _ := newTestService(t, vendor)
	ctx := context.Background()
	require.NoError(t, svc.Onboard(ctx, "L1", ""))

	outcome, err := svc.RequestChange(ctx, "L1", StateUnlocked)
	require.Error(t, err)
	assert.Equal(t, OutcomeRolledBack, outcome)

	// Someone unlocks by hand and the push event is lost.
	remote = StateUnlocked
	require.NoError(t, svc.ResyncAll(ctx))

	snap, err := svc.Snapshot("L1")
	require.NoError(t, err)
	assert.Equal(t, StateUnlocked, snap.LockState)
	assert.True(t, snap.Synced)
}

func TestService_ResyncCorrectsStateAfterUnconfirmedCommand(t *testing.T) {
	remote := StateLocked
	vendor := &fakeVendor{
		QueryStatusFunc: func(context.Context, string) (Status, error) {
			return Status{LockState: remote, DoorContact: DoorClosed}, nil
		},
	}
	svc, _, _ := newTestService(t, vendor)
	ctx := context.Background()
	require.NoError(t, svc.Onboard(ctx, "L1", ""))

	outcome, err := svc.RequestChange(ctx, "L1", StateUnlocked)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	snap, _ := svc.Snapshot("L1")
	assert.False(t, snap.Synced, "the webhook never arrives")

	// The lock relocked itself without telling us.
	require.NoError(t, svc.ResyncAll(ctx))
	snap, _ = svc.Snapshot("L1")
	assert.Equal(t, StateLocked, snap.LockState)
	assert.True(t, snap.Synced)
}

func TestService_PINValidation(t *testing.T) {
	vendor := &fakeVendor{}
	svc, _, _ := newTestService(t, vendor)
	ctx := context.Background()
	require.NoError(t, svc.Onboard(ctx, "L1", ""))
	before := len(vendor.Calls())

	for _, pin := range []string{"", "12", "12a4", "1234567"} {
		err := svc.SetPIN(ctx, "L1", pin, "Guest")
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "pin %q", pin)
		assert.Equal(t, "pin", verr.Field)

		err = svc.DeletePIN(ctx, "L1", pin)
		require.True(t, errors.As(err, &verr), "pin %q", pin)
	}
	assert.Len(t, vendor.Calls(), before, "invalid pins never reach the vendor")

	require.NoError(t, svc.SetPIN(ctx, "L1", " 2468 ", "Guest"))
	require.NoError(t, svc.DeletePIN(ctx, "L1", "2468"))
	assert.Equal(t, 1, vendor.count("load_pin"))
	assert.Equal(t, 1, vendor.count("delete_pin"))
}

func TestService_HandlePinSync(t *testing.T) {
	svc, _, sink := newTestService(t, &fakeVendor{})
	require.NoError(t, svc.Onboard(context.Background(), "L1", ""))

	ok := svc.HandlePinSync(PinSyncReport{LockID: "L1", Message: "PinSyncSuccess"})
	assert.False(t, ok)

	benign := PinSyncReport{LockID: "L1", Message: pinSyncFail}
	benign.Digest.Error = []PinSyncIssue{{Reason: pinDoesNotExistMsg}}
	assert.False(t, svc.HandlePinSync(benign))

	failed := PinSyncReport{LockID: "L1", Message: pinSyncFail}
	failed.Digest.Conflict = []PinSyncIssue{{Reason: "duplicate pin"}}
	failed.Digest.Error = []PinSyncIssue{{Reason: "keypad offline"}}
	assert.True(t, svc.HandlePinSync(failed))

	unmanaged := failed
	unmanaged.LockID = "L9"
	assert.False(t, svc.HandlePinSync(unmanaged))

	items := sink.Items()
	require.Len(t, items, 1)
	assert.Equal(t, KindPinSyncFailed, items[0].Kind)
	assert.Equal(t, "duplicate pin, keypad offline", items[0].Attributes["reason"])
}
