package store

import (
	"lock-sync-backend/internal/lock"
	"lock-sync-backend/internal/model"
)

// DefaultHistoryLimit caps ListHistory when no limit is given.
const DefaultHistoryLimit = 50

func snapshotRow(lockID string, s lock.Snapshot, l lock.Ledger) model.LockSnapshot {
	return model.LockSnapshot{
		LockID:         lockID,
		LockState:      string(s.LockState),
		DoorContact:    string(s.DoorContact),
		SecureLock:     s.SecureLock,
		BatteryWarning: s.BatteryWarning,
		Synced:         s.Synced,
		Available:      s.Available,
		BatteryTS:      l[lock.CategoryBattery],
		LockStateTS:    l[lock.CategoryLockState],
		DoorStateTS:    l[lock.CategoryDoorState],
		SystemStatusTS: l[lock.CategorySystemStatus],
		DoorbellTS:     l[lock.CategoryDoorbell],
	}
}

// SnapshotFromRow converts a cached row back to the domain snapshot and ledger.
func SnapshotFromRow(row model.LockSnapshot) (lock.Snapshot, lock.Ledger) {
	s := lock.Snapshot{
		LockState:      lock.ParseLockState(row.LockState),
		DoorContact:    lock.ParseDoorContact(row.DoorContact),
		SecureLock:     row.SecureLock,
		BatteryWarning: row.BatteryWarning,
		Synced:         row.Synced,
		Available:      row.Available,
	}
	l := lock.NewLedger()
	l[lock.CategoryBattery] = row.BatteryTS
	l[lock.CategoryLockState] = row.LockStateTS
	l[lock.CategoryDoorState] = row.DoorStateTS
	l[lock.CategorySystemStatus] = row.SystemStatusTS
	l[lock.CategoryDoorbell] = row.DoorbellTS
	return s, l
}
