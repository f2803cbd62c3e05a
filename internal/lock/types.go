package lock

// LockState is the bolt position reported for a lock.
type LockState string

const (
	StateLocked   LockState = "locked"
	StateUnlocked LockState = "unlocked"
	StateOpen     LockState = "open"
	StateUnknown  LockState = "unknown"
)

// ParseLockState maps a plain status string to a LockState. Anything unrecognized is unknown.
func ParseLockState(s string) LockState {
	switch LockState(s) {
	case StateLocked, StateUnlocked, StateOpen:
		return LockState(s)
	}
	return StateUnknown
}

// Commandable reports whether the state can be requested through the dispatcher.
func (s LockState) Commandable() bool {
	return s == StateLocked || s == StateUnlocked || s == StateOpen
}

// DoorContact is the tri-state door sensor reading.
type DoorContact string

const (
	DoorOpen    DoorContact = "open"
	DoorClosed  DoorContact = "closed"
	DoorUnknown DoorContact = "unknown"
)

// ParseDoorContact maps a plain door state string to a DoorContact.
func ParseDoorContact(s string) DoorContact {
	switch DoorContact(s) {
	case DoorOpen, DoorClosed:
		return DoorContact(s)
	}
	return DoorUnknown
}

// Snapshot is the locally cached view of a device.
type Snapshot struct {
	LockState      LockState   `json:"lockState"`
	DoorContact    DoorContact `json:"doorContact"`
	SecureLock     bool        `json:"secureLock"`
	BatteryWarning bool        `json:"batteryWarning"`
	Synced         bool        `json:"synced"`
	Available      bool        `json:"available"`
}

// Locked mirrors the boolean "locked" capability derived from the lock state.
func (s Snapshot) Locked() bool {
	return s.LockState == StateLocked
}

// Status is an authoritative answer of the remote status endpoints.
type Status struct {
	LockState   LockState
	DoorContact DoorContact
}

// Info carries the lock details used for the battery refresh.
type Info struct {
	BatteryWarningState string
}
