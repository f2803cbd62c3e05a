package lock

import (
	"fmt"
	"strings"
)

// User identifies who (or what) caused a push event.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Payload is the raw push event as delivered by the webhook or the event stream.
type Payload struct {
	DeviceID  string `json:"deviceId"`
	EventType string `json:"eventType"`
	Event     string `json:"event"`
	User      User   `json:"user"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Event is a parsed push event. The set of implementations is closed.
type Event interface {
	LockID() string
	Category() Category
	// Timestamp returns nil when the vendor did not stamp the event.
	Timestamp() *int64
	isEvent()
}

type header struct {
	lockID string
	ts     *int64
}

func (h header) LockID() string    { return h.lockID }
func (h header) Timestamp() *int64 { return h.ts }
func (header) isEvent()            {}

// BatteryEvent reports the lock or keypad battery warning state.
type BatteryEvent struct {
	header
	Warning bool
}

func (BatteryEvent) Category() Category { return CategoryBattery }

// DoorEvent reports a door sensor change.
type DoorEvent struct {
	header
	Contact DoorContact
}

func (DoorEvent) Category() Category { return CategoryDoorState }

// LockEvent reports a lock operation or status change.
type LockEvent struct {
	header
	Code string
	User User
}

func (LockEvent) Category() Category { return CategoryLockState }

// AvailabilityEvent reports the lock going online or offline. Other status codes arrive with
// Known false and carry no availability.
type AvailabilityEvent struct {
	header
	Online bool
	Known  bool
	Code   string
}

func (AvailabilityEvent) Category() Category { return CategorySystemStatus }

// DoorbellEvent reports a doorbell button press.
type DoorbellEvent struct {
	header
}

func (DoorbellEvent) Category() Category { return CategoryDoorbell }

// Vendor codes.
const (
	codeInvalidCode        = "invalidcode"
	codeLock               = "lock"
	codeOneTouchLock       = "onetouchlock"
	codeSecure             = "secure"
	userDoorStateChanged   = "DoorStateChanged"
	userManualLock         = "manuallock"
	userManualUnlock       = "manualunlock"
	userAutoRelock         = "autorelock"
	batteryWarningNone     = "lock_state_battery_warning_none"
	keypadBatteryNone      = "keypad_battery_none"
	eventOnline            = "online"
	eventOffline           = "offline"
	eventTypeSystem        = "system"
	eventTypeOperation     = "operation"
	eventTypeStatus        = "status"
	eventTypeSystemStatus  = "systemstatus"
	eventTypeBattery       = "battery"
	eventTypeDoorbell      = "doorbell"
	eventTypeDoorbellPress = "lock_doorbell_buttonpress"
)

// BatteryWarning reports whether a lock battery warning state denotes a warning.
func BatteryWarning(warningState string) bool {
	return warningState != batteryWarningNone
}

// ParsePayload converts a raw payload into an Event. Unrecognized event types return ErrUnsupportedEvent.
func ParsePayload(p Payload) (Event, error) {
	h := header{lockID: p.DeviceID}
	// The vendor sends 0 for unstamped events.
	if p.Timestamp != 0 {
		ts := p.Timestamp
		h.ts = &ts
	}

	switch strings.ToLower(p.EventType) {
	case eventTypeSystem:
		return BatteryEvent{header: h, Warning: BatteryWarning(p.Event)}, nil
	case eventTypeBattery:
		return BatteryEvent{header: h, Warning: p.Event != keypadBatteryNone}, nil
	case eventTypeOperation, eventTypeStatus:
		if p.User.ID == userDoorStateChanged {
			return DoorEvent{header: h, Contact: ParseDoorContact(p.Event)}, nil
		}
		return LockEvent{header: h, Code: p.Event, User: p.User}, nil
	case eventTypeSystemStatus:
		switch p.Event {
		case eventOnline:
			return AvailabilityEvent{header: h, Online: true, Known: true, Code: p.Event}, nil
		case eventOffline:
			return AvailabilityEvent{header: h, Online: false, Known: true, Code: p.Event}, nil
		}
		return AvailabilityEvent{header: h, Code: p.Event}, nil
	case eventTypeDoorbell, eventTypeDoorbellPress:
		return DoorbellEvent{header: h}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, p.EventType)
}

// Invalid reports whether the event is an informational wrong-code entry.
func (e LockEvent) Invalid() bool {
	return e.Code == codeInvalidCode
}

// Target maps the vendor code to the lock state it establishes.
func (e LockEvent) Target() LockState {
	switch e.Code {
	case codeLock, codeOneTouchLock, codeSecure:
		return StateLocked
	}
	return StateUnlocked
}

// Secure reports whether the event established a secure (deadbolt) lock.
func (e LockEvent) Secure() bool {
	return e.Code == codeSecure
}

// Source attributes the change to keypad, manual operation, auto-relock or a named user.
func (e LockEvent) Source() string {
	switch {
	case e.Code == codeOneTouchLock:
		return "Keypad"
	case e.User.ID == userManualLock || e.User.ID == userManualUnlock:
		return "Manual"
	case e.User.ID == userAutoRelock:
		return "Auto-lock"
	}
	return strings.TrimSpace("User: " + e.User.FirstName + " " + e.User.LastName)
}
