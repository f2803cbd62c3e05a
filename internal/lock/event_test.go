package lock

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload(t *testing.T) {
	testCases := []struct {
		name     string
		payload  Payload
		expected Event
	}{
		{
			name:     "Lock battery warning",
			payload:  Payload{DeviceID: "L1", EventType: "system", Event: "lock_state_battery_warning_low", Timestamp: 3},
			expected: BatteryEvent{header: header{lockID: "L1", ts: ts(3)}, Warning: true},
		},
		{
			name:     "Keypad battery fine",
			payload:  Payload{DeviceID: "L1", EventType: "Battery", Event: "keypad_battery_none"},
			expected: BatteryEvent{header: header{lockID: "L1"}, Warning: false},
		},
		{
			name:     "Door sensor",
			payload:  Payload{DeviceID: "L1", EventType: "status", Event: "open", User: User{ID: "DoorStateChanged"}, Timestamp: 9},
			expected: DoorEvent{header: header{lockID: "L1", ts: ts(9)}, Contact: DoorOpen},
		},
		{
			name:     "Lock operation",
			payload:  Payload{DeviceID: "L1", EventType: "OPERATION", Event: "unlock", User: User{ID: "u"}},
			expected: LockEvent{header: header{lockID: "L1"}, Code: "unlock", User: User{ID: "u"}},
		},
		{
			name:     "Online",
			payload:  Payload{DeviceID: "L1", EventType: "systemstatus", Event: "online"},
			expected: AvailabilityEvent{header: header{lockID: "L1"}, Online: true, Known: true, Code: "online"},
		},
		{
			name:     "Unrecognized system status",
			payload:  Payload{DeviceID: "L1", EventType: "systemstatus", Event: "rebooting", Timestamp: 4},
			expected: AvailabilityEvent{header: header{lockID: "L1", ts: ts(4)}, Code: "rebooting"},
		},
		{
			name:     "Doorbell press",
			payload:  Payload{DeviceID: "L1", EventType: "lock_doorbell_buttonpress", Timestamp: 1},
			expected: DoorbellEvent{header: header{lockID: "L1", ts: ts(1)}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := ParsePayload(tc.payload)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ev)
		})
	}
}

func TestParsePayload_Unsupported(t *testing.T) {
	_, err := ParsePayload(Payload{DeviceID: "L1", EventType: "firmware"})
	assert.True(t, errors.Is(err, ErrUnsupportedEvent))
}

func TestLockEvent_Target(t *testing.T) {
	testCases := []struct {
		code   string
		target LockState
		secure bool
	}{
		{"lock", StateLocked, false},
		{"onetouchlock", StateLocked, false},
		{"secure", StateLocked, true},
		{"unlock", StateUnlocked, false},
		{"manualunlock", StateUnlocked, false},
	}
	for _, tc := range testCases {
		t.Run(tc.code, func(t *testing.T) {
			e := LockEvent{Code: tc.code}
			assert.Equal(t, tc.target, e.Target())
			assert.Equal(t, tc.secure, e.Secure())
		})
	}
}

func TestBatteryWarning(t *testing.T) {
	assert.False(t, BatteryWarning("lock_state_battery_warning_none"))
	assert.True(t, BatteryWarning("lock_state_battery_warning_critical"))
}
