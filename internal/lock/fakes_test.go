package lock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeVendor is a programmable Vendor. Unset hooks succeed.
type fakeVendor struct {
	mu    sync.Mutex
	calls []string

	QueryStatusFunc func(ctx context.Context, id string) (Status, error)
	ForceStatusFunc func(ctx context.Context, id string) (Status, error)
	LockFunc        func(ctx context.Context, id string) error
	UnlockFunc      func(ctx context.Context, id string) error
	LockInfoFunc    func(ctx context.Context, id string) (Info, error)
}

func (f *fakeVendor) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeVendor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeVendor) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeVendor) QueryStatus(ctx context.Context, id string) (Status, error) {
	f.record("status")
	if f.QueryStatusFunc != nil {
		return f.QueryStatusFunc(ctx, id)
	}
	return Status{LockState: StateLocked, DoorContact: DoorClosed}, nil
}

func (f *fakeVendor) ForceStatus(ctx context.Context, id string) (Status, error) {
	f.record("force_status")
	if f.ForceStatusFunc != nil {
		return f.ForceStatusFunc(ctx, id)
	}
	return Status{LockState: StateLocked, DoorContact: DoorClosed}, nil
}

func (f *fakeVendor) Lock(ctx context.Context, id string) error {
	f.record("lock")
	if f.LockFunc != nil {
		return f.LockFunc(ctx, id)
	}
	return nil
}

func (f *fakeVendor) Unlock(ctx context.Context, id string) error {
	f.record("unlock")
	if f.UnlockFunc != nil {
		return f.UnlockFunc(ctx, id)
	}
	return nil
}

func (f *fakeVendor) LockInfo(ctx context.Context, id string) (Info, error) {
	f.record("lock_info")
	if f.LockInfoFunc != nil {
		return f.LockInfoFunc(ctx, id)
	}
	return Info{BatteryWarningState: batteryWarningNone}, nil
}

func (f *fakeVendor) RegisterWebhook(ctx context.Context, id string) error {
	f.record("register_webhook")
	return nil
}

func (f *fakeVendor) UnregisterWebhook(ctx context.Context, id string) error {
	f.record("unregister_webhook")
	return nil
}

func (f *fakeVendor) LoadPIN(ctx context.Context, id, pin, name string) error {
	f.record("load_pin")
	return nil
}

func (f *fakeVendor) DeletePIN(ctx context.Context, id, pin, name string) error {
	f.record("delete_pin")
	return nil
}

// memorySink collects emitted notifications.
type memorySink struct {
	mu    sync.Mutex
	items []Notification
}

func (s *memorySink) Emit(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n)
}

func (s *memorySink) Kinds() []Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Kind, 0, len(s.items))
	for _, n := range s.items {
		out = append(out, n.Kind)
	}
	return out
}

func (s *memorySink) Items() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.items))
	copy(out, s.items)
	return out
}

// memoryRepo is an in-memory Repository.
type memoryRepo struct {
	mu      sync.Mutex
	locks   map[string]string
	states  map[string]Snapshot
	ledgers map[string]Ledger
	saves   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		locks:   map[string]string{},
		states:  map[string]Snapshot{},
		ledgers: map[string]Ledger{},
	}
}

func (r *memoryRepo) SaveState(_ context.Context, id string, s Snapshot, l Ledger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[id] = s
	r.ledgers[id] = l.Clone()
	r.saves++
	return nil
}

func (r *memoryRepo) UpsertLock(_ context.Context, id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks[id] = name
	return nil
}

func (r *memoryRepo) DeleteLock(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locks, id)
	delete(r.states, id)
	delete(r.ledgers, id)
	return nil
}

func (r *memoryRepo) LoadState(_ context.Context, id string) (Snapshot, Ledger, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[id]
	if !ok {
		return Snapshot{}, nil, false, nil
	}
	return s, r.ledgers[id].Clone(), true, nil
}

func ts(v int64) *int64 { return &v }

// newTestDevice registers a device in a fresh registry with the given state.
func newTestDevice(t *testing.T, id string, s Snapshot) (*Registry, *Device) {
	t.Helper()
	reg := NewRegistry(DefaultCooldown)
	dev, _ := reg.Add(id)
	dev.Restore(s, nil)
	return reg, dev
}

func mustParse(t *testing.T, p Payload) Event {
	t.Helper()
	ev, err := ParsePayload(p)
	require.NoError(t, err)
	return ev
}

func lockPayload(id, code string, stamp int64) Payload {
	return Payload{DeviceID: id, EventType: "operation", Event: code, Timestamp: stamp, User: User{ID: "u-1", FirstName: "Ada", LastName: "Lovelace"}}
}
