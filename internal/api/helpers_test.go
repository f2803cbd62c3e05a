package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"lock-sync-backend/config"
	"lock-sync-backend/internal/db"
	"lock-sync-backend/internal/lock"
	"lock-sync-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubVendor answers every status query with status and fails commands with cmdErr.
type stubVendor struct {
	mu     sync.Mutex
	status lock.Status
	cmdErr error
	pins   []string
}

func (v *stubVendor) current() lock.Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

func (v *stubVendor) QueryStatus(context.Context, string) (lock.Status, error) {
	return v.current(), nil
}

func (v *stubVendor) ForceStatus(context.Context, string) (lock.Status, error) {
	return v.current(), nil
}

func (v *stubVendor) Lock(context.Context, string) error { return v.cmdErr }

func (v *stubVendor) Unlock(context.Context, string) error { return v.cmdErr }

func (v *stubVendor) LockInfo(context.Context, string) (lock.Info, error) {
	return lock.Info{BatteryWarningState: "lock_state_battery_warning_none"}, nil
}

func (v *stubVendor) RegisterWebhook(context.Context, string) error { return nil }

func (v *stubVendor) UnregisterWebhook(context.Context, string) error { return nil }

func (v *stubVendor) LoadPIN(_ context.Context, _, pin, _ string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pins = append(v.pins, "load:"+pin)
	return nil
}

func (v *stubVendor) DeletePIN(_ context.Context, _, pin, _ string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pins = append(v.pins, "delete:"+pin)
	return nil
}

// recordingSink collects notifications synchronously.
type recordingSink struct {
	mu    sync.Mutex
	items []lock.Notification
}

func (s *recordingSink) Emit(n lock.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n)
}

func (s *recordingSink) Kinds() []lock.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]lock.Kind, 0, len(s.items))
	for _, n := range s.items {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

type testServer struct {
	router *gin.Engine
	svc    *lock.Service
	vendor *stubVendor
	sink   *recordingSink
	store  store.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gormDB, err := db.Init(&config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)

	s := store.NewGormStore(gormDB)
	vendor := &stubVendor{status: lock.Status{LockState: lock.StateLocked, DoorContact: lock.DoorClosed}}
	sink := &recordingSink{}
	svc := lock.NewService(vendor, s, sink, lock.Options{})

	router := NewRouter(svc, s, &webpush.Options{VAPIDPublicKey: "test-public-key"}, config.ServerConfig{
		RateLimitPerSec: 1000,
		CacheTTLSeconds: 1,
	}, nil)
	return &testServer{router: router, svc: svc, vendor: vendor, sink: sink, store: s}
}

func (ts *testServer) onboard(t *testing.T, id, name string) {
	t.Helper()
	require.NoError(t, ts.svc.Onboard(context.Background(), id, name))
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}
