package api

import (
	"lock-sync-backend/internal/lock"
	"lock-sync-backend/internal/store"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	locks   *lock.Service
	store   store.Store
	webpush *webpush.Options
	schema  *jsonschema.Schema
}

// NewHandler creates a new API handler. The store may be nil, in which case history and
// subscriptions are unavailable.
func NewHandler(svc *lock.Service, s store.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		locks:   svc,
		store:   s,
		webpush: webpushOptions,
		schema:  payloadSchema,
	}
}
