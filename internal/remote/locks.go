package remote

import (
	"context"
	"net/http"
	"net/url"

	"lock-sync-backend/internal/lock"
)

var _ lock.Vendor = (*Client)(nil)

// statusResponse is the body of both status endpoints. The plain endpoint answers with plain words,
// the remote-operate endpoint with kAug* codes.
type statusResponse struct {
	Status    string `json:"status"`
	DoorState string `json:"doorState"`
}

type lockInfoResponse struct {
	LockName    string `json:"LockName"`
	BatteryInfo struct {
		WarningState string `json:"warningState"`
	} `json:"batteryInfo"`
}

var lockStatusCodes = map[string]lock.LockState{
	"kAugLockState_Locked":   lock.StateLocked,
	"kAugLockState_Unlocked": lock.StateUnlocked,
}

var doorStateCodes = map[string]lock.DoorContact{
	"kAugDoorState_Open":    lock.DoorOpen,
	"kAugDoorState_Ajar":    lock.DoorOpen,
	"kAugDoorState_Closed":  lock.DoorClosed,
	"kAugDoorState_Unknown": lock.DoorUnknown,
	"kAugDoorState_Init":    lock.DoorUnknown,
}

func (r statusResponse) toStatus() lock.Status {
	st, ok := lockStatusCodes[r.Status]
	if !ok {
		st = lock.ParseLockState(r.Status)
	}
	door, ok := doorStateCodes[r.DoorState]
	if !ok {
		door = lock.ParseDoorContact(r.DoorState)
	}
	return lock.Status{LockState: st, DoorContact: door}
}

func lockPath(format, id string) string {
	return "/" + format + "/" + url.PathEscape(id)
}

// QueryStatus reads the last status known to the vendor.
func (c *Client) QueryStatus(ctx context.Context, lockID string) (lock.Status, error) {
	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, lockPath("locks", lockID)+"/status", nil, &resp); err != nil {
		return lock.Status{}, err
	}
	return resp.toStatus(), nil
}

// ForceStatus asks the lock itself for its status through the bridge.
func (c *Client) ForceStatus(ctx context.Context, lockID string) (lock.Status, error) {
	var resp statusResponse
	if err := c.do(ctx, http.MethodPut, lockPath("remoteoperate", lockID)+"/status", nil, &resp); err != nil {
		return lock.Status{}, err
	}
	return resp.toStatus(), nil
}

// Lock sends the lock command. The vendor retries at most once so a timed out call cannot fire later.
func (c *Client) Lock(ctx context.Context, lockID string) error {
	return c.do(ctx, http.MethodPut, lockPath("remoteoperate", lockID)+"/lock?retryLimit=1", nil, nil)
}

// Unlock sends the unlock command.
func (c *Client) Unlock(ctx context.Context, lockID string) error {
	return c.do(ctx, http.MethodPut, lockPath("remoteoperate", lockID)+"/unlock?retryLimit=1", nil, nil)
}

// LockInfo reads the lock details, of which only the battery warning state is used.
func (c *Client) LockInfo(ctx context.Context, lockID string) (lock.Info, error) {
	var resp lockInfoResponse
	if err := c.do(ctx, http.MethodGet, lockPath("locks", lockID), nil, &resp); err != nil {
		return lock.Info{}, err
	}
	return lock.Info{BatteryWarningState: resp.BatteryInfo.WarningState}, nil
}

type webhookRequest struct {
	URL               string   `json:"url"`
	ClientID          string   `json:"clientID"`
	Method            string   `json:"method"`
	NotificationTypes []string `json:"notificationTypes"`
}

// RegisterWebhook subscribes the configured webhook URL to the lock's operation and battery events.
func (c *Client) RegisterWebhook(ctx context.Context, lockID string) error {
	body := webhookRequest{
		URL:               c.cfg.WebhookURL,
		ClientID:          c.cfg.ClientID,
		Method:            http.MethodPost,
		NotificationTypes: []string{"operation", "battery"},
	}
	return c.do(ctx, http.MethodPost, lockPath("webhook", lockID), body, nil)
}

// UnregisterWebhook removes this client's webhook from the lock.
func (c *Client) UnregisterWebhook(ctx context.Context, lockID string) error {
	return c.do(ctx, http.MethodDelete, lockPath("webhook", lockID)+"/"+url.PathEscape(c.cfg.ClientID), nil, nil)
}

type pinCommand struct {
	PartnerUserID string `json:"partnerUserID"`
	PIN           string `json:"pin,omitempty"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Action        string `json:"action"`
	AccessType    string `json:"accessType"`
}

type pinRequest struct {
	Commands []pinCommand `json:"commands"`
	Webhook  string       `json:"webhook,omitempty"`
}

const pinFirstName = "Lock Sync PIN"

func (c *Client) pinCommand(ctx context.Context, lockID string, cmd pinCommand) error {
	body := pinRequest{Commands: []pinCommand{cmd}, Webhook: c.cfg.PinWebhookURL}
	return c.do(ctx, http.MethodPost, lockPath("locks", lockID)+"/pins", body, nil)
}

// LoadPIN replaces any PIN with the same code, then loads it. The PIN is expected to be validated.
func (c *Client) LoadPIN(ctx context.Context, lockID, pin, name string) error {
	if err := c.DeletePIN(ctx, lockID, pin, name); err != nil {
		return err
	}
	return c.pinCommand(ctx, lockID, pinCommand{
		PartnerUserID: pin,
		PIN:           pin,
		FirstName:     pinFirstName,
		LastName:      name,
		Action:        "load",
		AccessType:    "always",
	})
}

// DeletePIN removes a PIN. The result is reported asynchronously on the PIN webhook.
func (c *Client) DeletePIN(ctx context.Context, lockID, pin, name string) error {
	return c.pinCommand(ctx, lockID, pinCommand{
		PartnerUserID: pin,
		FirstName:     pinFirstName,
		LastName:      name,
		Action:        "delete",
		AccessType:    "always",
	})
}
