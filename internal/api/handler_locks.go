package api

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lock-sync-backend/internal/lock"
	"lock-sync-backend/internal/store"
)

// lockResponse is a managed lock with its current state.
type lockResponse struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	lock.Snapshot
	Locked bool `json:"locked"`
}

func newLockResponse(id, name string, s lock.Snapshot) lockResponse {
	return lockResponse{ID: id, Name: name, Snapshot: s, Locked: s.Locked()}
}

// ListLocks handles GET /api/locks.
func (h *Handler) ListLocks(c *gin.Context) {
	names := make(map[string]string)
	if h.store != nil {
		locks, err := h.store.ListLocks(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		for _, l := range locks {
			names[l.ID] = l.Name
		}
	}

	ids := h.locks.Registry().IDs()
	response := make([]lockResponse, 0, len(ids))
	for _, id := range ids {
		snap, err := h.locks.Snapshot(id)
		if err != nil {
			// Removed concurrently.
			continue
		}
		response = append(response, newLockResponse(id, names[id], snap))
	}
	c.JSON(http.StatusOK, response)
}

type postLockRequest struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name"`
}

// PostLock handles POST /api/locks, onboarding a lock.
func (h *Handler) PostLock(c *gin.Context) {
	var req postLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.locks.Onboard(c.Request.Context(), req.ID, req.Name); err != nil {
		writeError(c, err)
		return
	}
	snap, err := h.locks.Snapshot(req.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newLockResponse(req.ID, req.Name, snap))
}

// GetLock handles GET /api/locks/:id. With refresh=true the lock itself is asked for its state.
func (h *Handler) GetLock(c *gin.Context) {
	id := c.Param("id")
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		snap, err := h.locks.ForceRefresh(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, newLockResponse(id, "", snap))
		return
	}

	snap, err := h.locks.Snapshot(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLockResponse(id, "", snap))
}

// DeleteLock handles DELETE /api/locks/:id.
func (h *Handler) DeleteLock(c *gin.Context) {
	if err := h.locks.Remove(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type putStateRequest struct {
	State string `json:"state" binding:"required"`
}

// PutLockState handles PUT /api/locks/:id/state. It waits for the outcome of the change unless
// wait=false is given, in which case the change continues in the background and 202 is returned.
func (h *Handler) PutLockState(c *gin.Context) {
	var req putStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	target := lock.LockState(req.State)
	if !target.Commandable() {
		writeError(c, &lock.ValidationError{Field: "state", Reason: "must be one of locked, unlocked, open"})
		return
	}
	if wait, err := strconv.ParseBool(c.DefaultQuery("wait", "true")); err == nil && !wait {
		if _, err := h.locks.Snapshot(id); err != nil {
			writeError(c, err)
			return
		}
		pending := h.locks.Submit(context.WithoutCancel(c.Request.Context()), id, target)
		go logOutcome(id, target, pending)
		c.JSON(http.StatusAccepted, gin.H{"status": "pending"})
		return
	}

	outcome, err := h.locks.RequestChange(c.Request.Context(), id, target)
	if err != nil {
		status := statusFor(err)
		body := gin.H{"error": err.Error()}
		if outcome != "" {
			body["outcome"] = outcome
		}
		c.JSON(status, body)
		return
	}

	snap, err := h.locks.Snapshot(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome, "state": newLockResponse(id, "", snap)})
}

func logOutcome(id string, target lock.LockState, pending *lock.Pending) {
	outcome, err := pending.Wait(context.Background())
	if err != nil {
		log.Printf("lock %s: background change to %s ended %s: %v", id, target, outcome, err)
		return
	}
	log.Printf("lock %s: background change to %s ended %s", id, target, outcome)
}

// PostBatteryRefresh handles POST /api/locks/:id/battery.
func (h *Handler) PostBatteryRefresh(c *gin.Context) {
	id := c.Param("id")
	if err := h.locks.RefreshBattery(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	snap, err := h.locks.Snapshot(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLockResponse(id, "", snap))
}

type pinRequest struct {
	PIN  string `json:"pin" binding:"required"`
	Name string `json:"name"`
}

// PostPIN handles POST /api/locks/:id/pins. The result arrives later on the PIN webhook.
func (h *Handler) PostPIN(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.locks.SetPIN(c.Request.Context(), c.Param("id"), req.PIN, req.Name); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// DeletePIN handles DELETE /api/locks/:id/pins.
func (h *Handler) DeletePIN(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.locks.DeletePIN(c.Request.Context(), c.Param("id"), req.PIN); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// GetHistory handles GET /api/locks/:id/history.
func (h *Handler) GetHistory(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history is not available"})
		return
	}
	id := c.Param("id")
	if _, err := h.locks.Snapshot(id); err != nil {
		writeError(c, err)
		return
	}

	limit := store.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := h.store.ListHistory(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}
