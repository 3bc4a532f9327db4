package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"hubbridge/internal/hub"
	"hubbridge/internal/registry"
	"hubbridge/internal/transport"

	"github.com/gin-gonic/gin"
)

// CommandSender forwards a device state intent to the local transport.
type CommandSender interface {
	SetState(deviceID, state string) error
}

// UserProvisioner records a user grant for this hub.
type UserProvisioner interface {
	GrantUser(ctx context.Context, hubID, userID string, grant json.RawMessage) error
}

// SetStateRequest is the body of PUT /devices/:id.
type SetStateRequest struct {
	State string `json:"state" binding:"required"`
}

// RegisterHubRoutes wires the control-surface endpoints.
func RegisterHubRoutes(r *gin.Engine, h *hub.Hub, sender CommandSender, provisioner UserProvisioner) {
	r.GET("/manifest", func(c *gin.Context) {
		c.JSON(200, gin.H{"id": h.ID()})
	})

	r.PUT("/devices/:id", func(c *gin.Context) {
		var req SetStateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "Invalid request"})
			return
		}
		if err := sender.SetState(c.Param("id"), req.State); err != nil {
			log.Printf("API: setState for %s failed: %v", c.Param("id"), err)
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.PUT("/users/:id", func(c *gin.Context) {
		grant, err := c.GetRawData()
		if err != nil || !json.Valid(grant) {
			c.JSON(400, gin.H{"error": "Invalid request"})
			return
		}
		if err := provisioner.GrantUser(c, h.ID(), c.Param("id"), grant); err != nil {
			log.Printf("API: user provisioning for %s failed: %v", c.Param("id"), err)
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})
}

// errorStatus derives an HTTP status from the error kind; unknown errors
// stay 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, transport.ErrUnsupportedState):
		return 400
	case errors.Is(err, registry.ErrDeviceNotFound):
		return 404
	case errors.Is(err, registry.ErrAmbiguousDevice):
		return 409
	default:
		return 500
	}
}
