package web

import (
	"hubbridge/internal/hub"
	"hubbridge/internal/web/api"

	"github.com/gin-gonic/gin"
)

// WebServer is the hub's local HTTP control surface.
type WebServer struct {
	router *gin.Engine
}

// NewWebServer wires the control-surface routes.
func NewWebServer(h *hub.Hub, sender api.CommandSender, provisioner api.UserProvisioner) *WebServer {
	router := gin.Default()
	api.RegisterHubRoutes(router, h, sender, provisioner)
	return &WebServer{router: router}
}

// Start serves the control surface on addr.
func (ws *WebServer) Start(addr string) error {
	return ws.router.Run(addr)
}

// Handler exposes the underlying handler; used by tests.
func (ws *WebServer) Handler() *gin.Engine {
	return ws.router
}
