package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hubbridge/internal/compiler"
	"hubbridge/internal/hub"
	"hubbridge/internal/models"

	"github.com/gin-gonic/gin"
)

type nopResolver struct{}

func (nopResolver) DeviceID(name string) (string, error) { return name, nil }

type nopApplier struct{}

func (nopApplier) Apply(context.Context, *compiler.Output) error { return nil }

type fakeSender struct {
	deviceID string
	state    string
}

func (f *fakeSender) SetState(deviceID, state string) error {
	f.deviceID = deviceID
	f.state = state
	return nil
}

type nopProvisioner struct{}

func (nopProvisioner) GrantUser(context.Context, string, string, json.RawMessage) error { return nil }

func newTestServer(t *testing.T, sender *fakeSender) *WebServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, err := compiler.New(nopResolver{}, "23:00:00", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	h := hub.New(c, nopApplier{})
	h.Seed(models.HubProps{ID: "hub-1"})
	return NewWebServer(h, sender, nopProvisioner{})
}

func TestHandlerServesManifest(t *testing.T) {
	ws := newTestServer(t, &fakeSender{})

	w := httptest.NewRecorder()
	ws.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/manifest", nil))

	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["id"] != "hub-1" {
		t.Errorf("id = %q, want hub-1", body["id"])
	}
}

func TestHandlerRoutesDeviceCommands(t *testing.T) {
	sender := &fakeSender{}
	ws := newTestServer(t, sender)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/devices/ab12", strings.NewReader(`{"state":"off"}`))
	ws.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if sender.deviceID != "ab12" || sender.state != "off" {
		t.Errorf("forwarded %s/%s, want ab12/off", sender.deviceID, sender.state)
	}
}
