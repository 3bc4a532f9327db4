package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hubbridge/internal/compiler"
	"hubbridge/internal/hub"
	"hubbridge/internal/models"
	"hubbridge/internal/transport"

	"github.com/gin-gonic/gin"
)

type fakeSender struct {
	err      error
	deviceID string
	state    string
}

func (f *fakeSender) SetState(deviceID, state string) error {
	f.deviceID = deviceID
	f.state = state
	return f.err
}

type fakeProvisioner struct {
	err    error
	hubID  string
	userID string
	grant  json.RawMessage
}

func (f *fakeProvisioner) GrantUser(_ context.Context, hubID, userID string, grant json.RawMessage) error {
	f.hubID = hubID
	f.userID = userID
	f.grant = grant
	return f.err
}

type nopResolver struct{}

func (nopResolver) DeviceID(name string) (string, error) { return name, nil }

type nopApplier struct{}

func (nopApplier) Apply(context.Context, *compiler.Output) error { return nil }

func newTestRouter(t *testing.T, sender CommandSender, provisioner UserProvisioner) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, err := compiler.New(nopResolver{}, "23:00:00", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	h := hub.New(c, nopApplier{})
	h.Seed(models.HubProps{ID: "hub-1"})

	router := gin.New()
	RegisterHubRoutes(router, h, sender, provisioner)
	return router
}

func TestManifest(t *testing.T) {
	router := newTestRouter(t, &fakeSender{}, &fakeProvisioner{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/manifest", nil)
	router.ServeHTTP(w, req)

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

func TestPutDeviceState(t *testing.T) {
	sender := &fakeSender{}
	router := newTestRouter(t, sender, &fakeProvisioner{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/devices/ab12", strings.NewReader(`{"state":"toggle"}`))
	router.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if sender.deviceID != "ab12" || sender.state != "toggle" {
		t.Errorf("forwarded %s/%s, want ab12/toggle", sender.deviceID, sender.state)
	}
}

func TestPutDeviceStateBadBody(t *testing.T) {
	sender := &fakeSender{}
	router := newTestRouter(t, sender, &fakeProvisioner{})

	for _, body := range []string{"", "{}", "not json"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/devices/ab12", strings.NewReader(body))
		router.ServeHTTP(w, req)
		if w.Code != 400 {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
	if sender.state != "" {
		t.Error("invalid bodies must not reach the sender")
	}
}

func TestPutDeviceStateErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: blink", transport.ErrUnsupportedState), 400},
		{errors.New("broker down"), 500},
	}
	for _, tt := range tests {
		router := newTestRouter(t, &fakeSender{err: tt.err}, &fakeProvisioner{})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/devices/ab12", strings.NewReader(`{"state":"on"}`))
		router.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("err %v: status = %d, want %d", tt.err, w.Code, tt.want)
		}
	}
}

func TestPutUserGrant(t *testing.T) {
	provisioner := &fakeProvisioner{}
	router := newTestRouter(t, &fakeSender{}, provisioner)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/users/user-9", strings.NewReader(`{"role":"member"}`))
	router.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if provisioner.hubID != "hub-1" || provisioner.userID != "user-9" {
		t.Errorf("granted %s/%s, want hub-1/user-9", provisioner.hubID, provisioner.userID)
	}
	if string(provisioner.grant) != `{"role":"member"}` {
		t.Errorf("grant = %s", provisioner.grant)
	}
}

func TestPutUserGrantInvalidBody(t *testing.T) {
	provisioner := &fakeProvisioner{}
	router := newTestRouter(t, &fakeSender{}, provisioner)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/users/user-9", strings.NewReader("not json"))
	router.ServeHTTP(w, req)

	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if provisioner.userID != "" {
		t.Error("invalid grants must not reach the provisioner")
	}
}
