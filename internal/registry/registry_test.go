package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeRegistry(t *testing.T, body string) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "core.device_registry")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return New(path)
}

const sampleRegistry = `{
	"data": {
		"devices": [
			{"id": "dev-1", "name": "0xa4c13886429e3a54"},
			{"id": "dev-2", "name": "0x00158d0004a1b2c3"},
			{"id": "dev-3", "name": "twin"},
			{"id": "dev-4", "name": "twin"}
		]
	}
}`

func TestDeviceID(t *testing.T) {
	r := writeRegistry(t, sampleRegistry)

	id, err := r.DeviceID("0x00158d0004a1b2c3")
	if err != nil {
		t.Fatalf("DeviceID: %v", err)
	}
	if id != "dev-2" {
		t.Errorf("id = %s, want dev-2", id)
	}
}

func TestDeviceIDStripsEntitySuffix(t *testing.T) {
	r := writeRegistry(t, sampleRegistry)

	id, err := r.DeviceID("0xa4c13886429e3a54_l1")
	if err != nil {
		t.Fatalf("DeviceID: %v", err)
	}
	if id != "dev-1" {
		t.Errorf("id = %s, want dev-1", id)
	}
}

func TestDeviceIDNotFound(t *testing.T) {
	r := writeRegistry(t, sampleRegistry)

	if _, err := r.DeviceID("0xdeadbeef"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestDeviceIDAmbiguous(t *testing.T) {
	r := writeRegistry(t, sampleRegistry)

	if _, err := r.DeviceID("twin"); !errors.Is(err, ErrAmbiguousDevice) {
		t.Fatalf("expected ErrAmbiguousDevice, got %v", err)
	}
}

func TestDeviceIDMissingFile(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "missing"))

	if _, err := r.DeviceID("anything"); err == nil {
		t.Fatal("expected error for a missing registry file")
	}
}
