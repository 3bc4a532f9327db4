package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Lookup errors. Both abort the automation compile that triggered the
// lookup; a partial rule set is worse than none.
var (
	ErrDeviceNotFound  = fmt.Errorf("device not found in registry")
	ErrAmbiguousDevice = fmt.Errorf("ambiguous device lookup")
)

// Registry resolves device display names to the runtime's stable device ids.
type Registry struct {
	path string
}

// New creates a registry backed by the runtime's device-registry file.
func New(path string) *Registry {
	return &Registry{path: path}
}

type registryFile struct {
	Data struct {
		Devices []registryDevice `json:"devices"`
	} `json:"data"`
}

type registryDevice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DeviceID returns the stable registry id for a device name. Multi-entity
// devices report names like "0xa4c13886429e3a54_l1"; the registry keys the
// bare radio address, so the suffix is stripped before matching. Zero
// matches and multiple matches fail with distinct errors.
func (r *Registry) DeviceID(deviceName string) (string, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return "", fmt.Errorf("read device registry: %w", err)
	}
	var file registryFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return "", fmt.Errorf("parse device registry: %w", err)
	}

	name, _, _ := strings.Cut(deviceName, "_")
	var found []registryDevice
	for _, d := range file.Data.Devices {
		if d.Name == name {
			found = append(found, d)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	case 1:
		return found[0].ID, nil
	default:
		return "", fmt.Errorf("%w: %s has %d registry entries", ErrAmbiguousDevice, name, len(found))
	}
}
