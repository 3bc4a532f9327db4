package store

import (
	"context"
	"encoding/json"
	"fmt"

	"hubbridge/internal/models"
)

// GetHub fetches the hub document. Missing hubs are unexpected: the cloud
// creates the document during provisioning, before the hub first signs in.
func (s *Store) GetHub(ctx context.Context, hubID string) (*models.HubProps, error) {
	var props models.HubProps
	var devicesProps json.RawMessage
	err := s.pool.QueryRow(ctx,
		"SELECT id, COALESCE(log_level, ''), COALESCE(devices_props, '{}') FROM hubs WHERE id = $1",
		hubID,
	).Scan(&props.ID, &props.LogLevel, &devicesProps)
	if err != nil {
		return nil, fmt.Errorf("fetch hub %s: %w", hubID, err)
	}
	if err := json.Unmarshal(devicesProps, &props.DevicesProps); err != nil {
		return nil, fmt.Errorf("decode devices props for %s: %w", hubID, err)
	}
	return &props, nil
}

// SetDevicesProps writes the device props subset back to the hub document.
// Used by the rollback path after a failed apply.
func (s *Store) SetDevicesProps(ctx context.Context, hubID string, props models.DevicesProps) error {
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, "UPDATE hubs SET devices_props = $1 WHERE id = $2", raw, hubID)
	return err
}

// MergeDeviceState merges a single device's current state into the hub
// document's devices field.
func (s *Store) MergeDeviceState(ctx context.Context, hubID, deviceID string, state json.RawMessage) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE hubs SET devices = jsonb_set(COALESCE(devices, '{}'), ARRAY[$1], $2::jsonb, true) WHERE id = $3",
		deviceID, state, hubID)
	return err
}

// AppendEvent appends a state-change event to the hub's durable event log.
func (s *Store) AppendEvent(ctx context.Context, hubID string, payload json.RawMessage) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO hub_events (hub_id, payload, created_at) VALUES ($1, $2, NOW())",
		hubID, payload)
	return err
}

// AppendZigbeeEvent appends an event to the secondary zigbee log.
func (s *Store) AppendZigbeeEvent(ctx context.Context, hubID, topic string, payload json.RawMessage) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO hub_zigbee_events (hub_id, topic, payload, created_at) VALUES ($1, $2, $3, NOW())",
		hubID, topic, payload)
	return err
}

// PendingActions lists the queued actions addressed to a hub, oldest first.
func (s *Store) PendingActions(ctx context.Context, hubID string) ([]models.Action, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, action, payload FROM hub_actions_queue WHERE hub_id = $1 ORDER BY created_at",
		hubID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []models.Action
	for rows.Next() {
		var a models.Action
		if err := rows.Scan(&a.ID, &a.Kind, &a.Payload); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// DeleteAction removes a queue row once its action has been dispatched.
func (s *Store) DeleteAction(ctx context.Context, actionID string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM hub_actions_queue WHERE id = $1", actionID)
	return err
}

// GrantUser records a user grant on the hub document. The control surface's
// user-provisioning endpoint forwards here.
func (s *Store) GrantUser(ctx context.Context, hubID, userID string, grant json.RawMessage) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE hubs SET users = jsonb_set(COALESCE(users, '{}'), ARRAY[$1], $2::jsonb, true) WHERE id = $3",
		userID, grant, hubID)
	return err
}
