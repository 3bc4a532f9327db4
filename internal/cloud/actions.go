package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"hubbridge/internal/events"
	"hubbridge/internal/hub"
	"hubbridge/internal/models"
	"hubbridge/internal/store"

	"github.com/robfig/cron/v3"
)

// ActionDispatcher drains the cloud actions queue and hands each pending
// action to its router channel. A queue row is deleted only after a
// subscribed handler accepted it; rows for unknown kinds stay queued.
type ActionDispatcher struct {
	store  *store.Store
	hub    *hub.Hub
	router *events.Router
	cron   *cron.Cron
}

// NewActionDispatcher creates a dispatcher for the authenticated hub.
func NewActionDispatcher(s *store.Store, h *hub.Hub, router *events.Router) *ActionDispatcher {
	return &ActionDispatcher{store: s, hub: h, router: router, cron: cron.New()}
}

// Start drains the queue once and then polls on the given cron spec
// (e.g. "@every 15s"), catching actions pushed while the hub was offline
// or a realtime delivery was missed.
func (d *ActionDispatcher) Start(spec string) error {
	if err := d.Drain(context.Background()); err != nil {
		log.Printf("CLOUD: initial actions drain failed: %v", err)
	}
	if _, err := d.cron.AddFunc(spec, func() {
		if err := d.Drain(context.Background()); err != nil {
			log.Printf("CLOUD: actions drain failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule actions poll: %w", err)
	}
	d.cron.Start()
	return nil
}

// Stop stops the poller, waiting for a running drain to finish.
func (d *ActionDispatcher) Stop() {
	<-d.cron.Stop().Done()
}

// Drain dispatches all pending actions addressed to this hub, oldest first.
func (d *ActionDispatcher) Drain(ctx context.Context) error {
	actions, err := d.store.PendingActions(ctx, d.hub.ID())
	if err != nil {
		return err
	}
	for _, action := range actions {
		dispatched, err := d.dispatch(action)
		if err != nil {
			log.Printf("CLOUD: action %s (%s) not dispatched: %v", action.ID, action.Kind, err)
			continue
		}
		if !dispatched {
			// No handler subscribed yet; leave the row for the next drain.
			continue
		}
		if err := d.store.DeleteAction(ctx, action.ID); err != nil {
			log.Printf("CLOUD: could not delete dispatched action %s: %v", action.ID, err)
		}
	}
	return nil
}

func (d *ActionDispatcher) dispatch(action models.Action) (bool, error) {
	switch action.Kind {
	case models.ActionSetState:
		var cmd models.SetStateCommand
		if err := json.Unmarshal(action.Payload, &cmd); err != nil {
			return false, err
		}
		return d.router.SetState.Publish(cmd), nil

	case models.ActionSetConfig:
		var props models.HubProps
		if err := json.Unmarshal(action.Payload, &props); err != nil {
			return false, err
		}
		props.ID = d.hub.ID()
		if props.LogLevel == "" {
			props.LogLevel = d.hub.LogLevel()
		}
		return d.router.PropsChange.Publish(props), nil

	case models.ActionAddNewDevice:
		return d.router.DeviceAdded.Publish(action), nil

	default:
		return false, fmt.Errorf("unknown action kind %q", action.Kind)
	}
}
