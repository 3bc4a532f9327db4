package hub

import (
	"context"
	"log"
	"reflect"
	"sync"

	"hubbridge/internal/compiler"
	"hubbridge/internal/models"
)

// Applier persists a compiled rule set into the automation runtime.
type Applier interface {
	Apply(ctx context.Context, out *compiler.Output) error
}

// RollbackSink receives the restored device props after a failed apply so
// the caller can propagate the correction to its own store.
type RollbackSink interface {
	Rollback(ctx context.Context, props models.DevicesProps) error
}

// RollbackFunc adapts a function to the RollbackSink interface.
type RollbackFunc func(ctx context.Context, props models.DevicesProps) error

// Rollback calls f.
func (f RollbackFunc) Rollback(ctx context.Context, props models.DevicesProps) error {
	return f(ctx, props)
}

// Hub holds the authenticated hub's identity and the last-applied device
// props. Props are mutated only through Seed and SetProps; the source of
// truth is the cloud document, nothing is persisted locally.
type Hub struct {
	mu       sync.Mutex
	props    models.HubProps
	compiler *compiler.Compiler
	applier  Applier
}

// New creates an empty hub. Identity and props arrive with Seed after the
// initial document fetch.
func New(c *compiler.Compiler, applier Applier) *Hub {
	return &Hub{compiler: c, applier: applier}
}

// Seed populates the hub from the initial document fetch without compiling
// or applying anything; the runtime already holds that configuration.
func (h *Hub) Seed(props models.HubProps) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.props = props
}

// ID returns the authenticated hub identifier.
func (h *Hub) ID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.props.ID
}

// Props returns a snapshot of the current hub document.
func (h *Hub) Props() models.HubProps {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.props
}

// LogLevel returns the hub's cloud-controlled log level.
func (h *Hub) LogLevel() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.props.LogLevel
}

// SetProps adopts a new hub document. When the device props changed, the
// new mapping is compiled and applied; on failure the previous mapping is
// restored and reported to sink exactly once. If the sink itself fails, the
// new (failed) mapping is kept rather than retrying forever, leaving the
// store authoritative for the next correction.
func (h *Hub) SetProps(ctx context.Context, props models.HubProps, sink RollbackSink) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	before := h.props
	h.props = props

	if reflect.DeepEqual(before.DevicesProps, props.DevicesProps) {
		// Nothing automation-relevant changed; skip the redundant reload.
		return nil
	}

	if err := h.applyLocked(ctx, props.DevicesProps); err != nil {
		log.Printf("HUB: apply failed, rolling back: %v", err)
		h.props.DevicesProps = before.DevicesProps
		if rbErr := sink.Rollback(ctx, before.DevicesProps); rbErr != nil {
			log.Printf("HUB: rollback failed, keeping new props: %v", rbErr)
			h.props.DevicesProps = props.DevicesProps
		}
		return err
	}
	return nil
}

func (h *Hub) applyLocked(ctx context.Context, devicesProps models.DevicesProps) error {
	out, err := h.compiler.Compile(devicesProps)
	if err != nil {
		return err
	}
	return h.applier.Apply(ctx, out)
}
