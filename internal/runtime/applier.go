package runtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"hubbridge/internal/compiler"
)

// ErrConfigInvalid means the runtime rejected the written configuration.
// No reload is attempted; the caller owns rollback.
var ErrConfigInvalid = errors.New("runtime configuration invalid")

// Reload stages, in order.
const (
	StageCheckConfig      = "check_config"
	StageGroupReload      = "group_reload"
	StageAutomationReload = "automation_reload"
)

// ReloadError is an HTTP-level failure while validating or reloading.
type ReloadError struct {
	Stage string
	Err   error
}

func (e *ReloadError) Error() string {
	return fmt.Sprintf("reload failed at %s: %v", e.Stage, e.Err)
}

func (e *ReloadError) Unwrap() error { return e.Err }

// Applier persists compiled rule sets into the runtime's configuration
// storage and hot-reloads the affected subsystems.
type Applier struct {
	client          *Client
	groupsPath      string
	automationsPath string
	// DryRun skips the file writes entirely; validation and reloads still
	// run. Set explicitly from configuration, never sniffed from the
	// environment.
	dryRun bool
}

// NewApplier creates an applier writing to the given rule-file paths.
func NewApplier(client *Client, groupsPath, automationsPath string, dryRun bool) *Applier {
	return &Applier{
		client:          client,
		groupsPath:      groupsPath,
		automationsPath: automationsPath,
		dryRun:          dryRun,
	}
}

// Apply overwrites the groups and automations documents with the compiled
// output, validates the runtime configuration and reloads the group and
// automation subsystems. There is no diffing or partial merge: whatever rule
// files existed before are replaced. On any failure the previous intent
// mapping must be reapplied by the caller.
func (a *Applier) Apply(ctx context.Context, out *compiler.Output) error {
	groupsDoc, err := compiler.MarshalGroups(out.Groups)
	if err != nil {
		return fmt.Errorf("serialize groups: %w", err)
	}
	automationsDoc, err := compiler.MarshalAutomations(out.Automations)
	if err != nil {
		return fmt.Errorf("serialize automations: %w", err)
	}
	log.Printf("APPLIER: applying %d automations, groups %v", len(out.Automations), out.Groups.Names())

	if a.dryRun {
		log.Printf("APPLIER: dry run, skipping writes of %s and %s", a.groupsPath, a.automationsPath)
	} else {
		if err := os.WriteFile(a.groupsPath, groupsDoc, 0o644); err != nil {
			return fmt.Errorf("write groups document: %w", err)
		}
		if err := os.WriteFile(a.automationsPath, automationsDoc, 0o644); err != nil {
			return fmt.Errorf("write automations document: %w", err)
		}
	}

	valid, err := a.client.CheckConfig(ctx)
	if err != nil {
		return &ReloadError{Stage: StageCheckConfig, Err: err}
	}
	if !valid {
		return ErrConfigInvalid
	}

	if err := a.client.ReloadService(ctx, "group"); err != nil {
		return &ReloadError{Stage: StageGroupReload, Err: err}
	}
	log.Println("APPLIER: group configuration reloaded")

	if err := a.client.ReloadService(ctx, "automation"); err != nil {
		return &ReloadError{Stage: StageAutomationReload, Err: err}
	}
	log.Println("APPLIER: automation configuration reloaded")
	return nil
}
