// Package bootstrap creates the kernel's sentinel genera and default
// instances — the fixed, all-zero-prefix res every other package
// references by constant id (domain/sentinel) rather than by looking
// one up. Run is idempotent and is meant to execute once at process
// startup on every node; sentinels are never synced (see domain/sync),
// so each node must arrive at the same fixed ids on its own.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/farant/smaragda/domain/genus"
	"github.com/farant/smaragda/domain/sentinel"
	"github.com/farant/smaragda/domain/tessella"
)

// Run defines every sentinel genus (skipping any that already exist,
// so a restart is a no-op) and then ensures the default taxonomy and
// science instances exist.
func Run(ctx context.Context, store *tessella.Store, genusSvc *genus.Service) error {
	for _, g := range sentinelGenera {
		if err := genusSvc.DefineWithID(ctx, sentinel.MainBranch, g.id, g.kind, g.spec); err != nil {
			return fmt.Errorf("bootstrap: define %s genus: %w", sentinel.NameOf(g.id), err)
		}
	}

	if err := ensureDefaultInstance(ctx, store, sentinel.DefaultTaxonomy, sentinel.TaxonomyGenus, map[string]any{
		"name": "default", "status": "active",
	}); err != nil {
		return fmt.Errorf("bootstrap: default taxonomy: %w", err)
	}
	if err := ensureDefaultInstance(ctx, store, sentinel.DefaultScience, sentinel.ScienceGenus, map[string]any{
		"name": "default", "status": "active",
	}); err != nil {
		return fmt.Errorf("bootstrap: default science: %w", err)
	}
	return nil
}

type sentinelGenusDef struct {
	id   tessella.ResID
	kind genus.Kind
	spec genus.Spec
}

var sentinelGenera = []sentinelGenusDef{
	{sentinel.LogGenus, genus.KindEntity, genus.Spec{
		Meta: genus.Meta{Name: "log"},
		Attributes: []genus.Attribute{
			{Name: "res", Type: genus.AttrText, Required: true},
			{Name: "message", Type: genus.AttrText, Required: true},
			{Name: "severity", Type: genus.AttrText},
		},
	}},
	{sentinel.ErrorGenus, genus.KindEntity, genus.Spec{
		Meta: genus.Meta{Name: "error"},
		Attributes: []genus.Attribute{
			{Name: "associated_res_id", Type: genus.AttrText, Required: true},
			{Name: "message", Type: genus.AttrText, Required: true},
		},
		States: []genus.State{
			{Name: "open", Initial: true},
			{Name: "acknowledged"},
		},
		Transitions: []genus.Transition{
			{From: "open", To: "acknowledged"},
		},
	}},
	{sentinel.TaskGenus, genus.KindEntity, genus.Spec{
		Meta: genus.Meta{Name: "task"},
		Attributes: []genus.Attribute{
			{Name: "title", Type: genus.AttrText, Required: true},
			{Name: "description", Type: genus.AttrText},
			{Name: "associated_res_id", Type: genus.AttrText},
			{Name: "priority", Type: genus.AttrText},
			{Name: "target_agent_type", Type: genus.AttrText},
			{Name: "process_instance_id", Type: genus.AttrText},
			{Name: "context_res_ids", Type: genus.AttrText},
		},
	}},
	{sentinel.BranchGenus, genus.KindEntity, genus.Spec{
		Meta: genus.Meta{Name: "branch"},
		Attributes: []genus.Attribute{
			{Name: "name", Type: genus.AttrText, Required: true},
			{Name: "parent_branch", Type: genus.AttrText},
			{Name: "branch_point_tessella_id", Type: genus.AttrNumber},
		},
		States: []genus.State{
			{Name: "active", Initial: true},
			{Name: "merged"},
			{Name: "closed"},
		},
	}},
	{sentinel.TaxonomyGenus, genus.KindEntity, genus.Spec{
		Meta: genus.Meta{Name: "taxonomy"},
		Attributes: []genus.Attribute{
			{Name: "name", Type: genus.AttrText, Required: true},
		},
		States: []genus.State{
			{Name: "active", Initial: true},
			{Name: "archived"},
		},
	}},
	{sentinel.CronScheduleGenus, genus.KindEntity, genus.Spec{
		Meta: genus.Meta{Name: "cron_schedule"},
		Attributes: []genus.Attribute{
			{Name: "expression", Type: genus.AttrText, Required: true},
			{Name: "target_type", Type: genus.AttrText, Required: true},
			{Name: "target_genus_id", Type: genus.AttrText, Required: true},
		},
		States: []genus.State{
			{Name: "active", Initial: true},
			{Name: "paused"},
		},
	}},
	{sentinel.ScheduledTriggerGenus, genus.KindEntity, genus.Spec{
		Meta: genus.Meta{Name: "scheduled_trigger"},
		Attributes: []genus.Attribute{
			{Name: "target_type", Type: genus.AttrText, Required: true},
			{Name: "target_genus_id", Type: genus.AttrText, Required: true},
		},
		States: []genus.State{
			{Name: "pending", Initial: true},
			{Name: "fired"},
		},
	}},
	{sentinel.WorkspaceGenus, genus.KindEntity, genus.Spec{
		Meta: genus.Meta{Name: "workspace"},
		Attributes: []genus.Attribute{
			{Name: "name", Type: genus.AttrText, Required: true},
		},
	}},
	{sentinel.ScienceGenus, genus.KindEntity, genus.Spec{
		Meta: genus.Meta{Name: "science"},
		Attributes: []genus.Attribute{
			{Name: "name", Type: genus.AttrText, Required: true},
		},
		States: []genus.State{
			{Name: "active", Initial: true},
			{Name: "archived"},
		},
	}},
	{sentinel.PalaceRoomGenus, genus.KindEntity, genus.Spec{
		Meta: genus.Meta{Name: "palace_room"},
		Attributes: []genus.Attribute{
			{Name: "name", Type: genus.AttrText, Required: true},
		},
	}},
	{sentinel.PalaceScrollGenus, genus.KindEntity, genus.Spec{
		Meta: genus.Meta{Name: "palace_scroll"},
		Attributes: []genus.Attribute{
			{Name: "name", Type: genus.AttrText, Required: true},
		},
	}},
	{sentinel.PalaceNPCGenus, genus.KindEntity, genus.Spec{
		Meta: genus.Meta{Name: "palace_npc"},
		Attributes: []genus.Attribute{
			{Name: "name", Type: genus.AttrText, Required: true},
		},
	}},
	{sentinel.DeviceGenus, genus.KindEntity, genus.Spec{
		Meta: genus.Meta{Name: "device"},
		Attributes: []genus.Attribute{
			{Name: "device_id", Type: genus.AttrText, Required: true},
		},
	}},
}

// ensureDefaultInstance creates a res at id if it doesn't already
// exist, appending attrs as attribute_set tessellae. Bypasses
// entity.Service (which would mint a fresh id) for the same reason
// DefineWithID bypasses CreateRes: the id is a fixed sentinel constant.
func ensureDefaultInstance(ctx context.Context, store *tessella.Store, id, genusID tessella.ResID, attrs map[string]any) error {
	created, err := store.CreateResWithID(ctx, id, genusID, sentinel.MainBranch, nil)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	for key, value := range attrs {
		if _, err := store.Append(ctx, id, sentinel.MainBranch, &tessella.AttributeSetPayload{Key: key, Value: value}, nil); err != nil {
			return err
		}
	}
	return nil
}
