package bootstrap

import (
	"testing"

	"github.com/farant/smaragda/domain/genus"
	"github.com/farant/smaragda/domain/sentinel"
	"github.com/stretchr/testify/assert"
)

func TestSentinelGenera_CoverEveryGenusSentinel(t *testing.T) {
	defined := make(map[string]bool, len(sentinelGenera))
	for _, g := range sentinelGenera {
		defined[string(g.id)] = true
	}
	for id := range map[string]string{
		string(sentinel.LogGenus):             "log",
		string(sentinel.ErrorGenus):           "error",
		string(sentinel.TaskGenus):            "task",
		string(sentinel.BranchGenus):          "branch",
		string(sentinel.TaxonomyGenus):        "taxonomy",
		string(sentinel.CronScheduleGenus):    "cron_schedule",
		string(sentinel.ScheduledTriggerGenus): "scheduled_trigger",
		string(sentinel.WorkspaceGenus):       "workspace",
		string(sentinel.ScienceGenus):         "science",
		string(sentinel.PalaceRoomGenus):      "palace_room",
		string(sentinel.PalaceScrollGenus):    "palace_scroll",
		string(sentinel.PalaceNPCGenus):       "palace_npc",
		string(sentinel.DeviceGenus):          "device",
	} {
		assert.True(t, defined[id], "sentinel genus %q has no bootstrap definition", id)
	}
}

func TestSentinelGenera_NoDuplicateAttributeNames(t *testing.T) {
	for _, g := range sentinelGenera {
		seen := map[string]bool{}
		for _, a := range g.spec.Attributes {
			assert.False(t, seen[a.Name], "genus %q declares %q twice", g.spec.Meta.Name, a.Name)
			seen[a.Name] = true
		}
	}
}

func TestSentinelGenera_AttributeTypesAreValid(t *testing.T) {
	valid := map[genus.AttrType]bool{
		genus.AttrText: true, genus.AttrNumber: true, genus.AttrBoolean: true, genus.AttrFiletree: true,
	}
	for _, g := range sentinelGenera {
		for _, a := range g.spec.Attributes {
			assert.True(t, valid[a.Type], "genus %q attribute %q has invalid type %q", g.spec.Meta.Name, a.Name, a.Type)
		}
	}
}

func TestSentinelGenera_StatesHaveExactlyOneInitial(t *testing.T) {
	for _, g := range sentinelGenera {
		if len(g.spec.States) == 0 {
			continue
		}
		initialCount := 0
		for _, st := range g.spec.States {
			if st.Initial {
				initialCount++
			}
		}
		assert.Equal(t, 1, initialCount, "genus %q must declare exactly one initial state", g.spec.Meta.Name)
	}
}

func TestSentinelGenera_TransitionsReferenceDeclaredStates(t *testing.T) {
	for _, g := range sentinelGenera {
		states := make(map[string]bool, len(g.spec.States))
		for _, st := range g.spec.States {
			states[st.Name] = true
		}
		for _, tr := range g.spec.Transitions {
			assert.True(t, states[tr.From], "genus %q transition references undeclared state %q", g.spec.Meta.Name, tr.From)
			assert.True(t, states[tr.To], "genus %q transition references undeclared state %q", g.spec.Meta.Name, tr.To)
		}
	}
}

func TestSentinelGenera_AllEntityKind(t *testing.T) {
	for _, g := range sentinelGenera {
		assert.Equal(t, genus.KindEntity, g.kind, "genus %q", g.spec.Meta.Name)
	}
}
