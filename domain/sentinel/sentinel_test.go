package sentinel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelIDs_Are26CharsAndDistinct(t *testing.T) {
	all := []struct {
		name string
		id   string
	}{
		{"MetaGenus", string(MetaGenus)},
		{"LogGenus", string(LogGenus)},
		{"ErrorGenus", string(ErrorGenus)},
		{"TaskGenus", string(TaskGenus)},
		{"BranchGenus", string(BranchGenus)},
		{"TaxonomyGenus", string(TaxonomyGenus)},
		{"CronScheduleGenus", string(CronScheduleGenus)},
		{"ScheduledTriggerGenus", string(ScheduledTriggerGenus)},
		{"WorkspaceGenus", string(WorkspaceGenus)},
		{"ScienceGenus", string(ScienceGenus)},
		{"PalaceRoomGenus", string(PalaceRoomGenus)},
		{"PalaceScrollGenus", string(PalaceScrollGenus)},
		{"PalaceNPCGenus", string(PalaceNPCGenus)},
		{"DeviceGenus", string(DeviceGenus)},
		{"DefaultTaxonomy", string(DefaultTaxonomy)},
		{"DefaultScience", string(DefaultScience)},
	}

	seen := make(map[string]string)
	for _, entry := range all {
		assert.Len(t, entry.id, 26, "%s should be a 26-char ULID", entry.name)
		assert.Equal(t, "0000000000000000000", entry.id[:19], "%s should share the all-zero time prefix", entry.name)
		if other, dup := seen[entry.id]; dup {
			t.Fatalf("%s and %s collide on id %q", entry.name, other, entry.id)
		}
		seen[entry.id] = entry.name
	}
}

func TestIsSentinelGenus(t *testing.T) {
	assert.True(t, IsSentinelGenus(MetaGenus))
	assert.True(t, IsSentinelGenus(BranchGenus))
	assert.False(t, IsSentinelGenus("01H0000000000000000000000"))
}

func TestIsSentinel(t *testing.T) {
	assert.True(t, IsSentinel(LogGenus))
	assert.True(t, IsSentinel(DefaultTaxonomy))
	assert.True(t, IsSentinel(DefaultScience))
	assert.False(t, IsSentinel("01H0000000000000000000000"))
}

func TestNameOf(t *testing.T) {
	assert.Equal(t, "genus", NameOf(MetaGenus))
	assert.Equal(t, "", NameOf("01H0000000000000000000000"))
}
