package sync

import (
	"testing"

	"github.com/farant/smaragda/domain/sentinel"
	"github.com/farant/smaragda/domain/tessella"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestDeviceSourceTag(t *testing.T) {
	assert.Equal(t, "device:CA", deviceSourceTag("CA"))
}

func TestFilterEcho(t *testing.T) {
	rows := []TessellaSummary{
		{ResID: "r1", Source: strPtr("device:CA")},
		{ResID: "r2", Source: strPtr("device:CB")},
		{ResID: "r3", Source: nil},
		{ResID: "r4", Source: strPtr("merge:feature")},
	}
	got := filterEcho(rows, "device:CA")
	var ids []string
	for _, r := range got {
		ids = append(ids, string(r.ResID))
	}
	assert.Equal(t, []string{"r2", "r3", "r4"}, ids)
}

func TestFilterEcho_NoMatches(t *testing.T) {
	rows := []TessellaSummary{{ResID: "r1", Source: nil}}
	assert.Equal(t, rows, filterEcho(rows, "device:CA"))
}

func TestSyncableRes(t *testing.T) {
	assert.False(t, syncableRes(sentinel.MetaGenus), "genus-definition res (genus_id=meta) is excluded from the general batch")
	assert.False(t, syncableRes(sentinel.TaskGenus), "a task instance is never synced")
	assert.False(t, syncableRes(sentinel.DeviceGenus), "a device instance is never synced")
	assert.True(t, syncableRes(tessella.ResID("01H0000000000000000000BOOK")), "an ordinary user genus id is syncable")
}
