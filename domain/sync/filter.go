package sync

import (
	"github.com/farant/smaragda/domain/sentinel"
	"github.com/farant/smaragda/domain/tessella"
)

// filterEcho drops tessellae tagged with the requesting device's own
// source tag, so a device never sees its own push reflected back to it.
func filterEcho(rows []TessellaSummary, deviceTag string) []TessellaSummary {
	out := make([]TessellaSummary, 0, len(rows))
	for _, row := range rows {
		if row.Source != nil && *row.Source == deviceTag {
			continue
		}
		out = append(out, row)
	}
	return out
}

// syncableRes reports whether a res belongs in a pull/push payload at
// all. A res is sentinel (and excluded) exactly when its genus is one of
// the kernel's built-in genera: that covers bootstrap instances (a Task,
// a Log, a Branch, a Device) directly, and every genus *definition* res
// indirectly, since every genus (sentinel or user-defined) is itself an
// instance of the meta-genus. The latter is why genus backfill exists:
// a referenced user genus' defining tessellae still need to cross the
// wire, just by a different path than the general res/tessella batch.
func syncableRes(genusID tessella.ResID) bool {
	return !sentinel.IsSentinelGenus(genusID)
}
