// Package sentinel declares the fixed ids of the kernel's built-in
// genera and default instances: the meta-genus, log, error, task,
// branch, taxonomy, cron schedule, workspace, science, and palace
// (room/scroll/npc) genera, plus the default taxonomy and science.
//
// Every sentinel id shares the all-zero ULID time component so a res
// id alone reveals whether it is bootstrap machinery or user data.
// Sentinels are created fresh on every node at startup (see Bootstrap)
// rather than carried over sync: domain/sync's Pull leaves res of
// sentinel genera out of its payload. Push does not filter them; it
// stores whatever res and tessellae a device sends.
package sentinel

import "github.com/farant/smaragda/domain/tessella"

// All-zero ULID time component (10 chars) plus 9 more zeros, leaving a
// 7-char distinguishing suffix to reach the full 26-char ULID width.
const zeroPrefix = "0000000000000000000"

func id(suffix string) tessella.ResID {
	if len(suffix) != 7 {
		panic("sentinel: suffix must be 7 chars to reach a 26-char ULID")
	}
	return tessella.ResID(zeroPrefix + suffix)
}

// Genus sentinels: the fixed res ids of the kernel's built-in genera.
var (
	MetaGenus             = id("MET000G")
	LogGenus              = id("LOG000G")
	ErrorGenus            = id("ERR000G")
	TaskGenus             = id("TSK000G")
	BranchGenus           = id("BRN000G")
	TaxonomyGenus         = id("TAX000G")
	CronScheduleGenus     = id("CRS000G")
	ScheduledTriggerGenus = id("CRT000G")
	WorkspaceGenus        = id("WRK000G")
	ScienceGenus          = id("SCI000G")
	PalaceRoomGenus       = id("PLR000G")
	PalaceScrollGenus     = id("PLS000G")
	PalaceNPCGenus        = id("PLN000G")
	DeviceGenus           = id("DEV000G")
)

// Default instance sentinels: well-known res created under the genera
// above so every other res always has a taxonomy/science to belong to
// even before an operator defines their own.
var (
	DefaultTaxonomy = id("TAX000D")
	DefaultScience  = id("SCI000D")
)

// MainBranch is the name (not a res id — branches are named, and "main"
// is the unnamed root every other branch eventually traces back to) of
// the branch every res is born on.
const MainBranch = "main"

// genusNames pairs each genus sentinel with its human-facing name, used
// by NameOf (Bootstrap's error messages) and by IsSentinelGenus, which
// listing code calls to recognize + exclude sentinel genera by id.
// Bootstrap takes the emitted genus_meta_set{key:"name"} value from its
// own genus table, not from here.
var genusNames = map[tessella.ResID]string{
	MetaGenus:             "genus",
	LogGenus:              "log",
	ErrorGenus:             "error",
	TaskGenus:              "task",
	BranchGenus:            "branch",
	TaxonomyGenus:          "taxonomy",
	CronScheduleGenus:      "cron_schedule",
	ScheduledTriggerGenus:  "scheduled_trigger",
	WorkspaceGenus:         "workspace",
	ScienceGenus:           "science",
	PalaceRoomGenus:        "palace_room",
	PalaceScrollGenus:      "palace_scroll",
	PalaceNPCGenus:         "palace_npc",
	DeviceGenus:            "device",
}

// IsSentinelGenus reports whether id names one of the built-in genera.
func IsSentinelGenus(genusID tessella.ResID) bool {
	_, ok := genusNames[genusID]
	return ok
}

// IsSentinel reports whether id is any bootstrap-reserved res: a genus
// sentinel, or a default instance. Unlike IsSentinelGenus it also
// matches the default instances; domain/sync and the listing code call
// IsSentinelGenus, not this.
func IsSentinel(resID tessella.ResID) bool {
	if IsSentinelGenus(resID) {
		return true
	}
	return resID == DefaultTaxonomy || resID == DefaultScience
}

// NameOf returns the human-facing name of a sentinel genus id, or "" if
// id does not name one.
func NameOf(genusID tessella.ResID) string {
	return genusNames[genusID]
}
