// Package sync implements the device pull/push protocol: a
// watermark-bounded log fetch, echo suppression so a device never sees
// its own pushes reflected back, sentinel exclusion on pull so bootstrap
// machinery is never sent to a device, and first-contact device
// registration. Push applies no sentinel filter: it stores whatever res
// and tessellae a device sends.
package sync

import (
	"encoding/json"
	"time"

	"github.com/farant/smaragda/domain/tessella"
)

// ResSummary is the wire shape of one res row.
type ResSummary struct {
	ID        tessella.ResID `json:"id"`
	GenusID   tessella.ResID `json:"genus_id"`
	BranchID  string         `json:"branch_id"`
	CreatedAt time.Time      `json:"created_at"`
}

// TessellaSummary is the wire shape of one tessella row. ID is omitted
// on push requests: the server always assigns the global sequence id on
// insert, local ids a client may have tracked are not reused.
type TessellaSummary struct {
	ID        tessella.TessellaID `json:"id,omitempty"`
	ResID     tessella.ResID      `json:"res_id"`
	BranchID  string              `json:"branch_id"`
	Type      tessella.Tag        `json:"type"`
	Data      json.RawMessage     `json:"data"`
	CreatedAt time.Time           `json:"created_at,omitempty"`
	Source    *string             `json:"source,omitempty"`
}

// PullRequest asks for everything the server has seen after Since.
type PullRequest struct {
	Since    tessella.TessellaID `json:"since"`
	DeviceID string              `json:"device_id"`
}

// PullResponse carries the res and tessellae the device hasn't seen yet,
// plus the genus backfill described on Service.Pull.
type PullResponse struct {
	Res           []ResSummary        `json:"res"`
	Tessellae     []TessellaSummary   `json:"tessellae"`
	HighWaterMark tessella.TessellaID `json:"high_water_mark"`
}

// PushRequest carries a device's unsent writes.
type PushRequest struct {
	DeviceID  string            `json:"device_id"`
	Res       []ResSummary      `json:"res"`
	Tessellae []TessellaSummary `json:"tessellae"`
}

// PushResponse reports how much of a push was accepted.
type PushResponse struct {
	Accepted      uint64              `json:"accepted"`
	HighWaterMark tessella.TessellaID `json:"high_water_mark"`
}

// deviceSourceTag is the source value every tessella accepted from
// deviceID is tagged with, and the value filtered out of that same
// device's subsequent pulls.
func deviceSourceTag(deviceID string) string {
	return "device:" + deviceID
}
