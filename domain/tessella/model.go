package tessella

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// Res is an identity with a history: the unit of storage.
type Res struct {
	bun.BaseModel `bun:"table:kernel.res,alias:r"`

	ID          ResID     `bun:"id,pk"`
	GenusID     ResID     `bun:"genus_id,notnull"`
	BranchID    string    `bun:"branch_id,notnull"`
	WorkspaceID *ResID    `bun:"workspace_id"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:now()"`
}

// Tessella is an immutable fact appended to one res: the unit of change.
// Tessellae are never updated or deleted.
type Tessella struct {
	bun.BaseModel `bun:"table:kernel.tessella,alias:t"`

	ID        TessellaID      `bun:"id,pk,autoincrement"`
	ResID     ResID           `bun:"res_id,notnull"`
	BranchID  string          `bun:"branch_id,notnull"`
	Type      Tag             `bun:"type,notnull"`
	Data      json.RawMessage `bun:"data,type:jsonb,notnull,default:'{}'"`
	CreatedAt time.Time       `bun:"created_at,notnull,default:now()"`
	Source    *string         `bun:"source"`
}
