package action

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// Taken is the audit row recording one execute_action call: its action
// genus, resource bindings and parameters. It holds no reference to the
// tessellae the call emitted, and those tessellae hold none to it; the
// emitted ids are returned only in Execute's Result.
type Taken struct {
	bun.BaseModel `bun:"table:kernel.action_taken,alias:at"`

	ID            int64           `bun:"id,pk,autoincrement"`
	ActionGenusID string          `bun:"action_genus_id,notnull"`
	BindingsJSON  json.RawMessage `bun:"bindings_json,type:jsonb,notnull,default:'{}'"`
	ParamsJSON    json.RawMessage `bun:"params_json,type:jsonb,notnull,default:'{}'"`
	CreatedAt     time.Time       `bun:"created_at,notnull,default:now()"`
}
