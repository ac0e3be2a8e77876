package entity

import (
	"github.com/uptrace/bun"

	"github.com/farant/smaragda/domain/tessella"
)

// RelationshipMember denormalizes a relationship res' roster so a
// member's reverse lookups (RelationshipsContaining) don't require
// materializing every relationship in a genus.
type RelationshipMember struct {
	bun.BaseModel `bun:"table:kernel.relationship_member,alias:rm"`

	RelationshipID tessella.ResID `bun:"relationship_id,pk"`
	Role           string         `bun:"role,pk"`
	MemberResID    tessella.ResID `bun:"member_res_id,pk"`
}
