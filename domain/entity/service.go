// Package entity implements the res-level operations every genus kind
// built on entity semantics shares: create, attribute set, status
// transition, feature writes, relationship creation, and filtered
// listing.
package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/farant/smaragda/domain/branch"
	"github.com/farant/smaragda/domain/genus"
	"github.com/farant/smaragda/domain/tessella"
	"github.com/farant/smaragda/internal/database"
	"github.com/farant/smaragda/pkg/apperror"
	"github.com/uptrace/bun"
)

// Service implements create_entity, set_attribute, transition_status,
// the feature write path, relationship creation, and list_entities.
type Service struct {
	db        *bun.DB
	store     *tessella.Store
	genusSvc  *genus.Service
	branchSvc *branch.Service
}

// NewService constructs a Service over the shared store, genus catalog,
// and branch service (for ancestor-inherited reads on a non-root branch).
func NewService(db *bun.DB, store *tessella.Store, genusSvc *genus.Service, branchSvc *branch.Service) *Service {
	return &Service{db: db, store: store, genusSvc: genusSvc, branchSvc: branchSvc}
}

// CreateEntity allocates a res of genusID, applies the given attributes
// (validated against the genus), and if targetStatus is set and not the
// genus' initial state, walks the transition graph via BFS emitting one
// status_changed per edge.
func (s *Service) CreateEntity(ctx context.Context, branchID string, genusID tessella.ResID, workspaceID *tessella.ResID, attributes map[string]any, targetStatus string) (tessella.ResID, error) {
	g, err := s.genusSvc.Get(ctx, branchID, genusID)
	if err != nil {
		return "", err
	}
	if g.Meta.Deprecated {
		return "", apperror.ErrGenusDeprecated.WithMessage(fmt.Sprintf("genus %q is deprecated", genusID))
	}

	var path []string
	if targetStatus != "" {
		initial := initialState(g)
		if targetStatus != initial {
			path, err = bfsPath(g, initial, targetStatus)
			if err != nil {
				return "", err
			}
		}
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return "", apperror.NewStoreError(err)
	}
	defer tx.Rollback()

	resID := tessella.NewResID()
	res := &tessella.Res{ID: resID, GenusID: genusID, BranchID: branchID, WorkspaceID: workspaceID}
	if _, err := tx.NewInsert().Model(res).Exec(ctx); err != nil {
		return "", apperror.NewStoreError(err)
	}
	if _, err := s.store.AppendTx(ctx, tx.Tx, resID, branchID, &tessella.CreatedPayload{}, nil); err != nil {
		return "", err
	}

	for key, value := range attributes {
		if err := s.validateAttribute(g, key, value); err != nil {
			return "", err
		}
		if _, err := s.store.AppendTx(ctx, tx.Tx, resID, branchID, &tessella.AttributeSetPayload{Key: key, Value: value}, nil); err != nil {
			return "", err
		}
	}

	for i := 1; i < len(path); i++ {
		if _, err := s.store.AppendTx(ctx, tx.Tx, resID, branchID, &tessella.StatusChangedPayload{From: path[i-1], To: path[i]}, nil); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", apperror.NewStoreError(err)
	}
	return resID, nil
}

// SetAttribute validates key/value against resID's genus and emits
// attribute_set.
func (s *Service) SetAttribute(ctx context.Context, branchID string, resID tessella.ResID, key string, value any) error {
	g, state, err := s.genusFor(ctx, branchID, resID)
	if err != nil {
		return err
	}
	_ = state
	if err := s.validateAttribute(g, key, value); err != nil {
		return err
	}
	_, err = s.store.Append(ctx, resID, branchID, &tessella.AttributeSetPayload{Key: key, Value: value}, nil)
	return err
}

// TransitionStatus requires (current, target) be a direct edge in the
// genus' transition graph.
func (s *Service) TransitionStatus(ctx context.Context, branchID string, resID tessella.ResID, target string) error {
	g, state, err := s.genusFor(ctx, branchID, resID)
	if err != nil {
		return err
	}
	current, _ := state["status"].(string)
	if current == "" {
		current = initialState(g)
	}
	if !genus.HasDirectEdge(g, current, target) {
		return apperror.ErrInvalidTransition.WithMessage(fmt.Sprintf("no transition %s -> %s", current, target))
	}
	_, err = s.store.Append(ctx, resID, branchID, &tessella.StatusChangedPayload{From: current, To: target}, nil)
	return err
}

// SetFeatureAttribute validates editable_parent_statuses before writing
// a feature_attribute_set tessella onto the parent res.
func (s *Service) SetFeatureAttribute(ctx context.Context, branchID string, parentID tessella.ResID, featureID, key string, value any) error {
	if err := s.checkParentEditable(ctx, branchID, parentID); err != nil {
		return err
	}
	_, err := s.store.Append(ctx, parentID, branchID, &tessella.FeatureAttributeSetPayload{FeatureID: featureID, Key: key, Value: value}, nil)
	return err
}

// CreateFeature emits feature_created on the parent res after checking
// editable_parent_statuses.
func (s *Service) CreateFeature(ctx context.Context, branchID string, parentID tessella.ResID, featureGenusID string, attributes map[string]any) (string, error) {
	if err := s.checkParentEditable(ctx, branchID, parentID); err != nil {
		return "", err
	}
	featureID := string(tessella.NewResID())
	_, err := s.store.Append(ctx, parentID, branchID, &tessella.FeatureCreatedPayload{
		FeatureID: featureID, GenusID: featureGenusID, Attributes: attributes,
	}, nil)
	if err != nil {
		return "", err
	}
	return featureID, nil
}

func (s *Service) checkParentEditable(ctx context.Context, branchID string, parentID tessella.ResID) error {
	parentRes, err := s.store.GetRes(ctx, parentID)
	if err != nil {
		return err
	}
	g, err := s.genusSvc.Get(ctx, branchID, parentRes.GenusID)
	if err != nil {
		return err
	}
	if len(g.Meta.EditableParentStatuses) == 0 {
		return nil
	}
	cutoffs, err := s.branchSvc.Cutoffs(ctx, branchID)
	if err != nil {
		return err
	}
	state, err := s.store.Materialize(ctx, parentID, branchID, cutoffs)
	if err != nil {
		return err
	}
	status, _ := state["status"].(string)
	for _, allowed := range g.Meta.EditableParentStatuses {
		if allowed == status {
			return nil
		}
	}
	return apperror.ErrParentNotEditable.WithMessage(fmt.Sprintf("parent status %q does not allow this edit", status))
}

// CreateRelationship validates role cardinalities and member genus
// membership, then emits created, member_added per role×member, and
// attribute_set per attribute.
func (s *Service) CreateRelationship(ctx context.Context, branchID string, relGenusID tessella.ResID, members map[string][]tessella.ResID, attributes map[string]any) (tessella.ResID, error) {
	g, err := s.genusSvc.Get(ctx, branchID, relGenusID)
	if err != nil {
		return "", err
	}
	if g.Meta.Deprecated {
		return "", apperror.ErrGenusDeprecated.WithMessage(fmt.Sprintf("genus %q is deprecated", relGenusID))
	}

	for roleName, role := range g.Roles {
		count := len(members[roleName])
		switch role.Cardinality {
		case genus.CardinalityOne:
			if count != 1 {
				return "", apperror.ErrCardinalityViolation.WithMessage(fmt.Sprintf("role %q requires exactly one member, got %d", roleName, count))
			}
		case genus.CardinalityOneOrMore:
			if count < 1 {
				return "", apperror.ErrCardinalityViolation.WithMessage(fmt.Sprintf("role %q requires at least one member, got %d", roleName, count))
			}
		}
	}

	for roleName, memberIDs := range members {
		role, ok := g.Roles[roleName]
		if !ok {
			return "", apperror.ErrBadParameter.WithMessage(fmt.Sprintf("unknown role %q", roleName))
		}
		for _, memberID := range memberIDs {
			if err := s.checkMemberGenus(ctx, branchID, memberID, role.ValidMemberGenera); err != nil {
				return "", err
			}
		}
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return "", apperror.NewStoreError(err)
	}
	defer tx.Rollback()

	resID := tessella.NewResID()
	res := &tessella.Res{ID: resID, GenusID: relGenusID, BranchID: branchID}
	if _, err := tx.NewInsert().Model(res).Exec(ctx); err != nil {
		return "", apperror.NewStoreError(err)
	}
	if _, err := s.store.AppendTx(ctx, tx.Tx, resID, branchID, &tessella.CreatedPayload{}, nil); err != nil {
		return "", err
	}

	for roleName, memberIDs := range members {
		for _, memberID := range memberIDs {
			if _, err := s.store.AppendTx(ctx, tx.Tx, resID, branchID, &tessella.MemberAddedPayload{Role: roleName, MemberID: string(memberID)}, nil); err != nil {
				return "", err
			}
			_, err := tx.NewRaw(`
				INSERT INTO kernel.relationship_member (relationship_id, role, member_res_id)
				VALUES (?, ?, ?)
				ON CONFLICT DO NOTHING
			`, resID, roleName, memberID).Exec(ctx)
			if err != nil {
				return "", apperror.NewStoreError(err)
			}
		}
	}
	for key, value := range attributes {
		if _, err := s.store.AppendTx(ctx, tx.Tx, resID, branchID, &tessella.AttributeSetPayload{Key: key, Value: value}, nil); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", apperror.NewStoreError(err)
	}
	return resID, nil
}

// MembersOf returns the role→member-ids roster for a relationship res,
// served from the denormalized relationship_member index rather than a
// full materialize, for callers (health checks, list_entities joins)
// that only need the roster.
func (s *Service) MembersOf(ctx context.Context, relationshipID tessella.ResID) (map[string][]tessella.ResID, error) {
	var rows []RelationshipMember
	if err := s.db.NewSelect().Model(&rows).Where("relationship_id = ?", relationshipID).Scan(ctx); err != nil {
		return nil, apperror.NewStoreError(err)
	}
	out := map[string][]tessella.ResID{}
	for _, r := range rows {
		out[r.Role] = append(out[r.Role], r.MemberResID)
	}
	return out, nil
}

// RelationshipsContaining returns every relationship res that lists
// memberID as a member of any role, the reverse direction the
// relationship_member index exists to serve cheaply.
func (s *Service) RelationshipsContaining(ctx context.Context, memberID tessella.ResID) ([]tessella.ResID, error) {
	var ids []tessella.ResID
	err := s.db.NewSelect().Model((*RelationshipMember)(nil)).
		ColumnExpr("DISTINCT relationship_id").
		Where("member_res_id = ?", memberID).
		Scan(ctx, &ids)
	if err != nil {
		return nil, apperror.NewStoreError(err)
	}
	return ids, nil
}

func (s *Service) checkMemberGenus(ctx context.Context, branchID string, memberID tessella.ResID, validGenera []string) error {
	res, err := s.store.GetRes(ctx, memberID)
	if err != nil {
		return err
	}
	if len(validGenera) == 0 {
		return nil
	}
	g, err := s.genusSvc.Get(ctx, branchID, res.GenusID)
	if err != nil {
		return err
	}
	for _, name := range validGenera {
		if name == g.Meta.Name {
			return nil
		}
	}
	return apperror.ErrMemberGenusMismatch.WithMessage(fmt.Sprintf("res %q genus %q not valid for this role", memberID, g.Meta.Name))
}

func (s *Service) genusFor(ctx context.Context, branchID string, resID tessella.ResID) (*genus.Genus, tessella.State, error) {
	res, err := s.store.GetRes(ctx, resID)
	if err != nil {
		return nil, nil, err
	}
	cutoffs, err := s.branchSvc.Cutoffs(ctx, branchID)
	if err != nil {
		return nil, nil, err
	}
	state, err := s.store.Materialize(ctx, resID, branchID, cutoffs)
	if err != nil {
		return nil, nil, err
	}
	g, err := s.genusSvc.Get(ctx, branchID, res.GenusID)
	if err != nil {
		return nil, nil, err
	}
	return g, state, nil
}

func (s *Service) validateAttribute(g *genus.Genus, key string, value any) error {
	attr, ok := g.Attributes[key]
	if !ok {
		return apperror.ErrBadParameter.WithMessage(fmt.Sprintf("unknown attribute %q", key))
	}
	if !typeMatches(attr.Type, value) {
		return apperror.ErrBadParameter.WithMessage(fmt.Sprintf("attribute %q expects %s", key, attr.Type))
	}
	return nil
}

func typeMatches(t genus.AttrType, value any) bool {
	if value == nil {
		return true
	}
	switch t {
	case genus.AttrText, genus.AttrFiletree:
		_, ok := value.(string)
		return ok
	case genus.AttrNumber:
		switch value.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case genus.AttrBoolean:
		_, ok := value.(bool)
		return ok
	}
	return false
}

func initialState(g *genus.Genus) string {
	for name, st := range g.States {
		if st.Initial {
			return name
		}
	}
	return ""
}

// bfsPath finds the shortest transition path from "from" to "to" in the
// genus' transition graph, returning the sequence of states visited
// (including both endpoints). If no path exists, returns
// NoTransitionPath naming every state reachable from "from".
func bfsPath(g *genus.Genus, from, to string) ([]string, error) {
	if from == to {
		return []string{from}, nil
	}

	adjacency := map[string][]string{}
	for _, tr := range g.Transitions {
		adjacency[tr.From] = append(adjacency[tr.From], tr.To)
	}

	type node struct {
		state string
		path  []string
	}
	visited := map[string]bool{from: true}
	queue := []node{{state: from, path: []string{from}}}
	reachable := []string{from}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[cur.state] {
			if visited[next] {
				continue
			}
			visited[next] = true
			path := append(append([]string{}, cur.path...), next)
			if next == to {
				return path, nil
			}
			reachable = append(reachable, next)
			queue = append(queue, node{state: next, path: path})
		}
	}

	return nil, apperror.ErrNoTransitionPath.WithMessage(
		fmt.Sprintf("no path from %q to %q; reachable: %s", from, to, strings.Join(reachable, ", ")),
	)
}
