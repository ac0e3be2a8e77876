package genus

import (
	"context"
	"fmt"

	"github.com/farant/smaragda/domain/branch"
	"github.com/farant/smaragda/domain/sentinel"
	"github.com/farant/smaragda/domain/tessella"
	"github.com/farant/smaragda/pkg/apperror"
)

// Service implements the genus definition surface: define_entity_genus,
// define_feature_genus, define_relationship_genus, define_action_genus,
// define_process_genus, define_serialization_genus, plus evolve_genus
// and the read paths everything else in the kernel uses to resolve a
// genus id to its typed shape.
type Service struct {
	store     *tessella.Store
	branchSvc *branch.Service
}

// NewService constructs a Service over the shared tessella store and the
// branch service it uses to resolve a branch's ancestor-inherited genus
// catalog.
func NewService(store *tessella.Store, branchSvc *branch.Service) *Service {
	return &Service{store: store, branchSvc: branchSvc}
}

// cutoffsFor resolves branchID's ancestor-chain cutoffs, the map every
// non-sentinel Materialize/ListByGenus call needs so a genus defined on
// an ancestor branch is still visible from a descendant. main has no
// ancestors, so this is a no-op there.
func (s *Service) cutoffsFor(ctx context.Context, branchID string) (map[string]tessella.TessellaID, error) {
	return s.branchSvc.Cutoffs(ctx, branchID)
}

// Spec is the input to every define_* operation: the genus shape the
// caller wants, before it has been assigned an id or validated.
type Spec struct {
	Meta        Meta
	Attributes  []Attribute
	States      []State
	Transitions []Transition
	Roles       []Role
	Resources   []Resource
	Parameters  []Parameter
	Handler     []HandlerStep
	Lanes       []Lane
	Steps       []Step
}

func (s *Service) defineKind(ctx context.Context, branchID string, kind Kind, spec Spec) (tessella.ResID, error) {
	spec.Meta.Kind = kind
	g := specToGenus(spec)

	if kind == KindRelationship {
		if err := s.checkMemberGenera(ctx, branchID, g.Roles); err != nil {
			return "", err
		}
	}
	if err := Validate(g); err != nil {
		return "", err
	}

	resID, err := s.store.CreateRes(ctx, sentinel.MetaGenus, branchID, nil)
	if err != nil {
		return "", err
	}

	if err := s.emitDefinition(ctx, resID, branchID, spec); err != nil {
		return "", err
	}
	return resID, nil
}

// DefineWithID defines a genus at a caller-chosen res id instead of a
// freshly minted one, for bootstrap's sentinel genera: their ids are
// fixed sentinel constants other packages reference directly, so they
// cannot go through the normal CreateRes path. Idempotent: if the res
// already exists (a prior bootstrap run), it is left untouched and the
// definition tessellae are not re-emitted.
func (s *Service) DefineWithID(ctx context.Context, branchID string, id tessella.ResID, kind Kind, spec Spec) error {
	spec.Meta.Kind = kind
	g := specToGenus(spec)
	if err := Validate(g); err != nil {
		return err
	}

	created, err := s.store.CreateResWithID(ctx, id, sentinel.MetaGenus, branchID, nil)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	return s.emitDefinition(ctx, id, branchID, spec)
}

// DefineEntityGenus defines a plain entity genus (kind == KindEntity).
func (s *Service) DefineEntityGenus(ctx context.Context, branchID string, spec Spec) (tessella.ResID, error) {
	return s.defineKind(ctx, branchID, KindEntity, spec)
}

// DefineFeatureGenus defines a feature genus nested under a parent
// entity genus (spec.Meta.ParentGenusName).
func (s *Service) DefineFeatureGenus(ctx context.Context, branchID string, spec Spec) (tessella.ResID, error) {
	return s.defineKind(ctx, branchID, KindFeature, spec)
}

// DefineRelationshipGenus defines a genus describing a typed edge
// between ≥2 roles, each constrained to a set of entity genera.
func (s *Service) DefineRelationshipGenus(ctx context.Context, branchID string, spec Spec) (tessella.ResID, error) {
	return s.defineKind(ctx, branchID, KindRelationship, spec)
}

// DefineActionGenus defines a declarative handler: resources,
// parameters, and an ordered side-effect list.
func (s *Service) DefineActionGenus(ctx context.Context, branchID string, spec Spec) (tessella.ResID, error) {
	return s.defineKind(ctx, branchID, KindAction, spec)
}

// DefineProcessGenus defines a multi-lane step DAG template.
func (s *Service) DefineProcessGenus(ctx context.Context, branchID string, spec Spec) (tessella.ResID, error) {
	return s.defineKind(ctx, branchID, KindProcess, spec)
}

// DefineSerializationGenus defines a genus describing an export shape.
func (s *Service) DefineSerializationGenus(ctx context.Context, branchID string, spec Spec) (tessella.ResID, error) {
	return s.defineKind(ctx, branchID, KindSerialization, spec)
}

// emitDefinition writes one genus_*_defined / genus_meta_set tessella per
// declared field of spec against the genus res resID. It writes no
// created tessella: a new genus res gets that from CreateRes or
// CreateResWithID, and EvolveGenus calls this on an existing res.
func (s *Service) emitDefinition(ctx context.Context, resID tessella.ResID, branchID string, spec Spec) error {
	metaPairs := metaToPairs(spec.Meta)
	for _, p := range metaPairs {
		if _, err := s.store.Append(ctx, resID, branchID, &tessella.GenusMetaSetPayload{Key: p.key, Value: p.value}, nil); err != nil {
			return err
		}
	}
	for _, a := range spec.Attributes {
		payload := &tessella.GenusAttributeDefinedPayload{Name: a.Name, Type: string(a.Type), Required: a.Required, DefaultValue: a.DefaultValue}
		if _, err := s.store.Append(ctx, resID, branchID, payload, nil); err != nil {
			return err
		}
	}
	for _, st := range spec.States {
		payload := &tessella.GenusStateDefinedPayload{Name: st.Name, Initial: st.Initial}
		if _, err := s.store.Append(ctx, resID, branchID, payload, nil); err != nil {
			return err
		}
	}
	for _, tr := range spec.Transitions {
		payload := &tessella.GenusTransitionDefinedPayload{From: tr.From, To: tr.To, Name: tr.Name}
		if _, err := s.store.Append(ctx, resID, branchID, payload, nil); err != nil {
			return err
		}
	}
	for _, r := range spec.Roles {
		payload := &tessella.GenusRoleDefinedPayload{Name: r.Name, ValidMemberGenera: r.ValidMemberGenera, Cardinality: string(r.Cardinality)}
		if _, err := s.store.Append(ctx, resID, branchID, payload, nil); err != nil {
			return err
		}
	}
	for _, r := range spec.Resources {
		payload := &tessella.GenusResourceDefinedPayload{Name: r.Name, GenusName: r.GenusName, RequiredStatus: r.RequiredStatus}
		if _, err := s.store.Append(ctx, resID, branchID, payload, nil); err != nil {
			return err
		}
	}
	for _, p := range spec.Parameters {
		payload := &tessella.GenusParameterDefinedPayload{Name: p.Name, Type: string(p.Type), Required: p.Required}
		if _, err := s.store.Append(ctx, resID, branchID, payload, nil); err != nil {
			return err
		}
	}
	for _, h := range spec.Handler {
		payload := &tessella.GenusHandlerStepAddedPayload{Type: h.Type, Fields: h.Fields}
		if _, err := s.store.Append(ctx, resID, branchID, payload, nil); err != nil {
			return err
		}
	}
	for _, l := range spec.Lanes {
		payload := &tessella.GenusLaneDefinedPayload{Name: l.Name, Position: l.Position}
		if _, err := s.store.Append(ctx, resID, branchID, payload, nil); err != nil {
			return err
		}
	}
	for _, st := range spec.Steps {
		payload := &tessella.GenusStepDefinedPayload{Name: st.Name, Lane: st.Lane, Position: st.Position, Kind: st.Kind, Fields: st.Fields}
		if _, err := s.store.Append(ctx, resID, branchID, payload, nil); err != nil {
			return err
		}
	}
	return nil
}

// EvolveGenus appends an additional spec fragment to an existing genus,
// after checking the additive-only invariant against the current
// projection.
func (s *Service) EvolveGenus(ctx context.Context, branchID string, genusID tessella.ResID, addition Spec) error {
	prev, err := s.Get(ctx, branchID, genusID)
	if err != nil {
		return err
	}
	if prev.Meta.Deprecated {
		return apperror.ErrGenusDeprecated.WithMessage(fmt.Sprintf("genus %q is deprecated", genusID))
	}

	merged := mergeSpec(prev, addition)
	if err := ValidateEvolution(prev, merged); err != nil {
		return err
	}
	if err := Validate(merged); err != nil {
		return err
	}

	return s.emitDefinition(ctx, genusID, branchID, addition)
}

// Deprecate marks a genus deprecated, blocking new entity creation and
// further evolution while leaving reads intact.
func (s *Service) Deprecate(ctx context.Context, branchID string, genusID tessella.ResID) error {
	_, err := s.store.Append(ctx, genusID, branchID, &tessella.GenusMetaSetPayload{Key: "deprecated", Value: true}, nil)
	return err
}

// Restore clears a genus' deprecated flag.
func (s *Service) Restore(ctx context.Context, branchID string, genusID tessella.ResID) error {
	_, err := s.store.Append(ctx, genusID, branchID, &tessella.GenusMetaSetPayload{Key: "deprecated", Value: false}, nil)
	return err
}

// Get materializes genusID and projects it into a typed Genus.
func (s *Service) Get(ctx context.Context, branchID string, genusID tessella.ResID) (*Genus, error) {
	cutoffs, err := s.cutoffsFor(ctx, branchID)
	if err != nil {
		return nil, err
	}
	state, err := s.store.Materialize(ctx, genusID, branchID, cutoffs)
	if err != nil {
		return nil, err
	}
	return Project(genusID, state)
}

// List returns every non-sentinel genus of the given kind visible on
// branchID.
func (s *Service) List(ctx context.Context, branchID string, kind Kind) ([]*Genus, error) {
	cutoffs, err := s.cutoffsFor(ctx, branchID)
	if err != nil {
		return nil, err
	}
	ids, err := s.store.ListByGenus(ctx, sentinel.MetaGenus, branchID, cutoffs)
	if err != nil {
		return nil, err
	}

	var out []*Genus
	for _, id := range ids {
		if sentinel.IsSentinelGenus(id) {
			continue
		}
		g, err := s.Get(ctx, branchID, id)
		if err != nil {
			return nil, err
		}
		if g.Meta.Kind == kind {
			out = append(out, g)
		}
	}
	return out, nil
}

// GetByName resolves a genus by its declared meta.name, as roles,
// action resources, and feature parents all reference genera by name
// rather than by id.
func (s *Service) GetByName(ctx context.Context, branchID, name string) (*Genus, error) {
	all, err := s.allByName(ctx, branchID)
	if err != nil {
		return nil, err
	}
	g, ok := all[name]
	if !ok {
		return nil, apperror.NewNotFound("genus", name)
	}
	return g, nil
}

// checkMemberGenera resolves every valid_member_genera name a
// relationship spec lists against the live genus catalog.
func (s *Service) checkMemberGenera(ctx context.Context, branchID string, roles map[string]Role) error {
	all, err := s.allByName(ctx, branchID)
	if err != nil {
		return err
	}
	return ValidMemberGeneraResolvable(roles, func(name string) (Kind, bool) {
		g, ok := all[name]
		if !ok {
			return "", false
		}
		return g.Meta.Kind, true
	})
}

func (s *Service) allByName(ctx context.Context, branchID string) (map[string]*Genus, error) {
	cutoffs, err := s.cutoffsFor(ctx, branchID)
	if err != nil {
		return nil, err
	}
	ids, err := s.store.ListByGenus(ctx, sentinel.MetaGenus, branchID, cutoffs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Genus, len(ids))
	for _, id := range ids {
		g, err := s.Get(ctx, branchID, id)
		if err != nil {
			return nil, err
		}
		out[g.Meta.Name] = g
	}
	return out, nil
}

type metaPair struct {
	key   string
	value any
}

// metaToPairs flattens the populated fields of a Meta into genus_meta_set
// key/value pairs, skipping zero-valued optional fields.
func metaToPairs(m Meta) []metaPair {
	pairs := []metaPair{{"name", m.Name}}
	if m.Kind != "" {
		pairs = append(pairs, metaPair{"kind", string(m.Kind)})
	}
	if m.Description != "" {
		pairs = append(pairs, metaPair{"description", m.Description})
	}
	if m.TaxonomyID != "" {
		pairs = append(pairs, metaPair{"taxonomy_id", m.TaxonomyID})
	}
	if len(m.EditableParentStatuses) > 0 {
		pairs = append(pairs, metaPair{"editable_parent_statuses", m.EditableParentStatuses})
	}
	if m.ParentGenusName != "" {
		pairs = append(pairs, metaPair{"parent_genus_name", m.ParentGenusName})
	}
	return pairs
}

func specToGenus(spec Spec) *Genus {
	g := &Genus{
		Meta:       spec.Meta,
		Attributes: map[string]Attribute{},
		States:     map[string]State{},
		Roles:      map[string]Role{},
		Lanes:      map[string]Lane{},
		Steps:      map[string]Step{},
	}
	for _, a := range spec.Attributes {
		g.Attributes[a.Name] = a
	}
	for _, st := range spec.States {
		g.States[st.Name] = st
	}
	g.Transitions = append(g.Transitions, spec.Transitions...)
	for _, r := range spec.Roles {
		g.Roles[r.Name] = r
	}
	g.Resources = append(g.Resources, spec.Resources...)
	g.Parameters = append(g.Parameters, spec.Parameters...)
	g.Handler = append(g.Handler, spec.Handler...)
	for _, l := range spec.Lanes {
		g.Lanes[l.Name] = l
	}
	for _, st := range spec.Steps {
		g.Steps[st.Name] = st
	}
	return g
}

// mergeSpec produces the projected Genus that would result from applying
// addition on top of prev, without writing anything: ValidateEvolution
// and Validate both run against this before any tessella is appended.
func mergeSpec(prev *Genus, addition Spec) *Genus {
	next := &Genus{
		ID:         prev.ID,
		Meta:       prev.Meta,
		Attributes: cloneAttrs(prev.Attributes),
		States:     cloneStates(prev.States),
		Roles:      cloneRoles(prev.Roles),
		Lanes:      cloneLanes(prev.Lanes),
		Steps:      cloneSteps(prev.Steps),
	}
	next.Transitions = append(next.Transitions, prev.Transitions...)
	next.Resources = append(next.Resources, prev.Resources...)
	next.Parameters = append(next.Parameters, prev.Parameters...)
	next.Handler = append(next.Handler, prev.Handler...)

	for _, a := range addition.Attributes {
		next.Attributes[a.Name] = a
	}
	for _, st := range addition.States {
		next.States[st.Name] = st
	}
	next.Transitions = append(next.Transitions, addition.Transitions...)
	for _, r := range addition.Roles {
		next.Roles[r.Name] = r
	}
	next.Resources = append(next.Resources, addition.Resources...)
	next.Parameters = append(next.Parameters, addition.Parameters...)
	next.Handler = append(next.Handler, addition.Handler...)
	for _, l := range addition.Lanes {
		next.Lanes[l.Name] = l
	}
	for _, st := range addition.Steps {
		next.Steps[st.Name] = st
	}
	return next
}

func cloneAttrs(m map[string]Attribute) map[string]Attribute {
	out := make(map[string]Attribute, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStates(m map[string]State) map[string]State {
	out := make(map[string]State, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneRoles(m map[string]Role) map[string]Role {
	out := make(map[string]Role, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneLanes(m map[string]Lane) map[string]Lane {
	out := make(map[string]Lane, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSteps(m map[string]Step) map[string]Step {
	out := make(map[string]Step, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
