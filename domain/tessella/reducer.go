package tessella

import "fmt"

// State is the folded projection of a res' tessella log. Attributes live
// directly on State (state["title"], not state["attributes"]["title"]);
// "features" and "members" are the two reserved nested keys.
type State map[string]any

// clone returns a shallow-ish copy of s deep enough that mutating the
// copy's top-level keys, its "features" map, and its "members" map never
// touches the original. Attribute values themselves are treated as
// immutable once written, matching how they arrive (decoded JSON scalars).
func (s State) clone() State {
	out := make(State, len(s))
	for k, v := range s {
		switch vv := v.(type) {
		case map[string]any:
			out[k] = cloneAnyMap(vv)
		case []string:
			cp := make([]string, len(vv))
			copy(cp, vv)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}

func cloneAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch vv := v.(type) {
		case map[string]any:
			out[k] = cloneAnyMap(vv)
		case []string:
			cp := make([]string, len(vv))
			copy(cp, vv)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}

func (s State) features() map[string]any {
	f, _ := s["features"].(map[string]any)
	return f
}

func (s State) ensureFeatures() map[string]any {
	f := s.features()
	if f == nil {
		f = map[string]any{}
		s["features"] = f
	}
	return f
}

func (s State) members() map[string]any {
	m, _ := s["members"].(map[string]any)
	return m
}

func (s State) ensureMembers() map[string]any {
	m := s.members()
	if m == nil {
		m = map[string]any{}
		s["members"] = m
	}
	return m
}

// Reduce folds an ordered sequence of tessellae into a State, starting
// from {}. It is a pure, total function over the closed Tag sum type:
// every Tag above has exactly one case here. Reduce never mutates any
// Tessella it is given.
func Reduce(log []Tessella) (State, error) {
	state := State{}
	for _, t := range log {
		payload, err := Decode(t.Type, t.Data)
		if err != nil {
			return nil, err
		}
		state, err = apply(state, payload)
		if err != nil {
			return nil, fmt.Errorf("tessella %d: %w", t.ID, err)
		}
	}
	return state, nil
}

func apply(state State, p Payload) (State, error) {
	next := state.clone()
	switch v := p.(type) {
	case *CreatedPayload:
		return State{}, nil

	case *AttributeSetPayload:
		next[v.Key] = v.Value

	case *AttributeRemovedPayload:
		delete(next, v.Key)

	case *StatusChangedPayload:
		next["status"] = v.To

	case *FeatureCreatedPayload:
		feature := map[string]any{"genus_id": v.GenusID}
		for k, val := range v.Attributes {
			feature[k] = val
		}
		next.ensureFeatures()[v.FeatureID] = feature

	case *FeatureAttributeSetPayload:
		features := next.ensureFeatures()
		feature, _ := features[v.FeatureID].(map[string]any)
		if feature == nil {
			return nil, fmt.Errorf("feature_attribute_set: unknown feature %q", v.FeatureID)
		}
		feature = cloneAnyMap(feature)
		feature[v.Key] = v.Value
		features[v.FeatureID] = feature

	case *FeatureStatusChangedPayload:
		features := next.ensureFeatures()
		feature, _ := features[v.FeatureID].(map[string]any)
		if feature == nil {
			return nil, fmt.Errorf("feature_status_changed: unknown feature %q", v.FeatureID)
		}
		feature = cloneAnyMap(feature)
		feature["status"] = v.To
		features[v.FeatureID] = feature

	case *MemberAddedPayload:
		members := next.ensureMembers()
		list, _ := members[v.Role].([]string)
		members[v.Role] = append(append([]string{}, list...), v.MemberID)

	case *MemberRemovedPayload:
		applyMemberRemoved(next, v)

	case *GenusAttributeDefinedPayload:
		genusMap(next, "attributes")[v.Name] = map[string]any{
			"name": v.Name, "type": v.Type, "required": v.Required, "default_value": v.DefaultValue,
		}

	case *GenusStateDefinedPayload:
		genusMap(next, "states")[v.Name] = map[string]any{"name": v.Name, "initial": v.Initial}

	case *GenusTransitionDefinedPayload:
		list, _ := next["transitions"].([]any)
		next["transitions"] = append(append([]any{}, list...), map[string]any{
			"from": v.From, "to": v.To, "name": v.Name,
		})

	case *GenusRoleDefinedPayload:
		genusMap(next, "roles")[v.Name] = map[string]any{
			"name": v.Name, "valid_member_genera": v.ValidMemberGenera, "cardinality": v.Cardinality,
		}

	case *GenusMetaSetPayload:
		genusMap(next, "meta")[v.Key] = v.Value

	case *GenusResourceDefinedPayload:
		list, _ := next["resources"].([]any)
		next["resources"] = append(append([]any{}, list...), map[string]any{
			"name": v.Name, "genus_name": v.GenusName, "required_status": v.RequiredStatus,
		})

	case *GenusParameterDefinedPayload:
		list, _ := next["parameters"].([]any)
		next["parameters"] = append(append([]any{}, list...), map[string]any{
			"name": v.Name, "type": v.Type, "required": v.Required,
		})

	case *GenusHandlerStepAddedPayload:
		list, _ := next["handler"].([]any)
		next["handler"] = append(append([]any{}, list...), map[string]any{
			"type": v.Type, "fields": v.Fields,
		})

	case *GenusLaneDefinedPayload:
		genusMap(next, "lanes")[v.Name] = map[string]any{"name": v.Name, "position": v.Position}

	case *GenusStepDefinedPayload:
		// Last-value-wins on step name: steps are templates, not data.
		genusMap(next, "steps")[v.Name] = map[string]any{
			"name": v.Name, "lane": v.Lane, "position": v.Position, "kind": v.Kind, "fields": v.Fields,
		}

	default:
		return nil, fmt.Errorf("reduce: unhandled payload %T", p)
	}
	return next, nil
}

// genusMap returns (creating if absent) the named sub-dictionary of a
// genus projection, e.g. state["attributes"].
func genusMap(s State, key string) map[string]any {
	m, _ := s[key].(map[string]any)
	if m == nil {
		m = map[string]any{}
		s[key] = m
	}
	return m
}

// applyMemberRemoved removes one occurrence of member_id from the roster.
// A present role removes only from that role's multiset; an absent role
// removes the first occurrence found in any role.
func applyMemberRemoved(state State, v *MemberRemovedPayload) {
	members := state.ensureMembers()
	if v.Role != "" {
		list, _ := members[v.Role].([]string)
		members[v.Role] = removeFirst(list, v.MemberID)
		return
	}
	for role, raw := range members {
		list, _ := raw.([]string)
		if idx := indexOf(list, v.MemberID); idx >= 0 {
			members[role] = removeFirst(list, v.MemberID)
			return
		}
	}
}

func indexOf(list []string, target string) int {
	for i, v := range list {
		if v == target {
			return i
		}
	}
	return -1
}

func removeFirst(list []string, target string) []string {
	idx := indexOf(list, target)
	if idx < 0 {
		return list
	}
	out := make([]string, 0, len(list)-1)
	out = append(out, list[:idx]...)
	out = append(out, list[idx+1:]...)
	return out
}
