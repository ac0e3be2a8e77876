package tessella

import (
	"encoding/json"
	"fmt"
)

// Tag identifies the shape of a tessella's data payload. The tag set is
// closed: Decode rejects anything else so the reducer never has to guess
// at an unknown shape.
type Tag string

const (
	TagCreated             Tag = "created"
	TagAttributeSet        Tag = "attribute_set"
	TagAttributeRemoved    Tag = "attribute_removed"
	TagStatusChanged       Tag = "status_changed"
	TagFeatureCreated      Tag = "feature_created"
	TagFeatureAttributeSet Tag = "feature_attribute_set"
	TagFeatureStatusChanged Tag = "feature_status_changed"
	TagMemberAdded         Tag = "member_added"
	TagMemberRemoved       Tag = "member_removed"

	// Genus tags mutate the sub-dictionaries of a genus' projected state.
	// Genus state is itself just a derived projection of these tessellae.
	TagGenusAttributeDefined  Tag = "genus_attribute_defined"
	TagGenusStateDefined      Tag = "genus_state_defined"
	TagGenusTransitionDefined Tag = "genus_transition_defined"
	TagGenusRoleDefined       Tag = "genus_role_defined"
	TagGenusMetaSet           Tag = "genus_meta_set"
	TagGenusResourceDefined   Tag = "genus_resource_defined"
	TagGenusParameterDefined  Tag = "genus_parameter_defined"
	TagGenusHandlerStepAdded  Tag = "genus_handler_step_added"
	TagGenusLaneDefined       Tag = "genus_lane_defined"
	TagGenusStepDefined       Tag = "genus_step_defined"
)

// Payload is implemented by every concrete tessella data shape.
type Payload interface {
	Tag() Tag
}

type CreatedPayload struct{}

func (CreatedPayload) Tag() Tag { return TagCreated }

type AttributeSetPayload struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (AttributeSetPayload) Tag() Tag { return TagAttributeSet }

type AttributeRemovedPayload struct {
	Key string `json:"key"`
}

func (AttributeRemovedPayload) Tag() Tag { return TagAttributeRemoved }

type StatusChangedPayload struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
}

func (StatusChangedPayload) Tag() Tag { return TagStatusChanged }

type FeatureCreatedPayload struct {
	FeatureID  string         `json:"feature_id"`
	GenusID    string         `json:"genus_id"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func (FeatureCreatedPayload) Tag() Tag { return TagFeatureCreated }

type FeatureAttributeSetPayload struct {
	FeatureID string `json:"feature_id"`
	Key       string `json:"key"`
	Value     any    `json:"value"`
}

func (FeatureAttributeSetPayload) Tag() Tag { return TagFeatureAttributeSet }

type FeatureStatusChangedPayload struct {
	FeatureID string `json:"feature_id"`
	To        string `json:"to"`
}

func (FeatureStatusChangedPayload) Tag() Tag { return TagFeatureStatusChanged }

type MemberAddedPayload struct {
	Role     string `json:"role"`
	MemberID string `json:"member_id"`
}

func (MemberAddedPayload) Tag() Tag { return TagMemberAdded }

type MemberRemovedPayload struct {
	Role     string `json:"role,omitempty"`
	MemberID string `json:"member_id"`
}

func (MemberRemovedPayload) Tag() Tag { return TagMemberRemoved }

// GenusAttributeDefinedPayload declares one attribute on a genus.
type GenusAttributeDefinedPayload struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Required     bool   `json:"required"`
	DefaultValue any    `json:"default_value,omitempty"`
}

func (GenusAttributeDefinedPayload) Tag() Tag { return TagGenusAttributeDefined }

type GenusStateDefinedPayload struct {
	Name    string `json:"name"`
	Initial bool   `json:"initial"`
}

func (GenusStateDefinedPayload) Tag() Tag { return TagGenusStateDefined }

type GenusTransitionDefinedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
	Name string `json:"name,omitempty"`
}

func (GenusTransitionDefinedPayload) Tag() Tag { return TagGenusTransitionDefined }

type GenusRoleDefinedPayload struct {
	Name              string   `json:"name"`
	ValidMemberGenera []string `json:"valid_member_genera"`
	Cardinality       string   `json:"cardinality"`
}

func (GenusRoleDefinedPayload) Tag() Tag { return TagGenusRoleDefined }

// GenusMetaSetPayload sets one key in genus meta (name, kind, description,
// taxonomy_id, deprecated, deprecated_at, editable_parent_statuses,
// parent_genus_name, ...).
type GenusMetaSetPayload struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (GenusMetaSetPayload) Tag() Tag { return TagGenusMetaSet }

// GenusResourceDefinedPayload declares one action-genus resource slot.
type GenusResourceDefinedPayload struct {
	Name           string `json:"name"`
	GenusName      string `json:"genus_name"`
	RequiredStatus string `json:"required_status,omitempty"`
}

func (GenusResourceDefinedPayload) Tag() Tag { return TagGenusResourceDefined }

// GenusParameterDefinedPayload declares one action-genus parameter.
type GenusParameterDefinedPayload struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

func (GenusParameterDefinedPayload) Tag() Tag { return TagGenusParameterDefined }

// GenusHandlerStepAddedPayload appends one side-effect step to an action
// genus' handler, in order.
type GenusHandlerStepAddedPayload struct {
	Type   string         `json:"type"`
	Fields map[string]any `json:"fields"`
}

func (GenusHandlerStepAddedPayload) Tag() Tag { return TagGenusHandlerStepAdded }

// GenusLaneDefinedPayload declares one process-genus lane.
type GenusLaneDefinedPayload struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

func (GenusLaneDefinedPayload) Tag() Tag { return TagGenusLaneDefined }

// GenusStepDefinedPayload declares (or redefines) one process-genus step.
// Fields carries the kind-specific configuration (action_name,
// action_resource_bindings, fetch_source, fetch_into, gate_conditions,
// branch_condition, branch_map, branch_default).
type GenusStepDefinedPayload struct {
	Name     string         `json:"name"`
	Lane     string         `json:"lane"`
	Position int            `json:"position"`
	Kind     string         `json:"kind"`
	Fields   map[string]any `json:"fields,omitempty"`
}

func (GenusStepDefinedPayload) Tag() Tag { return TagGenusStepDefined }

// Decode parses raw tessella data into its concrete Payload given the tag.
// Unknown tags are a hard error: every writer is the kernel itself, so an
// unrecognized tag means corrupt data or a version skew, not a legitimate
// extension point.
func Decode(tag Tag, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch tag {
	case TagCreated:
		p = &CreatedPayload{}
	case TagAttributeSet:
		p = &AttributeSetPayload{}
	case TagAttributeRemoved:
		p = &AttributeRemovedPayload{}
	case TagStatusChanged:
		p = &StatusChangedPayload{}
	case TagFeatureCreated:
		p = &FeatureCreatedPayload{}
	case TagFeatureAttributeSet:
		p = &FeatureAttributeSetPayload{}
	case TagFeatureStatusChanged:
		p = &FeatureStatusChangedPayload{}
	case TagMemberAdded:
		p = &MemberAddedPayload{}
	case TagMemberRemoved:
		p = &MemberRemovedPayload{}
	case TagGenusAttributeDefined:
		p = &GenusAttributeDefinedPayload{}
	case TagGenusStateDefined:
		p = &GenusStateDefinedPayload{}
	case TagGenusTransitionDefined:
		p = &GenusTransitionDefinedPayload{}
	case TagGenusRoleDefined:
		p = &GenusRoleDefinedPayload{}
	case TagGenusMetaSet:
		p = &GenusMetaSetPayload{}
	case TagGenusResourceDefined:
		p = &GenusResourceDefinedPayload{}
	case TagGenusParameterDefined:
		p = &GenusParameterDefinedPayload{}
	case TagGenusHandlerStepAdded:
		p = &GenusHandlerStepAddedPayload{}
	case TagGenusLaneDefined:
		p = &GenusLaneDefinedPayload{}
	case TagGenusStepDefined:
		p = &GenusStepDefinedPayload{}
	default:
		return nil, fmt.Errorf("tessella: unknown tag %q", tag)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("tessella: decode %q: %w", tag, err)
		}
	}
	return p, nil
}

// Encode marshals a payload to its stored JSON form. Callers always know
// the tag already (it comes from Payload.Tag()), so Encode just delegates
// to encoding/json for the canonical, stable serialization §6 requires.
func Encode(p Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("tessella: encode %q: %w", p.Tag(), err)
	}
	return raw, nil
}
