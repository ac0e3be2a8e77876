package genus

import (
	"fmt"
	"strings"

	"github.com/farant/smaragda/pkg/apperror"
)

// Validate checks every invariant a genus must satisfy regardless of
// kind, then dispatches to the kind-specific checks. It is pure: it
// never touches the store, so define_* and evolve_* can both call it
// before committing any tessellae.
func Validate(g *Genus) error {
	if err := validateAttributes(g.Attributes); err != nil {
		return err
	}
	if err := validateStates(g.States, g.Transitions); err != nil {
		return err
	}

	switch g.Meta.Kind {
	case KindRelationship:
		if err := validateRoles(g.Roles, g.Kind()); err != nil {
			return err
		}
	case KindFeature:
		if err := validateFeature(g); err != nil {
			return err
		}
	case KindAction:
		if err := validateHandler(g.Handler); err != nil {
			return err
		}
	}
	return nil
}

// Kind returns the genus' own kind, so validateRoles can be handed the
// caller's already-resolved Kind rather than re-reading g.Meta.Kind.
func (g *Genus) Kind() Kind { return g.Meta.Kind }

func validateAttributes(attrs map[string]Attribute) error {
	seen := map[string]bool{}
	for name, attr := range attrs {
		lower := strings.ToLower(name)
		if seen[lower] {
			return apperror.ErrSchemaInvalid.WithMessage(fmt.Sprintf("duplicate attribute name %q", name))
		}
		seen[lower] = true

		switch attr.Type {
		case AttrText, AttrNumber, AttrBoolean, AttrFiletree:
		default:
			return apperror.ErrSchemaInvalid.WithMessage(fmt.Sprintf("attribute %q has unknown type %q", name, attr.Type))
		}
	}
	return nil
}

func validateStates(states map[string]State, transitions []Transition) error {
	if len(states) == 0 {
		return nil
	}

	seen := map[string]bool{}
	initialCount := 0
	for name, st := range states {
		lower := strings.ToLower(name)
		if seen[lower] {
			return apperror.ErrSchemaInvalid.WithMessage(fmt.Sprintf("duplicate state name %q", name))
		}
		seen[lower] = true
		if st.Initial {
			initialCount++
		}
	}
	if initialCount != 1 {
		return apperror.ErrSchemaInvalid.WithMessage(fmt.Sprintf("genus must have exactly one initial state, found %d", initialCount))
	}

	for _, tr := range transitions {
		if _, ok := states[tr.From]; !ok {
			return apperror.ErrSchemaInvalid.WithMessage(fmt.Sprintf("transition references undeclared state %q", tr.From))
		}
		if _, ok := states[tr.To]; !ok {
			return apperror.ErrSchemaInvalid.WithMessage(fmt.Sprintf("transition references undeclared state %q", tr.To))
		}
	}
	return nil
}

func validateRoles(roles map[string]Role, _ Kind) error {
	if len(roles) < 2 {
		return apperror.ErrSchemaInvalid.WithMessage(fmt.Sprintf("relationship genus must declare at least 2 roles, found %d", len(roles)))
	}
	for name, role := range roles {
		switch role.Cardinality {
		case CardinalityOne, CardinalityOneOrMore, CardinalityZeroOrMore:
		default:
			return apperror.ErrSchemaInvalid.WithMessage(fmt.Sprintf("role %q has unknown cardinality %q", name, role.Cardinality))
		}
		if len(role.ValidMemberGenera) == 0 {
			return apperror.ErrSchemaInvalid.WithMessage(fmt.Sprintf("role %q declares no valid_member_genera", name))
		}
	}
	return nil
}

func validateFeature(g *Genus) error {
	if g.Meta.ParentGenusName == "" {
		return apperror.ErrSchemaInvalid.WithMessage("feature genus must declare parent_genus_name")
	}
	return nil
}

// knownHandlerStepTypes is the closed set of side effects an action
// handler step may perform.
var knownHandlerStepTypes = map[string]bool{
	"set_attribute":     true,
	"transition_status":  true,
	"create_res":         true,
	"create_log":         true,
	"create_error":       true,
	"create_task":        true,
}

func validateHandler(steps []HandlerStep) error {
	for i, step := range steps {
		if !knownHandlerStepTypes[step.Type] {
			return apperror.ErrSchemaInvalid.WithMessage(fmt.Sprintf("handler step %d has unknown type %q", i, step.Type))
		}
	}
	return nil
}

// ValidMemberGeneraResolvable checks that every genus name a relationship
// role lists resolves to an existing entity (kind-null) genus.
// resolveKind looks a genus name up and returns its Kind and whether it
// exists; callers (the define_relationship_genus handler) supply it
// bound to a live store lookup, keeping this function itself pure.
func ValidMemberGeneraResolvable(roles map[string]Role, resolveKind func(name string) (Kind, bool)) error {
	for roleName, role := range roles {
		for _, memberName := range role.ValidMemberGenera {
			kind, ok := resolveKind(memberName)
			if !ok {
				return apperror.ErrSchemaInvalid.WithMessage(fmt.Sprintf("role %q references unknown genus %q", roleName, memberName))
			}
			if kind != KindEntity {
				return apperror.ErrMemberGenusMismatch.WithMessage(fmt.Sprintf("role %q references non-entity genus %q", roleName, memberName))
			}
		}
	}
	return nil
}
