package genus

import (
	"fmt"

	"github.com/farant/smaragda/pkg/apperror"
)

// ValidateEvolution checks that next only adds to prev: new attributes,
// new states, new transitions, and a widened (never narrowed)
// valid_member_genera union per role. It never inspects kind-specific
// invariants beyond that — Validate(next) should still be called on
// the merged result separately.
func ValidateEvolution(prev, next *Genus) error {
	for name, old := range prev.Attributes {
		updated, ok := next.Attributes[name]
		if !ok {
			return apperror.ErrEvolutionNonAdditive.WithMessage(fmt.Sprintf("attribute %q removed", name))
		}
		if updated.Type != old.Type {
			return apperror.ErrEvolutionNonAdditive.WithMessage(fmt.Sprintf("attribute %q retyped from %q to %q", name, old.Type, updated.Type))
		}
	}

	for name := range prev.States {
		if _, ok := next.States[name]; !ok {
			return apperror.ErrEvolutionNonAdditive.WithMessage(fmt.Sprintf("state %q removed", name))
		}
	}

	if len(next.Transitions) < len(prev.Transitions) {
		return apperror.ErrEvolutionNonAdditive.WithMessage("transitions removed")
	}
	for _, old := range prev.Transitions {
		if !containsTransition(next.Transitions, old) {
			return apperror.ErrEvolutionNonAdditive.WithMessage(fmt.Sprintf("transition %s->%s removed", old.From, old.To))
		}
	}

	for name, old := range prev.Roles {
		updated, ok := next.Roles[name]
		if !ok {
			return apperror.ErrEvolutionNonAdditive.WithMessage(fmt.Sprintf("role %q removed", name))
		}
		for _, g := range old.ValidMemberGenera {
			if !containsString(updated.ValidMemberGenera, g) {
				return apperror.ErrEvolutionNonAdditive.WithMessage(fmt.Sprintf("role %q lost valid member genus %q", name, g))
			}
		}
	}

	return nil
}

func containsTransition(list []Transition, target Transition) bool {
	for _, t := range list {
		if t.From == target.From && t.To == target.To && t.Name == target.Name {
			return true
		}
	}
	return false
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
