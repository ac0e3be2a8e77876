package health

import (
	"fmt"

	"github.com/farant/smaragda/domain/genus"
	"github.com/farant/smaragda/domain/tessella"
)

// missingRequiredAttributes reports every attribute g declares required
// that state doesn't set at all.
func missingRequiredAttributes(g *genus.Genus, state tessella.State) []Issue {
	var out []Issue
	for name, attr := range g.Attributes {
		if !attr.Required {
			continue
		}
		if _, ok := state[name]; !ok {
			out = append(out, Issue{
				Kind: MissingRequiredAttribute, AttributeName: name,
				Detail: fmt.Sprintf("attribute %q is required but not set", name),
			})
		}
	}
	return out
}

// attributeTypeMismatches reports every attribute that is set but whose
// value doesn't match its genus-declared type.
func attributeTypeMismatches(g *genus.Genus, state tessella.State) []Issue {
	var out []Issue
	for name, attr := range g.Attributes {
		value, ok := state[name]
		if !ok {
			continue
		}
		if !attrTypeMatches(attr.Type, value) {
			out = append(out, Issue{
				Kind: AttributeTypeMismatch, AttributeName: name,
				Detail: fmt.Sprintf("attribute %q expects type %s", name, attr.Type),
			})
		}
	}
	return out
}

func attrTypeMatches(t genus.AttrType, value any) bool {
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

// invalidStatusIssue reports whether state's current status names a
// state g doesn't declare. A res with no status attribute yet (not
// every genus uses status) is never flagged.
func invalidStatusIssue(g *genus.Genus, state tessella.State) (Issue, bool) {
	status, ok := state["status"].(string)
	if !ok || status == "" {
		return Issue{}, false
	}
	if _, known := g.States[status]; !known {
		return Issue{Kind: InvalidStatus, Detail: fmt.Sprintf("status %q is not a declared state of genus %q", status, g.Meta.Name)}, true
	}
	return Issue{}, false
}
