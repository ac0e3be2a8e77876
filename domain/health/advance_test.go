package health

import (
	"testing"

	"github.com/farant/smaragda/domain/genus"
	"github.com/farant/smaragda/domain/tessella"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookGenus() *genus.Genus {
	return &genus.Genus{
		Meta: genus.Meta{Name: "book"},
		Attributes: map[string]genus.Attribute{
			"title":  {Name: "title", Type: genus.AttrText, Required: true},
			"pages":  {Name: "pages", Type: genus.AttrNumber, Required: false},
			"signed": {Name: "signed", Type: genus.AttrBoolean, Required: true},
		},
		States: map[string]genus.State{
			"draft":     {Name: "draft", Initial: true},
			"published": {Name: "published"},
		},
	}
}

func TestMissingRequiredAttributes(t *testing.T) {
	g := bookGenus()
	issues := missingRequiredAttributes(g, tessella.State{"title": "Novel"})
	require.Len(t, issues, 1)
	assert.Equal(t, MissingRequiredAttribute, issues[0].Kind)
	assert.Equal(t, "signed", issues[0].AttributeName)
}

func TestMissingRequiredAttributes_AllPresent(t *testing.T) {
	g := bookGenus()
	issues := missingRequiredAttributes(g, tessella.State{"title": "Novel", "signed": true})
	assert.Empty(t, issues)
}

func TestAttributeTypeMismatches(t *testing.T) {
	g := bookGenus()
	issues := attributeTypeMismatches(g, tessella.State{"title": 42, "pages": "not a number"})
	var names []string
	for _, issue := range issues {
		assert.Equal(t, AttributeTypeMismatch, issue.Kind)
		names = append(names, issue.AttributeName)
	}
	assert.ElementsMatch(t, []string{"title", "pages"}, names)
}

func TestAttributeTypeMismatches_UnsetAttributesSkipped(t *testing.T) {
	g := bookGenus()
	issues := attributeTypeMismatches(g, tessella.State{"title": "Novel"})
	assert.Empty(t, issues)
}

func TestAttrTypeMatches(t *testing.T) {
	assert.True(t, attrTypeMatches(genus.AttrText, "x"))
	assert.False(t, attrTypeMatches(genus.AttrText, 1))
	assert.True(t, attrTypeMatches(genus.AttrNumber, float64(1)))
	assert.True(t, attrTypeMatches(genus.AttrNumber, 1))
	assert.False(t, attrTypeMatches(genus.AttrNumber, "1"))
	assert.True(t, attrTypeMatches(genus.AttrBoolean, true))
	assert.False(t, attrTypeMatches(genus.AttrBoolean, "true"))
	assert.True(t, attrTypeMatches(genus.AttrFiletree, "path/to/file"))
}

func TestInvalidStatusIssue(t *testing.T) {
	g := bookGenus()
	issue, bad := invalidStatusIssue(g, tessella.State{"status": "archived"})
	assert.True(t, bad)
	assert.Equal(t, InvalidStatus, issue.Kind)
}

func TestInvalidStatusIssue_KnownStatus(t *testing.T) {
	g := bookGenus()
	_, bad := invalidStatusIssue(g, tessella.State{"status": "draft"})
	assert.False(t, bad)
}

func TestInvalidStatusIssue_NoStatusAttribute(t *testing.T) {
	g := bookGenus()
	_, bad := invalidStatusIssue(g, tessella.State{"title": "Novel"})
	assert.False(t, bad, "a res with no status attribute is never flagged")
}
