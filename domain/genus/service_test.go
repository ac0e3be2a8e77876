package genus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecToGenus(t *testing.T) {
	spec := Spec{
		Meta:       Meta{Name: "product", Kind: KindEntity},
		Attributes: []Attribute{{Name: "title", Type: AttrText}},
		States:     []State{{Name: "draft", Initial: true}},
	}
	g := specToGenus(spec)
	assert.Equal(t, "product", g.Meta.Name)
	assert.Contains(t, g.Attributes, "title")
	assert.Contains(t, g.States, "draft")
}

func TestMetaToPairs_SkipsZeroValues(t *testing.T) {
	pairs := metaToPairs(Meta{Name: "product"})
	require.Len(t, pairs, 1)
	assert.Equal(t, "name", pairs[0].key)
	assert.Equal(t, "product", pairs[0].value)
}

func TestMetaToPairs_IncludesPopulatedOptionals(t *testing.T) {
	pairs := metaToPairs(Meta{
		Name:            "variant",
		Kind:            KindFeature,
		ParentGenusName: "product",
	})
	keys := map[string]any{}
	for _, p := range pairs {
		keys[p.key] = p.value
	}
	assert.Equal(t, "variant", keys["name"])
	assert.Equal(t, "feature", keys["kind"])
	assert.Equal(t, "product", keys["parent_genus_name"])
}

func TestMergeSpec_AddsWithoutMutatingPrev(t *testing.T) {
	prev := &Genus{
		Attributes: map[string]Attribute{"title": {Name: "title", Type: AttrText}},
		States:     map[string]State{"draft": {Name: "draft", Initial: true}},
		Roles:      map[string]Role{},
		Lanes:      map[string]Lane{},
		Steps:      map[string]Step{},
	}
	addition := Spec{
		Attributes: []Attribute{{Name: "price", Type: AttrNumber}},
		States:     []State{{Name: "active"}},
	}

	next := mergeSpec(prev, addition)

	assert.Len(t, next.Attributes, 2)
	assert.Len(t, prev.Attributes, 1, "mergeSpec must not mutate prev")
	assert.Contains(t, next.States, "active")
	assert.NotContains(t, prev.States, "active")
}
