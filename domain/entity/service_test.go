package entity

import (
	"testing"

	"github.com/farant/smaragda/domain/genus"
	"github.com/farant/smaragda/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildGenus(states []genus.State, transitions []genus.Transition) *genus.Genus {
	g := &genus.Genus{States: map[string]genus.State{}}
	for _, st := range states {
		g.States[st.Name] = st
	}
	g.Transitions = transitions
	return g
}

func TestBFSPath_DirectEdge(t *testing.T) {
	g := buildGenus(
		[]genus.State{{Name: "draft", Initial: true}, {Name: "active"}},
		[]genus.Transition{{From: "draft", To: "active"}},
	)
	path, err := bfsPath(g, "draft", "active")
	require.NoError(t, err)
	assert.Equal(t, []string{"draft", "active"}, path)
}

func TestBFSPath_MultiHop(t *testing.T) {
	g := buildGenus(
		[]genus.State{{Name: "draft", Initial: true}, {Name: "review"}, {Name: "active"}},
		[]genus.Transition{{From: "draft", To: "review"}, {From: "review", To: "active"}},
	)
	path, err := bfsPath(g, "draft", "active")
	require.NoError(t, err)
	assert.Equal(t, []string{"draft", "review", "active"}, path)
}

func TestBFSPath_ShortestOfMultiple(t *testing.T) {
	g := buildGenus(
		[]genus.State{{Name: "draft", Initial: true}, {Name: "review"}, {Name: "active"}, {Name: "archived"}},
		[]genus.Transition{
			{From: "draft", To: "review"},
			{From: "review", To: "active"},
			{From: "draft", To: "active"},
			{From: "active", To: "archived"},
		},
	)
	path, err := bfsPath(g, "draft", "active")
	require.NoError(t, err)
	assert.Equal(t, []string{"draft", "active"}, path)
}

func TestBFSPath_NoPath(t *testing.T) {
	g := buildGenus(
		[]genus.State{{Name: "draft", Initial: true}, {Name: "orphan"}},
		nil,
	)
	_, err := bfsPath(g, "draft", "orphan")
	require.Error(t, err)
	assert.True(t, apperror.Of(err, apperror.KindNoTransitionPath))
}

func TestBFSPath_SameState(t *testing.T) {
	g := buildGenus([]genus.State{{Name: "draft", Initial: true}}, nil)
	path, err := bfsPath(g, "draft", "draft")
	require.NoError(t, err)
	assert.Equal(t, []string{"draft"}, path)
}

func TestHasDirectEdge(t *testing.T) {
	g := buildGenus(nil, []genus.Transition{{From: "a", To: "b"}})
	assert.True(t, genus.HasDirectEdge(g, "a", "b"))
	assert.False(t, genus.HasDirectEdge(g, "b", "a"))
}

func TestInitialState(t *testing.T) {
	g := buildGenus([]genus.State{{Name: "draft", Initial: true}, {Name: "active"}}, nil)
	assert.Equal(t, "draft", initialState(g))
}

func TestTypeMatches(t *testing.T) {
	tests := []struct {
		name  string
		typ   genus.AttrType
		value any
		want  bool
	}{
		{"text ok", genus.AttrText, "hello", true},
		{"text wrong type", genus.AttrText, 5, false},
		{"number float", genus.AttrNumber, float64(5), true},
		{"number int", genus.AttrNumber, 5, true},
		{"boolean ok", genus.AttrBoolean, true, true},
		{"boolean wrong", genus.AttrBoolean, "true", false},
		{"nil always matches", genus.AttrNumber, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, typeMatches(tt.typ, tt.value))
		})
	}
}

func TestMatchesAttrFilters(t *testing.T) {
	state := map[string]any{"title": "Widget Pro", "price": float64(10)}

	assert.True(t, matchesAttrFilters(state, []AttrFilter{{Key: "price", Op: OpEq, Value: float64(10)}}))
	assert.False(t, matchesAttrFilters(state, []AttrFilter{{Key: "price", Op: OpEq, Value: float64(11)}}))
	assert.True(t, matchesAttrFilters(state, []AttrFilter{{Key: "title", Op: OpContains, Value: "widget"}}))
	assert.False(t, matchesAttrFilters(state, []AttrFilter{{Key: "title", Op: OpContains, Value: "gizmo"}}))
	assert.False(t, matchesAttrFilters(state, []AttrFilter{{Key: "missing", Op: OpEq, Value: 1}}))
}
