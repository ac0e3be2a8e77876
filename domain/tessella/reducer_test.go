package tessella

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTessella(t *testing.T, id TessellaID, payload Payload) Tessella {
	t.Helper()
	data, err := Encode(payload)
	require.NoError(t, err)
	return Tessella{ID: id, Type: payload.Tag(), Data: data}
}

func TestReduce_Empty(t *testing.T) {
	state, err := Reduce(nil)
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestReduce_AttributesAndStatus(t *testing.T) {
	log := []Tessella{
		mustTessella(t, 1, &CreatedPayload{}),
		mustTessella(t, 2, &AttributeSetPayload{Key: "title", Value: "Widget"}),
		mustTessella(t, 3, &AttributeSetPayload{Key: "price", Value: float64(12)}),
		mustTessella(t, 4, &StatusChangedPayload{From: "draft", To: "active"}),
		mustTessella(t, 5, &AttributeRemovedPayload{Key: "price"}),
	}

	state, err := Reduce(log)
	require.NoError(t, err)
	assert.Equal(t, "Widget", state["title"])
	assert.Equal(t, "active", state["status"])
	_, hasPrice := state["price"]
	assert.False(t, hasPrice)
}

func TestReduce_Features(t *testing.T) {
	log := []Tessella{
		mustTessella(t, 1, &CreatedPayload{}),
		mustTessella(t, 2, &FeatureCreatedPayload{
			FeatureID: "feat-1", GenusID: "genus-variant",
			Attributes: map[string]any{"size": "L"},
		}),
		mustTessella(t, 3, &FeatureAttributeSetPayload{FeatureID: "feat-1", Key: "color", Value: "red"}),
		mustTessella(t, 4, &FeatureStatusChangedPayload{FeatureID: "feat-1", To: "active"}),
	}

	state, err := Reduce(log)
	require.NoError(t, err)

	features := state.features()
	require.NotNil(t, features)
	feat, ok := features["feat-1"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "L", feat["size"])
	assert.Equal(t, "red", feat["color"])
	assert.Equal(t, "active", feat["status"])
	assert.Equal(t, "genus-variant", feat["genus_id"])
}

func TestReduce_FeatureAttributeSet_UnknownFeature(t *testing.T) {
	log := []Tessella{
		mustTessella(t, 1, &CreatedPayload{}),
		mustTessella(t, 2, &FeatureAttributeSetPayload{FeatureID: "ghost", Key: "x", Value: 1}),
	}

	_, err := Reduce(log)
	require.Error(t, err)
}

func TestReduce_Members(t *testing.T) {
	log := []Tessella{
		mustTessella(t, 1, &CreatedPayload{}),
		mustTessella(t, 2, &MemberAddedPayload{Role: "assignee", MemberID: "res-a"}),
		mustTessella(t, 3, &MemberAddedPayload{Role: "assignee", MemberID: "res-b"}),
		mustTessella(t, 4, &MemberRemovedPayload{Role: "assignee", MemberID: "res-a"}),
	}

	state, err := Reduce(log)
	require.NoError(t, err)

	members := state.members()
	require.NotNil(t, members)
	assignees, ok := members["assignee"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"res-b"}, assignees)
}

func TestReduce_MemberRemoved_RoleOmitted(t *testing.T) {
	log := []Tessella{
		mustTessella(t, 1, &CreatedPayload{}),
		mustTessella(t, 2, &MemberAddedPayload{Role: "reviewer", MemberID: "res-a"}),
		mustTessella(t, 3, &MemberRemovedPayload{MemberID: "res-a"}),
	}

	state, err := Reduce(log)
	require.NoError(t, err)

	members := state.members()
	reviewers, _ := members["reviewer"].([]string)
	assert.Empty(t, reviewers)
}

func TestReduce_GenusProjection(t *testing.T) {
	log := []Tessella{
		mustTessella(t, 1, &CreatedPayload{}),
		mustTessella(t, 2, &GenusMetaSetPayload{Key: "name", Value: "Product"}),
		mustTessella(t, 3, &GenusMetaSetPayload{Key: "kind", Value: "entity"}),
		mustTessella(t, 4, &GenusAttributeDefinedPayload{Name: "title", Type: "string", Required: true}),
		mustTessella(t, 5, &GenusStateDefinedPayload{Name: "draft", Initial: true}),
		mustTessella(t, 6, &GenusStateDefinedPayload{Name: "active"}),
		mustTessella(t, 7, &GenusTransitionDefinedPayload{From: "draft", To: "active", Name: "activate"}),
	}

	state, err := Reduce(log)
	require.NoError(t, err)

	meta, _ := state["meta"].(map[string]any)
	require.NotNil(t, meta)
	assert.Equal(t, "Product", meta["name"])
	assert.Equal(t, "entity", meta["kind"])

	attrs, _ := state["attributes"].(map[string]any)
	require.NotNil(t, attrs)
	titleAttr, _ := attrs["title"].(map[string]any)
	assert.Equal(t, "string", titleAttr["type"])
	assert.Equal(t, true, titleAttr["required"])

	states, _ := state["states"].(map[string]any)
	require.Len(t, states, 2)

	transitions, _ := state["transitions"].([]any)
	require.Len(t, transitions, 1)
}

func TestReduce_UnknownTag(t *testing.T) {
	log := []Tessella{
		{ID: 1, Type: Tag("not_a_real_tag"), Data: json.RawMessage(`{}`)},
	}
	_, err := Reduce(log)
	require.Error(t, err)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	payload := &AttributeSetPayload{Key: "k", Value: "v1"}
	row := mustTessella(t, 1, payload)
	original := append(json.RawMessage{}, row.Data...)

	log := []Tessella{
		mustTessella(t, 0, &CreatedPayload{}),
		row,
		mustTessella(t, 2, &AttributeSetPayload{Key: "k", Value: "v2"}),
	}

	state, err := Reduce(log)
	require.NoError(t, err)
	assert.Equal(t, "v2", state["k"])
	assert.Equal(t, original, row.Data)
}
