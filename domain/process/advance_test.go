package process

import (
	"testing"

	"github.com/farant/smaragda/domain/genus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func s4Genus() *genus.Genus {
	return &genus.Genus{
		Lanes: map[string]genus.Lane{
			"A":     {Name: "A", Position: 0},
			"B":     {Name: "B", Position: 1},
			"Final": {Name: "Final", Position: 2},
		},
		Steps: map[string]genus.Step{
			"a1":  {Name: "a1", Lane: "A", Position: 0, Kind: "task_step"},
			"a2":  {Name: "a2", Lane: "A", Position: 1, Kind: "task_step"},
			"b1":  {Name: "b1", Lane: "B", Position: 0, Kind: "task_step"},
			"g":   {Name: "g", Lane: "Final", Position: 0, Kind: "gate_step", Fields: map[string]any{"gate_conditions": []any{"a2", "b1"}}},
			"pub": {Name: "pub", Lane: "Final", Position: 1, Kind: "action_step"},
		},
	}
}

func TestLanesByPosition(t *testing.T) {
	g := s4Genus()
	assert.Equal(t, []string{"A", "B", "Final"}, lanesByPosition(g))
}

func TestStepsInLane_OrderedByPosition(t *testing.T) {
	g := s4Genus()
	steps := stepsInLane(g, "A")
	require.Len(t, steps, 2)
	assert.Equal(t, "a1", steps[0].Name)
	assert.Equal(t, "a2", steps[1].Name)
}

func TestFirstStepOfLane(t *testing.T) {
	g := s4Genus()
	first, ok := firstStepOfLane(g, "Final")
	require.True(t, ok)
	assert.Equal(t, "g", first.Name)

	_, ok = firstStepOfLane(g, "missing")
	assert.False(t, ok)
}

func TestNextStepInLane(t *testing.T) {
	g := s4Genus()
	next, ok := nextStepInLane(g, "A", "a1")
	require.True(t, ok)
	assert.Equal(t, "a2", next.Name)

	_, ok = nextStepInLane(g, "A", "a2")
	assert.False(t, ok)
}

func TestStepsBetween(t *testing.T) {
	g := &genus.Genus{Steps: map[string]genus.Step{
		"s1": {Name: "s1", Lane: "A", Position: 0},
		"s2": {Name: "s2", Lane: "A", Position: 1},
		"s3": {Name: "s3", Lane: "A", Position: 2},
		"s4": {Name: "s4", Lane: "A", Position: 3},
	}}
	between := stepsBetween(g, "A", "s1", "s4")
	require.Len(t, between, 2)
	assert.Equal(t, "s2", between[0].Name)
	assert.Equal(t, "s3", between[1].Name)

	assert.Nil(t, stepsBetween(g, "A", "s1", "s2"))
	assert.Nil(t, stepsBetween(g, "A", "s3", "s1"))
}

func TestGateSatisfied(t *testing.T) {
	statuses := map[string]StepStatus{
		"a2": {Status: StepCompleted},
		"b1": {Status: StepPending},
	}
	assert.False(t, gateSatisfied([]string{"a2", "b1"}, statuses))
	statuses["b1"] = StepStatus{Status: StepCompleted}
	assert.True(t, gateSatisfied([]string{"a2", "b1"}, statuses))
	assert.True(t, gateSatisfied(nil, statuses))
}

func TestResolveBranchTarget(t *testing.T) {
	branchMap := map[string]string{"approved": "ship", "rejected": "rework"}

	target, ok := resolveBranchTarget("approved", branchMap, "")
	require.True(t, ok)
	assert.Equal(t, "ship", target)

	target, ok = resolveBranchTarget("unknown", branchMap, "rework")
	require.True(t, ok)
	assert.Equal(t, "rework", target)

	_, ok = resolveBranchTarget("unknown", branchMap, "")
	assert.False(t, ok)
}

func TestLaneTerminal(t *testing.T) {
	g := s4Genus()
	statuses := map[string]StepStatus{
		"a1": {Status: StepCompleted},
		"a2": {Status: StepActive},
	}
	assert.False(t, laneTerminal(g, "A", statuses))
	statuses["a2"] = StepStatus{Status: StepCompleted}
	assert.True(t, laneTerminal(g, "A", statuses))
}

func TestInstanceTerminal_S4Scenario(t *testing.T) {
	g := s4Genus()
	statuses := map[string]StepStatus{
		"a1":  {Status: StepCompleted},
		"a2":  {Status: StepCompleted},
		"b1":  {Status: StepCompleted},
		"g":   {Status: StepActive},
		"pub": {Status: StepPending},
	}
	assert.False(t, instanceTerminal(g, statuses))

	statuses["g"] = StepStatus{Status: StepCompleted}
	statuses["pub"] = StepStatus{Status: StepCompleted}
	assert.True(t, instanceTerminal(g, statuses))
}

func TestAnyFailed(t *testing.T) {
	assert.False(t, anyFailed(map[string]StepStatus{"a": {Status: StepCompleted}}))
	assert.True(t, anyFailed(map[string]StepStatus{"a": {Status: StepFailed}}))
}

func TestFieldHelpers(t *testing.T) {
	fields := map[string]any{
		"name":  "hi",
		"list":  []any{"x", "y"},
		"map":   map[string]any{"k": "v"},
		"wrong": 5,
	}
	assert.Equal(t, "hi", fieldString(fields, "name"))
	assert.Equal(t, "", fieldString(fields, "wrong"))
	assert.Equal(t, []string{"x", "y"}, fieldStringSlice(fields, "list"))
	assert.Nil(t, fieldStringSlice(fields, "wrong"))
	assert.Equal(t, map[string]string{"k": "v"}, fieldStringMap(fields, "map"))
	assert.Nil(t, fieldStringMap(fields, "wrong"))
}
