package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindStepByTask(t *testing.T) {
	statuses := map[string]StepStatus{
		"a1": {Name: "a1", Status: StepActive, TaskID: "task-1"},
		"a2": {Name: "a2", Status: StepCompleted, TaskID: "task-2"},
	}

	name, ok := findStepByTask(statuses, "task-1")
	assert.True(t, ok)
	assert.Equal(t, "a1", name)

	// a completed step's task id should not match even if reused.
	_, ok = findStepByTask(statuses, "task-2")
	assert.False(t, ok)

	_, ok = findStepByTask(statuses, "unknown")
	assert.False(t, ok)
}
