// Package process implements the multi-lane workflow engine: starting
// an instance from a process genus, the step advance algorithm, and
// task-completion-driven auto-advance.
package process

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"github.com/farant/smaragda/domain/tessella"
)

// StepStatusKind is one of the five lifecycle states a step can be in
// on a running instance.
type StepStatusKind string

const (
	StepPending   StepStatusKind = "pending"
	StepActive    StepStatusKind = "active"
	StepCompleted StepStatusKind = "completed"
	StepFailed    StepStatusKind = "failed"
	StepSkipped   StepStatusKind = "skipped"
)

// InstanceStatus is the lifecycle of a whole process instance.
type InstanceStatus string

const (
	InstanceRunning   InstanceStatus = "running"
	InstanceCompleted InstanceStatus = "completed"
	InstanceFailed    InstanceStatus = "failed"
	InstanceCancelled InstanceStatus = "cancelled"
)

// StepStatus tracks one step's progress on a running instance.
type StepStatus struct {
	Name   string         `json:"name"`
	Status StepStatusKind `json:"status"`
	TaskID string         `json:"task_id,omitempty"`
	Result any            `json:"result,omitempty"`
}

// Instance is a running (or finished) process, persisted as its own
// table rather than a res: a process instance is orchestration state,
// not a fact log subject to branching.
type Instance struct {
	bun.BaseModel `bun:"table:kernel.process_instance,alias:pi"`

	ID             string          `bun:"id,pk"`
	ProcessGenusID tessella.ResID  `bun:"process_genus_id,notnull"`
	BranchID       string          `bun:"branch_id,notnull"`
	ContextResID   *tessella.ResID `bun:"context_res_id"`
	Status         InstanceStatus  `bun:"status,notnull"`
	StepsJSON      json.RawMessage `bun:"steps_json,type:jsonb,notnull,default:'{}'"`
	VarsJSON       json.RawMessage `bun:"vars_json,type:jsonb,notnull,default:'{}'"`
	StartedAt      time.Time       `bun:"started_at,notnull,default:now()"`
	CompletedAt    *time.Time      `bun:"completed_at"`
}

// Steps unmarshals StepsJSON into a name→StepStatus map.
func (i *Instance) Steps() (map[string]StepStatus, error) {
	if len(i.StepsJSON) == 0 {
		return map[string]StepStatus{}, nil
	}
	var steps map[string]StepStatus
	if err := json.Unmarshal(i.StepsJSON, &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// SetSteps re-marshals steps back into StepsJSON.
func (i *Instance) SetSteps(steps map[string]StepStatus) error {
	data, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	i.StepsJSON = data
	return nil
}

// Vars unmarshals VarsJSON: the fetch_step-populated instance-level
// variable bag, keyed by each step's fetch_into name.
func (i *Instance) Vars() (map[string]any, error) {
	if len(i.VarsJSON) == 0 {
		return map[string]any{}, nil
	}
	var vars map[string]any
	if err := json.Unmarshal(i.VarsJSON, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// SetVars re-marshals vars back into VarsJSON.
func (i *Instance) SetVars(vars map[string]any) error {
	data, err := json.Marshal(vars)
	if err != nil {
		return err
	}
	i.VarsJSON = data
	return nil
}
