package process

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/farant/smaragda/domain/action"
	"github.com/farant/smaragda/domain/branch"
	"github.com/farant/smaragda/domain/genus"
	"github.com/farant/smaragda/domain/sentinel"
	"github.com/farant/smaragda/domain/tessella"
	"github.com/farant/smaragda/internal/database"
	"github.com/farant/smaragda/pkg/apperror"
)

const contextResToken = "$context.res_id"

// Service implements start_process and task-driven auto-advance.
type Service struct {
	db        *bun.DB
	store     *tessella.Store
	genusSvc  *genus.Service
	actionSvc *action.Service
	branchSvc *branch.Service
}

// NewService constructs a Service over the shared store, genus catalog,
// action engine (action_step delegates to it), and branch service.
func NewService(db *bun.DB, store *tessella.Store, genusSvc *genus.Service, actionSvc *action.Service, branchSvc *branch.Service) *Service {
	return &Service{db: db, store: store, genusSvc: genusSvc, actionSvc: actionSvc, branchSvc: branchSvc}
}

// run carries the mutable working state one advance pass threads
// through: the genus template, the live instance row, and its decoded
// step statuses, persisted back to the database at the end of the pass.
type run struct {
	ctx        context.Context
	branchID   string
	g          *genus.Genus
	instance   *Instance
	statuses   map[string]StepStatus
	vars       map[string]any
	failed     bool
}

// StartProcess instantiates processGenusID, starting every lane's
// first step concurrently (lanes are logically parallel; the advance
// pass itself is single-threaded per spec's single-writer model).
func (s *Service) StartProcess(ctx context.Context, branchID string, processGenusID tessella.ResID, contextResID *tessella.ResID) (*Instance, error) {
	g, err := s.genusSvc.Get(ctx, branchID, processGenusID)
	if err != nil {
		return nil, err
	}

	instance := &Instance{
		ID:             string(tessella.NewResID()),
		ProcessGenusID: processGenusID,
		BranchID:       branchID,
		ContextResID:   contextResID,
		Status:         InstanceRunning,
		StartedAt:      time.Now(),
	}
	r := &run{ctx: ctx, branchID: branchID, g: g, instance: instance, statuses: map[string]StepStatus{}, vars: map[string]any{}}

	for name := range g.Steps {
		r.statuses[name] = StepStatus{Name: name, Status: StepPending}
	}

	for _, lane := range lanesByPosition(g) {
		first, ok := firstStepOfLane(g, lane)
		if !ok {
			continue
		}
		if err := s.enter(r, lane, first); err != nil {
			return nil, err
		}
		if r.failed {
			break
		}
	}

	s.finalize(r)
	if err := s.persist(ctx, instance, r.statuses, r.vars); err != nil {
		return nil, err
	}
	return instance, nil
}

// CompleteTask implements task-driven auto-advance: the caller (the
// entity layer, on a task res transitioning to a completed status)
// reports which step's task finished and its result; this marks the
// step completed, advances its lane, and re-checks every active gate
// on the instance, since a task completion anywhere can satisfy a gate
// in any other lane.
func (s *Service) CompleteTask(ctx context.Context, branchID, instanceID string, taskResID tessella.ResID, result any) error {
	instance, err := s.getInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	if instance.Status != InstanceRunning {
		return nil
	}
	g, err := s.genusSvc.Get(ctx, branchID, instance.ProcessGenusID)
	if err != nil {
		return err
	}
	statuses, err := instance.Steps()
	if err != nil {
		return fmt.Errorf("process: decode steps: %w", err)
	}
	vars, err := instance.Vars()
	if err != nil {
		return fmt.Errorf("process: decode vars: %w", err)
	}

	stepName, ok := findStepByTask(statuses, taskResID)
	if !ok {
		return apperror.NewNotFound("process step for task", string(taskResID))
	}

	r := &run{ctx: ctx, branchID: branchID, g: g, instance: instance, statuses: statuses, vars: vars}
	lane := g.Steps[stepName].Lane
	if err := s.completeAndAdvance(r, lane, stepName); err != nil {
		return err
	}
	if !r.failed {
		s.recheckGates(r)
	}

	s.finalize(r)
	return s.persist(ctx, instance, r.statuses, r.vars)
}

// recheckGates re-evaluates every active gate_step on the instance,
// since a step completing in one lane may satisfy a gate in another.
func (s *Service) recheckGates(r *run) {
	if r.failed {
		return
	}
	for name, st := range r.g.Steps {
		if st.Kind != "gate_step" || r.statuses[name].Status != StepActive {
			continue
		}
		conditions := fieldStringSlice(st.Fields, "gate_conditions")
		if gateSatisfied(conditions, r.statuses) {
			if err := s.completeAndAdvance(r, st.Lane, name); err != nil {
				r.failed = true
				return
			}
		}
	}
}

// enter starts step (on instance start, after a normal advance, or
// after a branch jump), performing the kind-specific side effect and
// recursing into the next step when the current one completes
// synchronously.
func (s *Service) enter(r *run, lane string, step genus.Step) error {
	switch step.Kind {
	case "task_step":
		return s.enterTaskStep(r, lane, step)
	case "action_step":
		return s.enterActionStep(r, lane, step)
	case "fetch_step":
		return s.enterFetchStep(r, lane, step)
	case "gate_step":
		return s.enterGateStep(r, lane, step)
	case "branch_step":
		return s.enterBranchStep(r, lane, step)
	default:
		r.failed = true
		r.statuses[step.Name] = StepStatus{Name: step.Name, Status: StepFailed, Result: "unknown step kind: " + step.Kind}
		return nil
	}
}

func (s *Service) enterTaskStep(r *run, lane string, step genus.Step) error {
	taskID := tessella.NewResID()
	res := &tessella.Res{ID: taskID, GenusID: sentinel.TaskGenus, BranchID: r.branchID}
	tx, err := database.BeginSafeTx(r.ctx, s.db)
	if err != nil {
		return apperror.NewStoreError(err)
	}
	defer tx.Rollback()
	if _, err := tx.NewInsert().Model(res).Exec(r.ctx); err != nil {
		return apperror.NewStoreError(err)
	}
	if _, err := s.store.AppendTx(r.ctx, tx.Tx, taskID, r.branchID, &tessella.CreatedPayload{}, nil); err != nil {
		return err
	}
	attrs := map[string]any{"title": fieldString(step.Fields, "title"), "process_instance_id": r.instance.ID, "step_name": step.Name}
	for key, value := range attrs {
		if _, err := s.store.AppendTx(r.ctx, tx.Tx, taskID, r.branchID, &tessella.AttributeSetPayload{Key: key, Value: value}, nil); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return apperror.NewStoreError(err)
	}
	r.statuses[step.Name] = StepStatus{Name: step.Name, Status: StepActive, TaskID: string(taskID)}
	return nil
}

func (s *Service) enterActionStep(r *run, lane string, step genus.Step) error {
	actionName := fieldString(step.Fields, "action_name")
	actionGenus, err := s.genusSvc.GetByName(r.ctx, r.branchID, actionName)
	if err != nil {
		return err
	}
	bindingsField := fieldStringMap(step.Fields, "action_resource_bindings")
	bindings := map[string]tessella.ResID{}
	for name, value := range bindingsField {
		if value == contextResToken {
			if r.instance.ContextResID == nil {
				r.failed = true
				r.statuses[step.Name] = StepStatus{Name: step.Name, Status: StepFailed, Result: "no context res bound to instance"}
				return nil
			}
			bindings[name] = *r.instance.ContextResID
			continue
		}
		bindings[name] = tessella.ResID(value)
	}
	params, _ := step.Fields["action_params"].(map[string]any)

	result, err := s.actionSvc.Execute(r.ctx, r.branchID, tessella.ResID(actionGenus.ID), bindings, params, nil)
	if err != nil {
		r.failed = true
		r.statuses[step.Name] = StepStatus{Name: step.Name, Status: StepFailed, Result: err.Error()}
		return nil
	}
	return s.completeAndAdvance(r, lane, step.Name, withResult(result.ActionTakenID))
}

func (s *Service) enterFetchStep(r *run, lane string, step genus.Step) error {
	if r.instance.ContextResID == nil {
		r.failed = true
		r.statuses[step.Name] = StepStatus{Name: step.Name, Status: StepFailed, Result: "fetch_step requires a context res"}
		return nil
	}
	cutoffs, err := s.branchSvc.Cutoffs(r.ctx, r.branchID)
	if err != nil {
		return err
	}
	state, err := s.store.Materialize(r.ctx, *r.instance.ContextResID, r.branchID, cutoffs)
	if err != nil {
		return err
	}
	source := fieldString(step.Fields, "fetch_source")
	into := fieldString(step.Fields, "fetch_into")
	if into != "" {
		r.vars[into] = state[source]
	}
	return s.completeAndAdvance(r, lane, step.Name)
}

func (s *Service) enterGateStep(r *run, lane string, step genus.Step) error {
	conditions := fieldStringSlice(step.Fields, "gate_conditions")
	if gateSatisfied(conditions, r.statuses) {
		return s.completeAndAdvance(r, lane, step.Name)
	}
	r.statuses[step.Name] = StepStatus{Name: step.Name, Status: StepActive}
	return nil
}

func (s *Service) enterBranchStep(r *run, lane string, step genus.Step) error {
	if r.instance.ContextResID == nil {
		r.failed = true
		r.statuses[step.Name] = StepStatus{Name: step.Name, Status: StepFailed, Result: "branch_step requires a context res"}
		return nil
	}
	cutoffs, err := s.branchSvc.Cutoffs(r.ctx, r.branchID)
	if err != nil {
		return err
	}
	state, err := s.store.Materialize(r.ctx, *r.instance.ContextResID, r.branchID, cutoffs)
	if err != nil {
		return err
	}
	conditionKey := fieldString(step.Fields, "branch_condition")
	value := fmt.Sprintf("%v", state[conditionKey])
	branchMap := fieldStringMap(step.Fields, "branch_map")
	branchDefault := fieldString(step.Fields, "branch_default")

	target, ok := resolveBranchTarget(value, branchMap, branchDefault)
	if !ok {
		r.failed = true
		r.statuses[step.Name] = StepStatus{Name: step.Name, Status: StepFailed, Result: "no branch_map match and no branch_default"}
		return nil
	}

	r.statuses[step.Name] = StepStatus{Name: step.Name, Status: StepCompleted}
	for _, skipped := range stepsBetween(r.g, lane, step.Name, target) {
		r.statuses[skipped.Name] = StepStatus{Name: skipped.Name, Status: StepSkipped}
	}
	targetStep, ok := r.g.Steps[target]
	if !ok {
		r.failed = true
		r.statuses[step.Name] = StepStatus{Name: step.Name, Status: StepFailed, Result: "branch target step not found: " + target}
		return nil
	}
	return s.enter(r, lane, targetStep)
}

type completeOpt func(*StepStatus)

func withResult(result any) completeOpt {
	return func(s *StepStatus) { s.Result = result }
}

// completeAndAdvance marks stepName completed and enters the next step
// in its lane, if any.
func (s *Service) completeAndAdvance(r *run, lane, stepName string, opts ...completeOpt) error {
	st := StepStatus{Name: stepName, Status: StepCompleted}
	for _, opt := range opts {
		opt(&st)
	}
	r.statuses[stepName] = st

	next, ok := nextStepInLane(r.g, lane, stepName)
	if !ok {
		return nil
	}
	return s.enter(r, lane, next)
}

// finalize sets the instance's terminal status once every lane has
// settled, per spec's failure-wins-over-completion semantics.
func (s *Service) finalize(r *run) {
	if r.failed || anyFailed(r.statuses) {
		r.instance.Status = InstanceFailed
		now := time.Now()
		r.instance.CompletedAt = &now
		return
	}
	if instanceTerminal(r.g, r.statuses) {
		r.instance.Status = InstanceCompleted
		now := time.Now()
		r.instance.CompletedAt = &now
	}
}

func findStepByTask(statuses map[string]StepStatus, taskResID tessella.ResID) (string, bool) {
	for name, st := range statuses {
		if st.TaskID == string(taskResID) && st.Status == StepActive {
			return name, true
		}
	}
	return "", false
}

func (s *Service) getInstance(ctx context.Context, instanceID string) (*Instance, error) {
	instance := new(Instance)
	err := s.db.NewSelect().Model(instance).Where("id = ?", instanceID).Scan(ctx)
	if err != nil {
		return nil, apperror.NewNotFound("process_instance", instanceID)
	}
	return instance, nil
}

func (s *Service) persist(ctx context.Context, instance *Instance, statuses map[string]StepStatus, vars map[string]any) error {
	if err := instance.SetSteps(statuses); err != nil {
		return fmt.Errorf("process: encode steps: %w", err)
	}
	if err := instance.SetVars(vars); err != nil {
		return fmt.Errorf("process: encode vars: %w", err)
	}
	_, err := s.db.NewRaw(`
		INSERT INTO kernel.process_instance
			(id, process_genus_id, branch_id, context_res_id, status, steps_json, vars_json, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			steps_json = EXCLUDED.steps_json,
			vars_json = EXCLUDED.vars_json,
			completed_at = EXCLUDED.completed_at
	`, instance.ID, instance.ProcessGenusID, instance.BranchID, instance.ContextResID, instance.Status,
		instance.StepsJSON, instance.VarsJSON, instance.StartedAt, instance.CompletedAt).Exec(ctx)
	if err != nil {
		return apperror.NewStoreError(err)
	}
	return nil
}

// Get returns a process instance by id.
func (s *Service) Get(ctx context.Context, instanceID string) (*Instance, error) {
	return s.getInstance(ctx, instanceID)
}
