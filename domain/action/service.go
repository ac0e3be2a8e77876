package action

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/farant/smaragda/domain/branch"
	"github.com/farant/smaragda/domain/genus"
	"github.com/farant/smaragda/domain/sentinel"
	"github.com/farant/smaragda/domain/tessella"
	"github.com/farant/smaragda/internal/database"
	"github.com/farant/smaragda/pkg/apperror"
	"github.com/farant/smaragda/pkg/tracing"
	"github.com/uptrace/bun"
)

// Service implements execute_action.
type Service struct {
	db        *bun.DB
	store     *tessella.Store
	genusSvc  *genus.Service
	branchSvc *branch.Service
}

// NewService constructs a Service over the shared bun.DB, store, genus
// catalog, and branch service.
func NewService(db *bun.DB, store *tessella.Store, genusSvc *genus.Service, branchSvc *branch.Service) *Service {
	return &Service{db: db, store: store, genusSvc: genusSvc, branchSvc: branchSvc}
}

// Result is what execute_action returns: the emitted tessella ids, for
// callers (the process engine) that need to know what changed.
type Result struct {
	ActionTakenID   int64
	EmittedTessella []tessella.TessellaID
}

// Execute validates preconditions, then applies every handler step of
// actionGenusID's action genus inside a single transaction, tagging
// every emitted tessella with source (nil for local calls, a sync
// device tag when replaying a pushed action).
func (s *Service) Execute(ctx context.Context, branchID string, actionGenusID tessella.ResID, bindings map[string]tessella.ResID, params map[string]any, source *string) (*Result, error) {
	ctx, span := tracing.Start(ctx, "action.execute",
		attribute.String("smaragda.genus.id", string(actionGenusID)),
		attribute.String("smaragda.branch.id", branchID),
	)
	defer span.End()

	g, err := s.genusSvc.Get(ctx, branchID, actionGenusID)
	if err != nil {
		return nil, err
	}

	if err := s.checkResources(ctx, branchID, g, bindings); err != nil {
		return nil, err
	}
	if err := checkParams(g, params); err != nil {
		return nil, err
	}

	r := &resolver{resources: bindings, params: params, now: time.Now()}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return nil, apperror.NewStoreError(err)
	}
	defer tx.Rollback()

	var emitted []tessella.TessellaID
	for _, step := range g.Handler {
		ids, err := s.applyStep(ctx, tx.Tx, branchID, step, r, source)
		if err != nil {
			return nil, err
		}
		emitted = append(emitted, ids...)
	}

	takenID, err := s.recordTaken(ctx, tx.Tx, actionGenusID, bindings, params)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperror.NewStoreError(err)
	}
	return &Result{ActionTakenID: takenID, EmittedTessella: emitted}, nil
}

func (s *Service) checkResources(ctx context.Context, branchID string, g *genus.Genus, bindings map[string]tessella.ResID) error {
	for _, decl := range g.Resources {
		resID, ok := bindings[decl.Name]
		if !ok {
			return apperror.ErrPreconditionFailed.WithMessage(fmt.Sprintf("resource %q not bound", decl.Name))
		}
		res, err := s.store.GetRes(ctx, resID)
		if err != nil {
			return err
		}
		boundGenus, err := s.genusSvc.Get(ctx, branchID, res.GenusID)
		if err != nil {
			return err
		}
		if boundGenus.Meta.Name != decl.GenusName {
			return apperror.ErrPreconditionFailed.WithMessage(fmt.Sprintf("resource %q bound to genus %q, want %q", decl.Name, boundGenus.Meta.Name, decl.GenusName))
		}
		if decl.RequiredStatus != "" {
			cutoffs, err := s.branchSvc.Cutoffs(ctx, branchID)
			if err != nil {
				return err
			}
			state, err := s.store.Materialize(ctx, resID, branchID, cutoffs)
			if err != nil {
				return err
			}
			status, _ := state["status"].(string)
			if status != decl.RequiredStatus {
				return apperror.ErrPreconditionFailed.WithMessage(fmt.Sprintf("resource %q has status %q, want %q", decl.Name, status, decl.RequiredStatus))
			}
		}
	}
	return nil
}

// checkTransition requires (current, target) be a direct edge in resID's
// genus transition graph, the same rule domain/entity.TransitionStatus
// enforces for a directly-called status change.
func (s *Service) checkTransition(ctx context.Context, branchID string, resID tessella.ResID, target string) error {
	res, err := s.store.GetRes(ctx, resID)
	if err != nil {
		return err
	}
	g, err := s.genusSvc.Get(ctx, branchID, res.GenusID)
	if err != nil {
		return err
	}
	cutoffs, err := s.branchSvc.Cutoffs(ctx, branchID)
	if err != nil {
		return err
	}
	state, err := s.store.Materialize(ctx, resID, branchID, cutoffs)
	if err != nil {
		return err
	}
	current, _ := state["status"].(string)
	if current == "" {
		for name, st := range g.States {
			if st.Initial {
				current = name
			}
		}
	}
	if !genus.HasDirectEdge(g, current, target) {
		return apperror.ErrInvalidTransition.WithMessage(fmt.Sprintf("no transition %s -> %s", current, target))
	}
	return nil
}

func checkParams(g *genus.Genus, params map[string]any) error {
	for _, decl := range g.Parameters {
		value, present := params[decl.Name]
		if !present {
			if decl.Required {
				return apperror.ErrBadParameter.WithMessage(fmt.Sprintf("parameter %q is required", decl.Name))
			}
			continue
		}
		if !paramTypeMatches(decl.Type, value) {
			return apperror.ErrBadParameter.WithMessage(fmt.Sprintf("parameter %q expects %s", decl.Name, decl.Type))
		}
	}
	return nil
}

func paramTypeMatches(t genus.AttrType, value any) bool {
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

func (s *Service) recordTaken(ctx context.Context, tx bun.IDB, actionGenusID tessella.ResID, bindings map[string]tessella.ResID, params map[string]any) (int64, error) {
	bindingsJSON, err := json.Marshal(bindings)
	if err != nil {
		return 0, fmt.Errorf("action: marshal bindings: %w", err)
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("action: marshal params: %w", err)
	}
	row := &Taken{
		ActionGenusID: string(actionGenusID),
		BindingsJSON:  bindingsJSON,
		ParamsJSON:    paramsJSON,
	}
	if _, err := tx.NewInsert().Model(row).Returning("id, created_at").Exec(ctx); err != nil {
		return 0, apperror.NewStoreError(err)
	}
	return row.ID, nil
}

// applyStep resolves tokens in one handler step's fields and performs
// the corresponding side effect, returning every tessella id it wrote.
func (s *Service) applyStep(ctx context.Context, tx bun.IDB, branchID string, step genus.HandlerStep, r *resolver, source *string) ([]tessella.TessellaID, error) {
	fields, err := r.resolveAny(step.Fields)
	if err != nil {
		return nil, err
	}
	resolved, _ := fields.(map[string]any)

	switch step.Type {
	case "set_attribute":
		resID, key, value := fieldStr(resolved, "res"), fieldStr(resolved, "key"), resolved["value"]
		row, err := s.store.AppendTx(ctx, tx, tessella.ResID(resID), branchID, &tessella.AttributeSetPayload{Key: key, Value: value}, source)
		if err != nil {
			return nil, err
		}
		return []tessella.TessellaID{row.ID}, nil

	case "transition_status":
		resID, target := fieldStr(resolved, "res"), fieldStr(resolved, "target")
		if err := s.checkTransition(ctx, branchID, tessella.ResID(resID), target); err != nil {
			return nil, err
		}
		row, err := s.store.AppendTx(ctx, tx, tessella.ResID(resID), branchID, &tessella.StatusChangedPayload{To: target}, source)
		if err != nil {
			return nil, err
		}
		return []tessella.TessellaID{row.ID}, nil

	case "create_res":
		genusName := fieldStr(resolved, "genus")
		g, err := s.genusSvc.GetByName(ctx, branchID, genusName)
		if err != nil {
			return nil, err
		}
		newID := tessella.NewResID()
		if _, err := tx.NewInsert().Model(&tessella.Res{ID: newID, GenusID: tessella.ResID(g.ID), BranchID: branchID}).Exec(ctx); err != nil {
			return nil, apperror.NewStoreError(err)
		}
		row, err := s.store.AppendTx(ctx, tx, newID, branchID, &tessella.CreatedPayload{}, source)
		if err != nil {
			return nil, err
		}
		ids := []tessella.TessellaID{row.ID}
		if attrs, ok := resolved["attributes"].(map[string]any); ok {
			for key, value := range attrs {
				attrRow, err := s.store.AppendTx(ctx, tx, newID, branchID, &tessella.AttributeSetPayload{Key: key, Value: value}, source)
				if err != nil {
					return nil, err
				}
				ids = append(ids, attrRow.ID)
			}
		}
		return ids, nil

	case "create_log":
		return s.createSentinelChild(ctx, tx, branchID, sentinel.LogGenus, map[string]any{
			"res": fieldStr(resolved, "res"), "message": fieldStr(resolved, "message"), "severity": resolved["severity"],
		}, nil, source)

	case "create_error":
		return s.createSentinelChild(ctx, tx, sentinel.MainBranch, sentinel.ErrorGenus, map[string]any{
			"associated_res_id": fieldStr(resolved, "res"), "message": fieldStr(resolved, "message"),
		}, "open", source)

	case "create_task":
		return s.createSentinelChild(ctx, tx, branchID, sentinel.TaskGenus, resolved, "", source)

	default:
		return nil, apperror.ErrBadParameter.WithMessage("unknown handler step type: " + step.Type)
	}
}

// createSentinelChild creates a res of a built-in genus (log/error/task)
// carrying attrs as attribute_set tessellae, plus an optional opening
// status.
func (s *Service) createSentinelChild(ctx context.Context, tx bun.IDB, branchID string, genusID tessella.ResID, attrs map[string]any, initialStatus any, source *string) ([]tessella.TessellaID, error) {
	newID := tessella.NewResID()
	if _, err := tx.NewInsert().Model(&tessella.Res{ID: newID, GenusID: genusID, BranchID: branchID}).Exec(ctx); err != nil {
		return nil, apperror.NewStoreError(err)
	}
	row, err := s.store.AppendTx(ctx, tx, newID, branchID, &tessella.CreatedPayload{}, source)
	if err != nil {
		return nil, err
	}
	ids := []tessella.TessellaID{row.ID}
	for key, value := range attrs {
		if value == nil {
			continue
		}
		attrRow, err := s.store.AppendTx(ctx, tx, newID, branchID, &tessella.AttributeSetPayload{Key: key, Value: value}, source)
		if err != nil {
			return nil, err
		}
		ids = append(ids, attrRow.ID)
	}
	if status, ok := initialStatus.(string); ok && status != "" {
		statusRow, err := s.store.AppendTx(ctx, tx, newID, branchID, &tessella.StatusChangedPayload{To: status}, source)
		if err != nil {
			return nil, err
		}
		ids = append(ids, statusRow.ID)
	}
	return ids, nil
}

func fieldStr(fields map[string]any, key string) string {
	v, _ := fields[key].(string)
	return v
}
