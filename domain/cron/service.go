package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/farant/smaragda/domain/action"
	"github.com/farant/smaragda/domain/process"
	"github.com/farant/smaragda/domain/sentinel"
	"github.com/farant/smaragda/domain/tessella"
	"github.com/farant/smaragda/internal/config"
	"github.com/farant/smaragda/internal/database"
	"github.com/farant/smaragda/pkg/apperror"
	"github.com/farant/smaragda/pkg/tracing"
)

// Service implements schedule/trigger creation and the tick operation
// that fires them.
type Service struct {
	db              *bun.DB
	store           *tessella.Store
	actionSvc       *action.Service
	processSvc      *process.Service
	dispatchLimiter *rate.Limiter
}

// NewService constructs a Service over the shared store and the two
// engines a schedule can target, bounding dispatch throughput per
// cfg.Cron's rate so a tick firing a large backlog of overdue
// schedules/triggers can't overload them.
func NewService(db *bun.DB, store *tessella.Store, actionSvc *action.Service, processSvc *process.Service, cfg *config.Config) *Service {
	return &Service{
		db:              db,
		store:           store,
		actionSvc:       actionSvc,
		processSvc:      processSvc,
		dispatchLimiter: rate.NewLimiter(rate.Limit(cfg.Cron.DispatchPerSecond), cfg.Cron.DispatchBurst),
	}
}

// CreateSchedule defines a recurring cron schedule, computing its first
// next_fire_at from expression so the very next tick can consider it.
func (s *Service) CreateSchedule(ctx context.Context, expression, targetType string, targetGenusID tessella.ResID, targetConfig map[string]any) (tessella.ResID, error) {
	first, err := nextFire(expression, time.Now())
	if err != nil {
		return "", apperror.ErrBadParameter.WithMessage(fmt.Sprintf("invalid cron expression %q: %v", expression, err))
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return "", apperror.NewStoreError(err)
	}
	defer tx.Rollback()

	id := tessella.NewResID()
	res := &tessella.Res{ID: id, GenusID: sentinel.CronScheduleGenus, BranchID: sentinel.MainBranch}
	if _, err := tx.NewInsert().Model(res).Exec(ctx); err != nil {
		return "", apperror.NewStoreError(err)
	}
	if _, err := s.store.AppendTx(ctx, tx.Tx, id, sentinel.MainBranch, &tessella.CreatedPayload{}, nil); err != nil {
		return "", err
	}
	attrs := map[string]any{
		"expression": expression, "target_type": targetType, "target_genus_id": string(targetGenusID),
		"target_config": targetConfig, "status": ScheduleActive, "next_fire_at": first.Format(time.RFC3339Nano),
	}
	for key, value := range attrs {
		if _, err := s.store.AppendTx(ctx, tx.Tx, id, sentinel.MainBranch, &tessella.AttributeSetPayload{Key: key, Value: value}, nil); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", apperror.NewStoreError(err)
	}
	return id, nil
}

// CreateScheduledTrigger defines a one-shot trigger that fires once at
// scheduledAt.
func (s *Service) CreateScheduledTrigger(ctx context.Context, targetType string, targetGenusID tessella.ResID, targetConfig map[string]any, scheduledAt time.Time) (tessella.ResID, error) {
	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return "", apperror.NewStoreError(err)
	}
	defer tx.Rollback()

	id := tessella.NewResID()
	res := &tessella.Res{ID: id, GenusID: sentinel.ScheduledTriggerGenus, BranchID: sentinel.MainBranch}
	if _, err := tx.NewInsert().Model(res).Exec(ctx); err != nil {
		return "", apperror.NewStoreError(err)
	}
	if _, err := s.store.AppendTx(ctx, tx.Tx, id, sentinel.MainBranch, &tessella.CreatedPayload{}, nil); err != nil {
		return "", err
	}
	attrs := map[string]any{
		"target_type": targetType, "target_genus_id": string(targetGenusID),
		"target_config": targetConfig, "scheduled_at": scheduledAt.Format(time.RFC3339Nano), "status": TriggerPending,
	}
	for key, value := range attrs {
		if _, err := s.store.AppendTx(ctx, tx.Tx, id, sentinel.MainBranch, &tessella.AttributeSetPayload{Key: key, Value: value}, nil); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", apperror.NewStoreError(err)
	}
	return id, nil
}

// Tick fires every schedule whose next_fire_at has passed and every
// scheduled trigger whose scheduled_at has passed, subject to the
// schedule per-minute dedup. A firing failure records an Error res and
// leaves the schedule active; it never aborts the rest of the tick.
func (s *Service) Tick(ctx context.Context, now time.Time) error {
	ctx, span := tracing.Start(ctx, "cron.tick", attribute.String("smaragda.cron.now", now.Format(time.RFC3339)))
	defer span.End()

	if err := s.tickSchedules(ctx, now); err != nil {
		return err
	}
	return s.tickTriggers(ctx, now)
}

func (s *Service) tickSchedules(ctx context.Context, now time.Time) error {
	ids, err := s.store.ListByGenus(ctx, sentinel.CronScheduleGenus, sentinel.MainBranch, nil)
	if err != nil {
		return err
	}
	for _, id := range ids {
		state, err := s.store.Materialize(ctx, id, sentinel.MainBranch, nil)
		if err != nil {
			return err
		}
		sched := projectSchedule(id, state)
		if !dueSchedule(sched, now) {
			continue
		}
		if err := s.dispatch(ctx, sched.TargetType, sched.TargetGenusID, sched.TargetConfig); err != nil {
			if recErr := s.recordFailure(ctx, sched.ID, err); recErr != nil {
				return recErr
			}
			continue
		}
		if err := s.markScheduleFired(ctx, sched, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) tickTriggers(ctx context.Context, now time.Time) error {
	ids, err := s.store.ListByGenus(ctx, sentinel.ScheduledTriggerGenus, sentinel.MainBranch, nil)
	if err != nil {
		return err
	}
	for _, id := range ids {
		state, err := s.store.Materialize(ctx, id, sentinel.MainBranch, nil)
		if err != nil {
			return err
		}
		trig := projectTrigger(id, state)
		if !dueTrigger(trig, now) {
			continue
		}
		if err := s.dispatch(ctx, trig.TargetType, trig.TargetGenusID, trig.TargetConfig); err != nil {
			if recErr := s.recordFailure(ctx, trig.ID, err); recErr != nil {
				return recErr
			}
			continue
		}
		if _, err := s.store.Append(ctx, trig.ID, sentinel.MainBranch, &tessella.StatusChangedPayload{From: TriggerPending, To: TriggerFired}, nil); err != nil {
			return err
		}
	}
	return nil
}

// dispatch executes a schedule or trigger's target: an action genus with
// its configured resource bindings and parameters, or a process genus
// started against its configured context res. Blocks on dispatchLimiter
// first, so a tick with many due schedules fires them at a bounded rate
// rather than all at once.
func (s *Service) dispatch(ctx context.Context, targetType string, targetGenusID tessella.ResID, targetConfig map[string]any) error {
	if err := s.dispatchLimiter.Wait(ctx); err != nil {
		return apperror.NewStoreError(err)
	}

	switch targetType {
	case TargetAction:
		bindings, params := splitConfig(targetConfig)
		_, err := s.actionSvc.Execute(ctx, sentinel.MainBranch, targetGenusID, bindings, params, nil)
		return err
	case TargetProcess:
		_, err := s.processSvc.StartProcess(ctx, sentinel.MainBranch, targetGenusID, contextResID(targetConfig))
		return err
	default:
		return apperror.ErrBadParameter.WithMessage("unknown cron target_type: " + targetType)
	}
}

func (s *Service) markScheduleFired(ctx context.Context, sched Schedule, now time.Time) error {
	next, err := nextFire(sched.Expression, now)
	if err != nil {
		return err
	}
	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return apperror.NewStoreError(err)
	}
	defer tx.Rollback()

	attrs := map[string]any{
		"last_fired_at": now.Format(time.RFC3339Nano), "next_fire_at": next.Format(time.RFC3339Nano),
		"last_fired_minute": float64(minuteKey(now)),
	}
	for key, value := range attrs {
		if _, err := s.store.AppendTx(ctx, tx.Tx, sched.ID, sentinel.MainBranch, &tessella.AttributeSetPayload{Key: key, Value: value}, nil); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// recordFailure creates an Error res associated with the failing
// schedule or trigger, mirroring the create_error handler step's shape
// (domain/action.createSentinelChild) but local to this package since
// cron never imports domain/action for anything beyond dispatch.
func (s *Service) recordFailure(ctx context.Context, sourceID tessella.ResID, cause error) error {
	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return apperror.NewStoreError(err)
	}
	defer tx.Rollback()

	errID := tessella.NewResID()
	res := &tessella.Res{ID: errID, GenusID: sentinel.ErrorGenus, BranchID: sentinel.MainBranch}
	if _, err := tx.NewInsert().Model(res).Exec(ctx); err != nil {
		return apperror.NewStoreError(err)
	}
	if _, err := s.store.AppendTx(ctx, tx.Tx, errID, sentinel.MainBranch, &tessella.CreatedPayload{}, nil); err != nil {
		return err
	}
	attrs := map[string]any{"associated_res_id": string(sourceID), "message": cause.Error()}
	for key, value := range attrs {
		if _, err := s.store.AppendTx(ctx, tx.Tx, errID, sentinel.MainBranch, &tessella.AttributeSetPayload{Key: key, Value: value}, nil); err != nil {
			return err
		}
	}
	if _, err := s.store.AppendTx(ctx, tx.Tx, errID, sentinel.MainBranch, &tessella.StatusChangedPayload{To: "open"}, nil); err != nil {
		return err
	}
	return tx.Commit()
}
