package branch

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/farant/smaragda/domain/sentinel"
	"github.com/farant/smaragda/domain/tessella"
	"github.com/farant/smaragda/internal/database"
	"github.com/farant/smaragda/pkg/apperror"
)

// Service implements create_branch, merge_branch, and compare_branches.
// Switching the session's current branch has no kernel-side state to
// mutate (session context is threaded explicitly by the caller, per
// spec's concurrency model), so there is no SwitchBranch method here;
// ValidateExists is what a caller uses to check a branch name before
// adopting it as its own current-branch value.
type Service struct {
	db    *bun.DB
	store *tessella.Store
}

// NewService constructs a Service over the shared store.
func NewService(db *bun.DB, store *tessella.Store) *Service {
	return &Service{db: db, store: store}
}

// CreateBranch records the current global tessella id as the branch
// point and emits a new Branch sentinel res on main. parent defaults to
// currentBranch when empty.
func (s *Service) CreateBranch(ctx context.Context, currentBranch, name, parent string) (tessella.ResID, error) {
	if parent == "" {
		parent = currentBranch
	}
	if _, err := s.GetBranch(ctx, parent); err != nil {
		return "", err
	}

	branchPoint, err := s.store.HighWaterMark(ctx)
	if err != nil {
		return "", err
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return "", apperror.NewStoreError(err)
	}
	defer tx.Rollback()

	id := tessella.NewResID()
	res := &tessella.Res{ID: id, GenusID: sentinel.BranchGenus, BranchID: sentinel.MainBranch}
	if _, err := tx.NewInsert().Model(res).Exec(ctx); err != nil {
		return "", apperror.NewStoreError(err)
	}
	if _, err := s.store.AppendTx(ctx, tx.Tx, id, sentinel.MainBranch, &tessella.CreatedPayload{}, nil); err != nil {
		return "", err
	}
	attrs := map[string]any{
		"name": name, "parent_branch": parent, "branch_point_tessella_id": uint64(branchPoint), "status": "active",
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

// GetBranch resolves a branch by name. main is the implicit root and
// always resolves even though it has no Branch res of its own.
func (s *Service) GetBranch(ctx context.Context, name string) (*Record, error) {
	if name == sentinel.MainBranch {
		return &Record{ID: sentinel.MainBranch, Name: sentinel.MainBranch, Status: "active"}, nil
	}
	ids, err := s.store.ListByGenus(ctx, sentinel.BranchGenus, sentinel.MainBranch, nil)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		state, err := s.store.Materialize(ctx, id, sentinel.MainBranch, nil)
		if err != nil {
			return nil, err
		}
		if stateName, _ := state["name"].(string); stateName == name {
			parent, _ := state["parent_branch"].(string)
			status, _ := state["status"].(string)
			return &Record{
				ID:          id,
				Name:        name,
				Parent:      parent,
				BranchPoint: toTessellaID(state["branch_point_tessella_id"]),
				Status:      status,
			}, nil
		}
	}
	return nil, apperror.NewNotFound("branch", name)
}

// Chain returns name's ancestor chain, self first, root (main) last.
func (s *Service) Chain(ctx context.Context, name string) ([]Link, error) {
	var chain []Link
	current := name
	for i := 0; i < 64; i++ {
		rec, err := s.GetBranch(ctx, current)
		if err != nil {
			return nil, err
		}
		chain = append(chain, Link{Name: current, Parent: rec.Parent, BranchPoint: rec.BranchPoint})
		if rec.Parent == "" {
			return chain, nil
		}
		current = rec.Parent
	}
	return nil, fmt.Errorf("branch: ancestor chain too deep or cyclic starting at %q", name)
}

// Cutoffs computes the cutoffs map domain/tessella.Store.Log/Materialize
// expects for materializing a res as seen from branch name.
func (s *Service) Cutoffs(ctx context.Context, name string) (map[string]tessella.TessellaID, error) {
	chain, err := s.Chain(ctx, name)
	if err != nil {
		return nil, err
	}
	return cutoffsFromChain(chain), nil
}

// ValidateExists returns an error if name does not resolve to a known
// branch (or main).
func (s *Service) ValidateExists(ctx context.Context, name string) error {
	_, err := s.GetBranch(ctx, name)
	return err
}

// Materialize is a convenience wrapper combining Cutoffs and
// domain/tessella.Store.Materialize for branch-aware callers.
func (s *Service) Materialize(ctx context.Context, resID tessella.ResID, branchName string) (tessella.State, error) {
	cutoffs, err := s.Cutoffs(ctx, branchName)
	if err != nil {
		return nil, err
	}
	return s.store.Materialize(ctx, resID, branchName, cutoffs)
}

// MergeBranch replays every tessella source wrote after its divergence
// from target's lineage onto target, tagged source="merge:<source>".
// If force is false and any res touched by both branches since that
// point conflicts, nothing is written.
func (s *Service) MergeBranch(ctx context.Context, source, target string, force bool) (*MergeResult, error) {
	sourceRec, err := s.GetBranch(ctx, source)
	if err != nil {
		return nil, err
	}
	sourceChain, err := s.Chain(ctx, source)
	if err != nil {
		return nil, err
	}
	targetChain, err := s.Chain(ctx, target)
	if err != nil {
		return nil, err
	}
	ancestor, ok := commonAncestor(sourceChain, targetChain)
	if !ok {
		return nil, apperror.ErrMergeConflict.WithMessage(fmt.Sprintf("no common ancestor between %q and %q", source, target))
	}
	branchPoint := branchPointFor(ancestor, source, cutoffsFromChain(sourceChain), cutoffsFromChain(targetChain))

	sourceTouched, err := s.touchedResAfter(ctx, source, branchPoint)
	if err != nil {
		return nil, err
	}
	targetTouched, err := s.touchedResAfter(ctx, target, branchPoint)
	if err != nil {
		return nil, err
	}
	conflicts := intersectResIDs(sourceTouched, targetTouched)
	if len(conflicts) > 0 && !force {
		return &MergeResult{Conflicts: conflicts, Applied: 0}, nil
	}

	sourceTessellae, err := s.tessellaeAfter(ctx, source, branchPoint)
	if err != nil {
		return nil, err
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return nil, apperror.NewStoreError(err)
	}
	defer tx.Rollback()

	mergeSource := "merge:" + source
	for _, t := range sourceTessellae {
		payload, err := tessella.Decode(t.Type, t.Data)
		if err != nil {
			return nil, fmt.Errorf("branch: decode tessella %d during merge: %w", t.ID, err)
		}
		if _, err := s.store.AppendTx(ctx, tx.Tx, t.ResID, target, payload, &mergeSource); err != nil {
			return nil, err
		}
	}
	if _, err := s.store.AppendTx(ctx, tx.Tx, sourceRec.ID, sentinel.MainBranch, &tessella.AttributeSetPayload{Key: "status", Value: "merged"}, nil); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperror.NewStoreError(err)
	}
	return &MergeResult{Applied: len(sourceTessellae)}, nil
}

// CompareBranches materializes resID on both a and b and reports which
// state keys differ.
func (s *Service) CompareBranches(ctx context.Context, resID tessella.ResID, a, b string) (*CompareResult, error) {
	stateA, err := s.Materialize(ctx, resID, a)
	if err != nil {
		return nil, err
	}
	stateB, err := s.Materialize(ctx, resID, b)
	if err != nil {
		return nil, err
	}
	return &CompareResult{A: stateA, B: stateB, DifferingKeys: differingKeys(stateA, stateB)}, nil
}

func (s *Service) touchedResAfter(ctx context.Context, branchName string, after tessella.TessellaID) ([]tessella.ResID, error) {
	var ids []tessella.ResID
	err := s.db.NewSelect().Model((*tessella.Tessella)(nil)).
		ColumnExpr("DISTINCT res_id").
		Where("branch_id = ?", branchName).
		Where("id > ?", after).
		Scan(ctx, &ids)
	if err != nil {
		return nil, apperror.NewStoreError(err)
	}
	return ids, nil
}

func (s *Service) tessellaeAfter(ctx context.Context, branchName string, after tessella.TessellaID) ([]tessella.Tessella, error) {
	var rows []tessella.Tessella
	err := s.db.NewSelect().Model(&rows).
		Where("branch_id = ?", branchName).
		Where("id > ?", after).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.NewStoreError(err)
	}
	return rows, nil
}
