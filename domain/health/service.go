package health

import (
	"context"

	"github.com/farant/smaragda/domain/branch"
	"github.com/farant/smaragda/domain/genus"
	"github.com/farant/smaragda/domain/sentinel"
	"github.com/farant/smaragda/domain/tessella"
)

// Service implements evaluate_health and list_unhealthy.
type Service struct {
	store     *tessella.Store
	genusSvc  *genus.Service
	branchSvc *branch.Service
}

// NewService constructs a Service over the shared store, genus catalog,
// and branch service.
func NewService(store *tessella.Store, genusSvc *genus.Service, branchSvc *branch.Service) *Service {
	return &Service{store: store, genusSvc: genusSvc, branchSvc: branchSvc}
}

// EvaluateHealth checks resID's current state against its genus'
// declared attributes/states and its open-error backlog.
func (s *Service) EvaluateHealth(ctx context.Context, branchID string, resID tessella.ResID) (*Report, error) {
	res, err := s.store.GetRes(ctx, resID)
	if err != nil {
		return nil, err
	}
	g, err := s.genusSvc.Get(ctx, branchID, res.GenusID)
	if err != nil {
		return nil, err
	}
	cutoffs, err := s.branchSvc.Cutoffs(ctx, branchID)
	if err != nil {
		return nil, err
	}
	state, err := s.store.Materialize(ctx, resID, branchID, cutoffs)
	if err != nil {
		return nil, err
	}

	var issues []Issue
	issues = append(issues, missingRequiredAttributes(g, state)...)
	issues = append(issues, attributeTypeMismatches(g, state)...)
	if issue, bad := invalidStatusIssue(g, state); bad {
		issues = append(issues, issue)
	}

	hasError, err := s.hasOpenAssociatedError(ctx, resID)
	if err != nil {
		return nil, err
	}
	if hasError {
		issues = append(issues, Issue{Kind: UnacknowledgedError, Detail: "an open Error res references this res"})
	}

	return &Report{ResID: resID, Healthy: len(issues) == 0, Issues: issues}, nil
}

// ListUnhealthy is the batch form: every res of filters.GenusID visible
// on branchID whose evaluate_health reports at least one issue.
func (s *Service) ListUnhealthy(ctx context.Context, branchID string, filters Filters) ([]*Report, error) {
	cutoffs, err := s.branchSvc.Cutoffs(ctx, branchID)
	if err != nil {
		return nil, err
	}
	ids, err := s.store.ListByGenus(ctx, filters.GenusID, branchID, cutoffs)
	if err != nil {
		return nil, err
	}
	var out []*Report
	for _, id := range ids {
		report, err := s.EvaluateHealth(ctx, branchID, id)
		if err != nil {
			return nil, err
		}
		if !report.Healthy {
			out = append(out, report)
		}
	}
	return out, nil
}

// hasOpenAssociatedError reports whether an open Error res references
// resID. Error res are always created on main (see domain/action's and
// domain/cron's create_error paths), regardless of which branch the res
// they reference lives on, so the scan is fixed to main rather than
// branchID.
func (s *Service) hasOpenAssociatedError(ctx context.Context, resID tessella.ResID) (bool, error) {
	ids, err := s.store.ListByGenus(ctx, sentinel.ErrorGenus, sentinel.MainBranch, nil)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		state, err := s.store.Materialize(ctx, id, sentinel.MainBranch, nil)
		if err != nil {
			return false, err
		}
		assoc, _ := state["associated_res_id"].(string)
		status, _ := state["status"].(string)
		if assoc == string(resID) && status == "open" {
			return true, nil
		}
	}
	return false, nil
}
