package tessella

import (
	"context"
	"fmt"
	"sort"

	"github.com/farant/smaragda/internal/database"
	"github.com/uptrace/bun"
)

// Store is the single point of access to res identities and the
// tessella log. Every other domain package reads and writes through it
// rather than touching kernel.res/kernel.tessella directly.
type Store struct {
	db *bun.DB
}

// NewStore constructs a Store over the shared bun.DB connection.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// CreateRes inserts a new res row and its opening "created" tessella in
// one transaction, returning the minted id.
func (s *Store) CreateRes(ctx context.Context, genusID ResID, branchID string, workspaceID *ResID) (ResID, error) {
	id := NewResID()
	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return "", fmt.Errorf("tessella: begin create res: %w", err)
	}
	defer tx.Rollback()

	res := &Res{ID: id, GenusID: genusID, BranchID: branchID, WorkspaceID: workspaceID}
	if _, err := tx.NewInsert().Model(res).Exec(ctx); err != nil {
		return "", fmt.Errorf("tessella: insert res: %w", err)
	}

	if _, err := s.appendTx(ctx, tx.Tx, id, branchID, &CreatedPayload{}, nil); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("tessella: commit create res: %w", err)
	}
	return id, nil
}

// Append writes one tessella onto an existing res' log and returns the
// stored row, including its assigned TessellaID. source identifies the
// writer for sync echo suppression (nil for locally-originated writes).
func (s *Store) Append(ctx context.Context, resID ResID, branchID string, payload Payload, source *string) (*Tessella, error) {
	return s.appendTx(ctx, s.db, resID, branchID, payload, source)
}

// AppendTx is Append run against an in-flight transaction, for callers
// (action engine, process engine, branch merge) that need the append to
// share atomicity with other writes.
func (s *Store) AppendTx(ctx context.Context, tx bun.IDB, resID ResID, branchID string, payload Payload, source *string) (*Tessella, error) {
	return s.appendTx(ctx, tx, resID, branchID, payload, source)
}

func (s *Store) appendTx(ctx context.Context, db bun.IDB, resID ResID, branchID string, payload Payload, source *string) (*Tessella, error) {
	data, err := Encode(payload)
	if err != nil {
		return nil, err
	}
	row := &Tessella{
		ResID:    resID,
		BranchID: branchID,
		Type:     payload.Tag(),
		Data:     data,
		Source:   source,
	}
	if _, err := db.NewInsert().Model(row).Returning("id, created_at").Exec(ctx); err != nil {
		return nil, fmt.Errorf("tessella: append %q: %w", payload.Tag(), err)
	}
	return row, nil
}

// CreateResWithID inserts a res row at a caller-chosen id, used only by
// bootstrap to mint the kernel's sentinel genera and default instances
// at fixed, well-known ids. Idempotent: if id already exists the insert
// is a no-op and created reports false.
func (s *Store) CreateResWithID(ctx context.Context, id ResID, genusID ResID, branchID string, workspaceID *ResID) (created bool, err error) {
	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return false, fmt.Errorf("tessella: begin create res with id: %w", err)
	}
	defer tx.Rollback()

	res := &Res{ID: id, GenusID: genusID, BranchID: branchID, WorkspaceID: workspaceID}
	result, err := tx.NewInsert().Model(res).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("tessella: insert res with id: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("tessella: rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if _, err := s.appendTx(ctx, tx.Tx, id, branchID, &CreatedPayload{}, nil); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("tessella: commit create res with id: %w", err)
	}
	return true, nil
}

// GetRes returns the res row for id, or apperror.ErrNotFound.
func (s *Store) GetRes(ctx context.Context, id ResID) (*Res, error) {
	res := new(Res)
	err := s.db.NewSelect().Model(res).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, notFoundOrStoreErr(err, "res", string(id))
	}
	return res, nil
}

// Log returns every tessella for resID visible on branchID, ordered by
// id. Visible means: tessellae written directly to branchID, plus every
// ancestor branch's tessellae up to (and including) the id at which
// branchID diverged from that ancestor. cutoffs maps an ancestor branch
// id to the last tessella id inherited from it; the caller (domain/branch)
// computes this from the branch-chain walk. A nil cutoffs means "no
// branching in play": only branchID's own tessellae are returned.
func (s *Store) Log(ctx context.Context, resID ResID, branchID string, cutoffs map[string]TessellaID) ([]Tessella, error) {
	if len(cutoffs) == 0 {
		var rows []Tessella
		err := s.db.NewSelect().Model(&rows).
			Where("res_id = ?", resID).
			Where("branch_id = ?", branchID).
			OrderExpr("id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("tessella: log: %w", err)
		}
		return rows, nil
	}

	branches := make([]string, 0, len(cutoffs)+1)
	branches = append(branches, branchID)
	for b := range cutoffs {
		branches = append(branches, b)
	}

	var rows []Tessella
	err := s.db.NewSelect().Model(&rows).
		Where("res_id = ?", resID).
		Where("branch_id IN (?)", bun.In(branches)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("tessella: log: %w", err)
	}

	filtered := rows[:0]
	for _, t := range rows {
		if t.BranchID == branchID {
			filtered = append(filtered, t)
			continue
		}
		if cutoff, ok := cutoffs[t.BranchID]; ok && t.ID <= cutoff {
			filtered = append(filtered, t)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].ID < filtered[j].ID })
	return filtered, nil
}

// Materialize loads resID's branch-aware log and folds it through Reduce.
func (s *Store) Materialize(ctx context.Context, resID ResID, branchID string, cutoffs map[string]TessellaID) (State, error) {
	log, err := s.Log(ctx, resID, branchID, cutoffs)
	if err != nil {
		return nil, err
	}
	return Reduce(log)
}

// ListByGenus returns the ids of every res of the given genus visible on
// branchID. Visible means: res created directly on branchID, plus every
// ancestor branch's res whose creation precedes (or is at) that
// ancestor's cutoff in cutoffs — the same map Materialize takes, computed
// by domain/branch's ancestor-chain walk. A nil/empty cutoffs returns
// only branchID's own res, matching Log's no-branching shortcut.
func (s *Store) ListByGenus(ctx context.Context, genusID ResID, branchID string, cutoffs map[string]TessellaID) ([]ResID, error) {
	if len(cutoffs) == 0 {
		var ids []ResID
		err := s.db.NewSelect().Model((*Res)(nil)).
			Column("id").
			Where("genus_id = ?", genusID).
			Where("branch_id = ?", branchID).
			OrderExpr("id ASC").
			Scan(ctx, &ids)
		if err != nil {
			return nil, fmt.Errorf("tessella: list by genus: %w", err)
		}
		return ids, nil
	}

	branches := make([]string, 0, len(cutoffs)+1)
	branches = append(branches, branchID)
	for b := range cutoffs {
		branches = append(branches, b)
	}

	type resRow struct {
		ID              ResID      `bun:"id"`
		BranchID        string     `bun:"branch_id"`
		CreatedTessella TessellaID `bun:"created_tessella_id"`
	}
	var rows []resRow
	err := s.db.NewRaw(`
		SELECT r.id, r.branch_id, MIN(t.id) AS created_tessella_id
		FROM kernel.res r
		JOIN kernel.tessella t ON t.res_id = r.id AND t.type = ?
		WHERE r.genus_id = ? AND r.branch_id IN (?)
		GROUP BY r.id, r.branch_id
	`, TagCreated, genusID, bun.In(branches)).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("tessella: list by genus: %w", err)
	}

	ids := make([]ResID, 0, len(rows))
	for _, r := range rows {
		if r.BranchID == branchID {
			ids = append(ids, r.ID)
			continue
		}
		if cutoff, ok := cutoffs[r.BranchID]; ok && r.CreatedTessella <= cutoff {
			ids = append(ids, r.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// HighWaterMark returns the greatest TessellaID currently stored, or 0 if
// the log is empty. Sync pull/push use this as the watermark boundary.
func (s *Store) HighWaterMark(ctx context.Context) (TessellaID, error) {
	var max TessellaID
	err := s.db.NewSelect().Model((*Tessella)(nil)).
		ColumnExpr("COALESCE(MAX(id), 0)").
		Scan(ctx, &max)
	if err != nil {
		return 0, fmt.Errorf("tessella: high water mark: %w", err)
	}
	return max, nil
}
