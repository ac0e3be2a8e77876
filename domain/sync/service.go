package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"

	"github.com/farant/smaragda/domain/sentinel"
	"github.com/farant/smaragda/domain/tessella"
	"github.com/farant/smaragda/internal/database"
	"github.com/farant/smaragda/pkg/apperror"
	"github.com/farant/smaragda/pkg/tracing"
)

// Service implements Pull and Push, the kernel's only sync-facing
// surface. Both accept and return plain wire structs rather than
// anything store-shaped, since a real deployment exposes these over a
// transport this module doesn't own.
type Service struct {
	db    *bun.DB
	store *tessella.Store
}

// NewService constructs a Service over the shared store.
func NewService(db *bun.DB, store *tessella.Store) *Service {
	return &Service{db: db, store: store}
}

// tessellaJoinRow is the shape of a tessella row joined against its res'
// genus id, enough to decide sentinel exclusion without a second
// round-trip per row.
type tessellaJoinRow struct {
	ID        tessella.TessellaID `bun:"id"`
	ResID     tessella.ResID      `bun:"res_id"`
	BranchID  string              `bun:"branch_id"`
	Type      tessella.Tag        `bun:"type"`
	Data      json.RawMessage     `bun:"data"`
	CreatedAt time.Time           `bun:"created_at"`
	Source    *string             `bun:"source"`
	GenusID   tessella.ResID      `bun:"genus_id"`
}

// Pull returns every non-sentinel res/tessella the server has recorded
// after req.Since that wasn't echoed back from req.DeviceID's own
// pushes, augmented with the full defining history of every user genus
// those res reference.
func (s *Service) Pull(ctx context.Context, req PullRequest) (*PullResponse, error) {
	ctx, span := tracing.Start(ctx, "sync.pull",
		attribute.String("smaragda.device.id", req.DeviceID),
		attribute.Int64("smaragda.sync.since", int64(req.Since)),
	)
	defer span.End()

	if err := s.registerDevice(ctx, req.DeviceID); err != nil {
		return nil, err
	}

	var joined []tessellaJoinRow
	err := s.db.NewRaw(`
		SELECT t.id, t.res_id, t.branch_id, t.type, t.data, t.created_at, t.source, r.genus_id
		FROM kernel.tessella t
		JOIN kernel.res r ON r.id = t.res_id
		WHERE t.id > ?
		ORDER BY t.id ASC
	`, req.Since).Scan(ctx, &joined)
	if err != nil {
		return nil, apperror.NewStoreError(err)
	}

	resGenus := make(map[tessella.ResID]tessella.ResID)
	var rows []TessellaSummary
	for _, j := range joined {
		if !syncableRes(j.GenusID) {
			continue
		}
		resGenus[j.ResID] = j.GenusID
		rows = append(rows, TessellaSummary{
			ID: j.ID, ResID: j.ResID, BranchID: j.BranchID, Type: j.Type,
			Data: j.Data, CreatedAt: j.CreatedAt, Source: j.Source,
		})
	}
	rows = filterEcho(rows, deviceSourceTag(req.DeviceID))

	resSummaries, err := s.resSummaries(ctx, resGenus)
	if err != nil {
		return nil, err
	}

	genusIDs := make(map[tessella.ResID]bool)
	for _, genusID := range resGenus {
		genusIDs[genusID] = true
	}
	backfill, err := s.genusBackfill(ctx, genusIDs, deviceSourceTag(req.DeviceID))
	if err != nil {
		return nil, err
	}
	rows = append(rows, backfill...)

	hwm, err := s.store.HighWaterMark(ctx)
	if err != nil {
		return nil, err
	}
	return &PullResponse{Res: resSummaries, Tessellae: rows, HighWaterMark: hwm}, nil
}

// resSummaries fetches the res rows named by the keys of resGenus,
// preserving each row's own genus_id/branch_id/created_at.
func (s *Service) resSummaries(ctx context.Context, resGenus map[tessella.ResID]tessella.ResID) ([]ResSummary, error) {
	if len(resGenus) == 0 {
		return nil, nil
	}
	ids := make([]tessella.ResID, 0, len(resGenus))
	for id := range resGenus {
		ids = append(ids, id)
	}
	var rows []tessella.Res
	err := s.db.NewSelect().Model(&rows).Where("id IN (?)", bun.In(ids)).Scan(ctx)
	if err != nil {
		return nil, apperror.NewStoreError(err)
	}
	out := make([]ResSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, ResSummary{ID: r.ID, GenusID: r.GenusID, BranchID: r.BranchID, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

// genusBackfill returns the full tessella history of every id in
// genusIDs, so a receiver that has never seen a referenced user genus
// can still project it.
func (s *Service) genusBackfill(ctx context.Context, genusIDs map[tessella.ResID]bool, deviceTag string) ([]TessellaSummary, error) {
	var out []TessellaSummary
	for genusID := range genusIDs {
		var rows []tessella.Tessella
		err := s.db.NewSelect().Model(&rows).Where("res_id = ?", genusID).OrderExpr("id ASC").Scan(ctx)
		if err != nil {
			return nil, apperror.NewStoreError(err)
		}
		for _, t := range rows {
			out = append(out, TessellaSummary{
				ID: t.ID, ResID: t.ResID, BranchID: t.BranchID, Type: t.Type,
				Data: t.Data, CreatedAt: t.CreatedAt, Source: t.Source,
			})
		}
	}
	return filterEcho(out, deviceTag), nil
}

// Push inserts req's res ("ignore on duplicate") and appends every
// pushed tessella tagged with req.DeviceID's source tag, inside one
// transaction.
func (s *Service) Push(ctx context.Context, req PushRequest) (*PushResponse, error) {
	ctx, span := tracing.Start(ctx, "sync.push",
		attribute.String("smaragda.device.id", req.DeviceID),
		attribute.Int("smaragda.sync.tessellae_count", len(req.Tessellae)),
	)
	defer span.End()

	if err := s.registerDevice(ctx, req.DeviceID); err != nil {
		return nil, err
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return nil, apperror.NewStoreError(err)
	}
	defer tx.Rollback()

	for _, r := range req.Res {
		_, err := tx.NewRaw(`
			INSERT INTO kernel.res (id, genus_id, branch_id, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.GenusID, r.BranchID, r.CreatedAt).Exec(ctx)
		if err != nil {
			return nil, apperror.NewStoreError(err)
		}
	}

	tag := deviceSourceTag(req.DeviceID)
	var accepted uint64
	for _, t := range req.Tessellae {
		payload, err := tessella.Decode(t.Type, t.Data)
		if err != nil {
			return nil, fmt.Errorf("sync: decode pushed tessella %q: %w", t.Type, err)
		}
		if _, err := s.store.AppendTx(ctx, tx.Tx, t.ResID, t.BranchID, payload, &tag); err != nil {
			return nil, err
		}
		accepted++
	}

	if err := tx.Commit(); err != nil {
		return nil, apperror.NewStoreError(err)
	}

	hwm, err := s.store.HighWaterMark(ctx)
	if err != nil {
		return nil, err
	}
	return &PushResponse{Accepted: accepted, HighWaterMark: hwm}, nil
}

// registerDevice creates a Device res named deviceID on first contact
// and stamps last_sync_at on every call after that.
func (s *Service) registerDevice(ctx context.Context, deviceID string) error {
	ids, err := s.store.ListByGenus(ctx, sentinel.DeviceGenus, sentinel.MainBranch, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, id := range ids {
		state, err := s.store.Materialize(ctx, id, sentinel.MainBranch, nil)
		if err != nil {
			return err
		}
		if name, _ := state["device_id"].(string); name == deviceID {
			_, err := s.store.Append(ctx, id, sentinel.MainBranch, &tessella.AttributeSetPayload{Key: "last_sync_at", Value: now}, nil)
			return err
		}
	}

	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return apperror.NewStoreError(err)
	}
	defer tx.Rollback()

	newID := tessella.NewResID()
	res := &tessella.Res{ID: newID, GenusID: sentinel.DeviceGenus, BranchID: sentinel.MainBranch}
	if _, err := tx.NewInsert().Model(res).Exec(ctx); err != nil {
		return apperror.NewStoreError(err)
	}
	if _, err := s.store.AppendTx(ctx, tx.Tx, newID, sentinel.MainBranch, &tessella.CreatedPayload{}, nil); err != nil {
		return err
	}
	if _, err := s.store.AppendTx(ctx, tx.Tx, newID, sentinel.MainBranch, &tessella.AttributeSetPayload{Key: "device_id", Value: deviceID}, nil); err != nil {
		return err
	}
	if _, err := s.store.AppendTx(ctx, tx.Tx, newID, sentinel.MainBranch, &tessella.AttributeSetPayload{Key: "last_sync_at", Value: now}, nil); err != nil {
		return err
	}
	return tx.Commit()
}
