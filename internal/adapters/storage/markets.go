package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/oraclesync/internal/domain"
	"github.com/alejandrodnm/oraclesync/internal/ports"
)

var (
	_ ports.CacheStore       = (*SQLiteStore)(nil)
	_ ports.ParticipantStore = (*SQLiteStore)(nil)
	_ ports.VoteMarkerStore  = (*SQLiteStore)(nil)
)

// querier es lo común entre *sql.DB y *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const (
	selectMarket = `SELECT payload, write_id, cached_at, updated_at
		FROM markets WHERE network = ? AND id = ?`
	selectOverlay = `SELECT payload, write_id, cached_at, updated_at, expires_at
		FROM market_overlays WHERE network = ? AND id = ?`
)

// Upsert guarda un snapshot autoritativo del reconciler.
func (s *SQLiteStore) Upsert(ctx context.Context, row domain.CacheRow) error {
	row.Source = domain.SourceLedger
	m := row.Market
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("storage.Upsert: marshal market %d: %w", m.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.Upsert: begin tx: %w", err)
	}
	defer tx.Rollback()

	// El WHERE del DO UPDATE implementa last-write-wins por updated_at:
	// un snapshot más viejo no toca la fila y RowsAffected devuelve 0.
	res, err := tx.ExecContext(ctx, `
		INSERT INTO markets
			(network, id, address, creator, status, category, payload, write_id, cached_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(network, id) DO UPDATE SET
			address    = excluded.address,
			creator    = excluded.creator,
			status     = excluded.status,
			category   = excluded.category,
			payload    = excluded.payload,
			write_id   = excluded.write_id,
			cached_at  = excluded.cached_at,
			updated_at = excluded.updated_at
		WHERE excluded.updated_at >= markets.updated_at
	`,
		string(m.Network), m.ID, m.Address, m.Creator, string(m.Status), string(m.Category),
		string(payload), row.WriteID, unixNano(row.CachedAt), unixNano(row.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.Upsert: market %d: %w", m.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		slog.Debug("stale ledger snapshot ignored", "network", m.Network, "market_id", m.ID)
		return tx.Commit()
	}

	if m.Status == domain.StatusResolved {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM market_overlays WHERE network = ? AND id = ?`,
			string(m.Network), m.ID)
	} else {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM market_overlays WHERE network = ? AND id = ? AND updated_at <= ?`,
			string(m.Network), m.ID, unixNano(row.UpdatedAt))
	}
	if err != nil {
		return fmt.Errorf("storage.Upsert: drop overlay %d: %w", m.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.Upsert: commit: %w", err)
	}
	return nil
}

// UpsertOptimistic guarda una escritura provisional sobre la fila autoritativa.
func (s *SQLiteStore) UpsertOptimistic(ctx context.Context, row domain.CacheRow) error {
	now := s.opts.Now()
	row = prepareOptimistic(row, s.opts.OptimisticTTL)
	m := row.Market

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.UpsertOptimistic: begin tx: %w", err)
	}
	defer tx.Rollback()

	base, err := loadRow(ctx, tx, selectMarket, m.Network, m.ID, false)
	if err != nil {
		return fmt.Errorf("storage.UpsertOptimistic: %w", err)
	}
	overlay, err := loadRow(ctx, tx, selectOverlay, m.Network, m.ID, true)
	if err != nil {
		return fmt.Errorf("storage.UpsertOptimistic: %w", err)
	}
	if err := domain.AcceptOptimistic(base, overlay, row, now); err != nil {
		return fmt.Errorf("storage.UpsertOptimistic: market %d: %w", m.ID, err)
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("storage.UpsertOptimistic: marshal market %d: %w", m.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO market_overlays
			(network, id, payload, write_id, cached_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(network, id) DO UPDATE SET
			payload    = excluded.payload,
			write_id   = excluded.write_id,
			cached_at  = excluded.cached_at,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`,
		string(m.Network), m.ID, string(payload), row.WriteID,
		unixNano(row.CachedAt), unixNano(row.UpdatedAt), unixNano(*row.ExpiresAt),
	); err != nil {
		return fmt.Errorf("storage.UpsertOptimistic: market %d: %w", m.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.UpsertOptimistic: commit: %w", err)
	}
	return nil
}

// Get devuelve la fila efectiva (overlay vigente o snapshot del ledger).
func (s *SQLiteStore) Get(ctx context.Context, network domain.Network, id int64) (domain.CacheRow, error) {
	base, err := loadRow(ctx, s.db, selectMarket, network, id, false)
	if err != nil {
		return domain.CacheRow{}, fmt.Errorf("storage.Get: %w", err)
	}
	overlay, err := loadRow(ctx, s.db, selectOverlay, network, id, true)
	if err != nil {
		return domain.CacheRow{}, fmt.Errorf("storage.Get: %w", err)
	}
	row, ok := domain.EffectiveRow(base, overlay, s.opts.Now())
	if !ok {
		return domain.CacheRow{}, fmt.Errorf("storage.Get: market %s/%d: %w", network, id, domain.ErrNotFound)
	}
	return row, nil
}

// Query devuelve las filas efectivas de la red que pasan el filtro, por id desc.
// El filtro se aplica tras el merge porque un overlay puede cambiar el status.
func (s *SQLiteStore) Query(ctx context.Context, network domain.Network, filter domain.CacheFilter) ([]domain.CacheRow, error) {
	if n, err := s.pruneOverlays(ctx); err != nil {
		return nil, fmt.Errorf("storage.Query: %w", err)
	} else if n > 0 {
		slog.Debug("expired optimistic writes pruned", "network", network, "count", n)
	}

	bases, err := loadRows(ctx, s.db, `
		SELECT payload, write_id, cached_at, updated_at FROM markets WHERE network = ?`,
		network, false)
	if err != nil {
		return nil, fmt.Errorf("storage.Query: %w", err)
	}
	overlays, err := loadRows(ctx, s.db, `
		SELECT payload, write_id, cached_at, updated_at, expires_at FROM market_overlays WHERE network = ?`,
		network, true)
	if err != nil {
		return nil, fmt.Errorf("storage.Query: %w", err)
	}
	return mergeRows(bases, overlays, filter, s.opts.Now()), nil
}

// Stale devuelve los ids con snapshot cacheado antes de olderThan.
func (s *SQLiteStore) Stale(ctx context.Context, network domain.Network, olderThan time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM markets WHERE network = ? AND cached_at < ? ORDER BY id`,
		string(network), unixNano(olderThan))
	if err != nil {
		return nil, fmt.Errorf("storage.Stale: query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage.Stale: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- helpers internos ---

func prepareOptimistic(row domain.CacheRow, ttl time.Duration) domain.CacheRow {
	row.Source = domain.SourceOptimistic
	if row.CachedAt.IsZero() {
		row.CachedAt = row.UpdatedAt
	}
	if row.ExpiresAt == nil {
		exp := row.UpdatedAt.Add(ttl)
		row.ExpiresAt = &exp
	}
	return row
}

// loadRow lee una fila; devuelve nil si no existe.
func loadRow(ctx context.Context, q querier, query string, network domain.Network, id int64, overlay bool) (*domain.CacheRow, error) {
	row, err := scanRow(q.QueryRowContext(ctx, query, string(network), id), overlay)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load market %s/%d: %w", network, id, err)
	}
	return &row, nil
}

func loadRows(ctx context.Context, q querier, query string, network domain.Network, overlay bool) (map[int64]domain.CacheRow, error) {
	rows, err := q.QueryContext(ctx, query, string(network))
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]domain.CacheRow)
	for rows.Next() {
		r, err := scanRow(rows, overlay)
		if err != nil {
			return nil, err
		}
		out[r.Market.ID] = r
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner, overlay bool) (domain.CacheRow, error) {
	var (
		row                         domain.CacheRow
		payload                     string
		cachedAt, updatedAt, expiry int64
	)
	dest := []any{&payload, &row.WriteID, &cachedAt, &updatedAt}
	if overlay {
		dest = append(dest, &expiry)
	}
	if err := sc.Scan(dest...); err != nil {
		return row, err
	}
	if err := json.Unmarshal([]byte(payload), &row.Market); err != nil {
		return row, fmt.Errorf("decode payload: %w", err)
	}
	row.CachedAt = fromUnixNano(cachedAt)
	row.UpdatedAt = fromUnixNano(updatedAt)
	row.Source = domain.SourceLedger
	if overlay {
		row.Source = domain.SourceOptimistic
		exp := fromUnixNano(expiry)
		row.ExpiresAt = &exp
	}
	return row, nil
}

// mergeRows resuelve la fila efectiva por id, filtra y ordena por id desc.
func mergeRows(bases, overlays map[int64]domain.CacheRow, filter domain.CacheFilter, now time.Time) []domain.CacheRow {
	ids := make([]int64, 0, len(bases)+len(overlays))
	for id := range bases {
		ids = append(ids, id)
	}
	for id := range overlays {
		if _, ok := bases[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	out := make([]domain.CacheRow, 0, len(ids))
	for _, id := range ids {
		var base, overlay *domain.CacheRow
		if b, ok := bases[id]; ok {
			base = &b
		}
		if o, ok := overlays[id]; ok {
			overlay = &o
		}
		row, ok := domain.EffectiveRow(base, overlay, now)
		if !ok || !filter.Matches(row.Market) {
			continue
		}
		out = append(out, row)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}
