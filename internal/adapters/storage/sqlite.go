package storage

// sqlite.go: réplica local de los mercados del ledger.
//
// Estrategia:
//   - `markets`: UNA fila autoritativa por (network, id), escrita solo por el
//     reconciler. El UPSERT ignora snapshots más viejos que el guardado.
//   - `market_overlays`: escrituras optimistas tras enviar una transacción.
//     Caducan (expires_at) y se borran cuando llega un snapshot del ledger
//     igual o más nuevo.
//   - `participants`: historial append-only, dedup por clave natural.
//   - `vote_markers`: un voto por (network, market, voter).
//   - Prune automático al arrancar: overlays caducados.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
-- Snapshot autoritativo por mercado
CREATE TABLE IF NOT EXISTS markets (
    network     TEXT    NOT NULL,
    id          INTEGER NOT NULL,
    address     TEXT    NOT NULL,
    creator     TEXT    NOT NULL DEFAULT '',
    status      TEXT    NOT NULL,
    category    TEXT    NOT NULL,
    payload     TEXT    NOT NULL,
    write_id    TEXT    NOT NULL DEFAULT '',
    cached_at   INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL,
    PRIMARY KEY (network, id)
);

-- Escrituras optimistas, como mucho una por mercado
CREATE TABLE IF NOT EXISTS market_overlays (
    network     TEXT    NOT NULL,
    id          INTEGER NOT NULL,
    payload     TEXT    NOT NULL,
    write_id    TEXT    NOT NULL DEFAULT '',
    cached_at   INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL,
    expires_at  INTEGER NOT NULL,
    PRIMARY KEY (network, id)
);

CREATE TABLE IF NOT EXISTS participants (
    network             TEXT    NOT NULL,
    market_address      TEXT    NOT NULL,
    participant_address TEXT    NOT NULL,
    action              TEXT    NOT NULL,
    answer              INTEGER NOT NULL,
    bond_amount         INTEGER NOT NULL,
    escalation_level    INTEGER NOT NULL,
    ts                  INTEGER NOT NULL,
    PRIMARY KEY (network, market_address, participant_address, action, ts)
);

CREATE TABLE IF NOT EXISTS vote_markers (
    network        TEXT    NOT NULL,
    market_address TEXT    NOT NULL,
    voter          TEXT    NOT NULL,
    choice         TEXT    NOT NULL,
    voted_at       INTEGER NOT NULL,
    PRIMARY KEY (network, market_address, voter)
);

CREATE INDEX IF NOT EXISTS idx_markets_status  ON markets(network, status);
CREATE INDEX IF NOT EXISTS idx_markets_cached  ON markets(network, cached_at);
CREATE INDEX IF NOT EXISTS idx_overlays_expiry ON market_overlays(expires_at);
`

// DefaultOptimisticTTL es la vida de una escritura optimista sin confirmar.
const DefaultOptimisticTTL = 2 * time.Minute

// Options configura un store. Los zero values usan los defaults.
type Options struct {
	OptimisticTTL time.Duration
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.OptimisticTTL <= 0 {
		o.OptimisticTTL = DefaultOptimisticTTL
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// SQLiteStore implementa ports.CacheStore, ports.ParticipantStore y
// ports.VoteMarkerStore usando SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db   *sql.DB
	opts Options
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada,
// aplica el schema y limpia overlays caducados.
func NewSQLiteStore(path string, opts Options) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}

	s := &SQLiteStore{db: db, opts: opts.withDefaults()}
	if _, err := s.pruneOverlays(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: %w", err)
	}
	return s, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// pruneOverlays elimina las escrituras optimistas caducadas.
func (s *SQLiteStore) pruneOverlays(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM market_overlays WHERE expires_at <= ?`, s.opts.Now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune overlays: %w", err)
	}
	return res.RowsAffected()
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
