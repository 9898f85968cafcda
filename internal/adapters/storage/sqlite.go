package storage

// sqlite.go: histórico del tracker y copia local del corpus.
//
// Estrategia:
//   - `snapshots`: una fila por tick del tracker (totales de la cartera).
//   - `bucket_history`: exposición Yes/No por bucket de cada snapshot; es lo que
//     dibuja el gráfico butterfly y el timeline.
//   - `positions`: las posiciones crudas de cada snapshot, para auditar.
//   - `historical_weeks`: el corpus resuelto; se reemplaza entero en cada refresh
//     para poder arrancar sin Gamma.
//   - Timestamps como TEXT UTC de ancho fijo: el orden lexicográfico es el cronológico.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/butterfly/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id              TEXT PRIMARY KEY,
    ts              TEXT    NOT NULL,
    total_positions INTEGER NOT NULL DEFAULT 0,
    total_value     REAL    NOT NULL DEFAULT 0,
    total_pnl       REAL    NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS bucket_history (
    snapshot_id TEXT NOT NULL REFERENCES snapshots(id),
    bucket      TEXT NOT NULL,
    yes_size    REAL NOT NULL DEFAULT 0,
    no_size     REAL NOT NULL DEFAULT 0,
    yes_value   REAL NOT NULL DEFAULT 0,
    no_value    REAL NOT NULL DEFAULT 0,
    pnl         REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS positions (
    snapshot_id   TEXT NOT NULL REFERENCES snapshots(id),
    title         TEXT NOT NULL,
    bucket        TEXT,
    event_slug    TEXT,
    outcome       TEXT NOT NULL,
    size          REAL NOT NULL DEFAULT 0,
    avg_price     REAL NOT NULL DEFAULT 0,
    cur_price     REAL NOT NULL DEFAULT 0,
    current_value REAL NOT NULL DEFAULT 0,
    cash_pnl      REAL NOT NULL DEFAULT 0,
    percent_pnl   REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS historical_weeks (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    start_date TEXT,
    end_date   TEXT,
    bucket     TEXT    NOT NULL,
    actual     INTEGER NOT NULL,
    title      TEXT
);

CREATE INDEX IF NOT EXISTS idx_snapshots_ts    ON snapshots(ts);
CREATE INDEX IF NOT EXISTS idx_bucket_snapshot ON bucket_history(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_pos_snapshot    ON positions(snapshot_id);
`

// tsLayout tiene ancho fijo para que ORDER BY ts sea cronológico.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) time.Time {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

// SQLiteStorage implementa ports.SnapshotStore y ports.HistoryStore usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// AppendSnapshot persiste el snapshot con sus exposiciones y posiciones en una transacción.
func (s *SQLiteStorage) AppendSnapshot(ctx context.Context, snap domain.LivePositionSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.AppendSnapshot: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, ts, total_positions, total_value, total_pnl) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, formatTS(snap.Timestamp), snap.TotalPositions, snap.TotalValue, snap.TotalPnL,
	); err != nil {
		return fmt.Errorf("storage.AppendSnapshot: insert snapshot %s: %w", snap.ID, err)
	}

	bucketStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bucket_history (snapshot_id, bucket, yes_size, no_size, yes_value, no_value, pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.AppendSnapshot: prepare buckets: %w", err)
	}
	defer bucketStmt.Close()

	for _, e := range snap.Exposures {
		if _, err := bucketStmt.ExecContext(ctx,
			snap.ID, e.Bucket, e.YesSize, e.NoSize, e.YesValue, e.NoValue, e.PnL,
		); err != nil {
			return fmt.Errorf("storage.AppendSnapshot: insert bucket %s: %w", e.Bucket, err)
		}
	}

	posStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO positions
			(snapshot_id, title, bucket, event_slug, outcome, size, avg_price,
			 cur_price, current_value, cash_pnl, percent_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.AppendSnapshot: prepare positions: %w", err)
	}
	defer posStmt.Close()

	for _, p := range snap.Positions {
		if _, err := posStmt.ExecContext(ctx,
			snap.ID, p.Title, p.Bucket, p.EventSlug, string(p.Outcome), p.Size, p.AvgPrice,
			p.CurPrice, p.CurrentValue, p.CashPnL, p.PercentPnL,
		); err != nil {
			return fmt.Errorf("storage.AppendSnapshot: insert position %q: %w", p.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.AppendSnapshot: commit: %w", err)
	}
	return nil
}

// SnapshotsBetween devuelve los snapshots en [from, to] en orden cronológico.
func (s *SQLiteStorage) SnapshotsBetween(ctx context.Context, from, to time.Time) ([]domain.LivePositionSnapshot, error) {
	snaps, err := s.loadRange(ctx, formatTS(from), formatTS(to))
	if err != nil {
		return nil, fmt.Errorf("storage.SnapshotsBetween: %w", err)
	}
	return snaps, nil
}

// LoadRecentSnapshots devuelve los últimos limit snapshots en orden cronológico.
// Lo usa el tracker al arrancar para recuperar la historia.
func (s *SQLiteStorage) LoadRecentSnapshots(ctx context.Context, limit int) ([]domain.LivePositionSnapshot, error) {
	if limit <= 0 {
		return nil, nil
	}

	var from string
	err := s.db.QueryRowContext(ctx,
		`SELECT ts FROM snapshots ORDER BY ts DESC LIMIT 1 OFFSET ?`, limit-1,
	).Scan(&from)
	switch {
	case err == sql.ErrNoRows:
		from = "" // hay menos de limit: todos
	case err != nil:
		return nil, fmt.Errorf("storage.LoadRecentSnapshots: cutoff: %w", err)
	}

	snaps, err := s.loadRange(ctx, from, formatTS(time.Now().AddDate(100, 0, 0)))
	if err != nil {
		return nil, fmt.Errorf("storage.LoadRecentSnapshots: %w", err)
	}
	if over := len(snaps) - limit; over > 0 {
		snaps = snaps[over:]
	}
	return snaps, nil
}

// Stats resume el store: número de snapshots, rango de fechas y buckets distintos.
func (s *SQLiteStorage) Stats(ctx context.Context) (domain.SnapshotStats, error) {
	var st domain.SnapshotStats
	var first, last sql.NullString
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(ts), MAX(ts) FROM snapshots`,
	).Scan(&st.Count, &first, &last); err != nil {
		return domain.SnapshotStats{}, fmt.Errorf("storage.Stats: snapshots: %w", err)
	}
	if first.Valid {
		st.First = parseTS(first.String)
	}
	if last.Valid {
		st.Last = parseTS(last.String)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT bucket) FROM bucket_history`,
	).Scan(&st.UniqueBuckets); err != nil {
		return domain.SnapshotStats{}, fmt.Errorf("storage.Stats: buckets: %w", err)
	}
	return st, nil
}

// SaveHistory reemplaza el corpus guardado.
func (s *SQLiteStorage) SaveHistory(ctx context.Context, weeks []domain.HistoricalWeek) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveHistory: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM historical_weeks`); err != nil {
		return fmt.Errorf("storage.SaveHistory: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO historical_weeks (start_date, end_date, bucket, actual, title)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveHistory: prepare: %w", err)
	}
	defer stmt.Close()

	for _, w := range weeks {
		if _, err := stmt.ExecContext(ctx,
			formatTS(w.Start), formatTS(w.End), w.Bucket, w.Actual, w.Title,
		); err != nil {
			return fmt.Errorf("storage.SaveHistory: insert %s: %w", w.Bucket, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveHistory: commit: %w", err)
	}
	return nil
}

// LoadHistory devuelve el corpus guardado ordenado por fecha de cierre.
func (s *SQLiteStorage) LoadHistory(ctx context.Context) ([]domain.HistoricalWeek, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT start_date, end_date, bucket, actual, title
		FROM historical_weeks
		ORDER BY end_date, id
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadHistory: query: %w", err)
	}
	defer rows.Close()

	var weeks []domain.HistoricalWeek
	for rows.Next() {
		var w domain.HistoricalWeek
		var start, end, title sql.NullString
		if err := rows.Scan(&start, &end, &w.Bucket, &w.Actual, &title); err != nil {
			return nil, fmt.Errorf("storage.LoadHistory: scan row: %w", err)
		}
		w.Start = parseTS(start.String)
		w.End = parseTS(end.String)
		w.Title = title.String
		weeks = append(weeks, w)
	}
	return weeks, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// loadRange lee los snapshots con ts en [from, to] y les une exposiciones y posiciones.
func (s *SQLiteStorage) loadRange(ctx context.Context, from, to string) ([]domain.LivePositionSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, total_positions, total_value, total_pnl
		FROM snapshots
		WHERE ts BETWEEN ? AND ?
		ORDER BY ts, rowid
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.LivePositionSnapshot
	index := make(map[string]int)
	for rows.Next() {
		var snap domain.LivePositionSnapshot
		var ts string
		if err := rows.Scan(&snap.ID, &ts, &snap.TotalPositions, &snap.TotalValue, &snap.TotalPnL); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Timestamp = parseTS(ts)
		index[snap.ID] = len(snaps)
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}

	if err := s.attachExposures(ctx, snaps, index, from, to); err != nil {
		return nil, err
	}
	if err := s.attachPositions(ctx, snaps, index, from, to); err != nil {
		return nil, err
	}
	return snaps, nil
}

func (s *SQLiteStorage) attachExposures(ctx context.Context, snaps []domain.LivePositionSnapshot, index map[string]int, from, to string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.snapshot_id, b.bucket, b.yes_size, b.no_size, b.yes_value, b.no_value, b.pnl
		FROM bucket_history b
		JOIN snapshots s ON s.id = b.snapshot_id
		WHERE s.ts BETWEEN ? AND ?
		ORDER BY b.rowid
	`, from, to)
	if err != nil {
		return fmt.Errorf("query bucket_history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var e domain.BucketExposure
		if err := rows.Scan(&id, &e.Bucket, &e.YesSize, &e.NoSize, &e.YesValue, &e.NoValue, &e.PnL); err != nil {
			return fmt.Errorf("scan bucket_history: %w", err)
		}
		if i, ok := index[id]; ok {
			snaps[i].Exposures = append(snaps[i].Exposures, e)
		}
	}
	return rows.Err()
}

func (s *SQLiteStorage) attachPositions(ctx context.Context, snaps []domain.LivePositionSnapshot, index map[string]int, from, to string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.snapshot_id, p.title, p.bucket, p.event_slug, p.outcome, p.size, p.avg_price,
		       p.cur_price, p.current_value, p.cash_pnl, p.percent_pnl
		FROM positions p
		JOIN snapshots s ON s.id = p.snapshot_id
		WHERE s.ts BETWEEN ? AND ?
		ORDER BY p.rowid
	`, from, to)
	if err != nil {
		return fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, outcome string
		var bucket, slug sql.NullString
		var p domain.Position
		if err := rows.Scan(&id, &p.Title, &bucket, &slug, &outcome, &p.Size, &p.AvgPrice,
			&p.CurPrice, &p.CurrentValue, &p.CashPnL, &p.PercentPnL); err != nil {
			return fmt.Errorf("scan position: %w", err)
		}
		p.Bucket = bucket.String
		p.EventSlug = slug.String
		p.Outcome = domain.Outcome(outcome)
		if i, ok := index[id]; ok {
			snaps[i].Positions = append(snaps[i].Positions, p)
		}
	}
	return rows.Err()
}
