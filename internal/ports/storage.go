package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/butterfly/internal/domain"
)

// SnapshotStore persiste los snapshots del tracker. Solo append.
type SnapshotStore interface {
	// AppendSnapshot persiste un snapshot con sus exposiciones y posiciones.
	AppendSnapshot(ctx context.Context, snap domain.LivePositionSnapshot) error

	// SnapshotsBetween devuelve los snapshots en [from, to] ordenados por tiempo.
	SnapshotsBetween(ctx context.Context, from, to time.Time) ([]domain.LivePositionSnapshot, error)

	// LoadRecentSnapshots devuelve los últimos limit snapshots en orden cronológico.
	LoadRecentSnapshots(ctx context.Context, limit int) ([]domain.LivePositionSnapshot, error)

	// Stats resume el contenido del store.
	Stats(ctx context.Context) (domain.SnapshotStats, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}

// HistoryStore guarda una copia local del corpus histórico.
type HistoryStore interface {
	// SaveHistory reemplaza el corpus guardado.
	SaveHistory(ctx context.Context, weeks []domain.HistoricalWeek) error

	// LoadHistory devuelve el corpus guardado ordenado por fecha de cierre.
	LoadHistory(ctx context.Context) ([]domain.HistoricalWeek, error)
}
