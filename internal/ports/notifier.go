package ports

import (
	"context"

	"github.com/alejandrodnm/butterfly/internal/domain"
)

// Notifier envía alertas al usuario.
type Notifier interface {
	// Notify envía una alerta. En la implementación de consola, la imprime.
	Notify(ctx context.Context, alert domain.Alert) error
}
