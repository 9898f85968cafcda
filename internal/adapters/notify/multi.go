package notify

import (
	"context"
	"errors"

	"github.com/alejandrodnm/butterfly/internal/domain"
	"github.com/alejandrodnm/butterfly/internal/ports"
)

// Multi reenvía cada alerta a todos los notifiers; uno que falla no corta al resto.
type Multi []ports.Notifier

func (m Multi) Notify(ctx context.Context, alert domain.Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
