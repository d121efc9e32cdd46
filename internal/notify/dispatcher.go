package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/plantops/plantops/internal/config"
	"github.com/plantops/plantops/internal/models"
)

// Kind names an alert whose recipients are configured by capability.
type Kind string

const (
	KindShortage    Kind = "shortage"
	KindQCRejection Kind = "qc_rejection"
	KindShipment    Kind = "shipment"
)

// Directory resolves capability holders.
type Directory interface {
	UsersWithCapabilities(ctx context.Context, caps ...models.Capability) ([]string, error)
}

// Dispatcher resolves recipients by capability and sends. Call it only after
// the triggering transaction has committed; it logs and swallows failures.
type Dispatcher struct {
	directory Directory
	notifier  Notifier
	roles     map[Kind][]models.Capability
	timeout   time.Duration
}

// NewDispatcher creates a dispatcher with the recipient roles from cfg.
func NewDispatcher(directory Directory, notifier Notifier, cfg config.NotificationsConfig) *Dispatcher {
	return &Dispatcher{
		directory: directory,
		notifier:  notifier,
		roles: map[Kind][]models.Capability{
			KindShortage:    capabilities(cfg.ShortageRoles),
			KindQCRejection: capabilities(cfg.QCRejectionRoles),
			KindShipment:    capabilities(cfg.ShipmentRoles),
		},
		timeout: 10 * time.Second,
	}
}

// Dispatch sends n to the holders of the roles configured for kind.
// UserIDs on n are replaced by the resolved recipients.
func (d *Dispatcher) Dispatch(ctx context.Context, kind Kind, n models.Notification) {
	if d == nil || d.notifier == nil {
		return
	}

	// Detach from the request so a client disconnect does not drop the alert.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	log := slog.With("kind", kind, "reference_type", n.ReferenceType, "reference_id", n.ReferenceID)

	users, err := d.directory.UsersWithCapabilities(ctx, d.roles[kind]...)
	if err != nil {
		log.Warn("resolving notification recipients failed", "error", err)
		return
	}
	if len(users) == 0 {
		log.Debug("no notification recipients")
		return
	}

	n.UserIDs = users
	if err := d.notifier.Send(ctx, n); err != nil {
		log.Warn("sending notification failed", "recipients", len(users), "error", err)
		return
	}

	log.Debug("notification sent", "recipients", len(users))
}

func capabilities(roles []string) []models.Capability {
	out := make([]models.Capability, 0, len(roles))
	for _, r := range roles {
		out = append(out, models.Capability(r))
	}
	return out
}
