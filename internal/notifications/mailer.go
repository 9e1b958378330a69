package notifications

import (
	"context"
	"fmt"

	"github.com/sahilarora/merakart-backend/pkg/db/models"
	"github.com/sahilarora/merakart-backend/pkg/logger"
)

// LogMailer writes each delivery to the structured log. It stands in until a
// real SMS/email gateway is wired behind the Mailer interface.
type LogMailer struct {
	logg *logger.Logger
}

// NewLogMailer builds the log-backed mailer.
func NewLogMailer(logg *logger.Logger) (*LogMailer, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogMailer{logg: logg}, nil
}

func (m *LogMailer) Send(ctx context.Context, notification models.Notification) error {
	ctx = m.logg.WithFields(ctx, map[string]any{
		"notification_id": notification.ID.String(),
		"kind":            notification.Kind,
		"recipient":       notification.Recipient,
	})
	m.logg.Info(ctx, "notification dispatched")
	return nil
}
