package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/sahilarora/merakart-backend/pkg/config"
	"github.com/sahilarora/merakart-backend/pkg/db/models"
	"github.com/sahilarora/merakart-backend/pkg/enums"
	"github.com/sahilarora/merakart-backend/pkg/logger"
)

// Mailer delivers one notification to its recipient.
type Mailer interface {
	Send(ctx context.Context, notification models.Notification) error
}

// Worker drains the notification queue. Each row is retried with a growing
// backoff until MaxAttempts, after which it is marked failed for good.
type Worker struct {
	repo   Repository
	mailer Mailer
	cfg    config.NotificationsConfig
	logg   *logger.Logger
}

// NewWorker builds the queue worker.
func NewWorker(repo Repository, mailer Mailer, cfg config.NotificationsConfig, logg *logger.Logger) (*Worker, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	return &Worker{repo: repo, mailer: mailer, cfg: cfg, logg: logg}, nil
}

// Run polls the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.logg.Info(ctx, "notification worker started")
	for {
		if err := w.ProcessBatch(ctx); err != nil {
			w.logg.Error(ctx, "processing notification batch", err)
		}
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "notification worker stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessBatch sends one batch of due notifications.
func (w *Worker) ProcessBatch(ctx context.Context) error {
	now := time.Now().UTC()
	batch, err := w.repo.PendingBatch(ctx, w.cfg.BatchSize, now)
	if err != nil {
		return err
	}

	for _, notification := range batch {
		w.dispatch(ctx, notification)
	}
	return nil
}

func (w *Worker) dispatch(ctx context.Context, notification models.Notification) {
	notifyCtx := w.logg.WithFields(ctx, map[string]any{
		"notification_id": notification.ID.String(),
		"kind":            notification.Kind,
		"attempt":         notification.Attempts + 1,
	})

	err := w.mailer.Send(ctx, notification)
	now := time.Now().UTC()
	notification.Attempts++

	if err == nil {
		notification.Status = enums.NotificationStatusSent
		notification.SentAt = &now
		notification.LastError = nil
		notification.NextRetryAt = nil
		if updateErr := w.repo.Update(ctx, &notification); updateErr != nil {
			w.logg.Error(notifyCtx, "marking notification sent", updateErr)
		}
		return
	}

	reason := err.Error()
	notification.LastError = &reason
	if notification.Attempts >= w.cfg.MaxAttempts {
		notification.Status = enums.NotificationStatusFailed
		notification.NextRetryAt = nil
		w.logg.Error(notifyCtx, "notification exhausted retries", err)
	} else {
		retryAt := now.Add(backoff(notification.Attempts))
		notification.NextRetryAt = &retryAt
		w.logg.Warn(notifyCtx, "notification send failed, will retry: "+reason)
	}
	if updateErr := w.repo.Update(ctx, &notification); updateErr != nil {
		w.logg.Error(notifyCtx, "recording notification failure", updateErr)
	}
}

// backoff doubles per attempt starting at one minute.
func backoff(attempts int) time.Duration {
	d := time.Minute
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= time.Hour {
			return time.Hour
		}
	}
	return d
}
