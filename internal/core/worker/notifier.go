// Package worker drains the notification outbox. Jobs are enqueued inside
// the transfer commit unit, so a completed transfer always has exactly one
// job, and a failed delivery never touches the transfer itself.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abhiraj33181/Banking-Management-System/internal/core/domain"
)

const maxAttempts = 5

// TransferNotifier is satisfied by notifications.Notifier.
type TransferNotifier interface {
	NotifyTransferSuccess(ctx context.Context, notice domain.TransferNotice) error
}

type NotificationWorker struct {
	db       *pgxpool.Pool
	notifier TransferNotifier
	interval time.Duration
}

func NewNotificationWorker(db *pgxpool.Pool, notifier TransferNotifier, interval time.Duration) *NotificationWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &NotificationWorker{db: db, notifier: notifier, interval: interval}
}

// Run polls until ctx is cancelled. Call it from its own goroutine.
func (w *NotificationWorker) Run(ctx context.Context) {
	slog.Info("notification worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("notification worker stopped")
			return
		case <-ticker.C:
			for w.processOne(ctx) {
			}
		}
	}
}

// processOne claims and delivers a single due job. Returns true when a job
// was claimed, so the caller can drain the backlog before sleeping again.
func (w *NotificationWorker) processOne(ctx context.Context) bool {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		slog.Error("worker: failed to begin claim", "error", err)
		return false
	}
	defer tx.Rollback(ctx)

	var (
		id       string
		payload  []byte
		attempts int
	)
	err = tx.QueryRow(ctx, `
		SELECT id, payload, attempts
		FROM notification_jobs
		WHERE status = 'PENDING' AND next_run_at <= now()
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(&id, &payload, &attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	if err != nil {
		slog.Error("worker: failed to claim job", "error", err)
		return false
	}

	var notice domain.TransferNotice
	if err := json.Unmarshal(payload, &notice); err != nil {
		slog.Error("worker: bad payload, dropping job", "job_id", id, "error", err)
		w.finish(ctx, tx, id, "FAILED")
		return true
	}

	if sendErr := w.notifier.NotifyTransferSuccess(ctx, notice); sendErr != nil {
		attempts++
		if attempts >= maxAttempts {
			slog.Error("worker: notification failed permanently", "job_id", id, "attempts", attempts, "error", sendErr)
			w.finish(ctx, tx, id, "FAILED")
			return true
		}
		nextRun := time.Now().Add(time.Duration(attempts*10) * time.Second)
		slog.Warn("worker: notification failed, retrying", "job_id", id, "attempts", attempts, "next_run", nextRun, "error", sendErr)
		if _, err := tx.Exec(ctx, `
			UPDATE notification_jobs SET attempts = $2, next_run_at = $3 WHERE id = $1
		`, id, attempts, nextRun); err != nil {
			slog.Error("worker: failed to reschedule job", "job_id", id, "error", err)
			return true
		}
		if err := tx.Commit(ctx); err != nil {
			slog.Error("worker: failed to commit reschedule", "job_id", id, "error", err)
		}
		return true
	}

	slog.Info("worker: notification sent", "job_id", id)
	w.finish(ctx, tx, id, "COMPLETED")
	return true
}

func (w *NotificationWorker) finish(ctx context.Context, tx pgx.Tx, id, status string) {
	if _, err := tx.Exec(ctx, `UPDATE notification_jobs SET status = $2 WHERE id = $1`, id, status); err != nil {
		slog.Error("worker: failed to update job", "job_id", id, "error", err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		slog.Error("worker: failed to commit job update", "job_id", id, "error", err)
	}
}
