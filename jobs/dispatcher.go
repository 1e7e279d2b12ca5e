// Package jobs holds the background machinery: the outbox dispatcher that
// drains deferred remote pushes and the cron-driven reconciliation jobs.
package jobs

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Vatscode/Mini-ERP/models"
	"github.com/Vatscode/Mini-ERP/netsuite"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dispatcher drains the remote push outbox. Rows are claimed with
// FOR UPDATE SKIP LOCKED so multiple instances never double-push, retried
// with exponential backoff, and parked DEAD after MaxAttempts.
type Dispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Gateway      netsuite.Gateway
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewDispatcher(db *gorm.DB, logger *logrus.Logger, gateway netsuite.Gateway) *Dispatcher {
	return &Dispatcher{
		DB:             db,
		Logger:         logger,
		Gateway:        gateway,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   2 * time.Second,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    intFromEnv("REMOTE_PUSH_MAX_ATTEMPTS", 10),
		InitialBackoff: time.Duration(intFromEnv("REMOTE_PUSH_INITIAL_BACKOFF_SECONDS", 5)) * time.Second,
		MaxBackoff:     10 * time.Minute,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DispatchOnce claims and pushes one batch of eligible rows.
func (d *Dispatcher) DispatchOnce(ctx context.Context) {
	if d == nil || d.DB == nil {
		return
	}
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)

	var claimed []models.RemotePush
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible: PENDING/FAILED and past backoff, or PROCESSING with a
		// stale lock (dispatcher died mid-batch).
		q := tx.
			Where(`
				(
					status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.RemotePushStatusPending, models.RemotePushStatusFailed}, now,
				models.RemotePushStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if d.MaxAttempts > 0 && claimed[i].Attempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max push attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].Status = models.RemotePushStatusDead
				if err := tx.Model(&models.RemotePush{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"status":          models.RemotePushStatusDead,
					"last_error":      &msg,
					"next_attempt_at": nil,
					"locked_at":       nil,
					"locked_by":       nil,
				}).Error; err != nil {
					return err
				}
				continue
			}
			claimed[i].Status = models.RemotePushStatusProcessing
			claimed[i].Attempts = claimed[i].Attempts + 1
			if err := tx.Model(&models.RemotePush{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"status":          models.RemotePushStatusProcessing,
				"locked_at":       now,
				"locked_by":       d.DispatcherID,
				"attempts":        gorm.Expr("attempts + 1"),
				"last_error":      nil,
				"next_attempt_at": nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{"field": "dispatcher"}).Error("outbox claim failed: " + err.Error())
		}
		return
	}
	if len(claimed) == 0 {
		return
	}

	for _, row := range claimed {
		if row.Status == models.RemotePushStatusDead {
			continue
		}
		if pushErr := d.pushRow(ctx, row); pushErr != nil {
			d.markFailed(ctx, row, pushErr)
			continue
		}
		d.markSucceeded(ctx, row.ID)
	}
}

func (d *Dispatcher) pushRow(ctx context.Context, row models.RemotePush) error {
	payload, err := row.DecodePayload()
	if err != nil {
		return err
	}
	deltas := make([]netsuite.InventoryDelta, 0, len(payload.Deltas))
	for _, delta := range payload.Deltas {
		deltas = append(deltas, netsuite.InventoryDelta{Item: delta.ExternalItemId, Quantity: delta.Quantity})
	}
	return d.Gateway.PushInventory(ctx, deltas)
}

func (d *Dispatcher) markSucceeded(ctx context.Context, id int) {
	err := d.DB.WithContext(ctx).Model(&models.RemotePush{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          models.RemotePushStatusSucceeded,
		"next_attempt_at": nil,
		"locked_at":       nil,
		"locked_by":       nil,
	}).Error
	if err != nil && d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{"field": "dispatcher", "id": id}).Error("outbox success update failed: " + err.Error())
	}
}

func (d *Dispatcher) markFailed(ctx context.Context, row models.RemotePush, pushErr error) {
	msg := pushErr.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}

	if d.MaxAttempts > 0 && row.Attempts >= d.MaxAttempts {
		err := d.DB.WithContext(ctx).Model(&models.RemotePush{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
			"status":          models.RemotePushStatusDead,
			"last_error":      msg,
			"next_attempt_at": nil,
			"locked_at":       nil,
			"locked_by":       nil,
		}).Error
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field": "dispatcher", "id": row.ID, "attempts": row.Attempts,
			}).Error("remote push moved to DEAD after max attempts: " + msg)
			if err != nil {
				d.Logger.WithFields(logrus.Fields{"field": "dispatcher", "id": row.ID}).Error("outbox dead update failed: " + err.Error())
			}
		}
		return
	}

	next := time.Now().UTC().Add(BackoffForAttempt(row.Attempts, d.InitialBackoff, d.MaxBackoff))
	err := d.DB.WithContext(ctx).Model(&models.RemotePush{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"status":          models.RemotePushStatusFailed,
		"last_error":      msg,
		"next_attempt_at": next,
		"locked_at":       nil,
		"locked_by":       nil,
	}).Error
	if err != nil && d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{"field": "dispatcher", "id": row.ID}).Error("outbox failure update failed: " + err.Error())
	}
}

// BackoffForAttempt doubles the initial backoff per completed attempt, capped.
func BackoffForAttempt(attempt int, initial time.Duration, max time.Duration) time.Duration {
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= max {
			return max
		}
	}
	if backoff > max {
		return max
	}
	return backoff
}

func intFromEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
