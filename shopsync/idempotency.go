package shopsync

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/pharmasync_backend/config"
	"bitbucket.org/mmdatafocus/pharmasync_backend/models"
	"github.com/go-sql-driver/mysql"
)

// ErrIdempotencyInProgress means another delivery of the same message holds a
// fresh claim. The push handler answers non-2xx so Pub/Sub redelivers later.
var ErrIdempotencyInProgress = errors.New("another delivery of this message is in progress")

// A STARTED claim older than this belongs to a worker that died mid-run; the
// next delivery takes the row over instead of waiting forever.
const staleClaimAge = 5 * time.Minute

type claimAction int

const (
	claimSkip    claimAction = iota // already succeeded, ack without running
	claimWait                       // fresh claim held elsewhere, ask for redelivery
	claimReclaim                    // failed or stale claim, take the row over
)

func resolveExistingClaim(status models.IdempotencyStatus, updatedAt time.Time, now time.Time) claimAction {
	switch status {
	case models.IdempotencyStatusSucceeded:
		return claimSkip
	case models.IdempotencyStatusStarted:
		if now.Sub(updatedAt) < staleClaimAge {
			return claimWait
		}
		return claimReclaim
	default:
		return claimReclaim
	}
}

// BeginIdempotency claims a push message for a handler. The unique key on
// (handler_name, message_id) makes a redelivered message report
// alreadyProcessed=true instead of running the stage twice. FAILED keys and
// STARTED keys left behind by a crashed worker are reclaimed so redelivery can
// retry; a fresh STARTED claim returns ErrIdempotencyInProgress.
func BeginIdempotency(ctx context.Context, handlerName string, messageId string) (alreadyProcessed bool, err error) {
	db := config.GetDB().WithContext(ctx)
	key := models.IdempotencyKey{
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      models.IdempotencyStatusStarted,
	}
	if err := db.Create(&key).Error; err == nil {
		return false, nil
	} else if !isDuplicateKeyErr(err) {
		return false, err
	}

	var existing models.IdempotencyKey
	if err := db.Where("handler_name = ? AND message_id = ?", handlerName, messageId).
		First(&existing).Error; err != nil {
		return false, err
	}

	switch resolveExistingClaim(existing.Status, existing.UpdatedAt, time.Now()) {
	case claimSkip:
		return true, nil
	case claimWait:
		return false, ErrIdempotencyInProgress
	default:
		return false, db.Model(&models.IdempotencyKey{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"status":     models.IdempotencyStatusStarted,
				"last_error": nil,
			}).Error
	}
}

func MarkIdempotencySucceeded(ctx context.Context, handlerName string, messageId string) error {
	db := config.GetDB().WithContext(ctx)
	return db.Model(&models.IdempotencyKey{}).
		Where("handler_name = ? AND message_id = ?", handlerName, messageId).
		Updates(map[string]interface{}{
			"status":     models.IdempotencyStatusSucceeded,
			"last_error": nil,
		}).Error
}

func MarkIdempotencyFailed(ctx context.Context, handlerName string, messageId string, lastError string) error {
	db := config.GetDB().WithContext(ctx)
	return db.Model(&models.IdempotencyKey{}).
		Where("handler_name = ? AND message_id = ?", handlerName, messageId).
		Updates(map[string]interface{}{
			"status":     models.IdempotencyStatusFailed,
			"last_error": lastError,
		}).Error
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
