package services

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cosmarket/points/models"
	"github.com/cosmarket/points/utils"
)

// Exchange policy constants, agreed with the partner forum.
const (
	MinCoinAmount  = 10
	CoinStep       = 10
	DailyCoinLimit = 1000
	ExchangeRate   = 0.1
)

// Machine-readable exchange error codes returned to the partner system.
const (
	CodeSignatureFailed     = "SIGNATURE_VERIFICATION_FAILED"
	CodeMissingParameters   = "MISSING_REQUIRED_PARAMETERS"
	CodeCoinAmountTooSmall  = "COIN_AMOUNT_TOO_SMALL"
	CodeCoinAmountInvalid   = "COIN_AMOUNT_INVALID"
	CodeAlreadyProcessed    = "TRANSACTION_ALREADY_PROCESSED"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeDailyLimitExceeded  = "DAILY_LIMIT_EXCEEDED"
	CodePointsAmountInvalid = "POINTS_AMOUNT_INVALID"
	CodePointsUpdateFailed  = "POINTS_UPDATE_FAILED"
	CodeInternalError       = "INTERNAL_ERROR"
)

// ExchangeError carries the HTTP status and machine code for one pipeline
// failure.
type ExchangeError struct {
	Status  int
	Code    string
	Message string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ExchangeRequest is the decoded partner payload (signature already verified
// against the raw body at the HTTP boundary).
type ExchangeRequest struct {
	ForumUserID        string `json:"forum_user_id"`
	ForumTransactionID string `json:"forum_transaction_id"`
	UserEmail          string `json:"user_email"`
	CoinAmount         int64  `json:"coin_amount"`
	Timestamp          int64  `json:"timestamp"`
}

// ExchangeResult is the success payload.
type ExchangeResult struct {
	RecordID     string `json:"record_id"`
	PointsAmount int64  `json:"points_amount"`
	Balance      int64  `json:"balance"`
}

// ExchangeService converts forum coins into platform points with replay
// protection and a per-user daily cap.
type ExchangeService struct {
	db     *gorm.DB
	ledger *LedgerService
}

// NewExchangeService creates an exchange service.
func NewExchangeService(db *gorm.DB, ledger *LedgerService) *ExchangeService {
	return &ExchangeService{db: db, ledger: ledger}
}

// Process runs the validation pipeline, short-circuiting at the first
// failure. See the error codes above for the distinct failure kinds.
//
// The whole pipeline runs in one transaction that locks the transaction id's
// record row up front. Concurrent submissions of the same id serialize on the
// lock (or on the unique index, when no row exists yet), so exactly one
// ledger credit can ever commit for one forum transaction.
func (s *ExchangeService) Process(req ExchangeRequest, signature, sourceIP string) (*ExchangeResult, *ExchangeError) {
	if req.ForumUserID == "" || req.ForumTransactionID == "" || req.UserEmail == "" || req.CoinAmount == 0 {
		return nil, &ExchangeError{http.StatusBadRequest, CodeMissingParameters, "missing required parameters"}
	}
	if req.CoinAmount < MinCoinAmount {
		return nil, &ExchangeError{http.StatusBadRequest, CodeCoinAmountTooSmall,
			fmt.Sprintf("coin amount must be at least %d", MinCoinAmount)}
	}
	if req.CoinAmount%CoinStep != 0 {
		return nil, &ExchangeError{http.StatusBadRequest, CodeCoinAmountInvalid,
			fmt.Sprintf("coin amount must be a multiple of %d", CoinStep)}
	}

	var (
		result *ExchangeResult
		exErr  *ExchangeError
		prior  *models.ExchangeRecord
	)
	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		// Replay guard: a completed record for this forum transaction means
		// the coins were already converted. A failed record may be retried
		// (e.g. the partner corrected the email) and reuses the same row,
		// keeping the transaction id globally unique. The FOR UPDATE lock
		// makes a racing retry wait and observe the committed outcome.
		var existing models.ExchangeRecord
		switch err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("forum_transaction_id = ?", req.ForumTransactionID).
			First(&existing).Error; {
		case err == nil:
			if existing.Status == models.ExchangeCompleted {
				exErr = &ExchangeError{http.StatusConflict, CodeAlreadyProcessed, "transaction already processed"}
				return nil
			}
			prior = &existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			// first attempt
		default:
			exErr = &ExchangeError{http.StatusInternalServerError, CodeInternalError, "replay check failed"}
			return nil
		}

		var account models.Account
		if err := tx.Where("email = ?", req.UserEmail).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Persist the failure for auditing: the partner sent an email
				// we do not know, which operators need to see. Committed with
				// this transaction.
				s.saveFailedRecord(tx, prior, req, signature, sourceIP, models.ExchangeFailUserNotFound)
				exErr = &ExchangeError{http.StatusNotFound, CodeUserNotFound, "no account for user email"}
				return nil
			}
			exErr = &ExchangeError{http.StatusInternalServerError, CodeInternalError, "account lookup failed"}
			return nil
		}

		todayStart := dateOnly(time.Now())
		var usedToday int64
		if err := tx.Model(&models.ExchangeRecord{}).
			Where("account_id = ? AND status = ? AND created_at >= ?", account.ID, models.ExchangeCompleted, todayStart).
			Select("COALESCE(SUM(coin_amount),0)").
			Scan(&usedToday).Error; err != nil {
			exErr = &ExchangeError{http.StatusInternalServerError, CodeInternalError, "daily limit check failed"}
			return nil
		}
		if usedToday+req.CoinAmount > DailyCoinLimit {
			exErr = &ExchangeError{http.StatusTooManyRequests, CodeDailyLimitExceeded,
				fmt.Sprintf("daily coin limit of %d exceeded", DailyCoinLimit)}
			return nil
		}

		pointsAmount := int64(math.Floor(float64(req.CoinAmount) * ExchangeRate))
		if pointsAmount <= 0 {
			exErr = &ExchangeError{http.StatusBadRequest, CodePointsAmountInvalid, "computed points amount is not positive"}
			return nil
		}

		record := models.ExchangeRecord{
			ID:                 uuid.NewString(),
			ForumUserID:        req.ForumUserID,
			ForumTransactionID: req.ForumTransactionID,
			UserEmail:          req.UserEmail,
			AccountID:          &account.ID,
			CoinAmount:         req.CoinAmount,
			PointsAmount:       pointsAmount,
			ExchangeRate:       ExchangeRate,
			Status:             models.ExchangePending,
			Signature:          signature,
			RequestTimestamp:   req.Timestamp,
			SourceIP:           sourceIP,
		}
		if prior != nil {
			record.ID = prior.ID
			record.CreatedAt = prior.CreatedAt
		}
		if err := tx.Save(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// A concurrent first submission with the same transaction id
				// won the insert; treat this one as a replay.
				exErr = &ExchangeError{http.StatusConflict, CodeAlreadyProcessed, "transaction already processed"}
			} else {
				exErr = &ExchangeError{http.StatusInternalServerError, CodeInternalError, "failed to persist exchange record"}
			}
			return err
		}

		entry, err := s.ledger.RecordIn(tx, RecordParams{
			AccountID:   account.ID,
			Amount:      pointsAmount,
			Type:        models.TxCoinExchange,
			Description: fmt.Sprintf("Exchanged %d forum coins", req.CoinAmount),
			Metadata: models.Metadata{
				"exchange_record_id": record.ID,
				"coin_amount":        req.CoinAmount,
				"exchange_rate":      ExchangeRate,
			},
		})
		if err != nil {
			exErr = &ExchangeError{http.StatusInternalServerError, CodePointsUpdateFailed, "failed to credit points"}
			return err
		}

		now := time.Now()
		if err := tx.Model(&record).Updates(map[string]interface{}{
			"status":       models.ExchangeCompleted,
			"completed_at": &now,
		}).Error; err != nil {
			exErr = &ExchangeError{http.StatusInternalServerError, CodeInternalError, "failed to complete exchange record"}
			return err
		}

		result = &ExchangeResult{
			RecordID:     record.ID,
			PointsAmount: pointsAmount,
			Balance:      entry.BalanceAfter,
		}
		return nil
	})

	if exErr != nil {
		if exErr.Code == CodePointsUpdateFailed {
			// The credit rolled back with the transaction; record the failure
			// on its own connection so operators still see the attempt.
			s.saveFailedRecord(s.db, prior, req, signature, sourceIP, models.ExchangeFailPointsUpdate)
		}
		return nil, exErr
	}
	if txErr != nil {
		return nil, &ExchangeError{http.StatusInternalServerError, CodeInternalError, "exchange transaction failed"}
	}
	return result, nil
}

// saveFailedRecord upserts the transaction id's record in failed state for
// auditing. The prior-row update is guarded on status so it can never clobber
// a record a concurrent attempt completed. Best-effort: a lost duplicate
// insert race just means the other attempt owns the row.
func (s *ExchangeService) saveFailedRecord(h *gorm.DB, prior *models.ExchangeRecord, req ExchangeRequest, signature, sourceIP, reason string) {
	var err error
	if prior != nil {
		err = h.Model(&models.ExchangeRecord{}).
			Where("id = ? AND status <> ?", prior.ID, models.ExchangeCompleted).
			Updates(map[string]interface{}{
				"user_email":        req.UserEmail,
				"coin_amount":       req.CoinAmount,
				"points_amount":     0,
				"status":            models.ExchangeFailed,
				"failure_reason":    reason,
				"signature":         signature,
				"request_timestamp": req.Timestamp,
				"source_ip":         sourceIP,
			}).Error
	} else {
		err = h.Create(&models.ExchangeRecord{
			ID:                 uuid.NewString(),
			ForumUserID:        req.ForumUserID,
			ForumTransactionID: req.ForumTransactionID,
			UserEmail:          req.UserEmail,
			CoinAmount:         req.CoinAmount,
			ExchangeRate:       ExchangeRate,
			Status:             models.ExchangeFailed,
			FailureReason:      reason,
			Signature:          signature,
			RequestTimestamp:   req.Timestamp,
			SourceIP:           sourceIP,
		}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = nil
		}
	}
	if err != nil && utils.Sugar != nil {
		utils.Sugar.Warnf("failed to persist failed exchange record: %v", err)
	}
}
