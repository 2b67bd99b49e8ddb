package services

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cosmarket/points/models"
)

var (
	// ErrAccountNotFound is returned when the target account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInsufficientBalance is returned when a debit would drive the balance
	// below zero. The ledger never allows negative balances.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrZeroAmount is returned for a zero-amount transaction.
	ErrZeroAmount = errors.New("transaction amount must be non-zero")
	// ErrInvalidTxType is returned for a type outside the closed enum.
	ErrInvalidTxType = errors.New("invalid transaction type")
)

// LedgerService owns all balance mutations. Every change to Account.Points
// happens here, paired with a LedgerEntry in the same transaction.
type LedgerService struct {
	db *gorm.DB
}

// NewLedgerService creates a ledger service on the given DB handle.
func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// RecordParams describes one ledger transaction.
type RecordParams struct {
	AccountID         uint
	Amount            int64 // positive = credit, negative = debit
	Type              models.TxType
	Description       string
	RelatedAccountID  *uint
	RelatedMerchantID *uint
	Metadata          models.Metadata
}

// Record applies one transaction atomically: lock the account row, append the
// ledger entry with its balance-after snapshot, update the cached balance.
func (s *LedgerService) Record(p RecordParams) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.RecordIn(tx, p)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordIn applies one transaction inside an existing transaction handle.
// Callers that pair a ledger write with their own rows (distributor, exchange
// bridge) use this so both commit or neither does.
func (s *LedgerService) RecordIn(tx *gorm.DB, p RecordParams) (*models.LedgerEntry, error) {
	if p.Amount == 0 {
		return nil, ErrZeroAmount
	}
	if !p.Type.Valid() {
		return nil, ErrInvalidTxType
	}

	var account models.Account
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&account, p.AccountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	newBalance := account.Points + p.Amount
	if newBalance < 0 {
		return nil, ErrInsufficientBalance
	}

	entry := models.LedgerEntry{
		AccountID:         p.AccountID,
		Amount:            p.Amount,
		Type:              p.Type,
		Description:       p.Description,
		RelatedAccountID:  p.RelatedAccountID,
		RelatedMerchantID: p.RelatedMerchantID,
		Metadata:          p.Metadata,
		BalanceAfter:      newBalance,
		CreatedAt:         time.Now(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}

	account.Points = newBalance
	if err := tx.Save(&account).Error; err != nil {
		return nil, err
	}

	return &entry, nil
}

// GetBalance returns the account's cached balance.
func (s *LedgerService) GetBalance(accountID uint) (int64, error) {
	var account models.Account
	if err := s.db.First(&account, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return account.Points, nil
}

// TxFilter narrows a transaction listing.
type TxFilter struct {
	Type      models.TxType
	Direction string // "income" (amount > 0) or "expense" (amount < 0)
	From      *time.Time
	To        *time.Time
}

// List returns the account's ledger entries newest-first with total count.
func (s *LedgerService) List(accountID uint, f TxFilter, page, pageSize int) ([]models.LedgerEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	q := s.db.Model(&models.LedgerEntry{}).Where("account_id = ?", accountID)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	switch f.Direction {
	case "income":
		q = q.Where("amount > 0")
	case "expense":
		q = q.Where("amount < 0")
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.LedgerEntry
	if err := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Statistics summarizes an account's ledger.
type Statistics struct {
	Balance      int64 `json:"balance"`
	TotalCredits int64 `json:"total_credits"`
	TotalDebits  int64 `json:"total_debits"` // absolute value
}

// GetStatistics aggregates over the ledger itself rather than maintained
// counters, so the numbers cannot drift from the entries.
func (s *LedgerService) GetStatistics(accountID uint) (*Statistics, error) {
	balance, err := s.GetBalance(accountID)
	if err != nil {
		return nil, err
	}

	var row struct {
		Credits int64
		Debits  int64
	}
	err = s.db.Model(&models.LedgerEntry{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END),0) AS credits, " +
			"COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END),0) AS debits").
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &Statistics{
		Balance:      balance,
		TotalCredits: row.Credits,
		TotalDebits:  row.Debits,
	}, nil
}
