package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cosmarket/points/middleware"
	"github.com/cosmarket/points/models"
	"github.com/cosmarket/points/services"
	"github.com/cosmarket/points/utils"
)

// LedgerController exposes an account's own balance and transaction history.
type LedgerController struct {
	ledger *services.LedgerService
}

// NewLedgerController creates a new controller instance.
func NewLedgerController(ledger *services.LedgerService) *LedgerController {
	return &LedgerController{ledger: ledger}
}

// GetBalance returns the caller's current point balance.
func (l *LedgerController) GetBalance(ctx *gin.Context) {
	accountID, ok := middleware.AccountID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	balance, err := l.ledger.GetBalance(accountID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "account not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to load balance")
		return
	}

	utils.Success(ctx, gin.H{"balance": balance})
}

// ListTransactions returns the caller's ledger entries, filtered and paged.
// Query params: type, direction (income|expense), from, to (2006-01-02),
// page, page_size.
func (l *LedgerController) ListTransactions(ctx *gin.Context) {
	accountID, ok := middleware.AccountID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	filter := services.TxFilter{Direction: ctx.Query("direction")}
	if t := ctx.Query("type"); t != "" {
		txType := models.TxType(t)
		if !txType.Valid() {
			utils.Error(ctx, http.StatusBadRequest, 40010, "unknown transaction type")
			return
		}
		filter.Type = txType
	}
	if v := ctx.Query("from"); v != "" {
		from, err := time.Parse("2006-01-02", v)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40011, "invalid from date")
			return
		}
		filter.From = &from
	}
	if v := ctx.Query("to"); v != "" {
		to, err := time.Parse("2006-01-02", v)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40012, "invalid to date")
			return
		}
		// inclusive end date
		to = to.AddDate(0, 0, 1)
		filter.To = &to
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "20"))

	entries, total, err := l.ledger.List(accountID, filter, page, pageSize)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to list transactions")
		return
	}

	utils.Success(ctx, gin.H{
		"items": entries,
		"total": total,
		"page":  page,
	})
}

// GetStatistics returns the caller's balance plus lifetime credit/debit sums.
func (l *LedgerController) GetStatistics(ctx *gin.Context) {
	accountID, ok := middleware.AccountID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	stats, err := l.ledger.GetStatistics(accountID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "account not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to load statistics")
		return
	}

	utils.Success(ctx, stats)
}
