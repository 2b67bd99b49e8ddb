package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cosmarket/points/config"
	"github.com/cosmarket/points/middleware"
	"github.com/cosmarket/points/models"
	"github.com/cosmarket/points/ratelimit"
	"github.com/cosmarket/points/services"
	"github.com/cosmarket/points/utils"
)

// AdminController exposes the privileged management surface: role changes,
// manual balance adjustments, exchange record inspection and the audit log.
type AdminController struct {
	db       *gorm.DB
	ledger   *services.LedgerService
	invites  *services.InviteService
	adminLog *services.AdminLogService
	limiter  *ratelimit.Limiter
}

// NewAdminController creates a new controller instance.
func NewAdminController(db *gorm.DB, ledger *services.LedgerService, invites *services.InviteService, adminLog *services.AdminLogService, limiter *ratelimit.Limiter) *AdminController {
	return &AdminController{db: db, ledger: ledger, invites: invites, adminLog: adminLog, limiter: limiter}
}

// CreateAccount provisions an account from the identity system and grants the
// one-time registration bonus through the ledger.
func (a *AdminController) CreateAccount(ctx *gin.Context) {
	adminID, _ := middleware.AccountID(ctx)

	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Username string `json:"username" binding:"required"`
		Role     string `json:"role"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40067, "valid email and username are required")
		return
	}
	if req.Role != "" && req.Role != models.RoleUser && req.Role != models.RoleAdmin {
		utils.Error(ctx, http.StatusBadRequest, 40061, "role must be user or admin")
		return
	}

	account := models.Account{
		Email:    req.Email,
		Username: utils.Sanitize(req.Username),
		Role:     req.Role,
	}
	if err := a.db.Create(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.Error(ctx, http.StatusConflict, 40960, "email already registered")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50077, "failed to create account")
		return
	}

	if err := a.invites.GrantRegistrationBonus(account.ID, config.Get().RegistrationBonus); err != nil && utils.Sugar != nil {
		// The account exists; a missed bonus is fixable with a manual
		// adjustment, so it does not fail the provisioning.
		utils.Sugar.Errorw("registration bonus grant failed",
			"account_id", account.ID, "error", err)
	}

	a.adminLog.Log(services.LogParams{
		AdminID:    adminID,
		Action:     "account.create",
		TargetType: "account",
		TargetID:   strconv.FormatUint(uint64(account.ID), 10),
		NewData:    account,
		IP:         ctx.ClientIP(),
		UserAgent:  ctx.Request.UserAgent(),
	})

	utils.Success(ctx, account)
}

// SetRole promotes or demotes an account. Admins cannot change their own role,
// so there is always at least one admin left standing.
func (a *AdminController) SetRole(ctx *gin.Context) {
	adminID, _ := middleware.AccountID(ctx)
	targetID, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}

	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "role is required")
		return
	}
	if req.Role != models.RoleUser && req.Role != models.RoleAdmin {
		utils.Error(ctx, http.StatusBadRequest, 40061, "role must be user or admin")
		return
	}
	if targetID == adminID {
		utils.Error(ctx, http.StatusBadRequest, 40062, "cannot change own role")
		return
	}

	var account models.Account
	if err := a.db.First(&account, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40460, "account not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, 50070, "db error")
		}
		return
	}

	oldRole := account.Role
	account.Role = req.Role
	if err := a.db.Save(&account).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50071, "failed to update role")
		return
	}

	a.adminLog.Log(services.LogParams{
		AdminID:    adminID,
		Action:     "account.set_role",
		TargetType: "account",
		TargetID:   strconv.FormatUint(uint64(targetID), 10),
		OldData:    gin.H{"role": oldRole},
		NewData:    gin.H{"role": account.Role},
		IP:         ctx.ClientIP(),
		UserAgent:  ctx.Request.UserAgent(),
	})

	utils.Success(ctx, gin.H{"id": account.ID, "role": account.Role})
}

// AdjustPoints credits or debits an account manually. The amount goes through
// the ledger like any other transaction; a debit past zero is rejected there.
func (a *AdminController) AdjustPoints(ctx *gin.Context) {
	adminID, _ := middleware.AccountID(ctx)
	targetID, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}

	var req struct {
		Amount int64  `json:"amount" binding:"required"`
		Reason string `json:"reason" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40063, "amount and reason are required")
		return
	}

	entry, err := a.ledger.Record(services.RecordParams{
		AccountID:        targetID,
		Amount:           req.Amount,
		Type:             models.TxSystemAdjustment,
		Description:      utils.Sanitize(req.Reason),
		RelatedAccountID: &adminID,
		Metadata:         models.Metadata{"reason": req.Reason, "admin_id": adminID},
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountNotFound):
			utils.Error(ctx, http.StatusNotFound, 40460, "account not found")
		case errors.Is(err, services.ErrInsufficientBalance):
			utils.Error(ctx, http.StatusBadRequest, 40064, "adjustment would make balance negative")
		case errors.Is(err, services.ErrZeroAmount):
			utils.Error(ctx, http.StatusBadRequest, 40065, "amount must be non-zero")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50072, "failed to adjust points")
		}
		return
	}

	a.adminLog.Log(services.LogParams{
		AdminID:     adminID,
		Action:      "account.adjust_points",
		TargetType:  "account",
		TargetID:    strconv.FormatUint(uint64(targetID), 10),
		NewData:     gin.H{"amount": req.Amount, "balance_after": entry.BalanceAfter},
		Description: req.Reason,
		IP:          ctx.ClientIP(),
		UserAgent:   ctx.Request.UserAgent(),
	})

	utils.Success(ctx, entry)
}

// ListExchangeRecords returns exchange attempts newest-first, optionally
// filtered by status or forum user.
func (a *AdminController) ListExchangeRecords(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	q := a.db.Model(&models.ExchangeRecord{})
	if status := ctx.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if forumUser := ctx.Query("forum_user_id"); forumUser != "" {
		q = q.Where("forum_user_id = ?", forumUser)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50073, "failed to count exchange records")
		return
	}

	var records []models.ExchangeRecord
	if err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50074, "failed to list exchange records")
		return
	}

	utils.Success(ctx, gin.H{"items": records, "total": total, "page": page})
}

// ListAuditLogs returns the admin audit trail newest-first.
func (a *AdminController) ListAuditLogs(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "20"))

	logs, total, err := a.adminLog.List(page, pageSize)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50075, "failed to list audit logs")
		return
	}

	utils.Success(ctx, gin.H{"items": logs, "total": total, "page": page})
}

// ResetRateLimit clears one action window for one identifier so support can
// unblock a user without waiting out the window.
func (a *AdminController) ResetRateLimit(ctx *gin.Context) {
	adminID, _ := middleware.AccountID(ctx)

	var req struct {
		Action     string `json:"action" binding:"required"`
		Identifier string `json:"identifier" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40066, "action and identifier are required")
		return
	}

	if err := a.limiter.Reset(req.Action, req.Identifier); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50076, "failed to reset rate limit")
		return
	}

	a.adminLog.Log(services.LogParams{
		AdminID:    adminID,
		Action:     "ratelimit.reset",
		TargetType: "ratelimit",
		TargetID:   req.Action + ":" + req.Identifier,
		IP:         ctx.ClientIP(),
		UserAgent:  ctx.Request.UserAgent(),
	})

	utils.Success(ctx, gin.H{"reset": true})
}
