package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cosmarket/points/middleware"
	"github.com/cosmarket/points/models"
	"github.com/cosmarket/points/services"
	"github.com/cosmarket/points/utils"
)

// MerchantTopController manages paid top placements. Creating one debits the
// paying account through the ledger in the same transaction that creates the
// placement, so a failed debit never leaves an unpaid placement behind.
type MerchantTopController struct {
	db       *gorm.DB
	ledger   *services.LedgerService
	adminLog *services.AdminLogService
}

// NewMerchantTopController creates a new controller instance.
func NewMerchantTopController(db *gorm.DB, ledger *services.LedgerService, adminLog *services.AdminLogService) *MerchantTopController {
	return &MerchantTopController{db: db, ledger: ledger, adminLog: adminLog}
}

// Create handles POST /api/v1/admin/merchant-tops.
func (m *MerchantTopController) Create(ctx *gin.Context) {
	adminID, _ := middleware.AccountID(ctx)

	var req struct {
		MerchantID uint  `json:"merchant_id" binding:"required"`
		AccountID  uint  `json:"account_id" binding:"required"`
		Cost       int64 `json:"cost" binding:"required"`
		Days       int   `json:"days" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, "merchant_id, account_id, cost and days are required")
		return
	}
	if req.Cost <= 0 || req.Days <= 0 {
		utils.Error(ctx, http.StatusBadRequest, 40071, "cost and days must be positive")
		return
	}

	top := models.MerchantTop{
		MerchantID: req.MerchantID,
		AccountID:  req.AccountID,
		Cost:       req.Cost,
		ExpiresAt:  time.Now().AddDate(0, 0, req.Days),
	}
	err := m.db.Transaction(func(tx *gorm.DB) error {
		_, err := m.ledger.RecordIn(tx, services.RecordParams{
			AccountID:         req.AccountID,
			Amount:            -req.Cost,
			Type:              models.TxMerchantTop,
			Description:       "Merchant top placement",
			RelatedMerchantID: &req.MerchantID,
			Metadata:          models.Metadata{"days": req.Days},
		})
		if err != nil {
			return err
		}
		return tx.Create(&top).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountNotFound):
			utils.Error(ctx, http.StatusNotFound, 40460, "account not found")
		case errors.Is(err, services.ErrInsufficientBalance):
			utils.Error(ctx, http.StatusBadRequest, 40072, "insufficient balance for placement")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50080, "failed to create placement")
		}
		return
	}

	m.adminLog.Log(services.LogParams{
		AdminID:    adminID,
		Action:     "merchant_top.create",
		TargetType: "merchant_top",
		TargetID:   strconv.FormatUint(uint64(top.ID), 10),
		NewData:    top,
		IP:         ctx.ClientIP(),
		UserAgent:  ctx.Request.UserAgent(),
	})

	utils.Success(ctx, top)
}

// List handles GET /api/v1/admin/merchant-tops. active=true narrows to
// placements that have not expired yet.
func (m *MerchantTopController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	q := m.db.Model(&models.MerchantTop{})
	if ctx.Query("active") == "true" {
		q = q.Where("expires_at > ?", time.Now())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50081, "failed to count placements")
		return
	}

	var tops []models.MerchantTop
	if err := q.Order("expires_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&tops).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50082, "failed to list placements")
		return
	}

	utils.Success(ctx, gin.H{"items": tops, "total": total, "page": page})
}
