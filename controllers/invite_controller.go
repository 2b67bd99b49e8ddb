package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cosmarket/points/middleware"
	"github.com/cosmarket/points/services"
	"github.com/cosmarket/points/utils"
)

// InviteController handles invite code redemption and admin code management.
type InviteController struct {
	invites  *services.InviteService
	adminLog *services.AdminLogService
}

// NewInviteController creates a new controller instance.
func NewInviteController(invites *services.InviteService, adminLog *services.AdminLogService) *InviteController {
	return &InviteController{invites: invites, adminLog: adminLog}
}

// Redeem applies an invite code for the authenticated account.
func (i *InviteController) Redeem(ctx *gin.Context) {
	accountID, ok := middleware.AccountID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invite code is required")
		return
	}

	result, err := i.invites.Redeem(req.Code, accountID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInviteCodeNotFound):
			utils.Error(ctx, http.StatusNotFound, 40440, "invite code not found")
		case errors.Is(err, services.ErrInviteCodeExhausted):
			utils.Error(ctx, http.StatusBadRequest, 40041, "invite code exhausted or expired")
		case errors.Is(err, services.ErrAlreadyRedeemed):
			utils.Error(ctx, http.StatusConflict, 40940, "account already redeemed an invite code")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to redeem invite code")
		}
		return
	}

	utils.Success(ctx, result)
}

// CreateCode issues a new invite code (admin only).
func (i *InviteController) CreateCode(ctx *gin.Context) {
	adminID, _ := middleware.AccountID(ctx)

	var req struct {
		MaxUses       int    `json:"max_uses"`
		InviterReward int64  `json:"inviter_reward"`
		InviteeReward int64  `json:"invitee_reward"`
		ExpiresAt     string `json:"expires_at"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid request body")
		return
	}
	if req.InviterReward < 0 || req.InviteeReward < 0 {
		utils.Error(ctx, http.StatusBadRequest, 40043, "rewards must not be negative")
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse("2006-01-02", req.ExpiresAt)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40044, "invalid expires_at date")
			return
		}
		expiresAt = &t
	}

	code, err := i.invites.CreateCode(adminID, req.MaxUses, req.InviterReward, req.InviteeReward, expiresAt)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to create invite code")
		return
	}

	i.adminLog.Log(services.LogParams{
		AdminID:    adminID,
		Action:     "invite_code.create",
		TargetType: "invite_code",
		TargetID:   strconv.FormatUint(uint64(code.ID), 10),
		NewData:    code,
		IP:         ctx.ClientIP(),
		UserAgent:  ctx.Request.UserAgent(),
	})

	utils.Success(ctx, code)
}

// ListCodes returns invite codes newest-first (admin only).
func (i *InviteController) ListCodes(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "20"))

	codes, total, err := i.invites.ListCodes(page, pageSize)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to list invite codes")
		return
	}

	utils.Success(ctx, gin.H{"items": codes, "total": total, "page": page})
}
