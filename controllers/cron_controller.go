package controllers

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cosmarket/points/config"
	"github.com/cosmarket/points/services"
	"github.com/cosmarket/points/utils"
)

// CronController exposes the scheduler-triggered jobs. The endpoints are
// authenticated by a shared bearer secret, not user JWTs, because the caller
// is an external scheduler rather than a person.
type CronController struct {
	distributor *services.Distributor
	expiry      *services.ExpiryService
}

// NewCronController creates a new controller instance.
func NewCronController(distributor *services.Distributor, expiry *services.ExpiryService) *CronController {
	return &CronController{distributor: distributor, expiry: expiry}
}

// authorize validates the Bearer secret. A server with no secret configured
// refuses all cron traffic rather than running jobs unauthenticated.
func (c *CronController) authorize(ctx *gin.Context) bool {
	secret := config.Get().CronSecret
	if secret == "" {
		if utils.Sugar != nil {
			utils.Sugar.Error("cron endpoint called but CRON_SECRET is not configured")
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "cron secret not configured"})
		return false
	}

	auth := ctx.GetHeader("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		ctx.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
		return false
	}
	return true
}

// ProcessGroupRewards handles POST /cron/process-group-rewards.
func (c *CronController) ProcessGroupRewards(ctx *gin.Context) {
	if !c.authorize(ctx) {
		return
	}

	report, err := c.distributor.RunDue(time.Now())
	if err != nil {
		if utils.Sugar != nil {
			utils.Sugar.Errorw("group reward run failed", "error", err)
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "distribution run failed"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "group rewards processed",
		"processedCount": report.Processed,
		"failedCount":    report.Failed,
		"skippedCount":   report.Skipped,
		"rulesRun":       report.RulesRun,
	})
}

// ExpiryCheck handles POST /cron/expiry-check.
func (c *CronController) ExpiryCheck(ctx *gin.Context) {
	if !c.authorize(ctx) {
		return
	}

	report, err := c.expiry.Run(time.Now())
	if err != nil {
		if utils.Sugar != nil {
			utils.Sugar.Errorw("expiry check failed", "error", err)
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "expiry check failed"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "expiry check completed",
		"processedCount": report.Notified,
		"failedCount":    report.Failed,
		"stalePending":   report.StalePending,
	})
}
