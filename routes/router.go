package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cosmarket/points/config"
	"github.com/cosmarket/points/controllers"
	"github.com/cosmarket/points/middleware"
	"github.com/cosmarket/points/ratelimit"
	"github.com/cosmarket/points/services"
	"github.com/cosmarket/points/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, limiter *ratelimit.Limiter) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if utils.Logger != nil {
		r.Use(utils.Ginzap(utils.Logger))
		r.Use(utils.RecoveryWithZap(utils.Logger))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Signature"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	ledgerSvc := services.NewLedgerService(db)
	adminLogSvc := services.NewAdminLogService(db)
	distributor := services.NewDistributor(db, ledgerSvc, nil)
	exchangeSvc := services.NewExchangeService(db, ledgerSvc)
	expirySvc := services.NewExpiryService(db, nil, cfg.MerchantTopNoticeDays)
	checkinSvc := services.NewCheckinService(db, ledgerSvc, cfg.CheckinRewardPoints)
	inviteSvc := services.NewInviteService(db, ledgerSvc)

	ledgerController := controllers.NewLedgerController(ledgerSvc)
	checkinController := controllers.NewCheckinController(checkinSvc)
	inviteController := controllers.NewInviteController(inviteSvc, adminLogSvc)
	groupController := controllers.NewGroupController(db, distributor, adminLogSvc)
	adminController := controllers.NewAdminController(db, ledgerSvc, inviteSvc, adminLogSvc, limiter)
	merchantTopController := controllers.NewMerchantTopController(db, ledgerSvc, adminLogSvc)
	exchangeController := controllers.NewExchangeController(exchangeSvc)
	cronController := controllers.NewCronController(distributor, expirySvc)

	// Server-to-server surfaces. /exchange answers 405 itself on non-POST so
	// the partner gets its own envelope instead of Gin's default.
	r.Any("/exchange", exchangeController.Process)
	r.POST("/cron/process-group-rewards", cronController.ProcessGroupRewards)
	r.GET("/cron/process-group-rewards", cronController.ProcessGroupRewards)
	r.POST("/cron/expiry-check", cronController.ExpiryCheck)
	r.GET("/cron/expiry-check", cronController.ExpiryCheck)

	api := r.Group("/api/v1")
	api.Use(middleware.IPRateLimit())

	protected := api.Group("")
	protected.Use(middleware.AuthRequired())
	protected.GET("/points/balance", ledgerController.GetBalance)
	protected.GET("/points/transactions", ledgerController.ListTransactions)
	protected.GET("/points/statistics", ledgerController.GetStatistics)
	protected.POST("/checkin/daily",
		middleware.ActionLimit(limiter, "checkin", time.Minute, 10),
		checkinController.DailyCheckin)
	protected.GET("/checkin/status", checkinController.CheckinStatus)
	protected.POST("/invites/redeem",
		middleware.ActionLimit(limiter, "invite_redeem", time.Minute, 5),
		inviteController.Redeem)

	admin := protected.Group("/admin")
	admin.Use(middleware.AdminRequired())
	admin.POST("/groups", groupController.CreateGroup)
	admin.GET("/groups", groupController.ListGroups)
	admin.PUT("/groups/:id", groupController.UpdateGroup)
	admin.DELETE("/groups/:id", groupController.DeleteGroup)
	admin.GET("/groups/:id/members", groupController.ListMembers)
	admin.POST("/groups/:id/members", groupController.AddMember)
	admin.POST("/groups/:id/members/batch", groupController.AddMembersBatch)
	admin.DELETE("/groups/:id/members/:accountId", groupController.RemoveMember)
	admin.GET("/groups/:id/reward-rule", groupController.GetRewardRule)
	admin.PUT("/groups/:id/reward-rule", groupController.SetRewardRule)
	admin.POST("/groups/:id/reward-rule/toggle", groupController.ToggleRewardRule)
	admin.POST("/groups/:id/pay-now", groupController.PayNow)
	admin.GET("/groups/:id/distributions", groupController.ListDistributions)

	admin.POST("/accounts", adminController.CreateAccount)
	admin.PUT("/accounts/:id/role", adminController.SetRole)
	admin.POST("/accounts/:id/points", adminController.AdjustPoints)
	admin.GET("/exchange-records", adminController.ListExchangeRecords)
	admin.GET("/audit-logs", adminController.ListAuditLogs)
	admin.POST("/ratelimit/reset", adminController.ResetRateLimit)

	admin.POST("/invites", inviteController.CreateCode)
	admin.GET("/invites", inviteController.ListCodes)
	admin.POST("/merchant-tops", merchantTopController.Create)
	admin.GET("/merchant-tops", merchantTopController.List)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
