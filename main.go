package main

import (
	"strings"
	"time"

	"github.com/cosmarket/points/config"
	"github.com/cosmarket/points/models"
	"github.com/cosmarket/points/ratelimit"
	"github.com/cosmarket/points/routes"
	"github.com/cosmarket/points/utils"
)

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.Account{},
		&models.LedgerEntry{},
		&models.UserGroup{},
		&models.GroupMembership{},
		&models.RewardRule{},
		&models.DistributionLog{},
		&models.ExchangeRecord{},
		&models.AdminLog{},
		&models.CheckIn{},
		&models.InviteCode{},
		&models.InviteRedemption{},
		&models.MerchantTop{},
	)

	// Action windows live in memory per process unless Redis is configured;
	// run multiple replicas with the redis backend.
	var limiter *ratelimit.Limiter
	if strings.EqualFold(cfg.RateLimitBackend, "redis") {
		limiter = ratelimit.New(ratelimit.NewRedisStore(utils.GetRedis()))
	} else {
		store := ratelimit.NewMemoryStore()
		store.StartSweep(time.Minute)
		limiter = ratelimit.New(store)
	}

	r := routes.SetupRouter(db, limiter)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
