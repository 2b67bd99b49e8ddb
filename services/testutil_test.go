package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cosmarket/points/models"
)

// newTestDB opens a per-test in-memory database so tests never interfere.
// TranslateError is on, matching production, so duplicate-key handling
// behaves the same here as against Postgres.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
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
	))
	return db
}

func newTestAccount(t *testing.T, db *gorm.DB, email string, points int64) *models.Account {
	t.Helper()
	acc := models.Account{Email: email, Username: email, Points: points}
	require.NoError(t, db.Create(&acc).Error)
	return &acc
}
