package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cosmarket/points/config"
	"github.com/cosmarket/points/models"
	"github.com/cosmarket/points/ratelimit"
	"github.com/cosmarket/points/utils"
)

func testConfig() config.AppConfig {
	return config.AppConfig{
		AppPort:               "8080",
		GinMode:               "test",
		JWTSecret:             "test-jwt-secret",
		ExchangeSecret:        "test-exchange-secret",
		CronSecret:            "test-cron-secret",
		RateLimitPerMinute:    10000,
		AllowedOrigins:        []string{"*"},
		CheckinRewardPoints:   5,
		RegistrationBonus:     20,
		MerchantTopNoticeDays: 3,
	}
}

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	config.SetForTesting(testConfig())

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

	limiter := ratelimit.New(ratelimit.NewMemoryStore())
	return SetupRouter(db, limiter), db
}

func doJSON(r *gin.Engine, method, path string, body interface{}, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearerFor(t *testing.T, account *models.Account) map[string]string {
	t.Helper()
	token, err := utils.GenerateToken(account.ID, account.Username, account.Role, time.Hour)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealth(t *testing.T) {
	r, _ := setupRouter(t)
	w := doJSON(r, "GET", "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	r, _ := setupRouter(t)
	w := doJSON(r, "GET", "/nope", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestProtectedRoutesRequireJWT(t *testing.T) {
	r, db := setupRouter(t)

	w := doJSON(r, "GET", "/api/v1/points/balance", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, "GET", "/api/v1/points/balance", nil,
		map[string]string{"Authorization": "Bearer not-a-token"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	acc := models.Account{Email: "user@example.com", Username: "user", Role: models.RoleUser, Points: 42}
	require.NoError(t, db.Create(&acc).Error)

	w = doJSON(r, "GET", "/api/v1/points/balance", nil, bearerFor(t, &acc))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "42")
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	r, db := setupRouter(t)

	user := models.Account{Email: "user@example.com", Username: "user", Role: models.RoleUser}
	admin := models.Account{Email: "admin@example.com", Username: "admin", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&admin).Error)

	body := map[string]string{"name": "vip"}

	w := doJSON(r, "POST", "/api/v1/admin/groups", body, bearerFor(t, &user))
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, "POST", "/api/v1/admin/groups", body, bearerFor(t, &admin))
	require.Equal(t, http.StatusOK, w.Code)

	// The creation is audit-logged.
	var logs int64
	require.NoError(t, db.Model(&models.AdminLog{}).Where("action = ?", "group.create").Count(&logs).Error)
	require.Equal(t, int64(1), logs)
}

func TestRewardRuleEditRecomputesNextDueDate(t *testing.T) {
	r, db := setupRouter(t)

	admin := models.Account{Email: "admin@example.com", Username: "admin", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&admin).Error)
	group := models.UserGroup{Name: "weekly"}
	require.NoError(t, db.Create(&group).Error)

	groupPath := fmt.Sprintf("/api/v1/admin/groups/%d/reward-rule", group.ID)
	headers := bearerFor(t, &admin)

	// A weekly rule targeting Wednesday.
	w := doJSON(r, "PUT", groupPath, map[string]interface{}{
		"coin_amount":   10,
		"cadence_kind":  models.CadenceWeekly,
		"cadence_param": int(time.Wednesday),
		"active":        true,
	}, headers)
	require.Equal(t, http.StatusOK, w.Code)

	var rule models.RewardRule
	require.NoError(t, db.Where("group_id = ?", group.ID).First(&rule).Error)
	require.Equal(t, time.Wednesday, dueWeekday(t, rule.NextDueDate))

	// Edited to Friday: the next due date is the upcoming Friday, strictly in
	// the future, never a passed Wednesday.
	w = doJSON(r, "PUT", groupPath, map[string]interface{}{
		"coin_amount":   10,
		"cadence_kind":  models.CadenceWeekly,
		"cadence_param": int(time.Friday),
		"active":        true,
	}, headers)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, db.Where("group_id = ?", group.ID).First(&rule).Error)
	require.Equal(t, time.Friday, dueWeekday(t, rule.NextDueDate))

	// ISO dates compare lexicographically.
	require.Greater(t, rule.NextDueDate, time.Now().Format("2006-01-02"))

	// No members were retroactively credited by the edit.
	var entries int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Count(&entries).Error)
	require.Zero(t, entries)
}

func dueWeekday(t *testing.T, due string) time.Weekday {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", due)
	require.NoError(t, err)
	return parsed.Weekday()
}

func TestExchangeEndpointVerifiesSignature(t *testing.T) {
	r, db := setupRouter(t)

	acc := models.Account{Email: "forum-user@example.com", Username: "forum-user"}
	require.NoError(t, db.Create(&acc).Error)

	payload := map[string]interface{}{
		"forum_user_id":        "f-1",
		"forum_transaction_id": "tx-sig-1",
		"user_email":           acc.Email,
		"coin_amount":          100,
		"timestamp":            1767000000,
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	send := func(sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/exchange", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if sig != "" {
			req.Header.Set("X-Signature", sig)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	// Missing and wrong signatures are rejected with the partner envelope.
	for _, sig := range []string{"", "deadbeef"} {
		w := send(sig)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, false, resp["success"])
		require.Equal(t, "SIGNATURE_VERIFICATION_FAILED", resp["error"])
	}

	// A valid signature converts 100 coins into 10 points.
	w := send(utils.SignPayload(body, "test-exchange-secret"))
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			PointsAmount int64 `json:"points_amount"`
			Balance      int64 `json:"balance"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, int64(10), resp.Data.PointsAmount)
	require.Equal(t, int64(10), resp.Data.Balance)
}

func TestExchangeEndpointRejectsNonPOST(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(r, "GET", "/exchange", nil, nil)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	require.Contains(t, w.Body.String(), "METHOD_NOT_ALLOWED")
}

func TestCronEndpointsRequireBearerSecret(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(r, "POST", "/cron/process-group-rewards", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, "POST", "/cron/process-group-rewards", nil,
		map[string]string{"Authorization": "Bearer wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, "POST", "/cron/process-group-rewards", nil,
		map[string]string{"Authorization": "Bearer test-cron-secret"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, true, resp["success"])
	require.Contains(t, resp, "processedCount")
	require.Contains(t, resp, "failedCount")
}

func TestCronEndpointsFailWithoutConfiguredSecret(t *testing.T) {
	r, _ := setupRouter(t)

	cfg := testConfig()
	cfg.CronSecret = ""
	config.SetForTesting(cfg)

	w := doJSON(r, "POST", "/cron/expiry-check", nil,
		map[string]string{"Authorization": "Bearer anything"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
}
