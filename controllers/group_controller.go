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

// GroupController manages user groups, memberships and reward rules.
type GroupController struct {
	db          *gorm.DB
	distributor *services.Distributor
	adminLog    *services.AdminLogService
}

// NewGroupController creates a new controller instance.
func NewGroupController(db *gorm.DB, distributor *services.Distributor, adminLog *services.AdminLogService) *GroupController {
	return &GroupController{db: db, distributor: distributor, adminLog: adminLog}
}

func parseUintParam(ctx *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}

func (g *GroupController) loadGroup(ctx *gin.Context, id uint) (*models.UserGroup, bool) {
	var group models.UserGroup
	if err := g.db.First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40450, "group not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, 50050, "db error")
		}
		return nil, false
	}
	return &group, true
}

// CreateGroup creates a user group.
func (g *GroupController) CreateGroup(ctx *gin.Context) {
	adminID, _ := middleware.AccountID(ctx)

	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40051, "group name is required")
		return
	}

	group := models.UserGroup{
		Name:        utils.Sanitize(req.Name),
		Description: utils.Sanitize(req.Description),
	}
	if err := g.db.Create(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.Error(ctx, http.StatusConflict, 40950, "group name already exists")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to create group")
		return
	}

	g.adminLog.Log(services.LogParams{
		AdminID:    adminID,
		Action:     "group.create",
		TargetType: "group",
		TargetID:   strconv.FormatUint(uint64(group.ID), 10),
		NewData:    group,
		IP:         ctx.ClientIP(),
		UserAgent:  ctx.Request.UserAgent(),
	})

	utils.Success(ctx, group)
}

// ListGroups returns all groups with member counts.
func (g *GroupController) ListGroups(ctx *gin.Context) {
	var groups []models.UserGroup
	if err := g.db.Order("id").Find(&groups).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to list groups")
		return
	}

	type groupInfo struct {
		models.UserGroup
		MemberCount int64 `json:"member_count"`
	}
	out := make([]groupInfo, 0, len(groups))
	for _, grp := range groups {
		var count int64
		g.db.Model(&models.GroupMembership{}).Where("group_id = ?", grp.ID).Count(&count)
		out = append(out, groupInfo{UserGroup: grp, MemberCount: count})
	}

	utils.Success(ctx, out)
}

// UpdateGroup edits a group's name/description.
func (g *GroupController) UpdateGroup(ctx *gin.Context) {
	adminID, _ := middleware.AccountID(ctx)
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	group, ok := g.loadGroup(ctx, id)
	if !ok {
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40052, "invalid request body")
		return
	}

	old := *group
	if req.Name != nil {
		group.Name = utils.Sanitize(*req.Name)
	}
	if req.Description != nil {
		group.Description = utils.Sanitize(*req.Description)
	}
	if err := g.db.Save(group).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50053, "failed to update group")
		return
	}

	g.adminLog.Log(services.LogParams{
		AdminID:    adminID,
		Action:     "group.update",
		TargetType: "group",
		TargetID:   strconv.FormatUint(uint64(group.ID), 10),
		OldData:    old,
		NewData:    group,
		IP:         ctx.ClientIP(),
		UserAgent:  ctx.Request.UserAgent(),
	})

	utils.Success(ctx, group)
}

// DeleteGroup removes a group, its memberships and its rule. Historical
// distribution logs are kept.
func (g *GroupController) DeleteGroup(ctx *gin.Context) {
	adminID, _ := middleware.AccountID(ctx)
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	group, ok := g.loadGroup(ctx, id)
	if !ok {
		return
	}

	err := g.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&models.GroupMembership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.RewardRule{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.UserGroup{}, id).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50054, "failed to delete group")
		return
	}

	g.adminLog.Log(services.LogParams{
		AdminID:    adminID,
		Action:     "group.delete",
		TargetType: "group",
		TargetID:   strconv.FormatUint(uint64(id), 10),
		OldData:    group,
		IP:         ctx.ClientIP(),
		UserAgent:  ctx.Request.UserAgent(),
	})

	utils.Success(ctx, gin.H{"deleted": true})
}

// ListMembers returns a group's memberships.
func (g *GroupController) ListMembers(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	if _, ok := g.loadGroup(ctx, id); !ok {
		return
	}

	var members []models.GroupMembership
	if err := g.db.Where("group_id = ?", id).Order("id").Find(&members).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50055, "failed to list members")
		return
	}

	utils.Success(ctx, members)
}

// AddMember adds one account to a group.
func (g *GroupController) AddMember(ctx *gin.Context) {
	adminID, _ := middleware.AccountID(ctx)
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	if _, ok := g.loadGroup(ctx, id); !ok {
		return
	}

	var req struct {
		AccountID uint `json:"account_id" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40053, "account_id is required")
		return
	}

	added, err := g.addMembers(id, adminID, []uint{req.AccountID})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50056, "failed to add member")
		return
	}
	if added == 0 {
		utils.Error(ctx, http.StatusConflict, 40951, "account is already a member or does not exist")
		return
	}

	g.adminLog.Log(services.LogParams{
		AdminID:    adminID,
		Action:     "group.member.add",
		TargetType: "group",
		TargetID:   strconv.FormatUint(uint64(id), 10),
		NewData:    gin.H{"account_id": req.AccountID},
		IP:         ctx.ClientIP(),
		UserAgent:  ctx.Request.UserAgent(),
	})

	utils.Success(ctx, gin.H{"added": added})
}

// AddMembersBatch adds several accounts at once; duplicates and unknown
// accounts are skipped, not errors.
func (g *GroupController) AddMembersBatch(ctx *gin.Context) {
	adminID, _ := middleware.AccountID(ctx)
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	if _, ok := g.loadGroup(ctx, id); !ok {
		return
	}

	var req struct {
		AccountIDs []uint `json:"account_ids" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || len(req.AccountIDs) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40054, "account_ids is required")
		return
	}

	added, err := g.addMembers(id, adminID, uniqueUint(req.AccountIDs))
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50057, "failed to add members")
		return
	}

	g.adminLog.Log(services.LogParams{
		AdminID:    adminID,
		Action:     "group.member.add_batch",
		TargetType: "group",
		TargetID:   strconv.FormatUint(uint64(id), 10),
		NewData:    gin.H{"account_ids": req.AccountIDs, "added": added},
		IP:         ctx.ClientIP(),
		UserAgent:  ctx.Request.UserAgent(),
	})

	utils.Success(ctx, gin.H{"added": added, "requested": len(req.AccountIDs)})
}

func (g *GroupController) addMembers(groupID, adminID uint, accountIDs []uint) (int, error) {
	added := 0
	for _, accountID := range accountIDs {
		var exists int64
		if err := g.db.Model(&models.Account{}).Where("id = ?", accountID).Count(&exists).Error; err != nil {
			return added, err
		}
		if exists == 0 {
			continue
		}
		err := g.db.Create(&models.GroupMembership{
			GroupID:   groupID,
			AccountID: accountID,
			AddedByID: adminID,
		}).Error
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}

// RemoveMember removes one account from a group. Past rewards stay.
func (g *GroupController) RemoveMember(ctx *gin.Context) {
	adminID, _ := middleware.AccountID(ctx)
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	accountID, ok := parseUintParam(ctx, "accountId")
	if !ok {
		return
	}

	res := g.db.Where("group_id = ? AND account_id = ?", id, accountID).Delete(&models.GroupMembership{})
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50058, "failed to remove member")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40451, "membership not found")
		return
	}

	g.adminLog.Log(services.LogParams{
		AdminID:    adminID,
		Action:     "group.member.remove",
		TargetType: "group",
		TargetID:   strconv.FormatUint(uint64(id), 10),
		OldData:    gin.H{"account_id": accountID},
		IP:         ctx.ClientIP(),
		UserAgent:  ctx.Request.UserAgent(),
	})

	utils.Success(ctx, gin.H{"removed": true})
}

// GetRewardRule returns the group's reward rule.
func (g *GroupController) GetRewardRule(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	if _, ok := g.loadGroup(ctx, id); !ok {
		return
	}

	var rule models.RewardRule
	if err := g.db.Where("group_id = ?", id).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40452, "reward rule not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, 50059, "db error")
		}
		return
	}

	utils.Success(ctx, rule)
}

// SetRewardRule creates or replaces the group's reward rule. The next due
// date is recomputed from today so an edit mid-cycle targets the upcoming
// occurrence, never a passed one.
func (g *GroupController) SetRewardRule(ctx *gin.Context) {
	adminID, _ := middleware.AccountID(ctx)
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	if _, ok := g.loadGroup(ctx, id); !ok {
		return
	}

	var req struct {
		CoinAmount   int64  `json:"coin_amount" binding:"required"`
		CadenceKind  string `json:"cadence_kind" binding:"required"`
		CadenceParam int    `json:"cadence_param"`
		Active       bool   `json:"active"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40055, "invalid request body")
		return
	}
	if req.CoinAmount <= 0 {
		utils.Error(ctx, http.StatusBadRequest, 40056, "coin_amount must be positive")
		return
	}
	if !validCadence(req.CadenceKind, req.CadenceParam) {
		utils.Error(ctx, http.StatusBadRequest, 40057, "invalid cadence")
		return
	}

	nextDue := services.FormatDueDate(services.NextDueDate(req.CadenceKind, req.CadenceParam, time.Now()))

	var old *models.RewardRule
	var rule models.RewardRule
	err := g.db.Where("group_id = ?", id).First(&rule).Error
	switch {
	case err == nil:
		copied := rule
		old = &copied
		rule.CoinAmount = req.CoinAmount
		rule.CadenceKind = req.CadenceKind
		rule.CadenceParam = req.CadenceParam
		rule.NextDueDate = nextDue
		rule.Active = req.Active
		err = g.db.Save(&rule).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		rule = models.RewardRule{
			GroupID:      id,
			CoinAmount:   req.CoinAmount,
			CadenceKind:  req.CadenceKind,
			CadenceParam: req.CadenceParam,
			NextDueDate:  nextDue,
			Active:       req.Active,
		}
		err = g.db.Create(&rule).Error
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to save reward rule")
		return
	}

	g.adminLog.Log(services.LogParams{
		AdminID:    adminID,
		Action:     "group.rule.set",
		TargetType: "reward_rule",
		TargetID:   strconv.FormatUint(uint64(rule.ID), 10),
		OldData:    old,
		NewData:    rule,
		IP:         ctx.ClientIP(),
		UserAgent:  ctx.Request.UserAgent(),
	})

	utils.Success(ctx, rule)
}

// ToggleRewardRule flips a rule active/inactive.
func (g *GroupController) ToggleRewardRule(ctx *gin.Context) {
	adminID, _ := middleware.AccountID(ctx)
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}

	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40058, "active flag is required")
		return
	}

	var rule models.RewardRule
	if err := g.db.Where("group_id = ?", id).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40452, "reward rule not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, 50061, "db error")
		}
		return
	}

	wasActive := rule.Active
	rule.Active = *req.Active
	if !wasActive && rule.Active {
		// Reactivation reschedules forward; past due dates are not back-paid.
		rule.NextDueDate = services.FormatDueDate(
			services.NextDueDate(rule.CadenceKind, rule.CadenceParam, time.Now()))
	}
	if err := g.db.Save(&rule).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50062, "failed to toggle reward rule")
		return
	}

	g.adminLog.Log(services.LogParams{
		AdminID:     adminID,
		Action:      "group.rule.toggle",
		TargetType:  "reward_rule",
		TargetID:    strconv.FormatUint(uint64(rule.ID), 10),
		OldData:     gin.H{"active": wasActive},
		NewData:     gin.H{"active": rule.Active},
		Description: "reward rule toggled",
		IP:          ctx.ClientIP(),
		UserAgent:   ctx.Request.UserAgent(),
	})

	utils.Success(ctx, rule)
}

// PayNow runs an immediate distribution for one group, keyed to today.
func (g *GroupController) PayNow(ctx *gin.Context) {
	adminID, _ := middleware.AccountID(ctx)
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}
	if _, ok := g.loadGroup(ctx, id); !ok {
		return
	}

	report, err := g.distributor.PayGroupNow(id, time.Now())
	if err != nil {
		if errors.Is(err, services.ErrRuleNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40452, "reward rule not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50063, "failed to run distribution")
		return
	}

	g.adminLog.Log(services.LogParams{
		AdminID:    adminID,
		Action:     "group.pay_now",
		TargetType: "group",
		TargetID:   strconv.FormatUint(uint64(id), 10),
		NewData:    report,
		IP:         ctx.ClientIP(),
		UserAgent:  ctx.Request.UserAgent(),
	})

	utils.Success(ctx, report)
}

// ListDistributions returns a group's distribution log newest-first.
func (g *GroupController) ListDistributions(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	q := g.db.Model(&models.DistributionLog{}).Where("group_id = ?", id)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50064, "failed to count distributions")
		return
	}

	var logs []models.DistributionLog
	if err := q.Order("executed_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logs).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50065, "failed to list distributions")
		return
	}

	utils.Success(ctx, gin.H{"items": logs, "total": total, "page": page})
}

func validCadence(kind string, param int) bool {
	switch kind {
	case models.CadenceDaily:
		return true
	case models.CadenceWeekly:
		return param >= 0 && param <= 6
	case models.CadenceMonthly, models.CadenceCustom:
		return param >= 1 && param <= 31
	default:
		return false
	}
}

func uniqueUint(slice []uint) []uint {
	seen := make(map[uint]bool, len(slice))
	out := make([]uint, 0, len(slice))
	for _, v := range slice {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
