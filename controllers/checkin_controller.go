package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cosmarket/points/middleware"
	"github.com/cosmarket/points/services"
	"github.com/cosmarket/points/utils"
)

// CheckinController handles daily check-in endpoints.
type CheckinController struct {
	checkin *services.CheckinService
}

// NewCheckinController creates a new controller instance.
func NewCheckinController(checkin *services.CheckinService) *CheckinController {
	return &CheckinController{checkin: checkin}
}

// DailyCheckin records a daily check-in and credits the reward.
func (c *CheckinController) DailyCheckin(ctx *gin.Context) {
	accountID, ok := middleware.AccountID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	result, err := c.checkin.CheckIn(accountID, time.Now())
	if err != nil {
		if errors.Is(err, services.ErrAlreadyCheckedIn) {
			utils.Error(ctx, http.StatusBadRequest, 40030, "already checked in today")
			return
		}
		if errors.Is(err, services.ErrAccountNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "account not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to record check-in")
		return
	}

	utils.Success(ctx, result)
}

// CheckinStatus returns the account's streak and last check-in time.
func (c *CheckinController) CheckinStatus(ctx *gin.Context) {
	accountID, ok := middleware.AccountID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	last, err := c.checkin.Status(accountID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to load check-in status")
		return
	}

	if last == nil {
		utils.Success(ctx, gin.H{"checked_in_today": false, "streak": 0})
		return
	}

	now := time.Now()
	sameDay := last.CheckinDate.Year() == now.Year() && last.CheckinDate.YearDay() == now.YearDay()
	utils.Success(ctx, gin.H{
		"checked_in_today": sameDay,
		"streak":           last.Streak,
		"last_checkin_at":  last.CheckinDate,
	})
}
