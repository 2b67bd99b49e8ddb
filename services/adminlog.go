package services

import (
	"encoding/json"

	"gorm.io/gorm"

	"github.com/cosmarket/points/models"
	"github.com/cosmarket/points/utils"
)

// AdminLogService writes the audit trail for privileged mutations. Writes are
// best-effort: a failed audit write is logged and swallowed, never allowed to
// abort the operation it documents.
type AdminLogService struct {
	db *gorm.DB
}

// NewAdminLogService creates an admin log service.
func NewAdminLogService(db *gorm.DB) *AdminLogService {
	return &AdminLogService{db: db}
}

// LogParams describes one audit entry. OldData/NewData are marshaled to JSON.
type LogParams struct {
	AdminID     uint
	Action      string
	TargetType  string
	TargetID    string
	OldData     interface{}
	NewData     interface{}
	Description string
	IP          string
	UserAgent   string
}

// Log records one privileged action.
func (s *AdminLogService) Log(p LogParams) {
	entry := models.AdminLog{
		AdminID:     p.AdminID,
		Action:      p.Action,
		TargetType:  p.TargetType,
		TargetID:    p.TargetID,
		OldData:     marshalData(p.OldData),
		NewData:     marshalData(p.NewData),
		Description: utils.Sanitize(p.Description),
		IP:          p.IP,
		UserAgent:   p.UserAgent,
	}
	if err := s.db.Create(&entry).Error; err != nil && utils.Sugar != nil {
		utils.Sugar.Errorw("admin audit write failed",
			"admin_id", p.AdminID, "action", p.Action, "error", err)
	}
}

// List returns audit entries newest-first.
func (s *AdminLogService) List(page, pageSize int) ([]models.AdminLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := s.db.Model(&models.AdminLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AdminLog
	if err := s.db.Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func marshalData(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
