package repository

import (
	"context"
	"mission_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type MissionAttemptRepository struct {
	DB *gorm.DB
}

func NewMissionAttemptRepository(db *gorm.DB) *MissionAttemptRepository {
	return &MissionAttemptRepository{DB: db}
}

func (r *MissionAttemptRepository) Create(ctx context.Context, attempt *model.MissionAttempt) error {
	return r.DB.WithContext(ctx).Create(attempt).Error
}

func (r *MissionAttemptRepository) FindByAttemptID(ctx context.Context, attemptID string) (*model.MissionAttempt, error) {
	var a model.MissionAttempt
	if err := r.DB.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *MissionAttemptRepository) FindByAttemptIDs(ctx context.Context, attemptIDs []string) (map[string]model.MissionAttempt, error) {
	result := make(map[string]model.MissionAttempt, len(attemptIDs))
	if len(attemptIDs) == 0 {
		return result, nil
	}
	var attempts []model.MissionAttempt
	if err := r.DB.WithContext(ctx).Where("attempt_id IN ?", attemptIDs).Find(&attempts).Error; err != nil {
		return nil, err
	}
	for _, a := range attempts {
		result[a.AttemptID] = a
	}
	return result, nil
}

// List 按开始时间倒序分页，page 从 0 开始
func (r *MissionAttemptRepository) List(ctx context.Context, filter model.AttemptFilter, page, size int) ([]model.MissionAttempt, int64, error) {
	var (
		attempts []model.MissionAttempt
		total    int64
	)

	query := applyAttemptFilter(r.DB.WithContext(ctx).Model(&model.MissionAttempt{}), filter).Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("start_time DESC").Order("id DESC").
		Offset(page * size).Limit(size).
		Find(&attempts).Error
	return attempts, total, err
}

// FindAll 返回全部尝试，missionType 为空时不筛选
func (r *MissionAttemptRepository) FindAll(ctx context.Context, missionType model.MissionType) ([]model.MissionAttempt, error) {
	var attempts []model.MissionAttempt
	err := applyAttemptFilter(r.DB.WithContext(ctx), model.AttemptFilter{MissionType: missionType}).
		Find(&attempts).Error
	return attempts, err
}

func (r *MissionAttemptRepository) FindRecent(ctx context.Context, limit int) ([]model.MissionAttempt, error) {
	var attempts []model.MissionAttempt
	err := r.DB.WithContext(ctx).Order("start_time DESC").Order("id DESC").Limit(limit).Find(&attempts).Error
	return attempts, err
}

// FinishIfInProgress 只有状态仍为 IN_PROGRESS 时才写入终止状态，返回是否生效
func (r *MissionAttemptRepository) FinishIfInProgress(ctx context.Context, attemptID string, status model.MissionStatus, endTime time.Time, duration float64) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.MissionAttempt{}).
		Where("attempt_id = ? AND status = ?", attemptID, model.StatusInProgress).
		Updates(map[string]interface{}{
			"status":         status,
			"end_time":       endTime,
			"total_duration": duration,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func applyAttemptFilter(query *gorm.DB, filter model.AttemptFilter) *gorm.DB {
	if filter.MissionType != "" {
		query = query.Where("mission_type = ?", filter.MissionType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.SessionID != "" {
		query = query.Where("session_id = ?", filter.SessionID)
	}
	if filter.From != nil {
		query = query.Where("start_time >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("start_time < ?", *filter.To)
	}
	return query
}
