package repository

import (
	"context"
	"mission_backend/internal/model"

	"gorm.io/gorm"
)

type ReviewRepository struct {
	DB *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{DB: db}
}

// Create 依赖 attempt_id 唯一索引，重复写入返回 gorm.ErrDuplicatedKey
func (r *ReviewRepository) Create(ctx context.Context, review *model.Review) error {
	return r.DB.WithContext(ctx).Create(review).Error
}

func (r *ReviewRepository) FindByAttemptID(ctx context.Context, attemptID string) (*model.Review, error) {
	var review model.Review
	if err := r.DB.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *ReviewRepository) ExistsByAttemptID(ctx context.Context, attemptID string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Review{}).Where("attempt_id = ?", attemptID).Count(&count).Error
	return count > 0, err
}

func (r *ReviewRepository) FindByAttemptIDs(ctx context.Context, attemptIDs []string) (map[string]model.Review, error) {
	result := make(map[string]model.Review, len(attemptIDs))
	if len(attemptIDs) == 0 {
		return result, nil
	}
	var reviews []model.Review
	if err := r.DB.WithContext(ctx).Where("attempt_id IN ?", attemptIDs).Find(&reviews).Error; err != nil {
		return nil, err
	}
	for _, rv := range reviews {
		result[rv.AttemptID] = rv
	}
	return result, nil
}

// List 按提交时间倒序，limit <= 0 表示不限制
func (r *ReviewRepository) List(ctx context.Context, filter model.ReviewFilter, limit int) ([]model.Review, error) {
	query := r.DB.WithContext(ctx).Model(&model.Review{})
	if filter.MissionType != "" {
		sub := r.DB.Model(&model.MissionAttempt{}).Select("attempt_id").Where("mission_type = ?", filter.MissionType)
		query = query.Where("attempt_id IN (?)", sub)
	}
	if filter.Rating != nil {
		query = query.Where("rating = ?", *filter.Rating)
	}
	if filter.HasFeedback != nil {
		query = query.Where("has_feedback = ?", *filter.HasFeedback)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var reviews []model.Review
	err := query.Order("submitted_at DESC").Order("id DESC").Find(&reviews).Error
	return reviews, err
}
