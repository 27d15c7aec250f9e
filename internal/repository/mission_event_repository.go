package repository

import (
	"context"
	"mission_backend/internal/model"

	"gorm.io/gorm"
)

type MissionEventRepository struct {
	DB *gorm.DB
}

func NewMissionEventRepository(db *gorm.DB) *MissionEventRepository {
	return &MissionEventRepository{DB: db}
}

// Create 事件只追加，不做更新
func (r *MissionEventRepository) Create(ctx context.Context, event *model.MissionEvent) error {
	return r.DB.WithContext(ctx).Create(event).Error
}

// FindByAttemptIDOrderByTimestamp 按客户端时间排序，时间相同时按写入顺序
func (r *MissionEventRepository) FindByAttemptIDOrderByTimestamp(ctx context.Context, attemptID string) ([]model.MissionEvent, error) {
	var events []model.MissionEvent
	err := r.DB.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("occurred_at ASC").Order("id ASC").
		Find(&events).Error
	return events, err
}

func (r *MissionEventRepository) CountByAttemptID(ctx context.Context, attemptID string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.MissionEvent{}).Where("attempt_id = ?", attemptID).Count(&count).Error
	return count, err
}

type attemptEventCount struct {
	AttemptID string
	Total     int64
}

func (r *MissionEventRepository) CountByAttemptIDs(ctx context.Context, attemptIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(attemptIDs))
	if len(attemptIDs) == 0 {
		return counts, nil
	}

	var rows []attemptEventCount
	err := r.DB.WithContext(ctx).Model(&model.MissionEvent{}).
		Select("attempt_id, COUNT(*) AS total").
		Where("attempt_id IN ?", attemptIDs).
		Group("attempt_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.AttemptID] = row.Total
	}
	return counts, nil
}

type stepAverage struct {
	Step    int
	Average float64
}

// stepExpressions data.step、data.timeOnStep 的取值表达式，只统计 JSON 数值
func stepExpressions(dialect string) (step, timeOnStep, numeric string) {
	switch dialect {
	case "mysql":
		return "CAST(JSON_UNQUOTE(JSON_EXTRACT(data, '$.step')) AS SIGNED)",
			"CAST(JSON_UNQUOTE(JSON_EXTRACT(data, '$.timeOnStep')) AS DECIMAL(12,3))",
			"JSON_TYPE(JSON_EXTRACT(data, '$.step')) IN ('INTEGER', 'UNSIGNED INTEGER', 'DOUBLE', 'DECIMAL') AND " +
				"JSON_TYPE(JSON_EXTRACT(data, '$.timeOnStep')) IN ('INTEGER', 'UNSIGNED INTEGER', 'DOUBLE', 'DECIMAL')"
	case "postgres":
		return "(data->>'step')::numeric::int",
			"(data->>'timeOnStep')::numeric",
			"jsonb_typeof(data->'step') = 'number' AND jsonb_typeof(data->'timeOnStep') = 'number'"
	default:
		return "CAST(json_extract(data, '$.step') AS INTEGER)",
			"json_extract(data, '$.timeOnStep')",
			"json_type(data, '$.step') IN ('integer', 'real') AND json_type(data, '$.timeOnStep') IN ('integer', 'real')"
	}
}

// AverageTimeOnStep 所有 portfolio_creation_step 事件按步骤聚合 timeOnStep 平均值，只返回 steps 中的步骤
func (r *MissionEventRepository) AverageTimeOnStep(ctx context.Context, steps []int) (map[int]float64, error) {
	averages := make(map[int]float64, len(steps))
	if len(steps) == 0 {
		return averages, nil
	}

	step, timeOnStep, numeric := stepExpressions(r.DB.Dialector.Name())
	var rows []stepAverage
	err := r.DB.WithContext(ctx).Model(&model.MissionEvent{}).
		Select(step+" AS step, AVG("+timeOnStep+") AS average").
		Where("event_type = ?", model.EventPortfolioCreationStep).
		Where(numeric).
		Where(step+" IN ?", steps).
		Group(step).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		averages[row.Step] = row.Average
	}
	return averages, nil
}
