package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"mission_backend/internal/model"
	"mission_backend/internal/repository"
	"mission_backend/internal/util"
	"mission_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	firstStep = 1
	lastStep  = 5
	// 超过同一步骤平均耗时的倍数视为过慢
	slowStepFactor = 2
)

type TimelineService struct {
	Missions   *MissionService
	EventRepo  *repository.MissionEventRepository
	ReviewRepo *repository.ReviewRepository
}

func NewTimelineService(missions *MissionService, eventRepo *repository.MissionEventRepository, reviewRepo *repository.ReviewRepository) *TimelineService {
	return &TimelineService{
		Missions:   missions,
		EventRepo:  eventRepo,
		ReviewRepo: reviewRepo,
	}
}

// Reconstruct 按时间回放尝试的所有事件
func (s *TimelineService) Reconstruct(ctx context.Context, attemptID string) ([]model.TimelineEntry, error) {
	if _, err := s.Missions.Get(ctx, attemptID); err != nil {
		return nil, err
	}
	events, err := s.EventRepo.FindByAttemptIDOrderByTimestamp(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return BuildTimeline(events), nil
}

// AttemptDetail 尝试、评价、时间线，作品集任务额外返回每一步的详情
func (s *TimelineService) AttemptDetail(ctx context.Context, attemptID string) (*model.AttemptDetail, error) {
	ctx, span := tracing.StartSpan(ctx, "TimelineService.AttemptDetail", attribute.String("attempt.id", attemptID))
	defer span.End()

	attempt, err := s.Missions.Get(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	events, err := s.EventRepo.FindByAttemptIDOrderByTimestamp(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	review, err := s.ReviewRepo.FindByAttemptID(ctx, attemptID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		review = nil
	}

	detail := &model.AttemptDetail{
		Attempt:           toAttemptSummary(*attempt, int64(len(events)), review),
		Review:            review,
		Timeline:          BuildTimeline(events),
		DurationFormatted: util.FormatDuration(attempt.TotalDuration),
	}

	if attempt.MissionType == model.MissionTypePortfolio {
		averages, err := s.EventRepo.AverageTimeOnStep(ctx, attemptSteps(events))
		if err != nil {
			return nil, err
		}
		detail.StepDetails = BuildStepDetails(events, averages)
	}

	span.SetAttributes(attribute.Int("timeline.events", len(detail.Timeline)))
	return detail, nil
}

// BuildTimeline 不依赖传入顺序，按 timestamp 稳定排序后计算与前一个事件的间隔
func BuildTimeline(events []model.MissionEvent) []model.TimelineEntry {
	ordered := make([]model.MissionEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	entries := make([]model.TimelineEntry, 0, len(ordered))
	for i, e := range ordered {
		entry := model.TimelineEntry{
			EventID:        e.EventID,
			EventType:      e.EventType,
			Timestamp:      e.Timestamp,
			TimelineFields: model.ExtractTimelineFields(e.Data),
			DataPreview:    model.DataPreview(e.Data),
			Data:           e.Data,
		}
		if i > 0 {
			gap := int64(e.Timestamp.Sub(ordered[i-1].Timestamp) / time.Second)
			entry.GapSeconds = &gap
		}
		entries = append(entries, entry)
	}
	return entries
}

// attemptSteps 尝试自身出现过的 1-5 步
func attemptSteps(events []model.MissionEvent) []int {
	seen := make(map[int]struct{}, lastStep)
	steps := make([]int, 0, lastStep)
	for i := range events {
		if events[i].EventType != model.EventPortfolioCreationStep {
			continue
		}
		p, ok := events[i].Payload().(model.PortfolioStepPayload)
		if !ok || p.Step == nil || *p.Step < firstStep || *p.Step > lastStep {
			continue
		}
		if _, dup := seen[*p.Step]; dup {
			continue
		}
		seen[*p.Step] = struct{}{}
		steps = append(steps, *p.Step)
	}
	return steps
}

// BuildStepDetails 从尝试的事件中提取 1-5 步，按步骤排序
func BuildStepDetails(events []model.MissionEvent, averages map[int]float64) []model.StepDetail {
	details := make([]model.StepDetail, 0, lastStep)
	for i := range events {
		if events[i].EventType != model.EventPortfolioCreationStep {
			continue
		}
		p, ok := events[i].Payload().(model.PortfolioStepPayload)
		if !ok || p.Step == nil || *p.Step < firstStep || *p.Step > lastStep {
			continue
		}

		detail := model.StepDetail{
			EventID:       events[i].EventID,
			Step:          *p.Step,
			StepName:      p.StepName,
			SelectedLabel: p.SelectedLabel,
			TimeOnStep:    p.TimeOnStep,
			Annotation:    stepAnnotation(p),
		}
		if avg, ok := averages[*p.Step]; ok {
			rounded := util.Round(avg, 2)
			detail.AverageTime = &rounded
			detail.IsSlow = p.TimeOnStep != nil && *p.TimeOnStep > avg*slowStepFactor
		}
		details = append(details, detail)
	}

	sort.SliceStable(details, func(i, j int) bool {
		return details[i].Step < details[j].Step
	})
	return details
}

func stepAnnotation(p model.PortfolioStepPayload) string {
	switch *p.Step {
	case 3:
		if p.AdjustmentCount != nil {
			return fmt.Sprintf("Weights adjusted %s times", util.FormatNumber(*p.AdjustmentCount))
		}
	case 4:
		if p.NameLength != nil {
			return fmt.Sprintf("Name length: %s chars", util.FormatNumber(*p.NameLength))
		}
	case 5:
		if p.FinalPercentage != nil {
			return fmt.Sprintf("Target return: %s%%", util.FormatNumber(*p.FinalPercentage))
		}
	}
	return ""
}
