package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mission_backend/internal/config"
	"mission_backend/internal/model"
	"mission_backend/internal/repository"
	"mission_backend/internal/util"
	"mission_backend/pkg/logger"
	"mission_backend/pkg/monitoring"
	"mission_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 终止事件到终止状态的映射
var defaultTerminalTransitions = map[string]model.MissionStatus{
	model.EventMissionCompleted: model.StatusCompleted,
	model.EventMissionQuitted:   model.StatusQuitted,
	model.EventMissionExpired:   model.StatusExpired,
}

// DefaultTerminalStatus 未在映射表中的终止事件使用的状态
const DefaultTerminalStatus = model.StatusExpired

type missionSettings struct {
	wsURL       string
	expiresInMs int64
	terminals   map[string]model.MissionStatus
	fallback    model.MissionStatus
}

func newMissionSettings(cfg config.MissionConfig, fallback model.MissionStatus) missionSettings {
	terminals := make(map[string]model.MissionStatus, len(defaultTerminalTransitions)+len(cfg.ExtraTerminalEvents))
	for eventType, status := range defaultTerminalTransitions {
		terminals[eventType] = status
	}
	for _, eventType := range cfg.ExtraTerminalEvents {
		eventType = strings.TrimSpace(eventType)
		if eventType == "" {
			continue
		}
		if _, ok := terminals[eventType]; !ok {
			terminals[eventType] = fallback
		}
	}
	return missionSettings{
		wsURL:       cfg.WSURL,
		expiresInMs: cfg.ExpiresInMs,
		terminals:   terminals,
		fallback:    fallback,
	}
}

type MissionService struct {
	AttemptRepo *repository.MissionAttemptRepository
	EventRepo   *repository.MissionEventRepository
	ReviewRepo  *repository.ReviewRepository

	locks    attemptLocks
	mu       sync.RWMutex
	cfg      config.MissionConfig
	settings missionSettings
}

func NewMissionService(
	attemptRepo *repository.MissionAttemptRepository,
	eventRepo *repository.MissionEventRepository,
	reviewRepo *repository.ReviewRepository,
	cfg config.MissionConfig,
) *MissionService {
	return &MissionService{
		AttemptRepo: attemptRepo,
		EventRepo:   eventRepo,
		ReviewRepo:  reviewRepo,
		cfg:         cfg,
		settings:    newMissionSettings(cfg, DefaultTerminalStatus),
	}
}

// UpdateSettings 配置热更新时调用
func (s *MissionService) UpdateSettings(cfg config.MissionConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.settings = newMissionSettings(cfg, s.settings.fallback)
}

// SetDefaultTerminalStatus 替换未映射终止事件的默认状态，status 必须是终止状态
func (s *MissionService) SetDefaultTerminalStatus(status model.MissionStatus) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s is not a terminal status", util.ErrInvalidArgument, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = newMissionSettings(s.cfg, status)
	return nil
}

func (s *MissionService) currentSettings() missionSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// IsTerminalEvent 判断事件类型是否会结束尝试
func (s *MissionService) IsTerminalEvent(eventType string) bool {
	_, ok := s.currentSettings().terminals[eventType]
	return ok
}

// TerminalStatusFor 查表得到终止状态，未映射的类型使用默认状态
func (s *MissionService) TerminalStatusFor(eventType string) model.MissionStatus {
	settings := s.currentSettings()
	if status, ok := settings.terminals[eventType]; ok {
		return status
	}
	return settings.fallback
}

// Start 创建一个进行中的尝试，startTime 为零值时使用当前时间
func (s *MissionService) Start(ctx context.Context, sessionID, missionType string, startTime time.Time) (*model.StartMissionResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: sessionId is required", util.ErrInvalidArgument)
	}
	mt, err := model.ParseMissionType(missionType)
	if err != nil {
		return nil, err
	}
	if startTime.IsZero() {
		startTime = time.Now()
	}

	attempt := &model.MissionAttempt{
		AttemptID:   util.NewID(util.AttemptIDPrefix),
		SessionID:   sessionID,
		MissionType: mt,
		MissionName: mt.DisplayName(),
		StartTime:   startTime.UTC(),
		Status:      model.StatusInProgress,
	}
	if err := s.AttemptRepo.Create(ctx, attempt); err != nil {
		return nil, err
	}

	logger.Log.Info("Mission started",
		zap.String("attemptId", attempt.AttemptID),
		zap.String("sessionId", sessionID),
		zap.String("missionType", string(mt)),
	)

	settings := s.currentSettings()
	return &model.StartMissionResult{
		AttemptID:   attempt.AttemptID,
		MissionType: attempt.MissionType,
		MissionName: attempt.MissionName,
		StartTime:   attempt.StartTime,
		Status:      string(attempt.Status),
		WSURL:       settings.wsURL,
		ExpiresIn:   settings.expiresInMs,
	}, nil
}

func (s *MissionService) Get(ctx context.Context, attemptID string) (*model.MissionAttempt, error) {
	attempt, err := s.AttemptRepo.FindByAttemptID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", util.ErrAttemptNotFound, attemptID)
		}
		return nil, err
	}
	return attempt, nil
}

// Finish 把进行中的尝试迁移到 eventType 对应的终止状态。
// 已经终止的尝试不做任何修改，返回 false。
func (s *MissionService) Finish(ctx context.Context, attemptID, eventType string, endTime time.Time) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "MissionService.Finish",
		attribute.String("attempt.id", attemptID),
		attribute.String("event.type", eventType),
	)
	defer span.End()

	unlock := s.locks.lock(attemptID)
	defer unlock()

	attempt, err := s.Get(ctx, attemptID)
	if err != nil {
		return false, err
	}

	status := s.TerminalStatusFor(eventType)
	if attempt.Status.IsTerminal() {
		monitoring.TerminalTransitions.WithLabelValues(string(status), "false").Inc()
		logger.Log.Info("Ignoring terminal event for finished attempt",
			zap.String("attemptId", attemptID),
			zap.String("eventType", eventType),
			zap.String("status", string(attempt.Status)),
		)
		return false, nil
	}

	endTime = endTime.UTC()
	duration := model.DurationBetween(attempt.StartTime, endTime)
	applied, err := s.AttemptRepo.FinishIfInProgress(ctx, attemptID, status, endTime, duration)
	if err != nil {
		return false, err
	}
	monitoring.TerminalTransitions.WithLabelValues(string(status), fmt.Sprint(applied)).Inc()
	span.SetAttributes(attribute.Bool("transition.applied", applied))

	if applied {
		logger.Log.Info("Mission finished",
			zap.String("attemptId", attemptID),
			zap.String("status", string(status)),
			zap.Float64("totalDuration", duration),
		)
	}
	return applied, nil
}

func (s *MissionService) List(ctx context.Context, filter model.AttemptFilter, page, size int) ([]model.AttemptSummary, int64, error) {
	attempts, total, err := s.AttemptRepo.List(ctx, filter, page, size)
	if err != nil {
		return nil, 0, err
	}
	summaries, err := summarizeAttempts(ctx, s.EventRepo, s.ReviewRepo, attempts)
	if err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

// Detail 返回尝试、按时间排序的事件和评价
func (s *MissionService) Detail(ctx context.Context, attemptID string) (*model.MissionDetail, error) {
	attempt, err := s.Get(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	events, err := s.EventRepo.FindByAttemptIDOrderByTimestamp(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	review, err := s.ReviewRepo.FindByAttemptID(ctx, attemptID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	summary := toAttemptSummary(*attempt, int64(len(events)), review)
	return &model.MissionDetail{
		AttemptSummary: summary,
		Events:         events,
		Review:         review,
	}, nil
}

func toAttemptSummary(a model.MissionAttempt, eventCount int64, review *model.Review) model.AttemptSummary {
	summary := model.AttemptSummary{
		AttemptID:         a.AttemptID,
		SessionID:         a.SessionID,
		MissionType:       a.MissionType,
		MissionName:       a.MissionName,
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		TotalDuration:     a.TotalDuration,
		DurationFormatted: util.FormatDuration(a.TotalDuration),
		Status:            a.Status,
		EventCount:        eventCount,
	}
	if review != nil {
		summary.Rating = review.Rating
		summary.RatingText = review.RatingText
	}
	return summary
}

// summarizeAttempts 批量补充事件数和评价
func summarizeAttempts(ctx context.Context, eventRepo *repository.MissionEventRepository, reviewRepo *repository.ReviewRepository, attempts []model.MissionAttempt) ([]model.AttemptSummary, error) {
	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.AttemptID)
	}

	counts, err := eventRepo.CountByAttemptIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	reviews, err := reviewRepo.FindByAttemptIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.AttemptSummary, 0, len(attempts))
	for _, a := range attempts {
		var review *model.Review
		if rv, ok := reviews[a.AttemptID]; ok {
			review = &rv
		}
		summaries = append(summaries, toAttemptSummary(a, counts[a.AttemptID], review))
	}
	return summaries, nil
}
