package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mission_backend/internal/model"
	"mission_backend/internal/repository"
	"mission_backend/internal/util"
	"mission_backend/pkg/logger"
	"mission_backend/pkg/monitoring"
	"mission_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// EventEnvelope 客户端上报的事件
type EventEnvelope struct {
	EventType string                 `json:"eventType"`
	Timestamp model.EventTime        `json:"timestamp"`
	SessionID string                 `json:"sessionId"`
	AttemptID string                 `json:"attemptId"`
	Data      map[string]interface{} `json:"data"`
}

// EventAck 事件处理成功的回执
type EventAck struct {
	Status         string    `json:"status"`
	EventID        string    `json:"eventId"`
	EventType      string    `json:"eventType"`
	AttemptID      string    `json:"attemptId"`
	Timestamp      time.Time `json:"timestamp"`
	ProcessingTime int64     `json:"processingTime"`
}

// EventError 事件处理失败的回执，只包含对外的错误信息
type EventError struct {
	Status    string    `json:"status"`
	EventType string    `json:"eventType"`
	AttemptID string    `json:"attemptId"`
	ErrorCode string    `json:"errorCode"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEventAck(event *model.MissionEvent) EventAck {
	return EventAck{
		Status:         "success",
		EventID:        event.EventID,
		EventType:      event.EventType,
		AttemptID:      event.AttemptID,
		Timestamp:      event.Timestamp,
		ProcessingTime: event.ProcessingTime,
	}
}

func NewEventError(env EventEnvelope, err error) EventError {
	info := util.Classify(err)
	return EventError{
		Status:    "error",
		EventType: env.EventType,
		AttemptID: env.AttemptID,
		ErrorCode: info.Code,
		Error:     info.Message,
		Timestamp: time.Now().UTC(),
	}
}

type EventService struct {
	EventRepo *repository.MissionEventRepository
	Missions  *MissionService
	Reviews   *ReviewService
}

func NewEventService(eventRepo *repository.MissionEventRepository, missions *MissionService, reviews *ReviewService) *EventService {
	return &EventService{
		EventRepo: eventRepo,
		Missions:  missions,
		Reviews:   reviews,
	}
}

// Ingest 校验并保存事件，然后按事件类型触发终止迁移和评价生成。
// 事件一经保存就不会因评价生成失败而回滚。
func (s *EventService) Ingest(ctx context.Context, env EventEnvelope) (*model.MissionEvent, error) {
	start := time.Now()

	ctx, span := tracing.StartSpan(ctx, "EventService.Ingest",
		attribute.String("event.type", env.EventType),
		attribute.String("attempt.id", env.AttemptID),
	)
	defer span.End()

	event, err := s.ingest(ctx, env, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		monitoring.EventsIngested.WithLabelValues(metricEventType(env.EventType), "error").Inc()
		logger.Log.Warn("Event ingestion failed",
			zap.String("attemptId", env.AttemptID),
			zap.String("eventType", env.EventType),
			zap.Error(err),
		)
		return nil, err
	}

	monitoring.EventsIngested.WithLabelValues(metricEventType(env.EventType), "success").Inc()
	return event, nil
}

func (s *EventService) ingest(ctx context.Context, env EventEnvelope, start time.Time) (*model.MissionEvent, error) {
	if err := validateEnvelope(env); err != nil {
		return nil, err
	}

	attempt, err := s.Missions.Get(ctx, env.AttemptID)
	if err != nil {
		return nil, err
	}

	receivedAt := time.Now().UTC()
	timestamp := receivedAt
	if !env.Timestamp.IsZero() {
		timestamp = env.Timestamp.UTC()
	}
	data := env.Data
	if data == nil {
		data = map[string]interface{}{}
	}

	event := &model.MissionEvent{
		EventID:    util.NewID(util.EventIDPrefix),
		AttemptID:  attempt.AttemptID,
		SessionID:  env.SessionID,
		EventType:  env.EventType,
		Timestamp:  timestamp,
		Data:       data,
		ReceivedAt: receivedAt,
	}
	elapsed := time.Since(start)
	event.ProcessingTime = elapsed.Milliseconds()
	monitoring.EventProcessingDuration.Observe(elapsed.Seconds())

	if err := s.EventRepo.Create(ctx, event); err != nil {
		return nil, err
	}

	logger.Log.Debug("Event stored",
		zap.String("eventId", event.EventID),
		zap.String("attemptId", event.AttemptID),
		zap.String("eventType", event.EventType),
		zap.Int64("processingTime", event.ProcessingTime),
	)

	if s.Missions.IsTerminalEvent(event.EventType) {
		if _, err := s.Missions.Finish(ctx, event.AttemptID, event.EventType, event.Timestamp); err != nil {
			return nil, err
		}
	}

	// 评价生成失败只记录日志
	switch event.EventType {
	case model.EventMissionRatingSubmitted:
		logCaptureOutcome("rating", event.AttemptID, s.Reviews.CaptureRating(ctx, event.AttemptID, data))
	case model.EventMissionQuitted:
		logCaptureOutcome("quit", event.AttemptID, s.Reviews.CaptureQuitReason(ctx, event.AttemptID, data))
	}

	return event, nil
}

func (s *EventService) EventsByAttempt(ctx context.Context, attemptID string) ([]model.MissionEvent, error) {
	if _, err := s.Missions.Get(ctx, attemptID); err != nil {
		return nil, err
	}
	return s.EventRepo.FindByAttemptIDOrderByTimestamp(ctx, attemptID)
}

func (s *EventService) CountByAttempt(ctx context.Context, attemptID string) (int64, error) {
	return s.EventRepo.CountByAttemptID(ctx, attemptID)
}

func validateEnvelope(env EventEnvelope) error {
	if strings.TrimSpace(env.AttemptID) == "" {
		return fmt.Errorf("%w: attemptId is required", util.ErrInvalidEvent)
	}
	if strings.TrimSpace(env.EventType) == "" {
		return fmt.Errorf("%w: eventType is required", util.ErrInvalidEvent)
	}
	if strings.TrimSpace(env.SessionID) == "" {
		return fmt.Errorf("%w: sessionId is required", util.ErrInvalidEvent)
	}
	return nil
}

// metricEventType 避免任意事件类型撑爆指标基数
func metricEventType(eventType string) string {
	switch eventType {
	case model.EventMissionCompleted, model.EventMissionQuitted, model.EventMissionExpired,
		model.EventMissionRatingSubmitted, model.EventPortfolioCreationStep, model.EventPageView:
		return eventType
	}
	return "other"
}
