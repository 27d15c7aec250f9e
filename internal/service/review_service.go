package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"mission_backend/internal/model"
	"mission_backend/internal/repository"
	"mission_backend/internal/util"
	"mission_backend/pkg/logger"
	"mission_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxRatingTextLength = 20

// CaptureStatus 事件派生评价的结果
type CaptureStatus string

const (
	CaptureCreated         CaptureStatus = "created"
	CaptureSkippedExisting CaptureStatus = "skipped_existing"
	CaptureSkippedInvalid  CaptureStatus = "skipped_invalid"
	CaptureFailed          CaptureStatus = "error"
)

// CaptureOutcome 调用方决定如何处理，事件管道只记录日志
type CaptureOutcome struct {
	Status CaptureStatus
	Review *model.Review
	Reason string
	Err    error
}

func created(r *model.Review) CaptureOutcome {
	return CaptureOutcome{Status: CaptureCreated, Review: r}
}

func skippedInvalid(reason string) CaptureOutcome {
	return CaptureOutcome{Status: CaptureSkippedInvalid, Reason: reason}
}

func skippedExisting() CaptureOutcome {
	return CaptureOutcome{Status: CaptureSkippedExisting, Reason: "review already exists"}
}

func failed(err error) CaptureOutcome {
	return CaptureOutcome{Status: CaptureFailed, Err: err}
}

// SubmitReviewRequest 直接提交评价的请求体
type SubmitReviewRequest struct {
	Rating     int    `json:"rating"`
	RatingText string `json:"ratingText"`
	Feedback   string `json:"feedback"`
	// 以 feedback 是否为空为准
	HasFeedback bool `json:"hasFeedback"`
}

type ReviewService struct {
	ReviewRepo  *repository.ReviewRepository
	AttemptRepo *repository.MissionAttemptRepository
	Missions    *MissionService

	locks attemptLocks
}

func NewReviewService(reviewRepo *repository.ReviewRepository, attemptRepo *repository.MissionAttemptRepository, missions *MissionService) *ReviewService {
	return &ReviewService{
		ReviewRepo:  reviewRepo,
		AttemptRepo: attemptRepo,
		Missions:    missions,
	}
}

// CaptureRating 从 mission_rating_submitted 的数据生成评价，数据不完整时放弃
func (s *ReviewService) CaptureRating(ctx context.Context, attemptID string, data map[string]interface{}) CaptureOutcome {
	payload, ok := model.ParsePayload(model.EventMissionRatingSubmitted, data).(model.RatingPayload)
	if !ok {
		return s.record("rating", skippedInvalid("unexpected payload"))
	}
	if payload.Rating == nil {
		return s.record("rating", skippedInvalid("rating is missing"))
	}
	if payload.RatingText == nil || strings.TrimSpace(*payload.RatingText) == "" {
		return s.record("rating", skippedInvalid("ratingText is missing"))
	}

	var feedback string
	if payload.Feedback != nil {
		feedback = *payload.Feedback
	}
	if err := validateRating(*payload.Rating, *payload.RatingText); err != nil {
		return s.record("rating", skippedInvalid(err.Error()))
	}

	review := newReview(attemptID, payload.Rating, *payload.RatingText, feedback)
	return s.record("rating", s.createOnce(ctx, review))
}

// CaptureQuitReason 把放弃原因记录为一条没有评分的评价
func (s *ReviewService) CaptureQuitReason(ctx context.Context, attemptID string, data map[string]interface{}) CaptureOutcome {
	payload, ok := model.ParsePayload(model.EventMissionQuitted, data).(model.QuitPayload)
	if !ok || strings.TrimSpace(payload.Reason) == "" {
		return s.record("quit", skippedInvalid("reason is missing"))
	}

	review := newReview(attemptID, nil, model.QuitRatingText, payload.Reason)
	return s.record("quit", s.createOnce(ctx, review))
}

// SubmitExplicit 直接提交评价，校验失败、尝试不存在或重复提交都会返回错误
func (s *ReviewService) SubmitExplicit(ctx context.Context, attemptID string, req SubmitReviewRequest) (*model.Review, error) {
	if err := validateRating(req.Rating, req.RatingText); err != nil {
		return nil, err
	}
	if _, err := s.Missions.Get(ctx, attemptID); err != nil {
		return nil, err
	}

	rating := req.Rating
	review := newReview(attemptID, &rating, req.RatingText, req.Feedback)
	outcome := s.record("explicit", s.createOnce(ctx, review))
	switch outcome.Status {
	case CaptureCreated:
		return outcome.Review, nil
	case CaptureSkippedExisting:
		return nil, fmt.Errorf("%w for attempt %s", util.ErrReviewExists, attemptID)
	default:
		return nil, outcome.Err
	}
}

func (s *ReviewService) Get(ctx context.Context, attemptID string) (*model.Review, error) {
	review, err := s.ReviewRepo.FindByAttemptID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w for attempt %s", util.ErrReviewNotFound, attemptID)
		}
		return nil, err
	}
	return review, nil
}

// List 按提交时间倒序，附带任务名称和用时
func (s *ReviewService) List(ctx context.Context, filter model.ReviewFilter, limit int) ([]model.ReviewSummary, error) {
	reviews, err := s.ReviewRepo.List(ctx, filter, limit)
	if err != nil {
		return nil, err
	}
	return summarizeReviews(ctx, s.AttemptRepo, reviews)
}

// createOnce 同一尝试的存在检查和写入在锁内完成，唯一索引兜底多实例并发
func (s *ReviewService) createOnce(ctx context.Context, review *model.Review) CaptureOutcome {
	unlock := s.locks.lock(review.AttemptID)
	defer unlock()

	exists, err := s.ReviewRepo.ExistsByAttemptID(ctx, review.AttemptID)
	if err != nil {
		return failed(err)
	}
	if exists {
		return skippedExisting()
	}

	if err := s.ReviewRepo.Create(ctx, review); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return skippedExisting()
		}
		return failed(err)
	}
	return created(review)
}

func (s *ReviewService) record(source string, outcome CaptureOutcome) CaptureOutcome {
	monitoring.ReviewsCaptured.WithLabelValues(source, string(outcome.Status)).Inc()
	return outcome
}

func validateRating(rating int, ratingText string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", util.ErrInvalidArgument)
	}
	ratingText = strings.TrimSpace(ratingText)
	if ratingText == "" {
		return fmt.Errorf("%w: ratingText is required", util.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(ratingText) > maxRatingTextLength {
		return fmt.Errorf("%w: ratingText must be at most %d characters", util.ErrInvalidArgument, maxRatingTextLength)
	}
	return nil
}

// newReview hasFeedback 只由 feedback 是否为空决定
func newReview(attemptID string, rating *int, ratingText, feedback string) *model.Review {
	review := &model.Review{
		ReviewID:    util.NewID(util.ReviewIDPrefix),
		AttemptID:   attemptID,
		Rating:      rating,
		RatingText:  strings.TrimSpace(ratingText),
		SubmittedAt: time.Now().UTC(),
	}
	if strings.TrimSpace(feedback) != "" {
		review.Feedback = &feedback
		review.HasFeedback = true
	}
	return review
}

func logCaptureOutcome(kind, attemptID string, outcome CaptureOutcome) {
	fields := []zap.Field{
		zap.String("attemptId", attemptID),
		zap.String("capture", kind),
		zap.String("outcome", string(outcome.Status)),
	}
	switch outcome.Status {
	case CaptureCreated:
		logger.Log.Info("Review captured from event", append(fields, zap.String("reviewId", outcome.Review.ReviewID))...)
	case CaptureFailed:
		logger.Log.Error("Review capture failed", append(fields, zap.Error(outcome.Err))...)
	default:
		logger.Log.Debug("Review capture skipped", append(fields, zap.String("reason", outcome.Reason))...)
	}
}

func summarizeReviews(ctx context.Context, attemptRepo *repository.MissionAttemptRepository, reviews []model.Review) ([]model.ReviewSummary, error) {
	ids := make([]string, 0, len(reviews))
	for _, rv := range reviews {
		ids = append(ids, rv.AttemptID)
	}
	attempts, err := attemptRepo.FindByAttemptIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.ReviewSummary, 0, len(reviews))
	for _, rv := range reviews {
		summary := model.ReviewSummary{
			ReviewID:    rv.ReviewID,
			AttemptID:   rv.AttemptID,
			Rating:      rv.Rating,
			RatingText:  rv.RatingText,
			Feedback:    rv.Feedback,
			HasFeedback: rv.HasFeedback,
			SubmittedAt: rv.SubmittedAt,
		}
		if a, ok := attempts[rv.AttemptID]; ok {
			summary.MissionType = a.MissionType
			summary.MissionName = a.MissionName
			summary.MissionDuration = a.TotalDuration
		}
		summary.MissionDurationFormatted = util.FormatDuration(summary.MissionDuration)
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
