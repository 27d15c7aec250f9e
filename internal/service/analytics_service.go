package service

import (
	"context"
	"time"

	"mission_backend/internal/model"
	"mission_backend/internal/repository"
	"mission_backend/internal/util"
	"mission_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type AnalyticsService struct {
	AttemptRepo *repository.MissionAttemptRepository
	EventRepo   *repository.MissionEventRepository
	ReviewRepo  *repository.ReviewRepository
	Location    *time.Location
	RecentLimit int
}

func NewAnalyticsService(
	attemptRepo *repository.MissionAttemptRepository,
	eventRepo *repository.MissionEventRepository,
	reviewRepo *repository.ReviewRepository,
	loc *time.Location,
	recentLimit int,
) *AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	if recentLimit <= 0 {
		recentLimit = 20
	}
	return &AnalyticsService{
		AttemptRepo: attemptRepo,
		EventRepo:   eventRepo,
		ReviewRepo:  reviewRepo,
		Location:    loc,
		RecentLimit: recentLimit,
	}
}

// MissionAnalytics 单个任务类型的统计
func (s *AnalyticsService) MissionAnalytics(ctx context.Context, missionType string) (*model.MissionAnalytics, error) {
	mt, err := model.ParseMissionType(missionType)
	if err != nil {
		return nil, err
	}

	attempts, err := s.AttemptRepo.FindAll(ctx, mt)
	if err != nil {
		return nil, err
	}
	reviews, err := s.ReviewRepo.List(ctx, model.ReviewFilter{MissionType: mt}, 0)
	if err != nil {
		return nil, err
	}

	counts := countStatuses(attempts)
	avgDuration := AverageCompletedDuration(attempts)
	result := &model.MissionAnalytics{
		MissionType:          mt,
		MissionName:          mt.DisplayName(),
		TotalAttempts:        counts.total,
		CompletedAttempts:    counts.completed,
		QuittedAttempts:      counts.quitted,
		CompletionRate:       CompletionRate(attempts),
		AvgDuration:          avgDuration,
		AvgDurationFormatted: util.FormatSeconds(avgDuration),
		AvgRating:            AverageRating(reviews),
		ReviewCount:          int64(len(reviews)),
	}

	logger.Log.Info("Mission analytics calculated",
		zap.String("missionType", string(mt)),
		zap.Int64("totalAttempts", result.TotalAttempts),
		zap.Float64("completionRate", result.CompletionRate),
		zap.Float64("avgDuration", result.AvgDuration),
		zap.Float64("avgRating", result.AvgRating),
	)
	return result, nil
}

func (s *AnalyticsService) Overview(ctx context.Context) (*model.OverviewStats, error) {
	var (
		attempts []model.MissionAttempt
		reviews  []model.Review
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		attempts, err = s.AttemptRepo.FindAll(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		reviews, err = s.ReviewRepo.List(gctx, model.ReviewFilter{}, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := countStatuses(attempts)
	avgDuration := AverageCompletedDuration(attempts)
	return &model.OverviewStats{
		TotalAttempts:              counts.total,
		CompletedAttempts:          counts.completed,
		QuittedAttempts:            counts.quitted,
		InProgressAttempts:         counts.inProgress,
		OverallCompletionRate:      CompletionRate(attempts),
		AvgCompletionTime:          avgDuration,
		AvgCompletionTimeFormatted: util.FormatSeconds(avgDuration),
		AvgRating:                  AverageRating(reviews),
		TotalReviews:               int64(len(reviews)),
	}, nil
}

// CompletionRates 每个任务类型一行，没有数据的类型也会返回
func (s *AnalyticsService) CompletionRates(ctx context.Context) ([]model.CompletionRateRow, error) {
	attempts, err := s.AttemptRepo.FindAll(ctx, "")
	if err != nil {
		return nil, err
	}

	byType := make(map[model.MissionType][]model.MissionAttempt)
	for _, a := range attempts {
		byType[a.MissionType] = append(byType[a.MissionType], a)
	}

	rows := make([]model.CompletionRateRow, 0, len(model.MissionTypes()))
	for _, mt := range model.MissionTypes() {
		group := byType[mt]
		counts := countStatuses(group)
		avgDuration := AverageCompletedDuration(group)
		rows = append(rows, model.CompletionRateRow{
			MissionType:          mt,
			MissionName:          mt.DisplayName(),
			TotalAttempts:        counts.total,
			CompletedCount:       counts.completed,
			QuittedCount:         counts.quitted,
			CompletionRate:       CompletionRate(group),
			AvgDuration:          avgDuration,
			AvgDurationFormatted: util.FormatSeconds(avgDuration),
		})
	}
	return rows, nil
}

func (s *AnalyticsService) HourlyDistribution(ctx context.Context) ([]model.HourlyBucket, error) {
	attempts, err := s.AttemptRepo.FindAll(ctx, "")
	if err != nil {
		return nil, err
	}
	return HourlyDistribution(attempts, s.Location), nil
}

func (s *AnalyticsService) RecentAttempts(ctx context.Context, limit int) ([]model.AttemptSummary, error) {
	attempts, err := s.AttemptRepo.FindRecent(ctx, s.limit(limit))
	if err != nil {
		return nil, err
	}
	return summarizeAttempts(ctx, s.EventRepo, s.ReviewRepo, attempts)
}

func (s *AnalyticsService) RecentReviews(ctx context.Context, limit int) ([]model.ReviewSummary, error) {
	reviews, err := s.ReviewRepo.List(ctx, model.ReviewFilter{}, s.limit(limit))
	if err != nil {
		return nil, err
	}
	return summarizeReviews(ctx, s.AttemptRepo, reviews)
}

func (s *AnalyticsService) ReviewStatistics(ctx context.Context) (*model.ReviewStatistics, error) {
	reviews, err := s.ReviewRepo.List(ctx, model.ReviewFilter{}, 0)
	if err != nil {
		return nil, err
	}
	return &model.ReviewStatistics{
		Distribution:  RatingHistogram(reviews),
		AverageRating: AverageRating(reviews),
		QuitReasons:   countQuitReasons(reviews),
	}, nil
}

// Dashboard 并发获取仪表盘各部分数据
func (s *AnalyticsService) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	var d model.Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		overview, err := s.Overview(gctx)
		if err != nil {
			return err
		}
		d.Overview = *overview
		return nil
	})
	g.Go(func() error {
		rows, err := s.CompletionRates(gctx)
		d.CompletionRates = rows
		return err
	})
	g.Go(func() error {
		buckets, err := s.HourlyDistribution(gctx)
		d.HourlyDistribution = buckets
		return err
	})
	g.Go(func() error {
		recent, err := s.RecentAttempts(gctx, s.RecentLimit)
		d.RecentAttempts = recent
		return err
	})
	g.Go(func() error {
		recent, err := s.RecentReviews(gctx, s.RecentLimit)
		d.RecentReviews = recent
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *AnalyticsService) limit(limit int) int {
	if limit <= 0 {
		return s.RecentLimit
	}
	if limit > util.MaxPageSize {
		return util.MaxPageSize
	}
	return limit
}
