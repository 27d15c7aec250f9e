package service

import (
	"context"
	"testing"
	"time"

	"mission_backend/internal/model"
	"mission_backend/internal/repository"
	"mission_backend/internal/testutil"
	"mission_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedAnalyticsData(t *testing.T, db *gorm.DB) {
	t.Helper()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		a := testutil.SeedAttempt(t, db, testutil.AttemptSeed{
			Status:    model.StatusCompleted,
			StartTime: day.Add(14*time.Hour + time.Duration(i)*time.Minute),
			Duration:  testutil.FloatPtr(float64(60 * (i + 1))),
		})
		if i < 3 {
			testutil.SeedReview(t, db, a.AttemptID, testutil.IntPtr(5-i), "")
		}
	}
	for i := 0; i < 2; i++ {
		a := testutil.SeedAttempt(t, db, testutil.AttemptSeed{
			Status:    model.StatusQuitted,
			StartTime: day.Add(2 * time.Hour),
		})
		testutil.SeedReview(t, db, a.AttemptID, nil, "too hard")
	}
	testutil.SeedAttempt(t, db, testutil.AttemptSeed{StartTime: day.Add(22 * time.Hour)})
	testutil.SeedAttempt(t, db, testutil.AttemptSeed{
		MissionType: model.MissionTypePortfolio,
		Status:      model.StatusCompleted,
		StartTime:   day.Add(9 * time.Hour),
		Duration:    testutil.FloatPtr(405),
	})
}

func newTestAnalytics(t *testing.T) (*AnalyticsService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	seedAnalyticsData(t, db)
	return NewAnalyticsService(
		repository.NewMissionAttemptRepository(db),
		repository.NewMissionEventRepository(db),
		repository.NewReviewRepository(db),
		time.UTC,
		5,
	), db
}

func TestMissionAnalytics(t *testing.T) {
	svc, _ := newTestAnalytics(t)
	ctx := context.Background()

	stats, err := svc.MissionAnalytics(ctx, "vocabulary")
	require.NoError(t, err)
	assert.Equal(t, model.MissionTypeVocabulary, stats.MissionType)
	assert.Equal(t, "Vocabulary Mission", stats.MissionName)
	assert.Equal(t, int64(10), stats.TotalAttempts)
	assert.Equal(t, int64(7), stats.CompletedAttempts)
	assert.Equal(t, int64(2), stats.QuittedAttempts)
	assert.Equal(t, 77.78, stats.CompletionRate)
	assert.Equal(t, 240.0, stats.AvgDuration)
	assert.Equal(t, "4m", stats.AvgDurationFormatted)
	// (5 + 4 + 3) / 3，放弃原因不计入
	assert.Equal(t, 4.0, stats.AvgRating)
	assert.Equal(t, int64(5), stats.ReviewCount)

	stats, err = svc.MissionAnalytics(ctx, "PORTFOLIO")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalAttempts)
	assert.Equal(t, 100.0, stats.CompletionRate)
	assert.Equal(t, "6m 45s", stats.AvgDurationFormatted)
	assert.Equal(t, 0.0, stats.AvgRating)

	_, err = svc.MissionAnalytics(ctx, "CHESS")
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
}

func TestMissionAnalyticsEmpty(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewAnalyticsService(
		repository.NewMissionAttemptRepository(db),
		repository.NewMissionEventRepository(db),
		repository.NewReviewRepository(db),
		nil,
		0,
	)

	stats, err := svc.MissionAnalytics(context.Background(), "PORTFOLIO")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalAttempts)
	assert.Equal(t, 0.0, stats.CompletionRate)
	assert.Equal(t, "-", stats.AvgDurationFormatted)
	assert.Equal(t, 20, svc.RecentLimit)
}

func TestOverviewAndCompletionRates(t *testing.T) {
	svc, _ := newTestAnalytics(t)
	ctx := context.Background()

	overview, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(11), overview.TotalAttempts)
	assert.Equal(t, int64(8), overview.CompletedAttempts)
	assert.Equal(t, int64(2), overview.QuittedAttempts)
	assert.Equal(t, int64(1), overview.InProgressAttempts)
	assert.Equal(t, 80.0, overview.OverallCompletionRate)
	assert.Equal(t, int64(5), overview.TotalReviews)
	assert.Equal(t, 4.0, overview.AvgRating)

	rows, err := svc.CompletionRates(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.MissionTypePortfolio, rows[0].MissionType)
	assert.Equal(t, int64(1), rows[0].CompletedCount)
	assert.Equal(t, model.MissionTypeVocabulary, rows[1].MissionType)
	assert.Equal(t, 77.78, rows[1].CompletionRate)
	assert.Equal(t, int64(2), rows[1].QuittedCount)
}

func TestDashboard(t *testing.T) {
	svc, _ := newTestAnalytics(t)

	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(11), d.Overview.TotalAttempts)
	assert.Len(t, d.CompletionRates, 2)
	require.Len(t, d.HourlyDistribution, 8)
	assert.Equal(t, int64(7), d.HourlyDistribution[4].TotalAttempts)
	assert.Equal(t, int64(2), d.HourlyDistribution[0].TotalAttempts)
	assert.Equal(t, 0.0, d.HourlyDistribution[0].CompletionRate)
	assert.Equal(t, int64(1), d.HourlyDistribution[7].TotalAttempts)

	require.Len(t, d.RecentAttempts, 5)
	assert.Equal(t, model.StatusInProgress, d.RecentAttempts[0].Status)
	assert.Len(t, d.RecentReviews, 5)
}

func TestReviewStatistics(t *testing.T) {
	svc, _ := newTestAnalytics(t)

	stats, err := svc.ReviewStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Distribution.Five)
	assert.Equal(t, int64(1), stats.Distribution.Four)
	assert.Equal(t, int64(1), stats.Distribution.Three)
	assert.Equal(t, int64(2), stats.Distribution.WithFeedback)
	assert.Equal(t, int64(5), stats.Distribution.Total)
	assert.Equal(t, int64(2), stats.QuitReasons)
	assert.Equal(t, 4.0, stats.AverageRating)
}

func TestRecentLimitIsClamped(t *testing.T) {
	svc, _ := newTestAnalytics(t)
	ctx := context.Background()

	recent, err := svc.RecentAttempts(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	recent, err = svc.RecentAttempts(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, recent, 11)
	assert.Equal(t, 100, svc.limit(1000))
	assert.Equal(t, 5, svc.limit(0))
}
