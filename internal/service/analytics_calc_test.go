package service

import (
	"testing"
	"time"

	"mission_backend/internal/model"
	"mission_backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attemptsWithStatuses(counts map[model.MissionStatus]int) []model.MissionAttempt {
	var attempts []model.MissionAttempt
	for status, n := range counts {
		for i := 0; i < n; i++ {
			attempts = append(attempts, model.MissionAttempt{Status: status})
		}
	}
	return attempts
}

func TestCompletionRate(t *testing.T) {
	attempts := attemptsWithStatuses(map[model.MissionStatus]int{
		model.StatusCompleted:  7,
		model.StatusQuitted:    2,
		model.StatusInProgress: 1,
	})
	assert.Equal(t, 77.78, CompletionRate(attempts))

	// 没有已结束的尝试
	assert.Equal(t, 0.0, CompletionRate(attemptsWithStatuses(map[model.MissionStatus]int{model.StatusInProgress: 3})))
	assert.Equal(t, 0.0, CompletionRate(nil))

	// EXPIRED 不计入分母
	attempts = attemptsWithStatuses(map[model.MissionStatus]int{
		model.StatusCompleted: 1,
		model.StatusExpired:   5,
	})
	assert.Equal(t, 100.0, CompletionRate(attempts))
}

func TestAverageCompletedDuration(t *testing.T) {
	attempts := []model.MissionAttempt{
		{Status: model.StatusCompleted, TotalDuration: testutil.FloatPtr(60)},
		{Status: model.StatusCompleted, TotalDuration: testutil.FloatPtr(90.5)},
		{Status: model.StatusCompleted},
		{Status: model.StatusQuitted, TotalDuration: testutil.FloatPtr(1000)},
	}
	assert.Equal(t, 75.25, AverageCompletedDuration(attempts))
	assert.Equal(t, 0.0, AverageCompletedDuration(nil))
}

func TestAverageRating(t *testing.T) {
	reviews := []model.Review{
		{Rating: testutil.IntPtr(5)},
		{Rating: testutil.IntPtr(4)},
		{Rating: testutil.IntPtr(4)},
		{RatingText: model.QuitRatingText},
	}
	assert.Equal(t, 4.33, AverageRating(reviews))
	assert.Equal(t, 0.0, AverageRating([]model.Review{{RatingText: model.QuitRatingText}}))
}

func TestHourBucket(t *testing.T) {
	ts := time.Date(2024, 3, 1, 14, 5, 0, 0, time.UTC)
	assert.Equal(t, 12, HourBucket(ts, time.UTC))
	assert.Equal(t, "12:00-15:00", hourRangeLabel(HourBucket(ts, time.UTC)))
	assert.Equal(t, 0, HourBucket(time.Date(2024, 3, 1, 2, 59, 59, 0, time.UTC), nil))
	assert.Equal(t, 21, HourBucket(time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC), time.UTC))

	// 区间按配置的时区计算
	tokyo := time.FixedZone("JST", 9*3600)
	assert.Equal(t, 21, HourBucket(ts, tokyo))
}

func TestHourlyDistribution(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	attempts := []model.MissionAttempt{
		{StartTime: day.Add(14 * time.Hour), Status: model.StatusCompleted},
		{StartTime: day.Add(13 * time.Hour), Status: model.StatusQuitted},
		{StartTime: day.Add(12 * time.Hour), Status: model.StatusInProgress},
		{StartTime: day.Add(12 * time.Hour), Status: model.StatusCompleted},
		{StartTime: day.Add(1 * time.Hour), Status: model.StatusCompleted},
	}

	buckets := HourlyDistribution(attempts, time.UTC)
	require.Len(t, buckets, 8)

	for i, b := range buckets {
		assert.Equal(t, i*3, b.HourRangeStart)
	}
	assert.Equal(t, "00:00-03:00", buckets[0].HourRange)
	assert.Equal(t, "21:00-24:00", buckets[7].HourRange)

	assert.Equal(t, int64(1), buckets[0].TotalAttempts)
	assert.Equal(t, 100.0, buckets[0].CompletionRate)

	assert.Equal(t, int64(4), buckets[4].TotalAttempts)
	assert.Equal(t, int64(2), buckets[4].CompletedCount)
	assert.Equal(t, 50.0, buckets[4].CompletionRate)

	assert.Equal(t, int64(0), buckets[6].TotalAttempts)
	assert.Equal(t, 0.0, buckets[6].CompletionRate)
}

func TestRatingHistogram(t *testing.T) {
	reviews := []model.Review{
		{Rating: testutil.IntPtr(5), HasFeedback: true},
		{Rating: testutil.IntPtr(5)},
		{Rating: testutil.IntPtr(3)},
		{Rating: testutil.IntPtr(1), HasFeedback: true},
		{RatingText: model.QuitRatingText, HasFeedback: true},
	}
	d := RatingHistogram(reviews)
	assert.Equal(t, int64(2), d.Five)
	assert.Equal(t, int64(0), d.Four)
	assert.Equal(t, int64(1), d.Three)
	assert.Equal(t, int64(1), d.One)
	assert.Equal(t, int64(3), d.WithFeedback)
	assert.Equal(t, int64(5), d.Total)
	assert.Equal(t, int64(1), countQuitReasons(reviews))
}
