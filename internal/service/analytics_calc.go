package service

import (
	"fmt"
	"time"

	"mission_backend/internal/model"
	"mission_backend/internal/util"
)

const (
	hourBucketSize = 3
	hourBuckets    = 24 / hourBucketSize
)

// statusCounts 各状态的尝试数
type statusCounts struct {
	total      int64
	completed  int64
	quitted    int64
	expired    int64
	inProgress int64
}

func countStatuses(attempts []model.MissionAttempt) statusCounts {
	var c statusCounts
	for _, a := range attempts {
		c.total++
		switch a.Status {
		case model.StatusCompleted:
			c.completed++
		case model.StatusQuitted:
			c.quitted++
		case model.StatusExpired:
			c.expired++
		case model.StatusInProgress:
			c.inProgress++
		}
	}
	return c
}

// percentage 保留两位小数的百分比，total 为 0 时返回 0
func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return util.Round(float64(part)/float64(total)*100, 2)
}

// CompletionRate 完成数 / (完成数 + 放弃数)，EXPIRED 和 IN_PROGRESS 不计入分母
func CompletionRate(attempts []model.MissionAttempt) float64 {
	c := countStatuses(attempts)
	return percentage(c.completed, c.completed+c.quitted)
}

// AverageCompletedDuration 只统计 COMPLETED 且有用时的尝试
func AverageCompletedDuration(attempts []model.MissionAttempt) float64 {
	var (
		sum float64
		n   int
	)
	for _, a := range attempts {
		if a.Status != model.StatusCompleted || a.TotalDuration == nil {
			continue
		}
		sum += *a.TotalDuration
		n++
	}
	if n == 0 {
		return 0
	}
	return util.Round(sum/float64(n), 2)
}

// AverageRating 放弃原因生成的评价没有评分，不参与平均
func AverageRating(reviews []model.Review) float64 {
	var (
		sum int
		n   int
	)
	for _, r := range reviews {
		if r.Rating == nil {
			continue
		}
		sum += *r.Rating
		n++
	}
	if n == 0 {
		return 0
	}
	return util.Round(float64(sum)/float64(n), 2)
}

// HourBucket 所在 3 小时区间的起始小时
func HourBucket(t time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Hour() / hourBucketSize * hourBucketSize
}

func hourRangeLabel(start int) string {
	return fmt.Sprintf("%02d:00-%02d:00", start, start+hourBucketSize)
}

// HourlyDistribution 总是返回 8 个区间，区间内完成率为完成数 / 区间总数
func HourlyDistribution(attempts []model.MissionAttempt, loc *time.Location) []model.HourlyBucket {
	buckets := make([]model.HourlyBucket, hourBuckets)
	for i := range buckets {
		start := i * hourBucketSize
		buckets[i] = model.HourlyBucket{
			HourRangeStart: start,
			HourRange:      hourRangeLabel(start),
		}
	}

	for _, a := range attempts {
		b := &buckets[HourBucket(a.StartTime, loc)/hourBucketSize]
		b.TotalAttempts++
		if a.Status == model.StatusCompleted {
			b.CompletedCount++
		}
	}
	for i := range buckets {
		buckets[i].CompletionRate = percentage(buckets[i].CompletedCount, buckets[i].TotalAttempts)
	}
	return buckets
}

// RatingHistogram 评分 5 到 1 的数量以及有文字反馈的数量
func RatingHistogram(reviews []model.Review) model.RatingDistribution {
	var d model.RatingDistribution
	for _, r := range reviews {
		d.Total++
		if r.HasFeedback {
			d.WithFeedback++
		}
		if r.Rating == nil {
			continue
		}
		switch *r.Rating {
		case 5:
			d.Five++
		case 4:
			d.Four++
		case 3:
			d.Three++
		case 2:
			d.Two++
		case 1:
			d.One++
		}
	}
	return d
}

func countQuitReasons(reviews []model.Review) int64 {
	var n int64
	for i := range reviews {
		if reviews[i].IsQuitReason() {
			n++
		}
	}
	return n
}
