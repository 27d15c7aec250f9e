package model

import "time"

// StartMissionResult 开始任务的返回值
type StartMissionResult struct {
	AttemptID   string      `json:"attemptId"`
	MissionType MissionType `json:"missionType"`
	MissionName string      `json:"missionName"`
	StartTime   time.Time   `json:"startTime"`
	Status      string      `json:"status"`
	WSURL       string      `json:"wsUrl"`
	ExpiresIn   int64       `json:"expiresIn"`
}

// AttemptFilter 尝试列表的筛选条件，零值表示不筛选
type AttemptFilter struct {
	MissionType MissionType
	Status      MissionStatus
	SessionID   string
	From        *time.Time
	To          *time.Time
}

// ReviewFilter 评价列表的筛选条件
type ReviewFilter struct {
	MissionType MissionType
	Rating      *int
	HasFeedback *bool
}

// AttemptSummary 列表中展示的尝试
type AttemptSummary struct {
	AttemptID         string        `json:"attemptId"`
	SessionID         string        `json:"sessionId"`
	MissionType       MissionType   `json:"missionType"`
	MissionName       string        `json:"missionName"`
	StartTime         time.Time     `json:"startTime"`
	EndTime           *time.Time    `json:"endTime,omitempty"`
	TotalDuration     *float64      `json:"totalDuration,omitempty"`
	DurationFormatted string        `json:"durationFormatted"`
	Status            MissionStatus `json:"status"`
	EventCount        int64         `json:"eventCount"`
	Rating            *int          `json:"rating,omitempty"`
	RatingText        string        `json:"ratingText,omitempty"`
}

// MissionDetail 单个尝试及其评价
type MissionDetail struct {
	AttemptSummary
	Events []MissionEvent `json:"events"`
	Review *Review        `json:"review,omitempty"`
}

// MissionAnalytics 单个任务类型的统计
type MissionAnalytics struct {
	MissionType       MissionType `json:"missionType"`
	MissionName       string      `json:"missionName"`
	TotalAttempts     int64       `json:"totalAttempts"`
	CompletedAttempts int64       `json:"completedAttempts"`
	QuittedAttempts   int64       `json:"quittedAttempts"`
	CompletionRate    float64     `json:"completionRate"`
	// 秒，只统计 COMPLETED
	AvgDuration          float64 `json:"avgDuration"`
	AvgDurationFormatted string  `json:"avgDurationFormatted"`
	AvgRating            float64 `json:"avgRating"`
	ReviewCount          int64   `json:"reviewCount"`
}

// OverviewStats 仪表盘顶部的汇总数据
type OverviewStats struct {
	TotalAttempts              int64   `json:"totalAttempts"`
	CompletedAttempts          int64   `json:"completedAttempts"`
	QuittedAttempts            int64   `json:"quittedAttempts"`
	InProgressAttempts         int64   `json:"inProgressAttempts"`
	OverallCompletionRate      float64 `json:"overallCompletionRate"`
	AvgCompletionTime          float64 `json:"avgCompletionTime"`
	AvgCompletionTimeFormatted string  `json:"avgCompletionTimeFormatted"`
	AvgRating                  float64 `json:"avgRating"`
	TotalReviews               int64   `json:"totalReviews"`
}

type CompletionRateRow struct {
	MissionType          MissionType `json:"missionType"`
	MissionName          string      `json:"missionName"`
	TotalAttempts        int64       `json:"totalAttempts"`
	CompletedCount       int64       `json:"completedCount"`
	QuittedCount         int64       `json:"quittedCount"`
	CompletionRate       float64     `json:"completionRate"`
	AvgDuration          float64     `json:"avgDuration"`
	AvgDurationFormatted string      `json:"avgDurationFormatted"`
}

// HourlyBucket 3 小时一档，HourRange 形如 "12:00-15:00"
type HourlyBucket struct {
	HourRangeStart int     `json:"hourRangeStart"`
	HourRange      string  `json:"hourRange"`
	TotalAttempts  int64   `json:"totalAttempts"`
	CompletedCount int64   `json:"completedCount"`
	CompletionRate float64 `json:"completionRate"`
}

type RatingDistribution struct {
	Five         int64 `json:"five"`
	Four         int64 `json:"four"`
	Three        int64 `json:"three"`
	Two          int64 `json:"two"`
	One          int64 `json:"one"`
	WithFeedback int64 `json:"withFeedback"`
	Total        int64 `json:"total"`
}

// ReviewSummary 评价列表中的一行，附带所属尝试的信息
type ReviewSummary struct {
	ReviewID                 string      `json:"reviewId"`
	AttemptID                string      `json:"attemptId"`
	MissionType              MissionType `json:"missionType"`
	MissionName              string      `json:"missionName"`
	Rating                   *int        `json:"rating"`
	RatingText               string      `json:"ratingText"`
	Feedback                 *string     `json:"feedback,omitempty"`
	HasFeedback              bool        `json:"hasFeedback"`
	SubmittedAt              time.Time   `json:"submittedAt"`
	MissionDuration          *float64    `json:"missionDuration,omitempty"`
	MissionDurationFormatted string      `json:"missionDurationFormatted"`
}

type ReviewStatistics struct {
	Distribution  RatingDistribution `json:"distribution"`
	AverageRating float64            `json:"averageRating"`
	QuitReasons   int64              `json:"quitReasons"`
}

// Dashboard 仪表盘首页的聚合数据
type Dashboard struct {
	Overview           OverviewStats       `json:"overview"`
	CompletionRates    []CompletionRateRow `json:"completionRates"`
	HourlyDistribution []HourlyBucket      `json:"hourlyDistribution"`
	RecentAttempts     []AttemptSummary    `json:"recentAttempts"`
	RecentReviews      []ReviewSummary     `json:"recentReviews"`
}

// TimelineEntry 回放中的一个事件
type TimelineEntry struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
	// 距上一个事件的整秒数，第一个事件为 nil
	GapSeconds *int64 `json:"gapSeconds"`
	TimelineFields
	DataPreview string                 `json:"dataPreview"`
	Data        map[string]interface{} `json:"data"`
}

// StepDetail 作品集创建流程中的一步
type StepDetail struct {
	EventID       string   `json:"eventId"`
	Step          int      `json:"step"`
	StepName      string   `json:"stepName"`
	SelectedLabel string   `json:"selectedLabel,omitempty"`
	TimeOnStep    *float64 `json:"timeOnStep,omitempty"`
	AverageTime   *float64 `json:"averageTime,omitempty"`
	// 超过该步骤平均耗时的两倍
	IsSlow     bool   `json:"isSlow"`
	Annotation string `json:"annotation,omitempty"`
}

// AttemptDetail 单个尝试的回放
type AttemptDetail struct {
	Attempt           AttemptSummary  `json:"attempt"`
	Review            *Review         `json:"review,omitempty"`
	Timeline          []TimelineEntry `json:"timeline"`
	StepDetails       []StepDetail    `json:"stepDetails,omitempty"`
	DurationFormatted string          `json:"durationFormatted"`
}
