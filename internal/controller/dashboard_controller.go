package controller

import (
	"fmt"
	"strconv"

	"mission_backend/internal/model"
	"mission_backend/internal/service"
	"mission_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DashboardController struct {
	AnalyticsService *service.AnalyticsService
	ReviewService    *service.ReviewService
	TimelineService  *service.TimelineService
}

func NewDashboardController(analyticsService *service.AnalyticsService, reviewService *service.ReviewService, timelineService *service.TimelineService) *DashboardController {
	return &DashboardController{
		AnalyticsService: analyticsService,
		ReviewService:    reviewService,
		TimelineService:  timelineService,
	}
}

// GetDashboard godoc
// @Summary 仪表盘首页
// @Description 汇总、各任务完成率、时段分布、最近尝试和最近评价
// @Tags 仪表盘
// @Produce json
// @Success 200 {object} util.Response{data=model.Dashboard} "成功"
// @Router /api/dashboard [get]
func (ctrl *DashboardController) GetDashboard(c *gin.Context) {
	dashboard, err := ctrl.AnalyticsService.Dashboard(c.Request.Context())
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, dashboard)
}

// GetOverview godoc
// @Summary 汇总统计
// @Tags 仪表盘
// @Produce json
// @Success 200 {object} util.Response{data=model.OverviewStats} "成功"
// @Router /api/dashboard/overview [get]
func (ctrl *DashboardController) GetOverview(c *gin.Context) {
	overview, err := ctrl.AnalyticsService.Overview(c.Request.Context())
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, overview)
}

// GetCompletionRates godoc
// @Summary 各任务完成率
// @Tags 仪表盘
// @Produce json
// @Success 200 {object} util.Response{data=[]model.CompletionRateRow} "成功"
// @Router /api/dashboard/completion-rates [get]
func (ctrl *DashboardController) GetCompletionRates(c *gin.Context) {
	rows, err := ctrl.AnalyticsService.CompletionRates(c.Request.Context())
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, rows)
}

// GetHourlyDistribution godoc
// @Summary 开始时间的时段分布
// @Tags 仪表盘
// @Produce json
// @Success 200 {object} util.Response{data=[]model.HourlyBucket} "成功"
// @Router /api/dashboard/hourly-distribution [get]
func (ctrl *DashboardController) GetHourlyDistribution(c *gin.Context) {
	buckets, err := ctrl.AnalyticsService.HourlyDistribution(c.Request.Context())
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, buckets)
}

// GetRecentAttempts godoc
// @Summary 最近的尝试
// @Tags 仪表盘
// @Produce json
// @Param limit query int false "数量" default(20)
// @Success 200 {object} util.Response{data=[]model.AttemptSummary} "成功"
// @Router /api/dashboard/recent-attempts [get]
func (ctrl *DashboardController) GetRecentAttempts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	attempts, err := ctrl.AnalyticsService.RecentAttempts(c.Request.Context(), limit)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, attempts)
}

// GetRecentReviews godoc
// @Summary 最近的评价
// @Tags 仪表盘
// @Produce json
// @Param limit query int false "数量" default(20)
// @Success 200 {object} util.Response{data=[]model.ReviewSummary} "成功"
// @Router /api/dashboard/recent-reviews [get]
func (ctrl *DashboardController) GetRecentReviews(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	reviews, err := ctrl.AnalyticsService.RecentReviews(c.Request.Context(), limit)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, reviews)
}

// GetAttemptDetail godoc
// @Summary 尝试回放
// @Description 时间线以及作品集任务每一步的详情
// @Tags 仪表盘
// @Produce json
// @Param attemptId path string true "尝试 ID"
// @Success 200 {object} util.Response{data=model.AttemptDetail} "成功"
// @Failure 404 {object} util.Response "尝试不存在"
// @Router /api/dashboard/attempts/{attemptId} [get]
func (ctrl *DashboardController) GetAttemptDetail(c *gin.Context) {
	detail, err := ctrl.TimelineService.AttemptDetail(c.Request.Context(), c.Param("attemptId"))
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, detail)
}

// GetReviews godoc
// @Summary 评价列表
// @Tags 仪表盘
// @Produce json
// @Param rating query int false "评分"
// @Param missionType query string false "任务类型"
// @Param hasFeedback query bool false "只看有文字反馈的评价"
// @Success 200 {object} util.Response{data=[]model.ReviewSummary} "成功"
// @Router /api/dashboard/reviews [get]
func (ctrl *DashboardController) GetReviews(c *gin.Context) {
	filter, err := parseReviewFilter(c)
	if err != nil {
		util.HandleError(c, err)
		return
	}

	reviews, err := ctrl.ReviewService.List(c.Request.Context(), filter, 0)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, reviews)
}

// GetReviewStatistics godoc
// @Summary 评价统计
// @Tags 仪表盘
// @Produce json
// @Success 200 {object} util.Response{data=model.ReviewStatistics} "成功"
// @Router /api/dashboard/reviews/statistics [get]
func (ctrl *DashboardController) GetReviewStatistics(c *gin.Context) {
	stats, err := ctrl.AnalyticsService.ReviewStatistics(c.Request.Context())
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, stats)
}

func parseReviewFilter(c *gin.Context) (model.ReviewFilter, error) {
	var filter model.ReviewFilter
	rating, err := util.ParseOptionalInt(c.Query("rating"))
	if err != nil {
		return filter, fmt.Errorf("%w: rating must be a number", util.ErrInvalidArgument)
	}
	filter.Rating = rating

	if v := c.Query("missionType"); v != "" {
		mt, err := model.ParseMissionType(v)
		if err != nil {
			return filter, err
		}
		filter.MissionType = mt
	}

	// 只支持筛选有反馈的评价
	if v := c.Query("hasFeedback"); v != "" {
		hasFeedback, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("%w: hasFeedback must be a boolean", util.ErrInvalidArgument)
		}
		if hasFeedback {
			filter.HasFeedback = &hasFeedback
		}
	}
	return filter, nil
}
