package controller

import (
	"mission_backend/internal/service"
	"mission_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AnalyticsController struct {
	AnalyticsService *service.AnalyticsService
}

func NewAnalyticsController(analyticsService *service.AnalyticsService) *AnalyticsController {
	return &AnalyticsController{AnalyticsService: analyticsService}
}

// GetMissionAnalytics godoc
// @Summary 任务类型统计
// @Description 完成率、平均用时、平均评分和评价数
// @Tags 统计
// @Produce json
// @Param missionType path string true "任务类型 PORTFOLIO/VOCABULARY"
// @Success 200 {object} util.Response{data=model.MissionAnalytics} "成功"
// @Failure 400 {object} util.Response "任务类型不合法"
// @Router /api/analytics/missions/{missionType} [get]
func (ctrl *AnalyticsController) GetMissionAnalytics(c *gin.Context) {
	result, err := ctrl.AnalyticsService.MissionAnalytics(c.Request.Context(), c.Param("missionType"))
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, result)
}
