package controller

import (
	"fmt"
	"time"

	"mission_backend/internal/model"
	"mission_backend/internal/service"
	"mission_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type MissionController struct {
	MissionService  *service.MissionService
	ReviewService   *service.ReviewService
	EventService    *service.EventService
	TimelineService *service.TimelineService
}

func NewMissionController(
	missionService *service.MissionService,
	reviewService *service.ReviewService,
	eventService *service.EventService,
	timelineService *service.TimelineService,
) *MissionController {
	return &MissionController{
		MissionService:  missionService,
		ReviewService:   reviewService,
		EventService:    eventService,
		TimelineService: timelineService,
	}
}

type StartMissionRequest struct {
	SessionID   string          `json:"sessionId" binding:"required"`
	MissionType string          `json:"missionType" binding:"required"`
	Timestamp   model.EventTime `json:"timestamp"`
}

// StartMission godoc
// @Summary 开始任务
// @Description 创建一个进行中的任务尝试，返回 attemptId 和 WebSocket 地址
// @Tags 任务
// @Accept json
// @Produce json
// @Param request body StartMissionRequest true "开始任务请求"
// @Success 200 {object} util.Response{data=model.StartMissionResult} "成功"
// @Failure 400 {object} util.Response "参数错误"
// @Router /api/missions/start [post]
func (ctrl *MissionController) StartMission(c *gin.Context) {
	var req StartMissionRequest
	if err := bindJSON(c, &req, util.ErrInvalidArgument); err != nil {
		util.HandleError(c, err)
		return
	}

	result, err := ctrl.MissionService.Start(c.Request.Context(), req.SessionID, req.MissionType, req.Timestamp.Time)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, result)
}

// ListMissions godoc
// @Summary 任务尝试列表
// @Tags 任务
// @Produce json
// @Param missionType query string false "任务类型 PORTFOLIO/VOCABULARY"
// @Param status query string false "状态"
// @Param sessionId query string false "会话 ID"
// @Param from query string false "开始时间下限 (RFC3339)"
// @Param to query string false "开始时间上限 (RFC3339)"
// @Param page query int false "页码，从 0 开始" default(0)
// @Param size query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/missions [get]
func (ctrl *MissionController) ListMissions(c *gin.Context) {
	filter, err := parseAttemptFilter(c)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	page, size := util.ParsePage(c.Query("page"), c.Query("size"))

	list, total, err := ctrl.MissionService.List(c.Request.Context(), filter, page, size)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, util.PageResponse{List: list, Total: total, Page: page, Size: size})
}

// GetMission godoc
// @Summary 任务尝试详情
// @Tags 任务
// @Produce json
// @Param attemptId path string true "尝试 ID"
// @Success 200 {object} util.Response{data=model.MissionDetail} "成功"
// @Failure 404 {object} util.Response "尝试不存在"
// @Router /api/missions/{attemptId} [get]
func (ctrl *MissionController) GetMission(c *gin.Context) {
	detail, err := ctrl.MissionService.Detail(c.Request.Context(), c.Param("attemptId"))
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, detail)
}

// GetMissionEvents godoc
// @Summary 尝试的事件列表
// @Tags 任务
// @Produce json
// @Param attemptId path string true "尝试 ID"
// @Success 200 {object} util.Response{data=[]model.MissionEvent} "成功"
// @Failure 404 {object} util.Response "尝试不存在"
// @Router /api/missions/{attemptId}/events [get]
func (ctrl *MissionController) GetMissionEvents(c *gin.Context) {
	events, err := ctrl.EventService.EventsByAttempt(c.Request.Context(), c.Param("attemptId"))
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, events)
}

// GetTimeline godoc
// @Summary 尝试的时间线
// @Tags 任务
// @Produce json
// @Param attemptId path string true "尝试 ID"
// @Success 200 {object} util.Response{data=[]model.TimelineEntry} "成功"
// @Failure 404 {object} util.Response "尝试不存在"
// @Router /api/missions/{attemptId}/timeline [get]
func (ctrl *MissionController) GetTimeline(c *gin.Context) {
	timeline, err := ctrl.TimelineService.Reconstruct(c.Request.Context(), c.Param("attemptId"))
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, timeline)
}

// SubmitReview godoc
// @Summary 提交评价
// @Description 每个尝试只能有一条评价
// @Tags 评价
// @Accept json
// @Produce json
// @Param attemptId path string true "尝试 ID"
// @Param request body service.SubmitReviewRequest true "评价"
// @Success 201 {object} util.Response{data=model.Review} "成功"
// @Failure 400 {object} util.Response "参数错误"
// @Failure 404 {object} util.Response "尝试不存在"
// @Failure 409 {object} util.Response "评价已存在"
// @Router /api/missions/{attemptId}/review [post]
func (ctrl *MissionController) SubmitReview(c *gin.Context) {
	var req service.SubmitReviewRequest
	if err := bindJSON(c, &req, util.ErrInvalidArgument); err != nil {
		util.HandleError(c, err)
		return
	}

	review, err := ctrl.ReviewService.SubmitExplicit(c.Request.Context(), c.Param("attemptId"), req)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Created(c, review)
}

// GetReview godoc
// @Summary 获取评价
// @Tags 评价
// @Produce json
// @Param attemptId path string true "尝试 ID"
// @Success 200 {object} util.Response{data=model.Review} "成功"
// @Failure 404 {object} util.Response "评价不存在"
// @Router /api/missions/{attemptId}/review [get]
func (ctrl *MissionController) GetReview(c *gin.Context) {
	review, err := ctrl.ReviewService.Get(c.Request.Context(), c.Param("attemptId"))
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, review)
}

func parseAttemptFilter(c *gin.Context) (model.AttemptFilter, error) {
	var filter model.AttemptFilter
	if v := c.Query("missionType"); v != "" {
		mt, err := model.ParseMissionType(v)
		if err != nil {
			return filter, err
		}
		filter.MissionType = mt
	}
	if v := c.Query("status"); v != "" {
		st, err := model.ParseMissionStatus(v)
		if err != nil {
			return filter, err
		}
		filter.Status = st
	}
	filter.SessionID = c.Query("sessionId")

	for key, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("%w: invalid %s time, expected RFC3339", util.ErrInvalidArgument, key)
		}
		*dst = &t
	}
	return filter, nil
}
