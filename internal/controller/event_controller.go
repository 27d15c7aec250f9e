package controller

import (
	"mission_backend/internal/service"
	"mission_backend/internal/util"
	"mission_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type EventController struct {
	EventService *service.EventService
	Hub          *service.MissionHub
}

func NewEventController(eventService *service.EventService, hub *service.MissionHub) *EventController {
	return &EventController{EventService: eventService, Hub: hub}
}

// IngestEvent godoc
// @Summary 上报事件
// @Description 与 WebSocket 上报相同的处理流程，同步返回回执
// @Tags 事件
// @Accept json
// @Produce json
// @Param request body service.EventEnvelope true "事件"
// @Success 200 {object} util.Response{data=service.EventAck} "成功"
// @Failure 400 {object} util.Response "事件不合法"
// @Failure 404 {object} util.Response "尝试不存在"
// @Router /api/events [post]
func (ctrl *EventController) IngestEvent(c *gin.Context) {
	var env service.EventEnvelope
	if err := bindJSON(c, &env, util.ErrInvalidEvent); err != nil {
		util.HandleError(c, err)
		return
	}

	event, err := ctrl.EventService.Ingest(c.Request.Context(), env)
	if err != nil {
		if ctrl.Hub != nil && env.AttemptID != "" {
			ctrl.Hub.Publish(env.AttemptID, service.ErrorDestination(env.AttemptID), service.NewEventError(env, err))
		}
		util.HandleError(c, err)
		return
	}

	ack := service.NewEventAck(event)
	if ctrl.Hub != nil {
		ctrl.Hub.Publish(event.AttemptID, service.AckDestination(event.AttemptID), ack)
	}
	util.Success(c, ack)
}

// HandleWS godoc
// @Summary WebSocket 事件通道
// @Description 上行消息为事件，回执推送到 /topic/mission/{attemptId}/ack 或 /topic/mission/{attemptId}/error
// @Tags 事件
// @Param attemptId query string false "订阅的尝试 ID"
// @Success 101 {string} string "Switching Protocols"
// @Router /ws/missions [get]
func (ctrl *EventController) HandleWS(c *gin.Context) {
	if err := ctrl.Hub.ServeWS(c.Writer, c.Request, c.Query("attemptId")); err != nil {
		logger.Log.Warn("WebSocket upgrade failed", zap.Error(err))
	}
}
