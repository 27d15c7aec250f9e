package app

import (
	"mission_backend/docs"
	"mission_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 事件上报通道
	router.GET("/ws/missions", c.event.HandleWS)

	api := router.Group("/api")
	{
		api.GET("/health", c.health.HealthCheck)
		api.POST("/events", c.event.IngestEvent)

		a.registerMissionRoutes(api, c)
		a.registerDashboardRoutes(api, c)

		api.GET("/analytics/missions/:missionType", c.analytics.GetMissionAnalytics)
	}
}

func (a *App) registerMissionRoutes(api *gin.RouterGroup, c *controllers) {
	missions := api.Group("/missions")
	{
		missions.POST("/start", c.mission.StartMission)
		missions.GET("", c.mission.ListMissions)
		missions.GET("/:attemptId", c.mission.GetMission)
		missions.GET("/:attemptId/events", c.mission.GetMissionEvents)
		missions.GET("/:attemptId/timeline", c.mission.GetTimeline)
		missions.POST("/:attemptId/review", c.mission.SubmitReview)
		missions.GET("/:attemptId/review", c.mission.GetReview)
	}
}

func (a *App) registerDashboardRoutes(api *gin.RouterGroup, c *controllers) {
	dashboard := api.Group("/dashboard")
	{
		dashboard.GET("", c.dashboard.GetDashboard)
		dashboard.GET("/overview", c.dashboard.GetOverview)
		dashboard.GET("/completion-rates", c.dashboard.GetCompletionRates)
		dashboard.GET("/hourly-distribution", c.dashboard.GetHourlyDistribution)
		dashboard.GET("/recent-attempts", c.dashboard.GetRecentAttempts)
		dashboard.GET("/recent-reviews", c.dashboard.GetRecentReviews)
		dashboard.GET("/attempts/:attemptId", c.dashboard.GetAttemptDetail)
		dashboard.GET("/reviews", c.dashboard.GetReviews)
		dashboard.GET("/reviews/statistics", c.dashboard.GetReviewStatistics)
	}
}
