package controller

import (
	"mission_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type HealthController struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewHealthController(db *gorm.DB, rdb *redis.Client) *HealthController {
	return &HealthController{DB: db, Redis: rdb}
}

// @Summary 健康检查
// @Description 检查服务状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /api/health [get]
func (ctrl *HealthController) HealthCheck(c *gin.Context) {
	// 检查数据库连接
	sqlDB, err := ctrl.DB.DB()
	if err != nil {
		util.HandleError(c, err)
		return
	}
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		util.Error(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Database unavailable")
		return
	}

	components := gin.H{"database": "up"}
	if ctrl.Redis != nil {
		if err := ctrl.Redis.Ping(c.Request.Context()).Err(); err != nil {
			util.Error(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Redis unavailable")
			return
		}
		components["redis"] = "up"
	}

	util.Success(c, gin.H{
		"status":     "ok",
		"components": components,
	})
}
