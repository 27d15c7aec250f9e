package controller

import (
	"fmt"

	"mission_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// bindJSON 解析失败时返回带 kind 的错误，解析器原文只记 debug 日志
func bindJSON(c *gin.Context, obj interface{}, kind error) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		logger.Log.Debug("Request body rejected", zap.String("path", c.FullPath()), zap.Error(err))
		return fmt.Errorf("%w: malformed request body", kind)
	}
	return nil
}
