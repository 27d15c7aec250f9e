package util

import (
	"mission_backend/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	ErrorCode string      `json:"errorCode,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, errorCode, message string) {
	c.JSON(code, Response{
		Code:      code,
		Message:   message,
		ErrorCode: errorCode,
	})
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found")
}

// HandleError 按错误种类输出响应，5xx 会记录日志
func HandleError(c *gin.Context, err error) {
	info := Classify(err)
	if info.HTTPStatus >= http.StatusInternalServerError {
		logger.Log.Error("Internal server error",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	Error(c, info.HTTPStatus, info.Code, info.Message)
}
