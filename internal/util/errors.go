package util

import (
	"errors"
	"fmt"
	"net/http"
)

// 错误种类，业务错误都应包装其中之一，通过 errors.Is 判断
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidEvent    = errors.New("invalid event")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAlreadyExists   = errors.New("already exists")
)

var (
	ErrAttemptNotFound    = fmt.Errorf("mission attempt %w", ErrNotFound)
	ErrReviewNotFound     = fmt.Errorf("review %w", ErrNotFound)
	ErrReviewExists       = fmt.Errorf("review %w", ErrAlreadyExists)
	ErrUnknownMissionType = fmt.Errorf("%w: unknown mission type", ErrInvalidArgument)
	ErrUnknownStatus      = fmt.Errorf("%w: unknown mission status", ErrInvalidArgument)
)

// ErrorInfo 是错误对外暴露的稳定形式
type ErrorInfo struct {
	HTTPStatus int
	Code       string
	Message    string
}

const internalErrorMessage = "An unexpected error occurred. Please try again later."

// Classify 将错误映射为稳定的错误码；未知错误只返回通用提示，不泄露内部细节
func Classify(err error) ErrorInfo {
	switch {
	case err == nil:
		return ErrorInfo{HTTPStatus: http.StatusOK, Code: "OK", Message: "success"}
	case errors.Is(err, ErrReviewNotFound):
		return ErrorInfo{HTTPStatus: http.StatusNotFound, Code: "REVIEW_NOT_FOUND", Message: err.Error()}
	case errors.Is(err, ErrNotFound):
		return ErrorInfo{HTTPStatus: http.StatusNotFound, Code: "MISSION_NOT_FOUND", Message: err.Error()}
	case errors.Is(err, ErrInvalidEvent):
		return ErrorInfo{HTTPStatus: http.StatusBadRequest, Code: "INVALID_EVENT", Message: err.Error()}
	case errors.Is(err, ErrInvalidArgument):
		return ErrorInfo{HTTPStatus: http.StatusBadRequest, Code: "INVALID_ARGUMENT", Message: err.Error()}
	case errors.Is(err, ErrAlreadyExists):
		return ErrorInfo{HTTPStatus: http.StatusConflict, Code: "REVIEW_ALREADY_EXISTS", Message: err.Error()}
	default:
		return ErrorInfo{HTTPStatus: http.StatusInternalServerError, Code: "INTERNAL_SERVER_ERROR", Message: internalErrorMessage}
	}
}
