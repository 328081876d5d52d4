// Package httperr 统一的 HTTP 错误响应格式：
// {"error": {"code": "...", "message": "..."}}。
// 所有错误响应都必须走 Write / 各构造函数，不允许各处自拼 JSON。
package httperr

import (
	"encoding/json"
	"net/http"
)

// 机器可读错误码。
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeConflict          = "CONFLICT"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInternalError     = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Write 按统一格式写错误响应。
func Write(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{Code: code, Message: message},
	})
}

// ValidationError 400 输入不合法。
func ValidationError(w http.ResponseWriter, message string) {
	Write(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound 404 记录不存在。
func NotFound(w http.ResponseWriter, message string) {
	Write(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized 401 鉴权失败。
func Unauthorized(w http.ResponseWriter, message string) {
	Write(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// InvalidTransition 409 不允许的状态流转（如对 scheduled 记录 reschedule）。
func InvalidTransition(w http.ResponseWriter, message string) {
	Write(w, http.StatusConflict, CodeInvalidTransition, message)
}

// Conflict 409 并发写冲突，调用方可重读后重试。
func Conflict(w http.ResponseWriter, message string) {
	Write(w, http.StatusConflict, CodeConflict, message)
}

// RateLimited 429 触发限流。
func RateLimited(w http.ResponseWriter, message string) {
	Write(w, http.StatusTooManyRequests, CodeRateLimited, message)
}

// Internal 500 未知错误，不向外泄露内部细节。
func Internal(w http.ResponseWriter) {
	Write(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
