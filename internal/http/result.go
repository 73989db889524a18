package httpapi

import (
	"errors"
	"net/http"

	m "wisefido-threshold/internal/models"
)

// Result 统一响应外壳
// - code: 成功为 2000
// - type: 'success' | 'error'
// - message: string
// - result: any
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

// statusFor 校验类错误返回 400，其余 500
func statusFor(err error) int {
	switch {
	case errors.Is(err, m.ErrPatientRequired),
		errors.Is(err, m.ErrTagRequired),
		errors.Is(err, m.ErrUnknownParameter),
		errors.Is(err, m.ErrInvalidRange),
		errors.Is(err, m.ErrUnknownRiskLevel):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
