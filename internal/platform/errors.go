package platform

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind 对请求级错误分类。
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindProtocol  ErrorKind = "protocol"
	KindRejection ErrorKind = "rejection"
	KindCrypto    ErrorKind = "crypto"
)

// Error 是平台调用失败的统一错误类型，只影响当前请求。
type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Err        error
	Rejection  *ActivateResponse
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " status=%d", e.StatusCode)
	}
	if e.Rejection != nil {
		if m := e.Rejection.ErrorMessage; m != nil {
			fmt.Fprintf(&sb, " code=%s title=%q detail=%q system=%t", m.ErrorCode, m.ErrorTitle, m.ErrorDetail, m.IsSystemError)
		}
		if len(e.Rejection.ValidationErrorMessages) > 0 {
			fmt.Fprintf(&sb, " validation=%q", e.Rejection.ValidationErrorMessages)
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable 仅传输错误、5xx 与 429 可重试。
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransport:
		return true
	case KindProtocol:
		return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// IsRetryable 判断 err 链中是否为可重试的平台错误。
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}
