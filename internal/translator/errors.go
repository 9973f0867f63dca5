package translator

import (
	"context"
	"errors"
	"strings"

	"office-translator/internal/types"
)

// errCountMismatch marks a response whose array length differs from the
// request. The caller splits the batch in half instead of retrying at the
// same size.
var errCountMismatch = errors.New("翻译结果数量不匹配")

// classifyProviderError maps an error from the chat model onto an AppError
// code. The provider errors carry no structured status, so classification
// goes by the message text.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.NewAppError(types.ErrCancelled, "翻译已取消", err)
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "429") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(msg, "Resource has been exhausted"):
		return types.NewAppErrorWithDetails(types.ErrAPIRateLimit, "API 调用频率超限", msg, err)

	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(lower, "api key") ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "authentication"):
		return types.NewAppErrorWithDetails(types.ErrAPICall, "API 认证失败", msg, err)

	case strings.Contains(lower, "invalid request") ||
		strings.Contains(lower, "bad request") ||
		strings.Contains(lower, "status code: 400"):
		return types.NewAppErrorWithDetails(types.ErrAPICall, "无效的 API 请求", msg, err)

	case strings.Contains(lower, "connection") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(lower, "reset by peer"):
		return types.NewAppError(types.ErrNetwork, "网络请求失败", err)

	case strings.Contains(lower, "status code: 5") ||
		strings.Contains(lower, "status 5") ||
		strings.Contains(lower, "server error") ||
		strings.Contains(lower, "overloaded"):
		return types.NewAppErrorWithDetails(types.ErrAPICall, "API 服务端错误", msg, err)

	default:
		return types.NewAppErrorWithDetails(types.ErrAPICall, "API 调用失败", msg, err)
	}
}

// isRetryableError reports whether a classified error should trigger another
// attempt. Authentication failures and invalid requests will not heal on
// retry, everything network or rate limit shaped will.
func isRetryableError(err error) bool {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case types.ErrNetwork, types.ErrAPIRateLimit:
		return true
	case types.ErrAPICall:
		if strings.Contains(appErr.Message, "认证") || strings.Contains(appErr.Message, "无效") {
			return false
		}
		return true
	default:
		return false
	}
}

// isQuotaExhausted reports whether the error indicates an exhausted quota,
// which earns an extra delay on top of the regular backoff.
func isQuotaExhausted(err error) bool {
	var appErr *types.AppError
	return errors.As(err, &appErr) && appErr.Code == types.ErrAPIRateLimit
}
