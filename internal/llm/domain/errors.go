package domain

import "fmt"

// ErrorCode identifies the kind of failure a provider client or the
// pipeline surfaces to the caller. Mirrors the closed set in the
// provider wire contract: rate limiting and bad credentials are never
// retried automatically, network/timeout errors are eligible for the
// pipeline's single fallback attempt.
type ErrorCode string

const (
	ErrInvalidCredentials ErrorCode = "invalid_credentials"
	ErrRateLimited        ErrorCode = "rate_limited"
	ErrBadRequest         ErrorCode = "bad_request"
	ErrNetworkError       ErrorCode = "network_error"
	ErrTimeout            ErrorCode = "timeout"
	ErrProtocolError      ErrorCode = "protocol_error"
	ErrInsufficientBudget ErrorCode = "insufficient_budget"
	ErrCacheCorrupt       ErrorCode = "cache_corrupt" // internal only, never surfaced
)

// ProviderError is the typed error every provider client and the
// pipeline return. Code is what callers should switch on; Unwrap
// exposes the underlying transport error, if any.
type ProviderError struct {
	Provider   string
	Code       ErrorCode
	Detail     string
	RetryAfter float64 // seconds, set only for ErrRateLimited
	Need       float64 // set only for ErrInsufficientBudget
	Have       float64 // set only for ErrInsufficientBudget
	Cause      error
}

func (e *ProviderError) Error() string {
	switch e.Code {
	case ErrRateLimited:
		return fmt.Sprintf("%s: rate limited, retry after %.1fs", e.Provider, e.RetryAfter)
	case ErrInsufficientBudget:
		return fmt.Sprintf("insufficient budget: need %.4f, have %.4f", e.Need, e.Have)
	default:
		if e.Detail != "" {
			return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Detail)
		}
		return fmt.Sprintf("%s: %s", e.Provider, e.Code)
	}
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// IsRetryableByPipeline reports whether the pipeline's fallback path
// may retry this error against the cheapest model.
func (e *ProviderError) IsRetryableByPipeline() bool {
	return e.Code == ErrNetworkError || e.Code == ErrTimeout
}

func NewInvalidCredentials(provider, detail string) *ProviderError {
	return &ProviderError{Provider: provider, Code: ErrInvalidCredentials, Detail: detail}
}

func NewRateLimited(provider string, retryAfter float64) *ProviderError {
	return &ProviderError{Provider: provider, Code: ErrRateLimited, RetryAfter: retryAfter}
}

func NewBadRequest(provider, detail string) *ProviderError {
	return &ProviderError{Provider: provider, Code: ErrBadRequest, Detail: detail}
}

func NewNetworkError(provider string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Code: ErrNetworkError, Cause: cause, Detail: errString(cause)}
}

func NewTimeout(provider string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Code: ErrTimeout, Cause: cause, Detail: errString(cause)}
}

func NewProtocolError(provider, detail string) *ProviderError {
	return &ProviderError{Provider: provider, Code: ErrProtocolError, Detail: detail}
}

func NewInsufficientBudget(need, have float64) *ProviderError {
	return &ProviderError{Code: ErrInsufficientBudget, Need: need, Have: have}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
