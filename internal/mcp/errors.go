package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Hint      string `json:"hint,omitempty"`
	Retryable bool   `json:"retryable"`
}

type ErrorEnvelope struct {
	Error   ErrorDetail `json:"error"`
	Details any         `json:"details,omitempty"`
}

func BuildErrorEnvelope(err error, details any) map[string]any {
	envelope := ErrorEnvelope{Error: classifyError(err)}
	out := map[string]any{"error": envelope.Error}
	if details != nil {
		out["details"] = details
	}
	return out
}

func classifyError(err error) ErrorDetail {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorDetail{Code: "timeout", Message: msg, Hint: "Increase the timeout or check network latency.", Retryable: true}
	}
	if errors.Is(err, context.Canceled) {
		return ErrorDetail{Code: "canceled", Message: msg, Hint: "Request was canceled before completion.", Retryable: true}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch code {
		case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation", "UnrecognizedClientException":
			return ErrorDetail{Code: "forbidden", Message: msg, Hint: "Check AWS credentials and IAM policies.", Retryable: false}
		case "Throttling", "ThrottlingException", "RequestLimitExceeded", "TooManyRequestsException":
			return ErrorDetail{Code: "rate_limited", Message: msg, Hint: "Retry with backoff.", Retryable: true}
		case "ResourceNotFoundException", "NotFoundException", "NoSuchEntity":
			return ErrorDetail{Code: "not_found", Message: msg, Hint: "Verify resource identifiers and region.", Retryable: false}
		case "ValidationException", "InvalidParameterException", "InvalidParameterValue", "MalformedQueryException":
			return ErrorDetail{Code: "invalid_request", Message: msg, Hint: "Fix request parameters or schema.", Retryable: false}
		case "ConflictException":
			return ErrorDetail{Code: "conflict", Message: msg, Hint: "Resource update conflict; retry.", Retryable: true}
		case "ServiceQuotaExceededException", "LimitExceededException":
			return ErrorDetail{Code: "rate_limited", Message: msg, Hint: "Reduce request rate or query scope.", Retryable: true}
		default:
			return ErrorDetail{Code: "upstream_error", Message: msg, Hint: "AWS API error; verify inputs and retry.", Retryable: true}
		}
	}

	if strings.Contains(strings.ToLower(msg), "not found") {
		return ErrorDetail{Code: "not_found", Message: msg, Hint: "Verify resource identifiers and region.", Retryable: false}
	}
	if isInvalidRequestMessage(msg) {
		return ErrorDetail{Code: "invalid_request", Message: msg, Hint: "Fix request parameters or schema.", Retryable: false}
	}

	return ErrorDetail{Code: "internal", Message: msg, Hint: "Check server logs for details.", Retryable: false}
}

func isInvalidRequestMessage(msg string) bool {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "required") || strings.Contains(lower, "invalid") || strings.Contains(lower, "missing") {
		return true
	}
	return false
}
