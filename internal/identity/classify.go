package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/spec-kit/marketplace-gateway/pkg/util/errorutil"
)

// Flow selects the user-facing default messages used when a failed response
// carries nothing readable.
type Flow int

const (
	FlowLogin Flow = iota
	FlowOTP
	FlowRefresh
	FlowProfile
)

const fallbackMessage = "An unexpected error occurred. Please try again."

var defaultMessages = map[Flow]map[int]string{
	FlowLogin: {
		http.StatusBadRequest:          "Invalid request. Please check your input.",
		http.StatusUnauthorized:        "Invalid email or password",
		http.StatusForbidden:           "Your account has been suspended. Please contact support.",
		http.StatusNotFound:            "Account not found. Please sign up first.",
		http.StatusTooManyRequests:     "Too many login attempts. Please try again later.",
		http.StatusInternalServerError: "Server error. Please try again later.",
	},
	FlowOTP: {
		http.StatusBadRequest:          "Invalid phone number or OTP.",
		http.StatusUnauthorized:        "Invalid or expired OTP. Please request a new one.",
		http.StatusNotFound:            "Phone number not registered.",
		http.StatusTooManyRequests:     "Too many OTP requests. Please wait before trying again.",
		http.StatusInternalServerError: "Failed to verify OTP. Please try again later.",
	},
	FlowRefresh: {
		http.StatusUnauthorized: "Session expired. Please log in again.",
	},
	FlowProfile: {
		http.StatusUnauthorized: "Session expired. Please log in again.",
		http.StatusForbidden:    "You do not have access to this profile.",
		http.StatusNotFound:     "User not found.",
	},
}

var messageFields = []string{"message", "error", "detail", "title"}

// Classify turns a non-2xx identity API response into a single DomainError.
//
// The message is taken, in order, from structured 422 field errors, a
// message/error/detail/title string in the body, the joined errors array, a
// raw string body, and finally the default for the status and flow.
func Classify(flow Flow, status int, body []byte) error {
	body = bytes.TrimSpace(body)

	if status == http.StatusUnprocessableEntity {
		if fields := fieldErrors(body); len(fields) > 0 {
			return apperrors.NewValidationError("Validation failed", fields)
		}
	}

	message := bodyMessage(body)
	if message == "" {
		message = defaultMessage(flow, status)
	}
	return apperrors.NewDomainError(codeFor(status), message, statusFor(status), nil)
}

func codeFor(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return apperrors.CodeBadRequest
	case status == http.StatusUnauthorized:
		return apperrors.CodeInvalidCredentials
	case status == http.StatusForbidden:
		return apperrors.CodeForbidden
	case status == http.StatusNotFound:
		return apperrors.CodeNotFound
	case status == http.StatusUnprocessableEntity:
		return apperrors.CodeValidationFailed
	case status == http.StatusTooManyRequests:
		return apperrors.CodeRateLimited
	case status >= 500:
		return apperrors.CodeServerError
	default:
		return apperrors.CodeBadRequest
	}
}

// statusFor is the status the gateway answers with; upstream 5xx become 502.
func statusFor(status int) int {
	if status >= 500 {
		return http.StatusBadGateway
	}
	if status < 400 {
		return http.StatusBadGateway
	}
	return status
}

func defaultMessage(flow Flow, status int) string {
	if msg, ok := defaultMessages[flow][status]; ok {
		return msg
	}
	if msg, ok := defaultMessages[FlowLogin][status]; ok && flow != FlowOTP {
		return msg
	}
	if status >= 500 {
		if msg, ok := defaultMessages[flow][http.StatusInternalServerError]; ok {
			return msg
		}
		return defaultMessages[FlowLogin][http.StatusInternalServerError]
	}
	return fallbackMessage
}

func bodyMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, field := range messageFields {
			var s string
			if err := json.Unmarshal(obj[field], &s); err == nil && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		if raw, ok := obj["errors"]; ok {
			if joined := joinErrors(raw); joined != "" {
				return joined
			}
		}
		return ""
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return strings.TrimSpace(s)
	}
	if body[0] == '{' || body[0] == '[' || body[0] == '<' {
		return ""
	}
	return string(body)
}

func joinErrors(raw json.RawMessage) string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if msg := itemMessage(item); msg != "" {
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, ", ")
}

func itemMessage(item json.RawMessage) string {
	var s string
	if err := json.Unmarshal(item, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(item, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		return obj.Msg
	}
	return ""
}

// fieldErrors reads either {"detail":[{"loc":[...,"field"],"msg":"..."}]} or
// {"errors":{"field":["..."]}}.
func fieldErrors(body []byte) map[string]string {
	fields := map[string]string{}

	var detailShape struct {
		Detail []struct {
			Loc []any  `json:"loc"`
			Msg string `json:"msg"`
		} `json:"detail"`
	}
	if err := json.Unmarshal(body, &detailShape); err == nil {
		for _, d := range detailShape.Detail {
			if len(d.Loc) == 0 || d.Msg == "" {
				continue
			}
			fields[fmt.Sprint(d.Loc[len(d.Loc)-1])] = d.Msg
		}
	}
	if len(fields) > 0 {
		return fields
	}

	var mapShape struct {
		Errors map[string]json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &mapShape); err == nil {
		for field, raw := range mapShape.Errors {
			var many []string
			if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
				fields[field] = strings.Join(many, ", ")
				continue
			}
			var one string
			if err := json.Unmarshal(raw, &one); err == nil && one != "" {
				fields[field] = one
			}
		}
	}
	return fields
}
