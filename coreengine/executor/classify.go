package executor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/rubric"
)

// classifyRule is one entry in the ordered pattern table. The first rule
// whose Match returns true wins.
type classifyRule struct {
	code  rubric.ErrCode
	match func(msg string, err error) bool
}

func containsAny(msg string, substrs ...string) bool {
	for _, s := range substrs {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

var classifyTable = []classifyRule{
	{
		code: rubric.ErrCancelled,
		match: func(msg string, err error) bool {
			return errors.Is(err, context.Canceled) || containsAny(msg, "cancel", "abort")
		},
	},
	{
		code: rubric.ErrTimeout,
		match: func(msg string, err error) bool {
			return errors.Is(err, context.DeadlineExceeded) || containsAny(msg, "timeout", "deadline exceeded")
		},
	},
	{
		code: rubric.ErrRateLimit,
		match: func(msg string, err error) bool {
			return containsAny(msg, "429", "rate limit", "quota", "throttl")
		},
	},
	{
		code: rubric.ErrNetwork,
		match: func(msg string, err error) bool {
			return containsAny(msg, "econnrefused", "enotfound", "etimedout", "fetch failed", "dns", "socket")
		},
	},
	{
		code: rubric.ErrServiceUnavailable,
		match: func(msg string, err error) bool {
			return containsAny(msg, "500", "502", "503", "unavailable")
		},
	},
	{
		code: rubric.ErrAuthentication,
		match: func(msg string, err error) bool {
			return containsAny(msg, "401", "403", "invalid api key")
		},
	},
	{
		code: rubric.ErrContentFilter,
		match: func(msg string, err error) bool {
			return containsAny(msg, "safety", "blocked", "policy")
		},
	},
	{
		code: rubric.ErrSchemaValidation,
		match: func(msg string, err error) bool {
			return containsAny(msg, "parse", "schema", "validation")
		},
	},
}

// Classify maps a raw analyzer error into a kinded ExecutorError. It never
// panics and never returns nil.
func Classify(err error, stage rubric.PipelineStage, attempt *int) *rubric.ExecutorError {
	var existing *rubric.ExecutorError
	if errors.As(err, &existing) {
		cp := *existing
		cp.Stage = stage
		if attempt != nil {
			cp.Attempt = attempt
		}
		return &cp
	}

	msg := strings.ToLower(err.Error())
	code := rubric.ErrUnknown
	for _, rule := range classifyTable {
		if rule.match(msg, err) {
			code = rule.code
			break
		}
	}

	return &rubric.ExecutorError{
		Code:        code,
		Message:     err.Error(),
		Stage:       stage,
		Recoverable: code.Recoverable(),
		Timestamp:   time.Now().UTC(),
		Cause:       err,
		Attempt:     attempt,
	}
}
