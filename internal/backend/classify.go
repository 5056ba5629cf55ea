package backend

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/sells-group/quorum/internal/model"
	"github.com/sells-group/quorum/pkg/chatapi"
)

// Classify maps an adapter-layer error onto the failure taxonomy. Every
// error gets a kind; unknown I/O faults default to Transport, which is the
// retryable catch-all.
func Classify(err error) model.FailureKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.FailureTimeout
	}
	if errors.Is(err, context.Canceled) {
		return model.FailureCancelled
	}

	var statusErr *chatapi.StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.StatusCode)
	}

	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.FailureTimeout
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return model.FailureTransport
	}

	msg := strings.ToLower(err.Error())
	malformedPatterns := []string{
		"unmarshal",
		"no choices",
		"no text content",
		"unexpected end of json",
	}
	for _, p := range malformedPatterns {
		if strings.Contains(msg, p) {
			return model.FailureMalformed
		}
	}

	return model.FailureTransport
}

func classifyStatus(code int) model.FailureKind {
	switch {
	case code == http.StatusTooManyRequests:
		return model.FailureRateLimited
	case code == http.StatusRequestTimeout || code >= 500:
		return model.FailureTransport
	default:
		// Remaining 4xx means the request itself was rejected; retrying the
		// same payload cannot help.
		return model.FailureMalformed
	}
}
