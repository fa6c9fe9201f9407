// Package apierror maps AI provider failures onto the domain error taxonomy,
// so the review workflow can tell retryable failures from permanent ones.
package apierror

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

// maxBody bounds how much of an error body is quoted.
const maxBody = 512

// FromStatus classifies a non-2xx response. 429 is rate limited,
// 5xx is transient and other statuses are permanent.
func FromStatus(provider string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxBody {
		msg = msg[:maxBody] + "..."
	}

	base := fmt.Sprintf("%s: API returned status %d", provider, status)
	if msg != "" {
		base += ": " + msg
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", base, domain.ErrRateLimited)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%s: %w", base, domain.ErrTransient)
	default:
		return errors.New(base)
	}
}

// FromTransport classifies a failure to complete the request.
// Cancellation and deadlines pass through unclassified, the caller owns them.
// Network failures are transient.
func FromTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", provider, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %w", provider, domain.ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", provider, err)
}
