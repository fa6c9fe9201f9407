package apierror

import (
	"errors"
	"fmt"

	"github.com/ollama/ollama/api"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/custodia-labs/submittal-review/internal/core/domain"
)

// FromOllama classifies errors returned by the Ollama client.
func FromOllama(err error) error {
	if err == nil {
		return nil
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		msg := statusErr.ErrorMessage
		if msg == "" {
			msg = statusErr.Status
		}
		return FromStatus("ollama", statusErr.StatusCode, []byte(msg))
	}
	return FromTransport("ollama", err)
}

// FromGemini classifies errors returned by the Gemini client, which may
// surface as HTTP errors or gRPC statuses depending on transport.
func FromGemini(err error) error {
	if err == nil {
		return nil
	}

	var httpErr *googleapi.Error
	if errors.As(err, &httpErr) {
		return FromStatus("gemini", httpErr.Code, []byte(httpErr.Message))
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.ResourceExhausted:
			return fmt.Errorf("gemini: %s: %w", st.Message(), domain.ErrRateLimited)
		case codes.Unavailable, codes.Internal, codes.Aborted:
			return fmt.Errorf("gemini: %s: %w", st.Message(), domain.ErrTransient)
		case codes.DeadlineExceeded, codes.Canceled:
			return FromTransport("gemini", err)
		default:
			return fmt.Errorf("gemini: %s (%s)", st.Message(), st.Code())
		}
	}

	return FromTransport("gemini", err)
}
