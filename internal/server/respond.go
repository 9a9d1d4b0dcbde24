package server

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/glinthq/onboardrag/internal/errors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// respondError maps the error taxonomy onto HTTP statuses. Backpressure
// responses carry a Retry-After header when a hint is available.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForKind(errors.KindOf(err))

	if ra := errors.RetryAfterOf(err); ra > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(ra/time.Second)+1))
	} else if errors.KindOf(err) == errors.KindModelQueueFull {
		// No hint available; suggest one dispatch interval.
		w.Header().Set("Retry-After", "7")
	}

	code := "ERR_503_INTERNAL"
	message := "internal error"
	var re *errors.RagError
	if stderrors.As(err, &re) {
		code = re.Code
		message = re.Message
	}

	if status >= 500 {
		s.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		// Internal detail stays in the log.
		if errors.KindOf(err) == errors.KindInternal {
			message = "internal error"
		}
	}

	s.respondJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func statusForKind(kind errors.Kind) int {
	switch kind {
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindExtractFailed:
		return http.StatusUnprocessableEntity
	case errors.KindModelRateLimited:
		return http.StatusTooManyRequests
	case errors.KindModelQueueFull:
		return http.StatusServiceUnavailable
	case errors.KindModelTimeout:
		return http.StatusGatewayTimeout
	case errors.KindModelTransient:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
