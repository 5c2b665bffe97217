package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// ErrorHandler wraps an http.Handler and converts panics into an InternalError
// response, logging the recovered value with its stack.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					requestID := w.Header().Get("X-Request-ID")
					logger.Error("panic recovered",
						zap.Any("error", rec),
						zap.ByteString("stacktrace", debug.Stack()),
						zap.String("request_id", requestID),
					)
					WriteError(w, NewInternalError(requestID, fmt.Errorf("panic: %v", rec)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// LogError logs an error with its context. Client errors are logged at warn,
// everything else at error.
func LogError(logger *zap.Logger, err error, requestID string) {
	var apiErr *APIError
	if !As(err, &apiErr) {
		logger.Error("unexpected error",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		return
	}

	fields := []zap.Field{
		zap.String("error_type", string(apiErr.Type)),
		zap.String("message", apiErr.Message),
		zap.Int("code", apiErr.Code),
		zap.String("request_id", requestID),
		zap.Any("details", apiErr.Details),
	}
	if apiErr.err != nil {
		fields = append(fields, zap.NamedError("cause", apiErr.err))
	}

	if apiErr.Code < http.StatusInternalServerError {
		logger.Warn("request error", fields...)
		return
	}
	logger.Error("request error", fields...)
}
