package errors

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name         string
		handler      http.Handler
		expectedCode int
	}{
		{
			name: "normal handler",
			handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
			expectedCode: http.StatusOK,
		},
		{
			name: "panicking handler",
			handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic("test panic")
			}),
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			rr := httptest.NewRecorder()
			rr.Header().Set("X-Request-ID", "test-request-id")

			ErrorHandler(logger)(tt.handler).ServeHTTP(rr, req)

			if rr.Code != tt.expectedCode {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedCode)
			}
		})
	}
}

func TestLogError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	LogError(logger, NewValidationError("r1", "bad mood", nil), "r1")
	LogError(logger, NewProviderError("r2", "groq", errors.New("boom")), "r2")
	LogError(logger, errors.New("plain"), "r3")

	entries := logs.AllUntimed()
	if len(entries) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("client errors should log at warn, got %v", entries[0].Level)
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Errorf("provider errors should log at error, got %v", entries[1].Level)
	}
	if entries[2].Message != "unexpected error" {
		t.Errorf("unexpected message %q", entries[2].Message)
	}
}
