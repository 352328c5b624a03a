package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestLogger_Level(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		level  string
	}{
		{"успешный запрос — INFO", "/api/contacts", http.StatusCreated, "INFO"},
		{"ошибка клиента — WARN", "/api/contacts", http.StatusBadRequest, "WARN"},
		{"ошибка сервера — ERROR", "/api/contacts", http.StatusInternalServerError, "ERROR"},
		{"проба — DEBUG", "/health/live", http.StatusOK, "DEBUG"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("ok"))
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, tt.path, nil))

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("разбор записи лога: %v", err)
			}
			if entry["level"] != tt.level {
				t.Errorf("level = %v, хотели %s", entry["level"], tt.level)
			}
			if entry["status"] != float64(tt.status) {
				t.Errorf("status = %v", entry["status"])
			}
			if entry["bytes"] != float64(2) {
				t.Errorf("bytes = %v, хотели 2", entry["bytes"])
			}
		})
	}
}
