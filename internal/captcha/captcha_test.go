package captcha

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupMockRecaptcha создаёт mock siteverify, принимающий только токен "good".
func setupMockRecaptcha(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	if handler == nil {
		handler = func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("метод = %s, ожидался GET", r.Method)
			}
			if r.URL.Query().Get("secret") != "site-secret" {
				t.Errorf("secret = %q", r.URL.Query().Get("secret"))
			}
			w.Header().Set("Content-Type", "application/json")
			if r.URL.Query().Get("response") == "good" {
				w.Write([]byte(`{"success":true,"hostname":"example.com"}`))
				return
			}
			w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
		}
	}

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return New(server.URL, "site-secret", server.Client(), testLogger())
}

func TestVerify(t *testing.T) {
	client := setupMockRecaptcha(t, nil)

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"валидный токен", "good", true},
		{"отклонённый токен", "bad", false},
		{"пустой токен", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.Verify(context.Background(), tt.token)
			if err != nil {
				t.Fatalf("Verify() ошибка: %v", err)
			}
			if got != tt.want {
				t.Errorf("Verify(%q) = %v, хотели %v", tt.token, got, tt.want)
			}
		})
	}
}

func TestVerify_NotConfigured(t *testing.T) {
	client := New("https://www.google.com/recaptcha/api/siteverify", "", nil, testLogger())
	if _, err := client.Verify(context.Background(), "good"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Verify() = %v, хотели ErrNotConfigured", err)
	}
}

func TestVerify_UpstreamFailure(t *testing.T) {
	client := setupMockRecaptcha(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	if _, err := client.Verify(context.Background(), "good"); err == nil {
		t.Error("Verify() не вернул ошибку при статусе 503")
	}

	client = setupMockRecaptcha(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`not json`))
	})
	if _, err := client.Verify(context.Background(), "good"); err == nil {
		t.Error("Verify() не вернул ошибку при некорректном JSON")
	}
}
