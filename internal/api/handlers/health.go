package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/shipdesk/internal/config"
)

const serviceName = "shipdesk"

// Статусы проверок готовности.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// ReadinessChecker сообщает статус зависимости (ok, degraded, fail) и пояснение.
type ReadinessChecker interface {
	CheckReady() (status string, message string)
}

// namedCheck — зависимость под именем, под которым она видна в ответе /health/ready.
type namedCheck struct {
	name    string
	checker ReadinessChecker
}

// HealthHandler обслуживает /health/live, /health/ready и /metrics.
type HealthHandler struct {
	checks      []namedCheck
	promHandler http.Handler
}

// NewHealthHandler принимает проверки базы и каталога вложений.
// nil вместо проверки даёт fail по этой зависимости.
func NewHealthHandler(db, uploads ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		checks: []namedCheck{
			{name: "postgresql", checker: db},
			{name: "storage", checker: uploads},
		},
		promHandler: promhttp.Handler(),
	}
}

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

type healthReadyResponse struct {
	healthLiveResponse
	Checks map[string]checkResult `json:"checks"`
}

func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeHealth(w, http.StatusOK, liveInfo(statusOK))
}

// HealthReady отвечает 503, если хотя бы одна зависимость в состоянии fail.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	checks := make(map[string]checkResult, len(h.checks))
	statuses := make([]string, 0, len(h.checks))
	for _, c := range h.checks {
		res := runCheck(c.checker)
		checks[c.name] = res
		statuses = append(statuses, res.Status)
	}

	resp := healthReadyResponse{
		healthLiveResponse: liveInfo(overallStatus(statuses...)),
		Checks:             checks,
	}

	code := http.StatusOK
	if resp.Status == statusFail {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, resp)
}

func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

func liveInfo(status string) healthLiveResponse {
	return healthLiveResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}
}

func runCheck(c ReadinessChecker) checkResult {
	if c == nil {
		return checkResult{Status: statusFail, Message: "проверка не настроена"}
	}
	status, msg := c.CheckReady()
	return checkResult{Status: status, Message: msg}
}

func writeHealth(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// overallStatus: fail сильнее degraded, degraded сильнее ok.
func overallStatus(statuses ...string) string {
	result := statusOK
	for _, s := range statuses {
		switch s {
		case statusFail:
			return statusFail
		case statusDegraded:
			result = statusDegraded
		}
	}
	return result
}
