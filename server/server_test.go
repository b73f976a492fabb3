package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"pricewatch/config"
	"pricewatch/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	result *models.BatchResult
	err    error
	calls  int
}

func (r *fakeRunner) RunBatch(ctx context.Context) (*models.BatchResult, error) {
	r.calls++
	return r.result, r.err
}

type fakeHistory struct {
	runs []models.BatchRun
	err  error
}

func (h *fakeHistory) GetRecentBatchRuns(ctx context.Context, limit int) ([]models.BatchRun, error) {
	return h.runs, h.err
}

func newTestServer(secret string, runner *fakeRunner) *Server {
	return New(&config.ServerConfig{Addr: ":0", CronSecret: secret}, runner, &fakeHistory{})
}

func doRequest(t *testing.T, s *Server, method, path, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestProbe(t *testing.T) {
	runner := &fakeRunner{}
	w := doRequest(t, newTestServer("s3cret", runner), "GET", "/api/cron/check-prices", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Use POST to trigger") {
		t.Fatalf("unexpected probe body: %s", w.Body.String())
	}
	if runner.calls != 0 {
		t.Fatalf("probe must not run a batch")
	}
}

func TestTrigger_NoAuth(t *testing.T) {
	runner := &fakeRunner{result: &models.BatchResult{}}
	w := doRequest(t, newTestServer("s3cret", runner), "POST", "/api/cron/check-prices", "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if runner.calls != 0 {
		t.Fatalf("unauthorized request must not run a batch")
	}
}

func TestTrigger_WrongSecret(t *testing.T) {
	runner := &fakeRunner{result: &models.BatchResult{}}
	w := doRequest(t, newTestServer("s3cret", runner), "POST", "/api/cron/check-prices", "Bearer wrong")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if runner.calls != 0 {
		t.Fatalf("wrong secret must not run a batch")
	}
}

func TestTrigger_NoSecretConfigured(t *testing.T) {
	runner := &fakeRunner{result: &models.BatchResult{}}
	// Empty secret rejects everything, including an empty bearer
	w := doRequest(t, newTestServer("", runner), "POST", "/api/cron/check-prices", "Bearer ")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if runner.calls != 0 {
		t.Fatalf("batch must never run without a configured secret")
	}
}

func TestTrigger_Success(t *testing.T) {
	runner := &fakeRunner{result: &models.BatchResult{
		Total:        3,
		Updated:      2,
		Failed:       1,
		PriceChanges: 1,
		AlertsSent:   1,
		Errors:       []string{"fetch failed for x"},
	}}
	w := doRequest(t, newTestServer("s3cret", runner), "POST", "/api/cron/check-prices", "Bearer s3cret")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if runner.calls != 1 {
		t.Fatalf("expected 1 batch run, got %d", runner.calls)
	}

	var body struct {
		Success bool               `json:"success"`
		Message string             `json:"message"`
		Results models.BatchResult `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !body.Success {
		t.Fatalf("expected success true")
	}
	if body.Message != "Price check completed" {
		t.Fatalf("unexpected message %q", body.Message)
	}
	if body.Results.Total != 3 || body.Results.Updated != 2 || body.Results.Failed != 1 {
		t.Fatalf("result counters lost in transit: %+v", body.Results)
	}
	if len(body.Results.Errors) != 1 {
		t.Fatalf("expected 1 error in results, got %v", body.Results.Errors)
	}
}

func TestTrigger_FatalError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("list products: connection refused")}
	w := doRequest(t, newTestServer("s3cret", runner), "POST", "/api/cron/check-prices", "Bearer s3cret")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "connection refused") {
		t.Fatalf("expected error detail in body: %s", w.Body.String())
	}
}

func TestRuns_Gated(t *testing.T) {
	runner := &fakeRunner{}
	w := doRequest(t, newTestServer("s3cret", runner), "GET", "/api/runs", "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w = doRequest(t, newTestServer("s3cret", runner), "GET", "/api/runs", "Bearer s3cret")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
