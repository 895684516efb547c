package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("scrape status %d", res.Code)
	}
	return res.Body.String()
}

func TestPipelineMetricsObserve(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.Pipeline().ObserveStage("extraction", "overloaded", 2*time.Second)
	m.Pipeline().ObserveStage("extraction", "ok", time.Second)
	m.Pipeline().ObserveImages(domain.ImageModeDegraded, 1)

	out := scrape(t, m.Handler())
	for _, want := range []string{
		`appraisal_pipeline_stage_total{outcome="overloaded",service="worker",stage="extraction"} 1`,
		`appraisal_pipeline_stage_total{outcome="ok",service="worker",stage="extraction"} 1`,
		`appraisal_pipeline_image_runs_total{mode="degraded",service="worker"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %s", want)
		}
	}
}

func TestWorkerFinishDocumentStatus(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartDocument()
	m.FinishDocument("worker", time.Second, domain.WrapError(domain.ErrServiceOverloaded, "extract", errors.New("429")))

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `appraisal_worker_document_process_total{service="worker",status="overloaded"} 1`) {
		t.Fatalf("expected overloaded status in:\n%s", out)
	}
	if !strings.Contains(out, `appraisal_worker_document_process_in_flight{service="worker"} 0`) {
		t.Fatalf("expected no in-flight documents")
	}
}

func TestHTTPMiddlewareNormalizesPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for _, path := range []string{"/v1/appraisals/a", "/v1/appraisals/b"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := scrape(t, m.Handler())
	want := `appraisal_http_requests_total{method="GET",path="/v1/appraisals/{id}",service="api",status="404"} 2`
	if !strings.Contains(out, want) {
		t.Fatalf("expected ids folded into one series, got:\n%s", out)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/v1/appraisals/x/report.xlsx": "/v1/appraisals/{id}/report.xlsx",
		"/v1/appraisals/analyze":       "/v1/appraisals/analyze",
		"/v1/appraisals/x":             "/v1/appraisals/{id}",
		"/healthz":                     "/healthz",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
