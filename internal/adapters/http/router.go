package httpadapter

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/appraisal-intelligence/internal/config"
	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/core/ports"
)

const (
	serviceName     = "api"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	sniffLen        = 512
)

// HTTPMetrics is the subset of the metrics registry the router reports to.
type HTTPMetrics interface {
	Middleware(service string, next http.Handler) http.Handler
	Handler() http.Handler
	RecordUpload(service, endpoint string, size int64)
	RecordRejected(service, reason string)
}

type Router struct {
	ingest   ports.DocumentIngestor
	analyzer ports.DocumentAnalyzer
	reader   ports.DocumentReader
	reports  ports.ReportService
	metrics  HTTPMetrics

	rateLimitRPS     float64
	rateLimitBurst   int
	maxInFlight      int
	backpressureWait time.Duration
	maxUploadBytes   int64
	analyzeTimeout   time.Duration
}

type RouterOption func(*Router)

func WithMetrics(m HTTPMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	analyzer ports.DocumentAnalyzer,
	reader ports.DocumentReader,
	reports ports.ReportService,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		ingest:           ingest,
		analyzer:         analyzer,
		reader:           reader,
		reports:          reports,
		rateLimitRPS:     cfg.APIRateLimitRPS,
		rateLimitBurst:   cfg.APIRateLimitBurst,
		maxInFlight:      cfg.APIMaxInFlight,
		backpressureWait: cfg.APIBackpressureWait,
		maxUploadBytes:   cfg.APIMaxUploadBytes,
		analyzeTimeout:   cfg.AnalyzeTimeout,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.maxUploadBytes <= 0 {
		rt.maxUploadBytes = 50 << 20
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/appraisals", rt.uploadDocument)
	api.HandleFunc("POST /v1/appraisals/analyze", rt.analyzeDocument)
	api.HandleFunc("GET /v1/appraisals/{id}", rt.getDocument)
	api.HandleFunc("GET /v1/appraisals/{id}/report.xlsx", rt.downloadReport)

	var limited http.Handler = api
	limited = backpressureMiddleware(limited, rt.maxInFlight, rt.backpressureWait, rt.rejected)
	limited = rateLimitMiddleware(limited, rt.rateLimitRPS, rt.rateLimitBurst, rt.rejected)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", limited)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) rejected(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(serviceName, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	file, header, ok := rt.formFile(w, r, "upload")
	if !ok {
		return
	}
	defer file.Close()

	body := bufio.NewReaderSize(file, sniffLen)
	head, _ := body.Peek(sniffLen)
	mimeType := contentTypeOf(header, head)

	doc, err := rt.ingest.Upload(r.Context(), header.Filename, mimeType, body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) analyzeDocument(w http.ResponseWriter, r *http.Request) {
	file, header, ok := rt.formFile(w, r, "analyze")
	if !ok {
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "read upload", err))
		return
	}

	ctx := r.Context()
	if rt.analyzeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.analyzeTimeout)
		defer cancel()
	}

	result, err := rt.analyzer.Analyze(ctx, domain.DocumentInput{
		Filename: header.Filename,
		MimeType: contentTypeOf(header, data),
		Data:     data,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := struct {
		Document *domain.Document       `json:"document"`
		Result   *domain.AnalysisResult `json:"result,omitempty"`
	}{Document: doc}
	if doc.Status == domain.StatusReady {
		result, err := rt.reader.GetResult(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.Result = result
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) downloadReport(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	out, err := rt.reports.ExportWorkbook(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="appraisal-%s.xlsx"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// formFile reads the multipart "file" field under the upload size limit and
// writes the error response itself when it returns false.
func (rt *Router) formFile(w http.ResponseWriter, r *http.Request, endpoint string) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": fmt.Sprintf("document exceeds %d bytes", rt.maxUploadBytes),
			})
			return nil, nil, false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return nil, nil, false
	}
	if rt.metrics != nil {
		rt.metrics.RecordUpload(serviceName, endpoint, header.Size)
	}
	return file, header, true
}

// contentTypeOf trusts the part header unless it is missing or generic, in
// which case the leading bytes decide.
func contentTypeOf(header *multipart.FileHeader, head []byte) string {
	declared := strings.TrimSpace(header.Header.Get("Content-Type"))
	if declared != "" && !strings.HasPrefix(declared, "application/octet-stream") {
		return declared
	}
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	return http.DetectContentType(head)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if seconds := retryAfterSeconds(err); seconds > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err.Error(),
		)
	}
	writeJSON(w, status, map[string]string{"error": publicMessage(err, status)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
