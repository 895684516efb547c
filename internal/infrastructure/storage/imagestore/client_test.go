package imagestore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/infrastructure/resilience"
)

func fastExecutor() *resilience.Executor {
	cfg := resilience.DefaultConfig()
	cfg.RetryMaxAttempts = 3
	return resilience.NewExecutor(cfg, resilience.WithSleeper(func(context.Context, time.Duration) error { return nil }))
}

func sampleUpload() domain.ImageUpload {
	return domain.ImageUpload{
		EntityID:  "doc-1",
		Category:  domain.CategoryFloorPlan,
		IsPrimary: true,
		Source:    "appraisal_pdf",
		Filename:  "page-2-0.png",
		MimeType:  "image/png",
		Data:      []byte("png-bytes"),
	}
}

func TestUploadSendsMetadataAndRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path != "/files" || r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("unexpected request %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		for field, want := range map[string]string{
			"entity_id":  "doc-1",
			"category":   "floor_plan",
			"is_primary": "true",
			"source":     "appraisal_pdf",
		} {
			if got := r.FormValue(field); got != want {
				t.Errorf("field %s = %q, want %q", field, got, want)
			}
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			if string(data) != "png-bytes" || header.Filename != "page-2-0.png" {
				t.Errorf("unexpected file %q %q", header.Filename, data)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"img-1","url":"https://files.local/img-1","category":"floor_plan"}]`))
	}))
	defer srv.Close()

	client := New(srv.URL+"/", "secret", fastExecutor())
	stored, err := client.Upload(context.Background(), []domain.ImageUpload{sampleUpload()})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
	if len(stored) != 1 || stored[0].ID != "img-1" || stored[0].Category != "floor_plan" {
		t.Fatalf("unexpected stored images: %+v", stored)
	}
}

func TestUploadDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad entity", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", fastExecutor()).Upload(context.Background(), []domain.ImageUpload{sampleUpload()})
	var status *StatusError
	if !errors.As(err, &status) || status.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 status error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single attempt, got %d", calls.Load())
	}
}

func TestUploadRequiresExactlyOneStoredImagePerRequest(t *testing.T) {
	for name, reply := range map[string]string{
		"empty":  `[]`,
		"double": `[{"id":"img-2"},{"id":"img-3"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				if calls.Add(1) == 1 {
					_, _ = w.Write([]byte(`[{"id":"img-1"}]`))
					return
				}
				_, _ = w.Write([]byte(reply))
			}))
			defer srv.Close()

			second := sampleUpload()
			second.IsPrimary = false
			stored, err := New(srv.URL, "", fastExecutor()).Upload(context.Background(), []domain.ImageUpload{sampleUpload(), second, sampleUpload()})
			if !errors.Is(err, domain.ErrInvalidResponse) {
				t.Fatalf("expected ErrInvalidResponse, got %v", err)
			}
			if len(stored) != 1 || stored[0].ID != "img-1" {
				t.Fatalf("expected only the first image to be reported, got %+v", stored)
			}
			if calls.Load() != 2 {
				t.Fatalf("expected the batch to stop without retrying, got %d calls", calls.Load())
			}
		})
	}
}

func TestUploadExhaustedIsTemporary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", fastExecutor()).Upload(context.Background(), []domain.ImageUpload{sampleUpload()})
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestUploadWithoutEndpoint(t *testing.T) {
	_, err := New("", "", nil).Upload(context.Background(), []domain.ImageUpload{sampleUpload()})
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}
