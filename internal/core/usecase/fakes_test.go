package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type repoFake struct {
	mu          sync.Mutex
	doc         *domain.Document
	created     *domain.Document
	result      *domain.AnalysisResult
	savedID     string
	createErr   error
	getErr      error
	saveErr     error
	statusErr   error
	statusCalls []statusCall
}

func (f *repoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	copyDoc := *doc
	f.created = &copyDoc
	return nil
}

func (f *repoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.doc == nil || f.doc.ID != id {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *repoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if f.statusErr != nil && status != domain.StatusFailed {
		return f.statusErr
	}
	return nil
}

func (f *repoFake) SaveResult(_ context.Context, id string, result *domain.AnalysisResult) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedID = id
	f.result = result
	return nil
}

func (f *repoFake) GetResult(_ context.Context, id string) (*domain.AnalysisResult, error) {
	if f.result == nil {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get result", errors.New(id))
	}
	return f.result, nil
}

type storageFake struct {
	savedKey  string
	savedBody string
	content   []byte
	err       error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.content)), nil
}

type queueFake struct {
	documentID string
	err        error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.documentID = documentID
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type recordExtractorFake struct {
	flat    domain.FlatRecord
	err     error
	started chan struct{}
	wait    <-chan struct{}
}

func (f *recordExtractorFake) Available() error { return nil }

func (f *recordExtractorFake) PromptVersion() string { return "test-v1" }

func (f *recordExtractorFake) Extract(ctx context.Context, _ domain.DocumentInput) (domain.FlatRecord, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.wait != nil {
		select {
		case <-f.wait:
		case <-ctx.Done():
			return nil, domain.WrapError(domain.ErrCancelled, "extract", ctx.Err())
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.flat, nil
}

type geometryFake struct {
	pages   []domain.PageContent
	err     error
	started chan struct{}
	wait    <-chan struct{}
}

func (f *geometryFake) Extract(ctx context.Context, _ domain.DocumentInput) ([]domain.PageContent, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.wait != nil {
		select {
		case <-f.wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.pages, f.err
}

type imageStoreFake struct {
	uploads []domain.ImageUpload
	stored  []domain.StoredImage
	err     error
}

func (f *imageStoreFake) Upload(_ context.Context, uploads []domain.ImageUpload) ([]domain.StoredImage, error) {
	f.uploads = append(f.uploads, uploads...)
	return f.stored, f.err
}

type analyzerFake struct {
	result *domain.AnalysisResult
	err    error
	input  domain.DocumentInput
}

func (f *analyzerFake) Analyze(_ context.Context, input domain.DocumentInput) (*domain.AnalysisResult, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type exporterFake struct {
	doc    *domain.Document
	result *domain.AnalysisResult
}

func (f *exporterFake) Export(doc *domain.Document, result *domain.AnalysisResult) ([]byte, error) {
	f.doc = doc
	f.result = result
	return []byte("xlsx"), nil
}
