// Package imagestore uploads classified images to the external file-storage
// endpoint.
package imagestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/infrastructure/resilience"
)

const uploadPath = "/files"

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, token string, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		executor: executor,
	}
}

type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("image store status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Upload sends each image as its own multipart request so one rejected
// payload does not void the others already stored. Each request must be
// answered with exactly one stored image. The first failure stops the batch
// and is returned with the images stored so far.
func (c *Client) Upload(ctx context.Context, uploads []domain.ImageUpload) ([]domain.StoredImage, error) {
	if c.baseURL == "" {
		return nil, domain.WrapError(domain.ErrServiceUnavailable, "image store upload", errors.New("endpoint not configured"))
	}

	stored := make([]domain.StoredImage, 0, len(uploads))
	for i, upload := range uploads {
		result, err := resilience.Retry(ctx, c.executor, "image_store.upload", func(ctx context.Context) (domain.StoredImage, error) {
			return c.uploadOne(ctx, upload)
		}, classify)
		if err != nil {
			return stored, fmt.Errorf("upload image %d: %w", i, wrapTemporaryIfNeeded(err))
		}
		stored = append(stored, result)
	}
	return stored, nil
}

func (c *Client) uploadOne(ctx context.Context, upload domain.ImageUpload) (domain.StoredImage, error) {
	var none domain.StoredImage
	body, contentType, err := encodeUpload(upload)
	if err != nil {
		return none, domain.WrapError(domain.ErrInvalidInput, "encode image upload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, bytes.NewReader(body))
	if err != nil {
		return none, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return none, fmt.Errorf("image store request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return none, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out []domain.StoredImage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return none, domain.WrapError(domain.ErrInvalidResponse, "decode image store response", err)
	}
	if len(out) != 1 {
		return none, domain.WrapError(domain.ErrInvalidResponse, "decode image store response", fmt.Errorf("expected 1 stored image, got %d", len(out)))
	}
	return out[0], nil
}

func encodeUpload(upload domain.ImageUpload) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"entity_id", upload.EntityID},
		{"category", string(upload.Category)},
		{"is_primary", strconv.FormatBool(upload.IsPrimary)},
		{"source", upload.Source},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	mimeType := upload.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.Filename))
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func classify(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	var status *StatusError
	if errors.As(err, &status) {
		retry := status.StatusCode == http.StatusTooManyRequests || status.StatusCode >= 500
		return resilience.ErrorClassification{Retryable: retry, RecordFailure: retry}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

func wrapTemporaryIfNeeded(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrCancelled, "image store upload", err)
	}
	if resilience.IsRetriesExhausted(err) || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "image store upload", err)
	}
	return err
}
