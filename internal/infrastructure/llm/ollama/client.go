// Package ollama implements the document model port on a local Ollama
// server with a vision-capable model.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/core/ports"
)

// DefaultMaxPages bounds how many rendered PDF pages are attached to one
// request.
const DefaultMaxPages = 8

type Client struct {
	baseURL    string
	genModel   string
	renderer   ports.PageRenderer
	maxPages   int
	httpClient *http.Client
}

// New builds a client. renderer may be nil, in which case only raster
// documents can be sent.
func New(baseURL, genModel string, renderer ports.PageRenderer) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		renderer:   renderer,
		maxPages:   DefaultMaxPages,
		httpClient: &http.Client{Timeout: 300 * time.Second},
	}
}

func (c *Client) Available() error {
	if c.baseURL == "" {
		return domain.WrapError(domain.ErrServiceUnavailable, "ollama.available", errors.New("OLLAMA_URL is not set"))
	}
	if strings.TrimSpace(c.genModel) == "" {
		return domain.WrapError(domain.ErrServiceUnavailable, "ollama.available", errors.New("OLLAMA_GEN_MODEL is not set"))
	}
	return nil
}

// Generate asks the model for a JSON answer about the attached document
// images.
func (c *Client) Generate(ctx context.Context, doc domain.DocumentInput, prompt string) (string, error) {
	if err := c.Available(); err != nil {
		return "", err
	}
	images, err := c.documentImages(ctx, doc)
	if err != nil {
		return "", err
	}

	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"images": images,
		"stream": false,
		"format": "json",
	}
	reqBody["options"] = map[string]any{"temperature": 0}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.callModel(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", wrapTemporaryIfNeeded("ollama.generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) documentImages(ctx context.Context, doc domain.DocumentInput) ([]string, error) {
	switch {
	case doc.IsRasterImage():
		return []string{base64.StdEncoding.EncodeToString(doc.Data)}, nil
	case doc.IsPDF():
		if c.renderer == nil {
			return nil, domain.WrapError(domain.ErrUnsupportedDocument, "ollama.generate", errors.New("pdf input needs a page renderer"))
		}
		return c.renderPages(ctx, doc.Data)
	default:
		return nil, domain.WrapError(domain.ErrUnsupportedDocument, "ollama.generate", fmt.Errorf("mime type %q", doc.MimeType))
	}
}

func (c *Client) renderPages(ctx context.Context, pdf []byte) ([]string, error) {
	session, err := c.renderer.Open(ctx, pdf)
	if err != nil {
		return nil, fmt.Errorf("open pdf for rendering: %w", err)
	}
	defer session.Close()

	var images []string
	for page := 1; page <= c.maxPages; page++ {
		img, err := session.Page(ctx, page)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("render page 1: %w", err)
			}
			break
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", page, err)
		}
		images = append(images, base64.StdEncoding.EncodeToString(buf.Bytes()))
	}
	return images, nil
}
