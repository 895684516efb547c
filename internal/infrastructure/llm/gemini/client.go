// Package gemini implements the document model port on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

const DefaultModel = "gemini-1.5-flash"

type Client struct {
	apiKey  string
	model   string
	options []option.ClientOption
}

func New(apiKey, model string, opts ...option.ClientOption) *Client {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		options: opts,
	}
}

func (c *Client) Available() error {
	if c.apiKey == "" {
		return domain.WrapError(domain.ErrServiceUnavailable, "gemini.available", errors.New("GEMINI_API_KEY is not set"))
	}
	return nil
}

// Generate sends the prompt and the whole document in one request and
// returns the text of the first candidate.
func (c *Client) Generate(ctx context.Context, doc domain.DocumentInput, prompt string) (string, error) {
	if err := c.Available(); err != nil {
		return "", err
	}
	opts := append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.options...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", domain.WrapError(domain.ErrServiceUnavailable, "gemini.new_client", err)
	}
	defer client.Close()

	model := client.GenerativeModel(c.model)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{
			MIMEType: mimeType(doc),
			Data:     doc.Data,
		},
	)
	if err != nil {
		return "", wrapGeminiError(err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", domain.WrapError(domain.ErrInvalidResponse, "gemini.generate", errors.New("no candidates in response"))
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		return "", domain.WrapError(domain.ErrInvalidResponse, "gemini.generate", errors.New("response truncated at max output tokens"))
	}
	if candidate.Content == nil {
		return "", domain.WrapError(domain.ErrInvalidResponse, "gemini.generate", fmt.Errorf("empty candidate (finish reason %v)", candidate.FinishReason))
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", domain.WrapError(domain.ErrInvalidResponse, "gemini.generate", fmt.Errorf("no text parts (finish reason %v)", candidate.FinishReason))
	}
	return b.String(), nil
}

// StatusError carries the HTTP status of a failed API call.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini status %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) HTTPStatus() int { return e.StatusCode }

func wrapGeminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		statusErr := &StatusError{StatusCode: apiErr.Code, Message: apiErr.Message}
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.WrapError(domain.ErrServiceUnavailable, "gemini.generate", statusErr)
		}
		return statusErr
	}
	return fmt.Errorf("gemini generate: %w", err)
}

func mimeType(doc domain.DocumentInput) string {
	if strings.TrimSpace(doc.MimeType) != "" {
		return doc.MimeType
	}
	return http.DetectContentType(doc.Data)
}
