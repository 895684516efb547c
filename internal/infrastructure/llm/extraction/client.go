// Package extraction calls the document model with the extraction prompt and
// turns its answer into a flat record, retrying transient failures.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
	"github.com/kirillkom/appraisal-intelligence/internal/core/ports"
	"github.com/kirillkom/appraisal-intelligence/internal/core/prompt"
	"github.com/kirillkom/appraisal-intelligence/internal/infrastructure/resilience"
)

const generateOperation = "document_model.generate"

type Client struct {
	model    ports.DocumentModel
	template *prompt.Template
	executor *resilience.Executor
}

func New(model ports.DocumentModel, template *prompt.Template, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.ExtractionConfig())
	}
	return &Client{model: model, template: template, executor: executor}
}

// Available reports whether the model can be called at all. A missing
// credential surfaces here instead of at construction.
func (c *Client) Available() error {
	if c.model == nil {
		return domain.WrapError(domain.ErrServiceUnavailable, "extraction.available", errors.New("no document model configured"))
	}
	if err := c.model.Available(); err != nil {
		if domain.IsKind(err, domain.ErrServiceUnavailable) {
			return err
		}
		return domain.WrapError(domain.ErrServiceUnavailable, "extraction.available", err)
	}
	return nil
}

func (c *Client) PromptVersion() string {
	return c.template.Version
}

// Extract makes a single logical model call. Transient failures are retried
// under the executor policy; exhausting them yields ErrServiceOverloaded and
// caller cancellation yields ErrCancelled.
func (c *Client) Extract(ctx context.Context, doc domain.DocumentInput) (domain.FlatRecord, error) {
	if err := c.Available(); err != nil {
		return nil, err
	}
	if len(doc.Data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extraction.extract", errors.New("document is empty"))
	}

	text := c.template.Render()
	started := time.Now()
	attempts := 0
	raw, err := resilience.Retry(ctx, c.executor, generateOperation, func(ctx context.Context) (string, error) {
		attempts++
		return c.model.Generate(ctx, doc, text)
	}, Classify)
	if err != nil {
		return nil, mapError(ctx, err)
	}

	record, err := c.template.ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	slog.Info("extraction_completed",
		"filename", doc.Filename,
		"prompt_version", c.template.Version,
		"attempts", attempts,
		"duration_ms", time.Since(started).Milliseconds(),
		"keys", len(record),
	)
	return record, nil
}

func mapError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), ctx.Err() != nil:
		return domain.WrapError(domain.ErrCancelled, "extraction.extract", err)
	case resilience.IsRetriesExhausted(err), resilience.IsCircuitOpen(err):
		return domain.WrapError(domain.ErrServiceOverloaded, "extraction.extract", err)
	case domain.IsKind(err, domain.ErrServiceUnavailable),
		domain.IsKind(err, domain.ErrInvalidResponse),
		domain.IsKind(err, domain.ErrInvalidInput):
		return err
	default:
		return fmt.Errorf("extraction.extract: %w", err)
	}
}
