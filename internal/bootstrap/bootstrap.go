package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/appraisal-intelligence/internal/config"
	"github.com/kirillkom/appraisal-intelligence/internal/core/catalog"
	"github.com/kirillkom/appraisal-intelligence/internal/core/correlation"
	"github.com/kirillkom/appraisal-intelligence/internal/core/imagefilter"
	"github.com/kirillkom/appraisal-intelligence/internal/core/lexicon"
	"github.com/kirillkom/appraisal-intelligence/internal/core/mapping"
	"github.com/kirillkom/appraisal-intelligence/internal/core/normalize"
	"github.com/kirillkom/appraisal-intelligence/internal/core/ports"
	"github.com/kirillkom/appraisal-intelligence/internal/core/prompt"
	"github.com/kirillkom/appraisal-intelligence/internal/core/usecase"
	"github.com/kirillkom/appraisal-intelligence/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/appraisal-intelligence/internal/infrastructure/extractor/pdfimage"
	"github.com/kirillkom/appraisal-intelligence/internal/infrastructure/llm/extraction"
	"github.com/kirillkom/appraisal-intelligence/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/appraisal-intelligence/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/appraisal-intelligence/internal/infrastructure/queue/nats"
	"github.com/kirillkom/appraisal-intelligence/internal/infrastructure/render/pdftoppm"
	"github.com/kirillkom/appraisal-intelligence/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/appraisal-intelligence/internal/infrastructure/resilience"
	"github.com/kirillkom/appraisal-intelligence/internal/infrastructure/storage/imagestore"
	"github.com/kirillkom/appraisal-intelligence/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	IngestUC  ports.DocumentIngestor
	AnalyzeUC ports.DocumentAnalyzer
	ProcessUC ports.DocumentProcessor
	ReportUC  *usecase.ReportUseCase

	closeFn func()
}

// New wires the whole pipeline. observer may be nil.
func New(ctx context.Context, cfg config.Config, observer usecase.PipelineObserver) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	analyzeUC, err := NewAnalyzer(cfg, observer)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, err
	}

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, storage, analyzeUC, newImageStore(cfg))
	reportUC := usecase.NewReportUseCase(repo, xlsx.New())

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		IngestUC:  ingestUC,
		AnalyzeUC: analyzeUC,
		ProcessUC: processUC,
		ReportUC:  reportUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// NewAnalyzer builds the two-branch pipeline without any persistence.
func NewAnalyzer(cfg config.Config, observer usecase.PipelineObserver) (*usecase.AnalyzeDocumentUseCase, error) {
	renderer := newRenderer(cfg)

	model, err := newDocumentModel(cfg, renderer)
	if err != nil {
		return nil, err
	}
	template, err := prompt.Load(cfg.PromptTemplatePath)
	if err != nil {
		return nil, fmt.Errorf("load prompt template: %w", err)
	}
	extractor := extraction.New(model, template, resilience.NewExecutor(extractionPolicy(cfg)))
	if err := extractor.Available(); err != nil {
		// reported per run as ErrServiceUnavailable
		slog.Warn("document_model_unavailable", "provider", cfg.AIProvider, "error", err.Error())
	}

	lex := lexicon.Default()
	cat := catalog.Default()

	return usecase.NewAnalyzeDocumentUseCase(
		pdfimage.New(renderer, pdfimage.Config{Concurrency: cfg.PageConcurrency}),
		imagefilter.New(imagefilter.Config{
			MinSize:        cfg.ImageMinSize,
			DedupTolerance: cfg.ImageDedupTolerance,
		}),
		correlation.New(lex, correlation.Config{
			VerticalRadius: cfg.ContextRadius,
			NearbyRadius:   cfg.NearbyRadius,
		}),
		extractor,
		normalize.New(lex, cat),
		mapping.New(cat, lex, mapping.Config{LowConfidenceThreshold: cfg.LowConfidenceThreshold}),
		observer,
	), nil
}

func extractionPolicy(cfg config.Config) resilience.Config {
	policy := resilience.ExtractionConfig()
	policy.RetryMaxAttempts = cfg.AIRetryMaxAttempts
	policy.RetryInitialBackoff = cfg.AIRetryBaseDelay
	policy.RetryMaxBackoff = cfg.AIRetryMaxDelay
	policy.RetryJitter = cfg.AIRetryJitter
	policy.BreakerEnabled = cfg.AIBreakerEnabled
	return policy
}

// newRenderer returns nil when pdftoppm is not installed; pixel crops then
// fall back to decoding embedded image streams.
func newRenderer(cfg config.Config) ports.PageRenderer {
	renderer := pdftoppm.New(cfg.PdftoppmPath, cfg.RenderDPI)
	if err := renderer.Available(); err != nil {
		slog.Warn("page_renderer_unavailable", "binary", cfg.PdftoppmPath, "error", err.Error())
		return nil
	}
	return renderer
}

func newDocumentModel(cfg config.Config, renderer ports.PageRenderer) (ports.DocumentModel, error) {
	switch cfg.AIProvider {
	case "", "gemini":
		return gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel), nil
	case "ollama":
		return ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, renderer), nil
	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q", cfg.AIProvider)
	}
}

func newImageStore(cfg config.Config) ports.ImageStore {
	if cfg.ImageStoreURL == "" {
		slog.Info("image_store_disabled")
		return nil
	}
	return imagestore.New(cfg.ImageStoreURL, cfg.ImageStoreToken, resilience.NewExecutor(resilience.DefaultConfig()))
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
