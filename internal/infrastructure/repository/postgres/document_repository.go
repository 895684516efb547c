package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

const schemaLockID = int64(2026101501)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS appraisal_documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	completeness DOUBLE PRECISION NOT NULL DEFAULT 0,
	image_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS appraisal_results (
	document_id TEXT PRIMARY KEY REFERENCES appraisal_documents(id) ON DELETE CASCADE,
	prompt_version TEXT NOT NULL,
	image_mode TEXT NOT NULL,
	record JSONB NOT NULL,
	report JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS appraisal_images (
	document_id TEXT NOT NULL REFERENCES appraisal_documents(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	page INTEGER NOT NULL,
	category TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	description TEXT NOT NULL,
	image JSONB NOT NULL,
	stored_id TEXT,
	stored_url TEXT,
	PRIMARY KEY (document_id, position)
);

CREATE INDEX IF NOT EXISTS idx_appraisal_documents_status ON appraisal_documents(status);
CREATE INDEX IF NOT EXISTS idx_appraisal_documents_created_at ON appraisal_documents(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_appraisal_images_category ON appraisal_images(category);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO appraisal_documents (
	id, filename, mime_type, storage_path, status, error_message, completeness, image_count, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		doc.ID, doc.Filename, doc.MimeType, doc.StoragePath, string(doc.Status), doc.Error,
		doc.Completeness, doc.ImageCount, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, mime_type, storage_path, status, error_message, completeness, image_count, created_at, updated_at
FROM appraisal_documents
WHERE id = $1
`, id)

	var doc domain.Document
	var status string
	var errMessage sql.NullString

	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &status, &errMessage,
		&doc.Completeness, &doc.ImageCount, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	doc.Error = errMessage.String
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE appraisal_documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireAffected(res, "update document status", id)
}

// SaveResult stores the record, report and image rows of a run and marks the
// document ready, all in one transaction. A rerun replaces earlier output.
func (r *DocumentRepository) SaveResult(ctx context.Context, id string, result *domain.AnalysisResult) error {
	if result == nil {
		return domain.WrapError(domain.ErrInvalidInput, "save result", errors.New("nil result"))
	}
	recordJSON, err := json.Marshal(result.Record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	reportJSON, err := json.Marshal(result.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin result tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	completeness := 0.0
	if result.Report != nil {
		completeness = result.Report.Completeness
	}
	res, err := tx.ExecContext(ctx, `
UPDATE appraisal_documents
SET status = $2, error_message = '', completeness = $3, image_count = $4, updated_at = $5
WHERE id = $1
`, id, string(domain.StatusReady), completeness, len(result.Images), now)
	if err != nil {
		return fmt.Errorf("update document result summary: %w", err)
	}
	if err := requireAffected(res, "save result", id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO appraisal_results (document_id, prompt_version, image_mode, record, report, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (document_id) DO UPDATE
SET prompt_version = EXCLUDED.prompt_version, image_mode = EXCLUDED.image_mode,
	record = EXCLUDED.record, report = EXCLUDED.report, created_at = EXCLUDED.created_at
`, id, result.PromptVersion, string(result.ImageMode), recordJSON, reportJSON, now); err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM appraisal_images WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("clear images: %w", err)
	}
	for i, img := range result.Images {
		imageJSON, err := json.Marshal(img)
		if err != nil {
			return fmt.Errorf("marshal image %d: %w", i, err)
		}
		var storedID, storedURL sql.NullString
		if i < len(result.StoredImages) && result.StoredImages[i].ID != "" {
			storedID = sql.NullString{String: result.StoredImages[i].ID, Valid: true}
			storedURL = sql.NullString{String: result.StoredImages[i].URL, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO appraisal_images (document_id, position, page, category, confidence, description, image, stored_id, stored_url)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, id, i, img.Region.Page, string(img.Category), img.Confidence, img.Description, imageJSON, storedID, storedURL); err != nil {
			return fmt.Errorf("insert image %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit result tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetResult(ctx context.Context, id string) (*domain.AnalysisResult, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT prompt_version, image_mode, record, report
FROM appraisal_results
WHERE document_id = $1
`, id)

	result := &domain.AnalysisResult{DocumentID: id}
	var imageMode string
	var recordRaw, reportRaw []byte
	if err := row.Scan(&result.PromptVersion, &imageMode, &recordRaw, &reportRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get result", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan result: %w", err)
	}
	result.ImageMode = domain.ImageMode(imageMode)
	if err := json.Unmarshal(recordRaw, &result.Record); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	if err := json.Unmarshal(reportRaw, &result.Report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT image, stored_id, stored_url
FROM appraisal_images
WHERE document_id = $1
ORDER BY position
`, id)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	anyStored := false
	for rows.Next() {
		var imageRaw []byte
		var storedID, storedURL sql.NullString
		if err := rows.Scan(&imageRaw, &storedID, &storedURL); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		var img domain.ClassifiedImage
		if err := json.Unmarshal(imageRaw, &img); err != nil {
			return nil, fmt.Errorf("unmarshal image: %w", err)
		}
		result.Images = append(result.Images, img)

		// stored images stay index-aligned with images
		stored := domain.StoredImage{}
		if storedID.Valid {
			anyStored = true
			stored = domain.StoredImage{ID: storedID.String, URL: storedURL.String, Category: string(img.Category)}
		}
		result.StoredImages = append(result.StoredImages, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	if !anyStored {
		result.StoredImages = nil
	}
	return result, nil
}

func requireAffected(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
