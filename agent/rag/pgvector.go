package rag

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PgvectorConfig struct {
	DSN            string `envconfig:"DSN" split_words:"true"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" split_words:"true" default:"openai/text-embedding-3-small"`
	Dimensions     int    `envconfig:"DIMENSIONS" split_words:"true" default:"1536"`
}

type documentRow struct {
	bun.BaseModel `bun:"table:rag_documents,alias:d"`

	ID        int64           `bun:"id,pk,autoincrement"`
	DocType   string          `bun:"doc_type,notnull"`
	DocName   string          `bun:"doc_name,notnull"`
	Content   string          `bun:"content,notnull"`
	Embedding pgvector.Vector `bun:"embedding,notnull"`
	Distance  float64         `bun:"distance,scanonly"`
}

// PgvectorSearcher stores embedded documents in Postgres and ranks them
// by L2 distance to the embedded query.
type PgvectorSearcher struct {
	db         *bun.DB
	embedder   Embedder
	dimensions int
}

// OpenPostgres opens a bun handle on the pgdriver connector.
func OpenPostgres(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func NewPgvectorSearcher(db *bun.DB, embedder Embedder, dimensions int) (*PgvectorSearcher, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive")
	}
	return &PgvectorSearcher{db: db, embedder: embedder, dimensions: dimensions}, nil
}

// Migrate creates the extension, table and index when missing.
func (s *PgvectorSearcher) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS rag_documents (
			id BIGSERIAL PRIMARY KEY,
			doc_type TEXT NOT NULL,
			doc_name TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS rag_documents_doc_type_idx ON rag_documents (doc_type)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate rag_documents: %w", err)
		}
	}
	return nil
}

// Index embeds and inserts documents in batches. It returns the number
// of rows written.
func (s *PgvectorSearcher) Index(ctx context.Context, docs []Document, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 32
	}

	written := 0
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Content
		}
		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("embed batch at %d: %w", start, err)
		}

		rows := make([]documentRow, len(batch))
		for i, d := range batch {
			if len(vectors[i]) != s.dimensions {
				return written, fmt.Errorf("document %s: embedding has %d dimensions, want %d", d.DocName, len(vectors[i]), s.dimensions)
			}
			rows[i] = documentRow{
				DocType:   d.DocType,
				DocName:   d.DocName,
				Content:   d.Content,
				Embedding: pgvector.NewVector(vectors[i]),
			}
		}
		if _, err := s.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return written, fmt.Errorf("insert batch at %d: %w", start, err)
		}
		written += len(rows)
		log.Debug().Int("batch_start", start).Int("rows", len(rows)).Msg("indexed rag documents")
	}
	return written, nil
}

func (s *PgvectorSearcher) Search(ctx context.Context, query string, docType string, k int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = DefaultTopK
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vec := pgvector.NewVector(vectors[0])

	var rows []documentRow
	q := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("d.id, d.doc_type, d.doc_name, d.content").
		ColumnExpr("d.embedding <-> ? AS distance", vec).
		OrderExpr("d.embedding <-> ?", vec).
		Limit(k)
	if docType != "" {
		q = q.Where("d.doc_type = ?", docType)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("search rag_documents: %w", err)
	}

	hits := make([]Hit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, Hit{
			DocName: r.DocName,
			DocType: r.DocType,
			Text:    r.Content,
			Score:   1 / (1 + r.Distance),
		})
	}
	return hits, nil
}
