package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cruxview/cruxview/internal/embeddings"
	"github.com/cruxview/cruxview/internal/models"
)

// Archive persists finished assessments to Postgres for long-term
// history and similarity search over pgvector embeddings.
type Archive struct {
	pool     *pgxpool.Pool
	embedder *embeddings.Service
}

// NewArchive connects to the database and verifies the connection.
func NewArchive(ctx context.Context, databaseURL string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("archive: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	return &Archive{pool: pool, embedder: embeddings.NewService(2)}, nil
}

// Close releases the connection pool and the embedding workers.
func (a *Archive) Close() {
	if a.embedder != nil {
		a.embedder.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// embedding obtains one vector through the pooled embedder, so
// repeated summaries hit its cache.
func (a *Archive) embedding(content string) ([]float32, error) {
	res := <-a.embedder.GetEmbedding(content)
	if res.Error != nil {
		return nil, fmt.Errorf("archive: embed: %w", res.Error)
	}
	return res.Embedding, nil
}

// InitSchema creates the vector extension, tables, and indexes.
func InitSchema(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("archive: connect: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("archive: create vector extension: %w", err)
	}

	_, err = conn.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS attempts (
            id SERIAL PRIMARY KEY,
            analysis_id TEXT NOT NULL,
            route_color TEXT NOT NULL,
            grade TEXT NOT NULL,
            difficulty REAL NOT NULL,
            overall_score INTEGER NOT NULL,
            move_count INTEGER NOT NULL,
            wall_angle TEXT NOT NULL,
            summary TEXT NOT NULL,
            embedding vector(%d),
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE(analysis_id)
        );
    `, embeddings.Dim))
	if err != nil {
		return fmt.Errorf("archive: create schema: %w", err)
	}

	_, err = conn.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_attempts_color ON attempts(route_color);
        CREATE INDEX IF NOT EXISTS idx_attempts_embedding ON attempts USING ivfflat (embedding vector_l2_ops) WITH (lists = 100);
    `)
	if err != nil {
		return fmt.Errorf("archive: create indexes: %w", err)
	}
	return nil
}

// SaveAssessment upserts one finished assessment. The embedding is
// derived from a text summary of the assessment so similar attempts
// land near each other.
func (a *Archive) SaveAssessment(ctx context.Context, analysisID string, assessment *models.RouteAssessment) error {
	summary := summarize(assessment)
	embedding, err := a.embedding(summary)
	if err != nil {
		return err
	}

	_, err = a.pool.Exec(ctx, `
        INSERT INTO attempts
        (analysis_id, route_color, grade, difficulty, overall_score, move_count, wall_angle, summary, embedding, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (analysis_id) DO UPDATE SET
            route_color = EXCLUDED.route_color,
            grade = EXCLUDED.grade,
            difficulty = EXCLUDED.difficulty,
            overall_score = EXCLUDED.overall_score,
            move_count = EXCLUDED.move_count,
            wall_angle = EXCLUDED.wall_angle,
            summary = EXCLUDED.summary,
            embedding = EXCLUDED.embedding`,
		analysisID, assessment.RouteColor, assessment.Grade, assessment.DifficultyScore,
		assessment.OverallScore, assessment.MoveCount, assessment.WallAngle,
		summary, pgvector.NewVector(embedding), time.Now())
	if err != nil {
		return fmt.Errorf("archive: save %s: %w", analysisID, err)
	}
	return nil
}

// SimilarAttempt is one row of a similarity search.
type SimilarAttempt struct {
	AnalysisID   string
	RouteColor   string
	Grade        string
	OverallScore int
	Summary      string
	Similarity   float64
}

// SimilarAttempts returns archived attempts closest to the query text
// in embedding space.
func (a *Archive) SimilarAttempts(ctx context.Context, query string, limit int) ([]SimilarAttempt, error) {
	if limit <= 0 {
		limit = 5
	}
	queryEmbedding, err := a.embedding(query)
	if err != nil {
		return nil, err
	}

	rows, err := a.pool.Query(ctx, `
        SELECT analysis_id, route_color, grade, overall_score, summary,
               1 - (embedding <=> $1) AS similarity
        FROM attempts
        ORDER BY embedding <=> $1
        LIMIT $2`,
		pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("archive: similarity search: %w", err)
	}
	defer rows.Close()

	var results []SimilarAttempt
	for rows.Next() {
		var r SimilarAttempt
		if err := rows.Scan(&r.AnalysisID, &r.RouteColor, &r.Grade,
			&r.OverallScore, &r.Summary, &r.Similarity); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// summarize flattens the assessment into the text the embedding is
// built from.
func summarize(a *models.RouteAssessment) string {
	parts := []string{
		a.RouteColor, a.Grade, a.WallAngle,
		fmt.Sprintf("difficulty %.1f", a.DifficultyScore),
		fmt.Sprintf("moves %d", a.MoveCount),
		fmt.Sprintf("score %d", a.OverallScore),
	}
	parts = append(parts, a.Insights...)
	parts = append(parts, a.Reasoning...)
	return strings.Join(parts, " ")
}
