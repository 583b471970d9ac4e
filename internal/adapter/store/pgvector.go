package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
	"github.com/arturoeanton/go-codebase-assistant/internal/port"
)

// PGVectorStore persists the vector index in Postgres with the pgvector extension.
// The postgres driver must be registered by the caller (lib/pq).
type PGVectorStore struct {
	db        *sql.DB
	dimension int
}

// NewPGVectorStore opens a connection, verifies it and creates the schema.
func NewPGVectorStore(ctx context.Context, databaseURL string, dimension int) (*PGVectorStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PGVectorStore{db: db, dimension: dimension}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *PGVectorStore) Close() error {
	return s.db.Close()
}

func (s *PGVectorStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS code_chunks (
			position     INTEGER PRIMARY KEY,
			source_path  TEXT NOT NULL,
			filename     TEXT NOT NULL,
			language     TEXT NOT NULL DEFAULT '',
			chunk_index  INTEGER NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset   INTEGER NOT NULL,
			content      TEXT NOT NULL,
			vector       vector(%d) NOT NULL
		)`, s.dimension),
		`CREATE TABLE IF NOT EXISTS index_status (
			id     INTEGER PRIMARY KEY,
			status JSONB NOT NULL
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Rebuild replaces every stored chunk with chunks in a single transaction.
func (s *PGVectorStore) Rebuild(ctx context.Context, chunks []domain.EmbeddedChunk, status domain.IndexStatus) (port.VectorIndex, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM code_chunks`); err != nil {
		return nil, fmt.Errorf("clear chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_status`); err != nil {
		return nil, fmt.Errorf("clear status: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO code_chunks (position, source_path, filename, language, chunk_index, start_offset, end_offset, content, vector)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::vector)`)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx,
			i, c.SourcePath, c.Filename, c.Language, c.Index, c.Start, c.End, c.Text, vectorToString(c.Vector),
		); err != nil {
			return nil, fmt.Errorf("insert chunk: %w", err)
		}
	}

	data, err := json.Marshal(status)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO index_status (id, status) VALUES (1, $1)`, string(data)); err != nil {
		return nil, fmt.Errorf("insert status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &pgIndex{db: s.db, size: len(chunks)}, nil
}

// Load returns a handle on the stored index.
func (s *PGVectorStore) Load(ctx context.Context) (port.VectorIndex, domain.IndexStatus, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM index_status WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.IndexStatus{}, port.ErrNotIndexed
	}
	if err != nil {
		return nil, domain.IndexStatus{}, fmt.Errorf("load status: %w", err)
	}

	var status domain.IndexStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, domain.IndexStatus{}, fmt.Errorf("decode status: %w", err)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM code_chunks`).Scan(&n); err != nil {
		return nil, domain.IndexStatus{}, fmt.Errorf("count chunks: %w", err)
	}
	return &pgIndex{db: s.db, size: n}, status, nil
}

// Drop deletes every stored chunk and the status row.
func (s *PGVectorStore) Drop(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM code_chunks`); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM index_status`); err != nil {
		return fmt.Errorf("clear status: %w", err)
	}
	return nil
}

// pgIndex searches code_chunks by L2 distance (the <-> operator).
type pgIndex struct {
	db   *sql.DB
	size int
}

func (p *pgIndex) Len() int { return p.size }

func (p *pgIndex) Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT source_path, filename, language, chunk_index, start_offset, end_offset, content,
		        vector <-> $1::vector AS distance
		 FROM code_chunks
		 ORDER BY distance, position
		 LIMIT $2`, vectorToString(vector), k)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	defer rows.Close()

	var results []domain.ScoredChunk
	for rows.Next() {
		var sc domain.ScoredChunk
		if err := rows.Scan(
			&sc.SourcePath, &sc.Filename, &sc.Language, &sc.Index, &sc.Start, &sc.End, &sc.Text, &sc.Distance,
		); err != nil {
			return nil, fmt.Errorf("scan similar: %w", err)
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

// vectorToString converts a float32 slice to pgvector string format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
