package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"stablewatch/internal/domain/chunk"
	"stablewatch/internal/domain/job"
)

const failedJobsSchema = `
CREATE TABLE IF NOT EXISTS failed_jobs (
	id TEXT PRIMARY KEY,
	stream_id TEXT NOT NULL,
	chunk_id TEXT NOT NULL,
	chunk_offset INTEGER NOT NULL,
	chunk_path TEXT NOT NULL,
	attempts INTEGER NOT NULL,
	last_error TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	failed_at TIMESTAMPTZ NOT NULL
)`

// History is the durable archive of terminally-failed jobs.
type History struct {
	pool *pgxpool.Pool
}

// Connect opens the pool and ensures the failed_jobs table exists.
func Connect(ctx context.Context, url string) (*History, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, failedJobsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &History{pool: pool}, nil
}

// Close releases the connection pool.
func (h *History) Close() {
	h.pool.Close()
}

// SaveFailed records one terminally-failed job.
func (h *History) SaveFailed(ctx context.Context, j job.Job) error {
	_, err := h.pool.Exec(ctx,
		`INSERT INTO failed_jobs (id, stream_id, chunk_id, chunk_offset, chunk_path, attempts, last_error, created_at, failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING`,
		j.ID, j.Chunk.StreamID, j.Chunk.ID, j.Chunk.Offset, j.Chunk.Path,
		j.Attempts, j.LastError, j.CreatedAt, j.CompletedAt,
	)
	return err
}

// RecentFailed lists the most recently archived failures.
func (h *History) RecentFailed(ctx context.Context, limit int) ([]job.Job, error) {
	rows, err := h.pool.Query(ctx,
		`SELECT id, stream_id, chunk_id, chunk_offset, chunk_path, attempts, last_error, created_at, failed_at
		 FROM failed_jobs ORDER BY failed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]job.Job, 0, limit)
	for rows.Next() {
		var (
			j         job.Job
			createdAt time.Time
			failedAt  time.Time
		)
		if err := rows.Scan(&j.ID, &j.Chunk.StreamID, &j.Chunk.ID, &j.Chunk.Offset, &j.Chunk.Path,
			&j.Attempts, &j.LastError, &createdAt, &failedAt); err != nil {
			return nil, err
		}
		j.Status = job.StatusFailed
		j.Chunk.Status = chunk.StatusError
		j.CreatedAt = createdAt
		j.CompletedAt = failedAt
		j.Result = json.RawMessage(nil)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
