package deadletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/converso-labs/chatbridge/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Create(ctx context.Context, dl *models.DeadLetter) error {
	query := `
		INSERT INTO dead_letters (id, job_id, webhook_id, event_type, queue, payload, attempts, last_error, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		dl.ID, dl.JobID, dl.WebhookID, string(dl.EventType), string(dl.Queue),
		dl.Payload, dl.Attempts, dl.LastError, dl.Reason, dl.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dead letter: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.DeadLetter, error) {
	query := `
		SELECT id, job_id, webhook_id, event_type, queue, payload, attempts, last_error, reason, created_at, requeued_at
		FROM dead_letters
		WHERE id = $1
	`

	dl, err := scanDeadLetter(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dead letter: %w", err)
	}

	return dl, nil
}

func (r *PostgresRepository) List(ctx context.Context, limit int) ([]*models.DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, job_id, webhook_id, event_type, queue, payload, attempts, last_error, reason, created_at, requeued_at
		FROM dead_letters
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	var result []*models.DeadLetter
	for rows.Next() {
		dl, err := scanDeadLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		result = append(result, dl)
	}

	return result, rows.Err()
}

func (r *PostgresRepository) MarkRequeued(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE dead_letters SET requeued_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark dead letter requeued: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Purge(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM dead_letters`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge dead letters: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeadLetter(row rowScanner) (*models.DeadLetter, error) {
	var (
		dl        models.DeadLetter
		eventType string
		queueName string
	)
	err := row.Scan(
		&dl.ID, &dl.JobID, &dl.WebhookID, &eventType, &queueName,
		&dl.Payload, &dl.Attempts, &dl.LastError, &dl.Reason,
		&dl.CreatedAt, &dl.RequeuedAt,
	)
	if err != nil {
		return nil, err
	}
	dl.EventType = models.EventType(eventType)
	dl.Queue = models.QueueName(queueName)
	return &dl, nil
}
