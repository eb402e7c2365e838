package deadletter

import (
	"context"
	"database/sql"
	"time"
)

// Record is an operator-visible trace of a sync task that exhausted its
// retries.
type Record struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Operation  string    `json:"operation"`
	Error      string    `json:"error"`
	Attempts   int       `json:"attempts"`
	CreatedAt  time.Time `json:"created_at"`
}

type Repository interface {
	Save(ctx context.Context, rec *Record) error
	List(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, rec *Record) error {
	query := `INSERT INTO dead_letters (document_id, operation, error, attempts) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, rec.DocumentID, rec.Operation, rec.Error, rec.Attempts).Scan(&rec.ID, &rec.CreatedAt)
}

func (r *PostgresRepo) List(ctx context.Context) ([]Record, error) {
	query := `SELECT id, document_id, operation, error, attempts, created_at FROM dead_letters ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.Operation, &rec.Error, &rec.Attempts, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Record, error) {
	rec := &Record{}
	query := `SELECT id, document_id, operation, error, attempts, created_at FROM dead_letters WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&rec.ID, &rec.DocumentID, &rec.Operation, &rec.Error, &rec.Attempts, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM dead_letters WHERE id = $1`, id)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters`).Scan(&count)
	return count, err
}
