package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// ErrInvalid marks a rejected settings value.
var ErrInvalid = errors.New("invalid setting")

// Settings are the runtime-tunable retrieval knobs. The fusion weight was
// never empirically tuned upstream, so it is adjustable without a restart.
type Settings struct {
	SearchAlpha float64 `json:"search_alpha"`
	SearchTopK  int     `json:"search_top_k"`
}

type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	return value, err
}

func (r *PostgresRepo) Set(ctx context.Context, key, value string) error {
	query := `INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	_, err := r.db.ExecContext(ctx, query, key, value)
	return err
}

const (
	keySearchAlpha = "search_alpha"
	keySearchTopK  = "search_top_k"
)

// Service layers an in-process cache over the repository so the query path
// never pays a settings read per request.
type Service struct {
	repo Repository

	mu      sync.RWMutex
	current Settings
}

func NewService(repo Repository, defaults Settings) *Service {
	return &Service{repo: repo, current: defaults}
}

// Load pulls persisted overrides on top of the configured defaults. Missing
// rows are not an error; the defaults stand.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if raw, err := s.repo.Get(ctx, keySearchAlpha); err == nil {
		if alpha, perr := strconv.ParseFloat(raw, 64); perr == nil {
			s.current.SearchAlpha = alpha
		}
	} else if err != sql.ErrNoRows {
		return fmt.Errorf("load %s: %w", keySearchAlpha, err)
	}

	if raw, err := s.repo.Get(ctx, keySearchTopK); err == nil {
		if k, perr := strconv.Atoi(raw); perr == nil {
			s.current.SearchTopK = k
		}
	} else if err != sql.ErrNoRows {
		return fmt.Errorf("load %s: %w", keySearchTopK, err)
	}

	return nil
}

func (s *Service) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Service) Update(ctx context.Context, next Settings) error {
	if next.SearchAlpha < 0 || next.SearchAlpha > 1 {
		return fmt.Errorf("%w: search_alpha must be between 0 and 1, got %v", ErrInvalid, next.SearchAlpha)
	}
	if next.SearchTopK < 1 {
		return fmt.Errorf("%w: search_top_k must be at least 1, got %d", ErrInvalid, next.SearchTopK)
	}

	if err := s.repo.Set(ctx, keySearchAlpha, strconv.FormatFloat(next.SearchAlpha, 'f', -1, 64)); err != nil {
		return err
	}
	if err := s.repo.Set(ctx, keySearchTopK, strconv.Itoa(next.SearchTopK)); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return nil
}
