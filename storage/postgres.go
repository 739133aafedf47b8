package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lhccong/fish-island-backend-sub001/domain"
)

// PostgresRepo is the engine's window into the platform database: the user
// directory, the word dictionary, and the point-award ledger. The engine
// only sees the narrow interfaces in the game package.
type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresRepo{pool: pool}, nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func (r *PostgresRepo) GetUserById(ctx context.Context, id string) (domain.User, error) {
	user := domain.User{Id: id}

	row := r.pool.QueryRow(ctx, "SELECT username FROM users WHERE id = $1", id)

	err := row.Scan(&user.Username)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.User{}, domain.ErrUserNotFound
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return domain.User{}, err
		default:
			return domain.User{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
	}

	return user, nil
}

// RandomWord implements the game.Dictionary single-word draw. An empty
// category draws from the whole dictionary; excluded words are the ones
// already consumed today.
func (r *PostgresRepo) RandomWord(ctx context.Context, category string, excluded []string) (domain.Word, error) {
	query := `SELECT word, hint, category FROM words
		WHERE ($1 = '' OR category = $1) AND word != ALL($2)
		ORDER BY RANDOM() LIMIT 1`

	var w domain.Word
	err := r.pool.QueryRow(ctx, query, category, excluded).Scan(&w.Text, &w.Hint, &w.Category)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.Word{}, domain.ErrNoEligibleWords
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return domain.Word{}, err
		default:
			return domain.Word{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
	}

	return w, nil
}

// RandomPair draws a civilian/undercover pairing, skipping pairs whose
// ledger keys appear in excluded.
func (r *PostgresRepo) RandomPair(ctx context.Context, category string, excluded []string) (domain.WordPair, error) {
	query := `SELECT civilian_word, undercover_word, category FROM word_pairs
		WHERE ($1 = '' OR category = $1)
		AND civilian_word || '|' || undercover_word != ALL($2)
		ORDER BY RANDOM() LIMIT 1`

	var p domain.WordPair
	err := r.pool.QueryRow(ctx, query, category, excluded).Scan(&p.Civilian, &p.Undercover, &p.Category)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.WordPair{}, domain.ErrNoEligibleWords
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return domain.WordPair{}, err
		default:
			return domain.WordPair{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
	}

	return p, nil
}

// AwardPoints implements the game.PointsLedger collaborator. The platform's
// points service folds these rows into user balances.
func (r *PostgresRepo) AwardPoints(ctx context.Context, userID string, points int, reason, roomID string) error {
	_, err := r.pool.Exec(ctx,
		"INSERT INTO point_awards(user_id, room_id, points, reason) VALUES($1, $2, $3, $4)",
		userID, roomID, points, reason,
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return nil
}
