package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/vncsmyrnk/scorepoll/internal/codec"
	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
	"github.com/vncsmyrnk/scorepoll/internal/logger"
)

type pollRepository struct {
	db  *sql.DB
	log *log.Logger
}

// NewPollRepository stores each poll as one codec-encoded row. Row locks
// taken by SELECT ... FOR UPDATE serialize updates of the same poll.
func NewPollRepository(db *sql.DB) ports.PollStore {
	return &pollRepository{
		db:  db,
		log: logger.Repository("postgres"),
	}
}

func (r *pollRepository) PutNew(ctx context.Context, id domain.PollID, poll *domain.Poll) error {
	data, err := codec.MarshalPoll(poll)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO polls (id, record)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, string(id), data)
	if err != nil {
		return fmt.Errorf("%w: failed to insert poll: %w", domain.ErrStorageUnavailable, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to read rows affected: %w", domain.ErrStorageUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("poll %s: %w", id, domain.ErrAlreadyExists)
	}

	r.log.Debug("poll created", "poll_id", id)
	return nil
}

func (r *pollRepository) Get(ctx context.Context, id domain.PollID) (*domain.Poll, error) {
	query := `SELECT record FROM polls WHERE id = $1`

	var data []byte
	err := r.db.QueryRowContext(ctx, query, string(id)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("poll %s: %w", id, domain.ErrPollNotFound)
		}
		return nil, fmt.Errorf("%w: failed to get poll: %w", domain.ErrStorageUnavailable, err)
	}

	return r.decode(id, data)
}

func (r *pollRepository) UpdateAtomic(ctx context.Context, id domain.PollID, fn ports.TransformFunc) (*domain.Poll, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", domain.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	var data []byte
	err = tx.QueryRowContext(ctx, `SELECT record FROM polls WHERE id = $1 FOR UPDATE`, string(id)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("poll %s: %w", id, domain.ErrPollNotFound)
		}
		return nil, fmt.Errorf("%w: failed to lock poll: %w", domain.ErrStorageUnavailable, err)
	}

	current, err := r.decode(id, data)
	if err != nil {
		return nil, err
	}

	next, err := fn(current)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransformFailed, err)
	}
	if next == nil || next.ID != id {
		return nil, fmt.Errorf("%w: transform must return poll %s", domain.ErrTransformFailed, id)
	}

	out, err := codec.MarshalPoll(next)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransformFailed, err)
	}

	query := `
		UPDATE polls SET record = $2, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, query, string(id), out); err != nil {
		return nil, fmt.Errorf("%w: failed to update poll: %w", domain.ErrStorageUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit transaction: %w", domain.ErrStorageUnavailable, err)
	}

	return codec.UnmarshalPoll(out)
}

func (r *pollRepository) ForEach(ctx context.Context, fn func(*domain.Poll) error) error {
	rows, err := r.db.QueryContext(ctx, `SELECT id, record FROM polls ORDER BY created_at, id`)
	if err != nil {
		return fmt.Errorf("%w: failed to list polls: %w", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return fmt.Errorf("%w: failed to scan poll: %w", domain.ErrStorageUnavailable, err)
		}
		poll, err := r.decode(domain.PollID(id), data)
		if err != nil {
			return err
		}
		if err := fn(poll); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: error iterating polls: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *pollRepository) Close() error {
	return r.db.Close()
}

func (r *pollRepository) decode(id domain.PollID, data []byte) (*domain.Poll, error) {
	poll, err := codec.UnmarshalPoll(data)
	if err != nil {
		r.log.Error("stored poll failed to decode", "poll_id", id, "err", err)
		return nil, fmt.Errorf("poll %s: %w", id, err)
	}
	return poll, nil
}
