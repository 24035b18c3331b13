package bolt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.etcd.io/bbolt"

	"github.com/vncsmyrnk/scorepoll/internal/codec"
	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
	"github.com/vncsmyrnk/scorepoll/internal/logger"
)

var pollsBucket = []byte("polls")

type pollStore struct {
	db    *bbolt.DB
	locks *keyLocks
	log   *log.Logger
}

// Open opens (or creates) the bolt file at path. timeout bounds the wait for
// the file lock held by another process.
func Open(path string, timeout time.Duration) (ports.PollStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrStorageUnavailable, path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(pollsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create bucket: %w", domain.ErrStorageUnavailable, err)
	}

	return &pollStore{
		db:    db,
		locks: newKeyLocks(),
		log:   logger.Repository("bolt").With("path", path),
	}, nil
}

func (s *pollStore) PutNew(ctx context.Context, id domain.PollID, poll *domain.Poll) error {
	data, err := codec.MarshalPoll(poll)
	if err != nil {
		return err
	}

	unlock, err := s.locks.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(pollsBucket)
		if b.Get([]byte(id)) != nil {
			return domain.ErrAlreadyExists
		}
		return b.Put([]byte(id), data)
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		return fmt.Errorf("poll %s: %w", id, err)
	}
	if err != nil {
		return fmt.Errorf("%w: put poll %s: %w", domain.ErrStorageUnavailable, id, err)
	}

	s.log.Debug("poll created", "poll_id", id)
	return nil
}

func (s *pollStore) Get(ctx context.Context, id domain.PollID) (*domain.Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.read(id)
}

// UpdateAtomic holds the stripe lock for id across read, transform and
// write. Only the final write enters a bolt write transaction.
func (s *pollStore) UpdateAtomic(ctx context.Context, id domain.PollID, fn ports.TransformFunc) (*domain.Poll, error) {
	unlock, err := s.locks.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.read(id)
	if err != nil {
		return nil, err
	}

	next, err := fn(current)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransformFailed, err)
	}
	if next == nil {
		return nil, fmt.Errorf("%w: transform returned no poll", domain.ErrTransformFailed)
	}
	if next.ID != id {
		return nil, fmt.Errorf("%w: transform changed poll id %s to %s", domain.ErrTransformFailed, id, next.ID)
	}

	data, err := codec.MarshalPoll(next)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransformFailed, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(pollsBucket).Put([]byte(id), data)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: update poll %s: %w", domain.ErrStorageUnavailable, id, err)
	}

	return codec.UnmarshalPoll(data)
}

func (s *pollStore) ForEach(ctx context.Context, fn func(*domain.Poll) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(pollsBucket).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			poll, err := codec.UnmarshalPoll(v)
			if err != nil {
				return fmt.Errorf("poll %s: %w", k, err)
			}
			return fn(poll)
		})
	})
}

func (s *pollStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// read decodes the committed record for id. The returned bytes from bolt are
// only valid inside the transaction, so decoding happens there.
func (s *pollStore) read(id domain.PollID) (*domain.Poll, error) {
	var poll *domain.Poll
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(pollsBucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		p, err := codec.UnmarshalPoll(v)
		if err != nil {
			return err
		}
		poll = p
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrCorrupt):
		s.log.Error("stored poll failed to decode", "poll_id", id, "err", err)
		return nil, fmt.Errorf("poll %s: %w", id, err)
	case err != nil:
		return nil, fmt.Errorf("%w: get poll %s: %w", domain.ErrStorageUnavailable, id, err)
	case !found:
		return nil, fmt.Errorf("poll %s: %w", id, domain.ErrPollNotFound)
	}
	return poll, nil
}
