package bolt

import (
	"context"
	"hash/fnv"

	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
)

const lockStripes = 256

// keyLocks serializes work on the same poll id. Ids that hash to different
// stripes never wait on each other.
type keyLocks struct {
	stripes [lockStripes]chan struct{}
}

func newKeyLocks() *keyLocks {
	l := &keyLocks{}
	for i := range l.stripes {
		l.stripes[i] = make(chan struct{}, 1)
	}
	return l
}

func stripeOf(id domain.PollID) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32() % lockStripes
}

// lock blocks until the stripe for id is free or ctx is done. The returned
// func releases the stripe.
func (l *keyLocks) lock(ctx context.Context, id domain.PollID) (func(), error) {
	s := l.stripes[stripeOf(id)]
	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
