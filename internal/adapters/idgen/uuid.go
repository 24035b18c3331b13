package idgen

import (
	"github.com/google/uuid"

	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
)

type uuidGenerator struct{}

// NewUUID returns a generator of random (v4) uuid poll ids.
func NewUUID() ports.IDGenerator {
	return uuidGenerator{}
}

func (uuidGenerator) NewPollID() domain.PollID {
	return domain.PollID(uuid.NewString())
}
