package ports

import (
	"context"

	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
)

// ExportSink receives every decoded poll during an export. Close commits the
// export; Abort discards whatever was written so far.
type ExportSink interface {
	Write(ctx context.Context, poll *domain.Poll) error
	Close(ctx context.Context) error
	Abort() error
}

type MaintenanceService interface {
	Export(ctx context.Context, sink ExportSink) (int, error)
	RebuildResults(ctx context.Context) (int, error)
}
