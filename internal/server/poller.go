package server

import (
	"context"

	"challenge-tracker/internal/poller"
)

// Poller defines the minimal poll loop behavior needed by the server.
type Poller interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
	Status() poller.Status
}
