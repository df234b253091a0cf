package store

import (
	"context"

	dom "github.com/nxhieu3102/ai-assistant/internal/domain"
)

// Store is crash-safe, concurrency-safe access to the tasks aggregate.
//
// Update runs read+mutate+write as one critical section. Repositories must
// use it for any read-modify-write cycle; pairing Read with a later Write
// opens a lost-update window between the two lock acquisitions.
type Store interface {
	// Read returns the current aggregate. If no backing storage exists yet it
	// initializes and persists the default aggregate before returning it.
	Read(ctx context.Context) (dom.TasksData, error)
	// Write persists the entire aggregate.
	Write(ctx context.Context, data dom.TasksData) error
	// Update applies fn to the current aggregate and persists the result
	// under a single lock acquisition.
	Update(ctx context.Context, fn func(*dom.TasksData) error) error
}
