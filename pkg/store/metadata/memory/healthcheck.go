package memory

import (
	"context"
	"fmt"

	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

// Healthcheck verifies the store is operational.
//
// For the in-memory implementation there are no external dependencies, so
// the only failure modes are a cancelled context and a missing root
// collection (which would indicate corrupted internal state).
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//
// Returns:
//   - error: nil if healthy, context error if cancelled/timed out
func (store *MemoryMetadataStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	if _, ok := store.collections[metadata.RootPath]; !ok {
		return fmt.Errorf("root collection missing")
	}
	return nil
}
