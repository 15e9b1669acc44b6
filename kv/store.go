// Package kv provides the durable (channel, key) -> value mapping that the
// assistant core uses for thread bookkeeping and long-lived memory.
package kv

import "context"

// Store is the persistence capability consumed by the assistant core. Each
// operation is individually atomic; last write wins on concurrent Set.
type Store interface {
	// Get returns the stored value and whether it exists.
	Get(ctx context.Context, channelID, key string) (string, bool, error)
	// Set stores the value, overwriting any previous one.
	Set(ctx context.Context, channelID, key, value string) error
	// Delete removes the value. Deleting a missing key is not an error.
	Delete(ctx context.Context, channelID, key string) error
}
