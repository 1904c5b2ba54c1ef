package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// KV is the persistence boundary shared by the daemon's stateful components.
// Implementations must be safe for concurrent use.
type KV interface {
	// Get returns the value stored at key and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores value at key, replacing any existing value.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys returns every stored key with the given prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// GetJSON decodes the value at key into v. A missing key reports found=false.
// A value that fails to decode is treated as absent rather than fatal, so a
// corrupt snapshot degrades to empty state instead of wedging the daemon.
func GetJSON(ctx context.Context, kv KV, key string, v any) (bool, error) {
	data, found, err := kv.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, nil
	}
	return true, nil
}

// PutJSON encodes v and stores it at key.
func PutJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Put(ctx, key, data)
}
