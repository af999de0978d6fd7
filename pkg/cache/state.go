package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/gilt/pkg/observability"
)

// syncKeyPrefix namespaces sync records within the cache.
const syncKeyPrefix = "sync:"

// SyncRecord describes the last successful sync of a dependency.
type SyncRecord struct {
	Name     string    `json:"name"`     // Resolved name
	Git      string    `json:"git"`      // Source URI
	Version  string    `json:"version"`  // Requested version
	Kind     string    `json:"kind"`     // branch, tag or commit
	Commit   string    `json:"commit"`   // Checked-out commit
	SyncedAt time.Time `json:"synced_at"`
	RunID    string    `json:"run_id"`
}

// SyncKey returns the cache key of the sync record for a resolved name.
func SyncKey(name string) string {
	return syncKeyPrefix + name
}

// PutSyncRecord stores rec, replacing any earlier record for the same name.
func PutSyncRecord(ctx context.Context, c Cache, rec SyncRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := c.Set(ctx, SyncKey(rec.Name), data); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, "sync", len(data))
	return nil
}

// GetSyncRecord returns the record stored for name, if any.
// Corrupt entries are reported as misses.
func GetSyncRecord(ctx context.Context, c Cache, name string) (*SyncRecord, bool, error) {
	data, hit, err := c.Get(ctx, SyncKey(name))
	if err != nil {
		return nil, false, err
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "sync")
		return nil, false, nil
	}

	var rec SyncRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		observability.Cache().OnCacheMiss(ctx, "sync")
		return nil, false, nil
	}
	observability.Cache().OnCacheHit(ctx, "sync")
	return &rec, true, nil
}
