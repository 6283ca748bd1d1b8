package cache

import (
	"context"
	"time"
)

// Slot is a cache key resolved against the generation that was current when
// Get ran. Writing a result through the slot it was computed under keeps a
// report built before an Invalidate from landing in the newer generation.
type Slot string

// ReportCache stores JSON-encodable report results. Invalidate drops every
// entry written before the call, including writes through older slots.
type ReportCache interface {
	Get(ctx context.Context, key string, dest any) (Slot, bool, error)
	Set(ctx context.Context, slot Slot, value any, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, key string, _ any) (Slot, bool, error) {
	return Slot(key), false, nil
}

func (NoopReportCache) Set(_ context.Context, _ Slot, _ any, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context) error {
	return nil
}
