package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulse-lab/project-pulse/internal/core/aggregate"
	"github.com/pulse-lab/project-pulse/internal/core/interval"
)

func TestSession_ReadThroughQueriesStoreOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemAggregateStore()

	key := interval.BucketKey{Granularity: interval.Minute, DateKey: "2026-02-11", TimeKey: "10:00"}
	seeded := aggregate.New(key, "g1")
	seeded.Observe("user1", 30*time.Second)
	store.seed(seeded)

	sess := NewSession(store, nil)

	recs, err := sess.Records(ctx, key)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, 1, store.queryCalls)

	// Second and third lookups are cache hits.
	for i := 0; i < 2; i++ {
		recs, err = sess.Records(ctx, key)
		require.NoError(t, err)
		require.Len(t, recs, 1)
	}
	require.Equal(t, 1, store.queryCalls)
}

func TestSession_CachesEmptyBuckets(t *testing.T) {
	ctx := context.Background()
	store := newMemAggregateStore()
	sess := NewSession(store, nil)

	key := interval.BucketKey{Granularity: interval.Hour, DateKey: "2026-02-11", TimeKey: "10:00"}

	recs, err := sess.Records(ctx, key)
	require.NoError(t, err)
	require.Empty(t, recs)

	// An empty result is still a cached result.
	_, err = sess.Records(ctx, key)
	require.NoError(t, err)
	require.Equal(t, 1, store.queryCalls)
}

func TestSession_DistinctBucketsQueriedIndependently(t *testing.T) {
	ctx := context.Background()
	store := newMemAggregateStore()
	sess := NewSession(store, nil)

	k1 := interval.BucketKey{Granularity: interval.Minute, DateKey: "2026-02-11", TimeKey: "10:00"}
	k2 := interval.BucketKey{Granularity: interval.Minute, DateKey: "2026-02-11", TimeKey: "10:01"}

	_, err := sess.Records(ctx, k1)
	require.NoError(t, err)
	_, err = sess.Records(ctx, k2)
	require.NoError(t, err)
	require.Equal(t, 2, store.queryCalls)
	require.Len(t, sess.Buckets(), 2)
}

func TestSession_AddPinsNewRecord(t *testing.T) {
	ctx := context.Background()
	store := newMemAggregateStore()
	sess := NewSession(store, nil)

	key := interval.BucketKey{Granularity: interval.Minute, DateKey: "2026-02-11", TimeKey: "10:00"}
	_, err := sess.Records(ctx, key)
	require.NoError(t, err)

	sess.Add(key, aggregate.New(key, "g1"))

	recs, err := sess.Records(ctx, key)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "g1", recs[0].Group)
}

func TestEventSession_GroupSetGrowsAndCopies(t *testing.T) {
	es := NewEventSession("s1")
	require.True(t, es.Empty())

	es.AddGroups([]string{"g1", ""})
	es.AddGroups([]string{"g1", "g2"})
	require.False(t, es.Empty())

	working := es.GroupSet()
	require.Len(t, working, 2)

	// Mutating the working copy must not shrink the session's own set.
	delete(working, "g1")
	require.Len(t, es.GroupSet(), 2)
}
