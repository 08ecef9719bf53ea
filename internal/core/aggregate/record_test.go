package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulse-lab/project-pulse/internal/core/interval"
)

func testKey() interval.BucketKey {
	return interval.BucketKey{Granularity: interval.Minute, DateKey: "2026-02-11", TimeKey: "10:37"}
}

func TestRecord_ObserveHighWaterMark(t *testing.T) {
	r := New(testKey(), "g1")

	r.Observe("user1", 2*time.Minute)
	require.Equal(t, 2*time.Minute, r.Duration)

	r.Observe("user2", 7*time.Minute)
	require.Equal(t, 7*time.Minute, r.Duration)

	// A late, in-window event must not regress the high-water mark.
	r.Observe("user1", 2*time.Minute)
	require.Equal(t, 7*time.Minute, r.Duration)

	require.ElementsMatch(t, []string{"user1", "user2"}, r.ParticipantList())
}

func TestRecord_ObserveOrderIndependent(t *testing.T) {
	observations := []time.Duration{5 * time.Minute, time.Minute, 9 * time.Minute, 3 * time.Minute}

	forward := New(testKey(), "g1")
	for _, d := range observations {
		forward.Observe("u", d)
	}

	backward := New(testKey(), "g1")
	for i := len(observations) - 1; i >= 0; i-- {
		backward.Observe("u", observations[i])
	}

	require.Equal(t, forward.Duration, backward.Duration)
	require.Equal(t, 9*time.Minute, forward.Duration)
}

func TestRecord_IdempotentMembership(t *testing.T) {
	r := New(testKey(), "g1")

	r.Observe("user1", time.Minute)
	r.Observe("user1", 2*time.Minute)
	r.Observe("user1", time.Minute)

	require.Equal(t, 1, r.ParticipantCount())
}

func TestRecord_MarkCompleteIsFinal(t *testing.T) {
	r := New(testKey(), "g1")
	r.Observe("user1", 7*time.Minute)

	r.MarkComplete(10 * time.Minute)
	require.True(t, r.Complete)
	require.Equal(t, 10*time.Minute, r.Duration)

	// Later completions with any value are no-ops.
	r.MarkComplete(20 * time.Minute)
	require.Equal(t, 10*time.Minute, r.Duration)

	// So are later observations.
	r.Observe("user2", 9*time.Minute)
	require.Equal(t, 10*time.Minute, r.Duration)
	require.Equal(t, 1, r.ParticipantCount())
}

func TestRecord_SetParticipantsRoundTrip(t *testing.T) {
	r := New(testKey(), "g1")
	r.SetParticipants([]string{"b", "a", "a"})

	require.Equal(t, 2, r.ParticipantCount())
	require.Equal(t, []string{"a", "b"}, r.ParticipantList())
}
